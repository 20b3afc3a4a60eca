// Package report summarises bookings over a date range.
package report

import (
	"context"
	"fmt"
	"math"
	"time"

	"glamora/internal/apperrors"
	"glamora/internal/booking"
)

// Source lists bookings for the days from..to. A zero staffID means everyone.
type Source interface {
	ListRange(ctx context.Context, from, to time.Time, staffID int64) ([]booking.Booking, error)
}

type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Row is one booking in the report.
type Row struct {
	ID       string `json:"id"`
	StaffID  int64  `json:"staffId"`
	Title    string `json:"title"`
	Customer string `json:"customer,omitempty"`
	Service  string `json:"service,omitempty"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Duration int    `json:"duration"`
	Status   string `json:"status"`
}

// Report is the booking summary for a period.
type Report struct {
	Period            Period         `json:"period"`
	TotalBookings     int            `json:"totalBookings"`
	ConfirmedBookings int            `json:"confirmedBookings"`
	CancelledBookings int            `json:"cancelledBookings"`
	BookingsByDay     map[string]int `json:"bookingsByDay"`
	TotalHours        float64        `json:"totalHours"`
	AverageDuration   float64        `json:"averageDuration"`
	Bookings          []Row          `json:"bookings"`
}

// Generate reads bookings from src and builds the report.
func Generate(ctx context.Context, src Source, from, to time.Time, staffID int64) (Report, error) {
	if from.IsZero() || to.IsZero() {
		return Report{}, apperrors.Validation("startDate and endDate are required")
	}
	if to.Before(from) {
		return Report{}, apperrors.Validation("endDate must not be before startDate")
	}
	bookings, err := src.ListRange(ctx, from, to, staffID)
	if err != nil {
		return Report{}, fmt.Errorf("list bookings: %w", err)
	}
	return Build(from, to, bookings), nil
}

// Build summarises bookings. Every booking counts toward the totals and
// hours; cancelled ones are also counted separately.
func Build(from, to time.Time, bookings []booking.Booking) Report {
	r := Report{
		Period:        Period{Start: from, End: to},
		BookingsByDay: make(map[string]int),
		Bookings:      make([]Row, 0, len(bookings)),
	}

	var minutes int
	for _, b := range bookings {
		date := b.Start().Format(time.DateOnly)
		d := int(b.Duration().Minutes())

		r.TotalBookings++
		if b.IsCancelled() {
			r.CancelledBookings++
		} else {
			r.ConfirmedBookings++
		}
		r.BookingsByDay[date]++
		minutes += d

		r.Bookings = append(r.Bookings, Row{
			ID:       b.ID,
			StaffID:  b.StaffID,
			Title:    b.Title,
			Customer: b.Customer.Name,
			Service:  b.Service,
			Date:     date,
			Time:     b.Start().Format("15:04"),
			Duration: d,
			Status:   string(b.Status),
		})
	}

	r.TotalHours = round2(float64(minutes) / 60)
	if r.TotalBookings > 0 {
		r.AverageDuration = round2(float64(minutes) / float64(r.TotalBookings))
	}
	return r
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
