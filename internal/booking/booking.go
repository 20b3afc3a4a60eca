// Package booking coordinates the booking lifecycle against the external
// calendar: create, update, cancel and reschedule, plus availability.
package booking

import (
	"encoding/json"
	"time"

	"glamora/internal/apperrors"
	"glamora/internal/interval"
)

// Error sentinels re-exported for callers of this package.
var (
	ErrValidation      = apperrors.ErrValidation
	ErrSlotUnavailable = apperrors.ErrSlotUnavailable
	ErrNotFound        = apperrors.ErrNotFound
	ErrUpstream        = apperrors.ErrUpstream
	ErrConfig          = apperrors.ErrConfig
)

// Status represents the lifecycle state of a booking.
type Status string

const (
	StatusRequested   Status = "requested"
	StatusConfirmed   Status = "confirmed"
	StatusCancelled   Status = "cancelled"
	StatusRescheduled Status = "rescheduled"
)

// transitions is the allowed lifecycle graph. Cancelled is terminal;
// Rescheduled always settles back to Confirmed.
var transitions = map[Status][]Status{
	StatusRequested:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed:   {StatusConfirmed, StatusRescheduled, StatusCancelled},
	StatusRescheduled: {StatusConfirmed},
	StatusCancelled:   {},
}

// CanTransition checks if transition is allowed.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// ParseStatus maps a stored booking_status value. Empty means confirmed,
// matching events created without the field.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusCancelled:
		return StatusCancelled
	case StatusRequested:
		return StatusRequested
	default:
		return StatusConfirmed
	}
}

// Customer is the contact attached to a booking.
type Customer struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

func (c Customer) IsZero() bool {
	return c == Customer{}
}

// Booking is one appointment, backed by a calendar event.
type Booking struct {
	ID                 string            `json:"id"`
	StaffID            int64             `json:"staffId"`
	Interval           interval.Interval `json:"-"`
	Title              string            `json:"title"`
	Service            string            `json:"service,omitempty"`
	Customer           Customer          `json:"customer"`
	Status             Status            `json:"status"`
	Notes              string            `json:"notes,omitempty"`
	Location           string            `json:"location,omitempty"`
	CancellationReason string            `json:"cancellationReason,omitempty"`
	CancelledAt        *time.Time        `json:"cancelledAt,omitempty"`
	RescheduledAt      *time.Time        `json:"rescheduledAt,omitempty"`
	OriginalStart      *time.Time        `json:"originalStart,omitempty"`

	version string
}

func (b Booking) Start() time.Time { return b.Interval.Start() }

func (b Booking) End() time.Time { return b.Interval.End() }

func (b Booking) Duration() time.Duration { return b.Interval.Duration() }

func (b Booking) IsCancelled() bool { return b.Status == StatusCancelled }

// MarshalJSON adds the interval as start, end and durationMinutes.
func (b Booking) MarshalJSON() ([]byte, error) {
	type plain Booking
	return json.Marshal(struct {
		plain
		Start           time.Time `json:"start"`
		End             time.Time `json:"end"`
		DurationMinutes int       `json:"durationMinutes"`
	}{plain(b), b.Start(), b.End(), int(b.Duration().Minutes())})
}

// CreateRequest holds the caller input for Create. Duration wins over
// ServiceName; when both are empty the policy default applies.
type CreateRequest struct {
	Title       string
	StaffID     int64
	Start       time.Time
	Duration    time.Duration
	ServiceName string
	Customer    Customer
	Notes       string
	Location    string
}

// Patch names the fields Update may change. Nil fields are left untouched.
type Patch struct {
	Title    *string
	Start    *time.Time
	Duration *time.Duration
	Customer *Customer
	Notes    *string
	Location *string
	Status   *Status
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Start == nil && p.Duration == nil && p.Customer == nil &&
		p.Notes == nil && p.Location == nil && p.Status == nil
}

func (p Patch) movesTime() bool {
	return p.Start != nil || p.Duration != nil
}

// SlotRequest asks for free starts of one staff member on one day.
type SlotRequest struct {
	StaffID     int64
	Date        time.Time
	Duration    time.Duration
	ServiceName string
	// Step between candidate starts; zero uses the policy step.
	Step time.Duration
	// BufferMinutes overrides the policy buffer when set.
	BufferMinutes *int
}
