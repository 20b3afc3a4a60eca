// Package voice answers tool calls from the voice assistant. Staff and
// services are referenced by name and replies are short spoken sentences.
package voice

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"glamora/internal/apperrors"
	"glamora/internal/booking"
	"glamora/internal/config"
	"glamora/internal/slots"
)

// Tool names accepted by Call.
const (
	ToolCheckAvailability = "check_availability"
	ToolAvailableSlots    = "get_available_slots"
	ToolCreateBooking     = "create_booking"
	ToolReschedule        = "reschedule_booking"
	ToolCancel            = "cancel_booking"
)

const (
	spokenDate = "2.1.2006"
	spokenTime = "15:04"

	msgAvailable = "Termín {date} o {time} u {staff} je voľný."
	msgSlots     = "Voľné termíny u {staff} dňa {date}: {slots}."
	msgNoSlots   = "{staff} nemá dňa {date} žiadny voľný termín."
)

// Bookings is the part of booking.Service the assistant uses.
type Bookings interface {
	Location() *time.Location
	CheckAvailability(ctx context.Context, staffID int64, start time.Time, duration time.Duration, excludeID string) (bool, error)
	ComputeAvailableSlots(ctx context.Context, req booking.SlotRequest) ([]slots.Slot, error)
	Create(ctx context.Context, req booking.CreateRequest) (booking.Booking, error)
	Reschedule(ctx context.Context, id string, newStart time.Time, newDuration *time.Duration) (booking.Booking, error)
	Cancel(ctx context.Context, id, reason string) (booking.Booking, error)
}

// StaffLookup finds staff by spoken name.
type StaffLookup interface {
	ByName(name string) (config.StaffMember, bool)
	BySubcalendar(id int64) (config.StaffMember, bool)
}

// DurationLookup resolves a service name.
type DurationLookup interface {
	DurationOrDefault(name string) (time.Duration, bool)
}

// Request carries the tool arguments. Date is YYYY-MM-DD, Time is HH:MM in
// the salon time zone.
type Request struct {
	StaffName       string `json:"staff_name"`
	Service         string `json:"service"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	CustomerName    string `json:"customer_name"`
	CustomerPhone   string `json:"customer_phone"`
	CustomerEmail   string `json:"customer_email"`
	Notes           string `json:"notes"`
	BookingID       string `json:"booking_id"`
	Reason          string `json:"reason"`
}

// Response is returned to the assistant. Message is read out verbatim.
type Response struct {
	Success   bool             `json:"success"`
	Message   string           `json:"message"`
	Available *bool            `json:"available,omitempty"`
	Slots     []slots.SlotInfo `json:"slots,omitempty"`
	BookingID string           `json:"booking_id,omitempty"`
}

// Handler dispatches tool calls.
type Handler struct {
	bookings  Bookings
	staff     StaffLookup
	services  DurationLookup
	templates config.Templates
	log       zerolog.Logger
}

func NewHandler(bookings Bookings, staff StaffLookup, services DurationLookup, templates config.Templates, log zerolog.Logger) *Handler {
	return &Handler{
		bookings:  bookings,
		staff:     staff,
		services:  services,
		templates: templates,
		log:       log.With().Str("component", "voice").Logger(),
	}
}

// Call runs one tool. Business outcomes such as a taken slot come back as an
// unsuccessful Response; invalid arguments and upstream failures are errors.
func (h *Handler) Call(ctx context.Context, tool string, req Request) (Response, error) {
	h.log.Debug().Str("tool", tool).Str("staff", req.StaffName).Str("date", req.Date).Str("time", req.Time).Msg("tool call")

	switch tool {
	case ToolCheckAvailability:
		return h.checkAvailability(ctx, req)
	case ToolAvailableSlots:
		return h.availableSlots(ctx, req)
	case ToolCreateBooking:
		return h.createBooking(ctx, req)
	case ToolReschedule:
		return h.reschedule(ctx, req)
	case ToolCancel:
		return h.cancel(ctx, req)
	default:
		return Response{}, apperrors.Validation("unknown tool %q", tool)
	}
}

func (h *Handler) checkAvailability(ctx context.Context, req Request) (Response, error) {
	staff, err := h.lookupStaff(req.StaffName)
	if err != nil {
		return Response{}, err
	}
	start, err := h.parseStart(req.Date, req.Time)
	if err != nil {
		return Response{}, err
	}
	duration := h.duration(req)

	free, err := h.bookings.CheckAvailability(ctx, staff.SubcalendarID, start, duration, "")
	if err != nil {
		return Response{}, err
	}
	vars := placeholders(start, staff.Name, req.Service)
	if !free {
		return Response{Available: &free, Message: render(h.templates.StaffUnavailable, vars)}, nil
	}
	return Response{Success: true, Available: &free, Message: render(msgAvailable, vars)}, nil
}

func (h *Handler) availableSlots(ctx context.Context, req Request) (Response, error) {
	staff, err := h.lookupStaff(req.StaffName)
	if err != nil {
		return Response{}, err
	}
	date, err := h.parseDate(req.Date)
	if err != nil {
		return Response{}, err
	}

	got, err := h.bookings.ComputeAvailableSlots(ctx, booking.SlotRequest{
		StaffID:     staff.SubcalendarID,
		Date:        date,
		Duration:    time.Duration(req.DurationMinutes) * time.Minute,
		ServiceName: req.Service,
	})
	if err != nil {
		return Response{}, err
	}

	vars := placeholders(date, staff.Name, req.Service)
	if len(got) == 0 {
		return Response{Success: true, Message: render(msgNoSlots, vars), Slots: []slots.SlotInfo{}}, nil
	}
	info := slots.ToSlotInfo(got)
	starts := make([]string, len(info))
	for i, s := range info {
		starts[i] = s.Start
	}
	vars["{slots}"] = strings.Join(starts, ", ")
	return Response{Success: true, Message: render(msgSlots, vars), Slots: info}, nil
}

func (h *Handler) createBooking(ctx context.Context, req Request) (Response, error) {
	staff, err := h.lookupStaff(req.StaffName)
	if err != nil {
		return Response{}, err
	}
	start, err := h.parseStart(req.Date, req.Time)
	if err != nil {
		return Response{}, err
	}

	title := strings.TrimSpace(req.Service)
	if name := strings.TrimSpace(req.CustomerName); name != "" {
		if title == "" {
			title = name
		} else {
			title += " - " + name
		}
	}

	b, err := h.bookings.Create(ctx, booking.CreateRequest{
		Title:       title,
		StaffID:     staff.SubcalendarID,
		Start:       start,
		Duration:    time.Duration(req.DurationMinutes) * time.Minute,
		ServiceName: req.Service,
		Customer: booking.Customer{
			Name:  req.CustomerName,
			Phone: req.CustomerPhone,
			Email: req.CustomerEmail,
		},
		Notes: req.Notes,
	})
	if resp, handled := h.unavailable(err, start, staff.Name, req.Service); handled {
		return resp, nil
	}
	if err != nil {
		return Response{}, err
	}

	vars := placeholders(b.Start(), staff.Name, b.Service)
	return Response{Success: true, BookingID: b.ID, Message: render(h.templates.ConfirmBooking, vars)}, nil
}

func (h *Handler) reschedule(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.BookingID) == "" {
		return Response{}, apperrors.Validation("booking_id is required")
	}
	start, err := h.parseStart(req.Date, req.Time)
	if err != nil {
		return Response{}, err
	}
	var duration *time.Duration
	if req.DurationMinutes > 0 {
		d := time.Duration(req.DurationMinutes) * time.Minute
		duration = &d
	}

	b, err := h.bookings.Reschedule(ctx, req.BookingID, start, duration)
	if resp, handled := h.unavailable(err, start, req.StaffName, req.Service); handled {
		return resp, nil
	}
	if err != nil {
		return Response{}, err
	}

	vars := placeholders(b.Start(), h.staffName(b.StaffID), b.Service)
	return Response{Success: true, BookingID: b.ID, Message: render(h.templates.Rescheduled, vars)}, nil
}

func (h *Handler) cancel(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.BookingID) == "" {
		return Response{}, apperrors.Validation("booking_id is required")
	}
	b, err := h.bookings.Cancel(ctx, req.BookingID, req.Reason)
	if err != nil {
		return Response{}, err
	}
	vars := placeholders(b.Start(), h.staffName(b.StaffID), b.Service)
	return Response{Success: true, BookingID: b.ID, Message: render(h.templates.Cancelled, vars)}, nil
}

// unavailable turns a slot error into a spoken refusal.
func (h *Handler) unavailable(err error, start time.Time, staff, service string) (Response, bool) {
	if !errors.Is(err, apperrors.ErrSlotUnavailable) {
		return Response{}, false
	}
	tmpl := h.templates.StaffUnavailable
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		if reason, _ := appErr.Details["reason"].(string); reason == "outside_hours" {
			tmpl = h.templates.OutsideHours
		}
	}
	return Response{Message: render(tmpl, placeholders(start, staff, service))}, true
}

func (h *Handler) lookupStaff(name string) (config.StaffMember, error) {
	if strings.TrimSpace(name) == "" {
		return config.StaffMember{}, apperrors.Validation("staff_name is required")
	}
	m, ok := h.staff.ByName(name)
	if !ok {
		return config.StaffMember{}, apperrors.Validation("unknown staff %q", name)
	}
	return m, nil
}

func (h *Handler) staffName(id int64) string {
	if m, ok := h.staff.BySubcalendar(id); ok {
		return m.Name
	}
	return ""
}

func (h *Handler) duration(req Request) time.Duration {
	if req.DurationMinutes > 0 {
		return time.Duration(req.DurationMinutes) * time.Minute
	}
	d, _ := h.services.DurationOrDefault(req.Service)
	return d
}

func (h *Handler) parseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), h.bookings.Location())
	if err != nil {
		return time.Time{}, apperrors.Validation("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

func (h *Handler) parseStart(date, clock string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04", strings.TrimSpace(date)+" "+strings.TrimSpace(clock), h.bookings.Location())
	if err != nil {
		return time.Time{}, apperrors.Validation("invalid date or time %q %q", date, clock)
	}
	return t, nil
}

func placeholders(t time.Time, staff, service string) map[string]string {
	return map[string]string{
		"{date}":    t.Format(spokenDate),
		"{time}":    t.Format(spokenTime),
		"{staff}":   staff,
		"{service}": service,
	}
}

func render(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, k, v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// Describe lists the tools for the API index.
func Describe() map[string]string {
	return map[string]string{
		ToolCheckAvailability: "staff_name, date, time, service|duration_minutes",
		ToolAvailableSlots:    "staff_name, date, service|duration_minutes",
		ToolCreateBooking:     "staff_name, date, time, service, customer_name, customer_phone",
		ToolReschedule:        "booking_id, date, time, duration_minutes?",
		ToolCancel:            "booking_id, reason?",
	}
}
