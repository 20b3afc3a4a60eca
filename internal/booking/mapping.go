package booking

import (
	"fmt"
	"strings"
	"time"

	"glamora/internal/interval"
	"glamora/internal/slots"
	"glamora/internal/teamup"
)

const (
	notesHeader = "Customer Information:"
	notesMarker = "\nNotes:\n"
)

// FormatNotes renders the event notes: a customer block followed by free-form
// notes.
func FormatNotes(c Customer, notes string) string {
	var b strings.Builder
	if !c.IsZero() {
		b.WriteString(notesHeader + "\n")
		fmt.Fprintf(&b, "Name: %s\n", orNA(c.Name))
		fmt.Fprintf(&b, "Email: %s\n", orNA(c.Email))
		fmt.Fprintf(&b, "Phone: %s\n", orNA(c.Phone))
	}
	if notes != "" {
		b.WriteString(notesMarker + notes)
	}
	return b.String()
}

// ExtractNotes is the inverse of FormatNotes for the free-form part.
func ExtractNotes(formatted string) string {
	if i := strings.Index(formatted, notesMarker); i >= 0 {
		return formatted[i+len(notesMarker):]
	}
	if strings.HasPrefix(formatted, notesHeader) {
		return ""
	}
	return formatted
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// fromEvent maps a calendar event to a booking.
func fromEvent(e teamup.Event) (Booking, error) {
	iv, err := interval.New(e.Start, e.End)
	if err != nil {
		return Booking{}, fmt.Errorf("event %s: %w", e.ID, err)
	}

	b := Booking{
		ID:       e.ID,
		StaffID:  e.SubcalendarID(),
		Interval: iv,
		Title:    e.Title,
		Service:  e.Field(teamup.FieldService),
		Customer: Customer{
			Name:  e.Field(teamup.FieldCustomerName),
			Phone: e.Field(teamup.FieldCustomerPhone),
			Email: e.Field(teamup.FieldCustomerEmail),
		},
		Status:             ParseStatus(e.Field(teamup.FieldBookingStatus)),
		Notes:              ExtractNotes(e.Notes),
		Location:           e.Location,
		CancellationReason: e.Field(teamup.FieldCancellationReason),
		CancelledAt:        parseStamp(e.Field(teamup.FieldCancelledAt)),
		RescheduledAt:      parseStamp(e.Field(teamup.FieldLastRescheduled)),
		OriginalStart:      parseStamp(e.Field(teamup.FieldOriginalTime)),
		version:            e.Version,
	}
	return b, nil
}

// toEvent maps a booking to the event written to the calendar.
func toEvent(b Booking) teamup.Event {
	custom := map[string]string{
		teamup.FieldBookingStatus: string(b.Status),
	}
	set := func(k, v string) {
		if v != "" {
			custom[k] = v
		}
	}
	set(teamup.FieldCustomerName, b.Customer.Name)
	set(teamup.FieldCustomerEmail, b.Customer.Email)
	set(teamup.FieldCustomerPhone, b.Customer.Phone)
	set(teamup.FieldService, b.Service)
	set(teamup.FieldCancellationReason, b.CancellationReason)
	set(teamup.FieldCancelledAt, formatStamp(b.CancelledAt))
	set(teamup.FieldLastRescheduled, formatStamp(b.RescheduledAt))
	set(teamup.FieldOriginalTime, formatStamp(b.OriginalStart))

	return teamup.Event{
		ID:             b.ID,
		SubcalendarIDs: []int64{b.StaffID},
		Start:          b.Start(),
		End:            b.End(),
		Title:          b.Title,
		Notes:          FormatNotes(b.Customer, b.Notes),
		Location:       b.Location,
		Custom:         custom,
		Version:        b.version,
	}
}

// busyFromEvents converts a calendar snapshot for the conflict detector.
// Events with unusable times are skipped.
func busyFromEvents(events []teamup.Event) []slots.Busy {
	busy := make([]slots.Busy, 0, len(events))
	for _, e := range events {
		iv, err := interval.New(e.Start, e.End)
		if err != nil {
			continue
		}
		busy = append(busy, slots.Busy{
			ID:        e.ID,
			Interval:  iv,
			Cancelled: ParseStatus(e.Field(teamup.FieldBookingStatus)) == StatusCancelled,
		})
	}
	return busy
}

func formatStamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func parseStamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
