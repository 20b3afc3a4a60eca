// Package teamup is a client for the TeamUp calendar REST API.
package teamup

import (
	"fmt"
	"strings"
	"time"
)

// Custom field keys stored on every booking event.
const (
	FieldCustomerName       = "customer_name"
	FieldCustomerEmail      = "customer_email"
	FieldCustomerPhone      = "customer_phone"
	FieldBookingStatus      = "booking_status"
	FieldCancellationReason = "cancellation_reason"
	FieldCancelledAt        = "cancelled_at"
	FieldLastRescheduled    = "last_rescheduled"
	FieldOriginalTime       = "original_time"
	FieldService            = "service"
)

// Event is a TeamUp event with its custom fields flattened to strings.
type Event struct {
	ID             string            `json:"id,omitempty"`
	SubcalendarIDs []int64           `json:"subcalendar_ids"`
	Start          time.Time         `json:"start"`
	End            time.Time         `json:"end"`
	Title          string            `json:"title"`
	Notes          string            `json:"notes,omitempty"`
	Location       string            `json:"location,omitempty"`
	Custom         map[string]string `json:"custom,omitempty"`
	Version        string            `json:"version,omitempty"`
}

// SubcalendarID returns the first subcalendar the event belongs to.
func (e Event) SubcalendarID() int64 {
	if len(e.SubcalendarIDs) == 0 {
		return 0
	}
	return e.SubcalendarIDs[0]
}

// Field returns a custom field value or "".
func (e Event) Field(key string) string {
	if e.Custom == nil {
		return ""
	}
	return e.Custom[key]
}

// Subcalendar is one TeamUp subcalendar; in the salon each one is a staff member.
type Subcalendar struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
	Color  int    `json:"color"`
}

// ListQuery selects events by day range, optionally narrowed to one
// subcalendar or a free-text query.
type ListQuery struct {
	From          time.Time
	To            time.Time
	SubcalendarID int64
	Query         string
}

// wireEvent is the JSON shape TeamUp sends and accepts.
type wireEvent struct {
	ID             string         `json:"id,omitempty"`
	SubcalendarIDs []int64        `json:"subcalendar_ids"`
	StartDt        string         `json:"start_dt"`
	EndDt          string         `json:"end_dt"`
	AllDay         bool           `json:"all_day"`
	Title          string         `json:"title"`
	Notes          string         `json:"notes,omitempty"`
	Location       string         `json:"location,omitempty"`
	Custom         map[string]any `json:"custom,omitempty"`
	Version        string         `json:"version,omitempty"`
}

const localLayout = "2006-01-02T15:04:05"

func toWire(e Event, loc *time.Location) wireEvent {
	w := wireEvent{
		ID:             e.ID,
		SubcalendarIDs: e.SubcalendarIDs,
		StartDt:        e.Start.In(loc).Format(time.RFC3339),
		EndDt:          e.End.In(loc).Format(time.RFC3339),
		Title:          e.Title,
		Notes:          e.Notes,
		Location:       e.Location,
		Version:        e.Version,
	}
	if len(e.Custom) > 0 {
		w.Custom = make(map[string]any, len(e.Custom))
		for k, v := range e.Custom {
			w.Custom[k] = v
		}
	}
	return w
}

func fromWire(w wireEvent, loc *time.Location) (Event, error) {
	start, err := parseTime(w.StartDt, loc)
	if err != nil {
		return Event{}, fmt.Errorf("event %s start_dt: %w", w.ID, err)
	}
	end, err := parseTime(w.EndDt, loc)
	if err != nil {
		return Event{}, fmt.Errorf("event %s end_dt: %w", w.ID, err)
	}

	e := Event{
		ID:             w.ID,
		SubcalendarIDs: w.SubcalendarIDs,
		Start:          start,
		End:            end,
		Title:          w.Title,
		Notes:          w.Notes,
		Location:       w.Location,
		Version:        w.Version,
	}
	if len(w.Custom) > 0 {
		e.Custom = make(map[string]string, len(w.Custom))
		for k, v := range w.Custom {
			e.Custom[k] = customString(v)
		}
	}
	return e, nil
}

// parseTime accepts RFC3339 and offset-less local timestamps.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	return time.ParseInLocation(localLayout, s, loc)
}

// customString flattens TeamUp custom field values. Choice fields arrive as
// arrays and are joined.
func customString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, p := range val {
			parts = append(parts, customString(p))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(val)
	}
}
