package schedule

import (
	"fmt"
	"time"

	"glamora/internal/interval"
)

// Resolver turns weekly schedules into working windows in the salon's zone.
type Resolver struct {
	loc   *time.Location
	hours *BusinessHours
}

// NewResolver creates a resolver. A nil hours value means the salon never
// restricts staff shifts.
func NewResolver(loc *time.Location, hours *BusinessHours) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{loc: loc, hours: hours}
}

// Location returns the salon time zone.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// IsClosed reports whether the salon is closed on date, with the holiday name
// when the closure is a holiday.
func (r *Resolver) IsClosed(date time.Time) (bool, string) {
	if r.hours == nil {
		return false, ""
	}
	date = date.In(r.loc)
	if name, ok := r.hours.Holidays[date.Format("2006-01-02")]; ok {
		return true, name
	}
	if _, ok := r.hours.Open[date.Weekday()]; !ok {
		return true, ""
	}
	return false, ""
}

// Resolve returns the working window of staffID on date. ok is false when the
// staff member does not work that day or the salon is closed. A malformed
// shift (start not before end) is reported as a config error.
// The staff shift is clipped to the salon's opening hours.
func (r *Resolver) Resolve(staffID int64, ws WeeklySchedule, date time.Time) (WorkingWindow, bool, error) {
	date = date.In(r.loc)

	if closed, _ := r.IsClosed(date); closed {
		return WorkingWindow{}, false, nil
	}

	shift, ok := ws[date.Weekday()]
	if !ok {
		return WorkingWindow{}, false, nil
	}
	if err := shift.Validate(); err != nil {
		return WorkingWindow{}, false, fmt.Errorf("staff %d %s: %w", staffID, date.Weekday(), err)
	}

	start, end := shift.Start, shift.End
	if r.hours != nil {
		open := r.hours.Open[date.Weekday()]
		if err := open.Validate(); err != nil {
			return WorkingWindow{}, false, fmt.Errorf("business hours %s: %w", date.Weekday(), err)
		}
		start = max(start, open.Start)
		end = min(end, open.End)
		if start >= end {
			return WorkingWindow{}, false, nil
		}
	}

	iv, err := interval.New(start.On(date), end.On(date))
	if err != nil {
		return WorkingWindow{}, false, nil
	}

	return WorkingWindow{StaffID: staffID, Interval: iv}, true, nil
}
