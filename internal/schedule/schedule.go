// Package schedule resolves weekly staff schedules into concrete working
// windows for a calendar date.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"glamora/internal/apperrors"
	"glamora/internal/interval"
)

// Clock is a wall-clock time of day in minutes since midnight.
type Clock int

// ParseClock parses "9:00" or "09:00".
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %q", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}

	return Clock(hour*60 + minute), nil
}

// MustClock is ParseClock for literals.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// On anchors the clock to date's calendar day in date's location.
func (c Clock) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, int(c)/60, int(c)%60, 0, 0, date.Location())
}

// Shift is a {start, end} clock pair for one weekday.
type Shift struct {
	Start Clock
	End   Clock
}

// NewShift parses a shift from two clock strings.
func NewShift(start, end string) (Shift, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Shift{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Shift{}, err
	}
	return Shift{Start: s, End: e}, nil
}

func (s Shift) Validate() error {
	if s.Start >= s.End {
		return apperrors.Config("shift start %s must be before end %s", s.Start, s.End)
	}
	return nil
}

func (s Shift) String() string {
	return s.Start.String() + "-" + s.End.String()
}

// WeeklySchedule maps a weekday to its shift. A missing weekday is a day off.
type WeeklySchedule map[time.Weekday]Shift

// WorkingWindow is the bookable range of one staff member on one day.
type WorkingWindow struct {
	StaffID  int64
	Interval interval.Interval
}

// BusinessHours are the salon-wide opening hours. A weekday missing from Open
// is a closed day; Holidays close the salon on specific dates (YYYY-MM-DD).
type BusinessHours struct {
	Open     map[time.Weekday]Shift
	Holidays map[string]string
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday maps "monday".."sunday" (case-insensitive) to time.Weekday.
func ParseWeekday(name string) (time.Weekday, error) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", name)
	}
	return d, nil
}
