// Package interval models half-open [start, end) time ranges at minute resolution.
package interval

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmpty is returned when start is not strictly before end.
var ErrEmpty = errors.New("interval start must be before end")

// Interval is an immutable half-open time range [Start, End).
// Sub-minute precision is truncated at construction.
type Interval struct {
	start time.Time
	end   time.Time
}

// New builds an interval, truncating both bounds to the minute.
func New(start, end time.Time) (Interval, error) {
	start = start.Truncate(time.Minute)
	end = end.Truncate(time.Minute)
	if !start.Before(end) {
		return Interval{}, fmt.Errorf("%w: %s - %s", ErrEmpty, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Interval{start: start, end: end}, nil
}

// OfDuration builds [start, start+d).
func OfDuration(start time.Time, d time.Duration) (Interval, error) {
	return New(start, start.Add(d))
}

// MustNew is New for values known to be valid, such as test fixtures.
func MustNew(start, end time.Time) Interval {
	iv, err := New(start, end)
	if err != nil {
		panic(err)
	}
	return iv
}

func (iv Interval) Start() time.Time { return iv.start }

func (iv Interval) End() time.Time { return iv.end }

func (iv Interval) Duration() time.Duration { return iv.end.Sub(iv.start) }

// IsZero reports whether the interval is the zero value (or otherwise empty).
func (iv Interval) IsZero() bool { return !iv.start.Before(iv.end) }

// Equal compares bounds as instants, ignoring location.
func (iv Interval) Equal(other Interval) bool {
	return iv.start.Equal(other.start) && iv.end.Equal(other.end)
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.start.Format("2006-01-02 15:04"), iv.end.Format("15:04"))
}

// Overlaps reports whether a and b share any instant.
// Intervals that only touch at an endpoint do not overlap.
func Overlaps(a, b Interval) bool {
	return a.start.Before(b.end) && b.start.Before(a.end)
}

// Contains reports whether inner lies within outer. The end bound is closed:
// an inner interval ending exactly at outer's end is contained.
func Contains(outer, inner Interval) bool {
	return !inner.start.Before(outer.start) && !inner.end.After(outer.end)
}

// Expand widens iv by marginMinutes on both sides.
func Expand(iv Interval, marginMinutes int) Interval {
	margin := time.Duration(marginMinutes) * time.Minute
	return Interval{start: iv.start.Add(-margin), end: iv.end.Add(margin)}
}
