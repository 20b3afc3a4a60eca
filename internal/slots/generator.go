// Package slots detects booking conflicts and generates free appointment
// slots inside a working window.
package slots

import (
	"fmt"
	"iter"
	"time"

	"glamora/internal/interval"
	"glamora/internal/schedule"
)

const (
	DefaultStep          = 30 * time.Minute
	DefaultBufferMinutes = 15
)

// Slot is a bookable candidate.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SlotInfo is a compact, clock-only form used in voice replies.
type SlotInfo struct {
	Start string `json:"start"` // "10:00"
	End   string `json:"end"`   // "10:45"
}

// Generator walks a working window in fixed steps.
type Generator struct {
	// Step between candidate starts. Zero means DefaultStep.
	Step time.Duration
	// NotBefore drops candidates starting earlier. Zero disables the bound.
	NotBefore time.Time
	// NotAfter drops candidates starting later. Zero disables the bound.
	NotAfter time.Time
}

// Starts returns the ascending start times of every candidate of length
// duration that fits the window and is not blocked by conflicts.
// The sequence is lazy and can be ranged over more than once.
// A non-positive duration or step, a zero window and a window shorter than
// duration all yield nothing.
func (g Generator) Starts(window schedule.WorkingWindow, duration time.Duration, conflicts ConflictFunc) iter.Seq[time.Time] {
	step := g.Step
	if step == 0 {
		step = DefaultStep
	}

	return func(yield func(time.Time) bool) {
		if duration <= 0 || step <= 0 || window.Interval.IsZero() {
			return
		}

		end := window.Interval.End()
		for cursor := window.Interval.Start(); !cursor.Add(duration).After(end); cursor = cursor.Add(step) {
			if !g.NotBefore.IsZero() && cursor.Before(g.NotBefore) {
				continue
			}
			if !g.NotAfter.IsZero() && cursor.After(g.NotAfter) {
				return
			}

			candidate, err := interval.OfDuration(cursor, duration)
			if err != nil || !interval.Contains(window.Interval, candidate) {
				continue
			}
			if conflicts != nil && conflicts(candidate) {
				continue
			}
			if !yield(cursor) {
				return
			}
		}
	}
}

// Slots collects Starts into Slot values.
func (g Generator) Slots(window schedule.WorkingWindow, duration time.Duration, conflicts ConflictFunc) []Slot {
	var out []Slot
	for start := range g.Starts(window, duration, conflicts) {
		out = append(out, Slot{Start: start, End: start.Add(duration)})
	}
	return out
}

// ToSlotInfo converts slots to clock strings in their own location.
func ToSlotInfo(slots []Slot) []SlotInfo {
	result := make([]SlotInfo, len(slots))
	for i, s := range slots {
		result[i] = SlotInfo{
			Start: s.Start.Format("15:04"),
			End:   s.End.Format("15:04"),
		}
	}
	return result
}

// FormatDuration formats minutes for spoken replies.
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d minutes", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	unit := "hours"
	if hours == 1 {
		unit = "hour"
	}
	if mins == 0 {
		return fmt.Sprintf("%d %s", hours, unit)
	}
	return fmt.Sprintf("%d %s %d minutes", hours, unit, mins)
}
