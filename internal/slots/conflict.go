package slots

import "glamora/internal/interval"

// Busy is an existing booking as seen by the conflict detector.
type Busy struct {
	ID        string
	Interval  interval.Interval
	Cancelled bool
}

// Conflicts reports whether candidate overlaps any active busy entry after
// the entry is widened by bufferMinutes. The entry whose ID equals excludeID
// is ignored, so a booking never conflicts with itself on reschedule.
// The candidate itself is not expanded.
func Conflicts(candidate interval.Interval, busy []Busy, bufferMinutes int, excludeID string) bool {
	for _, b := range busy {
		if blocks(candidate, b, bufferMinutes, excludeID) {
			return true
		}
	}
	return false
}

// FindConflicts returns every busy entry that blocks candidate.
func FindConflicts(candidate interval.Interval, busy []Busy, bufferMinutes int, excludeID string) []Busy {
	var found []Busy
	for _, b := range busy {
		if blocks(candidate, b, bufferMinutes, excludeID) {
			found = append(found, b)
		}
	}
	return found
}

func blocks(candidate interval.Interval, b Busy, bufferMinutes int, excludeID string) bool {
	if b.Cancelled || (excludeID != "" && b.ID == excludeID) {
		return false
	}
	return interval.Overlaps(candidate, interval.Expand(b.Interval, bufferMinutes))
}

// ConflictFunc reports whether a candidate interval is blocked.
type ConflictFunc func(interval.Interval) bool

// Against returns a ConflictFunc bound to a snapshot of busy entries.
func Against(busy []Busy, bufferMinutes int, excludeID string) ConflictFunc {
	return func(candidate interval.Interval) bool {
		return Conflicts(candidate, busy, bufferMinutes, excludeID)
	}
}
