package config

import (
	"maps"
	"slices"
	"strings"

	"glamora/internal/catalog"
	"glamora/internal/schedule"
)

// StaffMember is a bookable person. Each one owns a TeamUp subcalendar.
type StaffMember struct {
	Key             string                  `json:"key,omitempty"`
	Name            string                  `json:"name"`
	Role            string                  `json:"role,omitempty"`
	SubcalendarID   int64                   `json:"subcalendar_id"`
	Specializations []string                `json:"specializations,omitempty"`
	Schedule        schedule.WeeklySchedule `json:"-"`
}

// WorkingDays maps lowercase weekday names to "09:00-15:00" shifts.
func (m StaffMember) WorkingDays() map[string]string {
	out := make(map[string]string, len(m.Schedule))
	for wd, sh := range m.Schedule {
		out[strings.ToLower(wd.String())] = sh.String()
	}
	return out
}

func (m StaffMember) clone() StaffMember {
	m.Specializations = slices.Clone(m.Specializations)
	m.Schedule = maps.Clone(m.Schedule)
	return m
}

// Roster is the read-only staff directory. Lookups hand out copies.
type Roster struct {
	members []StaffMember
	bySub   map[int64]int
	byName  map[string]int
}

// Schedule returns the weekly schedule of the staff member owning subcalendarID.
func (r *Roster) Schedule(subcalendarID int64) (schedule.WeeklySchedule, bool) {
	m, ok := r.BySubcalendar(subcalendarID)
	if !ok {
		return nil, false
	}
	return maps.Clone(m.Schedule), true
}

func (r *Roster) BySubcalendar(id int64) (StaffMember, bool) {
	i, ok := r.bySub[id]
	if !ok {
		return StaffMember{}, false
	}
	return r.members[i].clone(), true
}

// ByName matches ignoring case and diacritics ("livia" finds "Lívia").
func (r *Roster) ByName(name string) (StaffMember, bool) {
	i, ok := r.byName[catalog.NormalizeName(name)]
	if !ok {
		return StaffMember{}, false
	}
	return r.members[i].clone(), true
}

// IDs lists every subcalendar id, ordered by staff name.
func (r *Roster) IDs() []int64 {
	ids := make([]int64, len(r.members))
	for i, m := range r.members {
		ids[i] = m.SubcalendarID
	}
	return ids
}

func (r *Roster) All() []StaffMember {
	out := make([]StaffMember, len(r.members))
	for i, m := range r.members {
		out[i] = m.clone()
	}
	return out
}
