package config

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"glamora/internal/apperrors"
	"glamora/internal/catalog"
	"glamora/internal/schedule"
)

// ShiftConfig is a "HH:MM" working range for one weekday.
type ShiftConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// OpeningConfig is the salon's opening range for one weekday.
type OpeningConfig struct {
	Open   string `yaml:"open"`
	Close  string `yaml:"close"`
	Closed bool   `yaml:"closed"`
}

// HolidayConfig closes the salon for a whole day.
type HolidayConfig struct {
	Date string `yaml:"date"` // "2026-12-24"
	Name string `yaml:"name"`
}

// StaffConfig describes one staff member and their weekly shifts keyed by
// lowercase weekday name.
type StaffConfig struct {
	ID              string                 `yaml:"id"`
	Name            string                 `yaml:"name"`
	Role            string                 `yaml:"role"`
	SubcalendarID   int64                  `yaml:"subcalendar_id"`
	Specializations []string               `yaml:"specializations"`
	Schedule        map[string]ShiftConfig `yaml:"schedule"`
}

// ServiceConfig is one catalog entry.
type ServiceConfig struct {
	Name            string `yaml:"name"`
	DurationMinutes int    `yaml:"duration_minutes"`
	Category        string `yaml:"category"`
	Group           string `yaml:"group"`
}

// BookingRules are the booking-window and conflict policy constants.
type BookingRules struct {
	MinAdvanceMinutes      int  `yaml:"min_advance_minutes"`
	MaxAdvanceMinutes      int  `yaml:"max_advance_minutes"`
	BufferMinutes          *int `yaml:"buffer_minutes"`
	AllowOverbooking       bool `yaml:"allow_overbooking"`
	DefaultDurationMinutes int  `yaml:"default_duration_minutes"`
	SlotStepMinutes        int  `yaml:"slot_step_minutes"`
}

// Templates are the voice assistant's reply templates. Placeholders:
// {date}, {time}, {staff}, {service}.
type Templates struct {
	ConfirmBooking   string `yaml:"confirm_booking"`
	StaffUnavailable string `yaml:"staff_unavailable"`
	OutsideHours     string `yaml:"outside_hours"`
	Cancelled        string `yaml:"cancelled"`
	Rescheduled      string `yaml:"rescheduled"`
}

// Salon is the root of salon.yaml. It is loaded once and never modified.
type Salon struct {
	Name          string                   `yaml:"name"`
	Timezone      string                   `yaml:"timezone"`
	BusinessHours map[string]OpeningConfig `yaml:"business_hours"`
	Holidays      []HolidayConfig          `yaml:"holidays"`
	Rules         BookingRules             `yaml:"booking_rules"`
	Staff         []StaffConfig            `yaml:"staff"`
	Services      []ServiceConfig          `yaml:"services"`
	Templates     Templates                `yaml:"templates"`

	loc *time.Location
}

// LoadSalon loads and validates salon.yaml.
func LoadSalon(path string) (*Salon, error) {
	if path == "" {
		path = "configs/salon.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read salon config: %w", err)
	}
	return ParseSalon(data)
}

// ParseSalon decodes and validates salon YAML. Unknown keys are rejected.
func ParseSalon(data []byte) (*Salon, error) {
	data = []byte(os.ExpandEnv(string(data)))

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Salon
	if err := dec.Decode(&s); err != nil {
		return nil, apperrors.Config("parse salon config: %v", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the configuration and resolves the time zone.
func (s *Salon) Validate() error {
	tz := s.Timezone
	if tz == "" {
		tz = "Europe/Bratislava"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return apperrors.Config("timezone: unknown zone %q", tz)
	}
	s.loc = loc

	for day, o := range s.BusinessHours {
		prefix := "business_hours." + day
		if _, err := schedule.ParseWeekday(day); err != nil {
			return apperrors.Config("%s: %v", prefix, err)
		}
		if o.Closed {
			continue
		}
		if _, err := validateShift(o.Open, o.Close, prefix); err != nil {
			return err
		}
	}

	for i, h := range s.Holidays {
		if _, err := time.Parse("2006-01-02", h.Date); err != nil {
			return apperrors.Config("holidays[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
	}

	if err := s.validateRules(); err != nil {
		return err
	}

	if len(s.Staff) == 0 {
		return apperrors.Config("no staff defined")
	}
	ids := make(map[string]bool)
	subs := make(map[int64]bool)
	names := make(map[string]bool)
	for i, st := range s.Staff {
		if st.Name == "" {
			return apperrors.Config("staff[%d]: name is required", i)
		}
		key := catalog.NormalizeName(st.Name)
		if names[key] {
			return apperrors.Config("staff[%d]: duplicate name '%s'", i, st.Name)
		}
		names[key] = true

		if st.ID != "" {
			if ids[st.ID] {
				return apperrors.Config("staff[%d]: duplicate id '%s'", i, st.ID)
			}
			ids[st.ID] = true
		}

		if st.SubcalendarID <= 0 {
			return apperrors.Config("staff[%d]: subcalendar_id must be positive, got %d", i, st.SubcalendarID)
		}
		if subs[st.SubcalendarID] {
			return apperrors.Config("staff[%d]: duplicate subcalendar_id %d", i, st.SubcalendarID)
		}
		subs[st.SubcalendarID] = true

		for day, sh := range st.Schedule {
			prefix := fmt.Sprintf("staff[%d].schedule.%s", i, day)
			if _, err := schedule.ParseWeekday(day); err != nil {
				return apperrors.Config("%s: %v", prefix, err)
			}
			if _, err := validateShift(sh.Start, sh.End, prefix); err != nil {
				return err
			}
		}
	}

	for i, svc := range s.Services {
		if svc.Name == "" {
			return apperrors.Config("services[%d]: name is required", i)
		}
		if svc.DurationMinutes <= 0 {
			return apperrors.Config("services[%d]: duration_minutes must be positive", i)
		}
	}

	return nil
}

func (s *Salon) validateRules() error {
	r := s.Rules
	if r.MinAdvanceMinutes < 0 {
		return apperrors.Config("booking_rules.min_advance_minutes cannot be negative")
	}
	if r.MaxAdvanceMinutes < 0 {
		return apperrors.Config("booking_rules.max_advance_minutes cannot be negative")
	}
	if r.MaxAdvanceMinutes > 0 && r.MaxAdvanceMinutes < r.MinAdvanceMinutes {
		return apperrors.Config("booking_rules: max_advance_minutes must not be less than min_advance_minutes")
	}
	if r.BufferMinutes != nil && *r.BufferMinutes < 0 {
		return apperrors.Config("booking_rules.buffer_minutes cannot be negative")
	}
	if r.DefaultDurationMinutes < 0 {
		return apperrors.Config("booking_rules.default_duration_minutes cannot be negative")
	}
	if r.SlotStepMinutes < 0 {
		return apperrors.Config("booking_rules.slot_step_minutes cannot be negative")
	}
	return nil
}

// validateShift parses a start/end pair and requires start before end.
func validateShift(start, end, prefix string) (schedule.Shift, error) {
	if start == "" || end == "" {
		return schedule.Shift{}, apperrors.Config("%s: start and end are required", prefix)
	}
	sh, err := schedule.NewShift(start, end)
	if err != nil {
		return schedule.Shift{}, apperrors.Config("%s: %v, expected HH:MM", prefix, err)
	}
	if err := sh.Validate(); err != nil {
		return schedule.Shift{}, apperrors.Config("%s: end must be after start", prefix)
	}
	return sh, nil
}

// Location is the salon time zone. Valid after Validate.
func (s *Salon) Location() *time.Location {
	if s.loc == nil {
		return time.Local
	}
	return s.loc
}

// Hours converts business hours and holidays for the schedule resolver.
// Nil when no business hours are configured.
func (s *Salon) Hours() *schedule.BusinessHours {
	if len(s.BusinessHours) == 0 {
		return nil
	}
	bh := &schedule.BusinessHours{
		Open:     make(map[time.Weekday]schedule.Shift),
		Holidays: make(map[string]string, len(s.Holidays)),
	}
	for day, o := range s.BusinessHours {
		if o.Closed {
			continue
		}
		wd, _ := schedule.ParseWeekday(day)
		sh, _ := schedule.NewShift(o.Open, o.Close)
		bh.Open[wd] = sh
	}
	for _, h := range s.Holidays {
		bh.Holidays[h.Date] = h.Name
	}
	return bh
}

// ServiceList converts service entries for the catalog.
func (s *Salon) ServiceList() []catalog.Service {
	out := make([]catalog.Service, 0, len(s.Services))
	for _, svc := range s.Services {
		out = append(out, catalog.Service{
			Name:     svc.Name,
			Duration: time.Duration(svc.DurationMinutes) * time.Minute,
			Category: svc.Category,
			Group:    svc.Group,
		})
	}
	return out
}

func (s *Salon) MinAdvance() time.Duration {
	return time.Duration(s.Rules.MinAdvanceMinutes) * time.Minute
}

// MaxAdvance defaults to 30 days.
func (s *Salon) MaxAdvance() time.Duration {
	if s.Rules.MaxAdvanceMinutes <= 0 {
		return 30 * 24 * time.Hour
	}
	return time.Duration(s.Rules.MaxAdvanceMinutes) * time.Minute
}

// BufferMinutes defaults to 15 when unset. Zero is a valid explicit value.
func (s *Salon) BufferMinutes() int {
	if s.Rules.BufferMinutes == nil {
		return 15
	}
	return *s.Rules.BufferMinutes
}

func (s *Salon) DefaultDuration() time.Duration {
	if s.Rules.DefaultDurationMinutes <= 0 {
		return 60 * time.Minute
	}
	return time.Duration(s.Rules.DefaultDurationMinutes) * time.Minute
}

func (s *Salon) SlotStep() time.Duration {
	if s.Rules.SlotStepMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(s.Rules.SlotStepMinutes) * time.Minute
}

// Roster builds the immutable staff directory.
func (s *Salon) Roster() *Roster {
	r := &Roster{
		bySub:  make(map[int64]int, len(s.Staff)),
		byName: make(map[string]int, len(s.Staff)),
	}
	for _, st := range s.Staff {
		ws := make(schedule.WeeklySchedule, len(st.Schedule))
		for day, sh := range st.Schedule {
			wd, _ := schedule.ParseWeekday(day)
			shift, _ := schedule.NewShift(sh.Start, sh.End)
			ws[wd] = shift
		}
		m := StaffMember{
			Key:             st.ID,
			Name:            st.Name,
			Role:            st.Role,
			SubcalendarID:   st.SubcalendarID,
			Specializations: append([]string(nil), st.Specializations...),
			Schedule:        ws,
		}
		r.members = append(r.members, m)
	}
	sort.SliceStable(r.members, func(i, j int) bool { return r.members[i].Name < r.members[j].Name })
	for i, m := range r.members {
		r.bySub[m.SubcalendarID] = i
		r.byName[catalog.NormalizeName(m.Name)] = i
	}
	return r
}
