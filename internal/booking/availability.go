package booking

import (
	"context"
	"slices"
	"sync"
	"time"

	"glamora/internal/apperrors"
	"glamora/internal/interval"
	"glamora/internal/metrics"
	"glamora/internal/slots"
)

// CheckAvailability reports whether staffID can take [start, start+duration).
// The interval must fit the working window and clear other bookings by the
// buffer. excludeID ignores one booking, typically the one being moved.
// Booking-window rules are not applied.
func (s *Service) CheckAvailability(ctx context.Context, staffID int64, start time.Time, duration time.Duration, excludeID string) (bool, error) {
	if start.IsZero() {
		return false, apperrors.Validation("start time is required")
	}
	if duration <= 0 {
		return false, apperrors.Validation("duration must be positive")
	}
	ws, err := s.schedule(staffID)
	if err != nil {
		return false, err
	}
	iv, err := interval.OfDuration(start.In(s.Location()), duration)
	if err != nil {
		return false, apperrors.Validation("invalid time range: %v", err)
	}

	window, ok, err := s.resolver.Resolve(staffID, ws, iv.Start())
	if err != nil {
		return false, err
	}
	if !ok || !interval.Contains(window.Interval, iv) {
		return false, nil
	}

	busy, err := s.busyOn(ctx, staffID, iv.Start())
	if err != nil {
		return false, err
	}
	return !slots.Conflicts(iv, busy, s.policy.BufferMinutes, excludeID), nil
}

// ComputeAvailableSlots lists free slots for one staff member on one day,
// ascending. A day off yields an empty list.
func (s *Service) ComputeAvailableSlots(ctx context.Context, req SlotRequest) ([]slots.Slot, error) {
	started := time.Now()
	out, err := s.computeSlots(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ObserveSlotComputation(outcome, time.Since(started))
	return out, err
}

func (s *Service) computeSlots(ctx context.Context, req SlotRequest) ([]slots.Slot, error) {
	if req.Date.IsZero() {
		return nil, apperrors.Validation("date is required")
	}
	if req.Step < 0 {
		return nil, apperrors.Validation("step must be positive")
	}
	buffer := s.policy.BufferMinutes
	if req.BufferMinutes != nil {
		if *req.BufferMinutes < 0 {
			return nil, apperrors.Validation("buffer cannot be negative")
		}
		buffer = *req.BufferMinutes
	}
	ws, err := s.schedule(req.StaffID)
	if err != nil {
		return nil, err
	}
	duration, err := s.resolveDuration(req.Duration, req.ServiceName)
	if err != nil {
		return nil, err
	}

	window, ok, err := s.resolver.Resolve(req.StaffID, ws, req.Date)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []slots.Slot{}, nil
	}

	busy, err := s.busyOn(ctx, req.StaffID, window.Interval.Start())
	if err != nil {
		return nil, err
	}

	step := req.Step
	if step == 0 {
		step = s.policy.SlotStep
	}
	now := s.now()
	gen := slots.Generator{
		Step:      step,
		NotBefore: now.Add(s.policy.MinAdvance),
	}
	if s.policy.MaxAdvance > 0 {
		gen.NotAfter = now.Add(s.policy.MaxAdvance)
	}

	out := gen.Slots(window, duration, slots.Against(busy, buffer, ""))
	if out == nil {
		out = []slots.Slot{}
	}
	return out, nil
}

// StaffSlots are the free slots of one staff member.
type StaffSlots struct {
	StaffID int64        `json:"staffId"`
	Slots   []slots.Slot `json:"slots"`
}

// ComputeSlotsForStaff computes slots for several staff members concurrently,
// one goroutine each. An empty staffIDs means everyone. Results follow the
// order of staffIDs; the first error wins.
func (s *Service) ComputeSlotsForStaff(ctx context.Context, req SlotRequest, staffIDs []int64) ([]StaffSlots, error) {
	if len(staffIDs) == 0 {
		staffIDs = s.staff.IDs()
	}
	staffIDs = slices.Clone(staffIDs)

	results := make([]StaffSlots, len(staffIDs))
	errs := make([]error, len(staffIDs))

	var wg sync.WaitGroup
	for i, id := range staffIDs {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			r := req
			r.StaffID = id
			got, err := s.ComputeAvailableSlots(ctx, r)
			results[i] = StaffSlots{StaffID: id, Slots: got}
			errs[i] = err
		}(i, id)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
