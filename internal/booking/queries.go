package booking

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"glamora/internal/apperrors"
	"glamora/internal/teamup"
)

// DefaultUpcomingDays is the ListUpcoming horizon when days is not positive.
const DefaultUpcomingDays = 7

// customerLookback is how far back ListByCustomer searches.
const customerLookback = 90 * 24 * time.Hour

// Get fetches one booking.
func (s *Service) Get(ctx context.Context, id string) (Booking, error) {
	if strings.TrimSpace(id) == "" {
		return Booking{}, apperrors.Validation("booking id is required")
	}
	e, err := s.cal.GetEvent(ctx, id)
	if err != nil {
		return Booking{}, fmt.Errorf("get event: %w", err)
	}
	b, err := fromEvent(e)
	if err != nil {
		return Booking{}, apperrors.Upstream("get event", err)
	}
	return b, nil
}

// ListByDate returns all bookings on date, cancelled ones included.
// A zero staffID lists every staff member.
func (s *Service) ListByDate(ctx context.Context, date time.Time, staffID int64) ([]Booking, error) {
	day := startOfDay(date.In(s.Location()))
	return s.ListRange(ctx, day, day, staffID)
}

// ListRange returns bookings on the days from..to inclusive.
func (s *Service) ListRange(ctx context.Context, from, to time.Time, staffID int64) ([]Booking, error) {
	if to.Before(from) {
		return nil, apperrors.Validation("end date must not be before start date")
	}
	evs, err := s.cal.ListEvents(ctx, teamup.ListQuery{From: from, To: to, SubcalendarID: staffID})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return s.toBookings(evs, staffID), nil
}

// ListUpcoming returns non-cancelled bookings starting within the next days.
func (s *Service) ListUpcoming(ctx context.Context, days int, staffID int64) ([]Booking, error) {
	if days <= 0 {
		days = DefaultUpcomingDays
	}
	now := s.now().In(s.Location())
	until := now.AddDate(0, 0, days)

	all, err := s.ListRange(ctx, now, until, staffID)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(b Booking) bool {
		return b.IsCancelled() || b.Start().Before(now) || b.Start().After(until)
	}), nil
}

// ListByCustomer returns bookings whose customer email matches, from the
// last 90 days up to the end of the booking horizon.
func (s *Service) ListByCustomer(ctx context.Context, email string) ([]Booking, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperrors.Validation("customer email is required")
	}
	now := s.now().In(s.Location())
	horizon := s.policy.MaxAdvance
	if horizon <= 0 {
		horizon = 30 * 24 * time.Hour
	}

	evs, err := s.cal.SearchEvents(ctx, email, now.Add(-customerLookback), now.Add(horizon))
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	return slices.DeleteFunc(s.toBookings(evs, 0), func(b Booking) bool {
		return !strings.EqualFold(b.Customer.Email, email)
	}), nil
}

func (s *Service) toBookings(evs []teamup.Event, staffID int64) []Booking {
	out := make([]Booking, 0, len(evs))
	for _, e := range evs {
		if staffID != 0 && !slices.Contains(e.SubcalendarIDs, staffID) {
			continue
		}
		b, err := fromEvent(e)
		if err != nil {
			s.log.Warn().Err(err).Str("event_id", e.ID).Msg("skip malformed event")
			continue
		}
		out = append(out, b)
	}
	slices.SortStableFunc(out, func(a, b Booking) int {
		return a.Start().Compare(b.Start())
	})
	return out
}
