package booking

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"glamora/internal/apperrors"
	"glamora/internal/events"
	"glamora/internal/interval"
	"glamora/internal/metrics"
	"glamora/internal/schedule"
	"glamora/internal/slots"
	"glamora/internal/teamup"
)

// Calendar is the external calendar the bookings live in.
type Calendar interface {
	ListEvents(ctx context.Context, q teamup.ListQuery) ([]teamup.Event, error)
	SearchEvents(ctx context.Context, query string, from, to time.Time) ([]teamup.Event, error)
	GetEvent(ctx context.Context, id string) (teamup.Event, error)
	CreateEvent(ctx context.Context, e teamup.Event) (teamup.Event, error)
	UpdateEvent(ctx context.Context, e teamup.Event) (teamup.Event, error)
}

// StaffDirectory provides weekly schedules keyed by staff subcalendar id.
type StaffDirectory interface {
	Schedule(staffID int64) (schedule.WeeklySchedule, bool)
	IDs() []int64
}

// ServiceCatalog resolves service names to durations.
type ServiceCatalog interface {
	DurationOrDefault(name string) (time.Duration, bool)
}

// Publisher receives lifecycle events.
type Publisher interface {
	PublishJSON(ctx context.Context, eventType, key string, payload any) error
}

// Policy holds the salon booking rules.
type Policy struct {
	MinAdvance       time.Duration
	MaxAdvance       time.Duration
	BufferMinutes    int
	AllowOverbooking bool
	DefaultDuration  time.Duration
	SlotStep         time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithPublisher sends lifecycle events to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// Service coordinates bookings. It holds no mutable state; every operation
// reads the calendar before it writes.
type Service struct {
	cal       Calendar
	staff     StaffDirectory
	resolver  *schedule.Resolver
	catalog   ServiceCatalog
	policy    Policy
	publisher Publisher
	now       func() time.Time
	log       zerolog.Logger
}

// NewService creates a booking coordinator.
func NewService(
	cal Calendar,
	staff StaffDirectory,
	resolver *schedule.Resolver,
	catalog ServiceCatalog,
	policy Policy,
	log zerolog.Logger,
	opts ...Option,
) *Service {
	if policy.DefaultDuration <= 0 {
		policy.DefaultDuration = time.Hour
	}
	if policy.SlotStep <= 0 {
		policy.SlotStep = slots.DefaultStep
	}
	s := &Service{
		cal:      cal,
		staff:    staff,
		resolver: resolver,
		catalog:  catalog,
		policy:   policy,
		now:      time.Now,
		log:      log.With().Str("component", "booking").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the booking rules in effect.
func (s *Service) Policy() Policy {
	return s.policy
}

// Location returns the salon time zone.
func (s *Service) Location() *time.Location {
	return s.resolver.Location()
}

// Create books a new appointment. Unless overbooking is allowed, the slot
// must be free of other non-cancelled bookings (with buffer).
func (s *Service) Create(ctx context.Context, req CreateRequest) (Booking, error) {
	b, err := s.create(ctx, req)
	s.observe("create", err)
	if err != nil {
		return Booking{}, err
	}

	s.log.Info().
		Str("booking_id", b.ID).
		Int64("staff_id", b.StaffID).
		Time("start", b.Start()).
		Msg("booking created")
	s.publish(ctx, events.BookingCreated, b)
	return b, nil
}

func (s *Service) create(ctx context.Context, req CreateRequest) (Booking, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return Booking{}, apperrors.Validation("title is required")
	}
	if req.StaffID == 0 {
		return Booking{}, apperrors.Validation("staff is required")
	}
	if req.Start.IsZero() {
		return Booking{}, apperrors.Validation("start time is required")
	}
	ws, err := s.schedule(req.StaffID)
	if err != nil {
		return Booking{}, err
	}
	customer, err := normalizeCustomer(req.Customer)
	if err != nil {
		return Booking{}, err
	}
	duration, err := s.resolveDuration(req.Duration, req.ServiceName)
	if err != nil {
		return Booking{}, err
	}

	iv, err := interval.OfDuration(req.Start.In(s.Location()), duration)
	if err != nil {
		return Booking{}, apperrors.Validation("invalid time range: %v", err)
	}
	if err := s.checkAdvance(iv.Start()); err != nil {
		return Booking{}, err
	}
	if err := s.checkSlot(ctx, req.StaffID, ws, iv, "", !s.policy.AllowOverbooking); err != nil {
		return Booking{}, err
	}

	b := Booking{
		StaffID:  req.StaffID,
		Interval: iv,
		Title:    title,
		Service:  strings.TrimSpace(req.ServiceName),
		Customer: customer,
		Status:   StatusRequested,
		Notes:    req.Notes,
		Location: req.Location,
	}
	if err := b.transition(StatusConfirmed); err != nil {
		return Booking{}, err
	}

	created, err := s.cal.CreateEvent(ctx, toEvent(b))
	if err != nil {
		return Booking{}, fmt.Errorf("create event: %w", err)
	}
	return s.fromStored(created, b)
}

// Update applies patch to a booking. A time change is re-validated against
// the working window and other bookings, ignoring the booking itself.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (Booking, error) {
	b, err := s.update(ctx, id, patch)
	s.observe("update", err)
	if err != nil {
		return Booking{}, err
	}

	s.log.Info().Str("booking_id", b.ID).Msg("booking updated")
	eventType := events.BookingUpdated
	if b.IsCancelled() {
		eventType = events.BookingCancelled
	}
	s.publish(ctx, eventType, b)
	return b, nil
}

func (s *Service) update(ctx context.Context, id string, patch Patch) (Booking, error) {
	if patch.IsEmpty() {
		return Booking{}, apperrors.Validation("no fields to update")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return Booking{}, err
	}
	if current.IsCancelled() {
		return Booking{}, apperrors.Validation("booking %s is cancelled", id)
	}

	next := current
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return Booking{}, apperrors.Validation("title cannot be empty")
		}
		next.Title = title
	}
	if patch.Customer != nil {
		c, err := normalizeCustomer(*patch.Customer)
		if err != nil {
			return Booking{}, err
		}
		next.Customer = c
	}
	if patch.Notes != nil {
		next.Notes = *patch.Notes
	}
	if patch.Location != nil {
		next.Location = *patch.Location
	}

	if patch.movesTime() {
		start := current.Start()
		if patch.Start != nil {
			start = *patch.Start
		}
		duration := current.Duration()
		if patch.Duration != nil {
			duration = *patch.Duration
		}
		iv, err := s.validateMove(ctx, current, start, duration)
		if err != nil {
			return Booking{}, err
		}
		next.Interval = iv
	}

	if patch.Status != nil && *patch.Status != current.Status {
		if !patch.Status.Valid() {
			return Booking{}, apperrors.Validation("unknown status %q", *patch.Status)
		}
		if *patch.Status == StatusRescheduled {
			return Booking{}, apperrors.Validation("use reschedule to move a booking")
		}
		if err := next.transition(*patch.Status); err != nil {
			return Booking{}, err
		}
		if next.IsCancelled() {
			now := s.now()
			next.CancelledAt = &now
		}
	}

	return s.save(ctx, next)
}

// Cancel soft-cancels a booking. The event stays in the calendar with its
// interval and customer; only the status changes.
func (s *Service) Cancel(ctx context.Context, id, reason string) (Booking, error) {
	b, err := s.cancel(ctx, id, reason)
	s.observe("cancel", err)
	if err != nil {
		return Booking{}, err
	}

	s.log.Info().Str("booking_id", b.ID).Str("reason", reason).Msg("booking cancelled")
	s.publish(ctx, events.BookingCancelled, b)
	return b, nil
}

func (s *Service) cancel(ctx context.Context, id, reason string) (Booking, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return Booking{}, err
	}
	if b.IsCancelled() {
		return Booking{}, apperrors.Validation("booking %s is already cancelled", id)
	}
	if err := b.transition(StatusCancelled); err != nil {
		return Booking{}, err
	}

	now := s.now()
	b.CancelledAt = &now
	b.CancellationReason = strings.TrimSpace(reason)
	if b.CancellationReason == "" {
		b.CancellationReason = "Cancelled by request"
	}
	return s.save(ctx, b)
}

// Reschedule moves a booking to newStart, optionally with a new duration.
// Nothing is written unless the new slot passes every check.
func (s *Service) Reschedule(ctx context.Context, id string, newStart time.Time, newDuration *time.Duration) (Booking, error) {
	b, err := s.reschedule(ctx, id, newStart, newDuration)
	s.observe("reschedule", err)
	if err != nil {
		return Booking{}, err
	}

	ev := s.log.Info().Str("booking_id", b.ID).Time("to", b.Start())
	if b.OriginalStart != nil {
		ev = ev.Time("from", *b.OriginalStart)
	}
	ev.Msg("booking rescheduled")
	s.publish(ctx, events.BookingRescheduled, b)
	return b, nil
}

func (s *Service) reschedule(ctx context.Context, id string, newStart time.Time, newDuration *time.Duration) (Booking, error) {
	if newStart.IsZero() {
		return Booking{}, apperrors.Validation("new start time is required")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return Booking{}, err
	}
	if current.IsCancelled() {
		return Booking{}, apperrors.Validation("booking %s is cancelled", id)
	}

	duration := current.Duration()
	if newDuration != nil {
		duration = *newDuration
	}
	iv, err := s.validateMove(ctx, current, newStart, duration)
	if err != nil {
		return Booking{}, err
	}

	next := current
	if err := next.transition(StatusRescheduled); err != nil {
		return Booking{}, err
	}
	original := current.Start()
	now := s.now()
	next.Interval = iv
	next.OriginalStart = &original
	next.RescheduledAt = &now
	if err := next.transition(StatusConfirmed); err != nil {
		return Booking{}, err
	}

	return s.save(ctx, next)
}

// validateMove checks a new time for an existing booking. The booking's own
// event never blocks it and overbooking is never allowed.
func (s *Service) validateMove(ctx context.Context, current Booking, start time.Time, duration time.Duration) (interval.Interval, error) {
	if duration <= 0 {
		return interval.Interval{}, apperrors.Validation("duration must be positive")
	}
	ws, err := s.schedule(current.StaffID)
	if err != nil {
		return interval.Interval{}, err
	}
	iv, err := interval.OfDuration(start.In(s.Location()), duration)
	if err != nil {
		return interval.Interval{}, apperrors.Validation("invalid time range: %v", err)
	}
	if err := s.checkAdvance(iv.Start()); err != nil {
		return interval.Interval{}, err
	}
	if err := s.checkSlot(ctx, current.StaffID, ws, iv, current.ID, true); err != nil {
		return interval.Interval{}, err
	}
	return iv, nil
}

// checkSlot requires iv to lie inside the staff member's working window and,
// when withConflicts is set, to clear every other booking by the buffer.
func (s *Service) checkSlot(ctx context.Context, staffID int64, ws schedule.WeeklySchedule, iv interval.Interval, excludeID string, withConflicts bool) error {
	window, ok, err := s.resolver.Resolve(staffID, ws, iv.Start())
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.SlotUnavailable("staff %d is not working on %s", staffID, iv.Start().Format("2006-01-02")).
			WithDetails(map[string]any{"reason": "not_working"})
	}
	if !interval.Contains(window.Interval, iv) {
		return apperrors.SlotUnavailable("requested time is outside working hours %s", window.Interval).
			WithDetails(map[string]any{"reason": "outside_hours"})
	}
	if !withConflicts {
		return nil
	}

	busy, err := s.busyOn(ctx, staffID, iv.Start())
	if err != nil {
		return err
	}
	found := slots.FindConflicts(iv, busy, s.policy.BufferMinutes, excludeID)
	if len(found) == 0 {
		return nil
	}
	ids := make([]string, len(found))
	for i, b := range found {
		ids[i] = b.ID
	}
	s.log.Debug().
		Int64("staff_id", staffID).
		Str("candidate", iv.String()).
		Strs("conflicts", ids).
		Msg("slot conflict")
	return apperrors.SlotUnavailable("time slot is not available").
		WithDetails(map[string]any{"reason": "conflict", "conflicts": ids})
}

// busyOn reads the staff member's events for the day of t, bypassing caches.
func (s *Service) busyOn(ctx context.Context, staffID int64, t time.Time) ([]slots.Busy, error) {
	day := startOfDay(t.In(s.Location()))
	evs, err := s.cal.ListEvents(teamup.Fresh(ctx), teamup.ListQuery{
		From:          day,
		To:            day,
		SubcalendarID: staffID,
	})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	evs = slices.DeleteFunc(evs, func(e teamup.Event) bool {
		return !slices.Contains(e.SubcalendarIDs, staffID)
	})
	return busyFromEvents(evs), nil
}

func (s *Service) checkAdvance(start time.Time) error {
	now := s.now()
	if start.Before(now.Truncate(time.Minute)) {
		return apperrors.Validation("start time is in the past")
	}
	if s.policy.MinAdvance > 0 && start.Before(now.Add(s.policy.MinAdvance)) {
		return apperrors.Validation("bookings must be made at least %d minutes in advance", int(s.policy.MinAdvance.Minutes()))
	}
	if s.policy.MaxAdvance > 0 && start.After(now.Add(s.policy.MaxAdvance)) {
		return apperrors.Validation("bookings can be made at most %d days in advance", int(s.policy.MaxAdvance.Hours()/24))
	}
	return nil
}

func (s *Service) resolveDuration(d time.Duration, serviceName string) (time.Duration, error) {
	switch {
	case d < 0:
		return 0, apperrors.Validation("duration must be positive")
	case d > 0:
		return d, nil
	case strings.TrimSpace(serviceName) != "" && s.catalog != nil:
		d, _ := s.catalog.DurationOrDefault(serviceName)
		return d, nil
	default:
		return s.policy.DefaultDuration, nil
	}
}

func (s *Service) schedule(staffID int64) (schedule.WeeklySchedule, error) {
	ws, ok := s.staff.Schedule(staffID)
	if !ok {
		return nil, apperrors.Validation("unknown staff %d", staffID)
	}
	return ws, nil
}

func (s *Service) save(ctx context.Context, b Booking) (Booking, error) {
	updated, err := s.cal.UpdateEvent(ctx, toEvent(b))
	if err != nil {
		return Booking{}, fmt.Errorf("update event: %w", err)
	}
	return s.fromStored(updated, b)
}

// fromStored maps the calendar's copy of a written event, falling back to
// the booking that was sent when the response lacks times or custom fields.
func (s *Service) fromStored(e teamup.Event, sent Booking) (Booking, error) {
	stored, err := fromEvent(e)
	if err != nil {
		sent.ID = e.ID
		sent.version = e.Version
		return sent, nil
	}
	if len(e.Custom) == 0 {
		stored.Service = sent.Service
		stored.Customer = sent.Customer
		stored.Status = sent.Status
		stored.CancellationReason = sent.CancellationReason
		stored.CancelledAt = sent.CancelledAt
		stored.RescheduledAt = sent.RescheduledAt
		stored.OriginalStart = sent.OriginalStart
	}
	return stored, nil
}

func (s *Service) publish(ctx context.Context, eventType string, b Booking) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishJSON(ctx, eventType, b.ID, b); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Str("booking_id", b.ID).Msg("publish booking event")
	}
}

func (s *Service) observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = strings.ToLower(string(apperrors.KindOf(err)))
	}
	metrics.IncBookingOp(op, outcome)
}

func (b *Booking) transition(to Status) error {
	if !CanTransition(b.Status, to) {
		return apperrors.Validation("cannot change status from %s to %s", b.Status, to)
	}
	b.Status = to
	return nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
