package booking

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"glamora/internal/apperrors"
	"glamora/internal/catalog"
	"glamora/internal/events"
	"glamora/internal/schedule"
	"glamora/internal/teamup"
	"glamora/internal/teamup/teamuptest"
)

const (
	anna int64 = 101 // Mon 09-15, Tue 10-18, Wednesday off
	bea  int64 = 102 // Mon-Fri 09-17
)

var salonTZ = mustLoc("Europe/Bratislava")

func mustLoc(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// Sunday noon before the week the tests book into.
var testNow = time.Date(2026, 11, 1, 12, 0, 0, 0, salonTZ)

func monday(h, m int) time.Time    { return time.Date(2026, 11, 2, h, m, 0, 0, salonTZ) }
func wednesday(h, m int) time.Time { return time.Date(2026, 11, 4, h, m, 0, 0, salonTZ) }

type staffDir map[int64]schedule.WeeklySchedule

func (d staffDir) Schedule(id int64) (schedule.WeeklySchedule, bool) {
	ws, ok := d[id]
	return ws, ok
}

func (d staffDir) IDs() []int64 {
	ids := make([]int64, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func shift(start, end string) schedule.Shift {
	s, err := schedule.NewShift(start, end)
	if err != nil {
		panic(err)
	}
	return s
}

func testStaff() staffDir {
	weekdays := schedule.WeeklySchedule{}
	for wd := time.Monday; wd <= time.Friday; wd++ {
		weekdays[wd] = shift("09:00", "17:00")
	}
	return staffDir{
		anna: {
			time.Monday:  shift("09:00", "15:00"),
			time.Tuesday: shift("10:00", "18:00"),
		},
		bea: weekdays,
	}
}

func testPolicy() Policy {
	return Policy{
		MinAdvance:      time.Hour,
		MaxAdvance:      30 * 24 * time.Hour,
		BufferMinutes:   15,
		DefaultDuration: time.Hour,
		SlotStep:        30 * time.Minute,
	}
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) PublishJSON(_ context.Context, eventType, key string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType+":"+key)
	return nil
}

type fixture struct {
	cal *teamuptest.Calendar
	svc *Service
	pub *recorder
}

func newFixture(t *testing.T, policy Policy, opts ...Option) *fixture {
	t.Helper()
	cat, err := catalog.New([]catalog.Service{
		{Name: "Dámsky strih", Duration: 45 * time.Minute, Category: "Strihanie"},
		{Name: "Melír", Duration: 2 * time.Hour, Category: "Farbenie"},
	}, time.Hour, zerolog.Nop())
	require.NoError(t, err)

	f := &fixture{cal: teamuptest.New(), pub: &recorder{}}
	opts = append([]Option{WithClock(func() time.Time { return testNow }), WithPublisher(f.pub)}, opts...)
	f.svc = NewService(f.cal, testStaff(), schedule.NewResolver(salonTZ, nil), cat, policy, zerolog.Nop(), opts...)
	return f
}

func (f *fixture) seed(id string, staff int64, start time.Time, d time.Duration, status Status) {
	f.cal.Seed(teamup.Event{
		ID:             id,
		SubcalendarIDs: []int64{staff},
		Start:          start,
		End:            start.Add(d),
		Title:          "Existing " + id,
		Custom:         map[string]string{teamup.FieldBookingStatus: string(status)},
	})
}

func conflictIDs(t *testing.T, err error) []string {
	t.Helper()
	var appErr *apperrors.Error
	require.True(t, errors.As(err, &appErr))
	ids, _ := appErr.Details["conflicts"].([]string)
	return ids
}

func TestCreate(t *testing.T) {
	f := newFixture(t, testPolicy())

	b, err := f.svc.Create(context.Background(), CreateRequest{
		Title:       "Strih pre Janu",
		StaffID:     anna,
		Start:       monday(10, 0),
		ServiceName: "damsky strih",
		Customer:    Customer{Name: "Jana Nováková", Phone: "0905 123 456", Email: "Jana@Example.sk"},
		Notes:       "prvá návšteva",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, StatusConfirmed, b.Status)
	assert.Equal(t, monday(10, 0), b.Start())
	assert.Equal(t, monday(10, 45), b.End())
	assert.Equal(t, "+421905123456", b.Customer.Phone)
	assert.Equal(t, "jana@example.sk", b.Customer.Email)
	assert.Equal(t, "prvá návšteva", b.Notes)

	stored, ok := f.cal.Stored(b.ID)
	require.True(t, ok)
	assert.Equal(t, []int64{anna}, stored.SubcalendarIDs)
	assert.Equal(t, "confirmed", stored.Field(teamup.FieldBookingStatus))
	assert.Equal(t, "Jana Nováková", stored.Field(teamup.FieldCustomerName))
	assert.Contains(t, stored.Notes, "Customer Information:")
	assert.Contains(t, stored.Notes, "Phone: +421905123456")

	assert.Equal(t, []string{events.BookingCreated + ":" + b.ID}, f.pub.events)
}

func TestCreateDefaultDuration(t *testing.T) {
	f := newFixture(t, testPolicy())

	b, err := f.svc.Create(context.Background(), CreateRequest{Title: "Konzultácia", StaffID: bea, Start: monday(9, 0)})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, b.Duration())

	b, err = f.svc.Create(context.Background(), CreateRequest{Title: "Neznáma", StaffID: bea, Start: monday(13, 0), ServiceName: "Neexistuje"})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, b.Duration(), "unknown service falls back to the catalog default")

	b, err = f.svc.Create(context.Background(), CreateRequest{Title: "Rýchly", StaffID: bea, Start: monday(15, 0), Duration: 20 * time.Minute, ServiceName: "Melír"})
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, b.Duration(), "explicit duration wins")
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name string
		req  CreateRequest
	}{
		{"missing title", CreateRequest{StaffID: anna, Start: monday(10, 0)}},
		{"missing staff", CreateRequest{Title: "x", Start: monday(10, 0)}},
		{"missing start", CreateRequest{Title: "x", StaffID: anna}},
		{"unknown staff", CreateRequest{Title: "x", StaffID: 999, Start: monday(10, 0)}},
		{"negative duration", CreateRequest{Title: "x", StaffID: anna, Start: monday(10, 0), Duration: -time.Minute}},
		{"bad phone", CreateRequest{Title: "x", StaffID: anna, Start: monday(10, 0), Customer: Customer{Phone: "abc"}}},
		{"in the past", CreateRequest{Title: "x", StaffID: anna, Start: testNow.Add(-time.Hour)}},
		{"too soon", CreateRequest{Title: "x", StaffID: anna, Start: testNow.Add(30 * time.Minute)}},
		{"too far ahead", CreateRequest{Title: "x", StaffID: anna, Start: testNow.AddDate(0, 0, 40)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testPolicy())
			_, err := f.svc.Create(context.Background(), tt.req)
			assert.True(t, errors.Is(err, ErrValidation), "got %v", err)
			assert.Zero(t, f.cal.Writes)
			assert.Empty(t, f.pub.events)
		})
	}
}

func TestCreateOutsideWorkingWindow(t *testing.T) {
	f := newFixture(t, testPolicy())

	_, err := f.svc.Create(context.Background(), CreateRequest{Title: "x", StaffID: anna, Start: monday(14, 30)})
	assert.True(t, errors.Is(err, ErrSlotUnavailable), "ends after 15:00")

	_, err = f.svc.Create(context.Background(), CreateRequest{Title: "x", StaffID: anna, Start: wednesday(10, 0)})
	assert.True(t, errors.Is(err, ErrSlotUnavailable), "day off")

	b, err := f.svc.Create(context.Background(), CreateRequest{Title: "x", StaffID: anna, Start: monday(14, 0)})
	require.NoError(t, err, "ending exactly at close is bookable")
	assert.Equal(t, monday(15, 0), b.End())
}

func TestCreateOverbooking(t *testing.T) {
	req := CreateRequest{Title: "Farbenie", StaffID: anna, Start: monday(10, 30)}

	t.Run("rejected by default", func(t *testing.T) {
		f := newFixture(t, testPolicy())
		f.seed("500", anna, monday(10, 0), time.Hour, StatusConfirmed)

		_, err := f.svc.Create(context.Background(), req)
		require.True(t, errors.Is(err, ErrSlotUnavailable))
		assert.Equal(t, []string{"500"}, conflictIDs(t, err))
		assert.Zero(t, f.cal.Writes)
	})

	t.Run("allowed when overbooking is on", func(t *testing.T) {
		p := testPolicy()
		p.AllowOverbooking = true
		f := newFixture(t, p)
		f.seed("500", anna, monday(10, 0), time.Hour, StatusConfirmed)

		b, err := f.svc.Create(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, monday(10, 30), b.Start())
		assert.Equal(t, 1, f.cal.Writes)
	})
}

func TestCreateConflictRules(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seed("500", anna, monday(10, 0), time.Hour, StatusConfirmed)
	f.seed("501", anna, monday(12, 0), time.Hour, StatusCancelled)
	f.seed("502", bea, monday(13, 0), time.Hour, StatusConfirmed)

	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateRequest{Title: "x", StaffID: anna, Start: monday(11, 0)})
	assert.True(t, errors.Is(err, ErrSlotUnavailable), "inside the 15 minute buffer")

	_, err = f.svc.Create(ctx, CreateRequest{Title: "x", StaffID: anna, Start: monday(11, 15), Duration: 45 * time.Minute})
	assert.NoError(t, err, "buffer edge is free")

	_, err = f.svc.Create(ctx, CreateRequest{Title: "x", StaffID: anna, Start: monday(12, 0), Duration: 30 * time.Minute})
	assert.True(t, errors.Is(err, ErrSlotUnavailable), "inside the buffer of the 11:15 booking")

	_, err = f.svc.Create(ctx, CreateRequest{Title: "x", StaffID: anna, Start: monday(13, 15)})
	assert.NoError(t, err, "cancelled bookings and other staff do not block")
}

func TestCreateUpstreamFailure(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.cal.Err = errors.New("connection refused")

	_, err := f.svc.Create(context.Background(), CreateRequest{Title: "x", StaffID: anna, Start: monday(10, 0)})
	assert.True(t, errors.Is(err, ErrUpstream))
}

func TestRescheduleConflictLeavesOriginal(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seed("a", anna, monday(10, 0), time.Hour, StatusConfirmed)
	f.seed("b", anna, monday(13, 0), time.Hour, StatusConfirmed)

	_, err := f.svc.Reschedule(context.Background(), "a", monday(13, 0), nil)
	require.True(t, errors.Is(err, ErrSlotUnavailable))
	assert.Equal(t, []string{"b"}, conflictIDs(t, err))

	stored, ok := f.cal.Stored("a")
	require.True(t, ok)
	assert.Equal(t, monday(10, 0), stored.Start)
	assert.Equal(t, monday(11, 0), stored.End)
	assert.Zero(t, f.cal.Writes)
	assert.Empty(t, f.pub.events)
}

func TestReschedule(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seed("a", anna, monday(10, 0), time.Hour, StatusConfirmed)

	b, err := f.svc.Reschedule(context.Background(), "a", monday(10, 30), nil)
	require.NoError(t, err, "own interval does not block")
	assert.Equal(t, monday(10, 30), b.Start())
	assert.Equal(t, monday(11, 30), b.End())
	assert.Equal(t, StatusConfirmed, b.Status)
	require.NotNil(t, b.OriginalStart)
	assert.True(t, b.OriginalStart.Equal(monday(10, 0)))
	require.NotNil(t, b.RescheduledAt)
	assert.True(t, b.RescheduledAt.Equal(testNow))

	stored, _ := f.cal.Stored("a")
	assert.NotEmpty(t, stored.Field(teamup.FieldOriginalTime))
	assert.NotEmpty(t, stored.Field(teamup.FieldLastRescheduled))

	d := 90 * time.Minute
	b, err = f.svc.Reschedule(context.Background(), "a", monday(13, 0), &d)
	require.NoError(t, err)
	assert.Equal(t, monday(14, 30), b.End())
	assert.True(t, b.OriginalStart.Equal(monday(10, 30)))

	assert.Equal(t, []string{events.BookingRescheduled + ":a", events.BookingRescheduled + ":a"}, f.pub.events)
}

// bareWrites answers writes without custom fields, as some calendar
// responses do.
type bareWrites struct {
	*teamuptest.Calendar
}

func (c bareWrites) UpdateEvent(ctx context.Context, e teamup.Event) (teamup.Event, error) {
	stored, err := c.Calendar.UpdateEvent(ctx, e)
	stored.Custom = nil
	return stored, err
}

func TestWritesWithoutCustomFieldsInResponse(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.svc.cal = bareWrites{f.cal}
	f.seed("a", anna, monday(10, 0), time.Hour, StatusConfirmed)
	f.seed("b", anna, monday(13, 0), time.Hour, StatusConfirmed)
	ctx := context.Background()

	b, err := f.svc.Reschedule(ctx, "a", monday(11, 30), nil)
	require.NoError(t, err)
	assert.Equal(t, monday(11, 30), b.Start())
	assert.Equal(t, StatusConfirmed, b.Status)
	require.NotNil(t, b.OriginalStart)
	assert.True(t, b.OriginalStart.Equal(monday(10, 0)))
	assert.Equal(t, []string{events.BookingRescheduled + ":a"}, f.pub.events)

	b, err = f.svc.Cancel(ctx, "b", "choroba")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, b.Status)
	assert.Equal(t, "choroba", b.CancellationReason)
	require.NotNil(t, b.CancelledAt)

	stored, _ := f.cal.Stored("b")
	assert.Equal(t, string(StatusCancelled), stored.Field(teamup.FieldBookingStatus))
}

func TestRescheduleErrors(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seed("a", anna, monday(10, 0), time.Hour, StatusConfirmed)
	f.seed("c", anna, monday(12, 0), time.Hour, StatusCancelled)
	ctx := context.Background()

	_, err := f.svc.Reschedule(ctx, "missing", monday(12, 0), nil)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = f.svc.Reschedule(ctx, "c", monday(13, 0), nil)
	assert.True(t, errors.Is(err, ErrValidation), "cancelled bookings stay put")

	_, err = f.svc.Reschedule(ctx, "a", time.Time{}, nil)
	assert.True(t, errors.Is(err, ErrValidation))

	zero := time.Duration(0)
	_, err = f.svc.Reschedule(ctx, "a", monday(12, 0), &zero)
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = f.svc.Reschedule(ctx, "a", wednesday(10, 0), nil)
	assert.True(t, errors.Is(err, ErrSlotUnavailable))

	assert.Zero(t, f.cal.Writes)
}

func TestCancelThenAvailable(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seed("a", anna, monday(10, 0), time.Hour, StatusConfirmed)
	ctx := context.Background()

	free, err := f.svc.CheckAvailability(ctx, anna, monday(10, 0), time.Hour, "")
	require.NoError(t, err)
	assert.False(t, free)

	b, err := f.svc.Cancel(ctx, "a", "Zákazníčka ochorela")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, b.Status)
	assert.Equal(t, "Zákazníčka ochorela", b.CancellationReason)
	require.NotNil(t, b.CancelledAt)
	assert.Equal(t, monday(10, 0), b.Start(), "interval is kept")

	stored, ok := f.cal.Stored("a")
	require.True(t, ok, "cancel never deletes")
	assert.Equal(t, "cancelled", stored.Field(teamup.FieldBookingStatus))
	assert.Equal(t, "Existing a", stored.Title, "status is not encoded in the title")

	free, err = f.svc.CheckAvailability(ctx, anna, monday(10, 0), time.Hour, "")
	require.NoError(t, err)
	assert.True(t, free)

	_, err = f.svc.Cancel(ctx, "a", "")
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = f.svc.Cancel(ctx, "nope", "")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCancelDefaultReason(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seed("a", anna, monday(10, 0), time.Hour, StatusConfirmed)

	b, err := f.svc.Cancel(context.Background(), "a", "  ")
	require.NoError(t, err)
	assert.Equal(t, "Cancelled by request", b.CancellationReason)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seed("a", anna, monday(10, 0), time.Hour, StatusConfirmed)
	f.seed("b", anna, monday(13, 0), time.Hour, StatusConfirmed)
	ctx := context.Background()

	title := "Strih a fúkaná"
	notes := "krátko"
	b, err := f.svc.Update(ctx, "a", Patch{
		Title:    &title,
		Notes:    &notes,
		Customer: &Customer{Name: "Eva", Phone: "+420 601 123 456"},
	})
	require.NoError(t, err)
	assert.Equal(t, title, b.Title)
	assert.Equal(t, notes, b.Notes)
	assert.Equal(t, "+420601123456", b.Customer.Phone)
	assert.Equal(t, monday(10, 0), b.Start())
	assert.Equal(t, []string{events.BookingUpdated + ":a"}, f.pub.events)
}

func TestUpdateTimeChanges(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seed("a", anna, monday(10, 0), time.Hour, StatusConfirmed)
	f.seed("b", anna, monday(13, 0), time.Hour, StatusConfirmed)
	ctx := context.Background()

	d := 2 * time.Hour
	b, err := f.svc.Update(ctx, "a", Patch{Duration: &d})
	require.NoError(t, err, "10:00-12:00 clears b's buffer starting 12:45")
	assert.Equal(t, monday(12, 0), b.End())

	start := monday(12, 0)
	_, err = f.svc.Update(ctx, "a", Patch{Start: &start})
	assert.True(t, errors.Is(err, ErrSlotUnavailable), "12:00-14:00 overlaps b")

	stored, _ := f.cal.Stored("a")
	assert.Equal(t, monday(12, 0), stored.End, "failed update leaves the stored event alone")
}

func TestUpdateValidation(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seed("a", anna, monday(10, 0), time.Hour, StatusConfirmed)
	f.seed("c", anna, monday(12, 0), time.Hour, StatusCancelled)
	ctx := context.Background()

	empty := " "
	rescheduled := StatusRescheduled
	bogus := Status("archived")
	notes := "x"

	tests := []struct {
		name  string
		id    string
		patch Patch
		want  error
	}{
		{"empty patch", "a", Patch{}, ErrValidation},
		{"blank title", "a", Patch{Title: &empty}, ErrValidation},
		{"unknown status", "a", Patch{Status: &bogus}, ErrValidation},
		{"rescheduled via patch", "a", Patch{Status: &rescheduled}, ErrValidation},
		{"cancelled booking", "c", Patch{Notes: &notes}, ErrValidation},
		{"missing booking", "zzz", Patch{Notes: &notes}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Update(ctx, tt.id, tt.patch)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
	assert.Zero(t, f.cal.Writes)
}

func TestUpdateStatusCancel(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seed("a", anna, monday(10, 0), time.Hour, StatusConfirmed)

	cancelled := StatusCancelled
	b, err := f.svc.Update(context.Background(), "a", Patch{Status: &cancelled})
	require.NoError(t, err)
	assert.True(t, b.IsCancelled())
	assert.NotNil(t, b.CancelledAt)
	assert.Equal(t, []string{events.BookingCancelled + ":a"}, f.pub.events)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(ctx context.Context, eventType, key string, payload any) error {
	return m.Called(ctx, eventType, key, payload).Error(0)
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("PublishJSON", mock.Anything, events.BookingCreated, mock.Anything, mock.Anything).
		Return(errors.New("broker down")).Once()

	f := newFixture(t, testPolicy(), WithPublisher(pub))
	_, err := f.svc.Create(context.Background(), CreateRequest{Title: "x", StaffID: anna, Start: monday(10, 0)})
	require.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestTransitions(t *testing.T) {
	assert.True(t, CanTransition(StatusRequested, StatusConfirmed))
	assert.True(t, CanTransition(StatusConfirmed, StatusRescheduled))
	assert.True(t, CanTransition(StatusRescheduled, StatusConfirmed))
	assert.True(t, CanTransition(StatusConfirmed, StatusCancelled))
	assert.False(t, CanTransition(StatusCancelled, StatusConfirmed))
	assert.False(t, CanTransition(StatusRescheduled, StatusCancelled))
	assert.False(t, CanTransition(StatusConfirmed, StatusRequested))

	assert.Equal(t, StatusConfirmed, ParseStatus(""))
	assert.Equal(t, StatusCancelled, ParseStatus("cancelled"))
	assert.False(t, Status("archived").Valid())
}
