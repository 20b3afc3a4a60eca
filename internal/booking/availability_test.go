package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glamora/internal/slots"
)

func starts(ss []slots.Slot) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = s.Start.Format("15:04")
	}
	return out
}

func TestComputeAvailableSlotsAroundBooking(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seed("500", anna, monday(10, 0), time.Hour, StatusConfirmed)

	got, err := f.svc.ComputeAvailableSlots(context.Background(), SlotRequest{
		StaffID:  anna,
		Date:     monday(0, 0),
		Duration: time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"11:30", "12:00", "12:30", "13:00", "13:30", "14:00"}, starts(got))
	for _, s := range got {
		assert.Equal(t, time.Hour, s.End.Sub(s.Start))
	}

	got, err = f.svc.ComputeAvailableSlots(context.Background(), SlotRequest{
		StaffID:  anna,
		Date:     monday(0, 0),
		Duration: time.Hour,
		Step:     15 * time.Minute,
	})
	require.NoError(t, err)
	assert.Contains(t, starts(got), "11:15")
	assert.NotContains(t, starts(got), "09:00", "09:00-10:00 overlaps the buffered 09:45-11:15")
}

func TestComputeAvailableSlotsBufferOverride(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seed("500", anna, monday(10, 0), time.Hour, StatusConfirmed)

	zero := 0
	got, err := f.svc.ComputeAvailableSlots(context.Background(), SlotRequest{
		StaffID:       anna,
		Date:          monday(0, 0),
		Duration:      time.Hour,
		BufferMinutes: &zero,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "11:00", "11:30", "12:00", "12:30", "13:00", "13:30", "14:00"}, starts(got))
}

func TestComputeAvailableSlotsByService(t *testing.T) {
	f := newFixture(t, testPolicy())

	got, err := f.svc.ComputeAvailableSlots(context.Background(), SlotRequest{
		StaffID:     anna,
		Date:        monday(0, 0),
		ServiceName: "Melír",
	})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "13:00", got[len(got)-1].Start.Format("15:04"), "two hour service must end by 15:00")
}

func TestComputeAvailableSlotsDayOff(t *testing.T) {
	f := newFixture(t, testPolicy())

	got, err := f.svc.ComputeAvailableSlots(context.Background(), SlotRequest{
		StaffID:  anna,
		Date:     wednesday(0, 0),
		Duration: time.Hour,
	})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestComputeAvailableSlotsRespectsMinAdvance(t *testing.T) {
	now := monday(10, 10)
	f := newFixture(t, testPolicy(), WithClock(func() time.Time { return now }))

	got, err := f.svc.ComputeAvailableSlots(context.Background(), SlotRequest{
		StaffID:  anna,
		Date:     monday(0, 0),
		Duration: time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"11:30", "12:00", "12:30", "13:00", "13:30", "14:00"}, starts(got))
}

func TestComputeAvailableSlotsRespectsMaxAdvance(t *testing.T) {
	p := testPolicy()
	p.MaxAdvance = 24 * time.Hour
	f := newFixture(t, p)

	got, err := f.svc.ComputeAvailableSlots(context.Background(), SlotRequest{
		StaffID:  anna,
		Date:     monday(0, 0),
		Duration: time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30", "12:00"}, starts(got))
}

func TestComputeAvailableSlotsValidation(t *testing.T) {
	f := newFixture(t, testPolicy())
	ctx := context.Background()
	negative := -5

	tests := []struct {
		name string
		req  SlotRequest
	}{
		{"missing date", SlotRequest{StaffID: anna, Duration: time.Hour}},
		{"unknown staff", SlotRequest{StaffID: 7, Date: monday(0, 0), Duration: time.Hour}},
		{"negative duration", SlotRequest{StaffID: anna, Date: monday(0, 0), Duration: -time.Hour}},
		{"negative step", SlotRequest{StaffID: anna, Date: monday(0, 0), Duration: time.Hour, Step: -time.Minute}},
		{"negative buffer", SlotRequest{StaffID: anna, Date: monday(0, 0), Duration: time.Hour, BufferMinutes: &negative}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ComputeAvailableSlots(ctx, tt.req)
			assert.True(t, errors.Is(err, ErrValidation), "got %v", err)
		})
	}
}

func TestComputeAvailableSlotsUpstreamError(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.cal.Err = errors.New("timeout")

	_, err := f.svc.ComputeAvailableSlots(context.Background(), SlotRequest{StaffID: anna, Date: monday(0, 0), Duration: time.Hour})
	assert.True(t, errors.Is(err, ErrUpstream))
}

func TestComputeSlotsForStaff(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seed("500", bea, wednesday(9, 0), 8*time.Hour, StatusConfirmed)

	got, err := f.svc.ComputeSlotsForStaff(context.Background(), SlotRequest{Date: wednesday(0, 0), Duration: time.Hour}, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, anna, got[0].StaffID)
	assert.Empty(t, got[0].Slots, "wednesday off")
	assert.Equal(t, bea, got[1].StaffID)
	assert.Empty(t, got[1].Slots, "fully booked")

	got, err = f.svc.ComputeSlotsForStaff(context.Background(), SlotRequest{Date: monday(0, 0), Duration: time.Hour}, []int64{bea})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Slots, 15, "09:00 to 16:00 every 30 minutes")
}

func TestCheckAvailability(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seed("500", anna, monday(10, 0), time.Hour, StatusConfirmed)
	ctx := context.Background()

	tests := []struct {
		name      string
		start     time.Time
		duration  time.Duration
		excludeID string
		want      bool
	}{
		{"free morning", monday(9, 0), 30 * time.Minute, "", true},
		{"touches buffer", monday(9, 0), 45 * time.Minute, "", true},
		{"inside buffer", monday(9, 15), 45 * time.Minute, "", false},
		{"same slot", monday(10, 0), time.Hour, "", false},
		{"same slot excluding itself", monday(10, 0), time.Hour, "500", true},
		{"after buffer", monday(11, 15), time.Hour, "", true},
		{"past closing", monday(14, 30), time.Hour, "", false},
		{"day off", wednesday(10, 0), time.Hour, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.CheckAvailability(ctx, anna, tt.start, tt.duration, tt.excludeID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := f.svc.CheckAvailability(ctx, anna, monday(9, 0), 0, "")
	assert.True(t, errors.Is(err, ErrValidation))
	_, err = f.svc.CheckAvailability(ctx, 999, monday(9, 0), time.Hour, "")
	assert.True(t, errors.Is(err, ErrValidation))
}
