package booking

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glamora/internal/interval"
	"glamora/internal/teamup"
)

func mustInterval(t *testing.T, start, end time.Time) interval.Interval {
	t.Helper()
	iv, err := interval.New(start, end)
	require.NoError(t, err)
	return iv
}

func ids(bs []Booking) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.ID
	}
	return out
}

func TestGet(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.cal.Seed(teamup.Event{
		ID:             "77",
		SubcalendarIDs: []int64{anna},
		Start:          monday(10, 0),
		End:            monday(11, 0),
		Title:          "Melír",
		Notes:          FormatNotes(Customer{Name: "Mária"}, "alergia na amoniak"),
		Custom: map[string]string{
			teamup.FieldCustomerName:  "Mária",
			teamup.FieldCustomerEmail: "maria@example.sk",
		},
	})

	b, err := f.svc.Get(context.Background(), "77")
	require.NoError(t, err)
	assert.Equal(t, anna, b.StaffID)
	assert.Equal(t, StatusConfirmed, b.Status, "missing status means confirmed")
	assert.Equal(t, "alergia na amoniak", b.Notes)
	assert.Equal(t, "Mária", b.Customer.Name)

	_, err = f.svc.Get(context.Background(), "")
	assert.True(t, errors.Is(err, ErrValidation))
	_, err = f.svc.Get(context.Background(), "78")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListByDate(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seed("3", anna, monday(13, 0), time.Hour, StatusConfirmed)
	f.seed("1", anna, monday(9, 0), time.Hour, StatusCancelled)
	f.seed("2", bea, monday(10, 0), time.Hour, StatusConfirmed)
	f.seed("4", anna, wednesday(10, 0), time.Hour, StatusConfirmed)

	all, err := f.svc.ListByDate(context.Background(), monday(15, 0), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, ids(all))

	annas, err := f.svc.ListByDate(context.Background(), monday(0, 0), anna)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, ids(annas))
}

func TestListUpcoming(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seed("past", anna, testNow.Add(-2*time.Hour), time.Hour, StatusConfirmed)
	f.seed("soon", anna, monday(10, 0), time.Hour, StatusConfirmed)
	f.seed("cancelled", anna, monday(12, 0), time.Hour, StatusCancelled)
	f.seed("later", bea, wednesday(9, 0), time.Hour, StatusConfirmed)
	f.seed("far", bea, testNow.AddDate(0, 0, 20), time.Hour, StatusConfirmed)

	got, err := f.svc.ListUpcoming(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"soon", "later"}, ids(got))

	got, err = f.svc.ListUpcoming(context.Background(), 30, bea)
	require.NoError(t, err)
	assert.Equal(t, []string{"later", "far"}, ids(got))
}

func TestListByCustomer(t *testing.T) {
	f := newFixture(t, testPolicy())
	ctx := context.Background()

	mine, err := f.svc.Create(ctx, CreateRequest{Title: "Strih", StaffID: anna, Start: monday(10, 0), Customer: Customer{Email: "Eva@Example.sk"}})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, CreateRequest{Title: "Strih", StaffID: bea, Start: monday(10, 0), Customer: Customer{Email: "eva.b@example.sk"}})
	require.NoError(t, err)

	got, err := f.svc.ListByCustomer(ctx, "EVA@example.sk ")
	require.NoError(t, err)
	assert.Equal(t, []string{mine.ID}, ids(got))

	_, err = f.svc.ListByCustomer(ctx, " ")
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestListRangeValidation(t *testing.T) {
	f := newFixture(t, testPolicy())
	_, err := f.svc.ListRange(context.Background(), wednesday(0, 0), monday(0, 0), 0)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestBookingJSON(t *testing.T) {
	b := Booking{
		ID:       "9",
		StaffID:  anna,
		Title:    "Fúkaná",
		Status:   StatusConfirmed,
		Interval: mustInterval(t, monday(10, 0), monday(10, 45)),
	}
	data, err := json.Marshal(b)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "9", got["id"])
	assert.Equal(t, float64(45), got["durationMinutes"])
	assert.Equal(t, "2026-11-02T10:00:00+01:00", got["start"])
	assert.Equal(t, "confirmed", got["status"])
	assert.NotContains(t, got, "Interval")
}

func TestNotes(t *testing.T) {
	c := Customer{Name: "Jana", Phone: "+421905123456"}
	formatted := FormatNotes(c, "alergia")
	assert.Equal(t, "Customer Information:\nName: Jana\nEmail: N/A\nPhone: +421905123456\n\nNotes:\nalergia", formatted)
	assert.Equal(t, "alergia", ExtractNotes(formatted))
	assert.Equal(t, "", ExtractNotes(FormatNotes(c, "")))
	assert.Equal(t, "plain text", ExtractNotes("plain text"))
	assert.Equal(t, "", FormatNotes(Customer{}, ""))
}

func TestNormalizePhone(t *testing.T) {
	got, err := NormalizePhone("0905 123 456")
	require.NoError(t, err)
	assert.Equal(t, "+421905123456", got)

	got, err = NormalizePhone("+420 601 123 456")
	require.NoError(t, err)
	assert.Equal(t, "+420601123456", got)

	got, err = NormalizePhone("  ")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = NormalizePhone("not a phone")
	assert.True(t, errors.Is(err, ErrValidation))
}
