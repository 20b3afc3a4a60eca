// Package teamuptest provides an in-memory TeamUp calendar for tests.
package teamuptest

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"glamora/internal/apperrors"
	"glamora/internal/teamup"
)

// Calendar is an in-memory stand-in for teamup.Client.
type Calendar struct {
	mu           sync.Mutex
	events       map[string]teamup.Event
	subcalendars []teamup.Subcalendar
	nextID       int

	// Err, when set, fails every call with an upstream error.
	Err error
	// Writes counts successful create and update calls.
	Writes int
}

func New(subcalendars ...teamup.Subcalendar) *Calendar {
	return &Calendar{
		events:       make(map[string]teamup.Event),
		subcalendars: subcalendars,
		nextID:       1000,
	}
}

// Seed stores e as-is, assigning an id when missing.
func (c *Calendar) Seed(e teamup.Event) teamup.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.ID == "" {
		e.ID = c.newID()
	}
	c.events[e.ID] = clone(e)
	return clone(e)
}

// Stored returns the stored copy of an event.
func (c *Calendar) Stored(id string) (teamup.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.events[id]
	return clone(e), ok
}

func (c *Calendar) ListEvents(_ context.Context, q teamup.ListQuery) ([]teamup.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, apperrors.Upstream("list events", c.Err)
	}

	loc := q.From.Location()
	y, m, d := q.From.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, loc)
	y, m, d = q.To.In(loc).Date()
	to := time.Date(y, m, d+1, 0, 0, 0, 0, loc)

	var out []teamup.Event
	for _, e := range c.events {
		if !e.Start.Before(to) || !e.End.After(from) {
			continue
		}
		if q.SubcalendarID != 0 && !slices.Contains(e.SubcalendarIDs, q.SubcalendarID) {
			continue
		}
		if q.Query != "" && !matches(e, q.Query) {
			continue
		}
		out = append(out, clone(e))
	}
	slices.SortFunc(out, func(a, b teamup.Event) int {
		if n := a.Start.Compare(b.Start); n != 0 {
			return n
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (c *Calendar) SearchEvents(ctx context.Context, query string, from, to time.Time) ([]teamup.Event, error) {
	return c.ListEvents(ctx, teamup.ListQuery{From: from, To: to, Query: query})
}

func (c *Calendar) GetEvent(_ context.Context, id string) (teamup.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return teamup.Event{}, apperrors.Upstream("get event", c.Err)
	}
	e, ok := c.events[id]
	if !ok {
		return teamup.Event{}, apperrors.NotFound("booking", id)
	}
	return clone(e), nil
}

func (c *Calendar) CreateEvent(_ context.Context, e teamup.Event) (teamup.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return teamup.Event{}, apperrors.Upstream("create event", c.Err)
	}
	e.ID = c.newID()
	c.events[e.ID] = clone(e)
	c.Writes++
	return clone(e), nil
}

func (c *Calendar) UpdateEvent(_ context.Context, e teamup.Event) (teamup.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return teamup.Event{}, apperrors.Upstream("update event", c.Err)
	}
	if _, ok := c.events[e.ID]; !ok {
		return teamup.Event{}, apperrors.NotFound("booking", e.ID)
	}
	c.events[e.ID] = clone(e)
	c.Writes++
	return clone(e), nil
}

func (c *Calendar) ListSubcalendars(context.Context) ([]teamup.Subcalendar, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, apperrors.Upstream("list subcalendars", c.Err)
	}
	return slices.Clone(c.subcalendars), nil
}

func (c *Calendar) newID() string {
	c.nextID++
	return strconv.Itoa(c.nextID)
}

func matches(e teamup.Event, query string) bool {
	query = strings.ToLower(query)
	if strings.Contains(strings.ToLower(e.Title), query) || strings.Contains(strings.ToLower(e.Notes), query) {
		return true
	}
	for _, v := range e.Custom {
		if strings.Contains(strings.ToLower(v), query) {
			return true
		}
	}
	return false
}

func clone(e teamup.Event) teamup.Event {
	e.SubcalendarIDs = slices.Clone(e.SubcalendarIDs)
	e.Custom = maps.Clone(e.Custom)
	return e
}
