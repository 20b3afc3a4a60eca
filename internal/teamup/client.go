package teamup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"glamora/internal/apperrors"
	"glamora/internal/metrics"
)

const DefaultBaseURL = "https://api.teamup.com"

// StatusError is a non-2xx TeamUp response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// Client talks to one TeamUp calendar.
type Client struct {
	baseURL     string
	apiKey      string
	calendarKey string
	loc         *time.Location
	httpClient  *http.Client
	limiter     *rate.Limiter
	log         zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
		}
	}
}

// WithLocation sets the zone used for day boundaries and written timestamps.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log.With().Str("component", "teamup").Logger() }
}

// New constructs a client for calendarKey authenticated with apiKey.
func New(baseURL, apiKey, calendarKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		calendarKey: calendarKey,
		loc:         time.Local,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UseRedisCache configures optional Redis caching for event and subcalendar
// listings. Writes invalidate cached listings.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// ListEvents returns events that intersect the days From..To.
func (c *Client) ListEvents(ctx context.Context, q ListQuery) ([]Event, error) {
	params := url.Values{}
	params.Set("startDate", q.From.In(c.loc).Format("2006-01-02"))
	params.Set("endDate", q.To.In(c.loc).Format("2006-01-02"))
	if q.SubcalendarID != 0 {
		params.Add("subcalendarId[]", strconv.FormatInt(q.SubcalendarID, 10))
	}
	if q.Query != "" {
		params.Set("query", q.Query)
	}

	cacheKey := c.eventsKey(params.Encode())
	var events []Event
	if !isFresh(ctx) && c.readCache(ctx, cacheKey, &events) {
		return events, nil
	}

	var wrap struct {
		Events []wireEvent `json:"events"`
	}
	if err := c.doGet(ctx, "list_events", c.endpoint("/events")+"?"+params.Encode(), &wrap); err != nil {
		return nil, apperrors.Upstream("list events", err)
	}

	events = make([]Event, 0, len(wrap.Events))
	for _, w := range wrap.Events {
		e, err := fromWire(w, c.loc)
		if err != nil {
			return nil, apperrors.Upstream("list events", err)
		}
		events = append(events, e)
	}

	c.writeCache(ctx, cacheKey, events)
	return events, nil
}

// SearchEvents runs a free-text search over the given day range.
func (c *Client) SearchEvents(ctx context.Context, query string, from, to time.Time) ([]Event, error) {
	return c.ListEvents(ctx, ListQuery{From: from, To: to, Query: query})
}

// GetEvent fetches one event. An unknown id is apperrors.ErrNotFound.
func (c *Client) GetEvent(ctx context.Context, id string) (Event, error) {
	var wrap struct {
		Event wireEvent `json:"event"`
	}
	if err := c.doGet(ctx, "get_event", c.endpoint("/events/"+url.PathEscape(id)), &wrap); err != nil {
		return Event{}, c.eventError("get event", id, err)
	}
	e, err := fromWire(wrap.Event, c.loc)
	if err != nil {
		return Event{}, apperrors.Upstream("get event", err)
	}
	return e, nil
}

// CreateEvent stores a new event and returns it with its assigned id.
func (c *Client) CreateEvent(ctx context.Context, e Event) (Event, error) {
	var wrap struct {
		Event wireEvent `json:"event"`
	}
	if err := c.doSend(ctx, "create_event", http.MethodPost, c.endpoint("/events"), toWire(e, c.loc), &wrap); err != nil {
		return Event{}, apperrors.Upstream("create event", err)
	}
	c.invalidateEvents(ctx)

	created, err := fromWire(wrap.Event, c.loc)
	if err != nil {
		return Event{}, apperrors.Upstream("create event", err)
	}
	return created, nil
}

// UpdateEvent replaces the event identified by e.ID.
func (c *Client) UpdateEvent(ctx context.Context, e Event) (Event, error) {
	if e.ID == "" {
		return Event{}, apperrors.Validation("event id is required")
	}
	var wrap struct {
		Event wireEvent `json:"event"`
	}
	endpoint := c.endpoint("/events/" + url.PathEscape(e.ID))
	if err := c.doSend(ctx, "update_event", http.MethodPut, endpoint, toWire(e, c.loc), &wrap); err != nil {
		return Event{}, c.eventError("update event", e.ID, err)
	}
	c.invalidateEvents(ctx)

	updated, err := fromWire(wrap.Event, c.loc)
	if err != nil {
		return Event{}, apperrors.Upstream("update event", err)
	}
	return updated, nil
}

// ListSubcalendars returns the calendar's subcalendars.
func (c *Client) ListSubcalendars(ctx context.Context) ([]Subcalendar, error) {
	cacheKey := fmt.Sprintf("teamup:subcalendars:%s", c.calendarKey)
	var wrap struct {
		Subcalendars []Subcalendar `json:"subcalendars"`
	}

	if !isFresh(ctx) && c.readCache(ctx, cacheKey, &wrap) {
		return wrap.Subcalendars, nil
	}

	if err := c.doGet(ctx, "list_subcalendars", c.endpoint("/subcalendars"), &wrap); err != nil {
		return nil, apperrors.Upstream("list subcalendars", err)
	}
	c.writeCache(ctx, cacheKey, wrap)
	return wrap.Subcalendars, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + "/" + url.PathEscape(c.calendarKey) + path
}

func (c *Client) eventError(op, id string, err error) error {
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return apperrors.NotFound("booking", id)
	}
	return apperrors.Upstream(op, err)
}

func (c *Client) doGet(ctx context.Context, op, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	return c.do(op, req, out)
}

func (c *Client) doSend(ctx context.Context, op, method, endpoint string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			metrics.IncUpstream(op, "throttled")
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	req.Header.Set("Teamup-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.IncUpstream(op, "error")
		c.log.Warn().Err(err).Str("op", op).Msg("teamup request failed")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		metrics.IncUpstream(op, strconv.Itoa(resp.StatusCode))
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn().
			Str("op", op).
			Int("status", resp.StatusCode).
			Dur("took", time.Since(started)).
			Msg("teamup request rejected")
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	metrics.IncUpstream(op, "ok")
	c.log.Debug().Str("op", op).Dur("took", time.Since(started)).Msg("teamup request")
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
