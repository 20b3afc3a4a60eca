// Package api exposes the booking service over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"

	"glamora/internal/apperrors"
	"glamora/internal/booking"
	"glamora/internal/catalog"
	"glamora/internal/config"
	"glamora/internal/slots"
	"glamora/internal/teamup"
	"glamora/internal/voice"
)

// Bookings is the booking service as seen by the handlers.
type Bookings interface {
	Location() *time.Location
	Create(ctx context.Context, req booking.CreateRequest) (booking.Booking, error)
	Get(ctx context.Context, id string) (booking.Booking, error)
	Update(ctx context.Context, id string, patch booking.Patch) (booking.Booking, error)
	Cancel(ctx context.Context, id, reason string) (booking.Booking, error)
	Reschedule(ctx context.Context, id string, newStart time.Time, newDuration *time.Duration) (booking.Booking, error)
	ListByDate(ctx context.Context, date time.Time, staffID int64) ([]booking.Booking, error)
	ListRange(ctx context.Context, from, to time.Time, staffID int64) ([]booking.Booking, error)
	ListUpcoming(ctx context.Context, days int, staffID int64) ([]booking.Booking, error)
	ListByCustomer(ctx context.Context, email string) ([]booking.Booking, error)
	CheckAvailability(ctx context.Context, staffID int64, start time.Time, duration time.Duration, excludeID string) (bool, error)
	ComputeAvailableSlots(ctx context.Context, req booking.SlotRequest) ([]slots.Slot, error)
	ComputeSlotsForStaff(ctx context.Context, req booking.SlotRequest, staffIDs []int64) ([]booking.StaffSlots, error)
}

// StaffDirectory resolves staff by name or subcalendar id.
type StaffDirectory interface {
	All() []config.StaffMember
	ByName(name string) (config.StaffMember, bool)
	BySubcalendar(id int64) (config.StaffMember, bool)
}

// Services is the service catalog.
type Services interface {
	All() []catalog.Service
	ByCategory(category string) []catalog.Service
	DurationOrDefault(name string) (time.Duration, bool)
}

// Subcalendars lists the calendar's subcalendars.
type Subcalendars interface {
	ListSubcalendars(ctx context.Context) ([]teamup.Subcalendar, error)
}

// VoiceTools answers voice-assistant tool calls.
type VoiceTools interface {
	Call(ctx context.Context, tool string, req voice.Request) (voice.Response, error)
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Bookings     Bookings
	Staff        StaffDirectory
	Services     Services
	Subcalendars Subcalendars
	Voice        VoiceTools
}

// Options tune the HTTP server. A zero RateLimitRequests disables limiting.
// TrustedProxies lists addresses or CIDR ranges whose forwarding headers
// identify the client.
type Options struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
	TrustedProxies    []string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

// HTTPServer routes requests to the booking service.
type HTTPServer struct {
	deps     Deps
	log      zerolog.Logger
	opts     Options
	router   *httprouter.Router
	handler  http.Handler
	limiter  *ipLimiter
	validate *validator.Validate
	srv      *http.Server
}

func NewHTTPServer(deps Deps, log zerolog.Logger, opts Options) (*HTTPServer, error) {
	s := &HTTPServer{
		deps:     deps,
		log:      log.With().Str("component", "api").Logger(),
		opts:     opts,
		router:   httprouter.New(),
		validate: newValidator(),
	}
	s.routes()

	var limiter *ipLimiter
	if opts.RateLimitRequests > 0 && opts.RateLimitWindow > 0 {
		limiter = newIPLimiter(opts.RateLimitRequests, opts.RateLimitWindow)
	}
	proxies, err := parseProxies(opts.TrustedProxies)
	if err != nil {
		return nil, apperrors.Config("server.trusted_proxies: %v", err)
	}
	s.limiter = limiter

	var h http.Handler = s.router
	h = withRateLimit(limiter, proxies, s.log, h)
	h = withRecovery(s.log, h)
	h = withLogging(s.log, h)
	h = withRequestID(h)
	s.handler = h
	return s, nil
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

// ListenAndServe blocks until the server stops. It returns nil after Shutdown.
func (s *HTTPServer) ListenAndServe(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       s.opts.ReadTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Str("addr", addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *HTTPServer) routes() {
	s.handle(http.MethodGet, "/", s.handleIndex)
	s.handle(http.MethodGet, "/health", s.handleHealth)
	s.handle(http.MethodGet, "/healthz", s.handleHealth)

	s.handle(http.MethodGet, "/api/subcalendars", s.handleSubcalendars)
	s.handle(http.MethodGet, "/api/staff", s.handleStaff)
	s.handle(http.MethodGet, "/api/services", s.handleServices)

	s.handle(http.MethodPost, "/api/bookings", s.handleCreateBooking)
	s.handle(http.MethodGet, "/api/bookings", s.handleListBookings)
	s.handle(http.MethodGet, "/api/bookings/:id", s.handleGetBooking)
	s.handle(http.MethodPut, "/api/bookings/:id", s.handleUpdateBooking)
	s.handle(http.MethodDelete, "/api/bookings/:id", s.handleCancelBooking)
	s.handle(http.MethodPost, "/api/bookings/:id/reschedule", s.handleRescheduleBooking)

	s.handle(http.MethodGet, "/api/availability", s.handleAvailability)
	s.handle(http.MethodGet, "/api/availability/slots", s.handleSlots)

	s.handle(http.MethodGet, "/api/reports/bookings", s.handleBookingReport)

	s.handle(http.MethodPost, "/api/voice/tools/:tool", s.handleVoiceTool)

	s.router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrorMessage(w, http.StatusNotFound, "Endpoint not found")
	})
	s.router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
}

// handle registers h and records its pattern for logging and metrics.
func (s *HTTPServer) handle(method, pattern string, h httprouter.Handle) {
	route := method + " " + pattern
	s.router.Handle(method, pattern, func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		setRoute(r.Context(), route)
		h(w, r, ps)
	})
}

type endpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

var endpoints = []endpoint{
	{http.MethodGet, "/health", "liveness"},
	{http.MethodGet, "/api/subcalendars", "calendar subcalendars"},
	{http.MethodGet, "/api/staff", "configured staff"},
	{http.MethodGet, "/api/services", "service catalog (?category)"},
	{http.MethodPost, "/api/bookings", "create a booking"},
	{http.MethodGet, "/api/bookings", "list bookings (?date&staff | ?customer | ?upcoming)"},
	{http.MethodGet, "/api/bookings/:id", "get a booking"},
	{http.MethodPut, "/api/bookings/:id", "update a booking"},
	{http.MethodDelete, "/api/bookings/:id", "cancel a booking"},
	{http.MethodPost, "/api/bookings/:id/reschedule", "move a booking"},
	{http.MethodGet, "/api/availability", "check one interval (?staff&startTime&duration&excludeId)"},
	{http.MethodGet, "/api/availability/slots", "free slots on a day (?staff&date&duration|service&step&buffer)"},
	{http.MethodGet, "/api/reports/bookings", "booking report (?startDate&endDate&staff&format=xlsx)"},
	{http.MethodPost, "/api/voice/tools/:tool", "voice assistant tools"},
}

func (s *HTTPServer) handleIndex(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeData(w, http.StatusOK, "", map[string]any{
		"name":       "Glamora booking API",
		"endpoints":  endpoints,
		"voiceTools": voice.Describe(),
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeData(w, http.StatusOK, "", map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
