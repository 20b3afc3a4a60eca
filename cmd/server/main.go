package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"glamora/internal/api"
	"glamora/internal/booking"
	"glamora/internal/catalog"
	"glamora/internal/config"
	"glamora/internal/events"
	"glamora/internal/metrics"
	"glamora/internal/schedule"
	"glamora/internal/teamup"
	"glamora/internal/voice"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = newLogger(cfg)

	salon, err := config.LoadSalon(cfg.SalonConfigPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.SalonConfigPath).Msg("failed to load salon config")
	}
	loc := salon.Location()

	services, err := catalog.New(salon.ServiceList(), salon.DefaultDuration(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build service catalog")
	}
	roster := salon.Roster()

	calendar := teamup.New(cfg.TeamUp.BaseURL, cfg.TeamUp.APIKey, cfg.TeamUp.CalendarKey,
		teamup.WithHTTPClient(&http.Client{Timeout: cfg.TeamUpTimeout()}),
		teamup.WithRateLimit(cfg.TeamUp.RequestsPerSecond, cfg.TeamUp.Burst),
		teamup.WithLocation(loc),
		teamup.WithLogger(logger),
	)
	var rdb *redis.Client
	if cfg.Redis.Address != "" && cfg.CacheTTL() > 0 {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		calendar.UseRedisCache(rdb, cfg.CacheTTL())
	}

	bus := events.NewEventBus(logger)
	if cfg.Kafka.Enabled {
		sink, err := events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create kafka sink")
		}
		defer sink.Close()
		bus.Subscribe(events.AllTypes, sink.Handle)
	}

	bookings := booking.NewService(calendar, roster, schedule.NewResolver(loc, salon.Hours()), services, booking.Policy{
		MinAdvance:       salon.MinAdvance(),
		MaxAdvance:       salon.MaxAdvance(),
		BufferMinutes:    salon.BufferMinutes(),
		AllowOverbooking: salon.Rules.AllowOverbooking,
		DefaultDuration:  salon.DefaultDuration(),
		SlotStep:         salon.SlotStep(),
	}, logger, booking.WithPublisher(bus))

	requests, window := cfg.RateLimit()
	server, err := api.NewHTTPServer(api.Deps{
		Bookings:     bookings,
		Staff:        roster,
		Services:     services,
		Subcalendars: calendar,
		Voice:        voice.NewHandler(bookings, roster, services, salon.Templates, logger),
	}, logger, api.Options{
		RateLimitRequests: requests,
		RateLimitWindow:   window,
		TrustedProxies:    cfg.Server.TrustedProxies,
		ReadTimeout:       cfg.ReadTimeout(),
		WriteTimeout:      cfg.WriteTimeout(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build http server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go startHealthServer(ctx, cfg.HealthCheckPort(), rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.PrometheusPort(), &logger)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe(fmt.Sprintf(":%d", cfg.ServerPort()))
	}()

	logger.Info().
		Str("salon", salon.Name).
		Str("timezone", loc.String()).
		Int("staff", len(roster.IDs())).
		Int("services", len(services.All())).
		Msg("booking API started")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("booking API stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || cfg.Log.Level == "" {
		level = zerolog.InfoLevel
	}
	if cfg.Log.Format == "json" {
		return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	}
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func startHealthServer(ctx context.Context, port int, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if rdb != nil {
			ctxPing, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	serveUntilDone(ctx, port, mux, "health", logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	serveUntilDone(ctx, port, mux, "metrics", logger)
}

func serveUntilDone(ctx context.Context, port int, h http.Handler, name string, logger *zerolog.Logger) {
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}
