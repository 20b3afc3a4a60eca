package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glamora",
			Name:      "booking_operations_total",
			Help:      "Count of booking lifecycle operations by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	slotComputation = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "glamora",
			Name:      "slot_computation_seconds",
			Help:      "Time spent computing available slots for one staff member and day.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glamora",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	upstreamCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glamora",
			Name:      "teamup_requests_total",
			Help:      "Count of TeamUp API calls by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glamora",
			Name:      "teamup_cache_lookups_total",
			Help:      "Count of TeamUp cache lookups by result.",
		},
		[]string{"result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingOps, slotComputation, httpRequests, upstreamCalls, cacheLookups)
	})
}

func IncBookingOp(op, outcome string) {
	bookingOps.WithLabelValues(op, outcome).Inc()
}

func ObserveSlotComputation(outcome string, d time.Duration) {
	slotComputation.WithLabelValues(outcome).Observe(d.Seconds())
}

func IncHTTP(route, code string) {
	httpRequests.WithLabelValues(route, code).Inc()
}

func IncUpstream(op, outcome string) {
	upstreamCalls.WithLabelValues(op, outcome).Inc()
}

func IncCache(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}
