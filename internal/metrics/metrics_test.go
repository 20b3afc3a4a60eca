package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	Register()
	Register()

	before := testutil.ToFloat64(bookingOps.WithLabelValues("create", "ok"))
	IncBookingOp("create", "ok")
	IncBookingOp("create", "ok")
	assert.Equal(t, before+2, testutil.ToFloat64(bookingOps.WithLabelValues("create", "ok")))

	IncUpstream("list_events", "error")
	assert.Equal(t, float64(1), testutil.ToFloat64(upstreamCalls.WithLabelValues("list_events", "error")))

	IncHTTP("/api/bookings", "201")
	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequests.WithLabelValues("/api/bookings", "201")))
}

func TestObserveSlotComputation(t *testing.T) {
	ObserveSlotComputation("ok", 15*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(slotComputation))
}
