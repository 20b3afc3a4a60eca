package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("reschedule booking: %w", SlotUnavailable("staff %d busy", 7))

	assert.True(t, errors.Is(err, ErrSlotUnavailable))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
}

func TestUpstreamUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream("list events", cause)

	assert.True(t, errors.Is(err, ErrUpstream))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "list events: connection refused", err.Error())
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("title is required"), http.StatusBadRequest},
		{"slot unavailable", SlotUnavailable("taken"), http.StatusConflict},
		{"not found", NotFound("booking", "42"), http.StatusNotFound},
		{"upstream", Upstream("get event", errors.New("boom")), http.StatusBadGateway},
		{"config", Config("bad schedule"), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(fmt.Errorf("wrapped: %w", tt.err)))
		})
	}
}

func TestNotFoundDetails(t *testing.T) {
	err := NotFound("booking", "ev-1")
	assert.Equal(t, "booking not found", err.Error())
	assert.Equal(t, "ev-1", err.Details["id"])
	assert.Equal(t, KindNotFound, KindOf(err))
}
