package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"glamora/internal/apperrors"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    any            `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

// writeError maps classified errors to their status. Internal and calendar
// failures get a generic message; the full error goes to the request log.
func writeError(w http.ResponseWriter, err error) {
	if rec, ok := w.(*statusRecorder); ok {
		rec.err = err
	}
	status := apperrors.HTTPStatus(err)
	kind := apperrors.KindOf(err)
	body := envelope{Code: string(kind)}

	switch {
	case kind == apperrors.KindUpstream:
		body.Error = "calendar service unavailable"
	case status == http.StatusInternalServerError && kind == apperrors.KindInternal:
		body.Error = "internal server error"
	default:
		body.Error = err.Error()
	}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		body.Details = appErr.Details
	}
	writeJSON(w, status, body)
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Error: message})
}
