package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"glamora/internal/apperrors"
	"glamora/internal/voice"
)

// handleVoiceTool answers a tool call with the flat tool result rather than
// the usual envelope. Unknown fields from the assistant are ignored.
func (s *HTTPServer) handleVoiceTool(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req voice.Request
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, apperrors.Validation("invalid JSON body: %v", err))
		return
	}
	resp, err := s.deps.Voice.Call(r.Context(), ps.ByName("tool"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
