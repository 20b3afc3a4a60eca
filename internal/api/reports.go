package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"glamora/internal/apperrors"
	"glamora/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *HTTPServer) handleBookingReport(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	if q.Get("startDate") == "" || q.Get("endDate") == "" {
		writeError(w, apperrors.Validation("startDate and endDate are required"))
		return
	}
	loc := s.deps.Bookings.Location()
	from, err := parseDate(q.Get("startDate"), loc, "startDate")
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := parseDate(q.Get("endDate"), loc, "endDate")
	if err != nil {
		writeError(w, err)
		return
	}
	staffID, err := s.staffFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rep, err := report.Generate(r.Context(), s.deps.Bookings, from, to, staffID)
	if err != nil {
		writeError(w, err)
		return
	}

	switch q.Get("format") {
	case "", "json":
		writeData(w, http.StatusOK, "", rep)
	case "xlsx":
		var buf bytes.Buffer
		if err := report.WriteXLSX(&buf, rep, s.staffName); err != nil {
			writeError(w, fmt.Errorf("write xlsx: %w", err))
			return
		}
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(rep.Period)))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	default:
		writeError(w, apperrors.Validation("format must be json or xlsx"))
	}
}

func (s *HTTPServer) staffName(id int64) string {
	if m, ok := s.deps.Staff.BySubcalendar(id); ok {
		return m.Name
	}
	return strconv.FormatInt(id, 10)
}
