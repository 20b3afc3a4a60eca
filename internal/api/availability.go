package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"glamora/internal/apperrors"
	"glamora/internal/booking"
	"glamora/internal/slots"
)

type availabilityResponse struct {
	StaffID   int64     `json:"staffId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Available bool      `json:"available"`
}

type slotsResponse struct {
	StaffID  int64        `json:"staffId"`
	Date     string       `json:"date"`
	Slots    []slots.Slot `json:"slots"`
	Count    int          `json:"count"`
	Duration string       `json:"duration,omitempty"`
}

// durationFromQuery reads ?duration in minutes, falling back to ?service.
// Zero means neither was given.
func (s *HTTPServer) durationFromQuery(r *http.Request) (time.Duration, error) {
	n, ok, err := positiveInt(r, "duration")
	if err != nil {
		return 0, err
	}
	if ok {
		return minutes(n), nil
	}
	if svc := strings.TrimSpace(r.URL.Query().Get("service")); svc != "" {
		d, _ := s.deps.Services.DurationOrDefault(svc)
		return d, nil
	}
	return 0, nil
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	staffID, err := s.staffFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if staffID == 0 {
		writeError(w, apperrors.Validation("staff or subcalendarId is required"))
		return
	}
	if strings.TrimSpace(q.Get("startTime")) == "" {
		writeError(w, apperrors.Validation("startTime is required"))
		return
	}
	start, err := parseTime(q.Get("startTime"), s.deps.Bookings.Location(), "startTime")
	if err != nil {
		writeError(w, err)
		return
	}
	duration, err := s.durationFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if duration == 0 {
		writeError(w, apperrors.Validation("duration or service is required"))
		return
	}

	ok, err := s.deps.Bookings.CheckAvailability(r.Context(), staffID, start, duration, q.Get("excludeId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "", availabilityResponse{
		StaffID:   staffID,
		StartTime: start,
		EndTime:   start.Add(duration),
		Available: ok,
	})
}

// handleSlots lists free slots for one staff member, or for everyone when no
// staff is given.
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	staffID, err := s.staffFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(q.Get("date")) == "" {
		writeError(w, apperrors.Validation("date is required"))
		return
	}
	date, err := parseDate(q.Get("date"), s.deps.Bookings.Location(), "date")
	if err != nil {
		writeError(w, err)
		return
	}

	req := booking.SlotRequest{Date: date, ServiceName: strings.TrimSpace(q.Get("service"))}
	if n, ok, err := positiveInt(r, "duration"); err != nil {
		writeError(w, err)
		return
	} else if ok {
		req.Duration = minutes(n)
	}
	if n, ok, err := positiveInt(r, "step"); err != nil {
		writeError(w, err)
		return
	} else if ok {
		req.Step = minutes(n)
	}
	if n, ok, err := optionalInt(r, "buffer"); err != nil {
		writeError(w, err)
		return
	} else if ok {
		req.BufferMinutes = &n
	}

	if staffID != 0 {
		req.StaffID = staffID
		got, err := s.deps.Bookings.ComputeAvailableSlots(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeData(w, http.StatusOK, "", s.slotsResponse(staffID, date, got))
		return
	}

	all, err := s.deps.Bookings.ComputeSlotsForStaff(r.Context(), req, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]slotsResponse, len(all))
	for i, ss := range all {
		out[i] = s.slotsResponse(ss.StaffID, date, ss.Slots)
	}
	writeData(w, http.StatusOK, "", out)
}

func (s *HTTPServer) slotsResponse(staffID int64, date time.Time, got []slots.Slot) slotsResponse {
	resp := slotsResponse{
		StaffID: staffID,
		Date:    date.Format(time.DateOnly),
		Slots:   got,
		Count:   len(got),
	}
	if resp.Slots == nil {
		resp.Slots = []slots.Slot{}
	}
	if len(got) > 0 {
		resp.Duration = slots.FormatDuration(int(got[0].End.Sub(got[0].Start).Minutes()))
	}
	return resp
}
