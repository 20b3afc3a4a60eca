package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"glamora/internal/apperrors"
	"glamora/internal/booking"
)

// upcomingDefaultDays is the list horizon when no filter is given.
const upcomingDefaultDays = 30

// resolveStaff accepts a subcalendar id or a staff name.
func (s *HTTPServer) resolveStaff(id int64, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if id == 0 && name != "" {
		if n, err := strconv.ParseInt(name, 10, 64); err == nil {
			id = n
		} else {
			m, ok := s.deps.Staff.ByName(name)
			if !ok {
				return 0, apperrors.Validation("unknown staff member %q", name)
			}
			return m.SubcalendarID, nil
		}
	}
	if id == 0 {
		return 0, nil
	}
	if _, ok := s.deps.Staff.BySubcalendar(id); !ok {
		return 0, apperrors.Validation("unknown subcalendar %d", id)
	}
	return id, nil
}

// staffFromQuery reads ?subcalendarId or ?staff. Zero means not given.
func (s *HTTPServer) staffFromQuery(r *http.Request) (int64, error) {
	q := r.URL.Query()
	var id int64
	if raw := strings.TrimSpace(q.Get("subcalendarId")); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return 0, apperrors.Validation("subcalendarId must be a positive integer")
		}
		id = n
	}
	return s.resolveStaff(id, q.Get("staff"))
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createBookingRequest
	if err := s.decode(r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	staffID, err := s.resolveStaff(req.SubcalendarID, req.Staff)
	if err != nil {
		writeError(w, err)
		return
	}
	start, err := parseTime(req.StartTime, s.deps.Bookings.Location(), "startTime")
	if err != nil {
		writeError(w, err)
		return
	}

	b, err := s.deps.Bookings.Create(r.Context(), booking.CreateRequest{
		Title:       req.Title,
		StaffID:     staffID,
		Start:       start,
		Duration:    minutes(req.Duration),
		ServiceName: req.Service,
		Customer:    req.CustomerInfo.toCustomer(),
		Notes:       req.Notes,
		Location:    req.Location,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, "Booking created successfully", b)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	staffID, err := s.staffFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var list []booking.Booking
	switch {
	case strings.TrimSpace(q.Get("customer")) != "":
		list, err = s.deps.Bookings.ListByCustomer(r.Context(), q.Get("customer"))
	case strings.TrimSpace(q.Get("date")) != "":
		var date time.Time
		date, err = parseDate(q.Get("date"), s.deps.Bookings.Location(), "date")
		if err == nil {
			list, err = s.deps.Bookings.ListByDate(r.Context(), date, staffID)
		}
	default:
		days, ok, perr := optionalInt(r, "upcoming")
		if perr != nil {
			writeError(w, perr)
			return
		}
		if !ok {
			days = upcomingDefaultDays
		}
		list, err = s.deps.Bookings.ListUpcoming(r.Context(), days, staffID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []booking.Booking{}
	}
	writeData(w, http.StatusOK, "", list)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	b, err := s.deps.Bookings.Get(r.Context(), ps.ByName("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "", b)
}

func (s *HTTPServer) handleUpdateBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req updateBookingRequest
	if err := s.decode(r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	patch, err := s.toPatch(req)
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := s.deps.Bookings.Update(r.Context(), ps.ByName("id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "Booking updated successfully", b)
}

func (s *HTTPServer) toPatch(req updateBookingRequest) (booking.Patch, error) {
	patch := booking.Patch{
		Title:    req.Title,
		Notes:    req.Notes,
		Location: req.Location,
	}
	if req.StartTime != nil {
		start, err := parseTime(*req.StartTime, s.deps.Bookings.Location(), "startTime")
		if err != nil {
			return booking.Patch{}, err
		}
		patch.Start = &start
	}
	if req.Duration != nil {
		d := minutes(*req.Duration)
		patch.Duration = &d
	}
	if req.CustomerInfo != nil {
		c := req.CustomerInfo.toCustomer()
		patch.Customer = &c
	}
	if req.Status != nil {
		st := booking.Status(*req.Status)
		patch.Status = &st
	}
	return patch, nil
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req cancelRequest
	if err := s.decode(r, &req, true); err != nil {
		writeError(w, err)
		return
	}
	b, err := s.deps.Bookings.Cancel(r.Context(), ps.ByName("id"), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "Booking cancelled successfully", b)
}

func (s *HTTPServer) handleRescheduleBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req rescheduleRequest
	if err := s.decode(r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	start, err := parseTime(req.NewStartTime, s.deps.Bookings.Location(), "newStartTime")
	if err != nil {
		writeError(w, err)
		return
	}
	var dur *time.Duration
	if req.NewDuration != nil {
		d := minutes(*req.NewDuration)
		dur = &d
	}
	b, err := s.deps.Bookings.Reschedule(r.Context(), ps.ByName("id"), start, dur)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "Booking rescheduled successfully", b)
}
