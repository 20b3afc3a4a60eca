package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"glamora/internal/apperrors"
	"glamora/internal/booking"
)

const maxBodyBytes = 1 << 20

type customerInfo struct {
	Name  string `json:"name" validate:"omitempty,max=100"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
}

func (c customerInfo) toCustomer() booking.Customer {
	return booking.Customer{Name: c.Name, Email: c.Email, Phone: c.Phone}
}

// createBookingRequest is the body of POST /api/bookings. Staff is picked by
// subcalendarId or by name.
type createBookingRequest struct {
	Title         string       `json:"title" validate:"required,max=200"`
	SubcalendarID int64        `json:"subcalendarId" validate:"required_without=Staff,gte=0"`
	Staff         string       `json:"staff" validate:"required_without=SubcalendarID"`
	StartTime     string       `json:"startTime" validate:"required"`
	Duration      int          `json:"duration" validate:"omitempty,min=1,max=720"`
	Service       string       `json:"service" validate:"max=100"`
	CustomerInfo  customerInfo `json:"customerInfo"`
	Notes         string       `json:"notes" validate:"max=2000"`
	Location      string       `json:"location" validate:"max=200"`
}

// updateBookingRequest is the body of PUT /api/bookings/:id. Absent fields
// are left unchanged.
type updateBookingRequest struct {
	Title        *string       `json:"title" validate:"omitempty,min=1,max=200"`
	StartTime    *string       `json:"startTime" validate:"omitempty,min=1"`
	Duration     *int          `json:"duration" validate:"omitempty,min=1,max=720"`
	CustomerInfo *customerInfo `json:"customerInfo"`
	Notes        *string       `json:"notes" validate:"omitempty,max=2000"`
	Location     *string       `json:"location" validate:"omitempty,max=200"`
	Status       *string       `json:"status" validate:"omitempty,oneof=requested confirmed cancelled rescheduled"`
}

type rescheduleRequest struct {
	NewStartTime string `json:"newStartTime" validate:"required"`
	NewDuration  *int   `json:"newDuration" validate:"omitempty,min=1,max=720"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it. An empty body is
// accepted when allowEmpty is set.
func (s *HTTPServer) decode(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return apperrors.Validation("invalid JSON body: %v", err)
	}
	return s.check(dst)
}

func (s *HTTPServer) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Validation("invalid request: %v", err)
	}
	fields := translate(verrs)
	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = f.Message
	}
	return apperrors.Validation("%s", strings.Join(msgs, "; ")).
		WithDetails(map[string]any{"fields": fields})
}

func translate(errs validator.ValidationErrors) []fieldError {
	out := make([]fieldError, 0, len(errs))
	for _, err := range errs {
		field := err.Field()
		var message string
		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "required_without":
			message = fmt.Sprintf("%s is required when %s is missing", field, lowerFirst(err.Param()))
		case "min":
			message = fmt.Sprintf("%s must be at least %s", field, err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", field, err.Param())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", field)
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", field, err.Param())
		default:
			message = fmt.Sprintf("%s is invalid", field)
		}
		out = append(out, fieldError{Field: field, Message: message})
	}
	return out
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

var timeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// parseTime accepts RFC 3339, or a local timestamp in the salon zone.
func parseTime(s string, loc *time.Location, field string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperrors.Validation("%s must be an ISO 8601 timestamp", field)
}

func parseDate(s string, loc *time.Location, field string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, apperrors.Validation("%s must be a date in YYYY-MM-DD format", field)
	}
	return t, nil
}

// optionalInt parses a non-negative integer query parameter; ok is false
// when it is absent.
func optionalInt(r *http.Request, name string) (v int, ok bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, false, nil
	}
	v, err = strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false, apperrors.Validation("%s must be a non-negative integer", name)
	}
	return v, true, nil
}

// positiveInt is optionalInt that also rejects zero.
func positiveInt(r *http.Request, name string) (v int, ok bool, err error) {
	v, ok, err = optionalInt(r, name)
	if err == nil && ok && v == 0 {
		return 0, false, apperrors.Validation("%s must be positive", name)
	}
	return v, ok, err
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
