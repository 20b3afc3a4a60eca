package api

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
)

type staffView struct {
	Name            string            `json:"name"`
	Role            string            `json:"role,omitempty"`
	SubcalendarID   int64             `json:"subcalendarId"`
	Specializations []string          `json:"specializations,omitempty"`
	WorkingDays     map[string]string `json:"workingDays"`
}

type serviceView struct {
	Name            string `json:"name"`
	Category        string `json:"category"`
	Group           string `json:"group,omitempty"`
	DurationMinutes int    `json:"durationMinutes"`
}

func (s *HTTPServer) handleSubcalendars(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	subs, err := s.deps.Subcalendars.ListSubcalendars(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "", subs)
}

func (s *HTTPServer) handleStaff(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	members := s.deps.Staff.All()
	out := make([]staffView, len(members))
	for i, m := range members {
		out[i] = staffView{
			Name:            m.Name,
			Role:            m.Role,
			SubcalendarID:   m.SubcalendarID,
			Specializations: m.Specializations,
			WorkingDays:     m.WorkingDays(),
		}
	}
	writeData(w, http.StatusOK, "", out)
}

func (s *HTTPServer) handleServices(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list := s.deps.Services.All()
	if category := strings.TrimSpace(r.URL.Query().Get("category")); category != "" {
		list = s.deps.Services.ByCategory(category)
	}
	out := make([]serviceView, len(list))
	for i, svc := range list {
		out[i] = serviceView{
			Name:            svc.Name,
			Category:        svc.Category,
			Group:           svc.Group,
			DurationMinutes: svc.DurationMinutes(),
		}
	}
	writeData(w, http.StatusOK, "", out)
}
