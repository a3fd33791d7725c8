package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sante-virtuelle/scheduling/internal/appointment"
	"github.com/sante-virtuelle/scheduling/internal/availability"
	"github.com/sante-virtuelle/scheduling/internal/calendar"
)

type AvailabilityView struct {
	Templates      []TemplateResponse       `json:"templates"`
	Unavailability []UnavailabilityResponse `json:"unavailability"`
}

func getAvailabilityHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseDoctorID(w, r)
		if !ok {
			return
		}

		from, to, ok := parseDateRange(w, r, 30)
		if !ok {
			return
		}

		templates, err := svc.ListTemplates(r.Context(), doctorID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		periods, err := svc.ListUnavailability(r.Context(), doctorID, from, to)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		view := AvailabilityView{
			Templates:      make([]TemplateResponse, 0, len(templates)),
			Unavailability: make([]UnavailabilityResponse, 0, len(periods)),
		}
		for i := range templates {
			view.Templates = append(view.Templates, toTemplateResponse(&templates[i]))
		}
		for i := range periods {
			view.Unavailability = append(view.Unavailability, toUnavailabilityResponse(&periods[i]))
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func setTemplateHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseDoctorID(w, r)
		if !ok {
			return
		}
		if !requireDoctorSelf(w, r, doctorID) {
			return
		}

		weekday, ok := parseWeekday(chi.URLParam(r, "weekday"))
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_weekday", "weekday must be monday through sunday")
			return
		}

		var req TemplateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		active := true
		if req.Active != nil {
			active = *req.Active
		}
		tmpl := &availability.Template{
			DoctorID:         doctorID,
			Weekday:          weekday,
			Start:            req.Start,
			End:              req.End,
			SlotDuration:     req.SlotDurationMin,
			LunchStart:       req.LunchStart,
			LunchEnd:         req.LunchEnd,
			MaxConsultations: req.MaxConsultations,
			Active:           active,
		}
		if err := svc.SetTemplate(r.Context(), tmpl); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toTemplateResponse(tmpl))
	}
}

func addUnavailabilityHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseDoctorID(w, r)
		if !ok {
			return
		}
		if !requireDoctorSelf(w, r, doctorID) {
			return
		}

		var req UnavailabilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		period := &availability.UnavailabilityPeriod{
			DoctorID:  doctorID,
			DateStart: req.DateStart,
			DateEnd:   req.DateEnd,
			Reason:    req.Reason,
			FullDay:   req.FullDay,
			TimeStart: req.TimeStart,
			TimeEnd:   req.TimeEnd,
		}
		if err := svc.AddUnavailability(r.Context(), period); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toUnavailabilityResponse(period))
	}
}

func removeUnavailabilityHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseDoctorID(w, r)
		if !ok {
			return
		}
		if !requireDoctorSelf(w, r, doctorID) {
			return
		}

		periodID, err := uuid.Parse(chi.URLParam(r, "periodID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_period_id", "periodID must be a valid UUID")
			return
		}

		if err := svc.RemoveUnavailability(r.Context(), doctorID, periodID); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func getSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseDoctorID(w, r)
		if !ok {
			return
		}

		date, err := calendar.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		slots, err := svc.SlotsForDay(r.Context(), doctorID, date)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if slots == nil {
			slots = []availability.Slot{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"doctor_id": doctorID,
			"date":      date,
			"slots":     slots,
		})
	}
}

func parseDoctorID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// parseDateRange reads from/to query params, defaulting to today through
// today+defaultDays.
func parseDateRange(w http.ResponseWriter, r *http.Request, defaultDays int) (calendar.Date, calendar.Date, bool) {
	from := calendar.Today()
	to := from.AddDays(defaultDays)

	var err error
	if s := r.URL.Query().Get("from"); s != "" {
		if from, err = calendar.ParseDate(s); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "from must be YYYY-MM-DD")
			return calendar.Date{}, calendar.Date{}, false
		}
	}
	if s := r.URL.Query().Get("to"); s != "" {
		if to, err = calendar.ParseDate(s); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "to must be YYYY-MM-DD")
			return calendar.Date{}, calendar.Date{}, false
		}
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "invalid_range", "to must not precede from")
		return calendar.Date{}, calendar.Date{}, false
	}
	return from, to, true
}

// requireDoctorSelf admits the doctor managing their own schedule, or an
// admin.
func requireDoctorSelf(w http.ResponseWriter, r *http.Request, doctorID uuid.UUID) bool {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing identity")
		return false
	}
	if actor.Role == appointment.RoleAdmin {
		return true
	}
	if actor.Role == appointment.RoleDoctor && actor.ID == doctorID {
		return true
	}
	writeError(w, http.StatusForbidden, "forbidden", "only the doctor may manage their schedule")
	return false
}

func parseWeekday(s string) (time.Weekday, bool) {
	switch strings.ToLower(s) {
	case "sunday":
		return time.Sunday, true
	case "monday":
		return time.Monday, true
	case "tuesday":
		return time.Tuesday, true
	case "wednesday":
		return time.Wednesday, true
	case "thursday":
		return time.Thursday, true
	case "friday":
		return time.Friday, true
	case "saturday":
		return time.Saturday, true
	}
	return 0, false
}
