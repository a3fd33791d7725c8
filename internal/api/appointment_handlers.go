package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sante-virtuelle/scheduling/internal/appointment"
)

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		if actor.Role != appointment.RolePatient {
			writeError(w, http.StatusForbidden, "forbidden", "only patients may request appointments")
			return
		}

		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}
		if req.DoctorID == uuid.Nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id is required")
			return
		}

		appt, err := svc.Request(r.Context(), actor.ID, req.DoctorID, req.Date, req.Time, req.Description)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		switch {
		case q.Get("doctor_id") != "":
			doctorID, err := uuid.Parse(q.Get("doctor_id"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			if actor.Role != appointment.RoleAdmin && !(actor.Role == appointment.RoleDoctor && actor.ID == doctorID) {
				writeError(w, http.StatusForbidden, "forbidden", "only the doctor may list their agenda")
				return
			}
			from, to, ok := parseDateRange(w, r, 30)
			if !ok {
				return
			}
			appts, err := svc.ListByDoctor(r.Context(), doctorID, from, to)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeAppointmentList(w, appts)

		case q.Get("patient_id") != "":
			patientID, err := uuid.Parse(q.Get("patient_id"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			if actor.Role != appointment.RoleAdmin && !(actor.Role == appointment.RolePatient && actor.ID == patientID) {
				writeError(w, http.StatusForbidden, "forbidden", "only the patient may list their appointments")
				return
			}
			statuses, ok := parseStatuses(w, q.Get("status"))
			if !ok {
				return
			}
			appts, err := svc.ListByPatient(r.Context(), patientID, statuses)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeAppointmentList(w, appts)

		default:
			writeError(w, http.StatusBadRequest, "missing_filter", "doctor_id or patient_id query parameter is required")
		}
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := actorAndID(w, r)
		if !ok {
			return
		}
		appt, err := svc.GetAppointment(r.Context(), id, actor)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func confirmAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := actorAndID(w, r)
		if !ok {
			return
		}
		appt, err := svc.Confirm(r.Context(), id, actor)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rejectAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := actorAndID(w, r)
		if !ok {
			return
		}
		appt, err := svc.Reject(r.Context(), id, actor)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := actorAndID(w, r)
		if !ok {
			return
		}

		var req CancelAppointmentRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
				return
			}
		}

		appt, err := svc.Cancel(r.Context(), id, actor, req.Reason)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func completeAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := actorAndID(w, r)
		if !ok {
			return
		}
		appt, err := svc.MarkCompleted(r.Context(), id, actor)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rateAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := actorAndID(w, r)
		if !ok {
			return
		}

		var req RatingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		appt, err := svc.SubmitRating(r.Context(), id, actor, req.Score, req.Comment)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func proposeRescheduleHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := actorAndID(w, r)
		if !ok {
			return
		}

		var req ProposalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		proposal, err := svc.Propose(r.Context(), id, actor, req.Date, req.Time, req.Reason)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toProposalResponse(proposal))
	}
}

func respondProposalHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_proposal_id", "id must be a valid UUID")
			return
		}

		var req ProposalRespondRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		proposal, err := svc.Respond(r.Context(), id, actor, req.Accept)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toProposalResponse(proposal))
	}
}

func requireActor(w http.ResponseWriter, r *http.Request) (appointment.Actor, bool) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing identity")
		return appointment.Actor{}, false
	}
	return actor, true
}

func actorAndID(w http.ResponseWriter, r *http.Request) (appointment.Actor, uuid.UUID, bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return appointment.Actor{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return appointment.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}

func parseStatuses(w http.ResponseWriter, raw string) ([]appointment.Status, bool) {
	if raw == "" {
		return nil, true
	}
	var statuses []appointment.Status
	for _, s := range strings.Split(raw, ",") {
		st := appointment.Status(strings.TrimSpace(s))
		switch st {
		case appointment.StatusPending, appointment.StatusConfirmed,
			appointment.StatusRescheduled, appointment.StatusCancelled,
			appointment.StatusCompleted:
			statuses = append(statuses, st)
		default:
			writeError(w, http.StatusBadRequest, "invalid_status", "unknown status "+s)
			return nil, false
		}
	}
	return statuses, true
}

func writeAppointmentList(w http.ResponseWriter, appts []appointment.Appointment) {
	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, toAppointmentResponse(&appts[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": out})
}
