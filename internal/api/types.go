package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/sante-virtuelle/scheduling/internal/appointment"
	"github.com/sante-virtuelle/scheduling/internal/availability"
	"github.com/sante-virtuelle/scheduling/internal/calendar"
)

type TemplateRequest struct {
	Start            calendar.TimeOfDay  `json:"start"`
	End              calendar.TimeOfDay  `json:"end"`
	SlotDurationMin  int                 `json:"slot_duration_min"`
	LunchStart       *calendar.TimeOfDay `json:"lunch_start,omitempty"`
	LunchEnd         *calendar.TimeOfDay `json:"lunch_end,omitempty"`
	MaxConsultations int                 `json:"max_consultations"`
	Active           *bool               `json:"active,omitempty"`
}

type TemplateResponse struct {
	ID               uuid.UUID           `json:"id"`
	DoctorID         uuid.UUID           `json:"doctor_id"`
	Weekday          string              `json:"weekday"`
	Start            calendar.TimeOfDay  `json:"start"`
	End              calendar.TimeOfDay  `json:"end"`
	SlotDurationMin  int                 `json:"slot_duration_min"`
	LunchStart       *calendar.TimeOfDay `json:"lunch_start,omitempty"`
	LunchEnd         *calendar.TimeOfDay `json:"lunch_end,omitempty"`
	MaxConsultations int                 `json:"max_consultations"`
	Active           bool                `json:"active"`
}

func toTemplateResponse(t *availability.Template) TemplateResponse {
	return TemplateResponse{
		ID:               t.ID,
		DoctorID:         t.DoctorID,
		Weekday:          t.Weekday.String(),
		Start:            t.Start,
		End:              t.End,
		SlotDurationMin:  t.SlotDuration,
		LunchStart:       t.LunchStart,
		LunchEnd:         t.LunchEnd,
		MaxConsultations: t.MaxConsultations,
		Active:           t.Active,
	}
}

type UnavailabilityRequest struct {
	DateStart calendar.Date       `json:"date_start"`
	DateEnd   calendar.Date       `json:"date_end"`
	Reason    string              `json:"reason"`
	FullDay   bool                `json:"full_day"`
	TimeStart *calendar.TimeOfDay `json:"time_start,omitempty"`
	TimeEnd   *calendar.TimeOfDay `json:"time_end,omitempty"`
}

type UnavailabilityResponse struct {
	ID        uuid.UUID           `json:"id"`
	DoctorID  uuid.UUID           `json:"doctor_id"`
	DateStart calendar.Date       `json:"date_start"`
	DateEnd   calendar.Date       `json:"date_end"`
	Reason    string              `json:"reason"`
	FullDay   bool                `json:"full_day"`
	TimeStart *calendar.TimeOfDay `json:"time_start,omitempty"`
	TimeEnd   *calendar.TimeOfDay `json:"time_end,omitempty"`
}

func toUnavailabilityResponse(p *availability.UnavailabilityPeriod) UnavailabilityResponse {
	return UnavailabilityResponse{
		ID:        p.ID,
		DoctorID:  p.DoctorID,
		DateStart: p.DateStart,
		DateEnd:   p.DateEnd,
		Reason:    p.Reason,
		FullDay:   p.FullDay,
		TimeStart: p.TimeStart,
		TimeEnd:   p.TimeEnd,
	}
}

type CreateAppointmentRequest struct {
	DoctorID    uuid.UUID          `json:"doctor_id"`
	Date        calendar.Date      `json:"date"`
	Time        calendar.TimeOfDay `json:"time"`
	Description string             `json:"description"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason,omitempty"`
}

type RatingRequest struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

type ProposalRequest struct {
	Date   calendar.Date      `json:"date"`
	Time   calendar.TimeOfDay `json:"time"`
	Reason string             `json:"reason"`
}

type ProposalRespondRequest struct {
	Accept bool `json:"accept"`
}

type AppointmentResponse struct {
	ID           uuid.UUID           `json:"id"`
	DoctorID     uuid.UUID           `json:"doctor_id"`
	PatientID    uuid.UUID           `json:"patient_id"`
	Date         calendar.Date       `json:"date"`
	Time         calendar.TimeOfDay  `json:"time"`
	DurationMin  int                 `json:"duration_min"`
	Status       string              `json:"status"`
	Description  string              `json:"description,omitempty"`
	OriginalDate *calendar.Date      `json:"original_date,omitempty"`
	OriginalTime *calendar.TimeOfDay `json:"original_time,omitempty"`
	CancelReason *string             `json:"cancel_reason,omitempty"`
	Rating       *appointment.Rating `json:"rating,omitempty"`
	Version      int                 `json:"version"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		DoctorID:     a.DoctorID,
		PatientID:    a.PatientID,
		Date:         a.Date,
		Time:         a.Time,
		DurationMin:  a.Duration,
		Status:       string(a.Status),
		Description:  a.Description,
		OriginalDate: a.OriginalDate,
		OriginalTime: a.OriginalTime,
		CancelReason: a.CancelReason,
		Rating:       a.Rating,
		Version:      a.Version,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

type ProposalResponse struct {
	ID            uuid.UUID          `json:"id"`
	AppointmentID uuid.UUID          `json:"appointment_id"`
	ProposedDate  calendar.Date      `json:"proposed_date"`
	ProposedTime  calendar.TimeOfDay `json:"proposed_time"`
	Reason        string             `json:"reason"`
	ProposedBy    string             `json:"proposed_by"`
	Status        string             `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
}

func toProposalResponse(p *appointment.RescheduleProposal) ProposalResponse {
	return ProposalResponse{
		ID:            p.ID,
		AppointmentID: p.AppointmentID,
		ProposedDate:  p.ProposedDate,
		ProposedTime:  p.ProposedTime,
		Reason:        p.Reason,
		ProposedBy:    string(p.ProposedBy),
		Status:        string(p.Status),
		CreatedAt:     p.CreatedAt,
	}
}
