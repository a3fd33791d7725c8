package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/sante-virtuelle/scheduling/internal/calendar"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusConfirmed   Status = "confirmed"
	StatusRescheduled Status = "rescheduled"
	StatusCancelled   Status = "cancelled"
	StatusCompleted   Status = "completed"
)

// Active reports whether the status occupies its slot. Active appointments
// are the ones the no-double-booking guarantee ranges over.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusRescheduled
}

// Terminal statuses permit no further transition.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Actor is the authenticated caller, supplied by the identity collaborator.
// The engine trusts it and never re-authenticates.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Rating is attached at most once, after completion.
type Rating struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

type Appointment struct {
	ID           uuid.UUID
	DoctorID     uuid.UUID
	PatientID    uuid.UUID
	Date         calendar.Date
	Time         calendar.TimeOfDay
	Duration     int // minutes
	Status       Status
	Description  string
	OriginalDate *calendar.Date // set only after a reschedule
	OriginalTime *calendar.TimeOfDay
	CancelReason *string
	Rating       *Rating
	Version      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StartAt returns the slot's starting instant in UTC.
func (a *Appointment) StartAt() time.Time {
	return a.Date.At(a.Time)
}

type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalAccepted ProposalStatus = "accepted"
	ProposalRejected ProposalStatus = "rejected"
)

// RescheduleProposal is a pending offer to move an appointment, resolved by
// the counterpart of whoever proposed it.
type RescheduleProposal struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	ProposedDate  calendar.Date
	ProposedTime  calendar.TimeOfDay
	Reason        string
	ProposedBy    Role
	Status        ProposalStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Event types appended to the event log for the notification collaborator.
// The engine guarantees emission, not delivery.
const (
	EventAppointmentRequested = "appointment_requested"
	EventAppointmentConfirmed = "appointment_confirmed"
	EventAppointmentCancelled = "appointment_cancelled"
	EventRescheduleProposed   = "reschedule_proposed"
	EventRescheduleResolved   = "reschedule_resolved"
	EventAppointmentCompleted = "appointment_completed"
)

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
