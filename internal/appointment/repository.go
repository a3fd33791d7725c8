package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sante-virtuelle/scheduling/internal/calendar"
)

// SlotOccupancy is one active appointment's claim on a slot, used by the
// slot generator and by reschedule exclusion.
type SlotOccupancy struct {
	AppointmentID uuid.UUID
	Time          calendar.TimeOfDay
}

// Repository contains all DB interactions needed by the booking service.
// It enforces storage-level invariants only: foreign keys, the five status
// values, the active-slot unique index, and the row version check.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// Create inserts a new pending appointment; ErrSlotTaken when the
	// active-slot unique index rejects it.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to calendar.Date) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, statuses []Status) ([]Appointment, error)

	// For conflict checks and slot generation.
	GetActiveForSlot(ctx context.Context, doctorID uuid.UUID, date calendar.Date, t calendar.TimeOfDay) (*Appointment, error)
	ListActiveForDay(ctx context.Context, doctorID uuid.UUID, date calendar.Date) ([]SlotOccupancy, error)

	// UpdateStatus performs the optimistic-concurrency transition;
	// ErrVersionConflict when the expected version no longer matches.
	UpdateStatus(ctx context.Context, id uuid.UUID, expectedVersion int, to Status, cancelReason *string) (*Appointment, error)

	// ApplyReschedule moves the appointment to the proposed slot, capturing
	// the original date/time on first move, and sets status rescheduled.
	ApplyReschedule(ctx context.Context, id uuid.UUID, expectedVersion int, newDate calendar.Date, newTime calendar.TimeOfDay) (*Appointment, error)

	// AttachRating stores the one-time rating; ErrState when already rated.
	AttachRating(ctx context.Context, id uuid.UUID, score int, comment string) (*Appointment, error)

	CreateProposal(ctx context.Context, p *RescheduleProposal) error
	GetProposalByID(ctx context.Context, id uuid.UUID) (*RescheduleProposal, error)
	GetPendingProposalForAppointment(ctx context.Context, appointmentID uuid.UUID) (*RescheduleProposal, error)
	// ResolveProposal moves a pending proposal to accepted or rejected;
	// ErrState when it was already resolved.
	ResolveProposal(ctx context.Context, id uuid.UUID, to ProposalStatus) (*RescheduleProposal, error)

	// Completion sweep.
	FindDueConfirmed(ctx context.Context, now time.Time) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
