package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sante-virtuelle/scheduling/internal/availability"
	"github.com/sante-virtuelle/scheduling/internal/calendar"
	redisclient "github.com/sante-virtuelle/scheduling/internal/redis"
)

// AvailabilityReader is the read-only view of the availability model needed
// for slot generation.
type AvailabilityReader interface {
	GetTemplate(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) (*availability.Template, error)
	ListUnavailability(ctx context.Context, doctorID uuid.UUID, from, to calendar.Date) ([]availability.UnavailabilityPeriod, error)
}

// Service is the booking engine: it creates, confirms, rejects, and cancels
// appointments against freshly generated slot sets, with the per-slot lock
// and the active-slot unique index preventing double booking.
type Service struct {
	repo   Repository
	avail  AvailabilityReader
	locker redisclient.Locker
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, avail AvailabilityReader, locker redisclient.Locker, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		avail:  avail,
		locker: locker,
		log:    log,
		now:    time.Now,
	}
}

// SlotKey names the per-slot critical section shared by booking, confirm,
// and reschedule-accept.
func SlotKey(doctorID uuid.UUID, date calendar.Date, t calendar.TimeOfDay) string {
	return fmt.Sprintf("%s:%s:%s", doctorID, date, t)
}

// SlotsForDay produces the ordered bookable slot sequence for a doctor and
// date. The result is a snapshot: any successful booking mutation for that
// (doctor, date) invalidates it, and callers must regenerate before acting.
func (s *Service) SlotsForDay(ctx context.Context, doctorID uuid.UUID, date calendar.Date) ([]availability.Slot, error) {
	return s.slotsForDay(ctx, doctorID, date, uuid.Nil)
}

// slotsForDay optionally ignores one appointment's claim, which is how a
// reschedule validates its own target slot.
func (s *Service) slotsForDay(ctx context.Context, doctorID uuid.UUID, date calendar.Date, exclude uuid.UUID) ([]availability.Slot, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}

	tmpl, err := s.avail.GetTemplate(ctx, doctorID, date.Weekday())
	if err != nil {
		if errors.Is(err, availability.ErrTemplateNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load template: %w", err)
	}

	periods, err := s.avail.ListUnavailability(ctx, doctorID, date, date)
	if err != nil {
		return nil, fmt.Errorf("load unavailability: %w", err)
	}

	occupancy, err := s.repo.ListActiveForDay(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}

	taken := make(map[calendar.TimeOfDay]bool, len(occupancy))
	for _, occ := range occupancy {
		if occ.AppointmentID == exclude {
			continue
		}
		taken[occ.Time] = true
	}

	return availability.GenerateSlots(tmpl, periods, taken, date), nil
}

// Request books a slot for a patient. The slot must be open on a fresh
// read; the insert runs under the per-slot lock, and the loser of a race
// receives ErrConflict and must retry against a regenerated slot list.
func (s *Service) Request(ctx context.Context, patientID, doctorID uuid.UUID, date calendar.Date, t calendar.TimeOfDay, description string) (*Appointment, error) {
	if date.IsZero() || !t.Valid() {
		return nil, fmt.Errorf("%w: date and time are required", ErrValidation)
	}
	if !date.At(t).After(s.now()) {
		return nil, fmt.Errorf("%w: cannot book a past slot", ErrValidation)
	}
	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		return nil, err
	}

	slot, err := s.findSlot(ctx, doctorID, date, t, uuid.Nil)
	if err != nil {
		return nil, err
	}

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, SlotKey(doctorID, date, t), func(lockCtx context.Context) error {
		// Re-check inside the critical section: the snapshot above may
		// already be stale.
		existing, err := s.repo.GetActiveForSlot(lockCtx, doctorID, date, t)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check slot occupancy: %w", err)
		}
		if existing != nil {
			return ErrSlotTaken
		}

		appt := &Appointment{
			ID:          uuid.New(),
			DoctorID:    doctorID,
			PatientID:   patientID,
			Date:        date,
			Time:        t,
			Duration:    slot.Duration,
			Status:      StatusPending,
			Description: description,
		}
		if err := s.repo.Create(lockCtx, appt); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		created = appt

		s.emit(lockCtx, appt.ID, EventAppointmentRequested, map[string]any{
			"doctor_id":  doctorID.String(),
			"patient_id": patientID.String(),
			"date":       date.String(),
			"time":       t.String(),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, fmt.Errorf("%w: slot is being booked, retry", ErrConflict)
		}
		return nil, err
	}

	return created, nil
}

// Confirm moves a pending or rescheduled appointment to confirmed. The slot
// is re-validated so that two requests approved in sequence cannot both end
// up confirmed on the same slot.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireDoctor(appt, actor); err != nil {
		return nil, err
	}
	if appt.Status != StatusPending && appt.Status != StatusRescheduled {
		return nil, fmt.Errorf("%w: cannot confirm from %s", ErrState, appt.Status)
	}

	var updated *Appointment
	err = s.locker.WithSlotLock(ctx, SlotKey(appt.DoctorID, appt.Date, appt.Time), func(lockCtx context.Context) error {
		holder, err := s.repo.GetActiveForSlot(lockCtx, appt.DoctorID, appt.Date, appt.Time)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check slot occupancy: %w", err)
		}
		if holder != nil && holder.ID != appt.ID {
			return ErrSlotTaken
		}

		updated, err = s.repo.UpdateStatus(lockCtx, appt.ID, appt.Version, StatusConfirmed, nil)
		if err != nil {
			return err
		}
		s.emit(lockCtx, appt.ID, EventAppointmentConfirmed, map[string]any{
			"doctor_id":  appt.DoctorID.String(),
			"patient_id": appt.PatientID.String(),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, fmt.Errorf("%w: slot is being booked, retry", ErrConflict)
		}
		return nil, err
	}
	return updated, nil
}

// Reject is the doctor declining a pending request.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireDoctor(appt, actor); err != nil {
		return nil, err
	}
	if appt.Status != StatusPending {
		return nil, fmt.Errorf("%w: cannot reject from %s", ErrState, appt.Status)
	}

	reason := "rejected by doctor"
	updated, err := s.repo.UpdateStatus(ctx, appt.ID, appt.Version, StatusCancelled, &reason)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, appt.ID, EventAppointmentCancelled, map[string]any{
		"doctor_id":  appt.DoctorID.String(),
		"patient_id": appt.PatientID.String(),
		"reason":     reason,
	})
	return updated, nil
}

// Cancel moves an active appointment to cancelled. Cancellation is terminal
// and idempotent: cancelling an already-cancelled appointment is a no-op.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor Actor, reason string) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireParty(appt, actor); err != nil {
		return nil, err
	}
	if appt.Status == StatusCancelled {
		return appt, nil
	}
	if appt.Status == StatusCompleted {
		return nil, fmt.Errorf("%w: cannot cancel a completed appointment", ErrState)
	}

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	updated, err := s.repo.UpdateStatus(ctx, appt.ID, appt.Version, StatusCancelled, reasonPtr)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, appt.ID, EventAppointmentCancelled, map[string]any{
		"doctor_id":  appt.DoctorID.String(),
		"patient_id": appt.PatientID.String(),
		"by":         string(actor.Role),
		"reason":     reason,
	})
	return updated, nil
}

// GetAppointment returns one appointment, visible only to its two parties.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireParty(appt, actor); err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to calendar.Date) ([]Appointment, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end %s before start %s", ErrValidation, to, from)
	}
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.repo.ListByDoctor(ctx, doctorID, from, to)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, statuses []Status) ([]Appointment, error) {
	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListByPatient(ctx, patientID, statuses)
}

// findSlot locates the requested time in a fresh slot snapshot and rejects
// anything that is not open.
func (s *Service) findSlot(ctx context.Context, doctorID uuid.UUID, date calendar.Date, t calendar.TimeOfDay, exclude uuid.UUID) (*availability.Slot, error) {
	slots, err := s.slotsForDay(ctx, doctorID, date, exclude)
	if err != nil {
		return nil, err
	}
	for i := range slots {
		if slots[i].Time != t {
			continue
		}
		switch slots[i].State {
		case availability.SlotOpen:
			return &slots[i], nil
		case availability.SlotTaken:
			return nil, ErrSlotTaken
		case availability.SlotCapacityExceeded:
			return nil, fmt.Errorf("%w: daily consultation capacity reached", ErrConflict)
		}
	}
	return nil, fmt.Errorf("%w: %s on %s is not a bookable slot", ErrConflict, t, date)
}

func requireDoctor(appt *Appointment, actor Actor) error {
	if actor.Role == RoleAdmin {
		return nil
	}
	if actor.Role != RoleDoctor || actor.ID != appt.DoctorID {
		return fmt.Errorf("%w: only the appointment's doctor may do this", ErrForbidden)
	}
	return nil
}

func requirePatient(appt *Appointment, actor Actor) error {
	if actor.Role != RolePatient || actor.ID != appt.PatientID {
		return fmt.Errorf("%w: only the owning patient may do this", ErrForbidden)
	}
	return nil
}

// requireParty admits the owning patient, the target doctor, or an admin.
func requireParty(appt *Appointment, actor Actor) error {
	switch actor.Role {
	case RoleAdmin:
		return nil
	case RoleDoctor:
		if actor.ID == appt.DoctorID {
			return nil
		}
	case RolePatient:
		if actor.ID == appt.PatientID {
			return nil
		}
	}
	return fmt.Errorf("%w: not a party to this appointment", ErrForbidden)
}

func (s *Service) emit(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("insert event log")
		return
	}
	s.log.Info().
		Str("event", eventType).
		Str("appointment_id", appointmentID.String()).
		Msg("event emitted")
}
