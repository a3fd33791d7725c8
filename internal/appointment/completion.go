package appointment

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
)

const minRatingCommentRunes = 10

// MarkCompleted moves a confirmed appointment whose slot has passed to
// completed. Idempotent: completing an already-completed appointment is a
// no-op. Doctors complete their own consultations; admins may complete any.
func (s *Service) MarkCompleted(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireDoctor(appt, actor); err != nil {
		return nil, err
	}
	return s.complete(ctx, appt)
}

// CompleteDue is the periodic sweep: every confirmed appointment whose slot
// is strictly past moves to completed. It is safe to run concurrently with
// bookings since it only touches past slots, and each transition is guarded
// by the row version.
func (s *Service) CompleteDue(ctx context.Context) (int, error) {
	due, err := s.repo.FindDueConfirmed(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("find due appointments: %w", err)
	}

	completed := 0
	for i := range due {
		if _, err := s.complete(ctx, &due[i]); err != nil {
			s.log.Warn().Err(err).
				Str("appointment_id", due[i].ID.String()).
				Msg("completion sweep skipped appointment")
			continue
		}
		completed++
	}
	return completed, nil
}

func (s *Service) complete(ctx context.Context, appt *Appointment) (*Appointment, error) {
	if appt.Status == StatusCompleted {
		return appt, nil
	}
	if appt.Status != StatusConfirmed {
		return nil, fmt.Errorf("%w: cannot complete from %s", ErrState, appt.Status)
	}
	if !appt.StartAt().Before(s.now()) {
		return nil, fmt.Errorf("%w: appointment has not taken place yet", ErrState)
	}

	updated, err := s.repo.UpdateStatus(ctx, appt.ID, appt.Version, StatusCompleted, nil)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, appt.ID, EventAppointmentCompleted, map[string]any{
		"doctor_id":  appt.DoctorID.String(),
		"patient_id": appt.PatientID.String(),
	})
	return updated, nil
}

// SubmitRating records the owning patient's one-time rating of a completed
// consultation.
func (s *Service) SubmitRating(ctx context.Context, id uuid.UUID, actor Actor, score int, comment string) (*Appointment, error) {
	if score < 1 || score > 5 {
		return nil, fmt.Errorf("%w: score must be between 1 and 5", ErrValidation)
	}
	if utf8.RuneCountInString(comment) < minRatingCommentRunes {
		return nil, fmt.Errorf("%w: comment must be at least %d characters", ErrValidation, minRatingCommentRunes)
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requirePatient(appt, actor); err != nil {
		return nil, err
	}
	if appt.Status != StatusCompleted {
		return nil, fmt.Errorf("%w: only completed appointments can be rated", ErrState)
	}
	if appt.Rating != nil {
		return nil, fmt.Errorf("%w: already rated", ErrState)
	}

	updated, err := s.repo.AttachRating(ctx, appt.ID, score, comment)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Int("score", score).
		Msg("rating submitted")
	return updated, nil
}
