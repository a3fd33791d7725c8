package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sante-virtuelle/scheduling/internal/calendar"
)

// Service validates and persists availability templates and unavailability
// periods. It never inspects appointments; slot occupancy is the booking
// side's concern.
type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// GetTemplate returns the template for the doctor's weekday, or
// ErrTemplateNotFound when none is declared.
func (s *Service) GetTemplate(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) (*Template, error) {
	return s.repo.GetTemplate(ctx, doctorID, weekday)
}

func (s *Service) ListTemplates(ctx context.Context, doctorID uuid.UUID) ([]Template, error) {
	return s.repo.ListTemplates(ctx, doctorID)
}

// SetTemplate creates or replaces the doctor's template for one weekday.
func (s *Service) SetTemplate(ctx context.Context, t *Template) error {
	if err := validateTemplate(t); err != nil {
		return err
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if err := s.repo.UpsertTemplate(ctx, t); err != nil {
		return fmt.Errorf("upsert template: %w", err)
	}
	s.log.Info().
		Str("doctor_id", t.DoctorID.String()).
		Str("weekday", t.Weekday.String()).
		Str("hours", fmt.Sprintf("%s-%s", t.Start, t.End)).
		Msg("availability template set")
	return nil
}

func (s *Service) ListUnavailability(ctx context.Context, doctorID uuid.UUID, from, to calendar.Date) ([]UnavailabilityPeriod, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end %s before start %s", ErrValidation, to, from)
	}
	return s.repo.ListUnavailability(ctx, doctorID, from, to)
}

func (s *Service) AddUnavailability(ctx context.Context, p *UnavailabilityPeriod) error {
	if err := validatePeriod(p); err != nil {
		return err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if err := s.repo.AddUnavailability(ctx, p); err != nil {
		return fmt.Errorf("add unavailability: %w", err)
	}
	s.log.Info().
		Str("doctor_id", p.DoctorID.String()).
		Str("from", p.DateStart.String()).
		Str("to", p.DateEnd.String()).
		Bool("full_day", p.FullDay).
		Msg("unavailability period added")
	return nil
}

func (s *Service) RemoveUnavailability(ctx context.Context, doctorID, periodID uuid.UUID) error {
	if err := s.repo.RemoveUnavailability(ctx, doctorID, periodID); err != nil {
		if errors.Is(err, ErrPeriodNotFound) {
			return err
		}
		return fmt.Errorf("remove unavailability: %w", err)
	}
	return nil
}

func validateTemplate(t *Template) error {
	if t.DoctorID == uuid.Nil {
		return fmt.Errorf("%w: doctor_id is required", ErrValidation)
	}
	if !t.Start.Valid() || !t.End.Valid() {
		return fmt.Errorf("%w: times must fall within one day", ErrValidation)
	}
	if t.Start >= t.End {
		return fmt.Errorf("%w: start %s must be before end %s", ErrValidation, t.Start, t.End)
	}
	if t.SlotDuration <= 0 {
		return fmt.Errorf("%w: slot duration must be positive", ErrValidation)
	}
	if t.MaxConsultations <= 0 {
		return fmt.Errorf("%w: max consultations must be positive", ErrValidation)
	}
	if (t.LunchStart == nil) != (t.LunchEnd == nil) {
		return fmt.Errorf("%w: lunch break needs both start and end", ErrValidation)
	}
	if t.LunchStart != nil {
		if *t.LunchStart >= *t.LunchEnd {
			return fmt.Errorf("%w: lunch start %s must be before lunch end %s", ErrValidation, *t.LunchStart, *t.LunchEnd)
		}
		if *t.LunchStart <= t.Start || *t.LunchEnd >= t.End {
			return fmt.Errorf("%w: lunch break must lie strictly within open hours", ErrValidation)
		}
	}
	return nil
}

func validatePeriod(p *UnavailabilityPeriod) error {
	if p.DoctorID == uuid.Nil {
		return fmt.Errorf("%w: doctor_id is required", ErrValidation)
	}
	if p.DateStart.IsZero() || p.DateEnd.IsZero() {
		return fmt.Errorf("%w: date range is required", ErrValidation)
	}
	if p.DateEnd.Before(p.DateStart) {
		return fmt.Errorf("%w: date_end %s before date_start %s", ErrValidation, p.DateEnd, p.DateStart)
	}
	if p.Reason == "" {
		return fmt.Errorf("%w: reason is required", ErrValidation)
	}
	if !p.FullDay {
		if p.TimeStart == nil || p.TimeEnd == nil {
			return fmt.Errorf("%w: partial-day period needs time_start and time_end", ErrValidation)
		}
		if *p.TimeStart >= *p.TimeEnd {
			return fmt.Errorf("%w: time_start %s must be before time_end %s", ErrValidation, *p.TimeStart, *p.TimeEnd)
		}
	}
	return nil
}
