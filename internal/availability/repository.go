package availability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sante-virtuelle/scheduling/internal/calendar"
)

// Repository contains all DB interactions needed by the availability service.
type Repository interface {
	GetTemplate(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) (*Template, error)
	ListTemplates(ctx context.Context, doctorID uuid.UUID) ([]Template, error)
	UpsertTemplate(ctx context.Context, t *Template) error

	ListUnavailability(ctx context.Context, doctorID uuid.UUID, from, to calendar.Date) ([]UnavailabilityPeriod, error)
	AddUnavailability(ctx context.Context, p *UnavailabilityPeriod) error
	RemoveUnavailability(ctx context.Context, doctorID, periodID uuid.UUID) error
}
