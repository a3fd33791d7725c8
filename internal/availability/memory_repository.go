package availability

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sante-virtuelle/scheduling/internal/calendar"
)

// MemoryRepository is a mutex-guarded in-memory Repository used by tests and
// local development.
type MemoryRepository struct {
	mu        sync.Mutex
	templates map[uuid.UUID]map[time.Weekday]Template
	periods   map[uuid.UUID]UnavailabilityPeriod
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		templates: make(map[uuid.UUID]map[time.Weekday]Template),
		periods:   make(map[uuid.UUID]UnavailabilityPeriod),
	}
}

func (m *MemoryRepository) GetTemplate(_ context.Context, doctorID uuid.UUID, weekday time.Weekday) (*Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.templates[doctorID][weekday]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	out := t
	return &out, nil
}

func (m *MemoryRepository) ListTemplates(_ context.Context, doctorID uuid.UUID) ([]Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Template
	for _, t := range m.templates[doctorID] {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Weekday < result[j].Weekday })
	return result, nil
}

func (m *MemoryRepository) UpsertTemplate(_ context.Context, t *Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.templates[t.DoctorID] == nil {
		m.templates[t.DoctorID] = make(map[time.Weekday]Template)
	}
	now := time.Now()
	if existing, ok := m.templates[t.DoctorID][t.Weekday]; ok {
		t.ID = existing.ID
		t.CreatedAt = existing.CreatedAt
	} else {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	m.templates[t.DoctorID][t.Weekday] = *t
	return nil
}

func (m *MemoryRepository) ListUnavailability(_ context.Context, doctorID uuid.UUID, from, to calendar.Date) ([]UnavailabilityPeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []UnavailabilityPeriod
	for _, p := range m.periods {
		if p.DoctorID != doctorID {
			continue
		}
		if p.DateEnd.Before(from) || p.DateStart.After(to) {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DateStart.Before(result[j].DateStart) })
	return result, nil
}

func (m *MemoryRepository) AddUnavailability(_ context.Context, p *UnavailabilityPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p.CreatedAt = time.Now()
	m.periods[p.ID] = *p
	return nil
}

func (m *MemoryRepository) RemoveUnavailability(_ context.Context, doctorID, periodID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.periods[periodID]
	if !ok || p.DoctorID != doctorID {
		return ErrPeriodNotFound
	}
	delete(m.periods, periodID)
	return nil
}
