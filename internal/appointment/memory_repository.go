package appointment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sante-virtuelle/scheduling/internal/calendar"
)

// MemoryRepository is an in-memory Repository for tests and local runs. It
// mirrors the storage-level guarantees of the Postgres implementation: the
// active-slot uniqueness, the row version check, and the single pending
// proposal per appointment.
type MemoryRepository struct {
	mu           sync.Mutex
	doctors      map[uuid.UUID]Doctor
	patients     map[uuid.UUID]Patient
	appointments map[uuid.UUID]Appointment
	proposals    map[uuid.UUID]RescheduleProposal
	events       []EventLog
	nextEventID  int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		doctors:      make(map[uuid.UUID]Doctor),
		patients:     make(map[uuid.UUID]Patient),
		appointments: make(map[uuid.UUID]Appointment),
		proposals:    make(map[uuid.UUID]RescheduleProposal),
	}
}

func (r *MemoryRepository) PutDoctor(d Doctor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doctors[d.ID] = d
}

func (r *MemoryRepository) PutPatient(p Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = p
}

// Events returns a copy of everything emitted so far.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}

func (r *MemoryRepository) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) Create(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeForSlotLocked(a.DoctorID, a.Date, a.Time, uuid.Nil) != nil {
		return ErrSlotTaken
	}

	now := time.Now().UTC()
	a.Version = 1
	a.CreatedAt = now
	a.UpdatedAt = now
	r.appointments[a.ID] = *a
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(id)
}

func (r *MemoryRepository) ListByDoctor(_ context.Context, doctorID uuid.UUID, from, to calendar.Date) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.DoctorID != doctorID {
			continue
		}
		if a.Date.Before(from) || a.Date.After(to) {
			continue
		}
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].Time < result[j].Time
	})
	return result, nil
}

func (r *MemoryRepository) ListByPatient(_ context.Context, patientID uuid.UUID, statuses []Status) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wanted := make(map[Status]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}

	var result []Appointment
	for _, a := range r.appointments {
		if a.PatientID != patientID {
			continue
		}
		if len(wanted) > 0 && !wanted[a.Status] {
			continue
		}
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[j].Date.Before(result[i].Date)
		}
		return result[j].Time < result[i].Time
	})
	return result, nil
}

func (r *MemoryRepository) GetActiveForSlot(_ context.Context, doctorID uuid.UUID, date calendar.Date, t calendar.TimeOfDay) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a := r.activeForSlotLocked(doctorID, date, t, uuid.Nil); a != nil {
		return a, nil
	}
	return nil, ErrAppointmentNotFound
}

func (r *MemoryRepository) ListActiveForDay(_ context.Context, doctorID uuid.UUID, date calendar.Date) ([]SlotOccupancy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []SlotOccupancy
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && a.Date.Equal(date) && a.Status.Active() {
			result = append(result, SlotOccupancy{AppointmentID: a.ID, Time: a.Time})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Time < result[j].Time })
	return result, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, expectedVersion int, to Status, cancelReason *string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, err := r.casLocked(id, expectedVersion)
	if err != nil {
		return nil, err
	}
	a.Status = to
	if cancelReason != nil {
		a.CancelReason = cancelReason
	}
	a.Version++
	a.UpdatedAt = time.Now().UTC()
	r.appointments[id] = *a
	return a, nil
}

func (r *MemoryRepository) ApplyReschedule(_ context.Context, id uuid.UUID, expectedVersion int, newDate calendar.Date, newTime calendar.TimeOfDay) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, err := r.casLocked(id, expectedVersion)
	if err != nil {
		return nil, err
	}
	if r.activeForSlotLocked(a.DoctorID, newDate, newTime, a.ID) != nil {
		return nil, ErrSlotTaken
	}

	if a.OriginalDate == nil {
		d, t := a.Date, a.Time
		a.OriginalDate = &d
		a.OriginalTime = &t
	}
	a.Date = newDate
	a.Time = newTime
	a.Status = StatusRescheduled
	a.Version++
	a.UpdatedAt = time.Now().UTC()
	r.appointments[id] = *a
	return a, nil
}

func (r *MemoryRepository) AttachRating(_ context.Context, id uuid.UUID, score int, comment string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, err := r.getLocked(id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusCompleted || a.Rating != nil {
		return nil, fmt.Errorf("%w: already rated or not completed", ErrState)
	}
	a.Rating = &Rating{Score: score, Comment: comment}
	a.Version++
	a.UpdatedAt = time.Now().UTC()
	r.appointments[id] = *a
	return a, nil
}

func (r *MemoryRepository) CreateProposal(_ context.Context, p *RescheduleProposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.proposals {
		if existing.AppointmentID == p.AppointmentID && existing.Status == ProposalPending {
			return ErrProposalPending
		}
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	r.proposals[p.ID] = *p
	return nil
}

func (r *MemoryRepository) GetProposalByID(_ context.Context, id uuid.UUID) (*RescheduleProposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.proposals[id]
	if !ok {
		return nil, ErrProposalNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetPendingProposalForAppointment(_ context.Context, appointmentID uuid.UUID) (*RescheduleProposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.proposals {
		if p.AppointmentID == appointmentID && p.Status == ProposalPending {
			p := p
			return &p, nil
		}
	}
	return nil, ErrProposalNotFound
}

func (r *MemoryRepository) ResolveProposal(_ context.Context, id uuid.UUID, to ProposalStatus) (*RescheduleProposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.proposals[id]
	if !ok {
		return nil, ErrProposalNotFound
	}
	if p.Status != ProposalPending {
		return nil, fmt.Errorf("%w: proposal already resolved", ErrState)
	}
	p.Status = to
	p.UpdatedAt = time.Now().UTC()
	r.proposals[id] = p
	return &p, nil
}

func (r *MemoryRepository) FindDueConfirmed(_ context.Context, now time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.Status == StatusConfirmed && a.StartAt().Before(now) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartAt().Before(result[j].StartAt()) })
	return result, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextEventID++
	ev.ID = r.nextEventID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *MemoryRepository) getLocked(id uuid.UUID) (*Appointment, error) {
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) casLocked(id uuid.UUID, expectedVersion int) (*Appointment, error) {
	a, err := r.getLocked(id)
	if err != nil {
		return nil, err
	}
	if a.Version != expectedVersion {
		return nil, ErrVersionConflict
	}
	return a, nil
}

func (r *MemoryRepository) activeForSlotLocked(doctorID uuid.UUID, date calendar.Date, t calendar.TimeOfDay, exclude uuid.UUID) *Appointment {
	for _, a := range r.appointments {
		if a.ID == exclude {
			continue
		}
		if a.DoctorID == doctorID && a.Date.Equal(date) && a.Time == t && a.Status.Active() {
			a := a
			return &a
		}
	}
	return nil
}
