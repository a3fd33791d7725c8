package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sante-virtuelle/scheduling/internal/calendar"
)

const appointmentColumns = `id, doctor_id, patient_id, date, time_minutes, duration_min,
	status, description, original_date, original_time, cancel_reason,
	rating_score, rating_comment, version, created_at, updated_at`

const proposalColumns = `id, appointment_id, proposed_date, proposed_time, reason,
	proposed_by, status, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Name, &d.Specialty, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var date time.Time
	var timeMinutes int
	var originalDate *time.Time
	var originalTime *int
	var ratingScore *int
	var ratingComment *string

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&date,
		&timeMinutes,
		&a.Duration,
		&a.Status,
		&a.Description,
		&originalDate,
		&originalTime,
		&a.CancelReason,
		&ratingScore,
		&ratingComment,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = calendar.DateOf(date)
	a.Time = calendar.TimeOfDay(timeMinutes)
	if originalDate != nil {
		d := calendar.DateOf(*originalDate)
		a.OriginalDate = &d
	}
	if originalTime != nil {
		t := calendar.TimeOfDay(*originalTime)
		a.OriginalTime = &t
	}
	if ratingScore != nil && ratingComment != nil {
		a.Rating = &Rating{Score: *ratingScore, Comment: *ratingComment}
	}
	return &a, nil
}

func scanProposal(row pgx.Row) (*RescheduleProposal, error) {
	var p RescheduleProposal
	var date time.Time
	var timeMinutes int

	err := row.Scan(
		&p.ID,
		&p.AppointmentID,
		&date,
		&timeMinutes,
		&p.Reason,
		&p.ProposedBy,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProposalNotFound
		}
		return nil, err
	}

	p.ProposedDate = calendar.DateOf(date)
	p.ProposedTime = calendar.TimeOfDay(timeMinutes)
	return &p, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) Create(ctx context.Context, a *Appointment) error {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO appointments (id, doctor_id, patient_id, date, time_minutes, duration_min, status, description, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, now(), now())
		RETURNING %s
	`, appointmentColumns), a.ID, a.DoctorID, a.PatientID, a.Date.Time(), int(a.Time), a.Duration, a.Status, a.Description)

	created, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err, "uq_active_slot") {
			return ErrSlotTaken
		}
		return err
	}
	*a = *created
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM appointments WHERE id = $1`, appointmentColumns), id)
	return scanAppointment(row)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to calendar.Date) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM appointments
		WHERE doctor_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date, time_minutes
	`, appointmentColumns), doctorID, from.Time(), to.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, statuses []Status) ([]Appointment, error) {
	var filter []string
	for _, st := range statuses {
		filter = append(filter, string(st))
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM appointments
		WHERE patient_id = $1 AND ($2::text[] IS NULL OR status = ANY($2))
		ORDER BY date DESC, time_minutes DESC
	`, appointmentColumns), patientID, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) GetActiveForSlot(ctx context.Context, doctorID uuid.UUID, date calendar.Date, t calendar.TimeOfDay) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM appointments
		WHERE doctor_id = $1 AND date = $2 AND time_minutes = $3
		  AND status IN ('pending', 'confirmed', 'rescheduled')
	`, appointmentColumns), doctorID, date.Time(), int(t))
	return scanAppointment(row)
}

func (r *PgRepository) ListActiveForDay(ctx context.Context, doctorID uuid.UUID, date calendar.Date) ([]SlotOccupancy, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, time_minutes
		FROM appointments
		WHERE doctor_id = $1 AND date = $2
		  AND status IN ('pending', 'confirmed', 'rescheduled')
		ORDER BY time_minutes
	`, doctorID, date.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SlotOccupancy
	for rows.Next() {
		var occ SlotOccupancy
		var minutes int
		if err := rows.Scan(&occ.AppointmentID, &minutes); err != nil {
			return nil, err
		}
		occ.Time = calendar.TimeOfDay(minutes)
		result = append(result, occ)
	}
	return result, rows.Err()
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, expectedVersion int, to Status, cancelReason *string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE appointments
		SET status = $3,
		    cancel_reason = COALESCE($4, cancel_reason),
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING %s
	`, appointmentColumns), id, expectedVersion, to, cancelReason)

	updated, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, r.versionOrMissing(ctx, id)
		}
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) ApplyReschedule(ctx context.Context, id uuid.UUID, expectedVersion int, newDate calendar.Date, newTime calendar.TimeOfDay) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE appointments
		SET original_date = COALESCE(original_date, date),
		    original_time = COALESCE(original_time, time_minutes),
		    date = $3,
		    time_minutes = $4,
		    status = 'rescheduled',
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING %s
	`, appointmentColumns), id, expectedVersion, newDate.Time(), int(newTime))

	updated, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err, "uq_active_slot") {
			return nil, ErrSlotTaken
		}
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, r.versionOrMissing(ctx, id)
		}
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) AttachRating(ctx context.Context, id uuid.UUID, score int, comment string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE appointments
		SET rating_score = $2,
		    rating_comment = $3,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1 AND status = 'completed' AND rating_score IS NULL
		RETURNING %s
	`, appointmentColumns), id, score, comment)

	updated, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, fmt.Errorf("%w: already rated or not completed", ErrState)
		}
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) CreateProposal(ctx context.Context, p *RescheduleProposal) error {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO reschedule_proposals (id, appointment_id, proposed_date, proposed_time, reason, proposed_by, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING %s
	`, proposalColumns), p.ID, p.AppointmentID, p.ProposedDate.Time(), int(p.ProposedTime), p.Reason, p.ProposedBy, p.Status)

	created, err := scanProposal(row)
	if err != nil {
		if isUniqueViolation(err, "uq_pending_proposal") {
			return ErrProposalPending
		}
		return err
	}
	*p = *created
	return nil
}

func (r *PgRepository) GetProposalByID(ctx context.Context, id uuid.UUID) (*RescheduleProposal, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM reschedule_proposals WHERE id = $1
	`, proposalColumns), id)
	return scanProposal(row)
}

func (r *PgRepository) GetPendingProposalForAppointment(ctx context.Context, appointmentID uuid.UUID) (*RescheduleProposal, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM reschedule_proposals
		WHERE appointment_id = $1 AND status = 'pending'
	`, proposalColumns), appointmentID)
	return scanProposal(row)
}

func (r *PgRepository) ResolveProposal(ctx context.Context, id uuid.UUID, to ProposalStatus) (*RescheduleProposal, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE reschedule_proposals
		SET status = $2,
		    updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING %s
	`, proposalColumns), id, to)

	resolved, err := scanProposal(row)
	if err != nil {
		if errors.Is(err, ErrProposalNotFound) {
			if _, getErr := r.GetProposalByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, fmt.Errorf("%w: proposal already resolved", ErrState)
		}
		return nil, err
	}
	return resolved, nil
}

func (r *PgRepository) FindDueConfirmed(ctx context.Context, now time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM appointments
		WHERE status = 'confirmed'
		  AND (date::timestamp + make_interval(mins => time_minutes)) AT TIME ZONE 'UTC' < $1
	`, appointmentColumns), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

// versionOrMissing distinguishes an optimistic-version miss from a deleted
// row after a CAS update matched nothing.
func (r *PgRepository) versionOrMissing(ctx context.Context, id uuid.UUID) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrVersionConflict
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
