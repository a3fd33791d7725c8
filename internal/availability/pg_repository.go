package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sante-virtuelle/scheduling/internal/calendar"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanTemplate(row pgx.Row) (*Template, error) {
	var t Template
	var weekday int
	var start, end, duration, maxC int
	var lunchStart, lunchEnd *int

	err := row.Scan(
		&t.ID,
		&t.DoctorID,
		&weekday,
		&start,
		&end,
		&duration,
		&lunchStart,
		&lunchEnd,
		&maxC,
		&t.Active,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}

	t.Weekday = time.Weekday(weekday)
	t.Start = calendar.TimeOfDay(start)
	t.End = calendar.TimeOfDay(end)
	t.SlotDuration = duration
	t.MaxConsultations = maxC
	t.LunchStart = asTimeOfDay(lunchStart)
	t.LunchEnd = asTimeOfDay(lunchEnd)
	return &t, nil
}

func scanPeriod(row pgx.Row) (*UnavailabilityPeriod, error) {
	var p UnavailabilityPeriod
	var dateStart, dateEnd time.Time
	var timeStart, timeEnd *int

	err := row.Scan(
		&p.ID,
		&p.DoctorID,
		&dateStart,
		&dateEnd,
		&p.Reason,
		&p.FullDay,
		&timeStart,
		&timeEnd,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPeriodNotFound
		}
		return nil, err
	}

	p.DateStart = calendar.DateOf(dateStart)
	p.DateEnd = calendar.DateOf(dateEnd)
	p.TimeStart = asTimeOfDay(timeStart)
	p.TimeEnd = asTimeOfDay(timeEnd)
	return &p, nil
}

func asTimeOfDay(v *int) *calendar.TimeOfDay {
	if v == nil {
		return nil
	}
	tod := calendar.TimeOfDay(*v)
	return &tod
}

func asIntPtr(v *calendar.TimeOfDay) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}

// Interface methods

func (r *PgRepository) GetTemplate(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) (*Template, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, weekday, start_minutes, end_minutes, slot_duration_min,
		       lunch_start_min, lunch_end_min, max_consultations, active, created_at, updated_at
		FROM availability_templates
		WHERE doctor_id = $1 AND weekday = $2
	`, doctorID, int(weekday))
	return scanTemplate(row)
}

func (r *PgRepository) ListTemplates(ctx context.Context, doctorID uuid.UUID) ([]Template, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, weekday, start_minutes, end_minutes, slot_duration_min,
		       lunch_start_min, lunch_end_min, max_consultations, active, created_at, updated_at
		FROM availability_templates
		WHERE doctor_id = $1
		ORDER BY weekday
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

func (r *PgRepository) UpsertTemplate(ctx context.Context, t *Template) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO availability_templates
			(id, doctor_id, weekday, start_minutes, end_minutes, slot_duration_min,
			 lunch_start_min, lunch_end_min, max_consultations, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		ON CONFLICT (doctor_id, weekday) DO UPDATE SET
			start_minutes = EXCLUDED.start_minutes,
			end_minutes = EXCLUDED.end_minutes,
			slot_duration_min = EXCLUDED.slot_duration_min,
			lunch_start_min = EXCLUDED.lunch_start_min,
			lunch_end_min = EXCLUDED.lunch_end_min,
			max_consultations = EXCLUDED.max_consultations,
			active = EXCLUDED.active,
			updated_at = now()
	`, t.ID, t.DoctorID, int(t.Weekday), int(t.Start), int(t.End), t.SlotDuration,
		asIntPtr(t.LunchStart), asIntPtr(t.LunchEnd), t.MaxConsultations, t.Active)
	return err
}

func (r *PgRepository) ListUnavailability(ctx context.Context, doctorID uuid.UUID, from, to calendar.Date) ([]UnavailabilityPeriod, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, date_start, date_end, reason, full_day,
		       time_start_min, time_end_min, created_at
		FROM unavailability_periods
		WHERE doctor_id = $1 AND date_start <= $3 AND date_end >= $2
		ORDER BY date_start, time_start_min NULLS FIRST
	`, doctorID, from.Time(), to.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []UnavailabilityPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func (r *PgRepository) AddUnavailability(ctx context.Context, p *UnavailabilityPeriod) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO unavailability_periods
			(id, doctor_id, date_start, date_end, reason, full_day, time_start_min, time_end_min, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	`, p.ID, p.DoctorID, p.DateStart.Time(), p.DateEnd.Time(), p.Reason, p.FullDay,
		asIntPtr(p.TimeStart), asIntPtr(p.TimeEnd))
	return err
}

func (r *PgRepository) RemoveUnavailability(ctx context.Context, doctorID, periodID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM unavailability_periods
		WHERE id = $1 AND doctor_id = $2
	`, periodID, doctorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPeriodNotFound
	}
	return nil
}
