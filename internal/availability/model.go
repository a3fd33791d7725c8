package availability

import (
	"time"

	"github.com/google/uuid"

	"github.com/sante-virtuelle/scheduling/internal/calendar"
)

// Template is a doctor's recurring open-hours definition for one weekday.
type Template struct {
	ID               uuid.UUID
	DoctorID         uuid.UUID
	Weekday          time.Weekday
	Start            calendar.TimeOfDay
	End              calendar.TimeOfDay
	SlotDuration     int // minutes
	LunchStart       *calendar.TimeOfDay
	LunchEnd         *calendar.TimeOfDay
	MaxConsultations int
	Active           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UnavailabilityPeriod removes otherwise-open time from a doctor's schedule.
// When FullDay is false, TimeStart/TimeEnd bound the blocked sub-range.
type UnavailabilityPeriod struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	DateStart calendar.Date
	DateEnd   calendar.Date
	Reason    string
	FullDay   bool
	TimeStart *calendar.TimeOfDay
	TimeEnd   *calendar.TimeOfDay
	CreatedAt time.Time
}

// Covers reports whether the period includes the given date.
func (p UnavailabilityPeriod) Covers(date calendar.Date) bool {
	return !date.Before(p.DateStart) && !date.After(p.DateEnd)
}

// Blocks reports whether the period removes the slot [start, end) on the
// given date.
func (p UnavailabilityPeriod) Blocks(date calendar.Date, start, end calendar.TimeOfDay) bool {
	if !p.Covers(date) {
		return false
	}
	if p.FullDay || p.TimeStart == nil || p.TimeEnd == nil {
		return true
	}
	return start < *p.TimeEnd && *p.TimeStart < end
}
