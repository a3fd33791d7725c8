package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sante-virtuelle/scheduling/internal/calendar"
)

func tod(s string) calendar.TimeOfDay {
	return calendar.MustTimeOfDay(s)
}

func todPtr(s string) *calendar.TimeOfDay {
	t := tod(s)
	return &t
}

func mondayTemplate() *Template {
	return &Template{
		ID:               uuid.New(),
		DoctorID:         uuid.New(),
		Weekday:          time.Monday,
		Start:            tod("09:00"),
		End:              tod("12:00"),
		SlotDuration:     30,
		MaxConsultations: 10,
		Active:           true,
	}
}

// 2026-03-02 is a Monday.
var monday = calendar.NewDate(2026, time.March, 2)

func TestGenerateSlotsMorningTemplate(t *testing.T) {
	slots := GenerateSlots(mondayTemplate(), nil, nil, monday)

	require.Len(t, slots, 6)
	want := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}
	for i, s := range slots {
		assert.Equal(t, want[i], s.Time.String())
		assert.Equal(t, 30, s.Duration)
		assert.Equal(t, SlotOpen, s.State)
		assert.True(t, s.Date.Equal(monday))
	}
}

func TestGenerateSlotsExcludesLunchBreak(t *testing.T) {
	tmpl := mondayTemplate()
	tmpl.End = tod("17:00")
	tmpl.LunchStart = todPtr("12:00")
	tmpl.LunchEnd = todPtr("13:00")

	slots := GenerateSlots(tmpl, nil, nil, monday)

	for _, s := range slots {
		end := s.Time.AddMinutes(s.Duration)
		overlaps := s.Time < tod("13:00") && tod("12:00") < end
		assert.False(t, overlaps, "slot %s overlaps lunch", s.Time)
	}
	// 09:00-12:00 gives 6 slots, 13:00-17:00 gives 8.
	assert.Len(t, slots, 14)
}

func TestGenerateSlotsPartialSlotAtEndOfDayDropped(t *testing.T) {
	tmpl := mondayTemplate()
	tmpl.End = tod("12:15")

	slots := GenerateSlots(tmpl, nil, nil, monday)

	require.NotEmpty(t, slots)
	last := slots[len(slots)-1]
	assert.Equal(t, "11:30", last.Time.String())
}

func TestGenerateSlotsFullDayUnavailability(t *testing.T) {
	tmpl := mondayTemplate()
	periods := []UnavailabilityPeriod{{
		DoctorID:  tmpl.DoctorID,
		DateStart: monday,
		DateEnd:   monday,
		Reason:    "conference",
		FullDay:   true,
	}}

	slots := GenerateSlots(tmpl, periods, nil, monday)
	assert.Empty(t, slots)
}

func TestGenerateSlotsPartialDayUnavailability(t *testing.T) {
	tmpl := mondayTemplate()
	periods := []UnavailabilityPeriod{{
		DoctorID:  tmpl.DoctorID,
		DateStart: monday,
		DateEnd:   monday,
		Reason:    "home visits",
		FullDay:   false,
		TimeStart: todPtr("10:00"),
		TimeEnd:   todPtr("11:00"),
	}}

	slots := GenerateSlots(tmpl, periods, nil, monday)

	var times []string
	for _, s := range slots {
		times = append(times, s.Time.String())
	}
	assert.Equal(t, []string{"09:00", "09:30", "11:00", "11:30"}, times)
}

func TestGenerateSlotsUnavailabilityOtherDateIgnored(t *testing.T) {
	tmpl := mondayTemplate()
	otherDay := monday.AddDays(7)
	periods := []UnavailabilityPeriod{{
		DoctorID:  tmpl.DoctorID,
		DateStart: otherDay,
		DateEnd:   otherDay,
		Reason:    "leave",
		FullDay:   true,
	}}

	slots := GenerateSlots(tmpl, periods, nil, monday)
	assert.Len(t, slots, 6)
}

func TestGenerateSlotsTakenTimes(t *testing.T) {
	tmpl := mondayTemplate()
	taken := map[calendar.TimeOfDay]bool{
		tod("09:30"): true,
		tod("11:00"): true,
	}

	slots := GenerateSlots(tmpl, nil, taken, monday)

	require.Len(t, slots, 6)
	for _, s := range slots {
		if taken[s.Time] {
			assert.Equal(t, SlotTaken, s.State, "slot %s", s.Time)
		} else {
			assert.Equal(t, SlotOpen, s.State, "slot %s", s.Time)
		}
	}
}

func TestGenerateSlotsCapacityFlag(t *testing.T) {
	tmpl := mondayTemplate()
	tmpl.MaxConsultations = 4

	slots := GenerateSlots(tmpl, nil, nil, monday)

	require.Len(t, slots, 6)
	for i, s := range slots {
		if i < 4 {
			assert.Equal(t, SlotOpen, s.State, "slot %s", s.Time)
		} else {
			assert.Equal(t, SlotCapacityExceeded, s.State, "slot %s", s.Time)
		}
	}
}

func TestGenerateSlotsTakenWinsOverCapacity(t *testing.T) {
	tmpl := mondayTemplate()
	tmpl.MaxConsultations = 2
	taken := map[calendar.TimeOfDay]bool{tod("11:30"): true}

	slots := GenerateSlots(tmpl, nil, taken, monday)

	require.Len(t, slots, 6)
	assert.Equal(t, SlotTaken, slots[5].State)
}

func TestGenerateSlotsInactiveTemplate(t *testing.T) {
	tmpl := mondayTemplate()
	tmpl.Active = false
	assert.Nil(t, GenerateSlots(tmpl, nil, nil, monday))
	assert.Nil(t, GenerateSlots(nil, nil, nil, monday))
}
