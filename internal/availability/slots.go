package availability

import (
	"github.com/sante-virtuelle/scheduling/internal/calendar"
)

type SlotState string

const (
	SlotOpen             SlotState = "open"
	SlotTaken            SlotState = "taken"
	SlotCapacityExceeded SlotState = "capacity_exceeded"
)

// Slot is a fixed-duration bookable interval derived from a template.
type Slot struct {
	Date     calendar.Date      `json:"date"`
	Time     calendar.TimeOfDay `json:"time"`
	Duration int                `json:"duration_minutes"`
	State    SlotState          `json:"state"`
}

// GenerateSlots computes the ordered slot sequence for one date from a
// template, the unavailability periods touching that date, and the set of
// times already held by active appointments. It is a pure function; the
// result is a snapshot and must be regenerated after any booking mutation.
//
// Slots beyond the template's consultation cap are flagged rather than
// dropped so the sequence stays a faithful calendar view. A booked slot is
// reported taken even past the cap.
func GenerateSlots(tmpl *Template, periods []UnavailabilityPeriod, taken map[calendar.TimeOfDay]bool, date calendar.Date) []Slot {
	if tmpl == nil || !tmpl.Active || tmpl.SlotDuration <= 0 {
		return nil
	}

	var slots []Slot
	for start := tmpl.Start; start.AddMinutes(tmpl.SlotDuration) <= tmpl.End; start = start.AddMinutes(tmpl.SlotDuration) {
		end := start.AddMinutes(tmpl.SlotDuration)

		if overlapsLunch(tmpl, start, end) {
			continue
		}
		if blocked(periods, date, start, end) {
			continue
		}

		state := SlotOpen
		if len(slots) >= tmpl.MaxConsultations {
			state = SlotCapacityExceeded
		}
		if taken[start] {
			state = SlotTaken
		}

		slots = append(slots, Slot{
			Date:     date,
			Time:     start,
			Duration: tmpl.SlotDuration,
			State:    state,
		})
	}
	return slots
}

func overlapsLunch(tmpl *Template, start, end calendar.TimeOfDay) bool {
	if tmpl.LunchStart == nil || tmpl.LunchEnd == nil {
		return false
	}
	return start < *tmpl.LunchEnd && *tmpl.LunchStart < end
}

func blocked(periods []UnavailabilityPeriod, date calendar.Date, start, end calendar.TimeOfDay) bool {
	for _, p := range periods {
		if p.Blocks(date, start, end) {
			return true
		}
	}
	return false
}
