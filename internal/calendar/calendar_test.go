package calendar

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", d.String())
	assert.Equal(t, time.Monday, d.Weekday())
}

func TestParseDateRejectsAmbiguousForms(t *testing.T) {
	for _, input := range []string{
		"02/03/2026",
		"2026-3-2",
		"2026-03-02T00:00:00Z",
		"March 2, 2026",
		"",
	} {
		_, err := ParseDate(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestDateAt(t *testing.T) {
	d := NewDate(2026, time.March, 2)
	instant := d.At(MustTimeOfDay("09:30"))
	assert.Equal(t, time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC), instant)
}

func TestDateAddDaysAndCompare(t *testing.T) {
	d := NewDate(2026, time.February, 28)
	next := d.AddDays(1)
	assert.Equal(t, "2026-03-01", next.String())
	assert.True(t, d.Before(next))
	assert.True(t, next.After(d))
	assert.False(t, d.Equal(next))
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9, tod.Hour())
	assert.Equal(t, 30, tod.Minute())
	assert.Equal(t, "09:30", tod.String())
}

func TestParseTimeOfDayRejectsMalformedInput(t *testing.T) {
	for _, input := range []string{
		"9:30",
		"09:3",
		"09:0a",
		"24:00",
		"12:60",
		"09.30",
		"",
	} {
		_, err := ParseTimeOfDay(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestTimeOfDayAddMinutesOverflow(t *testing.T) {
	tod := MustTimeOfDay("23:30")
	assert.False(t, tod.AddMinutes(60).Valid())
	assert.True(t, tod.AddMinutes(29).Valid())
}

func TestDateJSONRoundTrip(t *testing.T) {
	type payload struct {
		Date Date       `json:"date"`
		Time TimeOfDay  `json:"time"`
		Opt  *TimeOfDay `json:"opt,omitempty"`
	}

	in := payload{Date: NewDate(2026, time.March, 2), Time: MustTimeOfDay("14:00")}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2026-03-02","time":"14:00"}`, string(data))

	var out payload
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, in.Date.Equal(out.Date))
	assert.Equal(t, in.Time, out.Time)
}

func TestDateUnmarshalRejectsBadJSON(t *testing.T) {
	var d Date
	assert.Error(t, json.Unmarshal([]byte(`"02/03/2026"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`20260302`), &d))

	var tod TimeOfDay
	assert.Error(t, json.Unmarshal([]byte(`"9h30"`), &tod))
}
