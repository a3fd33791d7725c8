package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sante-virtuelle/scheduling/internal/appointment"
	"github.com/sante-virtuelle/scheduling/internal/availability"
)

type passLocker struct{}

func (passLocker) WithSlotLock(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

type testEnv struct {
	server  *httptest.Server
	doctor  appointment.Doctor
	patient appointment.Patient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := appointment.NewMemoryRepository()
	availRepo := availability.NewMemoryRepository()
	availSvc := availability.NewService(availRepo, zerolog.Nop())

	doctor := appointment.Doctor{ID: uuid.New(), Name: "Dr. Moreau"}
	patient := appointment.Patient{ID: uuid.New(), Name: "Jean Petit"}
	repo.PutDoctor(doctor)
	repo.PutPatient(patient)

	apptSvc := appointment.NewService(repo, availSvc, passLocker{}, zerolog.Nop())

	router := NewRouter(RouterConfig{
		Appointments: apptSvc,
		Availability: availSvc,
		Log:          zerolog.Nop(),
		Env:          "test",
		Version:      "test",
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, doctor: doctor, patient: patient}
}

func (e *testEnv) do(t *testing.T, method, path string, actorID uuid.UUID, role string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", actorID.String())
	req.Header.Set("X-User-Role", role)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// nextMonday returns the date string of a Monday at least a week out, so
// booked slots are always in the future.
func nextMonday() string {
	d := time.Now().UTC().AddDate(0, 0, 7)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d.Format("2006-01-02")
}

func (e *testEnv) setMondayTemplate(t *testing.T) {
	t.Helper()
	resp := e.do(t, http.MethodPut,
		fmt.Sprintf("/doctors/%s/availability/templates/monday", e.doctor.ID),
		e.doctor.ID, "doctor",
		map[string]any{
			"start":             "09:00",
			"end":               "12:00",
			"slot_duration_min": 30,
			"max_consultations": 10,
		})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMissingIdentityRejected(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/appointments?patient_id="+env.patient.ID.String(), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.Header.Set("X-User-ID", env.patient.ID.String())
	req.Header.Set("X-User-Role", "superuser")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBookingFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.setMondayTemplate(t)
	date := nextMonday()

	// Slots before booking.
	resp := env.do(t, http.MethodGet,
		fmt.Sprintf("/doctors/%s/slots?date=%s", env.doctor.ID, date),
		env.patient.ID, "patient", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	slots := decode[struct {
		Slots []struct {
			Time  string `json:"time"`
			State string `json:"state"`
		} `json:"slots"`
	}](t, resp)
	require.Len(t, slots.Slots, 6)
	assert.Equal(t, "09:00", slots.Slots[0].Time)
	assert.Equal(t, "open", slots.Slots[0].State)

	// Book 09:00.
	resp = env.do(t, http.MethodPost, "/appointments", env.patient.ID, "patient", map[string]any{
		"doctor_id":   env.doctor.ID,
		"date":        date,
		"time":        "09:00",
		"description": "first visit",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[AppointmentResponse](t, resp)
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, "09:00", created.Time.String())

	// Same slot again conflicts.
	resp = env.do(t, http.MethodPost, "/appointments", env.patient.ID, "patient", map[string]any{
		"doctor_id": env.doctor.ID,
		"date":      date,
		"time":      "09:00",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Doctor confirms.
	resp = env.do(t, http.MethodPost, "/appointments/"+created.ID.String()+"/confirm",
		env.doctor.ID, "doctor", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	confirmed := decode[AppointmentResponse](t, resp)
	assert.Equal(t, "confirmed", confirmed.Status)

	// A stranger cannot read it.
	resp = env.do(t, http.MethodGet, "/appointments/"+created.ID.String(),
		uuid.New(), "patient", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestBookingValidationOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.setMondayTemplate(t)

	// Malformed time format is rejected at decode.
	resp := env.do(t, http.MethodPost, "/appointments", env.patient.ID, "patient", map[string]any{
		"doctor_id": env.doctor.ID,
		"date":      nextMonday(),
		"time":      "9h00",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Doctors cannot book.
	resp = env.do(t, http.MethodPost, "/appointments", env.doctor.ID, "doctor", map[string]any{
		"doctor_id": env.doctor.ID,
		"date":      nextMonday(),
		"time":      "09:00",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Unknown doctor is a 404.
	resp = env.do(t, http.MethodPost, "/appointments", env.patient.ID, "patient", map[string]any{
		"doctor_id": uuid.New(),
		"date":      nextMonday(),
		"time":      "09:00",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTemplateManagementAuthz(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]any{
		"start":             "09:00",
		"end":               "12:00",
		"slot_duration_min": 30,
		"max_consultations": 10,
	}

	// Patients cannot manage a doctor's schedule.
	resp := env.do(t, http.MethodPut,
		fmt.Sprintf("/doctors/%s/availability/templates/monday", env.doctor.ID),
		env.patient.ID, "patient", body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Another doctor cannot either.
	resp = env.do(t, http.MethodPut,
		fmt.Sprintf("/doctors/%s/availability/templates/monday", env.doctor.ID),
		uuid.New(), "doctor", body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Admins can.
	resp = env.do(t, http.MethodPut,
		fmt.Sprintf("/doctors/%s/availability/templates/monday", env.doctor.ID),
		uuid.New(), "admin", body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Bad weekday.
	resp = env.do(t, http.MethodPut,
		fmt.Sprintf("/doctors/%s/availability/templates/someday", env.doctor.ID),
		env.doctor.ID, "doctor", body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Invalid hours map to 400.
	resp = env.do(t, http.MethodPut,
		fmt.Sprintf("/doctors/%s/availability/templates/monday", env.doctor.ID),
		env.doctor.ID, "doctor", map[string]any{
			"start":             "17:00",
			"end":               "09:00",
			"slot_duration_min": 30,
			"max_consultations": 10,
		})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnavailabilityOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.setMondayTemplate(t)
	date := nextMonday()

	resp := env.do(t, http.MethodPost,
		fmt.Sprintf("/doctors/%s/unavailability", env.doctor.ID),
		env.doctor.ID, "doctor", map[string]any{
			"date_start": date,
			"date_end":   date,
			"reason":     "conference",
			"full_day":   true,
		})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	period := decode[UnavailabilityResponse](t, resp)

	// The day has no slots now.
	resp = env.do(t, http.MethodGet,
		fmt.Sprintf("/doctors/%s/slots?date=%s", env.doctor.ID, date),
		env.patient.ID, "patient", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	slots := decode[struct {
		Slots []any `json:"slots"`
	}](t, resp)
	assert.Empty(t, slots.Slots)

	// Remove it and the slots come back.
	resp = env.do(t, http.MethodDelete,
		fmt.Sprintf("/doctors/%s/unavailability/%s", env.doctor.ID, period.ID),
		env.doctor.ID, "doctor", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet,
		fmt.Sprintf("/doctors/%s/slots?date=%s", env.doctor.ID, date),
		env.patient.ID, "patient", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	slots = decode[struct {
		Slots []any `json:"slots"`
	}](t, resp)
	assert.Len(t, slots.Slots, 6)
}

func TestRatingOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.setMondayTemplate(t)
	date := nextMonday()

	resp := env.do(t, http.MethodPost, "/appointments", env.patient.ID, "patient", map[string]any{
		"doctor_id": env.doctor.ID,
		"date":      date,
		"time":      "09:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[AppointmentResponse](t, resp)

	// Rating an appointment that is not completed is a 409.
	resp = env.do(t, http.MethodPost, "/appointments/"+created.ID.String()+"/rating",
		env.patient.ID, "patient", RatingRequest{Score: 5, Comment: "Très bon suivi, merci."})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
