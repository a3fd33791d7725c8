package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func confirmAt(t *testing.T, f *fixture, appt *Appointment) {
	t.Helper()
	_, err := f.svc.Confirm(context.Background(), appt.ID, f.asDoctor)
	require.NoError(t, err)
}

func advancePastSlot(f *fixture) {
	f.svc.now = func() time.Time { return monday.At(tod("23:00")) }
}

func TestMarkCompletedAfterSlotPassed(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")
	confirmAt(t, f, appt)
	advancePastSlot(f)

	completed, err := f.svc.MarkCompleted(context.Background(), appt.ID, f.asDoctor)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)

	events := f.repo.Events()
	assert.Equal(t, EventAppointmentCompleted, events[len(events)-1].EventType)
}

func TestMarkCompletedBeforeSlot(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")
	confirmAt(t, f, appt)

	_, err := f.svc.MarkCompleted(context.Background(), appt.ID, f.asDoctor)
	assert.ErrorIs(t, err, ErrState)
}

func TestMarkCompletedRequiresConfirmed(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")
	advancePastSlot(f)

	// Still pending.
	_, err := f.svc.MarkCompleted(context.Background(), appt.ID, f.asDoctor)
	assert.ErrorIs(t, err, ErrState)
}

func TestMarkCompletedIdempotent(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")
	confirmAt(t, f, appt)
	advancePastSlot(f)

	first, err := f.svc.MarkCompleted(context.Background(), appt.ID, f.asDoctor)
	require.NoError(t, err)

	second, err := f.svc.MarkCompleted(context.Background(), appt.ID, f.asDoctor)
	require.NoError(t, err)
	assert.Equal(t, first.Version, second.Version)
}

func TestMarkCompletedOnlyByDoctor(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")
	confirmAt(t, f, appt)
	advancePastSlot(f)

	_, err := f.svc.MarkCompleted(context.Background(), appt.ID, f.asPatient())
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCompleteDueSweep(t *testing.T) {
	f := newFixture(t)

	due := f.book(t, "09:00")
	confirmAt(t, f, due)
	stillPending := f.book(t, "09:30")

	advancePastSlot(f)

	n, err := f.svc.CompleteDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.GetAppointment(context.Background(), due.ID, f.asDoctor)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	// Unconfirmed requests are not swept.
	got, err = f.svc.GetAppointment(context.Background(), stillPending.ID, f.asDoctor)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	// A second sweep finds nothing.
	n, err = f.svc.CompleteDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSubmitRating(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")
	completeAppointment(t, f, appt)

	rated, err := f.svc.SubmitRating(context.Background(), appt.ID, f.asPatient(), 5, "Très bon suivi, merci.")
	require.NoError(t, err)
	require.NotNil(t, rated.Rating)
	assert.Equal(t, 5, rated.Rating.Score)
	assert.Equal(t, "Très bon suivi, merci.", rated.Rating.Comment)
}

func TestSubmitRatingExactlyOnce(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")
	completeAppointment(t, f, appt)

	_, err := f.svc.SubmitRating(context.Background(), appt.ID, f.asPatient(), 4, "Consultation efficace.")
	require.NoError(t, err)

	_, err = f.svc.SubmitRating(context.Background(), appt.ID, f.asPatient(), 5, "Je change mon avis !")
	assert.ErrorIs(t, err, ErrState)

	got, err := f.svc.GetAppointment(context.Background(), appt.ID, f.asPatient())
	require.NoError(t, err)
	assert.Equal(t, 4, got.Rating.Score)
}

func TestSubmitRatingValidation(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")
	completeAppointment(t, f, appt)

	_, err := f.svc.SubmitRating(context.Background(), appt.ID, f.asPatient(), 0, "Commentaire valable ici.")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.SubmitRating(context.Background(), appt.ID, f.asPatient(), 6, "Commentaire valable ici.")
	assert.ErrorIs(t, err, ErrValidation)

	// Nine runes, one short of the minimum; accents count as one rune each.
	_, err = f.svc.SubmitRating(context.Background(), appt.ID, f.asPatient(), 5, "Très bien")
	assert.ErrorIs(t, err, ErrValidation)

	// Exactly ten runes passes.
	_, err = f.svc.SubmitRating(context.Background(), appt.ID, f.asPatient(), 5, "Très bien!")
	assert.NoError(t, err)
}

func TestSubmitRatingOnlyCompletedAndOwningPatient(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")

	_, err := f.svc.SubmitRating(context.Background(), appt.ID, f.asPatient(), 5, "Pas encore terminé...")
	assert.ErrorIs(t, err, ErrState)

	completeAppointment(t, f, appt)

	_, err = f.svc.SubmitRating(context.Background(), appt.ID, f.asDoctor, 5, "Le médecin ne note pas.")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.SubmitRating(context.Background(), appt.ID, f.asOther, 5, "Quelqu'un d'autre non plus.")
	assert.ErrorIs(t, err, ErrForbidden)
}
