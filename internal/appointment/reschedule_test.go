package appointment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProposeByPatient(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")

	proposal, err := f.svc.Propose(context.Background(), appt.ID, f.asPatient(), monday, tod("10:00"), "meeting moved")
	require.NoError(t, err)
	assert.Equal(t, ProposalPending, proposal.Status)
	assert.Equal(t, RolePatient, proposal.ProposedBy)
	assert.Equal(t, "10:00", proposal.ProposedTime.String())

	events := f.repo.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventRescheduleProposed, events[1].EventType)
}

func TestProposeValidation(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")

	_, err := f.svc.Propose(context.Background(), appt.ID, f.asPatient(), monday, tod("10:00"), "")
	assert.ErrorIs(t, err, ErrValidation)

	// Target must be a real open slot.
	_, err = f.svc.Propose(context.Background(), appt.ID, f.asPatient(), monday, tod("14:00"), "afternoon instead")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.Propose(context.Background(), appt.ID, f.asOther, monday, tod("10:00"), "not my appointment")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestProposeOnlyOnePending(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")

	_, err := f.svc.Propose(context.Background(), appt.ID, f.asPatient(), monday, tod("10:00"), "first")
	require.NoError(t, err)

	_, err = f.svc.Propose(context.Background(), appt.ID, f.asDoctor, monday, tod("10:30"), "second")
	assert.ErrorIs(t, err, ErrProposalPending)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestProposeFromTerminalState(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")

	_, err := f.svc.Cancel(context.Background(), appt.ID, f.asPatient(), "")
	require.NoError(t, err)

	_, err = f.svc.Propose(context.Background(), appt.ID, f.asPatient(), monday, tod("10:00"), "too late")
	assert.ErrorIs(t, err, ErrState)
}

func TestRespondAcceptMovesAppointment(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")

	proposal, err := f.svc.Propose(context.Background(), appt.ID, f.asPatient(), monday, tod("10:00"), "meeting moved")
	require.NoError(t, err)

	resolved, err := f.svc.Respond(context.Background(), proposal.ID, f.asDoctor, true)
	require.NoError(t, err)
	assert.Equal(t, ProposalAccepted, resolved.Status)

	moved, err := f.svc.GetAppointment(context.Background(), appt.ID, f.asPatient())
	require.NoError(t, err)
	assert.Equal(t, StatusRescheduled, moved.Status)
	assert.Equal(t, "10:00", moved.Time.String())
	require.NotNil(t, moved.OriginalDate)
	require.NotNil(t, moved.OriginalTime)
	assert.True(t, moved.OriginalDate.Equal(monday))
	assert.Equal(t, "09:00", moved.OriginalTime.String())

	// The old slot is free again, the new one is held.
	slots, err := f.svc.SlotsForDay(context.Background(), f.doctor.ID, monday)
	require.NoError(t, err)
	for _, s := range slots {
		switch s.Time.String() {
		case "09:00":
			assert.Equal(t, "open", string(s.State))
		case "10:00":
			assert.Equal(t, "taken", string(s.State))
		}
	}

	// A rescheduled appointment can be confirmed again.
	confirmed, err := f.svc.Confirm(context.Background(), appt.ID, f.asDoctor)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
}

func TestRespondAcceptKeepsFirstOriginalSlot(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")

	first, err := f.svc.Propose(context.Background(), appt.ID, f.asPatient(), monday, tod("10:00"), "first move")
	require.NoError(t, err)
	_, err = f.svc.Respond(context.Background(), first.ID, f.asDoctor, true)
	require.NoError(t, err)

	// Confirm before the next negotiation round.
	_, err = f.svc.Confirm(context.Background(), appt.ID, f.asDoctor)
	require.NoError(t, err)

	second, err := f.svc.Propose(context.Background(), appt.ID, f.asDoctor, monday, tod("11:00"), "second move")
	require.NoError(t, err)
	_, err = f.svc.Respond(context.Background(), second.ID, f.asPatient(), true)
	require.NoError(t, err)

	moved, err := f.svc.GetAppointment(context.Background(), appt.ID, f.asPatient())
	require.NoError(t, err)
	assert.Equal(t, "11:00", moved.Time.String())
	// Original still points at the very first slot.
	assert.Equal(t, "09:00", moved.OriginalTime.String())
}

func TestRespondRejectLeavesAppointmentUntouched(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")

	proposal, err := f.svc.Propose(context.Background(), appt.ID, f.asDoctor, monday, tod("10:00"), "earlier works better")
	require.NoError(t, err)

	resolved, err := f.svc.Respond(context.Background(), proposal.ID, f.asPatient(), false)
	require.NoError(t, err)
	assert.Equal(t, ProposalRejected, resolved.Status)

	unchanged, err := f.svc.GetAppointment(context.Background(), appt.ID, f.asPatient())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, unchanged.Status)
	assert.Equal(t, "09:00", unchanged.Time.String())
	assert.Nil(t, unchanged.OriginalDate)

	// A new proposal may now be opened.
	_, err = f.svc.Propose(context.Background(), appt.ID, f.asDoctor, monday, tod("10:30"), "try again")
	assert.NoError(t, err)
}

func TestRespondCounterpartOnly(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")

	proposal, err := f.svc.Propose(context.Background(), appt.ID, f.asPatient(), monday, tod("10:00"), "meeting moved")
	require.NoError(t, err)

	// The proposer cannot answer their own proposal.
	_, err = f.svc.Respond(context.Background(), proposal.ID, f.asPatient(), true)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Respond(context.Background(), proposal.ID, f.asOther, true)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRespondResolvedProposalIsTerminal(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")

	proposal, err := f.svc.Propose(context.Background(), appt.ID, f.asPatient(), monday, tod("10:00"), "meeting moved")
	require.NoError(t, err)

	_, err = f.svc.Respond(context.Background(), proposal.ID, f.asDoctor, false)
	require.NoError(t, err)

	_, err = f.svc.Respond(context.Background(), proposal.ID, f.asDoctor, true)
	assert.ErrorIs(t, err, ErrState)
}

func TestRespondAcceptTargetSlotGotTaken(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")

	proposal, err := f.svc.Propose(context.Background(), appt.ID, f.asPatient(), monday, tod("10:00"), "meeting moved")
	require.NoError(t, err)

	// Someone else books the proposed slot before the doctor answers.
	other := Patient{ID: uuid.New(), Name: "Claire Dubois"}
	f.repo.PutPatient(other)
	_, err = f.svc.Request(context.Background(), other.ID, f.doctor.ID, monday, tod("10:00"), "walk-in")
	require.NoError(t, err)

	_, err = f.svc.Respond(context.Background(), proposal.ID, f.asDoctor, true)
	assert.ErrorIs(t, err, ErrSlotTaken)

	unchanged, err := f.svc.GetAppointment(context.Background(), appt.ID, f.asPatient())
	require.NoError(t, err)
	assert.Equal(t, "09:00", unchanged.Time.String())
}

func TestProposeUnknownProposal(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Respond(context.Background(), uuid.New(), f.asDoctor, true)
	assert.ErrorIs(t, err, ErrNotFound)
}
