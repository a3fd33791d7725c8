package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sante-virtuelle/scheduling/internal/calendar"
	redisclient "github.com/sante-virtuelle/scheduling/internal/redis"
)

// Propose opens a reschedule negotiation: either party offers a new slot,
// and the counterpart must accept before anything moves. Only one proposal
// may be pending per appointment.
func (s *Service) Propose(ctx context.Context, appointmentID uuid.UUID, actor Actor, newDate calendar.Date, newTime calendar.TimeOfDay, reason string) (*RescheduleProposal, error) {
	if newDate.IsZero() || !newTime.Valid() {
		return nil, fmt.Errorf("%w: proposed date and time are required", ErrValidation)
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: a reason is required", ErrValidation)
	}

	appt, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	proposerRole, err := partyRole(appt, actor)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusPending && appt.Status != StatusConfirmed {
		return nil, fmt.Errorf("%w: cannot reschedule from %s", ErrState, appt.Status)
	}

	if existing, err := s.repo.GetPendingProposalForAppointment(ctx, appointmentID); err != nil {
		if !errors.Is(err, ErrProposalNotFound) {
			return nil, fmt.Errorf("check pending proposal: %w", err)
		}
	} else if existing != nil {
		return nil, ErrProposalPending
	}

	// The moved appointment's own claim is excluded so a same-day move to an
	// adjacent slot validates correctly.
	if _, err := s.findSlot(ctx, appt.DoctorID, newDate, newTime, appt.ID); err != nil {
		return nil, err
	}

	proposal := &RescheduleProposal{
		ID:            uuid.New(),
		AppointmentID: appt.ID,
		ProposedDate:  newDate,
		ProposedTime:  newTime,
		Reason:        reason,
		ProposedBy:    proposerRole,
		Status:        ProposalPending,
	}
	if err := s.repo.CreateProposal(ctx, proposal); err != nil {
		return nil, err
	}

	s.emit(ctx, appt.ID, EventRescheduleProposed, map[string]any{
		"proposal_id":   proposal.ID.String(),
		"proposed_by":   string(proposerRole),
		"proposed_date": newDate.String(),
		"proposed_time": newTime.String(),
		"reason":        reason,
	})
	return proposal, nil
}

// Respond resolves a pending proposal. Only the counterpart of the proposer
// may respond. Accepting captures the original date/time once, moves the
// appointment under the new slot's lock, and sets status rescheduled;
// rejecting leaves the appointment untouched. Resolved proposals are
// terminal.
func (s *Service) Respond(ctx context.Context, proposalID uuid.UUID, actor Actor, accept bool) (*RescheduleProposal, error) {
	proposal, err := s.repo.GetProposalByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Status != ProposalPending {
		return nil, fmt.Errorf("%w: proposal already %s", ErrState, proposal.Status)
	}

	appt, err := s.repo.GetByID(ctx, proposal.AppointmentID)
	if err != nil {
		return nil, err
	}
	responderRole, err := partyRole(appt, actor)
	if err != nil {
		return nil, err
	}
	if responderRole == proposal.ProposedBy {
		return nil, fmt.Errorf("%w: only the counterpart may respond", ErrForbidden)
	}

	if !accept {
		resolved, err := s.repo.ResolveProposal(ctx, proposal.ID, ProposalRejected)
		if err != nil {
			return nil, err
		}
		s.emit(ctx, appt.ID, EventRescheduleResolved, map[string]any{
			"proposal_id": proposal.ID.String(),
			"accepted":    false,
		})
		return resolved, nil
	}

	if appt.Status != StatusPending && appt.Status != StatusConfirmed {
		return nil, fmt.Errorf("%w: appointment is %s, proposal can no longer apply", ErrState, appt.Status)
	}

	var resolved *RescheduleProposal
	err = s.locker.WithSlotLock(ctx, SlotKey(appt.DoctorID, proposal.ProposedDate, proposal.ProposedTime), func(lockCtx context.Context) error {
		holder, err := s.repo.GetActiveForSlot(lockCtx, appt.DoctorID, proposal.ProposedDate, proposal.ProposedTime)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check slot occupancy: %w", err)
		}
		if holder != nil && holder.ID != appt.ID {
			return ErrSlotTaken
		}

		if _, err := s.repo.ApplyReschedule(lockCtx, appt.ID, appt.Version, proposal.ProposedDate, proposal.ProposedTime); err != nil {
			return err
		}
		resolved, err = s.repo.ResolveProposal(lockCtx, proposal.ID, ProposalAccepted)
		if err != nil {
			return err
		}
		s.emit(lockCtx, appt.ID, EventRescheduleResolved, map[string]any{
			"proposal_id": proposal.ID.String(),
			"accepted":    true,
			"date":        proposal.ProposedDate.String(),
			"time":        proposal.ProposedTime.String(),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, fmt.Errorf("%w: target slot is being booked, retry", ErrConflict)
		}
		return nil, err
	}
	return resolved, nil
}

// partyRole identifies which side of the appointment the actor is on.
func partyRole(appt *Appointment, actor Actor) (Role, error) {
	switch actor.Role {
	case RoleDoctor:
		if actor.ID == appt.DoctorID {
			return RoleDoctor, nil
		}
	case RolePatient:
		if actor.ID == appt.PatientID {
			return RolePatient, nil
		}
	}
	return "", fmt.Errorf("%w: not a party to this appointment", ErrForbidden)
}
