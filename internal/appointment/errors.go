package appointment

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every rejected operation wraps exactly one of these five
// kinds, with a human-readable reason; callers dispatch with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrState      = errors.New("state transition not permitted")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
)

var (
	ErrDoctorNotFound      = fmt.Errorf("doctor %w", ErrNotFound)
	ErrPatientNotFound     = fmt.Errorf("patient %w", ErrNotFound)
	ErrAppointmentNotFound = fmt.Errorf("appointment %w", ErrNotFound)
	ErrProposalNotFound    = fmt.Errorf("reschedule proposal %w", ErrNotFound)

	// ErrSlotTaken surfaces both a failed fresh-read check and the unique
	// index on active (doctor, date, time) rows.
	ErrSlotTaken = fmt.Errorf("%w: slot already taken", ErrConflict)

	// ErrVersionConflict is the optimistic-concurrency failure; retry with a
	// fresh read.
	ErrVersionConflict = fmt.Errorf("%w: appointment changed concurrently", ErrConflict)

	// ErrProposalPending blocks a second proposal while one is unresolved.
	ErrProposalPending = fmt.Errorf("%w: a reschedule proposal is already pending", ErrConflict)
)
