package availability

import "errors"

var (
	ErrValidation       = errors.New("availability validation failed")
	ErrTemplateNotFound = errors.New("availability template not found")
	ErrPeriodNotFound   = errors.New("unavailability period not found")
)
