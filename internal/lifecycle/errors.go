package lifecycle

import "errors"

var (
	// ErrInvalidTransition is returned when a trigger is not permitted in
	// the current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidStatus is returned when a status is not a recognized
	// lifecycle state.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrGuardFailed is returned when every candidate transition's guard
	// rejected the trigger.
	ErrGuardFailed = errors.New("guard condition failed")
)
