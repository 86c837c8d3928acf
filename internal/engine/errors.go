package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the requested workflow or interview does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateActive means an active instance already exists for the
	// (candidate, job) pair.
	ErrDuplicateActive = errors.New("an active workflow already exists for this candidate and job")

	// ErrInvalidTransition means no rule permits the trigger from the
	// instance's current state. The instance is never mutated.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrTemplateInvalid means a pipeline template failed validation at load
	// time. Evaluation never sees an invalid template.
	ErrTemplateInvalid = errors.New("pipeline template is invalid")

	// ErrScheduleConflict means a participant is already booked in the
	// requested window and the conflict policy is set to block.
	ErrScheduleConflict = errors.New("scheduling conflict: participant already booked in this window")

	// ErrInterviewStatus means the requested interview action is not legal
	// from the interview's current status.
	ErrInterviewStatus = errors.New("action not allowed from current interview status")
)

func invalidTransition(state, trigger string) error {
	return fmt.Errorf("%w: no rule for trigger %q from state %q", ErrInvalidTransition, trigger, state)
}

func templateInvalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTemplateInvalid, fmt.Sprintf(format, args...))
}
