package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/quizrun-backend/internal/model"
)

// Domain Errors
var (
	ErrConfigRejected     = errors.New("quiz configuration rejected")
	ErrGenerationFailed   = errors.New("session generation failed")
	ErrSubmissionFailed   = errors.New("submission failed")
	ErrSubmissionInFlight = errors.New("submission already in flight")
	ErrInvalidTransition  = errors.New("invalid session transition")
	ErrInvalidAnswer      = errors.New("answer is not one of the question options")
	ErrUnknownQuestion    = errors.New("question is not part of this session")
	ErrInvalidFilter      = errors.New("unknown review filter")
	ErrSessionClosed      = errors.New("session closed")
)

// ConfigError explains why a selection was rejected.
type ConfigError struct {
	Reason    string
	Requested int
	Available int
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfigRejected, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfigRejected }

// GenerationError is returned when no session could be produced.
type GenerationError struct {
	Requested int
	Received  int
	Err       error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", ErrGenerationFailed, e.Err)
	}
	return fmt.Sprintf("%s: source returned %d of %d questions", ErrGenerationFailed, e.Received, e.Requested)
}

func (e *GenerationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrGenerationFailed}
	}
	return []error{ErrGenerationFailed, e.Err}
}

// SubmissionError is returned when the sink refused a finished attempt.
// The session stays SUBMITTING and can be submitted again.
type SubmissionError struct {
	AttemptID uuid.UUID
	Err       error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s for attempt %s: %v", ErrSubmissionFailed, e.AttemptID, e.Err)
}

func (e *SubmissionError) Unwrap() []error {
	return []error{ErrSubmissionFailed, e.Err}
}

// TransitionError reports an operation attempted in a state that does not allow it.
type TransitionError struct {
	Op     string
	Status model.AttemptStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s while %s", ErrInvalidTransition, e.Op, e.Status)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
