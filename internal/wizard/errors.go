package wizard

import (
	"errors"
	"fmt"

	"github.com/rbright/inspector/internal/fsm"
)

var (
	// ErrValidation matches every unmet step guard. No request is issued.
	ErrValidation = errors.New("validation failed")
	// ErrClosed is returned once the wizard has been torn down.
	ErrClosed = errors.New("wizard closed")
	// ErrWrongStep rejects operations that do not belong to the current step.
	ErrWrongStep = errors.New("operation not available in this step")
	ErrNoCamera  = errors.New("camera is not running")
)

// ValidationError is a guard failure at one wizard step.
type ValidationError struct {
	Step    fsm.State
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Step, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func wrongStep(op string, current fsm.State) error {
	return fmt.Errorf("%w: %s during %s", ErrWrongStep, op, current)
}
