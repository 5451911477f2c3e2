package pipeline

import "fmt"

// ValidationError reports a rejected operation: a precondition was not met,
// and no state changed. It never reaches the agents.
type ValidationError struct {
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pipeline: %s: %s", e.Op, e.Reason)
}

func validationf(op, format string, args ...any) *ValidationError {
	return &ValidationError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
