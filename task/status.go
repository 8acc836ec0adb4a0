package task

import "fmt"

// Status is a task's (or schedule's) lifecycle state.
type Status int

const (
	Pending Status = iota
	Running
	Complete
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// IsTerminal reports whether s is Complete or Failed.
func IsTerminal(s Status) bool {
	return s == Complete || s == Failed
}

// transition validates a lifecycle move. Running→Running is a tick that
// keeps going. Pending→Failed is an Init that could not start.
func transition(from, to Status) error {
	if isAllowedTransition(from, to) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

func isAllowedTransition(from, to Status) bool {
	switch from {
	case Pending:
		return to == Running || to == Failed
	case Running:
		return to == Running || to == Complete || to == Failed
	default:
		return false
	}
}
