package task

import (
	"errors"
	"fmt"
)

var (
	// ErrConstruction means a schedule could not be assembled: a missing
	// resource, an unknown or unreachable target. Callers try the next candidate.
	ErrConstruction = errors.New("construction failure")
	// ErrRuntime means a task failed mid-run and took its schedule with it.
	ErrRuntime = errors.New("runtime failure")
	// ErrAborted marks a schedule that was interrupted on purpose.
	ErrAborted = errors.New("aborted")
	// ErrInvalidTransition is a task reporting a status its lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid task transition")
)

// Failure describes why a schedule did not run to completion.
type Failure struct {
	Kind    error // ErrConstruction, ErrRuntime or ErrAborted
	Utility string
	Task    Kind
	Index   int
	Err     error
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	where := f.Utility
	if f.Task != KindNone {
		where = fmt.Sprintf("%s/%s[%d]", f.Utility, f.Task, f.Index)
	}
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Kind, where)
	}
	return fmt.Sprintf("%s: %s: %v", f.Kind, where, f.Err)
}

func (f *Failure) Unwrap() []error {
	if f.Err == nil {
		return []error{f.Kind}
	}
	return []error{f.Kind, f.Err}
}

var (
	errTargetLost  = errors.New("target lost")
	errTimedOut    = errors.New("timed out")
	errUnreachable = errors.New("destination unreachable")
	errDead        = errors.New("agent dead")
)

// IsTargetLost reports whether err was caused by losing track of a target.
func IsTargetLost(err error) bool { return errors.Is(err, errTargetLost) }

// IsTimeout reports whether err was caused by a task running out of time.
func IsTimeout(err error) bool { return errors.Is(err, errTimedOut) }
