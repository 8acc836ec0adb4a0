package task

import (
	"fmt"

	"github.com/google/uuid"
)

// AbortReason says why a schedule was cut short.
type AbortReason string

const (
	AbortPreempted AbortReason = "preempted"
	AbortRefreshed AbortReason = "refreshed"
	AbortDied      AbortReason = "died"
	AbortShutdown  AbortReason = "shutdown"
)

type step struct {
	task   Task
	status Status
}

// Schedule runs its tasks in order, one at a time. The first task failure
// fails the whole schedule; there is no retry.
type Schedule struct {
	ID      uuid.UUID
	Utility string
	Score   float64

	steps   []step
	index   int
	status  Status
	err     error
	aborted AbortReason
}

func newSchedule(utility string, score float64, tasks []Task) *Schedule {
	s := &Schedule{
		ID:      uuid.New(),
		Utility: utility,
		Score:   score,
		steps:   make([]step, len(tasks)),
	}
	for i, t := range tasks {
		s.steps[i] = step{task: t}
	}
	return s
}

// Status returns Pending before the first Advance, Running while work
// remains, then Complete or Failed.
func (s *Schedule) Status() Status { return s.status }

// IsFinished is true once every task completed or a failure propagated.
func (s *Schedule) IsFinished() bool { return IsTerminal(s.status) }

// Err is the *Failure behind a Failed status.
func (s *Schedule) Err() error { return s.err }

// Aborted returns the abort reason, or "" if the schedule was never aborted.
func (s *Schedule) Aborted() AbortReason { return s.aborted }

// Index is the position of the current task.
func (s *Schedule) Index() int { return s.index }

// Len is the number of tasks.
func (s *Schedule) Len() int { return len(s.steps) }

// Current returns the current task's kind and status. ok is false once the
// schedule has run past its last task.
func (s *Schedule) Current() (Kind, Status, bool) {
	if s.index >= len(s.steps) {
		return KindNone, s.status, false
	}
	st := s.steps[s.index]
	return st.task.Kind(), st.status, true
}

// StepStatus returns the status of task i.
func (s *Schedule) StepStatus(i int) Status { return s.steps[i].status }

// Advance ticks the current task. When it completes the next task is
// initialised right away and ticked on the following Advance.
func (s *Schedule) Advance(env *Env) Status {
	if s.IsFinished() {
		return s.status
	}
	s.status = Running

	cur := &s.steps[s.index]
	if cur.status == Pending {
		if !s.start(env, cur) {
			return s.status
		}
	}

	result := cur.task.Tick(env)
	if err := transition(cur.status, result); err != nil {
		cur.status = Failed
		return s.fail(err)
	}
	cur.status = result

	switch result {
	case Complete:
		s.index++
		if s.index == len(s.steps) {
			s.status = Complete
			env.logger().Debug("schedule complete", "utility", s.Utility, "schedule", s.ID)
			return s.status
		}
		s.start(env, &s.steps[s.index])
	case Failed:
		return s.fail(cur.task.Cause())
	}
	return s.status
}

// start initialises st and reports whether it is now Running.
func (s *Schedule) start(env *Env, st *step) bool {
	result := st.task.Init(env)
	if err := transition(Pending, result); err != nil {
		st.status = Failed
		s.fail(err)
		return false
	}
	st.status = result
	if result == Failed {
		s.fail(st.task.Cause())
		return false
	}
	return true
}

func (s *Schedule) fail(cause error) Status {
	if cause == nil {
		cause = fmt.Errorf("task reported failure without a cause")
	}
	s.status = Failed
	s.err = &Failure{
		Kind:    ErrRuntime,
		Utility: s.Utility,
		Task:    s.steps[s.index].task.Kind(),
		Index:   s.index,
		Err:     cause,
	}
	return s.status
}

// Abort resets the current task and discards the rest. It is safe at any
// point, including before the first Advance, and a no-op once finished.
func (s *Schedule) Abort(env *Env, reason AbortReason) {
	if s.IsFinished() {
		return
	}
	if s.index < len(s.steps) {
		s.steps[s.index].task.Reset(env)
	}
	s.aborted = reason
	s.status = Failed
	s.err = &Failure{Kind: ErrAborted, Utility: s.Utility, Err: fmt.Errorf("%s", reason)}
	s.index = len(s.steps)
	env.logger().Debug("schedule aborted", "utility", s.Utility, "schedule", s.ID, "reason", reason)
}
