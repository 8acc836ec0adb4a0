package decision

import (
	"errors"
	"log/slog"
	"time"

	"github.com/nstehr/vimy/vimy-bot/condition"
	"github.com/nstehr/vimy/vimy-bot/task"
)

type cooldown struct {
	until time.Duration
	wake  condition.Mask
}

// Scheduler owns at most one active schedule per agent and decides when a
// new one may replace it.
type Scheduler struct {
	active      *task.Schedule
	activeID    ActionID
	activeTier  Tier
	activeWake  condition.Mask
	commitScore float64

	cooldowns map[ActionID]cooldown
	margin    float64
	window    time.Duration
	log       *slog.Logger
}

// NewScheduler returns an empty scheduler. margin is how far a challenger's
// score must exceed the commit score to preempt; window is the cooldown
// after a failure.
func NewScheduler(margin float64, window time.Duration, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cooldowns: make(map[ActionID]cooldown),
		margin:    margin,
		window:    window,
		log:       log,
	}
}

// SetPolicy replaces margin and cooldown window. Running cooldowns keep
// their original expiry.
func (s *Scheduler) SetPolicy(margin float64, window time.Duration) {
	s.margin = margin
	s.window = window
}

// Active returns the running schedule, or nil.
func (s *Scheduler) Active() *task.Schedule { return s.active }

// ActiveID returns the committed utility; ok is false with no schedule.
func (s *Scheduler) ActiveID() (ActionID, bool) {
	if s.active == nil {
		return ActionID{}, false
	}
	return s.activeID, true
}

// ActiveTier is the tier the active schedule was proposed from.
func (s *Scheduler) ActiveTier() Tier { return s.activeTier }

// CommitScore is the score the active schedule was committed with.
func (s *Scheduler) CommitScore() float64 { return s.commitScore }

// CanPreempt reports whether a challenger with score may replace the active
// schedule.
func (s *Scheduler) CanPreempt(score float64) bool {
	if s.active == nil || s.active.IsFinished() {
		return true
	}
	return score > s.commitScore+s.margin
}

// Commit installs sched for req. Any schedule still running is aborted
// first, so the old one's reset lands before the new one's first tick.
func (s *Scheduler) Commit(env *task.Env, req Request, sched *task.Schedule) {
	if s.active != nil && !s.active.IsFinished() {
		reason := task.AbortPreempted
		if s.activeID == req.ID {
			reason = task.AbortRefreshed
		}
		s.log.Info("schedule preempted",
			"from", s.activeID, "fromScore", s.commitScore,
			"to", req.ID, "toScore", req.Score, "reason", reason)
		s.active.Abort(env, reason)
	}
	s.active = sched
	s.activeID = req.ID
	s.activeTier = req.Tier
	s.activeWake = req.Wake
	s.commitScore = req.Score
	s.log.Info("schedule committed",
		"utility", req.ID, "tier", req.Tier, "score", req.Score,
		"tasks", sched.Len(), "schedule", sched.ID)
}

// Tick advances the active schedule. A finished schedule is released;
// a failed one puts its utility on cooldown.
func (s *Scheduler) Tick(env *task.Env) task.Status {
	if s.active == nil {
		return task.Pending
	}
	st := s.active.Advance(env)
	if !task.IsTerminal(st) {
		return st
	}
	if st == task.Failed {
		s.log.Warn("schedule failed", "utility", s.activeID, "schedule", s.active.ID, "error", s.active.Err())
		if errors.Is(s.active.Err(), task.ErrRuntime) {
			s.StartCooldown(s.activeID, env.Now, s.activeWake)
		}
	}
	s.release()
	return st
}

// Abort cuts the active schedule short without a cooldown.
func (s *Scheduler) Abort(env *task.Env, reason task.AbortReason) {
	if s.active == nil {
		return
	}
	s.active.Abort(env, reason)
	s.release()
}

func (s *Scheduler) release() {
	s.active = nil
	s.activeID = ActionID{}
	s.activeWake = 0
	s.commitScore = 0
}

// StartCooldown makes id ineligible until now+window, or until a fact in
// wake changes.
func (s *Scheduler) StartCooldown(id ActionID, now time.Duration, wake condition.Mask) {
	if s.window <= 0 {
		return
	}
	s.cooldowns[id] = cooldown{until: now + s.window, wake: wake}
	s.log.Debug("cooldown started", "utility", id, "until", now+s.window)
}

// CoolingDown reports whether id is still ineligible at now.
func (s *Scheduler) CoolingDown(id ActionID, now time.Duration) bool {
	cd, ok := s.cooldowns[id]
	if !ok {
		return false
	}
	if now >= cd.until {
		delete(s.cooldowns, id)
		return false
	}
	return true
}

// Wake ends cooldowns whose watched facts are in changed.
func (s *Scheduler) Wake(changed condition.Mask) {
	if changed == 0 {
		return
	}
	for id, cd := range s.cooldowns {
		if cd.wake&changed != 0 {
			delete(s.cooldowns, id)
			s.log.Debug("cooldown woken", "utility", id, "changed", changed)
		}
	}
}

// Cooldowns returns the number of utilities currently cooling down.
func (s *Scheduler) Cooldowns() int { return len(s.cooldowns) }
