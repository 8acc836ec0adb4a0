package decision

import (
	"fmt"
	"time"

	"github.com/nstehr/vimy/vimy-bot/condition"
	"github.com/nstehr/vimy/vimy-bot/model"
	"github.com/nstehr/vimy/vimy-bot/task"
)

// Tier groups providers by urgency. Lower values are collected first and
// win score ties.
type Tier int

const (
	TierSurvival Tier = iota
	TierAbility
	TierObjective
	TierFiller
)

func (t Tier) String() string {
	switch t {
	case TierSurvival:
		return "survival"
	case TierAbility:
		return "ability"
	case TierObjective:
		return "objective"
	case TierFiller:
		return "filler"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier resolves a tier name.
func ParseTier(s string) (Tier, error) {
	for t := TierSurvival; t <= TierFiller; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown tier %q", s)
}

// ActionID is a provider-scoped behavior identifier. Two providers may both
// call something "attack"; their ids never collide.
type ActionID struct {
	Provider string
	Action   string
}

func (id ActionID) String() string {
	if id.Provider == "" && id.Action == "" {
		return "none"
	}
	return id.Provider + "/" + id.Action
}

// IsZero reports whether id names nothing.
func (id ActionID) IsZero() bool { return id == ActionID{} }

// PlanFunc lays out a candidate's tasks on a planner.
type PlanFunc func(p *task.Planner)

// Candidate is a provider's scored proposal for this evaluation pass only.
// Score is 0 for worthless, 1 for normally maximal, above 1 for overrides.
type Candidate struct {
	Action  string
	Score   float64
	Target  int // entity id, 0 for none
	Payload any
	// Refresh asks to rebuild the schedule when this action is already
	// running. It is honoured only at or above the override score.
	Refresh bool
	Plan    PlanFunc
}

// Request is a candidate tagged with where it came from. The evaluator
// ranks and commits requests, never raw candidates.
type Request struct {
	ID      ActionID
	Tier    Tier
	Score   float64
	Target  int
	Payload any
	Refresh bool
	Plan    PlanFunc
	Wake    condition.Mask // provider's watched facts; ends a cooldown early

	order int // provider registration order
	seq   int // position in the provider's output
}

// Context is the read-only view a provider scores against.
type Context struct {
	Tick       int
	Now        time.Duration
	Self       model.Self
	World      *model.Snapshot
	Conditions condition.View
	Terrain    *model.TerrainGrid
	// Active is the utility currently running, zero if none.
	Active ActionID
}

// Provider proposes candidates for one role or concern. Propose must not
// hold on to ctx or mutate anything reachable from it.
type Provider interface {
	Name() string
	Tier() Tier
	// Watch lists the facts whose change should trigger re-evaluation.
	Watch() condition.Mask
	Propose(ctx *Context) []Candidate
}
