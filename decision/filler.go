package decision

import (
	"time"

	"github.com/nstehr/vimy/vimy-bot/condition"
	"github.com/nstehr/vimy/vimy-bot/task"
)

const (
	DefaultFillerScore = 0.01
	DefaultIdleWait    = 2 * time.Second
)

// Filler always proposes idling so the candidate list is never empty.
type Filler struct {
	score float64
	wait  time.Duration
}

func NewFiller(score float64) *Filler {
	return &Filler{score: score, wait: DefaultIdleWait}
}

func (f *Filler) Name() string          { return "filler" }
func (f *Filler) Tier() Tier            { return TierFiller }
func (f *Filler) Watch() condition.Mask { return 0 }

func (f *Filler) Propose(*Context) []Candidate {
	return []Candidate{idleCandidate(f.score, f.wait)}
}

func idleCandidate(score float64, wait time.Duration) Candidate {
	return Candidate{
		Action: "idle",
		Score:  score,
		Plan: func(p *task.Planner) {
			p.Wait(wait)
		},
	}
}
