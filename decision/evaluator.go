// Package decision picks what a bot does next. Providers propose scored
// candidates, the Evaluator ranks them and the Scheduler runs the winner.
package decision

import (
	"log/slog"
	"sort"
	"time"

	"github.com/nstehr/vimy/vimy-bot/condition"
	"github.com/nstehr/vimy/vimy-bot/task"
)

// Policy holds the tunables the evaluator and scheduler need.
type Policy struct {
	// PreemptMargin is how far above the commit score a challenger must be.
	PreemptMargin float64
	// Cooldown is how long a failed utility stays ineligible.
	Cooldown time.Duration
	// ReevaluateEvery forces a full pass every N ticks; 0 disables.
	ReevaluateEvery int
	// OverrideScore is the minimum score for a Refresh re-proposal to
	// rebuild a running schedule.
	OverrideScore float64
}

// DefaultPolicy returns the baseline tuning.
func DefaultPolicy() Policy {
	return Policy{
		PreemptMargin:   0.1,
		Cooldown:        3 * time.Second,
		ReevaluateEvery: 10,
		OverrideScore:   1.0,
	}
}

// Outcome says what the evaluator did in a tick.
type Outcome int

const (
	// Kept means no evaluation pass ran; the active schedule was just ticked.
	Kept Outcome = iota
	// Held means a pass ran but nothing could beat the active schedule.
	Held
	// NoOp means the active utility was re-proposed and left untouched.
	NoOp
	// Committed means a new schedule was installed.
	Committed
	// FellBack means only the filler could be built.
	FellBack
)

func (o Outcome) String() string {
	switch o {
	case Kept:
		return "kept"
	case Held:
		return "held"
	case NoOp:
		return "noop"
	case Committed:
		return "committed"
	case FellBack:
		return "fell_back"
	default:
		return "unknown"
	}
}

// Decision reports one tick of evaluation.
type Decision struct {
	Outcome    Outcome
	Utility    ActionID // the utility driving behavior after this tick's pass
	Score      float64
	Candidates int
	Rejected   []ActionID // construction failures this tick, in walk order
	Status     task.Status
}

type registered struct {
	p     Provider
	order int
}

// Evaluator ranks candidates and commits the best feasible one.
type Evaluator struct {
	providers []registered
	sched     *Scheduler
	policy    Policy
	filler    Provider
	force     bool
	lastEval  int
	evaluated bool
	log       *slog.Logger
}

// NewEvaluator registers providers in the given order. A filler provider is
// appended when none of the providers is in TierFiller.
func NewEvaluator(policy Policy, log *slog.Logger, providers ...Provider) *Evaluator {
	if log == nil {
		log = slog.Default()
	}
	e := &Evaluator{
		sched:  NewScheduler(policy.PreemptMargin, policy.Cooldown, log),
		policy: policy,
		log:    log,
	}
	for _, p := range providers {
		e.register(p)
	}
	if e.filler == nil {
		e.register(NewFiller(DefaultFillerScore))
	}
	return e
}

func (e *Evaluator) register(p Provider) {
	e.providers = append(e.providers, registered{p: p, order: len(e.providers)})
	if p.Tier() == TierFiller && e.filler == nil {
		e.filler = p
	}
	// Collect tier by tier; registration order breaks ties within a tier.
	sort.SliceStable(e.providers, func(i, j int) bool {
		return e.providers[i].p.Tier() < e.providers[j].p.Tier()
	})
}

// Scheduler exposes the scheduler for inspection and aborts.
func (e *Evaluator) Scheduler() *Scheduler { return e.sched }

// Providers returns the registered provider names in collection order.
func (e *Evaluator) Providers() []string {
	out := make([]string, len(e.providers))
	for i, r := range e.providers {
		out[i] = r.p.Name()
	}
	return out
}

// SetPolicy swaps tuning between ticks.
func (e *Evaluator) SetPolicy(p Policy) {
	e.policy = p
	e.sched.SetPolicy(p.PreemptMargin, p.Cooldown)
}

// Force requests a full evaluation pass on the next tick.
func (e *Evaluator) Force(reason string) {
	if !e.force {
		e.log.Debug("re-evaluation forced", "reason", reason)
	}
	e.force = true
}

// Tick runs one decision step: re-evaluate if needed, then advance the
// active schedule. changed is the fact mask that flipped at this tick's
// condition commit.
func (e *Evaluator) Tick(env *task.Env, changed condition.Mask) Decision {
	e.sched.Wake(changed)

	d := Decision{Outcome: Kept}
	if e.needsPass(env, changed) {
		d = e.pass(env)
		e.force = false
		e.lastEval = env.Tick
		e.evaluated = true
	}
	if id, ok := e.sched.ActiveID(); ok {
		d.Utility = id
		d.Score = e.sched.CommitScore()
	}
	d.Status = e.sched.Tick(env)
	return d
}

func (e *Evaluator) needsPass(env *task.Env, changed condition.Mask) bool {
	active := e.sched.Active()
	switch {
	case e.force, active == nil, active.IsFinished(), !e.evaluated:
		return true
	case changed&e.watch() != 0:
		return true
	case e.policy.ReevaluateEvery > 0 && env.Tick-e.lastEval >= e.policy.ReevaluateEvery:
		return true
	}
	return false
}

// watch is the union of every provider's watched facts. Rule providers
// may change theirs on a swap, so it is not cached.
func (e *Evaluator) watch() condition.Mask {
	var m condition.Mask
	for _, r := range e.providers {
		m |= r.p.Watch()
	}
	return m
}

// collect gathers requests tier by tier, in registration order.
func (e *Evaluator) collect(ctx *Context) []Request {
	var reqs []Request
	for _, r := range e.providers {
		for i, c := range r.p.Propose(ctx) {
			reqs = append(reqs, e.tag(r, c, i))
		}
	}
	return reqs
}

func (e *Evaluator) tag(r registered, c Candidate, seq int) Request {
	return Request{
		ID:      ActionID{Provider: r.p.Name(), Action: c.Action},
		Tier:    r.p.Tier(),
		Score:   c.Score,
		Target:  c.Target,
		Payload: c.Payload,
		Refresh: c.Refresh,
		Plan:    c.Plan,
		Wake:    r.p.Watch(),
		order:   r.order,
		seq:     seq,
	}
}

// rank sorts by score, highest first. Equal scores fall back to tier, then
// provider registration order, then the provider's own proposal order.
func rank(reqs []Request) {
	sort.Slice(reqs, func(i, j int) bool {
		a, b := reqs[i], reqs[j]
		switch {
		case a.Score != b.Score:
			return a.Score > b.Score
		case a.Tier != b.Tier:
			return a.Tier < b.Tier
		case a.order != b.order:
			return a.order < b.order
		default:
			return a.seq < b.seq
		}
	})
}

func (e *Evaluator) context(env *task.Env) *Context {
	active, _ := e.sched.ActiveID()
	return &Context{
		Tick:       env.Tick,
		Now:        env.Now,
		Self:       env.Self(),
		World:      env.World,
		Conditions: env.Conditions,
		Terrain:    env.Terrain,
		Active:     active,
	}
}

func (e *Evaluator) pass(env *task.Env) Decision {
	reqs := e.collect(e.context(env))
	rank(reqs)
	d := Decision{Outcome: Held, Candidates: len(reqs)}

	activeID, running := e.sched.ActiveID()
	for _, r := range reqs {
		if running && r.ID == activeID {
			if !r.Refresh || r.Score < e.policy.OverrideScore {
				d.Outcome = NoOp
				return d
			}
			if s, err := e.build(env, r); err == nil {
				e.sched.Commit(env, r, s)
				d.Outcome = Committed
				return d
			}
			// A failed refresh leaves the running schedule alone.
			d.Outcome = NoOp
			return d
		}
		if !e.sched.CanPreempt(r.Score) {
			return d
		}
		if e.sched.CoolingDown(r.ID, env.Now) {
			continue
		}
		s, err := e.build(env, r)
		if err != nil {
			e.log.Debug("candidate rejected", "utility", r.ID, "score", r.Score, "error", err)
			d.Rejected = append(d.Rejected, r.ID)
			e.sched.StartCooldown(r.ID, env.Now, r.Wake)
			continue
		}
		e.sched.Commit(env, r, s)
		d.Outcome = Committed
		if r.Tier == TierFiller {
			d.Outcome = FellBack
		}
		return d
	}

	if running {
		return d
	}
	e.fallback(env)
	d.Outcome = FellBack
	return d
}

// fallback commits the filler's schedule, ignoring cooldowns. The filler
// plan never fails to construct.
func (e *Evaluator) fallback(env *task.Env) {
	ctx := e.context(env)
	for _, c := range e.filler.Propose(ctx) {
		r := e.tag(registered{p: e.filler, order: len(e.providers)}, c, 0)
		if s, err := e.build(env, r); err == nil {
			e.sched.Commit(env, r, s)
			return
		}
	}
	r := e.tag(registered{p: e.filler}, idleCandidate(DefaultFillerScore, DefaultIdleWait), 0)
	s, err := e.build(env, r)
	if err != nil {
		e.log.Error("idle schedule failed to build", "error", err)
		return
	}
	e.sched.Commit(env, r, s)
}

func (e *Evaluator) build(env *task.Env, r Request) (*task.Schedule, error) {
	p := task.NewPlanner(env)
	if r.Plan != nil {
		r.Plan(p)
	}
	return p.Build(r.ID.String(), r.Score)
}
