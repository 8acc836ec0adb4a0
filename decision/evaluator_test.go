package decision

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstehr/vimy/vimy-bot/actuation"
	"github.com/nstehr/vimy/vimy-bot/condition"
	"github.com/nstehr/vimy/vimy-bot/ipc"
	"github.com/nstehr/vimy/vimy-bot/model"
	"github.com/nstehr/vimy/vimy-bot/task"
)

// stub is a provider whose proposals are set by the test.
type stub struct {
	name  string
	tier  Tier
	watch condition.Mask
	calls int
	cands func(ctx *Context) []Candidate
}

func (s *stub) Name() string          { return s.name }
func (s *stub) Tier() Tier            { return s.tier }
func (s *stub) Watch() condition.Mask { return s.watch }

func (s *stub) Propose(ctx *Context) []Candidate {
	s.calls++
	if s.cands == nil {
		return nil
	}
	return s.cands(ctx)
}

func fixed(name string, tier Tier, cands ...Candidate) *stub {
	return &stub{name: name, tier: tier, cands: func(*Context) []Candidate { return cands }}
}

func waitFor(d time.Duration) PlanFunc {
	return func(p *task.Planner) { p.Wait(d) }
}

func needsRockets(p *task.Planner) { p.Require("rockets", 1).Wait(time.Second) }

type rig struct {
	env *task.Env
	buf *actuation.Buffer
}

func newRig() *rig {
	buf := actuation.NewBuffer()
	return &rig{
		buf: buf,
		env: &task.Env{
			World: &model.Snapshot{
				Self: model.Self{ID: 1, Team: "red", Alive: true, Health: 100, MaxHealth: 100,
					Resources: map[string]int{"ammo": 10}},
			},
			Conditions: condition.New(),
			Act:        buf,
		},
	}
}

func (r *rig) at(d time.Duration) *task.Env {
	r.env.Now = d
	r.env.Tick++
	return r.env
}

func testPolicy() Policy {
	return Policy{PreemptMargin: 0.1, Cooldown: 3 * time.Second, OverrideScore: 1.0}
}

func id(p, a string) ActionID { return ActionID{Provider: p, Action: a} }

func TestConstructionFailureFallsThroughSameTick(t *testing.T) {
	r := newRig()
	p := fixed("combat", TierAbility,
		Candidate{Action: "a", Score: 0.90, Plan: waitFor(time.Second)},
		Candidate{Action: "b", Score: 0.95, Plan: needsRockets},
	)
	e := NewEvaluator(testPolicy(), nil, p)

	d := e.Tick(r.at(0), 0)
	assert.Equal(t, Committed, d.Outcome)
	assert.Equal(t, id("combat", "a"), d.Utility)
	assert.Equal(t, []ActionID{id("combat", "b")}, d.Rejected)
	assert.True(t, e.Scheduler().CoolingDown(id("combat", "b"), 0))
	assert.Equal(t, task.Running, d.Status)
}

func TestSameUtilityReproposalIsNoop(t *testing.T) {
	r := newRig()
	p := fixed("combat", TierAbility, Candidate{Action: "a", Score: 0.5, Plan: waitFor(10 * time.Second)})
	e := NewEvaluator(testPolicy(), nil, p)

	e.Tick(r.at(0), 0)
	first := e.Scheduler().Active()
	require.NotNil(t, first)

	e.Force("test")
	d := e.Tick(r.at(time.Second), 0)
	assert.Equal(t, NoOp, d.Outcome)
	assert.Same(t, first, e.Scheduler().Active())
}

// A rescored proposal for the running utility midway through its schedule
// leaves the schedule, its position and its commit score untouched.
func TestReproposalMidScheduleKeepsProgress(t *testing.T) {
	r := newRig()
	score := 0.5
	p := &stub{name: "combat", tier: TierAbility, cands: func(*Context) []Candidate {
		return []Candidate{{Action: "a", Score: score, Plan: func(p *task.Planner) {
			p.Wait(time.Second).Wait(5 * time.Second).Wait(5 * time.Second)
		}}}
	}}
	e := NewEvaluator(testPolicy(), nil, p)

	e.Tick(r.at(0), 0)
	first := e.Scheduler().Active()
	require.NotNil(t, first)
	e.Tick(r.at(time.Second), 0)
	require.Equal(t, 1, first.Index(), "on task 2 of 3")

	score = 0.8
	e.Force("rescored")
	d := e.Tick(r.at(2*time.Second), 0)
	assert.Equal(t, NoOp, d.Outcome)
	assert.Same(t, first, e.Scheduler().Active())
	assert.Equal(t, 1, first.Index())
	assert.Equal(t, 3, first.Len())
	assert.Equal(t, task.Complete, first.StepStatus(0))
	assert.Equal(t, task.Running, first.StepStatus(1))
	assert.Equal(t, 0.5, e.Scheduler().CommitScore())
	assert.Empty(t, string(first.Aborted()))
}

func TestRefreshAboveOverrideRebuilds(t *testing.T) {
	r := newRig()
	score := 0.5
	p := &stub{name: "combat", tier: TierAbility, cands: func(*Context) []Candidate {
		return []Candidate{{Action: "a", Score: score, Refresh: true, Plan: waitFor(10 * time.Second)}}
	}}
	e := NewEvaluator(testPolicy(), nil, p)
	e.Tick(r.at(0), 0)
	first := e.Scheduler().Active()

	e.Force("below override")
	e.Tick(r.at(time.Second), 0)
	assert.Same(t, first, e.Scheduler().Active(), "refresh below override score must not rebuild")

	score = 1.2
	e.Force("override")
	d := e.Tick(r.at(2*time.Second), 0)
	assert.Equal(t, Committed, d.Outcome)
	assert.NotSame(t, first, e.Scheduler().Active())
	assert.Equal(t, task.AbortRefreshed, first.Aborted())
}

func TestPreemptionNeedsMargin(t *testing.T) {
	r := newRig()
	challenger := 0.0
	low := fixed("objective", TierObjective, Candidate{Action: "hold", Score: 0.5, Plan: waitFor(10 * time.Second)})
	high := &stub{name: "combat", tier: TierAbility, cands: func(*Context) []Candidate {
		if challenger == 0 {
			return nil
		}
		return []Candidate{{Action: "engage", Score: challenger, Plan: waitFor(10 * time.Second)}}
	}}
	e := NewEvaluator(testPolicy(), nil, low, high)
	e.Tick(r.at(0), 0)
	hold := e.Scheduler().Active()
	require.Equal(t, "objective/hold", hold.Utility)

	challenger = 0.55
	e.Force("test")
	d := e.Tick(r.at(time.Second), 0)
	assert.Equal(t, Held, d.Outcome)
	assert.Equal(t, id("objective", "hold"), d.Utility)

	challenger = 0.65
	e.Force("test")
	d = e.Tick(r.at(2*time.Second), 0)
	assert.Equal(t, Committed, d.Outcome)
	assert.Equal(t, id("combat", "engage"), d.Utility)
	assert.Equal(t, task.AbortPreempted, hold.Aborted())
	assert.ErrorIs(t, hold.Err(), task.ErrAborted)
}

func TestPreemptedResetLandsBeforeNewTick(t *testing.T) {
	r := newRig()
	jump := false
	scope := fixed("sniper", TierAbility, Candidate{Action: "scope", Score: 0.5,
		Plan: func(p *task.Planner) { p.Hold(ipc.ControlSecondary, 10*time.Second) }})
	dodge := &stub{name: "survival", tier: TierSurvival, cands: func(*Context) []Candidate {
		if !jump {
			return nil
		}
		return []Candidate{{Action: "dodge", Score: 0.9,
			Plan: func(p *task.Planner) { p.Tap(ipc.ControlJump) }}}
	}}
	e := NewEvaluator(testPolicy(), nil, scope, dodge)

	e.Tick(r.at(0), 0)
	assert.True(t, r.buf.Holding(ipc.ControlSecondary))
	r.buf.Drain()

	jump = true
	e.Force("danger")
	e.Tick(r.at(100*time.Millisecond), 0)

	var got []string
	for _, in := range r.buf.Drain() {
		got = append(got, in.Kind+":"+in.Control)
	}
	want := []string{ipc.IntentRelease + ":" + ipc.ControlSecondary, ipc.IntentTap + ":" + ipc.ControlJump}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("intent order mismatch (-want +got):\n%s", diff)
	}
}

func TestTieBreakIsDeterministic(t *testing.T) {
	r := newRig()
	// Registered objective first; survival still wins the tie on tier.
	obj := fixed("objective", TierObjective, Candidate{Action: "capture", Score: 0.5, Plan: waitFor(time.Second)})
	surv := fixed("survival", TierSurvival, Candidate{Action: "cover", Score: 0.5, Plan: waitFor(time.Second)})
	e := NewEvaluator(testPolicy(), nil, obj, surv)
	assert.Equal(t, []string{"survival", "objective", "filler"}, e.Providers())
	assert.Equal(t, id("survival", "cover"), e.Tick(r.at(0), 0).Utility)

	// Same tier: registration order, then proposal order.
	a := fixed("alpha", TierAbility,
		Candidate{Action: "first", Score: 0.4, Plan: waitFor(time.Second)},
		Candidate{Action: "second", Score: 0.4, Plan: waitFor(time.Second)})
	b := fixed("beta", TierAbility, Candidate{Action: "x", Score: 0.4, Plan: waitFor(time.Second)})
	for range 5 {
		e := NewEvaluator(testPolicy(), nil, a, b)
		assert.Equal(t, id("alpha", "first"), e.Tick(newRig().at(0), 0).Utility)
	}
}

func TestRankOrdersTiesExplicitly(t *testing.T) {
	reqs := []Request{
		{ID: id("beta", "x"), Score: 0.4, Tier: TierAbility, order: 2},
		{ID: id("alpha", "second"), Score: 0.4, Tier: TierAbility, order: 1, seq: 1},
		{ID: id("objective", "capture"), Score: 0.4, Tier: TierObjective, order: 0},
		{ID: id("alpha", "first"), Score: 0.4, Tier: TierAbility, order: 1},
		{ID: id("survival", "cover"), Score: 0.4, Tier: TierSurvival, order: 3},
		{ID: id("objective", "push"), Score: 0.9, Tier: TierObjective, order: 0, seq: 1},
	}
	rank(reqs)

	var got []ActionID
	for _, r := range reqs {
		got = append(got, r.ID)
	}
	want := []ActionID{
		id("objective", "push"),
		id("survival", "cover"),
		id("alpha", "first"),
		id("alpha", "second"),
		id("beta", "x"),
		id("objective", "capture"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rank order mismatch (-want +got):\n%s", diff)
	}
}

func TestCooldownExpires(t *testing.T) {
	r := newRig()
	rockets := 0
	risky := &stub{name: "assault", tier: TierAbility, cands: func(*Context) []Candidate {
		return []Candidate{{Action: "rocket", Score: 0.95, Plan: func(p *task.Planner) {
			if rockets == 0 {
				p.Require("rockets", 1)
			}
			p.Wait(10 * time.Second)
		}}}
	}}
	safe := fixed("objective", TierObjective, Candidate{Action: "hold", Score: 0.5, Plan: waitFor(10 * time.Second)})
	e := NewEvaluator(testPolicy(), nil, risky, safe)

	d := e.Tick(r.at(0), 0)
	require.Equal(t, id("objective", "hold"), d.Utility)

	rockets = 5
	e.Force("test")
	d = e.Tick(r.at(time.Second), 0)
	assert.Equal(t, NoOp, d.Outcome, "rocket is still cooling down")

	e.Force("test")
	d = e.Tick(r.at(3*time.Second), 0)
	assert.Equal(t, Committed, d.Outcome)
	assert.Equal(t, id("assault", "rocket"), d.Utility)
}

func TestCooldownWokenByWatchedFact(t *testing.T) {
	r := newRig()
	rockets := 0
	risky := &stub{name: "assault", tier: TierAbility, watch: condition.Of(condition.LowAmmo),
		cands: func(*Context) []Candidate {
			return []Candidate{{Action: "rocket", Score: 0.95, Plan: func(p *task.Planner) {
				if rockets == 0 {
					p.Require("rockets", 1)
				}
				p.Wait(10 * time.Second)
			}}}
		}}
	safe := fixed("objective", TierObjective, Candidate{Action: "hold", Score: 0.5, Plan: waitFor(10 * time.Second)})
	e := NewEvaluator(testPolicy(), nil, risky, safe)
	e.Tick(r.at(0), 0)
	require.Equal(t, 1, e.Scheduler().Cooldowns())

	rockets = 1
	d := e.Tick(r.at(500*time.Millisecond), condition.Of(condition.LowAmmo))
	assert.Equal(t, Committed, d.Outcome)
	assert.Equal(t, id("assault", "rocket"), d.Utility)
	assert.Zero(t, e.Scheduler().Cooldowns())
}

func TestRuntimeFailureStartsCooldown(t *testing.T) {
	r := newRig()
	move := fixed("objective", TierObjective, Candidate{Action: "push", Score: 0.6,
		Plan: func(p *task.Planner) { p.MoveTo(model.Vec3{X: 100}, 1, 0) }})
	e := NewEvaluator(testPolicy(), nil, move)

	e.Tick(r.at(0), 0)
	r.env.World.Self.Alive = false
	d := e.Tick(r.at(100*time.Millisecond), 0)
	assert.Equal(t, task.Failed, d.Status)
	assert.Nil(t, e.Scheduler().Active())
	assert.True(t, e.Scheduler().CoolingDown(id("objective", "push"), 200*time.Millisecond))

	r.env.World.Self.Alive = true
	d = e.Tick(r.at(200*time.Millisecond), 0)
	assert.Equal(t, FellBack, d.Outcome)
	assert.Equal(t, id("filler", "idle"), d.Utility)
}

func TestAbortedScheduleGetsNoCooldown(t *testing.T) {
	r := newRig()
	p := fixed("objective", TierObjective, Candidate{Action: "hold", Score: 0.5, Plan: waitFor(10 * time.Second)})
	e := NewEvaluator(testPolicy(), nil, p)
	e.Tick(r.at(0), 0)
	s := e.Scheduler().Active()

	e.Scheduler().Abort(r.env, task.AbortDied)
	assert.Equal(t, task.AbortDied, s.Aborted())
	assert.Nil(t, e.Scheduler().Active())
	assert.Zero(t, e.Scheduler().Cooldowns())
}

func TestFillerFallbackIgnoresCooldown(t *testing.T) {
	r := newRig()
	broken := fixed("combat", TierAbility, Candidate{Action: "b", Score: 0.9, Plan: needsRockets})
	e := NewEvaluator(testPolicy(), nil, broken)

	d := e.Tick(r.at(0), 0)
	assert.Equal(t, FellBack, d.Outcome)
	assert.Equal(t, id("filler", "idle"), d.Utility)

	// Put the filler itself on cooldown; an agent must still never idle
	// without a schedule.
	e.Scheduler().Abort(r.env, task.AbortShutdown)
	e.Scheduler().StartCooldown(id("filler", "idle"), r.env.Now, 0)
	d = e.Tick(r.at(time.Second), 0)
	assert.Equal(t, FellBack, d.Outcome)
	assert.NotNil(t, e.Scheduler().Active())
}

func TestDefaultFillerAppended(t *testing.T) {
	e := NewEvaluator(testPolicy(), nil)
	assert.Equal(t, []string{"filler"}, e.Providers())

	custom := &Filler{score: 0.02, wait: time.Second}
	e = NewEvaluator(testPolicy(), nil, custom)
	assert.Len(t, e.Providers(), 1)
}

func TestStableWorldSkipsEvaluation(t *testing.T) {
	r := newRig()
	p := fixed("objective", TierObjective, Candidate{Action: "hold", Score: 0.5, Plan: waitFor(time.Minute)})
	p.watch = condition.Of(condition.SeeEnemy)
	e := NewEvaluator(testPolicy(), nil, p)

	e.Tick(r.at(0), 0)
	require.Equal(t, 1, p.calls)
	for i := 1; i <= 5; i++ {
		d := e.Tick(r.at(time.Duration(i)*100*time.Millisecond), 0)
		assert.Equal(t, Kept, d.Outcome)
	}
	assert.Equal(t, 1, p.calls)

	// An unwatched fact does not wake anyone either.
	e.Tick(r.at(time.Second), condition.Of(condition.HeardNoise))
	assert.Equal(t, 1, p.calls)

	d := e.Tick(r.at(1100*time.Millisecond), condition.Of(condition.SeeEnemy))
	assert.Equal(t, NoOp, d.Outcome)
	assert.Equal(t, 2, p.calls)
}

func TestPeriodicReevaluation(t *testing.T) {
	r := newRig()
	p := fixed("objective", TierObjective, Candidate{Action: "hold", Score: 0.5, Plan: waitFor(time.Minute)})
	pol := testPolicy()
	pol.ReevaluateEvery = 3
	e := NewEvaluator(pol, nil, p)

	var outcomes []Outcome
	for i := range 7 {
		outcomes = append(outcomes, e.Tick(r.at(time.Duration(i)*100*time.Millisecond), 0).Outcome)
	}
	want := []Outcome{Committed, Kept, Kept, NoOp, Kept, Kept, NoOp}
	assert.Equal(t, want, outcomes)
}

func TestSetPolicyAppliesToScheduler(t *testing.T) {
	e := NewEvaluator(testPolicy(), nil)
	pol := testPolicy()
	pol.Cooldown = 0
	e.SetPolicy(pol)
	e.Scheduler().StartCooldown(id("x", "y"), 0, 0)
	assert.Zero(t, e.Scheduler().Cooldowns(), "zero window disables cooldowns")
}

func TestFailureCarriesUtility(t *testing.T) {
	r := newRig()
	e := NewEvaluator(testPolicy(), nil)
	_, err := e.build(r.env, Request{ID: id("combat", "b"), Plan: needsRockets})
	var f *task.Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, "combat/b", f.Utility)
	assert.ErrorIs(t, err, task.ErrConstruction)
}
