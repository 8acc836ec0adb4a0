package roles

import (
	"time"

	"github.com/nstehr/vimy/vimy-bot/condition"
	"github.com/nstehr/vimy/vimy-bot/decision"
	"github.com/nstehr/vimy/vimy-bot/ipc"
	"github.com/nstehr/vimy/vimy-bot/model"
	"github.com/nstehr/vimy/vimy-bot/rules"
	"github.com/nstehr/vimy/vimy-bot/task"
)

const (
	// sentrySearch is how far an engineer will walk to a chokepoint to build.
	sentrySearch = 40.0
	repairBelow  = 0.7
	metal        = "metal"
)

// Engineer builds a sentry when it has none and keeps it repaired.
type Engineer struct{ t Tunables }

func (e *Engineer) Name() string        { return "engineer" }
func (e *Engineer) Tier() decision.Tier { return decision.TierAbility }

func (e *Engineer) Watch() condition.Mask {
	return condition.Of(condition.CanBuild, condition.SentryDown, condition.SeeEnemy)
}

func (e *Engineer) Propose(ctx *decision.Context) []decision.Candidate {
	c := ctx.Conditions
	if !ctx.Self.Alive {
		return nil
	}
	env := rules.EnvFrom(ctx)
	var out []decision.Candidate
	if c.Test(condition.CanBuild) && !c.Test(condition.SeeEnemy) && env.OwnSentries() == 0 {
		score := 0.6
		if c.Test(condition.SentryDown) {
			score = 0.7
		}
		pl, ok := buildSentryAction(e.t)(env, nil)
		out = propose(out, "build_sentry", score, pl, ok)
	}
	if s, ok := damagedSentry(ctx.World, ctx.Self.ID); ok {
		pl, ok := repairSentryAction(e.t)(env, nil)
		out = propose(out, "repair_sentry", 0.5+0.3*(1-s.HealthFrac()), pl, ok)
	}
	return out
}

// sentrySpot prefers the nearest chokepoint in reach, else a few steps
// ahead of the bot.
func sentrySpot(env rules.Env) model.Vec3 {
	best, bestDist := model.Vec3{}, sentrySearch
	found := false
	if env.Terrain != nil {
		for _, p := range env.Terrain.Chokepoints() {
			if d := env.Self.Pos.Dist(p); d <= bestDist {
				best, bestDist, found = p, d, true
			}
		}
	}
	if found {
		return best
	}
	ahead := env.Self.Facing
	ahead.Z = 0
	if ahead.Len() == 0 {
		return env.Self.Pos
	}
	return env.Self.Pos.Add(ahead.Normalize().Scale(3))
}

// buildSentryAction walks to the build spot and places a sentry. The
// planner's metal check fails construction when the engineer is short.
func buildSentryAction(t Tunables) rules.ActionFunc {
	return func(env rules.Env, args rules.Args) (rules.Plan, bool) {
		spot := sentrySpot(env)
		cost := int(args.Get("metal", float64(t.SentryMetal)))
		return rules.Plan{Build: func(p *task.Planner) {
			p.Require(metal, cost).
				MoveTo(spot, 1.5, 0).
				Equip(SlotToolbox).
				Command("build", 1500*time.Millisecond, "sentry")
		}}, true
	}
}

func damagedSentry(w *model.Snapshot, owner int) (model.Entity, bool) {
	if w == nil {
		return model.Entity{}, false
	}
	for _, en := range w.Entities {
		if en.Kind == model.KindSentry && en.Owner == owner && en.Health > 0 && en.HealthFrac() < repairBelow {
			return en, true
		}
	}
	return model.Entity{}, false
}

// repairSentryAction walks to the bot's damaged sentry and works on it with
// the wrench. Repairs spend metal.
func repairSentryAction(t Tunables) rules.ActionFunc {
	return func(env rules.Env, args rules.Args) (rules.Plan, bool) {
		s, ok := damagedSentry(env.World, env.Self.ID)
		if !ok {
			return rules.Plan{}, false
		}
		target := s.ID
		work := time.Duration(args.Get("duration", 2) * float64(time.Second))
		return rules.Plan{Target: target, Build: func(p *task.Planner) {
			p.Follow(target, 2, 0).
				Equip(SlotWrench).
				Fire(target, ipc.ControlPrimary, work, metal)
		}}, true
	}
}
