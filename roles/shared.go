package roles

import (
	"time"

	"github.com/nstehr/vimy/vimy-bot/condition"
	"github.com/nstehr/vimy/vimy-bot/decision"
	"github.com/nstehr/vimy/vimy-bot/ipc"
	"github.com/nstehr/vimy/vimy-bot/rules"
	"github.com/nstehr/vimy/vimy-bot/task"
)

// propose turns a resolved action into a candidate; unresolved actions
// propose nothing.
func propose(out []decision.Candidate, action string, score float64, pl rules.Plan, ok bool) []decision.Candidate {
	if !ok {
		return out
	}
	return append(out, decision.Candidate{Action: action, Score: score, Target: pl.Target, Plan: pl.Build})
}

// Survival keeps the bot alive: retreat when nearly dead, grab health when
// hurt, get out of fire nobody can be seen shooting.
type Survival struct{ t Tunables }

func (s *Survival) Name() string        { return "survival" }
func (s *Survival) Tier() decision.Tier { return decision.TierSurvival }

func (s *Survival) Watch() condition.Mask {
	return condition.Of(condition.LowHealth, condition.CriticalHealth, condition.UnderFire,
		condition.HealthPackNear, condition.EnemyNear)
}

func (s *Survival) Propose(ctx *decision.Context) []decision.Candidate {
	c := ctx.Conditions
	if !ctx.Self.Alive {
		return nil
	}
	env := rules.EnvFrom(ctx)
	var out []decision.Candidate

	if c.Test(condition.CriticalHealth) && c.Test(condition.SeeEnemy) {
		// Above 1: a committed engage must not hold the bot in place.
		score := min(1.05+(0.25-ctx.Self.HealthFrac())*2, 1.4)
		pl, ok := rules.ActionRetreat(env, rules.Args{"distance": s.t.EngageRange / 2})
		out = propose(out, "retreat", score, pl, ok)
	}
	if c.Test(condition.LowHealth) && c.Test(condition.HealthPackNear) {
		score := 0.6 + (1-ctx.Self.HealthFrac())*0.3
		pl, ok := rules.ActionGrabHealth(env, nil)
		out = propose(out, "grab_health", score, pl, ok)
	}
	if c.Test(condition.UnderFire) && !c.Test(condition.SeeEnemy) {
		pl, ok := rules.ActionTakeCover(env, nil)
		out = propose(out, "take_cover", 0.7, pl, ok)
	}
	return out
}

// Combat fights whatever is visible.
type Combat struct{ t Tunables }

func (c *Combat) Name() string        { return "combat" }
func (c *Combat) Tier() decision.Tier { return decision.TierAbility }

func (c *Combat) Watch() condition.Mask {
	return condition.Of(condition.SeeEnemy, condition.EnemyNear, condition.LowAmmo,
		condition.NoAmmo, condition.TargetLost)
}

func (c *Combat) Propose(ctx *decision.Context) []decision.Candidate {
	f := ctx.Conditions
	if !ctx.Self.Alive {
		return nil
	}
	env := rules.EnvFrom(ctx)
	var out []decision.Candidate

	if f.Test(condition.SeeEnemy) {
		dist := env.NearestEnemyDist()
		switch {
		case f.Test(condition.NoAmmo) && f.Test(condition.EnemyNear) && ctx.Self.HasSlot(SlotMelee):
			pl, ok := c.melee(env)
			out = propose(out, "melee", 0.7, pl, ok)
		case !f.Test(condition.NoAmmo) && dist <= c.t.EngageRange:
			weak := 1 - env.WeakestEnemyFrac()
			score := 0.5 + 0.3*weak
			if f.Test(condition.EnemyNear) {
				score += 0.1
			}
			pl, ok := rules.ActionEngage(env, rules.Args{"burst": c.t.BurstSeconds})
			out = propose(out, "engage", score, pl, ok)
		case dist > c.t.EngageRange:
			pl, ok := rules.ActionPursue(env, rules.Args{"range": c.t.EngageRange * 0.8})
			out = propose(out, "pursue", 0.4, pl, ok)
		}
	}
	switch {
	case f.Test(condition.NoAmmo) && !f.Test(condition.EnemyNear):
		pl, ok := rules.ActionGrabAmmo(env, nil)
		out = propose(out, "grab_ammo", 0.55, pl, ok)
	case f.Test(condition.LowAmmo) && !f.Test(condition.SeeEnemy):
		pl, ok := rules.ActionReload(env, nil)
		out = propose(out, "reload", 0.45, pl, ok)
	}
	return out
}

func (c *Combat) melee(env rules.Env) (rules.Plan, bool) {
	if env.World == nil {
		return rules.Plan{}, false
	}
	en := env.World.NearestEnemy()
	if en == nil {
		return rules.Plan{}, false
	}
	target := en.ID
	within := c.t.MeleeRange
	equip := env.Self.Weapon != SlotMelee
	return rules.Plan{Target: target, Build: func(p *task.Planner) {
		if equip {
			p.Equip(SlotMelee)
		}
		p.Follow(target, within, 0).Fire(target, ipc.ControlPrimary, time.Second, "")
	}}, true
}

// Objective plays the map: capture what is open, defend what is contested.
type Objective struct{ t Tunables }

func (o *Objective) Name() string        { return "objective" }
func (o *Objective) Tier() decision.Tier { return decision.TierObjective }

func (o *Objective) Watch() condition.Mask {
	return condition.Of(condition.ObjectiveContested, condition.ObjectiveLost)
}

func (o *Objective) Propose(ctx *decision.Context) []decision.Candidate {
	if !ctx.Self.Alive {
		return nil
	}
	env := rules.EnvFrom(ctx)
	var out []decision.Candidate
	if ctx.Conditions.Test(condition.ObjectiveContested) {
		pl, ok := rules.ActionDefend(env, nil)
		out = propose(out, "defend", 0.55, pl, ok)
	}
	if pl, ok := rules.ActionCapture(env, nil); ok {
		score := 0.35
		if ctx.Conditions.Test(condition.ObjectiveLost) {
			score = 0.5
		}
		out = propose(out, "capture", score, pl, true)
	}
	return out
}
