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

// Assault dodges sideways when trading fire.
type Assault struct{ t Tunables }

func (a *Assault) Name() string        { return "assault" }
func (a *Assault) Tier() decision.Tier { return decision.TierAbility }

func (a *Assault) Watch() condition.Mask {
	return condition.Of(condition.UnderFire, condition.SeeEnemy, condition.LowHealth)
}

func (a *Assault) Propose(ctx *decision.Context) []decision.Candidate {
	c := ctx.Conditions
	if !ctx.Self.Alive || !c.Test(condition.UnderFire) || !c.Test(condition.SeeEnemy) || c.Test(condition.LowHealth) {
		return nil
	}
	pl, ok := strafeAction(a.t)(rules.EnvFrom(ctx), nil)
	return propose(nil, "strafe", 0.75, pl, ok)
}

// strafeAction steps sideways relative to the nearest enemy, hops, and
// re-acquires. The left side is tried first.
func strafeAction(t Tunables) rules.ActionFunc {
	return func(env rules.Env, args rules.Args) (rules.Plan, bool) {
		if env.World == nil {
			return rules.Plan{}, false
		}
		en := env.World.NearestEnemy()
		if en == nil {
			return rules.Plan{}, false
		}
		toward := en.Pos.Sub(env.Self.Pos)
		toward.Z = 0
		if toward.Len() == 0 {
			return rules.Plan{}, false
		}
		toward = toward.Normalize()
		step := args.Get("step", t.StrafeStep)
		side := model.Vec3{X: -toward.Y, Y: toward.X}
		var dest model.Vec3
		found := false
		for _, s := range []float64{1, -1} {
			p := env.Self.Pos.Add(side.Scale(s * step))
			if env.Terrain.Passable(p) {
				dest, found = p, true
				break
			}
		}
		if !found {
			return rules.Plan{}, false
		}
		target := en.ID
		return rules.Plan{Target: target, Build: func(p *task.Planner) {
			p.MoveTo(dest, 0.75, 1500*time.Millisecond).
				Tap(ipc.ControlJump).
				AimAtEntity(target, 100*time.Millisecond)
		}}, true
	}
}
