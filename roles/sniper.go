package roles

import (
	"time"

	"github.com/nstehr/vimy/vimy-bot/condition"
	"github.com/nstehr/vimy/vimy-bot/decision"
	"github.com/nstehr/vimy/vimy-bot/ipc"
	"github.com/nstehr/vimy/vimy-bot/rules"
	"github.com/nstehr/vimy/vimy-bot/task"
)

// Sniper takes charged, scoped shots at distant targets.
type Sniper struct{ t Tunables }

func (s *Sniper) Name() string        { return "sniper" }
func (s *Sniper) Tier() decision.Tier { return decision.TierAbility }

func (s *Sniper) Watch() condition.Mask {
	return condition.Of(condition.SeeEnemy, condition.EnemyNear, condition.NoAmmo)
}

func (s *Sniper) Propose(ctx *decision.Context) []decision.Candidate {
	c := ctx.Conditions
	if !ctx.Self.Alive || !c.Test(condition.SeeEnemy) || c.Test(condition.EnemyNear) || c.Test(condition.NoAmmo) {
		return nil
	}
	env := rules.EnvFrom(ctx)
	if env.NearestEnemyDist() < s.t.SniperRange {
		return nil
	}
	pl, ok := scopedShotAction(s.t)(env, nil)
	return propose(nil, "scoped_shot", 0.7+0.2*(1-env.WeakestEnemyFrac()), pl, ok)
}

// scopedShotAction aims, charges with the scope held, then fires once.
// args: charge (seconds).
func scopedShotAction(t Tunables) rules.ActionFunc {
	return func(env rules.Env, args rules.Args) (rules.Plan, bool) {
		if env.World == nil {
			return rules.Plan{}, false
		}
		en := env.World.NearestEnemy()
		if en == nil {
			return rules.Plan{}, false
		}
		target := en.ID
		charge := time.Duration(args.Get("charge", t.ChargeSeconds) * float64(time.Second))
		equip := env.Self.Weapon != SlotRifle
		return rules.Plan{Target: target, Build: func(p *task.Planner) {
			if equip {
				p.Equip(SlotRifle)
			}
			p.AimAtEntity(target, 300*time.Millisecond).
				Hold(ipc.ControlSecondary, charge).
				Fire(target, ipc.ControlPrimary, 150*time.Millisecond, "ammo")
		}}, true
	}
}
