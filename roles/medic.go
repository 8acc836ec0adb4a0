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

// hurtBelow is the health fraction under which an ally wants healing.
const hurtBelow = 0.9

// Medic heals the most injured visible ally.
type Medic struct{ t Tunables }

func (m *Medic) Name() string        { return "medic" }
func (m *Medic) Tier() decision.Tier { return decision.TierAbility }

func (m *Medic) Watch() condition.Mask {
	return condition.Of(condition.AllyHurt, condition.AllyNear, condition.CriticalHealth)
}

func (m *Medic) Propose(ctx *decision.Context) []decision.Candidate {
	c := ctx.Conditions
	if !ctx.Self.Alive || !c.Test(condition.AllyHurt) || c.Test(condition.CriticalHealth) {
		return nil
	}
	patient, ok := mostHurtAlly(ctx.World)
	if !ok {
		return nil
	}
	pl, ok := healAction(m.t)(rules.EnvFrom(ctx), nil)
	return propose(nil, "heal_ally", 0.55+0.35*(1-patient.HealthFrac()), pl, ok)
}

func mostHurtAlly(w *model.Snapshot) (model.Entity, bool) {
	if w == nil {
		return model.Entity{}, false
	}
	var best model.Entity
	found := false
	for _, a := range w.Allies() {
		if !a.Visible || a.HealthFrac() >= hurtBelow {
			continue
		}
		if !found || a.HealthFrac() < best.HealthFrac() {
			best, found = a, true
		}
	}
	return best, found
}

// healAction walks into medigun range of the most hurt ally and keeps the
// beam on it. args: duration (seconds).
func healAction(t Tunables) rules.ActionFunc {
	return func(env rules.Env, args rules.Args) (rules.Plan, bool) {
		patient, ok := mostHurtAlly(env.World)
		if !ok {
			return rules.Plan{}, false
		}
		target := patient.ID
		within := t.HealRange
		beam := time.Duration(args.Get("duration", 3) * float64(time.Second))
		equip := env.Self.Weapon != SlotMedigun
		return rules.Plan{Target: target, Build: func(p *task.Planner) {
			if equip {
				p.Equip(SlotMedigun)
			}
			p.Follow(target, within, 0).Fire(target, ipc.ControlPrimary, beam, "")
		}}, true
	}
}
