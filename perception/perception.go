// Package perception folds each frame's snapshot into a bot's condition set.
package perception

import (
	"math"
	"time"

	"github.com/nstehr/vimy/vimy-bot/condition"
	"github.com/nstehr/vimy/vimy-bot/model"
)

// Thresholds are the cut-offs that turn numbers into facts.
type Thresholds struct {
	LowHealth      float64 `yaml:"low_health"`
	CriticalHealth float64 `yaml:"critical_health"`
	LowAmmo        int     `yaml:"low_ammo"`
	EnemyNear      float64 `yaml:"enemy_near"`
	AllyNear       float64 `yaml:"ally_near"`
	AllyHurt       float64 `yaml:"ally_hurt"`
	PickupRange    float64 `yaml:"pickup_range"`
	BuildMetal     int     `yaml:"build_metal"`
	BuildSlot      string  `yaml:"build_slot"`
	// UnderFireSeconds keeps under_fire set after the last hit.
	UnderFireSeconds float64 `yaml:"under_fire_seconds"`
}

// DefaultThresholds returns the baseline cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LowHealth:        0.4,
		CriticalHealth:   0.25,
		LowAmmo:          6,
		EnemyNear:        8,
		AllyNear:         10,
		AllyHurt:         0.6,
		PickupRange:      20,
		BuildMetal:       100,
		BuildSlot:        "toolbox",
		UnderFireSeconds: 1.5,
	}
}

// Validate clamps thresholds into usable ranges. Critical health never
// exceeds low health.
func (t *Thresholds) Validate() {
	t.LowHealth = clamp(t.LowHealth, 0.05, 0.95)
	t.CriticalHealth = clamp(t.CriticalHealth, 0.01, t.LowHealth)
	if t.LowAmmo < 0 {
		t.LowAmmo = 0
	}
	t.EnemyNear = clamp(t.EnemyNear, 1, 50)
	t.AllyNear = clamp(t.AllyNear, 1, 100)
	t.AllyHurt = clamp(t.AllyHurt, 0.05, 1)
	t.PickupRange = clamp(t.PickupRange, 1, 200)
	if t.BuildMetal < 0 {
		t.BuildMetal = 0
	}
	t.UnderFireSeconds = clamp(t.UnderFireSeconds, 0, 10)
}

func clamp(v, lo, hi float64) float64 { return math.Min(math.Max(v, lo), hi) }

// Perceiver derives facts for one bot. It remembers the last hit so
// under_fire does not flicker between frames.
type Perceiver struct {
	th      Thresholds
	hit     bool
	lastHit time.Duration
}

func New(th Thresholds) *Perceiver {
	return &Perceiver{th: th}
}

// SetThresholds swaps the cut-offs; the next Stage uses them.
func (p *Perceiver) SetThresholds(th Thresholds) { p.th = th }

// Stage resets the pending layer of set and writes this frame's facts into
// it. The caller commits.
func (p *Perceiver) Stage(set *condition.Set, w *model.Snapshot) {
	set.Reset()
	self := w.Self
	now := w.Now()

	if !self.Alive {
		p.hit = false
		set.Set(condition.Dead)
		p.gameFacts(set, w)
		return
	}

	frac := self.HealthFrac()
	if frac <= p.th.LowHealth {
		set.SetAux(condition.LowHealth, condition.Aux{Value: frac})
	}
	if frac <= p.th.CriticalHealth {
		set.SetAux(condition.CriticalHealth, condition.Aux{Value: frac})
	}

	if self.Damage > 0 {
		p.hit = true
		p.lastHit = now
	}
	if p.hit && now-p.lastHit <= time.Duration(p.th.UnderFireSeconds*float64(time.Second)) {
		set.SetAux(condition.UnderFire, condition.Aux{Value: float64(self.Damage)})
	}

	if en := w.NearestEnemy(); en != nil {
		d := self.Pos.Dist(en.Pos)
		aux := condition.Aux{Value: d, Pos: en.Pos, Ref: en.ID}
		set.SetAux(condition.SeeEnemy, aux)
		if d <= p.th.EnemyNear {
			set.SetAux(condition.EnemyNear, aux)
		}
	}

	if _, ok := self.Resources["ammo"]; ok {
		ammo := self.Resource("ammo")
		switch {
		case ammo == 0:
			set.Set(condition.NoAmmo)
			set.SetAux(condition.LowAmmo, condition.Aux{Value: 0})
		case ammo <= p.th.LowAmmo:
			set.SetAux(condition.LowAmmo, condition.Aux{Value: float64(ammo)})
		}
	}

	p.allies(set, w)
	p.objectives(set, w)
	p.sentry(set, w)

	if hp := w.Nearest(model.KindHealthPack, ""); hp != nil {
		if d := self.Pos.Dist(hp.Pos); d <= p.th.PickupRange {
			set.SetAux(condition.HealthPackNear, condition.Aux{Value: d, Pos: hp.Pos, Ref: hp.ID})
		}
	}

	p.gameFacts(set, w)
}

func (p *Perceiver) allies(set *condition.Set, w *model.Snapshot) {
	var hurt *model.Entity
	near := false
	allies := w.Allies()
	for i, a := range allies {
		if w.Self.Pos.Dist(a.Pos) <= p.th.AllyNear {
			near = true
		}
		if f := a.HealthFrac(); f < p.th.AllyHurt && (hurt == nil || f < hurt.HealthFrac()) {
			hurt = &allies[i]
		}
	}
	if near {
		set.Set(condition.AllyNear)
	}
	if hurt != nil {
		set.SetAux(condition.AllyHurt, condition.Aux{Value: hurt.HealthFrac(), Pos: hurt.Pos, Ref: hurt.ID})
	}
}

func (p *Perceiver) objectives(set *condition.Set, w *model.Snapshot) {
	for _, o := range w.Objectives {
		if o.Owner == w.Self.Team && o.Contested {
			set.SetAux(condition.ObjectiveContested, condition.Aux{Value: o.Progress, Pos: o.Pos, Ref: o.ID})
			return
		}
	}
}

// sentry sets can_build when the bot can afford a sentry and has none up.
func (p *Perceiver) sentry(set *condition.Set, w *model.Snapshot) {
	if p.th.BuildSlot == "" || !w.Self.HasSlot(p.th.BuildSlot) {
		return
	}
	for _, e := range w.Entities {
		if e.Kind == model.KindSentry && e.Owner == w.Self.ID && e.Health > 0 {
			return
		}
	}
	if metal := w.Self.Resource("metal"); metal >= p.th.BuildMetal {
		set.SetAux(condition.CanBuild, condition.Aux{Value: float64(metal)})
	}
}

// gameFacts copies facts the game asserted by name. Names nobody registered
// are ignored.
func (p *Perceiver) gameFacts(set *condition.Set, w *model.Snapshot) {
	for _, name := range w.Facts {
		if f, ok := condition.Lookup(name); ok {
			set.Set(f)
		}
	}
}
