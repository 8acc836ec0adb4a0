// Package roles maps a bot class to the behavior providers it runs. The
// class is resolved once when an agent is set up; per-tick code never
// branches on it.
package roles

import (
	"fmt"
	"maps"
	"slices"

	"github.com/nstehr/vimy/vimy-bot/decision"
	"github.com/nstehr/vimy/vimy-bot/rules"
)

// Loadout slot names.
const (
	SlotPrimary   = rules.SlotPrimary
	SlotSecondary = "secondary"
	SlotMelee     = "melee"
	SlotMedigun   = "medigun"
	SlotToolbox   = "toolbox"
	SlotWrench    = "wrench"
	SlotRifle     = "rifle"
)

// Tunables are the numbers behavior scoring depends on.
type Tunables struct {
	EngageRange   float64 `yaml:"engage_range"`
	MeleeRange    float64 `yaml:"melee_range"`
	SniperRange   float64 `yaml:"sniper_range"`
	HealRange     float64 `yaml:"heal_range"`
	BurstSeconds  float64 `yaml:"burst_seconds"`
	ChargeSeconds float64 `yaml:"charge_seconds"`
	SentryMetal   int     `yaml:"sentry_metal"`
	StrafeStep    float64 `yaml:"strafe_step"`
	FillerScore   float64 `yaml:"filler_score"`
}

// DefaultTunables returns the baseline numbers.
func DefaultTunables() Tunables {
	return Tunables{
		EngageRange:   30,
		MeleeRange:    3,
		SniperRange:   25,
		HealRange:     6,
		BurstSeconds:  1.5,
		ChargeSeconds: 1.2,
		SentryMetal:   100,
		StrafeStep:    4,
		FillerScore:   decision.DefaultFillerScore,
	}
}

// Validate clamps tunables into usable ranges.
func (t *Tunables) Validate() {
	t.EngageRange = clamp(t.EngageRange, 5, 100)
	t.MeleeRange = clamp(t.MeleeRange, 1, 10)
	t.SniperRange = clamp(t.SniperRange, 10, 200)
	t.HealRange = clamp(t.HealRange, 2, 20)
	t.BurstSeconds = clamp(t.BurstSeconds, 0.2, 5)
	t.ChargeSeconds = clamp(t.ChargeSeconds, 0.2, 5)
	if t.SentryMetal < 0 {
		t.SentryMetal = 0
	}
	t.StrafeStep = clamp(t.StrafeStep, 1, 15)
	t.FillerScore = clamp(t.FillerScore, 0, 0.1)
}

func clamp(v, lo, hi float64) float64 { return min(max(v, lo), hi) }

// Role is one class's entry in the capability table.
type Role struct {
	Class string
	// Slots is the loadout the class spawns with.
	Slots []string
	// providers builds the class-specific providers.
	providers func(t Tunables) []decision.Provider
	// actions are class behaviors exposed to config rules by name.
	actions func(t Tunables) rules.Library
}

var table = map[string]Role{
	"assault": {
		Class:     "assault",
		Slots:     []string{SlotPrimary, SlotSecondary, SlotMelee},
		providers: func(t Tunables) []decision.Provider { return []decision.Provider{&Assault{t: t}} },
		actions:   func(t Tunables) rules.Library { return rules.Library{"strafe": strafeAction(t)} },
	},
	"medic": {
		Class:     "medic",
		Slots:     []string{SlotPrimary, SlotMedigun, SlotMelee},
		providers: func(t Tunables) []decision.Provider { return []decision.Provider{&Medic{t: t}} },
		actions:   func(t Tunables) rules.Library { return rules.Library{"heal_ally": healAction(t)} },
	},
	"engineer": {
		Class:     "engineer",
		Slots:     []string{SlotPrimary, SlotToolbox, SlotWrench},
		providers: func(t Tunables) []decision.Provider { return []decision.Provider{&Engineer{t: t}} },
		actions: func(t Tunables) rules.Library {
			return rules.Library{"build_sentry": buildSentryAction(t), "repair_sentry": repairSentryAction(t)}
		},
	},
	"sniper": {
		Class:     "sniper",
		Slots:     []string{SlotPrimary, SlotRifle, SlotMelee},
		providers: func(t Tunables) []decision.Provider { return []decision.Provider{&Sniper{t: t}} },
		actions:   func(t Tunables) rules.Library { return rules.Library{"scoped_shot": scopedShotAction(t)} },
	},
}

// Lookup resolves a class name.
func Lookup(class string) (Role, error) {
	r, ok := table[class]
	if !ok {
		return Role{}, fmt.Errorf("unknown class %q (known: %v)", class, Classes())
	}
	return r, nil
}

// Classes lists the known classes, sorted.
func Classes() []string {
	return slices.Sorted(maps.Keys(table))
}

// Providers returns the shared providers followed by the class's own, in
// registration order. The filler comes last.
func (r Role) Providers(t Tunables) []decision.Provider {
	out := []decision.Provider{&Survival{t: t}, &Combat{t: t}, &Objective{t: t}}
	out = append(out, r.providers(t)...)
	return append(out, decision.NewFiller(t.FillerScore))
}

// Actions is the action library for config rules: the built-ins plus the
// class's own behaviors.
func (r Role) Actions(t Tunables) rules.Library {
	return rules.DefaultActions().With(r.actions(t))
}
