package rules

import (
	"github.com/nstehr/vimy/vimy-bot/condition"
	"github.com/nstehr/vimy/vimy-bot/model"
)

// Env wraps one bot's frame and exposes helper methods callable from expr
// expressions. Distances return -1 when there is nothing to measure.
type Env struct {
	Tick    int
	Time    float64 // simulation seconds
	Self    model.Self
	Running string // utility currently running, "none" if idle

	World   *model.Snapshot
	Facts   condition.View
	Terrain *model.TerrainGrid
}

func (e Env) world() *model.Snapshot {
	if e.World == nil {
		return &model.Snapshot{}
	}
	return e.World
}

// Has reports whether the named fact is currently true. Unknown names are false.
func (e Env) Has(fact string) bool {
	if e.Facts == nil {
		return false
	}
	f, ok := condition.Lookup(fact)
	return ok && e.Facts.Test(f)
}

func (e Env) Alive() bool           { return e.Self.Alive }
func (e Env) HealthFrac() float64   { return e.Self.HealthFrac() }
func (e Env) Resource(r string) int { return e.Self.Resource(r) }
func (e Env) HasSlot(s string) bool { return e.Self.HasSlot(s) }
func (e Env) Class() string         { return e.Self.Class }

func (e Env) EnemiesVisible() int { return len(e.world().Enemies()) }
func (e Env) AlliesVisible() int  { return len(e.world().Allies()) }

func (e Env) NearestEnemyDist() float64 {
	en := e.world().NearestEnemy()
	if en == nil {
		return -1
	}
	return e.Self.Pos.Dist(en.Pos)
}

// WeakestEnemyFrac is the lowest health fraction among visible enemies.
func (e Env) WeakestEnemyFrac() float64 {
	enemies := e.world().Enemies()
	if len(enemies) == 0 {
		return -1
	}
	lo := 1.0
	for _, en := range enemies {
		lo = min(lo, en.HealthFrac())
	}
	return lo
}

// HurtAllies counts visible living allies below the given health fraction.
func (e Env) HurtAllies(below float64) int {
	n := 0
	for _, a := range e.world().Allies() {
		if a.Kind == model.KindPlayer && a.HealthFrac() < below {
			n++
		}
	}
	return n
}

// Threat sums the threat rating of visible enemies within radius.
func (e Env) Threat(radius float64) float64 {
	t := 0.0
	for _, en := range e.world().Enemies() {
		if e.Self.Pos.Dist(en.Pos) <= radius {
			t += en.Threat
		}
	}
	return t
}

// CountKind counts entities of a kind, any team.
func (e Env) CountKind(kind string) int { return countType(e.world().Entities, kind) }

func (e Env) Sees(kind string) bool { return containsType(e.world().Entities, kind) }

// OwnSentries counts sentries this bot owns.
func (e Env) OwnSentries() int {
	n := 0
	for _, en := range e.world().Entities {
		if en.Kind == model.KindSentry && en.Owner == e.Self.ID && en.Health > 0 {
			n++
		}
	}
	return n
}

func (e Env) NearestDist(kind string) float64 {
	en := e.world().Nearest(kind, "")
	if en == nil {
		return -1
	}
	return e.Self.Pos.Dist(en.Pos)
}

func (e Env) ObjectivesHeld() int {
	n := 0
	for _, o := range e.world().Objectives {
		if o.Owner == e.Self.Team {
			n++
		}
	}
	return n
}

func (e Env) ObjectivesOpen() int {
	n := 0
	for _, o := range e.world().Objectives {
		if o.Owner != e.Self.Team && !o.Locked {
			n++
		}
	}
	return n
}

func (e Env) ObjectivesContested() int {
	n := 0
	for _, o := range e.world().Objectives {
		if o.Contested {
			n++
		}
	}
	return n
}

func (e Env) OnHazard() bool {
	return e.Terrain != nil && e.Terrain.AtPos(e.Self.Pos) == model.Hazard
}

func (e Env) Clamp(v, lo, hi float64) float64 { return min(max(v, lo), hi) }
