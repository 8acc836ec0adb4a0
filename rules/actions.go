package rules

import (
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/nstehr/vimy/vimy-bot/decision"
	"github.com/nstehr/vimy/vimy-bot/ipc"
	"github.com/nstehr/vimy/vimy-bot/model"
	"github.com/nstehr/vimy/vimy-bot/task"
)

// SlotPrimary is the loadout slot every class fights with.
const SlotPrimary = "primary"

// Plan is what an action resolves to for one frame: the entity it targets
// (0 for none) and the task list to build.
type Plan struct {
	Target int
	Build  decision.PlanFunc
}

// ActionFunc resolves a named behavior against the frame. ok is false when
// the behavior has nothing to act on (no enemy, no pickup in sight).
type ActionFunc func(env Env, args Args) (plan Plan, ok bool)

// Library maps action names to their implementations.
type Library map[string]ActionFunc

// DefaultActions returns a fresh copy of the built-in actions.
func DefaultActions() Library {
	return Library{
		"engage":     ActionEngage,
		"pursue":     ActionPursue,
		"retreat":    ActionRetreat,
		"take_cover": ActionTakeCover,
		"grab_ammo":  ActionGrabAmmo,
		"grab_heal":  ActionGrabHealth,
		"capture":    ActionCapture,
		"defend":     ActionDefend,
		"reload":     ActionReload,
		"regroup":    ActionRegroup,
		"idle":       ActionIdle,
	}
}

// With returns a copy of the library extended with extra actions.
func (l Library) With(extra Library) Library {
	out := maps.Clone(l)
	maps.Copy(out, extra)
	return out
}

// Names lists the library's actions, sorted.
func (l Library) Names() []string {
	return slices.Sorted(maps.Keys(l))
}

func (l Library) lookup(name string) (ActionFunc, error) {
	fn, ok := l[name]
	if !ok {
		return nil, fmt.Errorf("unknown action %q", name)
	}
	return fn, nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// ActionEngage aims at the nearest enemy and fires a burst. args: burst
// (seconds), settle (seconds).
func ActionEngage(env Env, args Args) (Plan, bool) {
	en := env.world().NearestEnemy()
	if en == nil {
		return Plan{}, false
	}
	target := en.ID
	burst := seconds(args.Get("burst", 1.5))
	settle := seconds(args.Get("settle", 0.15))
	swap := env.Self.Weapon != SlotPrimary && env.Self.HasSlot(SlotPrimary)
	return Plan{Target: target, Build: func(p *task.Planner) {
		if swap {
			p.Equip(SlotPrimary)
		}
		p.AimAtEntity(target, settle).Fire(target, ipc.ControlPrimary, burst, "ammo")
	}}, true
}

// ActionPursue closes on the nearest enemy. args: range, timeout.
func ActionPursue(env Env, args Args) (Plan, bool) {
	en := env.world().NearestEnemy()
	if en == nil {
		return Plan{}, false
	}
	target := en.ID
	within := args.Get("range", 8)
	timeout := seconds(args.Get("timeout", 6))
	return Plan{Target: target, Build: func(p *task.Planner) {
		p.Follow(target, within, timeout)
	}}, true
}

// ActionRetreat backs away from the nearest enemy. args: distance.
func ActionRetreat(env Env, args Args) (Plan, bool) {
	en := env.world().NearestEnemy()
	if en == nil {
		return Plan{}, false
	}
	dest, ok := retreatPoint(env.Terrain, env.Self.Pos, en.Pos, args.Get("distance", 15))
	if !ok {
		slog.Debug("no passable retreat point", "bot", env.Self.ID, "from", en.ID)
		return Plan{}, false
	}
	return Plan{Target: en.ID, Build: func(p *task.Planner) {
		p.MoveTo(dest, 1.5, 0)
	}}, true
}

// retreatPoint picks a passable point dist away from threat, trying the
// direct line first and then fanning out to either side.
func retreatPoint(g *model.TerrainGrid, self, threat model.Vec3, dist float64) (model.Vec3, bool) {
	away := self.Sub(threat)
	away.Z = 0
	if away.Len() == 0 {
		away = model.Vec3{X: 1}
	}
	away = away.Normalize()
	for _, deg := range []float64{0, 45, -45, 90, -90} {
		rad := deg * math.Pi / 180
		dir := model.Vec3{
			X: away.X*math.Cos(rad) - away.Y*math.Sin(rad),
			Y: away.X*math.Sin(rad) + away.Y*math.Cos(rad),
		}
		p := self.Add(dir.Scale(dist))
		if g.Passable(p) {
			return p, true
		}
	}
	return model.Vec3{}, false
}

func moveToNearest(env Env, kind, team string, tolerance float64) (Plan, bool) {
	e := env.world().Nearest(kind, team)
	if e == nil {
		return Plan{}, false
	}
	dest := e.Pos
	return Plan{Target: e.ID, Build: func(p *task.Planner) {
		p.MoveTo(dest, tolerance, 0)
	}}, true
}

// ActionTakeCover moves to the nearest cover point, then crouches. args:
// crouch (seconds).
func ActionTakeCover(env Env, args Args) (Plan, bool) {
	pl, ok := moveToNearest(env, model.KindCover, "", 1)
	if !ok {
		return pl, false
	}
	crouch := seconds(args.Get("crouch", 1))
	move := pl.Build
	pl.Build = func(p *task.Planner) {
		move(p)
		p.Hold(ipc.ControlCrouch, crouch)
	}
	return pl, true
}

func ActionGrabHealth(env Env, _ Args) (Plan, bool) {
	return moveToNearest(env, model.KindHealthPack, "", 1)
}

func ActionGrabAmmo(env Env, _ Args) (Plan, bool) {
	return moveToNearest(env, model.KindAmmoPack, "", 1)
}

// ActionCapture heads for the nearest objective not held by our team and
// stands on it. args: radius, hold (seconds).
func ActionCapture(env Env, args Args) (Plan, bool) {
	var best *model.Objective
	bestDist := math.MaxFloat64
	for i, o := range env.world().Objectives {
		if o.Owner == env.Self.Team || o.Locked {
			continue
		}
		if d := env.Self.Pos.Dist(o.Pos); d < bestDist {
			bestDist = d
			best = &env.world().Objectives[i]
		}
	}
	if best == nil {
		return Plan{}, false
	}
	return holdPoint(best.Pos, args), true
}

// ActionDefend returns to the nearest contested objective our team holds.
func ActionDefend(env Env, args Args) (Plan, bool) {
	var best *model.Objective
	bestDist := math.MaxFloat64
	for i, o := range env.world().Objectives {
		if o.Owner != env.Self.Team || !o.Contested {
			continue
		}
		if d := env.Self.Pos.Dist(o.Pos); d < bestDist {
			bestDist = d
			best = &env.world().Objectives[i]
		}
	}
	if best == nil {
		return Plan{}, false
	}
	return holdPoint(best.Pos, args), true
}

func holdPoint(pos model.Vec3, args Args) Plan {
	radius := args.Get("radius", 3)
	hold := seconds(args.Get("hold", 4))
	return Plan{Build: func(p *task.Planner) {
		p.MoveTo(pos, radius, 0).Wait(hold)
	}}
}

// ActionReload taps reload and waits out the animation. args: time (seconds).
func ActionReload(env Env, args Args) (Plan, bool) {
	d := seconds(args.Get("time", 1.5))
	return Plan{Build: func(p *task.Planner) {
		p.Tap(ipc.ControlReload).Wait(d)
	}}, true
}

// ActionRegroup follows the nearest living ally.
func ActionRegroup(env Env, args Args) (Plan, bool) {
	allies := env.world().Allies()
	if len(allies) == 0 {
		return Plan{}, false
	}
	best := allies[0]
	for _, a := range allies[1:] {
		if env.Self.Pos.Dist(a.Pos) < env.Self.Pos.Dist(best.Pos) {
			best = a
		}
	}
	target := best.ID
	within := args.Get("range", 5)
	return Plan{Target: target, Build: func(p *task.Planner) {
		p.Follow(target, within, seconds(args.Get("timeout", 8)))
	}}, true
}

// ActionIdle waits. args: time (seconds).
func ActionIdle(_ Env, args Args) (Plan, bool) {
	d := seconds(args.Get("time", 2))
	return Plan{Build: func(p *task.Planner) { p.Wait(d) }}, true
}
