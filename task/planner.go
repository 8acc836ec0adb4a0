package task

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/nstehr/vimy/vimy-bot/model"
)

// Default timings used when a plan passes zero.
const (
	DefaultMoveTimeout  = 10 * time.Second
	DefaultLostGrace    = 1500 * time.Millisecond
	DefaultEquipTimeout = time.Second
)

var errEmptyPlan = errors.New("empty plan")

// Planner assembles a task list and checks every step's preconditions
// against the current frame. The first failed check poisons the planner;
// later calls are ignored and Build returns a construction failure, so a
// schedule is either fully resource-backed or never exists.
type Planner struct {
	env   *Env
	tasks []Task
	err   error
}

func NewPlanner(env *Env) *Planner {
	return &Planner{env: env}
}

// Err returns the first precondition failure, if any.
func (p *Planner) Err() error { return p.err }

func (p *Planner) failf(format string, args ...any) *Planner {
	if p.err == nil {
		p.err = fmt.Errorf(format, args...)
	}
	return p
}

func (p *Planner) add(t Task) *Planner {
	if p.err == nil {
		p.tasks = append(p.tasks, t)
	}
	return p
}

func (p *Planner) world() *model.Snapshot {
	if p.env.World == nil {
		return &model.Snapshot{}
	}
	return p.env.World
}

// Require checks that the bot holds at least min of a resource.
func (p *Planner) Require(resource string, min int) *Planner {
	if have := p.env.Self().Resource(resource); have < min {
		return p.failf("need %d %s, have %d", min, resource, have)
	}
	return p
}

// RequireSlot checks that the bot can equip slot.
func (p *Planner) RequireSlot(slot string) *Planner {
	if !p.env.Self().HasSlot(slot) {
		return p.failf("no %q slot", slot)
	}
	return p
}

// MoveTo walks to dest. The destination must be passable terrain.
func (p *Planner) MoveTo(dest model.Vec3, tolerance float64, timeout time.Duration) *Planner {
	if !p.env.Terrain.Passable(dest) {
		return p.failf("move to %v: %w", dest, errUnreachable)
	}
	if timeout <= 0 {
		timeout = DefaultMoveTimeout
	}
	return p.add(&moveTo{dest: dest, tolerance: tolerance, timeout: timeout})
}

// Follow closes to within range of a perceived entity.
func (p *Planner) Follow(target int, within float64, timeout time.Duration) *Planner {
	e, ok := p.world().Entity(target)
	if !ok || e.Health <= 0 {
		return p.failf("follow %d: %w", target, errTargetLost)
	}
	if !p.env.Terrain.Passable(e.Pos) {
		return p.failf("follow %d: %w", target, errUnreachable)
	}
	if timeout <= 0 {
		timeout = DefaultMoveTimeout
	}
	return p.add(&follow{target: target, within: within, timeout: timeout, grace: DefaultLostGrace})
}

// Wait idles for d.
func (p *Planner) Wait(d time.Duration) *Planner {
	return p.add(&wait{d: d})
}

// AimAtEntity turns toward a visible entity and holds for settle.
func (p *Planner) AimAtEntity(target int, settle time.Duration) *Planner {
	e, ok := p.world().Entity(target)
	if !ok || !e.Visible {
		return p.failf("aim at %d: %w", target, errTargetLost)
	}
	return p.add(&aimAt{target: target, settle: settle})
}

// AimAt turns toward a fixed point and holds for settle.
func (p *Planner) AimAt(pos model.Vec3, settle time.Duration) *Planner {
	return p.add(&aimAt{pos: pos, settle: settle})
}

// Fire holds control on a visible target for duration. When ammo is
// non-empty the bot must have some of that resource now.
func (p *Planner) Fire(target int, control string, duration time.Duration, ammo string) *Planner {
	e, ok := p.world().Entity(target)
	if !ok || !e.Visible || e.Health <= 0 {
		return p.failf("fire at %d: %w", target, errTargetLost)
	}
	if ammo != "" {
		p.Require(ammo, 1)
	}
	return p.add(&fire{target: target, control: control, duration: duration, grace: DefaultLostGrace, ammo: ammo})
}

// Hold keeps control pressed for duration.
func (p *Planner) Hold(control string, duration time.Duration) *Planner {
	return p.add(&hold{control: control, duration: duration})
}

// Tap presses control once.
func (p *Planner) Tap(control string) *Planner {
	return p.add(&tap{control: control})
}

// Equip switches to slot, which the bot must have.
func (p *Planner) Equip(slot string) *Planner {
	p.RequireSlot(slot)
	return p.add(&equip{slot: slot, timeout: DefaultEquipTimeout})
}

// Command issues a named game command and waits settle for it to land.
func (p *Planner) Command(name string, settle time.Duration, args ...string) *Planner {
	return p.add(&command{name: name, args: slices.Clone(args), settle: settle})
}

// Build returns the schedule, or a *Failure wrapping ErrConstruction.
func (p *Planner) Build(utility string, score float64) (*Schedule, error) {
	if p.err != nil {
		return nil, &Failure{Kind: ErrConstruction, Utility: utility, Err: p.err}
	}
	if len(p.tasks) == 0 {
		return nil, &Failure{Kind: ErrConstruction, Utility: utility, Err: errEmptyPlan}
	}
	return newSchedule(utility, score, p.tasks), nil
}
