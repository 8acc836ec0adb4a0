package task

import (
	"fmt"
	"time"

	"github.com/nstehr/vimy/vimy-bot/model"
)

// moveTo walks toward a fixed point until within tolerance.
type moveTo struct {
	base
	dest      model.Vec3
	tolerance float64
	timeout   time.Duration
}

func (t *moveTo) Kind() Kind { return KindMoveTo }

func (t *moveTo) Init(env *Env) Status {
	t.begin(env)
	if !env.Terrain.Passable(t.dest) {
		return t.fail(errUnreachable)
	}
	return Running
}

func (t *moveTo) Tick(env *Env) Status {
	self := env.Self()
	if !self.Alive {
		return t.fail(errDead)
	}
	if self.Pos.Dist(t.dest) <= t.tolerance {
		env.Act.Stop()
		return Complete
	}
	if t.timeout > 0 && t.elapsed(env) > t.timeout {
		env.Act.Stop()
		return t.fail(fmt.Errorf("move to %v: %w", t.dest, errTimedOut))
	}
	env.Act.MoveToward(t.dest)
	return Running
}

func (t *moveTo) Reset(env *Env) {
	if t.started {
		env.Act.Stop()
	}
}

// follow closes on a moving entity until within range.
type follow struct {
	base
	target   int
	within   float64
	timeout  time.Duration
	grace    time.Duration
	lastSeen time.Duration
}

func (t *follow) Kind() Kind { return KindFollow }

func (t *follow) Init(env *Env) Status {
	t.begin(env)
	t.lastSeen = env.Now
	return Running
}

func (t *follow) Tick(env *Env) Status {
	if !env.Self().Alive {
		return t.fail(errDead)
	}
	e, ok := env.World.Entity(t.target)
	alive := ok && e.Health > 0
	if alive {
		t.lastSeen = env.Now
	} else if env.Now-t.lastSeen > t.grace {
		env.Act.Stop()
		return t.fail(fmt.Errorf("follow %d: %w", t.target, errTargetLost))
	}
	if t.timeout > 0 && t.elapsed(env) > t.timeout {
		env.Act.Stop()
		return t.fail(fmt.Errorf("follow %d: %w", t.target, errTimedOut))
	}
	if !alive {
		// Missing or dead: keep the last order running while inside the
		// grace window.
		return Running
	}
	if env.Self().Pos.Dist(e.Pos) <= t.within {
		env.Act.Stop()
		return Complete
	}
	env.Act.MoveToward(e.Pos)
	return Running
}

func (t *follow) Reset(env *Env) {
	if t.started {
		env.Act.Stop()
	}
}

// wait idles for a fixed duration.
type wait struct {
	base
	d time.Duration
}

func (t *wait) Kind() Kind { return KindWait }

func (t *wait) Init(env *Env) Status {
	t.begin(env)
	return Running
}

func (t *wait) Tick(env *Env) Status {
	if t.elapsed(env) >= t.d {
		return Complete
	}
	return Running
}

func (t *wait) Reset(*Env) {}

// aimAt turns toward an entity (target > 0) or a point, and completes once
// it has held the aim for settle.
type aimAt struct {
	base
	target int
	pos    model.Vec3
	settle time.Duration
}

func (t *aimAt) Kind() Kind { return KindAimAt }

func (t *aimAt) Init(env *Env) Status {
	t.begin(env)
	return Running
}

func (t *aimAt) Tick(env *Env) Status {
	if t.target > 0 {
		e, ok := env.World.Entity(t.target)
		if !ok || !e.Visible {
			return t.fail(fmt.Errorf("aim at %d: %w", t.target, errTargetLost))
		}
		env.Act.AimAtEntity(e.ID, e.Pos)
	} else {
		env.Act.AimAt(t.pos)
	}
	if t.elapsed(env) >= t.settle {
		return Complete
	}
	return Running
}

func (t *aimAt) Reset(*Env) {}

// fire holds a fire control on a target for a duration. It completes early
// if the target dies and fails once the target stays out of sight longer
// than grace.
type fire struct {
	base
	target   int
	control  string
	duration time.Duration
	grace    time.Duration
	ammo     string
	lastSeen time.Duration
}

func (t *fire) Kind() Kind { return KindFire }

func (t *fire) Init(env *Env) Status {
	t.begin(env)
	t.lastSeen = env.Now
	if t.ammo != "" && env.Self().Resource(t.ammo) <= 0 {
		return t.fail(fmt.Errorf("fire: out of %s", t.ammo))
	}
	return Running
}

func (t *fire) Tick(env *Env) Status {
	if !env.Self().Alive {
		env.Act.Release(t.control)
		return t.fail(errDead)
	}
	e, ok := env.World.Entity(t.target)
	if ok && e.Health <= 0 {
		env.Act.Release(t.control)
		return Complete
	}
	if !ok || !e.Visible {
		env.Act.Release(t.control)
		if env.Now-t.lastSeen > t.grace {
			return t.fail(fmt.Errorf("fire at %d: %w", t.target, errTargetLost))
		}
		return Running
	}
	t.lastSeen = env.Now
	if t.ammo != "" && env.Self().Resource(t.ammo) <= 0 {
		env.Act.Release(t.control)
		return t.fail(fmt.Errorf("fire: out of %s", t.ammo))
	}
	if t.elapsed(env) >= t.duration {
		env.Act.Release(t.control)
		return Complete
	}
	env.Act.AimAtEntity(e.ID, e.Pos)
	env.Act.Press(t.control)
	return Running
}

func (t *fire) Reset(env *Env) {
	env.Act.Release(t.control)
}

// hold keeps a control pressed for a duration (scope, charge, crouch).
type hold struct {
	base
	control  string
	duration time.Duration
}

func (t *hold) Kind() Kind { return KindHold }

func (t *hold) Init(env *Env) Status {
	t.begin(env)
	return Running
}

func (t *hold) Tick(env *Env) Status {
	if t.elapsed(env) >= t.duration {
		env.Act.Release(t.control)
		return Complete
	}
	env.Act.Press(t.control)
	return Running
}

func (t *hold) Reset(env *Env) {
	env.Act.Release(t.control)
}

// tap presses and releases a control once.
type tap struct {
	base
	control string
}

func (t *tap) Kind() Kind { return KindTap }

func (t *tap) Init(env *Env) Status {
	t.begin(env)
	return Running
}

func (t *tap) Tick(env *Env) Status {
	env.Act.Tap(t.control)
	return Complete
}

func (t *tap) Reset(*Env) {}

// equip switches to a slot and waits for the switch to show in perception.
type equip struct {
	base
	slot    string
	timeout time.Duration
	sent    bool
}

func (t *equip) Kind() Kind { return KindEquip }

func (t *equip) Init(env *Env) Status {
	t.begin(env)
	if !env.Self().HasSlot(t.slot) {
		return t.fail(fmt.Errorf("equip: no slot %q", t.slot))
	}
	return Running
}

func (t *equip) Tick(env *Env) Status {
	if env.Self().Weapon == t.slot {
		return Complete
	}
	if !t.sent {
		env.Act.Equip(t.slot)
		t.sent = true
		return Running
	}
	if t.elapsed(env) > t.timeout {
		return t.fail(fmt.Errorf("equip %q: %w", t.slot, errTimedOut))
	}
	return Running
}

func (t *equip) Reset(*Env) {}

// command issues a build or selection command and gives the game settle
// time to act on it.
type command struct {
	base
	name   string
	args   []string
	settle time.Duration
	sent   bool
}

func (t *command) Kind() Kind { return KindCommand }

func (t *command) Init(env *Env) Status {
	t.begin(env)
	return Running
}

func (t *command) Tick(env *Env) Status {
	if !t.sent {
		env.Act.Command(t.name, t.args...)
		t.sent = true
	}
	if t.elapsed(env) >= t.settle {
		return Complete
	}
	return Running
}

func (t *command) Reset(*Env) {}
