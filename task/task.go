// Package task is the execution model: Tasks are atomic steps with an
// explicit lifecycle, and a Schedule runs an ordered list of them as one
// committed behavior across as many ticks as it takes.
package task

import (
	"log/slog"
	"time"

	"github.com/nstehr/vimy/vimy-bot/actuation"
	"github.com/nstehr/vimy/vimy-bot/condition"
	"github.com/nstehr/vimy/vimy-bot/model"
)

// Kind names one member of the closed set of task implementations.
type Kind string

const (
	KindNone    Kind = ""
	KindMoveTo  Kind = "move_to"
	KindFollow  Kind = "follow"
	KindWait    Kind = "wait"
	KindAimAt   Kind = "aim_at"
	KindFire    Kind = "fire"
	KindHold    Kind = "hold"
	KindTap     Kind = "tap"
	KindEquip   Kind = "equip"
	KindCommand Kind = "command"
)

// Env is everything a task may look at or act through during one tick.
// World and Conditions are read-only.
type Env struct {
	Tick       int
	Now        time.Duration
	World      *model.Snapshot
	Conditions condition.View
	Terrain    *model.TerrainGrid
	Act        actuation.Actuator
	Log        *slog.Logger
}

// Self is shorthand for the bot's own state in the current frame.
func (e *Env) Self() model.Self {
	if e.World == nil {
		return model.Self{}
	}
	return e.World.Self
}

func (e *Env) logger() *slog.Logger {
	if e.Log == nil {
		return slog.Default()
	}
	return e.Log
}

// Task is one step of a schedule.
//
// Init runs once, before the first Tick, and returns Running or Failed.
// Tick does a bounded amount of work and returns Running, Complete or Failed.
// Reset is called when the owning schedule is aborted and must release any
// input the task is holding; it must be safe before Init and after a
// terminal status. Cause explains a Failed status.
type Task interface {
	Kind() Kind
	Init(env *Env) Status
	Tick(env *Env) Status
	Reset(env *Env)
	Cause() error
}

// base carries the bookkeeping every kind shares.
type base struct {
	started bool
	start   time.Duration
	cause   error
}

func (b *base) begin(env *Env) {
	b.started = true
	b.start = env.Now
}

func (b *base) elapsed(env *Env) time.Duration {
	return env.Now - b.start
}

func (b *base) fail(err error) Status {
	b.cause = err
	return Failed
}

func (b *base) Cause() error { return b.cause }
