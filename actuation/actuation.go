// Package actuation turns task intents into plugin input requests.
//
// Tasks never talk to the game directly. They call an Actuator, which
// records what they want; the driver ships the recorded intents back to the
// plugin after the tick. Results come back as perception on a later frame.
package actuation

import (
	"slices"

	"github.com/nstehr/vimy/vimy-bot/ipc"
	"github.com/nstehr/vimy/vimy-bot/model"
)

// Actuator is what tasks use to express intent.
type Actuator interface {
	AimAt(pos model.Vec3)
	AimAtEntity(id int, pos model.Vec3)
	Press(control string)
	Release(control string)
	Tap(control string)
	MoveToward(pos model.Vec3)
	Stop()
	Equip(slot string)
	Command(name string, args ...string)
	// Holding reports whether control is currently held down.
	Holding(control string) bool
}

// Buffer is the Actuator used by agents: it queues intents for one tick and
// remembers which controls are held across ticks so a reset can release them.
type Buffer struct {
	intents []ipc.Intent
	held    map[string]bool
}

func NewBuffer() *Buffer {
	return &Buffer{held: make(map[string]bool)}
}

func (b *Buffer) emit(in ipc.Intent) { b.intents = append(b.intents, in) }

func (b *Buffer) AimAt(pos model.Vec3) {
	b.emit(ipc.Intent{Kind: ipc.IntentAim, Pos: &pos})
}

func (b *Buffer) AimAtEntity(id int, pos model.Vec3) {
	b.emit(ipc.Intent{Kind: ipc.IntentAim, Target: id, Pos: &pos})
}

// Press holds control down until Release. Pressing an already held control
// emits nothing.
func (b *Buffer) Press(control string) {
	if b.held[control] {
		return
	}
	b.held[control] = true
	b.emit(ipc.Intent{Kind: ipc.IntentPress, Control: control})
}

// Release lets go of control. Releasing a control that is not held emits
// nothing, so resets can release unconditionally.
func (b *Buffer) Release(control string) {
	if !b.held[control] {
		return
	}
	delete(b.held, control)
	b.emit(ipc.Intent{Kind: ipc.IntentRelease, Control: control})
}

func (b *Buffer) Tap(control string) {
	b.emit(ipc.Intent{Kind: ipc.IntentTap, Control: control})
}

func (b *Buffer) MoveToward(pos model.Vec3) {
	b.emit(ipc.Intent{Kind: ipc.IntentMove, Pos: &pos})
}

func (b *Buffer) Stop() {
	b.emit(ipc.Intent{Kind: ipc.IntentStop})
}

func (b *Buffer) Equip(slot string) {
	b.emit(ipc.Intent{Kind: ipc.IntentEquip, Slot: slot})
}

func (b *Buffer) Command(name string, args ...string) {
	b.emit(ipc.Intent{Kind: ipc.IntentCommand, Command: name, Args: slices.Clone(args)})
}

func (b *Buffer) Holding(control string) bool { return b.held[control] }

// Held returns the currently held controls, sorted.
func (b *Buffer) Held() []string {
	out := make([]string, 0, len(b.held))
	for c := range b.held {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// ReleaseAll lets go of every held control, in sorted order.
func (b *Buffer) ReleaseAll() {
	for _, c := range b.Held() {
		b.Release(c)
	}
}

// Drain returns the intents queued since the last Drain and empties the queue.
// Held-control state survives.
func (b *Buffer) Drain() []ipc.Intent {
	out := b.intents
	b.intents = nil
	return out
}

// Pending returns the queued intents without draining them.
func (b *Buffer) Pending() []ipc.Intent {
	return b.intents
}
