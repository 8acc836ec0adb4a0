// Package condition holds a bot's perceived world facts.
//
// A Set has two layers: perception stages writes with Set/Clear/SetAux, and
// Commit publishes them atomically. Readers only ever see the last committed
// snapshot, so a decision pass never observes a half-applied update.
package condition

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/nstehr/vimy/vimy-bot/model"
)

// Fact identifies a single condition bit.
type Fact uint8

// Mask is a set of facts.
type Mask uint64

// MaxFacts is the number of distinct facts a Set can hold.
const MaxFacts = 64

// Built-in facts. Perception derives these from each snapshot; games may
// register more with Register.
const (
	SeeEnemy Fact = iota
	EnemyNear
	UnderFire
	LowHealth
	CriticalHealth
	LowAmmo
	NoAmmo
	AllyHurt
	AllyNear
	ObjectiveContested
	ObjectiveLost
	HeardNoise
	TargetLost
	Respawned
	SentryDown
	CanBuild
	HealthPackNear
	Dead

	numBuiltin
)

// Bit returns the mask containing only f.
func (f Fact) Bit() Mask { return 1 << Mask(f) }

func (f Fact) String() string {
	if name, ok := registry.name(f); ok {
		return name
	}
	return fmt.Sprintf("fact(%d)", uint8(f))
}

// Of builds a mask from facts.
func Of(facts ...Fact) Mask {
	var m Mask
	for _, f := range facts {
		m |= f.Bit()
	}
	return m
}

// Has reports whether f is in m.
func (m Mask) Has(f Fact) bool { return m&f.Bit() != 0 }

// Facts lists the facts in m in ascending order.
func (m Mask) Facts() []Fact {
	var out []Fact
	for m != 0 {
		i := bits.TrailingZeros64(uint64(m))
		out = append(out, Fact(i))
		m &^= 1 << uint(i)
	}
	return out
}

func (m Mask) String() string {
	facts := m.Facts()
	names := make([]string, len(facts))
	for i, f := range facts {
		names[i] = f.String()
	}
	return "{" + strings.Join(names, ",") + "}"
}

// Aux is the optional payload attached to a fact: a magnitude, a position
// and an entity reference (0 means none).
type Aux struct {
	Value float64
	Pos   model.Vec3
	Ref   int
}

type state struct {
	bits Mask
	aux  map[Fact]Aux
}

func (s state) clone() state {
	c := state{bits: s.bits, aux: make(map[Fact]Aux, len(s.aux))}
	for k, v := range s.aux {
		c.aux[k] = v
	}
	return c
}

// View is the read-only side of a Set. Providers and tasks get a View.
type View interface {
	Test(f Fact) bool
	TestAny(m Mask) bool
	TestAll(m Mask) bool
	Aux(f Fact) (Aux, bool)
	Bits() Mask
}

// Set is a per-agent condition store. It is not safe for concurrent use;
// perception writes between ticks and the decision core reads during one.
type Set struct {
	committed state
	pending   state
	changed   Mask
}

// New returns an empty set.
func New() *Set {
	return &Set{
		committed: state{aux: make(map[Fact]Aux)},
		pending:   state{aux: make(map[Fact]Aux)},
	}
}

// Set stages f as true.
func (s *Set) Set(f Fact) { s.pending.bits |= f.Bit() }

// Clear stages f as false and drops its payload.
func (s *Set) Clear(f Fact) {
	s.pending.bits &^= f.Bit()
	delete(s.pending.aux, f)
}

// SetAux stages f as true with a payload.
func (s *Set) SetAux(f Fact, aux Aux) {
	s.pending.bits |= f.Bit()
	s.pending.aux[f] = aux
}

// Assign stages f as v.
func (s *Set) Assign(f Fact, v bool) {
	if v {
		s.Set(f)
	} else {
		s.Clear(f)
	}
}

// Reset stages every fact as false.
func (s *Set) Reset() {
	s.pending = state{aux: make(map[Fact]Aux)}
}

// Commit publishes staged writes and returns the facts whose value flipped.
func (s *Set) Commit() Mask {
	s.changed = s.committed.bits ^ s.pending.bits
	s.committed = s.pending.clone()
	return s.changed
}

// Changed returns the facts that flipped at the last Commit.
func (s *Set) Changed() Mask { return s.changed }

// Test reports whether f is true in the committed snapshot.
func (s *Set) Test(f Fact) bool { return s.committed.bits.Has(f) }

// TestAny reports whether any fact in m is true.
func (s *Set) TestAny(m Mask) bool { return s.committed.bits&m != 0 }

// TestAll reports whether every fact in m is true.
func (s *Set) TestAll(m Mask) bool { return s.committed.bits&m == m }

// Aux returns the committed payload for f. ok is false when f is not set.
func (s *Set) Aux(f Fact) (Aux, bool) {
	if !s.Test(f) {
		return Aux{}, false
	}
	return s.committed.aux[f], true
}

// Bits returns the committed facts.
func (s *Set) Bits() Mask { return s.committed.bits }
