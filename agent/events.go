package agent

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/nstehr/vimy/vimy-bot/condition"
	"github.com/nstehr/vimy/vimy-bot/model"
)

// EventKind identifies a change between consecutive frames that should
// force a decision pass.
type EventKind string

const (
	EventDamageTaken     EventKind = "damage_taken"
	EventTargetLost      EventKind = "target_lost"
	EventAllyDown        EventKind = "ally_down"
	EventObjectiveLost   EventKind = "objective_lost"
	EventSentryDestroyed EventKind = "sentry_destroyed"
	EventDeath           EventKind = "death"
	EventRespawn         EventKind = "respawn"
)

// eventFacts are the one-frame facts raised alongside an event.
var eventFacts = map[EventKind]condition.Fact{
	EventTargetLost:      condition.TargetLost,
	EventObjectiveLost:   condition.ObjectiveLost,
	EventSentryDestroyed: condition.SentryDown,
	EventRespawn:         condition.Respawned,
}

// Event is a significant change detected by diffing consecutive frames.
type Event struct {
	Kind   EventKind
	Tick   int
	Ref    int // entity or objective id, 0 for none
	Detail string
}

// frameSnapshot captures the diffable fields of one frame.
type frameSnapshot struct {
	alive      bool
	enemies    map[int]bool   // visible living enemies
	allies     map[int]bool   // living allies
	objectives map[int]string // id → owner
	sentries   map[int]bool   // own living sentries
}

// heavyHitFrac is the share of max health that counts as a heavy hit.
const heavyHitFrac = 0.2

func takeSnapshot(w *model.Snapshot) frameSnapshot {
	snap := frameSnapshot{
		alive:      w.Self.Alive,
		enemies:    make(map[int]bool),
		allies:     make(map[int]bool),
		objectives: make(map[int]string, len(w.Objectives)),
		sentries:   make(map[int]bool),
	}
	for _, e := range w.Enemies() {
		snap.enemies[e.ID] = true
	}
	for _, e := range w.Entities {
		if e.Health <= 0 {
			continue
		}
		switch {
		case e.Kind == model.KindPlayer && e.Team == w.Self.Team && e.ID != w.Self.ID:
			snap.allies[e.ID] = true
		case e.Kind == model.KindSentry && e.Owner == w.Self.ID:
			snap.sentries[e.ID] = true
		}
	}
	for _, o := range w.Objectives {
		snap.objectives[o.ID] = o.Owner
	}
	return snap
}

// detectEvents compares the frame against the previous snapshot. Returns nil
// if prev is nil (first frame).
func detectEvents(w *model.Snapshot, prev *frameSnapshot) []Event {
	if prev == nil {
		return nil
	}

	var events []Event
	cur := takeSnapshot(w)
	add := func(kind EventKind, ref int, format string, args ...any) {
		events = append(events, Event{Kind: kind, Tick: w.Tick, Ref: ref, Detail: fmt.Sprintf(format, args...)})
	}

	if prev.alive && !cur.alive {
		add(EventDeath, 0, "bot died")
		return events
	}
	if !prev.alive && cur.alive {
		add(EventRespawn, 0, "bot respawned")
	}
	if !cur.alive {
		return events
	}

	if maxHP := w.Self.MaxHealth; maxHP > 0 && float64(w.Self.Damage) >= heavyHitFrac*float64(maxHP) {
		add(EventDamageTaken, 0, "took %d damage (%d/%d left)", w.Self.Damage, w.Self.Health, maxHP)
	}

	// Every enemy seen last frame is gone.
	if len(prev.enemies) > 0 && len(cur.enemies) == 0 {
		add(EventTargetLost, slices.Min(slices.Collect(maps.Keys(prev.enemies))), "lost sight of %d enemies", len(prev.enemies))
	}

	for _, id := range slices.Sorted(maps.Keys(prev.allies)) {
		if !cur.allies[id] {
			if e, ok := w.Entity(id); ok && e.Health <= 0 {
				add(EventAllyDown, id, "ally %d down", id)
				break // one per frame is enough
			}
		}
	}

	for _, o := range w.Objectives {
		if prev.objectives[o.ID] == w.Self.Team && o.Owner != w.Self.Team {
			add(EventObjectiveLost, o.ID, "objective %d lost to %q", o.ID, o.Owner)
			break
		}
	}

	for _, id := range slices.Sorted(maps.Keys(prev.sentries)) {
		if !cur.sentries[id] {
			add(EventSentryDestroyed, id, "sentry %d destroyed", id)
			break
		}
	}

	return events
}

// stageEvents writes the one-frame facts for events into set's pending
// layer.
func stageEvents(set *condition.Set, events []Event) {
	for _, ev := range events {
		if f, ok := eventFacts[ev.Kind]; ok {
			set.SetAux(f, condition.Aux{Ref: ev.Ref})
		}
	}
}

// formatEvents renders events as a compact log attribute.
func formatEvents(events []Event) string {
	if len(events) == 0 {
		return ""
	}
	parts := make([]string, len(events))
	for i, ev := range events {
		parts[i] = fmt.Sprintf("%s@%d: %s", ev.Kind, ev.Tick, ev.Detail)
	}
	return strings.Join(parts, "; ")
}
