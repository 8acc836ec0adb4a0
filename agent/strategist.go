package agent

import (
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/nstehr/vimy/vimy-bot/rules"
)

// Strategist adapts a bot's doctrine to how its match is going. Events are
// tallied as they arrive; every interval ticks (or at once, on death or a
// lost objective) the tally is folded into a doctrine derived from the
// configured base and the tally decays by half.
type Strategist struct {
	base     rules.Doctrine
	current  rules.Doctrine
	interval int
	lastTick int
	tally    map[EventKind]float64
	log      *slog.Logger
}

// nudges is how far one event moves each weight.
var nudges = map[EventKind]struct{ aggression, caution, teamwork, objective float64 }{
	EventDeath:           {aggression: -0.1, caution: 0.15},
	EventDamageTaken:     {caution: 0.05},
	EventAllyDown:        {teamwork: 0.1, caution: 0.05},
	EventObjectiveLost:   {objective: 0.15, aggression: 0.05},
	EventSentryDestroyed: {caution: 0.05},
	EventRespawn:         {},
}

// urgent events re-derive the doctrine without waiting for the interval.
var urgent = map[EventKind]bool{
	EventDeath:         true,
	EventObjectiveLost: true,
}

// NewStrategist creates a strategist. interval ≤ 0 defaults to 200 ticks.
func NewStrategist(base rules.Doctrine, interval int, log *slog.Logger) *Strategist {
	if interval <= 0 {
		interval = 200
	}
	if log == nil {
		log = slog.Default()
	}
	base.Validate()
	return &Strategist{
		base:     base,
		current:  base,
		interval: interval,
		tally:    make(map[EventKind]float64),
		log:      log,
	}
}

// Adapt returns the doctrine that would be in effect on base with the
// current tally. It changes nothing.
func (s *Strategist) Adapt(base rules.Doctrine) rules.Doctrine {
	base.Validate()
	return s.derive(base)
}

// Rebase replaces the configured doctrine and returns the doctrine now in
// effect. The tally is kept.
func (s *Strategist) Rebase(d rules.Doctrine) rules.Doctrine {
	d.Validate()
	s.base = d
	s.current = s.derive(d)
	return s.current
}

// Current returns the doctrine in effect.
func (s *Strategist) Current() rules.Doctrine { return s.current }

// Observe records events and reports a new doctrine when one is due and
// differs from the current one.
func (s *Strategist) Observe(tick int, events []Event) (rules.Doctrine, bool) {
	due := tick-s.lastTick >= s.interval
	for _, ev := range events {
		if _, ok := nudges[ev.Kind]; ok {
			s.tally[ev.Kind]++
		}
		if urgent[ev.Kind] {
			due = true
		}
	}
	if !due {
		return rules.Doctrine{}, false
	}
	s.lastTick = tick

	next := s.derive(s.base)
	for k, v := range s.tally {
		v /= 2
		if v < 0.1 {
			delete(s.tally, k)
			continue
		}
		s.tally[k] = v
	}
	if next == s.current {
		return rules.Doctrine{}, false
	}
	s.log.Info("doctrine adapted",
		"name", next.Name,
		"aggression", next.Aggression,
		"caution", next.Caution,
		"teamwork", next.Teamwork,
		"objectiveFocus", next.ObjectiveFocus,
		"tally", summarize(s.tally),
	)
	s.current = next
	return next, true
}

func (s *Strategist) derive(base rules.Doctrine) rules.Doctrine {
	d := base
	for _, kind := range slices.Sorted(maps.Keys(s.tally)) {
		n, nu := s.tally[kind], nudges[kind]
		d.Aggression += nu.aggression * n
		d.Caution += nu.caution * n
		d.Teamwork += nu.teamwork * n
		d.ObjectiveFocus += nu.objective * n
	}
	d.Validate()
	d.Aggression = round2(d.Aggression)
	d.Caution = round2(d.Caution)
	d.Teamwork = round2(d.Teamwork)
	d.ObjectiveFocus = round2(d.ObjectiveFocus)
	if d != base {
		d.Name = base.Name + " (adapted)"
	}
	return d
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// summarize renders the tally for logs, sorted by event kind.
func summarize(tally map[EventKind]float64) string {
	if len(tally) == 0 {
		return "none"
	}
	var b strings.Builder
	for i, k := range slices.Sorted(maps.Keys(tally)) {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%.1f", k, tally[k])
	}
	return b.String()
}
