package agent

import (
	"testing"

	"github.com/nstehr/vimy/vimy-bot/rules"
)

func TestStrategist_NotDueBeforeInterval(t *testing.T) {
	s := NewStrategist(rules.DefaultDoctrine(), 100, nil)
	if _, ok := s.Observe(50, []Event{{Kind: EventDamageTaken}}); ok {
		t.Error("expected no doctrine before the interval")
	}
}

func TestStrategist_UrgentEventSkipsInterval(t *testing.T) {
	s := NewStrategist(rules.DefaultDoctrine(), 100, nil)
	d, ok := s.Observe(5, []Event{{Kind: EventObjectiveLost}})
	if !ok {
		t.Fatal("expected objective_lost to adapt at once")
	}
	if d.ObjectiveFocus != 0.65 {
		t.Errorf("expected objective focus 0.65, got %v", d.ObjectiveFocus)
	}
	if d.Name != "Balanced (adapted)" {
		t.Errorf("unexpected name %q", d.Name)
	}
}

func TestStrategist_TallyDecays(t *testing.T) {
	s := NewStrategist(rules.DefaultDoctrine(), 100, nil)
	first, ok := s.Observe(1, []Event{{Kind: EventDeath}})
	if !ok {
		t.Fatal("expected death to adapt at once")
	}
	second, ok := s.Observe(101, nil)
	if !ok {
		t.Fatal("expected the decayed tally to change the doctrine")
	}
	if !(second.Caution < first.Caution && second.Caution > 0.5) {
		t.Errorf("expected caution to ease back toward 0.5, got %v then %v", first.Caution, second.Caution)
	}

	// Decay eventually returns the base doctrine.
	tick := 101
	for i := 0; i < 10; i++ {
		tick += 100
		s.Observe(tick, nil)
	}
	if s.Current() != rules.DefaultDoctrine() {
		t.Errorf("expected base doctrine after decay, got %+v", s.Current())
	}
}

func TestStrategist_WeightsStayClamped(t *testing.T) {
	s := NewStrategist(rules.DefaultDoctrine(), 100, nil)
	var events []Event
	for i := 0; i < 20; i++ {
		events = append(events, Event{Kind: EventDeath})
	}
	d, _ := s.Observe(1, events)
	if d.Caution != 1 || d.Aggression != 0 {
		t.Errorf("expected clamped weights, got caution=%v aggression=%v", d.Caution, d.Aggression)
	}
}

func TestStrategist_Rebase(t *testing.T) {
	s := NewStrategist(rules.DefaultDoctrine(), 100, nil)
	s.Observe(1, []Event{{Kind: EventDeath}})

	base := rules.DefaultDoctrine()
	base.Name = "Cautious"
	base.Caution = 0.8
	d := s.Rebase(base)
	if d.Name != "Cautious (adapted)" || d.Caution <= 0.8 {
		t.Errorf("expected the tally applied on top of the new base, got %+v", d)
	}
}

func TestStrategist_AdaptChangesNothing(t *testing.T) {
	s := NewStrategist(rules.DefaultDoctrine(), 100, nil)
	s.Observe(1, []Event{{Kind: EventDeath}})
	cur := s.Current()

	base := rules.DefaultDoctrine()
	base.Aggression = 0.9
	d := s.Adapt(base)
	if d.Aggression <= cur.Aggression {
		t.Errorf("expected the tally applied on top of the given base, got %+v", d)
	}
	if s.Current() != cur || s.base != rules.DefaultDoctrine() {
		t.Errorf("Adapt must not move the strategist, got current %+v base %+v", s.Current(), s.base)
	}
}

func TestSummarize(t *testing.T) {
	got := summarize(map[EventKind]float64{EventDeath: 1, EventAllyDown: 0.5})
	if got != "ally_down=0.5, death=1.0" {
		t.Errorf("unexpected summary %q", got)
	}
	if summarize(nil) != "none" {
		t.Error("expected none for an empty tally")
	}
}
