package condition

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// names is process-wide: fact identifiers are a vocabulary shared by every
// agent, registered once at startup before any agent evaluates.
type names struct {
	mu     sync.RWMutex
	byName map[string]Fact
	byFact map[Fact]string
	next   Fact
}

var registry = newNames()

func newNames() *names {
	n := &names{
		byName: make(map[string]Fact),
		byFact: make(map[Fact]string),
		next:   numBuiltin,
	}
	for f, name := range map[Fact]string{
		SeeEnemy:           "see_enemy",
		EnemyNear:          "enemy_near",
		UnderFire:          "under_fire",
		LowHealth:          "low_health",
		CriticalHealth:     "critical_health",
		LowAmmo:            "low_ammo",
		NoAmmo:             "no_ammo",
		AllyHurt:           "ally_hurt",
		AllyNear:           "ally_near",
		ObjectiveContested: "objective_contested",
		ObjectiveLost:      "objective_lost",
		HeardNoise:         "heard_noise",
		TargetLost:         "target_lost",
		Respawned:          "respawned",
		SentryDown:         "sentry_down",
		CanBuild:           "can_build",
		HealthPackNear:     "health_pack_near",
		Dead:               "dead",
	} {
		n.byName[name] = f
		n.byFact[f] = name
	}
	return n
}

func (n *names) name(f Fact) (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	s, ok := n.byFact[f]
	return s, ok
}

// Register returns the fact for name, allocating a new one if needed.
func Register(name string) (Fact, error) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if f, ok := registry.byName[name]; ok {
		return f, nil
	}
	if registry.next >= MaxFacts {
		return 0, fmt.Errorf("register fact %q: all %d facts in use", name, MaxFacts)
	}
	f := registry.next
	registry.next++
	registry.byName[name] = f
	registry.byFact[f] = name
	return f, nil
}

// Lookup resolves a fact by name.
func Lookup(name string) (Fact, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	f, ok := registry.byName[name]
	return f, ok
}

// Names returns every registered fact name, sorted.
func Names() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return slices.Sorted(maps.Keys(registry.byName))
}

// Parse builds a mask from fact names, failing on the first unknown one.
func Parse(names ...string) (Mask, error) {
	var m Mask
	for _, name := range names {
		f, ok := Lookup(name)
		if !ok {
			return 0, fmt.Errorf("unknown fact %q (known: %s)", name, strings.Join(Names(), ", "))
		}
		m |= f.Bit()
	}
	return m, nil
}
