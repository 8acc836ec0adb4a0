package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstehr/vimy/vimy-bot/decision"
	"github.com/nstehr/vimy/vimy-bot/ipc"
	"github.com/nstehr/vimy/vimy-bot/model"
	"github.com/nstehr/vimy/vimy-bot/perception"
	"github.com/nstehr/vimy/vimy-bot/roles"
	"github.com/nstehr/vimy/vimy-bot/rules"
)

func testOptions() Options {
	return Options{
		Policy:     decision.DefaultPolicy(),
		Tunables:   roles.DefaultTunables(),
		Perception: perception.DefaultThresholds(),
		Doctrine:   rules.DefaultDoctrine(),
	}
}

func assaultBot() ipc.BotInfo {
	return ipc.BotInfo{ID: 1, Name: "alpha", Class: "assault", Team: "red"}
}

// duel is an assault bot facing one enemy inside engage range.
func duel(tick int, ms int64) *model.Snapshot {
	return &model.Snapshot{
		Tick:   tick,
		TimeMs: ms,
		Self: model.Self{ID: 1, Class: "assault", Team: "red", Alive: true, Health: 100, MaxHealth: 100,
			Facing: model.Vec3{X: 1}, Weapon: roles.SlotPrimary,
			Slots:     []string{roles.SlotPrimary, roles.SlotSecondary, roles.SlotMelee},
			Resources: map[string]int{"ammo": 30}},
		Entities: []model.Entity{
			{ID: 9, Kind: model.KindPlayer, Team: "blue", Pos: model.Vec3{X: 20}, Health: 100, MaxHealth: 100, Visible: true},
		},
	}
}

func kinds(in []ipc.Intent) []string {
	var out []string
	for _, i := range in {
		s := i.Kind
		if i.Control != "" {
			s += ":" + i.Control
		}
		out = append(out, s)
	}
	return out
}

func engage() decision.ActionID { return decision.ActionID{Provider: "combat", Action: "engage"} }

func TestNewRejectsUnknownClass(t *testing.T) {
	_, err := New(ipc.BotInfo{ID: 3, Class: "pyro"}, testOptions())
	assert.ErrorContains(t, err, `unknown class "pyro"`)
}

func TestNewRegistersDoctrineAndConfigRules(t *testing.T) {
	opts := testOptions()
	opts.Rules = []rules.SetSpec{{Name: "custom", Tier: "ability"}}
	a, err := New(assaultBot(), opts)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"survival", "doctrine-survival", "combat", "assault", "custom", "objective", "doctrine-objective", "filler"},
		a.eval.Providers())
}

func TestNewRejectsDuplicateRuleSet(t *testing.T) {
	opts := testOptions()
	opts.Rules = []rules.SetSpec{{Name: "doctrine-survival", Tier: "survival"}}
	_, err := New(assaultBot(), opts)
	assert.ErrorContains(t, err, `duplicate rule set "doctrine-survival"`)
}

func TestStepEngagesThenReleasesOnDeath(t *testing.T) {
	a, err := New(assaultBot(), testOptions())
	require.NoError(t, err)

	out := a.Step(duel(1, 0))
	assert.Equal(t, decision.Committed, a.Last().Outcome)
	assert.Equal(t, engage(), a.Last().Utility)
	assert.Equal(t, []string{"aim"}, kinds(out))

	a.Step(duel(2, 200)) // aim settles, fire starts
	out = a.Step(duel(3, 300))
	assert.Equal(t, []string{"aim", "press:primary"}, kinds(out))

	dead := duel(4, 400)
	dead.Self.Alive = false
	dead.Self.Health = 0
	out = a.Step(dead)
	assert.Equal(t, []string{"release:primary"}, kinds(out))
	_, active := a.eval.Scheduler().ActiveID()
	assert.False(t, active)

	a.Step(duel(5, 5000))
	assert.Equal(t, decision.Committed, a.Last().Outcome, "respawn forces a fresh pass")
	assert.Equal(t, engage(), a.Last().Utility)
}

func TestConfigRuleOutranksBuiltin(t *testing.T) {
	opts := testOptions()
	opts.Rules = []rules.SetSpec{{Name: "custom", Tier: "ability", Rules: []rules.RuleSpec{
		{Name: "rush", When: `EnemiesVisible() > 0`, Score: 0.9, Action: "pursue", Args: rules.Args{"range": 3}},
	}}}
	a, err := New(assaultBot(), opts)
	require.NoError(t, err)

	a.Step(duel(1, 0))
	assert.Equal(t, decision.ActionID{Provider: "custom", Action: "rush"}, a.Last().Utility)
	assert.Equal(t, 3, a.Last().Candidates, "rush, engage and idle")
}

func TestReconfigureSwapsRulesAndKeepsOldOnError(t *testing.T) {
	opts := testOptions()
	opts.Rules = []rules.SetSpec{{Name: "custom", Tier: "ability"}}
	a, err := New(assaultBot(), opts)
	require.NoError(t, err)

	bad := testOptions()
	bad.Rules = []rules.SetSpec{{Name: "custom", Tier: "ability", Rules: []rules.RuleSpec{
		{Name: "broken", When: `EnemiesVisible( >`, Score: 1, Action: "pursue"},
	}}}
	require.Error(t, a.Reconfigure(bad))
	assert.Empty(t, a.engines["custom"].Rules())

	good := testOptions()
	good.Rules = []rules.SetSpec{{Name: "custom", Tier: "ability", Rules: []rules.RuleSpec{
		{Name: "rush", When: `EnemiesVisible() > 0`, Score: 0.9, Action: "pursue"},
	}}}
	require.NoError(t, a.Reconfigure(good))
	assert.Equal(t, []string{"rush"}, a.engines["custom"].Rules())

	a.Step(duel(1, 0))
	assert.Equal(t, "rush", a.Last().Utility.Action)
}

func TestReconfigureSilencesDroppedRuleSet(t *testing.T) {
	opts := testOptions()
	opts.Rules = []rules.SetSpec{{Name: "custom", Tier: "ability", Rules: []rules.RuleSpec{
		{Name: "rush", When: `true`, Score: 0.9, Action: "pursue"},
	}}}
	a, err := New(assaultBot(), opts)
	require.NoError(t, err)

	require.NoError(t, a.Reconfigure(testOptions()))
	assert.Empty(t, a.engines["custom"].Rules())
}

func TestShutdownReleasesHeldControls(t *testing.T) {
	a, err := New(assaultBot(), testOptions())
	require.NoError(t, err)
	a.Step(duel(1, 0))
	a.Step(duel(2, 200))
	a.Step(duel(3, 300))

	assert.Equal(t, []string{"release:primary"}, kinds(a.Shutdown()))
	assert.Empty(t, a.Shutdown())
}

func TestStrategistAdaptsDoctrineOnDeath(t *testing.T) {
	opts := testOptions()
	opts.AdaptEvery = 500
	a, err := New(assaultBot(), opts)
	require.NoError(t, err)

	a.Step(duel(1, 0))
	dead := duel(2, 100)
	dead.Self.Alive = false
	a.Step(dead)

	d := a.Doctrine()
	assert.Equal(t, "Balanced (adapted)", d.Name)
	assert.Greater(t, d.Caution, 0.5)
	assert.Less(t, d.Aggression, 0.5)
}

func TestDoctrineFixedWithoutStrategist(t *testing.T) {
	a, err := New(assaultBot(), testOptions())
	require.NoError(t, err)
	dead := duel(2, 100)
	dead.Self.Alive = false
	a.Step(duel(1, 0))
	a.Step(dead)
	assert.Equal(t, rules.DefaultDoctrine(), a.Doctrine())
}

func TestRejectedReconfigureKeepsStrategistBase(t *testing.T) {
	opts := testOptions()
	opts.AdaptEvery = 500
	a, err := New(assaultBot(), opts)
	require.NoError(t, err)
	a.Step(duel(1, 0))
	dead := duel(2, 100)
	dead.Self.Alive = false
	a.Step(dead)
	before := a.Doctrine()

	bad := testOptions()
	bad.Doctrine.Aggression = 0.9
	bad.Rules = []rules.SetSpec{{Name: "doctrine-survival", Tier: "survival"}}
	require.Error(t, a.Reconfigure(bad))
	assert.Equal(t, before, a.Doctrine())
	assert.Equal(t, rules.DefaultDoctrine(), a.strat.base)

	good := testOptions()
	good.Doctrine.Aggression = 0.9
	require.NoError(t, a.Reconfigure(good))
	assert.Equal(t, 0.9, a.strat.base.Aggression)
	assert.Greater(t, a.Doctrine().Aggression, before.Aggression)
}
