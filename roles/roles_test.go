package roles

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstehr/vimy/vimy-bot/actuation"
	"github.com/nstehr/vimy/vimy-bot/condition"
	"github.com/nstehr/vimy/vimy-bot/decision"
	"github.com/nstehr/vimy/vimy-bot/model"
	"github.com/nstehr/vimy/vimy-bot/rules"
	"github.com/nstehr/vimy/vimy-bot/task"
)

func world(class string) *model.Snapshot {
	return &model.Snapshot{
		Tick: 1,
		Self: model.Self{ID: 1, Class: class, Team: "red", Alive: true, Health: 100, MaxHealth: 100,
			Facing: model.Vec3{X: 1}, Weapon: SlotPrimary, Slots: table[class].Slots,
			Resources: map[string]int{"ammo": 20, "metal": 200}},
		Entities: []model.Entity{
			{ID: 2, Kind: model.KindPlayer, Team: "red", Pos: model.Vec3{X: 5}, Health: 30, MaxHealth: 100, Visible: true},
			{ID: 9, Kind: model.KindPlayer, Team: "blue", Pos: model.Vec3{X: 40}, Health: 100, MaxHealth: 100, Visible: true},
		},
	}
}

func facts(fs ...condition.Fact) *condition.Set {
	s := condition.New()
	for _, f := range fs {
		s.Set(f)
	}
	s.Commit()
	return s
}

func ctxFor(w *model.Snapshot, fs ...condition.Fact) *decision.Context {
	return &decision.Context{Tick: w.Tick, Self: w.Self, World: w, Conditions: facts(fs...)}
}

func actions(cs []decision.Candidate) []string {
	var out []string
	for _, c := range cs {
		out = append(out, c.Action)
	}
	return out
}

func TestLookup(t *testing.T) {
	assert.Equal(t, []string{"assault", "engineer", "medic", "sniper"}, Classes())

	r, err := Lookup("medic")
	require.NoError(t, err)
	assert.Equal(t, "medic", r.Class)
	assert.Contains(t, r.Slots, SlotMedigun)

	_, err = Lookup("pyro")
	assert.ErrorContains(t, err, `unknown class "pyro"`)
}

func TestProvidersOrder(t *testing.T) {
	r, err := Lookup("engineer")
	require.NoError(t, err)
	var names []string
	for _, p := range r.Providers(DefaultTunables()) {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"survival", "combat", "objective", "engineer", "filler"}, names)
}

func TestActionsExposeClassBehaviors(t *testing.T) {
	r, err := Lookup("sniper")
	require.NoError(t, err)
	lib := r.Actions(DefaultTunables())
	assert.Contains(t, lib, "scoped_shot")
	assert.Contains(t, lib, "engage")
	assert.NotContains(t, lib, "heal_ally")

	spec := rules.SetSpec{Name: "extra", Tier: "ability", Rules: []rules.RuleSpec{
		{Name: "snipe", When: `EnemiesVisible() > 0`, Score: 0.8, Action: "scoped_shot"},
	}}
	assert.NoError(t, rules.Check([]rules.SetSpec{spec}, lib))
}

func TestTunablesValidate(t *testing.T) {
	tun := Tunables{EngageRange: 1000, HealRange: -3, SentryMetal: -5, FillerScore: 0.5}
	tun.Validate()
	assert.Equal(t, 100.0, tun.EngageRange)
	assert.Equal(t, 2.0, tun.HealRange)
	assert.Zero(t, tun.SentryMetal)
	assert.Equal(t, 0.1, tun.FillerScore)
}

func TestSurvivalRetreatOverridesWhenCritical(t *testing.T) {
	w := world("assault")
	w.Self.Health = 10
	s := &Survival{t: DefaultTunables()}
	got := s.Propose(ctxFor(w, condition.CriticalHealth, condition.SeeEnemy))
	require.Equal(t, []string{"retreat"}, actions(got))
	assert.Greater(t, got[0].Score, 1.0)
	assert.Equal(t, 9, got[0].Target)
}

func TestSurvivalSilentWhenDead(t *testing.T) {
	w := world("assault")
	w.Self.Alive = false
	s := &Survival{t: DefaultTunables()}
	assert.Empty(t, s.Propose(ctxFor(w, condition.CriticalHealth, condition.SeeEnemy)))
}

func TestCombatEngageOrPursue(t *testing.T) {
	c := &Combat{t: DefaultTunables()}
	w := world("assault")

	got := c.Propose(ctxFor(w, condition.SeeEnemy))
	require.Equal(t, []string{"pursue"}, actions(got), "enemy at 40 is beyond engage range")

	w.Entities[1].Pos = model.Vec3{X: 20}
	got = c.Propose(ctxFor(w, condition.SeeEnemy))
	require.Equal(t, []string{"engage"}, actions(got))
	assert.InDelta(t, 0.5, got[0].Score, 1e-9)
}

func TestCombatMeleeWhenDry(t *testing.T) {
	c := &Combat{t: DefaultTunables()}
	w := world("assault")
	w.Entities[1].Pos = model.Vec3{X: 2}
	got := c.Propose(ctxFor(w, condition.SeeEnemy, condition.EnemyNear, condition.NoAmmo))
	assert.Equal(t, []string{"melee"}, actions(got))
}

func TestMedicHealsMostHurtAlly(t *testing.T) {
	w := world("medic")
	w.Entities = append(w.Entities, model.Entity{ID: 3, Kind: model.KindPlayer, Team: "red",
		Pos: model.Vec3{Y: 5}, Health: 10, MaxHealth: 100, Visible: true})
	m := &Medic{t: DefaultTunables()}
	got := m.Propose(ctxFor(w, condition.AllyHurt))
	require.Equal(t, []string{"heal_ally"}, actions(got))
	assert.Equal(t, 3, got[0].Target)
	assert.InDelta(t, 0.55+0.35*0.9, got[0].Score, 1e-9)
}

func TestMedicHoldsOffWhenCritical(t *testing.T) {
	m := &Medic{t: DefaultTunables()}
	assert.Empty(t, m.Propose(ctxFor(world("medic"), condition.AllyHurt, condition.CriticalHealth)))
}

func TestSniperNeedsRange(t *testing.T) {
	s := &Sniper{t: DefaultTunables()}
	w := world("sniper")
	got := s.Propose(ctxFor(w, condition.SeeEnemy))
	require.Equal(t, []string{"scoped_shot"}, actions(got))

	w.Entities[1].Pos = model.Vec3{X: 10}
	assert.Empty(t, s.Propose(ctxFor(w, condition.SeeEnemy)))
}

func TestAssaultStrafesToPassableSide(t *testing.T) {
	w := world("assault")
	a := &Assault{t: DefaultTunables()}
	ctx := ctxFor(w, condition.UnderFire, condition.SeeEnemy)
	// Left of the enemy line (positive Y) is blocked.
	ctx.Terrain = &model.TerrainGrid{Cols: 1, Rows: 2, CellW: 100, CellH: 4,
		Grid: []model.TerrainType{model.Open, model.Blocked}}
	ctx.Self.Pos = model.Vec3{X: 1, Y: 1}

	got := a.Propose(ctx)
	require.Len(t, got, 1)

	env := &task.Env{World: w, Conditions: ctx.Conditions, Terrain: ctx.Terrain, Act: actuation.NewBuffer()}
	p := task.NewPlanner(env)
	got[0].Plan(p)
	s, err := p.Build("assault/strafe", got[0].Score)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
}

// The engineer's sentry plan fails construction without metal; the
// evaluator falls through to the next candidate in the same tick.
func TestEngineerBuildNeedsMetal(t *testing.T) {
	r, err := Lookup("engineer")
	require.NoError(t, err)
	w := world("engineer")
	w.Entities = w.Entities[:1] // no enemy in sight
	w.Self.Resources["metal"] = 20

	env := &task.Env{World: w, Conditions: facts(condition.CanBuild), Act: actuation.NewBuffer()}
	e := decision.NewEvaluator(decision.Policy{PreemptMargin: 0.1, Cooldown: 3 * time.Second, OverrideScore: 1}, nil,
		r.Providers(DefaultTunables())...)

	d := e.Tick(env, 0)
	assert.Equal(t, []decision.ActionID{{Provider: "engineer", Action: "build_sentry"}}, d.Rejected)
	assert.Equal(t, decision.ActionID{Provider: "filler", Action: "idle"}, d.Utility)

	w.Self.Resources["metal"] = 200
	env.Now = 4 * time.Second
	env.Tick++
	e.Force("metal")
	d = e.Tick(env, 0)
	assert.Equal(t, decision.ActionID{Provider: "engineer", Action: "build_sentry"}, d.Utility)
}

func TestEngineerRepairsDamagedSentry(t *testing.T) {
	w := world("engineer")
	w.Entities = append(w.Entities, model.Entity{ID: 50, Kind: model.KindSentry, Team: "red", Owner: 1,
		Pos: model.Vec3{Y: 4}, Health: 30, MaxHealth: 150, Visible: true})
	e := &Engineer{t: DefaultTunables()}
	got := e.Propose(ctxFor(w, condition.SeeEnemy))
	require.Equal(t, []string{"repair_sentry"}, actions(got))
	assert.Equal(t, 50, got[0].Target)
}

func TestSentrySpotPrefersChokepoint(t *testing.T) {
	grid := &model.TerrainGrid{Cols: 2, Rows: 1, CellW: 10, CellH: 10,
		Grid: []model.TerrainType{model.Open, model.Chokepoint}}
	env := rules.Env{Self: model.Self{Pos: model.Vec3{X: 1, Y: 5}, Facing: model.Vec3{X: 1}}, Terrain: grid}
	assert.Equal(t, model.Vec3{X: 15, Y: 5}, sentrySpot(env))

	env.Terrain = nil
	assert.Equal(t, model.Vec3{X: 4, Y: 5}, sentrySpot(env))
}
