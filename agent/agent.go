// Package agent wires one bot together: perception folds frames into the
// condition set, the evaluator picks and runs a schedule, and the intents
// it emits are drained back out for the game.
package agent

import (
	"fmt"
	"log/slog"

	"github.com/nstehr/vimy/vimy-bot/actuation"
	"github.com/nstehr/vimy/vimy-bot/condition"
	"github.com/nstehr/vimy/vimy-bot/decision"
	"github.com/nstehr/vimy/vimy-bot/ipc"
	"github.com/nstehr/vimy/vimy-bot/model"
	"github.com/nstehr/vimy/vimy-bot/perception"
	"github.com/nstehr/vimy/vimy-bot/roles"
	"github.com/nstehr/vimy/vimy-bot/rules"
	"github.com/nstehr/vimy/vimy-bot/task"
)

// Options is everything an agent is tuned by.
type Options struct {
	Policy     decision.Policy
	Tunables   roles.Tunables
	Perception perception.Thresholds
	Doctrine   rules.Doctrine
	Rules      []rules.SetSpec
	Terrain    *model.TerrainGrid
	// DiagEvery throttles the per-agent diagnostics line; 0 disables it.
	DiagEvery int
	// AdaptEvery is the strategist's interval in ticks; 0 keeps the
	// configured doctrine fixed.
	AdaptEvery int
	Log       *slog.Logger
}

// Agent owns the decision-making for a single bot.
type Agent struct {
	ID    int
	Name  string
	Class string

	role     roles.Role
	conds    *condition.Set
	perceive *perception.Perceiver
	eval     *decision.Evaluator
	engines  map[string]*rules.Engine
	strat    *Strategist
	doctrine rules.Doctrine
	lib      rules.Library
	act      *actuation.Buffer
	terrain  *model.TerrainGrid
	prev     *frameSnapshot
	last     decision.Decision

	diagEvery int
	lastDiag  int
	log       *slog.Logger
}

// New resolves the bot's class and registers its providers: the class's
// built-in providers, the doctrine rule sets, then any configured rule sets.
func New(bot ipc.BotInfo, opts Options) (*Agent, error) {
	role, err := roles.Lookup(bot.Class)
	if err != nil {
		return nil, fmt.Errorf("bot %d: %w", bot.ID, err)
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("agent", bot.ID, "class", bot.Class)

	a := &Agent{
		ID:        bot.ID,
		Name:      bot.Name,
		Class:     bot.Class,
		role:      role,
		conds:     condition.New(),
		perceive:  perception.New(opts.Perception),
		engines:   make(map[string]*rules.Engine),
		lib:       role.Actions(opts.Tunables),
		act:       actuation.NewBuffer(),
		terrain:   opts.Terrain,
		doctrine:  opts.Doctrine,
		diagEvery: opts.DiagEvery,
		lastDiag:  -opts.DiagEvery,
		log:       log,
	}

	if opts.AdaptEvery > 0 {
		a.strat = NewStrategist(opts.Doctrine, opts.AdaptEvery, log)
	}

	sets, err := a.ruleSets(opts)
	if err != nil {
		return nil, err
	}
	providers := role.Providers(opts.Tunables)
	for _, set := range sets {
		eng, err := rules.NewEngine(set, a.lib, log)
		if err != nil {
			return nil, fmt.Errorf("bot %d: %w", bot.ID, err)
		}
		a.engines[set.Name] = eng
		providers = append(providers, eng)
	}

	a.eval = decision.NewEvaluator(opts.Policy, log, providers...)
	log.Info("agent ready", "name", bot.Name, "providers", a.eval.Providers())
	return a, nil
}

// ruleSets resolves the doctrine and configured rule sets in registration
// order. Names must be unique.
func (a *Agent) ruleSets(opts Options) ([]rules.RuleSet, error) {
	sets := rules.CompileDoctrine(opts.Doctrine)
	seen := make(map[string]bool)
	for _, s := range sets {
		seen[s.Name] = true
	}
	for _, spec := range opts.Rules {
		set, err := spec.RuleSet()
		if err != nil {
			return nil, err
		}
		if seen[set.Name] {
			return nil, fmt.Errorf("duplicate rule set %q", set.Name)
		}
		seen[set.Name] = true
		sets = append(sets, set)
	}
	return sets, nil
}

// Step runs one frame and returns the intents the bot emitted, in order.
func (a *Agent) Step(w *model.Snapshot) []ipc.Intent {
	events := detectEvents(w, a.prev)
	snap := takeSnapshot(w)
	a.prev = &snap

	a.perceive.Stage(a.conds, w)
	stageEvents(a.conds, events)
	changed := a.conds.Commit()

	env := &task.Env{
		Tick:       w.Tick,
		Now:        w.Now(),
		World:      w,
		Conditions: a.conds,
		Terrain:    a.terrain,
		Act:        a.act,
		Log:        a.log,
	}

	for _, ev := range events {
		a.log.Debug("event", "kind", ev.Kind, "detail", ev.Detail)
		if ev.Kind == EventDeath {
			a.eval.Scheduler().Abort(env, task.AbortDied)
			a.act.ReleaseAll()
		}
		a.eval.Force(string(ev.Kind))
	}
	if a.strat != nil {
		if d, ok := a.strat.Observe(w.Tick, events); ok {
			a.swapDoctrine(d)
		}
	}

	if w.Self.Alive {
		a.last = a.eval.Tick(env, changed)
		if a.last.Outcome == decision.Committed || a.last.Outcome == decision.FellBack {
			a.log.Debug("decision",
				"outcome", a.last.Outcome,
				"utility", a.last.Utility,
				"score", a.last.Score,
				"candidates", a.last.Candidates,
				"rejected", a.last.Rejected,
			)
		}
	}
	a.diagnostics(w, events)
	return a.act.Drain()
}

func (a *Agent) swapDoctrine(d rules.Doctrine) {
	for _, set := range rules.CompileDoctrine(d) {
		eng, ok := a.engines[set.Name]
		if !ok {
			continue
		}
		if err := eng.Swap(set); err != nil {
			a.log.Error("doctrine swap failed", "rules", set.Name, "error", err)
			return
		}
	}
	a.eval.Force("doctrine")
}

// diagnostics logs a throttled summary of what the bot is doing.
func (a *Agent) diagnostics(w *model.Snapshot, events []Event) {
	if a.diagEvery <= 0 || w.Tick-a.lastDiag < a.diagEvery {
		return
	}
	a.lastDiag = w.Tick
	a.log.Info("agent status",
		"tick", w.Tick,
		"alive", w.Self.Alive,
		"health", fmt.Sprintf("%d/%d", w.Self.Health, w.Self.MaxHealth),
		"utility", a.last.Utility,
		"score", a.last.Score,
		"status", a.last.Status,
		"facts", a.conds.Bits(),
		"cooldowns", a.eval.Scheduler().Cooldowns(),
		"events", formatEvents(events),
	)
}

// Reconfigure applies new tuning between frames. Policy, perception
// thresholds, doctrine and rule sets take effect at once; tunables and rule
// sets the agent did not start with apply to agents created afterwards.
func (a *Agent) Reconfigure(opts Options) error {
	if err := rules.Check(opts.Rules, a.lib); err != nil {
		return fmt.Errorf("bot %d: %w", a.ID, err)
	}
	base := opts.Doctrine
	if a.strat != nil {
		opts.Doctrine = a.strat.Adapt(base)
	}
	sets, err := a.ruleSets(opts)
	if err != nil {
		return err
	}
	byName := make(map[string]rules.RuleSet, len(sets))
	for _, s := range sets {
		byName[s.Name] = s
	}
	for name, eng := range a.engines {
		set, ok := byName[name]
		if !ok {
			// Dropped from config: keep the provider, silence it.
			set = rules.RuleSet{Name: name, Tier: eng.Tier()}
		}
		if err := eng.Swap(set); err != nil {
			return fmt.Errorf("bot %d: %w", a.ID, err)
		}
	}
	for name := range byName {
		if _, ok := a.engines[name]; !ok {
			a.log.Warn("new rule set ignored until the bot rejoins", "rules", name)
		}
	}
	if a.strat != nil {
		a.strat.Rebase(base)
	}
	a.doctrine = opts.Doctrine
	a.eval.SetPolicy(opts.Policy)
	a.perceive.SetThresholds(opts.Perception)
	a.diagEvery = opts.DiagEvery
	a.eval.Force("reconfigured")
	return nil
}

// Shutdown aborts whatever the bot is doing and returns the releases.
func (a *Agent) Shutdown() []ipc.Intent {
	a.eval.Scheduler().Abort(&task.Env{Terrain: a.terrain, Act: a.act, Log: a.log}, task.AbortShutdown)
	a.act.ReleaseAll()
	return a.act.Drain()
}

// Last returns the decision made at the most recent live frame.
func (a *Agent) Last() decision.Decision { return a.last }

// Doctrine returns the doctrine the agent is playing.
func (a *Agent) Doctrine() rules.Doctrine {
	if a.strat != nil {
		return a.strat.Current()
	}
	return a.doctrine
}

// Facts returns the committed condition set.
func (a *Agent) Facts() condition.View { return a.conds }
