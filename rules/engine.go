package rules

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/nstehr/vimy/vimy-bot/condition"
	"github.com/nstehr/vimy/vimy-bot/decision"
)

// idleDiagEvery throttles the "no rule matched" diagnostics.
const idleDiagEvery = 100

// Engine runs a compiled rule set against each frame and proposes every
// matching rule as a candidate. It is a decision.Provider.
type Engine struct {
	mu      sync.RWMutex
	set     RuleSet
	lib     Library
	log     *slog.Logger
	lastLog int
}

// NewEngine compiles all rule expressions into expr bytecode and binds each
// rule to its action.
func NewEngine(set RuleSet, lib Library, log *slog.Logger) (*Engine, error) {
	if log == nil {
		log = slog.Default()
	}
	compiled, err := compileRules(set.Rules, lib)
	if err != nil {
		return nil, fmt.Errorf("rule set %q: %w", set.Name, err)
	}
	set.Rules = compiled
	return &Engine{set: set, lib: lib, log: log.With("rules", set.Name), lastLog: -idleDiagEvery}, nil
}

func (e *Engine) Name() string { return e.set.Name }

func (e *Engine) Tier() decision.Tier { return e.set.Tier }

func (e *Engine) Watch() condition.Mask {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.set.Watch
}

// Rules returns the names of the active rules, in evaluation order.
func (e *Engine) Rules() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, len(e.set.Rules))
	for i, r := range e.set.Rules {
		names[i] = r.Name
	}
	return names
}

// EnvFrom builds the rule environment for a decision context.
func EnvFrom(ctx *decision.Context) Env {
	return Env{
		Tick:    ctx.Tick,
		Time:    ctx.Now.Seconds(),
		Self:    ctx.Self,
		Running: ctx.Active.String(),
		World:   ctx.World,
		Facts:   ctx.Conditions,
		Terrain: ctx.Terrain,
	}
}

// Propose evaluates every rule. Expression errors skip the rule and are
// logged; they never abort the pass.
func (e *Engine) Propose(ctx *decision.Context) []decision.Candidate {
	e.mu.RLock()
	rules := e.set.Rules
	e.mu.RUnlock()

	env := EnvFrom(ctx)
	var out []decision.Candidate
	for _, r := range rules {
		result, err := vm.Run(r.condition, env)
		if err != nil {
			e.log.Warn("rule condition error", "rule", r.Name, "error", err)
			continue
		}
		if match, ok := result.(bool); !ok || !match {
			continue
		}
		score, err := r.evalScore(env)
		if err != nil {
			e.log.Warn("rule score error", "rule", r.Name, "error", err)
			continue
		}
		plan, ok := r.action(env, r.Args)
		if !ok {
			continue
		}
		e.log.Debug("rule matched", "rule", r.Name, "action", r.Action, "score", score, "target", plan.Target)
		out = append(out, decision.Candidate{
			Action:  r.Name,
			Score:   score,
			Target:  plan.Target,
			Refresh: r.Refresh,
			Plan:    plan.Build,
		})
	}
	if len(out) == 0 && len(rules) > 0 {
		e.logIdleDiagnostics(env)
	}
	return out
}

func (r *Rule) evalScore(env Env) (float64, error) {
	if r.score == nil {
		return r.Score, nil
	}
	v, err := vm.Run(r.score, env)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return max(n, 0), nil
	case int:
		return max(float64(n), 0), nil
	default:
		return 0, fmt.Errorf("score evaluated to %T", v)
	}
}

// Swap atomically replaces the rule set's rules and watch list. Compiles
// first; if compilation fails the old rules remain active.
func (e *Engine) Swap(set RuleSet) error {
	compiled, err := compileRules(set.Rules, e.lib)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.set.Rules = compiled
	e.set.Watch = set.Watch
	e.mu.Unlock()
	e.log.Info("rule set swapped", "count", len(compiled), "rules", e.Rules())
	return nil
}

// logIdleDiagnostics helps debug why a rule set never proposes anything.
// Throttled to avoid log spam.
func (e *Engine) logIdleDiagnostics(env Env) {
	if env.Tick-e.lastLog < idleDiagEvery {
		return
	}
	e.lastLog = env.Tick
	var facts condition.Mask
	if env.Facts != nil {
		facts = env.Facts.Bits()
	}
	e.log.Debug("idle diagnostics",
		"tick", env.Tick,
		"health", env.HealthFrac(),
		"enemiesVisible", env.EnemiesVisible(),
		"objectivesOpen", env.ObjectivesOpen(),
		"facts", facts,
	)
}

func compileRules(rules []*Rule, lib Library) ([]*Rule, error) {
	out := make([]*Rule, 0, len(rules))
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if r.Name == "" {
			return nil, errors.New("rule without a name")
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("duplicate rule %q", r.Name)
		}
		seen[r.Name] = true

		c := *r
		if c.ConditionSrc == "" {
			c.ConditionSrc = "true"
		}
		prog, err := expr.Compile(c.ConditionSrc, expr.Env(Env{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile rule %q condition: %w", c.Name, err)
		}
		c.condition = prog
		c.score = nil
		if c.ScoreSrc != "" {
			prog, err := expr.Compile(c.ScoreSrc, expr.Env(Env{}), expr.AsFloat64())
			if err != nil {
				return nil, fmt.Errorf("compile rule %q score: %w", c.Name, err)
			}
			c.score = prog
		}
		if c.action, err = lib.lookup(c.Action); err != nil {
			return nil, fmt.Errorf("rule %q: %w", c.Name, err)
		}
		out = append(out, &c)
	}
	return out, nil
}
