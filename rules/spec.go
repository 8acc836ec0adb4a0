package rules

import (
	"fmt"

	"github.com/nstehr/vimy/vimy-bot/condition"
	"github.com/nstehr/vimy/vimy-bot/decision"
)

// SetSpec is the config form of a rule set.
type SetSpec struct {
	Name  string     `yaml:"name"`
	Tier  string     `yaml:"tier"`
	Watch []string   `yaml:"watch"`
	Rules []RuleSpec `yaml:"rules"`
}

// RuleSpec is the config form of a rule.
type RuleSpec struct {
	Name      string  `yaml:"name"`
	When      string  `yaml:"when"`
	Score     float64 `yaml:"score"`
	ScoreExpr string  `yaml:"score_expr"`
	Action    string  `yaml:"action"`
	Args      Args    `yaml:"args"`
	Refresh   bool    `yaml:"refresh"`
}

// RuleSet resolves tier and fact names. Expressions are compiled later, by
// NewEngine or Swap.
func (s SetSpec) RuleSet() (RuleSet, error) {
	if s.Name == "" {
		return RuleSet{}, fmt.Errorf("rule set without a name")
	}
	tier, err := decision.ParseTier(s.Tier)
	if err != nil {
		return RuleSet{}, fmt.Errorf("rule set %q: %w", s.Name, err)
	}
	watch, err := condition.Parse(s.Watch...)
	if err != nil {
		return RuleSet{}, fmt.Errorf("rule set %q: %w", s.Name, err)
	}
	set := RuleSet{Name: s.Name, Tier: tier, Watch: watch}
	for _, r := range s.Rules {
		set.Rules = append(set.Rules, &Rule{
			Name:         r.Name,
			ConditionSrc: r.When,
			ScoreSrc:     r.ScoreExpr,
			Score:        r.Score,
			Action:       r.Action,
			Args:         r.Args,
			Refresh:      r.Refresh,
		})
	}
	return set, nil
}

// Check compiles every rule set against lib without keeping the result.
func Check(specs []SetSpec, lib Library) error {
	for _, s := range specs {
		set, err := s.RuleSet()
		if err != nil {
			return err
		}
		if _, err := compileRules(set.Rules, lib); err != nil {
			return fmt.Errorf("rule set %q: %w", s.Name, err)
		}
	}
	return nil
}
