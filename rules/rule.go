package rules

import (
	"github.com/expr-lang/expr/vm"

	"github.com/nstehr/vimy/vimy-bot/condition"
	"github.com/nstehr/vimy/vimy-bot/decision"
)

// Rule is the atomic unit of data-driven behavior: when ConditionSrc holds,
// the named action is proposed with the score ScoreSrc evaluates to.
type Rule struct {
	Name         string      // becomes the action name of the candidate
	ConditionSrc string      // expr source, must evaluate to bool
	ScoreSrc     string      // expr source, must evaluate to a number; empty means Score
	Score        float64     // static score used when ScoreSrc is empty
	Action       string      // key into the action library
	Args         Args        // passed to the action
	Refresh      bool        // ask to rebuild when already running
	condition    *vm.Program // compiled bytecode
	score        *vm.Program // compiled bytecode, nil for a static score
	action       ActionFunc  // resolved from the library at compile time
}

// RuleSet groups rules that share a tier and a watch list. One rule set
// becomes one provider.
type RuleSet struct {
	Name  string
	Tier  decision.Tier
	Watch condition.Mask
	Rules []*Rule
}

// Args are numeric parameters a rule hands its action.
type Args map[string]float64

// Get returns the named argument or def when it is absent.
func (a Args) Get(name string, def float64) float64 {
	if v, ok := a[name]; ok {
		return v
	}
	return def
}
