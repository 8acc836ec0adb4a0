package rules

import (
	"fmt"

	"github.com/nstehr/vimy/vimy-bot/condition"
	"github.com/nstehr/vimy/vimy-bot/decision"
)

// CompileDoctrine generates the doctrine rule sets from a doctrine's
// weights. All expressions are built via fmt.Sprintf with interpolated
// values, so the compiler never generates invalid expr.
func CompileDoctrine(d Doctrine) []RuleSet {
	d.Validate()

	// Cautious bots fall back earlier and value it more.
	fallBackAt := round2(lerpf(0.2, 0.5, d.Caution))
	survival := RuleSet{
		Name:  "doctrine-survival",
		Tier:  decision.TierSurvival,
		Watch: condition.Of(condition.LowHealth, condition.CriticalHealth, condition.UnderFire),
		Rules: []*Rule{{
			Name:         "fall-back",
			ConditionSrc: fmt.Sprintf(`Alive() && EnemiesVisible() > 0 && HealthFrac() < %.2f`, fallBackAt),
			ScoreSrc:     fmt.Sprintf(`Clamp(%.2f + (%.2f - HealthFrac()) * 2, 0, 1)`, round2(lerpf(0.5, 0.8, d.Caution)), fallBackAt),
			Action:       "retreat",
			Args:         Args{"distance": round2(lerpf(10, 25, d.Caution))},
		}},
	}

	huntBeyond := round2(d.EngageRange)
	objective := RuleSet{
		Name: "doctrine-objective",
		Tier: decision.TierObjective,
		Watch: condition.Of(condition.ObjectiveContested, condition.ObjectiveLost,
			condition.SeeEnemy, condition.AllyNear),
		Rules: []*Rule{
			{
				Name:         "push",
				ConditionSrc: fmt.Sprintf(`Alive() && ObjectivesOpen() > 0 && EnemiesVisible() <= %d`, 1+int(d.Aggression*3)),
				Score:        round2(lerpf(0.3, 0.7, d.ObjectiveFocus)),
				Action:       "capture",
			},
			{
				Name:         "hold-line",
				ConditionSrc: `Alive() && ObjectivesHeld() > 0 && ObjectivesContested() > 0`,
				Score:        round2(lerpf(0.35, 0.75, d.ObjectiveFocus)),
				Action:       "defend",
			},
			{
				Name:         "hunt",
				ConditionSrc: fmt.Sprintf(`Alive() && EnemiesVisible() > 0 && NearestEnemyDist() > %.2f`, huntBeyond),
				Score:        round2(lerpf(0.2, 0.6, d.Aggression)),
				Action:       "pursue",
				Args:         Args{"range": round2(huntBeyond * 0.8)},
			},
			{
				Name:         "regroup",
				ConditionSrc: `Alive() && EnemiesVisible() == 0 && AlliesVisible() > 0 && !Has("ally_near")`,
				Score:        round2(lerpf(0.1, 0.4, d.Teamwork)),
				Action:       "regroup",
			},
		},
	}
	return []RuleSet{survival, objective}
}
