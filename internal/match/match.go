package match

import (
	"github.com/taxdeedflow/kestrel/internal/domain"
)

// MatchProperty evaluates one property against one criteria set.
//
// The property matches iff at least one criterion is specified and every
// specified criterion is individually satisfied. A criteria set with no
// fields at all matches nothing, preventing an empty rule from vacuously
// matching every property. Matches and Score are computed independently: a
// property can score above zero while still failing the strict conjunction.
func MatchProperty(p domain.MatchableProperty, c domain.MatchCriteria) domain.MatchResult {
	evals := evaluateCriteria(p, c)

	result := domain.MatchResult{
		Matches: decide(evals),
		Score:   weightedScore(evals),
		Reasons: domain.MatchReasons{
			ScoreMatch:        evals[criterionScore].satisfied,
			CountyMatch:       evals[criterionCounty].satisfied,
			PropertyTypeMatch: evals[criterionPropertyType].satisfied,
			PriceWithinBudget: evals[criterionPrice].satisfied,
			AcresInRange:      evals[criterionAcreage].satisfied,
			Explanations:      explanations(p, c, evals),
		},
	}
	return result
}

// Matches reports whether the property satisfies every specified criterion,
// without assembling explanation strings. Used where only the boolean
// outcome is needed, such as counting.
func Matches(p domain.MatchableProperty, c domain.MatchCriteria) bool {
	return decide(evaluateCriteria(p, c))
}

// decide applies the strict conjunction over the specified subset: every
// specified criterion must be satisfied, and at least one criterion must be
// specified at all.
func decide(evals map[criterion]criterionEval) bool {
	anySpecified := false
	for _, eval := range evals {
		if !eval.specified {
			continue
		}
		anySpecified = true
		if !eval.satisfied {
			return false
		}
	}
	return anySpecified
}
