package match

import (
	"math"

	"github.com/taxdeedflow/kestrel/internal/domain"
)

// criterion identifies one of the five independently specifiable criteria.
type criterion int

const (
	criterionScore criterion = iota
	criterionCounty
	criterionPropertyType
	criterionPrice
	criterionAcreage
)

// criterionWeights fixes the contribution of each criterion to the 0-100
// match score. The score threshold dominates because it reflects underlying
// investment quality; acreage is a secondary preference. Weights sum to 1.0
// and are static, not configurable per rule.
var criterionWeights = map[criterion]float64{
	criterionScore:        0.35,
	criterionCounty:       0.25,
	criterionPropertyType: 0.20,
	criterionPrice:        0.15,
	criterionAcreage:      0.05,
}

// criterionEval is the outcome of one criterion against one property.
type criterionEval struct {
	specified bool
	satisfied bool
}

// evaluateCriteria runs all five predicates for a (property, criteria)
// pair. The satisfied flag follows the three-way policy, so an unspecified
// criterion reports satisfied.
func evaluateCriteria(p domain.MatchableProperty, c domain.MatchCriteria) map[criterion]criterionEval {
	return map[criterion]criterionEval{
		criterionScore: {
			specified: c.ScoreThreshold != nil,
			satisfied: meetsScoreThreshold(p, c.ScoreThreshold),
		},
		criterionCounty: {
			specified: len(c.CountyIDs) > 0,
			satisfied: inCountyList(p, c.CountyIDs),
		},
		criterionPropertyType: {
			specified: len(c.PropertyTypes) > 0,
			satisfied: matchesPropertyType(p, c.PropertyTypes),
		},
		criterionPrice: {
			specified: c.MaxBid != nil,
			satisfied: withinBudget(p, c.MaxBid),
		},
		criterionAcreage: {
			specified: c.MinAcres != nil || c.MaxAcres != nil,
			satisfied: acresInRange(p, c.MinAcres, c.MaxAcres),
		},
	}
}

// weightedScore computes the 0-100 match quality score: the fraction of
// specified criteria weight that was satisfied, rounded to one decimal.
// Returns 0 when no criteria are specified. The score is independent of the
// overall match decision and is used for ranking partial matches.
func weightedScore(evals map[criterion]criterionEval) float64 {
	var totalWeight, matchedWeight float64
	for crit, eval := range evals {
		if !eval.specified {
			continue
		}
		w := criterionWeights[crit]
		totalWeight += w
		if eval.satisfied {
			matchedWeight += w
		}
	}

	if totalWeight == 0 {
		return 0
	}
	return round1(matchedWeight / totalWeight * 100)
}

// round1 rounds to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
