// Package match implements the property alert matching engine: it decides
// whether a property satisfies an alert rule's criteria, computes a weighted
// match quality score, and produces human-readable match explanations.
//
// The engine is purely functional: no I/O, no shared mutable state, and no
// error returns. Missing data and empty rules degrade to definite false/zero
// results instead of raising.
package match

import (
	"slices"

	"github.com/taxdeedflow/kestrel/internal/domain"
)

// compareCriterion applies the shared three-way policy for a single
// criterion: an unspecified criterion imposes no restriction and passes, a
// specified criterion whose property field is missing fails (absence of
// data can never confirm a constraint), otherwise the comparison decides.
func compareCriterion[C, V any](criterion *C, value *V, cmp func(C, V) bool) bool {
	if criterion == nil {
		return true
	}
	if value == nil {
		return false
	}
	return cmp(*criterion, *value)
}

// meetsScoreThreshold checks property.TotalScore >= threshold (inclusive).
func meetsScoreThreshold(p domain.MatchableProperty, threshold *float64) bool {
	return compareCriterion(threshold, p.TotalScore, func(t, s float64) bool {
		return s >= t
	})
}

// inCountyList checks exact membership of the property's county in the
// allow-list. An empty list imposes no restriction.
func inCountyList(p domain.MatchableProperty, countyIDs []string) bool {
	if len(countyIDs) == 0 {
		return true
	}
	return slices.Contains(countyIDs, p.CountyID)
}

// matchesPropertyType checks membership of the property's type in the
// allow-list. An empty list imposes no restriction; an unknown type fails
// any type-specific list.
func matchesPropertyType(p domain.MatchableProperty, propertyTypes []string) bool {
	if len(propertyTypes) == 0 {
		return true
	}
	if p.PropertyType == nil {
		return false
	}
	return slices.Contains(propertyTypes, *p.PropertyType)
}

// withinBudget checks property.TotalDue <= maxBid (inclusive).
func withinBudget(p domain.MatchableProperty, maxBid *float64) bool {
	return compareCriterion(maxBid, p.TotalDue, func(max, due float64) bool {
		return due <= max
	})
}

// acresInRange checks the lot size against independently optional inclusive
// bounds. Passing requires every specified bound to hold.
func acresInRange(p domain.MatchableProperty, minAcres, maxAcres *float64) bool {
	lower := compareCriterion(minAcres, p.LotSizeAcres, func(min, a float64) bool {
		return a >= min
	})
	upper := compareCriterion(maxAcres, p.LotSizeAcres, func(max, a float64) bool {
		return a <= max
	})
	return lower && upper
}
