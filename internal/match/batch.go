package match

import (
	"sort"

	"github.com/taxdeedflow/kestrel/internal/domain"
)

// MatchProperties evaluates every property against the criteria and returns
// the matching subset, each paired with its full result. Input order is
// preserved; no implicit sorting.
func MatchProperties(properties []domain.MatchableProperty, c domain.MatchCriteria) []domain.PropertyMatch {
	var out []domain.PropertyMatch
	for _, p := range properties {
		result := MatchProperty(p, c)
		if result.Matches {
			out = append(out, domain.PropertyMatch{Property: p, Result: result})
		}
	}
	return out
}

// TopMatches returns up to limit matches sorted by descending score.
// Equal scores keep their input order (stable sort), so ranking is
// deterministic for repeated calls on the same input.
func TopMatches(properties []domain.MatchableProperty, c domain.MatchCriteria, limit int) []domain.PropertyMatch {
	matches := MatchProperties(properties, c)

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Result.Score > matches[j].Result.Score
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// CountMatches returns the number of matching properties. It skips
// explanation assembly entirely, so counting large batches stays cheap.
func CountMatches(properties []domain.MatchableProperty, c domain.MatchCriteria) int {
	count := 0
	for _, p := range properties {
		if Matches(p, c) {
			count++
		}
	}
	return count
}
