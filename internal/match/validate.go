package match

import "github.com/taxdeedflow/kestrel/internal/domain"

// IsValidCriteria reports whether at least one criterion field is set.
// An entirely empty criteria set is rejected both here and inside the match
// decision itself, so a no-op rule can never match everything regardless of
// which guard a caller relies on.
func IsValidCriteria(c domain.MatchCriteria) bool {
	return c.ScoreThreshold != nil ||
		len(c.CountyIDs) > 0 ||
		len(c.PropertyTypes) > 0 ||
		c.MaxBid != nil ||
		c.MinAcres != nil ||
		c.MaxAcres != nil
}

// IsValidRule reports whether a rule carries at least one usable criterion.
// An advanced filter expression alone does not make a rule valid; the
// criteria set must restrict something.
func IsValidRule(rule *domain.AlertRule) bool {
	if rule == nil {
		return false
	}
	return IsValidCriteria(rule.Criteria)
}
