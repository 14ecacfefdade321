package domain

import "time"

// PropertyAlert records that a property matched a user's alert rule.
// It is the persisted output of the matching pipeline and the input to
// downstream notification delivery (out of scope here).
type PropertyAlert struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	RuleID     string `json:"ruleId"`
	PropertyID string `json:"propertyId"`

	// MatchScore is the 0-100 weighted score at the time of matching.
	MatchScore float64 `json:"matchScore"`

	// Quality is the ordinal label derived from MatchScore
	// (e.g., "Perfect match", "Good match").
	Quality string `json:"quality"`

	// Reasons are the explanation strings for satisfied criteria.
	Reasons []string `json:"reasons,omitempty"`

	// Status is "new" until acknowledged by the user.
	Status string `json:"status"`

	CreatedAt time.Time `json:"createdAt"`
}

// Alert status values.
const (
	AlertStatusNew  = "new"
	AlertStatusSeen = "seen"
)
