package domain

import "time"

// MatchCriteria is the matchable subset of an alert rule. Every field is
// independently optional; a nil or empty field imposes no restriction.
// A criteria set with no fields at all is invalid and matches nothing.
type MatchCriteria struct {
	// Minimum acceptable TotalScore (inclusive)
	ScoreThreshold *float64 `json:"scoreThreshold,omitempty"`

	// Allow-list of county identifiers (empty = no restriction)
	CountyIDs []string `json:"countyIds,omitempty"`

	// Allow-list of property-type strings (empty = no restriction)
	PropertyTypes []string `json:"propertyTypes,omitempty"`

	// Maximum acceptable TotalDue (inclusive)
	MaxBid *float64 `json:"maxBid,omitempty"`

	// Inclusive bounds on LotSizeAcres, independently optional
	MinAcres *float64 `json:"minAcres,omitempty"`
	MaxAcres *float64 `json:"maxAcres,omitempty"`
}

// AlertRule is a user-defined set of match criteria plus notification
// preferences.
type AlertRule struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Criteria MatchCriteria `json:"criteria"`

	// Optional CEL expression applied as an additional hard filter after
	// the criteria pass. Does not contribute to the match score.
	Expression string `json:"expression,omitempty"`

	// Notification frequency preference
	Frequency AlertFrequency `json:"frequency"`

	// Whether rule is active
	Enabled bool `json:"enabled"`

	// Audit timestamps
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// AlertFrequency controls how often a rule may raise alerts.
type AlertFrequency string

const (
	FrequencyImmediate AlertFrequency = "immediate"
	FrequencyDaily     AlertFrequency = "daily"
	FrequencyWeekly    AlertFrequency = "weekly"
)

// Window returns the throttle window for a frequency. Immediate rules are
// unthrottled and return 0.
func (f AlertFrequency) Window() time.Duration {
	switch f {
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// Valid reports whether f is a known frequency value.
func (f AlertFrequency) Valid() bool {
	switch f {
	case FrequencyImmediate, FrequencyDaily, FrequencyWeekly:
		return true
	}
	return false
}
