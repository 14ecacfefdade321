package domain

// MatchReasons holds the per-criterion outcome flags plus human-readable
// explanations for criteria that were both specified and satisfied.
// Flags for unspecified criteria default to true, since an unspecified
// criterion imposes no restriction.
type MatchReasons struct {
	ScoreMatch        bool `json:"scoreMatch"`
	CountyMatch       bool `json:"countyMatch"`
	PropertyTypeMatch bool `json:"propertyTypeMatch"`
	PriceWithinBudget bool `json:"priceWithinBudget"`
	AcresInRange      bool `json:"acresInRange"`

	// Explanations records a string only for specified-and-satisfied
	// criteria, incorporating the actual property values.
	Explanations []string `json:"explanations,omitempty"`
}

// MatchResult is the output of evaluating one (property, rule) pair.
// Matches and Score are independent: a property can score above zero
// without fully matching, because Score measures the fraction of
// specified criteria weight that was satisfied.
type MatchResult struct {
	Matches bool         `json:"matches"`
	Score   float64      `json:"score"`
	Reasons MatchReasons `json:"reasons"`
}

// PropertyMatch pairs a property with its evaluation result in batch output.
type PropertyMatch struct {
	Property MatchableProperty `json:"property"`
	Result   MatchResult       `json:"result"`
}
