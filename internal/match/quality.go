package match

// qualityBand maps an inclusive lower score bound to an ordinal label.
type qualityBand struct {
	threshold float64
	label     string
}

// qualityBands is ordered from best to worst; the first band whose
// threshold the score reaches wins.
var qualityBands = []qualityBand{
	{95, "Perfect match"},
	{85, "Excellent match"},
	{75, "Very good match"},
	{60, "Good match"},
	{40, "Fair match"},
	{20, "Partial match"},
}

// MatchQualityDescription maps a 0-100 match score to a fixed ordinal
// label for display in alerts and notifications.
func MatchQualityDescription(score float64) string {
	for _, band := range qualityBands {
		if score >= band.threshold {
			return band.label
		}
	}
	return "Poor match"
}
