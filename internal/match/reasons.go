package match

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/taxdeedflow/kestrel/internal/domain"
)

// explanations builds the human-readable reason strings. A string is
// recorded only for criteria that were both specified and satisfied;
// unspecified criteria contribute nothing even though their structured
// flags report true.
func explanations(p domain.MatchableProperty, c domain.MatchCriteria, evals map[criterion]criterionEval) []string {
	var out []string

	if passed(evals, criterionScore) {
		out = append(out, fmt.Sprintf("Investment score %s meets threshold of %s",
			formatNumber(*p.TotalScore), formatNumber(*c.ScoreThreshold)))
	}
	if passed(evals, criterionCounty) {
		name := p.CountyName
		if name == "" {
			name = p.CountyID
		}
		out = append(out, fmt.Sprintf("Located in %s", name))
	}
	if passed(evals, criterionPropertyType) {
		out = append(out, fmt.Sprintf("Property type %s matches your preferences",
			humanizeType(*p.PropertyType)))
	}
	if passed(evals, criterionPrice) {
		out = append(out, fmt.Sprintf("Price %s within budget of %s",
			formatMoney(*p.TotalDue), formatMoney(*c.MaxBid)))
	}
	if passed(evals, criterionAcreage) {
		out = append(out, acreageExplanation(*p.LotSizeAcres, c.MinAcres, c.MaxAcres))
	}

	return out
}

func passed(evals map[criterion]criterionEval, crit criterion) bool {
	e := evals[crit]
	return e.specified && e.satisfied
}

// acreageExplanation phrases the lot size conditionally: as a range when
// both bounds are given, otherwise against the single specified bound.
func acreageExplanation(acres float64, minAcres, maxAcres *float64) string {
	switch {
	case minAcres != nil && maxAcres != nil:
		return fmt.Sprintf("Lot size %s acres within range %s-%s acres",
			formatNumber(acres), formatNumber(*minAcres), formatNumber(*maxAcres))
	case minAcres != nil:
		return fmt.Sprintf("Lot size %s acres meets minimum of %s acres",
			formatNumber(acres), formatNumber(*minAcres))
	default:
		return fmt.Sprintf("Lot size %s acres within maximum of %s acres",
			formatNumber(acres), formatNumber(*maxAcres))
	}
}

// formatMoney renders a dollar amount with thousands separators, dropping
// cents when the value is whole (e.g., 5000 -> "$5,000").
func formatMoney(v float64) string {
	whole := int64(v)
	cents := v - float64(whole)

	s := groupThousands(strconv.FormatInt(whole, 10))
	if cents > 0 {
		return fmt.Sprintf("$%s%s", s, strconv.FormatFloat(cents, 'f', 2, 64)[1:])
	}
	return "$" + s
}

func groupThousands(digits string) string {
	neg := strings.HasPrefix(digits, "-")
	if neg {
		digits = digits[1:]
	}

	var b strings.Builder
	pre := len(digits) % 3
	if pre > 0 {
		b.WriteString(digits[:pre])
	}
	for i := pre; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}

	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// formatNumber renders a float without trailing zeros (0.25 -> "0.25",
// 85 -> "85").
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// humanizeType turns a snake_case property type into display form
// ("single_family_residential" -> "single family residential").
func humanizeType(t string) string {
	return strings.ReplaceAll(t, "_", " ")
}
