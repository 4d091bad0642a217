// Package rating classifies daily forecast records into the five-level
// suitability scale and attaches a recommendation. The rule-based rater is
// always present and fully deterministic; an optional summarizer can enrich
// the recommendation text but can never fail a request.
package rating

import (
	"fmt"
	"math"

	"fishcast/internal/models"
)

// band scores a value 0..4 by the tightest range containing it. Ranges
// widen from ideal outward; a value outside every range scores 0.
type band struct {
	Lo, Hi float64
}

// Threshold tables per variable. Tuned for fishing conditions in temperate
// climates; index 0 is the "excellent" band, index 3 the barely-acceptable
// one.
var thresholds = map[models.Variable][4]band{
	models.VarAirTemp: {
		{12, 26}, {8, 30}, {2, 33}, {-5, 36},
	},
	models.VarPressure: {
		{100.8, 102.3}, {100.0, 102.8}, {99.0, 103.3}, {98.0, 104.0},
	},
	models.VarWindSpeed: {
		{0, 3}, {0, 6}, {0, 9}, {0, 13},
	},
	models.VarWaterTemp: {
		{14, 24}, {10, 27}, {6, 30}, {2, 33},
	},
}

var variableLabels = map[models.Variable]string{
	models.VarAirTemp:   "air temperature",
	models.VarPressure:  "pressure",
	models.VarWindSpeed: "wind",
	models.VarWaterTemp: "water temperature",
}

// scoreValue maps a value onto 0..4 using the variable's bands.
func scoreValue(v models.Variable, value float64) int {
	bands, ok := thresholds[v]
	if !ok || math.IsNaN(value) {
		return 0
	}
	for i, b := range bands {
		if value >= b.Lo && value <= b.Hi {
			return 4 - i
		}
	}
	return 0
}

// RuleRater is the deterministic fallback rater: worst variable dominates,
// so the overall rating is the minimum per-variable score. Ties already
// resolve conservatively because the minimum is taken.
type RuleRater struct{}

func NewRuleRater() *RuleRater { return &RuleRater{} }

// Rate scores a record and renders a recommendation naming the limiting
// variable. The returned rating is always a member of the five-level set
// and the recommendation is never empty.
func (r *RuleRater) Rate(rec models.DailyRecord) (models.Rating, string) {
	worst := 4
	limiting := models.VarAirTemp
	for _, v := range models.TrackedVariables {
		s := scoreValue(v, rec.Value(v))
		if s < worst {
			worst = s
			limiting = v
		}
	}
	rating := models.RatingFromScore(worst)
	return rating, r.recommendation(rating, limiting, rec)
}

func (r *RuleRater) recommendation(rating models.Rating, limiting models.Variable, rec models.DailyRecord) string {
	switch rating {
	case models.RatingExcellent:
		return fmt.Sprintf("Conditions look excellent; %s moon, calm air and stable pressure. Fish early and late for the best bite.", rec.MoonPhase)
	case models.RatingGood:
		return fmt.Sprintf("Good day on the water; %s is slightly off ideal. Standard tackle should work well.", variableLabels[limiting])
	case models.RatingAverage:
		return fmt.Sprintf("Fair conditions; watch the %s. Slow presentations and deeper water may help.", variableLabels[limiting])
	case models.RatingPoor:
		return fmt.Sprintf("Tough conditions driven by %s. Short sessions near cover or sheltered spots are your best bet.", variableLabels[limiting])
	default:
		return fmt.Sprintf("Unfavourable %s makes this a day to skip or stay close to shore.", variableLabels[limiting])
	}
}
