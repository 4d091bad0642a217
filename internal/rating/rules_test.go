package rating

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fishcast/internal/models"
)

func record(air, pressure, wind, water float64) models.DailyRecord {
	return models.DailyRecord{
		Date:        time.Date(2025, 10, 14, 0, 0, 0, 0, time.UTC),
		AirTempC:    air,
		PressureKPa: pressure,
		WindSpeedMS: wind,
		WaterTempC:  water,
		MoonPhase:   "Full Moon",
	}
}

func TestRuleRater(t *testing.T) {
	r := NewRuleRater()

	tests := []struct {
		name string
		rec  models.DailyRecord
		want models.Rating
	}{
		{
			name: "everything ideal",
			rec:  record(18, 101.5, 2, 19),
			want: models.RatingExcellent,
		},
		{
			name: "wind slightly off ideal",
			rec:  record(18, 101.5, 5, 19),
			want: models.RatingGood,
		},
		{
			name: "worst variable dominates",
			rec:  record(18, 101.5, 12, 19), // everything else ideal, wind nearly a gale
			want: models.RatingPoor,
		},
		{
			name: "hot air drags the day down",
			rec:  record(34, 101.5, 2, 19),
			want: models.RatingPoor,
		},
		{
			name: "storm conditions",
			rec:  record(-10, 96.5, 20, 1),
			want: models.RatingVeryPoor,
		},
		{
			name: "cold but fishable",
			rec:  record(9, 101.5, 2, 12),
			want: models.RatingGood,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rating, recommendation := r.Rate(tt.rec)
			assert.Equal(t, tt.want, rating)
			assert.True(t, rating.Valid())
			assert.NotEmpty(t, recommendation)
		})
	}
}

func TestRuleRaterRecommendationNamesLimitingVariable(t *testing.T) {
	r := NewRuleRater()

	_, recommendation := r.Rate(record(18, 101.5, 12, 19))
	assert.Contains(t, recommendation, "wind")
}

func TestScoreValueBands(t *testing.T) {
	assert.Equal(t, 4, scoreValue(models.VarWindSpeed, 1))
	assert.Equal(t, 3, scoreValue(models.VarWindSpeed, 5))
	assert.Equal(t, 2, scoreValue(models.VarWindSpeed, 8))
	assert.Equal(t, 1, scoreValue(models.VarWindSpeed, 12))
	assert.Equal(t, 0, scoreValue(models.VarWindSpeed, 25))
}
