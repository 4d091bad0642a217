package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fishcast/internal/models"
)

func hourly(day time.Time, h int, temp, pressureHPa, wind float64) HourlyPoint {
	return HourlyPoint{
		Time:        day.Add(time.Duration(h) * time.Hour),
		TempC:       f(temp),
		PressureHPa: f(pressureHPa),
		WindSpeedMS: f(wind),
	}
}

func TestAggregateDailyMeans(t *testing.T) {
	day := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	coord := models.Coordinate{Latitude: 50, Longitude: 30}

	points := []HourlyPoint{
		hourly(day, 0, 10, 1010, 2),
		hourly(day, 6, 14, 1014, 4),
		hourly(day, 12, 18, 1018, 6),
		hourly(day, 18, 14, 1014, 4),
	}

	set := AggregateDaily(coord, points, day)

	air := set.Series[models.VarAirTemp]
	require.Equal(t, 1, air.Len())
	assert.InDelta(t, 14.0, air.Values[0].Value, 1e-9)

	// Surface pressure arrives in hPa and is stored in kPa.
	pressure := set.Series[models.VarPressure]
	require.Equal(t, 1, pressure.Len())
	assert.InDelta(t, 101.4, pressure.Values[0].Value, 1e-9)

	wind := set.Series[models.VarWindSpeed]
	require.Equal(t, 1, wind.Len())
	assert.InDelta(t, 4.0, wind.Values[0].Value, 1e-9)
}

func TestAggregateDailyForwardFillsGaps(t *testing.T) {
	day1 := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	day3 := day1.AddDate(0, 0, 2)
	coord := models.Coordinate{Latitude: 50, Longitude: 30}

	points := []HourlyPoint{
		hourly(day1, 12, 10, 1010, 2),
		// Day 2 has hours but no temperature values.
		{Time: day2.Add(12 * time.Hour), PressureHPa: f(1012), WindSpeedMS: f(3)},
		hourly(day3, 12, 16, 1016, 4),
	}

	set := AggregateDaily(coord, points, day3)

	air := set.Series[models.VarAirTemp]
	require.Equal(t, 3, air.Len())
	assert.InDelta(t, 10.0, air.Values[1].Value, 1e-9, "gap day carries the previous value forward")
	require.Len(t, air.Gaps, 1)
	assert.Equal(t, day2, air.Gaps[0])

	pressure := set.Series[models.VarPressure]
	assert.Empty(t, pressure.Gaps)
}

func TestAggregateDailySkipsLeadingGaps(t *testing.T) {
	day1 := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	coord := models.Coordinate{Latitude: 50, Longitude: 30}

	points := []HourlyPoint{
		{Time: day1.Add(12 * time.Hour), PressureHPa: f(1010), WindSpeedMS: f(2)},
		hourly(day2, 12, 15, 1012, 3),
	}

	set := AggregateDaily(coord, points, day2)

	air := set.Series[models.VarAirTemp]
	require.Equal(t, 1, air.Len(), "a leading gap has nothing to carry forward")
	assert.Equal(t, day2, air.Values[0].Date)
}

func TestAggregateDailyDerivesWaterTemperature(t *testing.T) {
	start := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	coord := models.Coordinate{Latitude: 50, Longitude: 30}

	temps := []float64{10, 12, 14, 16, 18}
	var points []HourlyPoint
	for i, temp := range temps {
		points = append(points, hourly(start.AddDate(0, 0, i), 12, temp, 1013, 3))
	}

	set := AggregateDaily(coord, points, start.AddDate(0, 0, len(temps)-1))

	water := set.Series[models.VarWaterTemp]
	require.Equal(t, len(temps), water.Len())

	// EMA seeded with the first air value, then smoothed day by day.
	prev := temps[0]
	for i, temp := range temps {
		prev = prev + WaterTempAlpha*(temp-prev)
		assert.InDelta(t, prev, water.Values[i].Value, 1e-9, "day %d", i)
	}
	assert.Less(t, water.Values[len(temps)-1].Value, temps[len(temps)-1],
		"water temperature must lag a warming air trend")
}
