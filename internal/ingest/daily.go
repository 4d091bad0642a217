package ingest

import (
	"sort"
	"time"

	"fishcast/internal/models"
)

// WaterTempAlpha is the smoothing factor of the exponential moving average
// that derives the estimated water temperature from daily mean air
// temperature. Water bodies respond to air temperature slowly; 0.12 gives a
// lag of roughly a week.
const WaterTempAlpha = 0.12

// AggregateDaily collapses hourly points into daily means per variable and
// derives the estimated water-temperature series. Days where a variable has
// no valid hours are carried forward from the previous day and recorded as
// explicit gaps, never fabricated silently.
func AggregateDaily(coord models.Coordinate, points []HourlyPoint, asof time.Time) *models.SeriesSet {
	type acc struct {
		sum   float64
		count int
	}
	days := make(map[time.Time]map[models.Variable]*acc)

	add := func(day time.Time, v models.Variable, val *float64) {
		if val == nil {
			return
		}
		byVar := days[day]
		if byVar == nil {
			byVar = make(map[models.Variable]*acc)
			days[day] = byVar
		}
		a := byVar[v]
		if a == nil {
			a = &acc{}
			byVar[v] = a
		}
		a.sum += *val
		a.count++
	}

	for _, p := range points {
		day := p.Time.UTC().Truncate(24 * time.Hour)
		add(day, models.VarAirTemp, p.TempC)
		add(day, models.VarWindSpeed, p.WindSpeedMS)
		if p.PressureHPa != nil {
			kpa := *p.PressureHPa / 10.0
			add(day, models.VarPressure, &kpa)
		}
	}

	dates := make([]time.Time, 0, len(days))
	for d := range days {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	set := &models.SeriesSet{
		Coordinate: coord,
		AsOf:       asof,
		Series:     make(map[models.Variable]*models.HistoricalSeries),
	}
	for _, v := range []models.Variable{models.VarAirTemp, models.VarPressure, models.VarWindSpeed} {
		series := &models.HistoricalSeries{Variable: v}
		var last float64
		var seeded bool
		for _, d := range dates {
			if a := days[d][v]; a != nil && a.count > 0 {
				last = a.sum / float64(a.count)
				seeded = true
			} else {
				if !seeded {
					// Leading gap: nothing to carry forward yet.
					series.Gaps = append(series.Gaps, d)
					continue
				}
				series.Gaps = append(series.Gaps, d)
			}
			series.Values = append(series.Values, models.DailyValue{Date: d, Value: last})
		}
		set.Series[v] = series
	}

	set.Series[models.VarWaterTemp] = deriveWaterTemp(set.Series[models.VarAirTemp])
	return set
}

// deriveWaterTemp runs the EMA over the daily air-temperature series,
// seeded with the first air value.
func deriveWaterTemp(air *models.HistoricalSeries) *models.HistoricalSeries {
	out := &models.HistoricalSeries{Variable: models.VarWaterTemp}
	if air == nil || len(air.Values) == 0 {
		return out
	}
	prev := air.Values[0].Value
	for _, dv := range air.Values {
		prev = prev + WaterTempAlpha*(dv.Value-prev)
		out.Values = append(out.Values, models.DailyValue{Date: dv.Date, Value: prev})
	}
	out.Gaps = append(out.Gaps, air.Gaps...)
	return out
}
