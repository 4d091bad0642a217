package forecast

import (
	"fishcast/internal/models"
)

// FallbackWindowDays is the trailing window whose historical mean stands in
// for a variable whose model fit failed.
const FallbackWindowDays = 14

// FallbackValues returns the substitute forecast for a variable: the mean
// of the last FallbackWindowDays historical observations, held constant
// across the horizon.
func FallbackValues(series *models.HistoricalSeries, steps int) []float64 {
	vals := series.Floats()
	if len(vals) == 0 {
		return make([]float64, steps)
	}
	start := len(vals) - FallbackWindowDays
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, v := range vals[start:] {
		sum += v
	}
	mean := sum / float64(len(vals)-start)
	out := make([]float64, steps)
	for i := range out {
		out[i] = mean
	}
	return out
}

// Merge assembles per-variable forecasts into one ordered record per
// horizon day, deriving the lunar phase from the calendar date. Ratings and
// recommendations are filled in by the rating engine afterwards.
//
// Water temperature gets special fallback treatment: when its model failed
// but air temperature is available, the historical EMA relationship is
// continued over the forecast air temperatures instead of using a flat
// historical mean.
func Merge(set *models.SeriesSet, forecasts map[models.Variable]*models.VariableForecast, horizon models.ForecastHorizon) ([]models.DailyRecord, error) {
	for _, v := range models.TrackedVariables {
		f := forecasts[v]
		if f == nil {
			return nil, models.Errf(models.KindInternal, models.StageMerging, "missing forecast for %s", v)
		}
		if len(f.Values) != horizon.LengthDays {
			return nil, models.Errf(models.KindInternal, models.StageMerging,
				"forecast for %s has %d values, horizon needs %d", v, len(f.Values), horizon.LengthDays)
		}
	}

	air := forecasts[models.VarAirTemp]
	water := forecasts[models.VarWaterTemp]
	if water.Fallback && !air.Fallback {
		if hist := set.Series[models.VarWaterTemp]; hist != nil && hist.Len() > 0 {
			water = &models.VariableForecast{
				Variable: models.VarWaterTemp,
				Values:   continueEMA(hist.Values[hist.Len()-1].Value, air.Values),
				Order:    water.Order,
				Fallback: true,
				FitErr:   water.FitErr,
			}
			forecasts[models.VarWaterTemp] = water
		}
	}

	dates := horizon.Dates()
	records := make([]models.DailyRecord, len(dates))
	for i, date := range dates {
		rec := models.DailyRecord{
			Date:        date,
			AirTempC:    air.Values[i],
			PressureKPa: forecasts[models.VarPressure].Values[i],
			WindSpeedMS: forecasts[models.VarWindSpeed].Values[i],
			WaterTempC:  water.Values[i],
			MoonPhase:   MoonPhase(date),
		}
		for _, v := range models.TrackedVariables {
			if forecasts[v].Fallback {
				rec.FallbackVars = append(rec.FallbackVars, v)
			}
		}
		records[i] = rec
	}
	return records, nil
}

// continueEMA mirrors the water-temperature smoothing used when building
// the historical series (ingest.WaterTempAlpha); duplicated here to keep
// the merge step free of an ingest dependency.
const waterTempAlpha = 0.12

func continueEMA(last float64, airVals []float64) []float64 {
	out := make([]float64, len(airVals))
	prev := last
	for i, a := range airVals {
		prev = prev + waterTempAlpha*(a-prev)
		out[i] = prev
	}
	return out
}
