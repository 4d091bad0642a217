package forecast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fishcast/internal/models"
)

// syntheticSeries builds a deterministic trend-plus-seasonality series with
// a pseudo-noise term, long enough for every default order.
func syntheticSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		t := float64(i)
		out[i] = 15 + 0.01*t + 5*math.Sin(2*math.Pi*t/30) + 0.8*math.Sin(7.3*t)
	}
	return out
}

func TestFitARIMAAndForecastLength(t *testing.T) {
	series := syntheticSeries(365)
	for v, order := range DefaultOrders {
		t.Run(string(v), func(t *testing.T) {
			model, err := FitARIMA(series, order)
			require.NoError(t, err)

			for _, steps := range []int{1, 7, 30} {
				values, err := model.Forecast(steps)
				require.NoError(t, err)
				require.Len(t, values, steps)
				for _, fv := range values {
					assert.False(t, math.IsNaN(fv))
					assert.False(t, math.IsInf(fv, 0))
				}
			}
		})
	}
}

func TestForecastIsDeterministic(t *testing.T) {
	series := syntheticSeries(365)
	order := models.ModelOrder{P: 1, D: 1, Q: 3}

	a, err := FitARIMA(series, order)
	require.NoError(t, err)
	b, err := FitARIMA(series, order)
	require.NoError(t, err)

	fa, err := a.Forecast(14)
	require.NoError(t, err)
	fb, err := b.Forecast(14)
	require.NoError(t, err)
	assert.Equal(t, fa, fb, "identical input must produce identical forecasts")
}

func TestForecastStaysNearSeriesScale(t *testing.T) {
	series := syntheticSeries(365)
	model, err := FitARIMA(series, models.ModelOrder{P: 1, D: 1, Q: 3})
	require.NoError(t, err)

	values, err := model.Forecast(14)
	require.NoError(t, err)
	for _, v := range values {
		assert.InDelta(t, 17.5, v, 25, "forecast should stay within the series' broad range")
	}
}

func TestFitARIMARejectsShortSeries(t *testing.T) {
	_, err := FitARIMA(syntheticSeries(20), models.ModelOrder{P: 1, D: 1, Q: 1})
	require.Error(t, err)
	assert.Equal(t, models.KindModelFit, models.KindOf(err))
}

func TestFitARIMARejectsConstantSeries(t *testing.T) {
	series := make([]float64, 200)
	for i := range series {
		series[i] = 101.3
	}
	_, err := FitARIMA(series, models.ModelOrder{P: 1, D: 1, Q: 3})
	require.Error(t, err)
	assert.Equal(t, models.KindModelFit, models.KindOf(err))
}

func TestFitARIMARejectsDegenerateOrders(t *testing.T) {
	series := syntheticSeries(200)
	_, err := FitARIMA(series, models.ModelOrder{P: 0, D: 1, Q: 0})
	require.Error(t, err)
	_, err = FitARIMA(series, models.ModelOrder{P: -1, D: 0, Q: 1})
	require.Error(t, err)
}

func TestForecastRejectsNonPositiveSteps(t *testing.T) {
	model, err := FitARIMA(syntheticSeries(200), models.ModelOrder{P: 1, D: 1, Q: 1})
	require.NoError(t, err)
	_, err = model.Forecast(0)
	require.Error(t, err)
}

func TestSelectOrderDeterministic(t *testing.T) {
	series := syntheticSeries(200)
	first, err := SelectOrder(series)
	require.NoError(t, err)
	second, err := SelectOrder(series)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFallbackValues(t *testing.T) {
	series := &models.HistoricalSeries{Variable: models.VarAirTemp}
	for i := 0; i < 30; i++ {
		val := 10.0
		if i >= 16 {
			val = 20.0 // trailing window is the last 14 days
		}
		series.Values = append(series.Values, models.DailyValue{
			Date:  date(2025, 9, 1).AddDate(0, 0, i),
			Value: val,
		})
	}

	values := FallbackValues(series, 5)
	require.Len(t, values, 5)
	for _, v := range values {
		assert.InDelta(t, 20.0, v, 1e-9)
	}
}

func TestFallbackValuesShortSeries(t *testing.T) {
	series := &models.HistoricalSeries{
		Variable: models.VarWindSpeed,
		Values: []models.DailyValue{
			{Date: date(2025, 10, 1), Value: 2},
			{Date: date(2025, 10, 2), Value: 4},
		},
	}
	values := FallbackValues(series, 3)
	require.Len(t, values, 3)
	for _, v := range values {
		assert.InDelta(t, 3.0, v, 1e-9)
	}
}
