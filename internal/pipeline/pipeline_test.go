package pipeline

import (
	"context"
	"database/sql"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"fishcast/internal/artifact"
	"fishcast/internal/forecast"
	"fishcast/internal/histcache"
	"fishcast/internal/models"
	"fishcast/internal/rating"
	"fishcast/internal/store"
)

var fixedNow = time.Date(2025, 10, 16, 12, 0, 0, 0, time.UTC)

// syntheticFetcher serves deterministic seasonal series ending at asof.
// constantWind degrades the wind series to a constant, which no model can
// fit, to exercise the fallback path.
type syntheticFetcher struct {
	calls        atomic.Int64
	constantWind bool
}

func (f *syntheticFetcher) Fetch(_ context.Context, coord models.Coordinate, asof time.Time) (*models.SeriesSet, error) {
	f.calls.Add(1)
	const days = 120
	set := &models.SeriesSet{
		Coordinate: coord,
		AsOf:       asof,
		Series:     make(map[models.Variable]*models.HistoricalSeries),
	}
	base := map[models.Variable]float64{
		models.VarAirTemp:   15,
		models.VarPressure:  101.3,
		models.VarWindSpeed: 4,
		models.VarWaterTemp: 13,
	}
	for _, v := range models.TrackedVariables {
		s := &models.HistoricalSeries{Variable: v}
		for i := 0; i < days; i++ {
			t := float64(i)
			val := base[v] + 2*math.Sin(2*math.Pi*t/30) + 0.3*math.Sin(5.1*t)
			if v == models.VarWindSpeed && f.constantWind {
				val = 4
			}
			s.Values = append(s.Values, models.DailyValue{
				Date:  asof.AddDate(0, 0, i-days+1),
				Value: val,
			})
		}
		set.Series[v] = s
	}
	return set, nil
}

func setupIndex(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	s := store.New(db, zerolog.Nop())
	require.NoError(t, s.Migrate())
	return s
}

func newTestPipeline(t *testing.T, fetcher *syntheticFetcher, opts ...Option) *Pipeline {
	t.Helper()
	cache := histcache.New(histcache.NewMemoryStore(), fetcher, zerolog.Nop())
	engine := rating.NewEngine(nil, zerolog.Nop())
	writer := artifact.NewWriter(t.TempDir())
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(cache, forecast.NewPlanner(), engine, writer, zerolog.Nop(), opts...)
}

func TestRunWithTargetDate(t *testing.T) {
	fetcher := &syntheticFetcher{}
	p := newTestPipeline(t, fetcher)

	req := models.ForecastRequest{
		Coordinate: models.Coordinate{Latitude: 50.4501, Longitude: 30.5234},
		TargetDate: time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC),
	}
	art, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	// Now is Oct 16, the archive lags 3 days, so history ends Oct 13 and
	// the horizon runs Oct 14 through the Oct 20 target.
	assert.Equal(t, time.Date(2025, 10, 14, 0, 0, 0, 0, time.UTC), art.Horizon.StartDate)
	assert.Equal(t, 7, art.Horizon.LengthDays)
	require.Len(t, art.Records, 7)
	assert.Equal(t, req.TargetDate, art.Records[6].Date)

	for _, rec := range art.Records {
		assert.True(t, rec.Rating.Valid())
		assert.NotEmpty(t, rec.Recommendation)
		assert.NotEmpty(t, rec.MoonPhase)
		assert.Empty(t, rec.FallbackVars)
	}
	assert.NotEmpty(t, art.Path)
	assert.NotEmpty(t, art.ID)
}

func TestRunDefaultHorizon(t *testing.T) {
	p := newTestPipeline(t, &syntheticFetcher{})

	art, err := p.Run(context.Background(), models.ForecastRequest{
		Coordinate: models.Coordinate{Latitude: 50.4501, Longitude: 30.5234},
	})
	require.NoError(t, err)
	assert.Equal(t, forecast.DefaultHorizonDays, art.Horizon.LengthDays)
	assert.False(t, art.Horizon.Extended)
}

func TestRunExtendedHorizon(t *testing.T) {
	p := newTestPipeline(t, &syntheticFetcher{})

	art, err := p.Run(context.Background(), models.ForecastRequest{
		Coordinate: models.Coordinate{Latitude: 50.4501, Longitude: 30.5234},
		TargetDate: time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, art.Horizon.Extended)
	assert.Equal(t, time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC), art.Horizon.EndDate())
}

func TestRunRejectsInvalidCoordinateBeforeFetching(t *testing.T) {
	fetcher := &syntheticFetcher{}
	p := newTestPipeline(t, fetcher)

	_, err := p.Run(context.Background(), models.ForecastRequest{
		Coordinate: models.Coordinate{Latitude: 200, Longitude: 30},
	})
	require.Error(t, err)
	assert.Equal(t, models.KindInvalidCoordinate, models.KindOf(err))
	assert.Equal(t, int64(0), fetcher.calls.Load(), "invalid input must not reach upstream")
}

func TestRunRejectsHorizonBeforeFetching(t *testing.T) {
	fetcher := &syntheticFetcher{}
	p := newTestPipeline(t, fetcher)

	_, err := p.Run(context.Background(), models.ForecastRequest{
		Coordinate: models.Coordinate{Latitude: 50, Longitude: 30},
		TargetDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.Equal(t, models.KindHorizon, models.KindOf(err))
	assert.Equal(t, int64(0), fetcher.calls.Load())

	var pe *models.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, models.Coordinate{Latitude: 50, Longitude: 30}, pe.Request.Coordinate)
}

func TestRunContainsModelFitFailure(t *testing.T) {
	p := newTestPipeline(t, &syntheticFetcher{constantWind: true})

	art, err := p.Run(context.Background(), models.ForecastRequest{
		Coordinate: models.Coordinate{Latitude: 50.4501, Longitude: 30.5234},
	})
	require.NoError(t, err, "one failed model must not fail the run")

	for _, rec := range art.Records {
		assert.Equal(t, []models.Variable{models.VarWindSpeed}, rec.FallbackVars)
		assert.InDelta(t, 4.0, rec.WindSpeedMS, 1e-9, "fallback holds the trailing mean")
		assert.True(t, rec.Rating.Valid())
	}
}

func TestRunIsDeterministic(t *testing.T) {
	req := models.ForecastRequest{
		Coordinate: models.Coordinate{Latitude: 50.4501, Longitude: 30.5234},
		TargetDate: time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC),
	}

	a, err := newTestPipeline(t, &syntheticFetcher{}).Run(context.Background(), req)
	require.NoError(t, err)
	b, err := newTestPipeline(t, &syntheticFetcher{}).Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, a.Records, b.Records, "identical inputs must produce identical records")
}

func TestRunReServesStoredArtifact(t *testing.T) {
	fetcher := &syntheticFetcher{}
	idx := setupIndex(t)
	p := newTestPipeline(t, fetcher, WithArtifactIndex(idx))

	req := models.ForecastRequest{
		Coordinate: models.Coordinate{Latitude: 50.4501, Longitude: 30.5234},
		TargetDate: time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC),
	}

	first, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, int64(1), fetcher.calls.Load())

	second, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), fetcher.calls.Load(), "an identical request must be re-served from the stored artifact")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, len(first.Records), len(second.Records))
	for i := range first.Records {
		assert.Equal(t, first.Records[i].Rating, second.Records[i].Rating)
		assert.InDelta(t, first.Records[i].AirTempC, second.Records[i].AirTempC, 0.01)
	}
}
