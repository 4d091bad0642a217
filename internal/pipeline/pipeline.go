// Package pipeline runs the end-to-end forecast: plan the horizon, resolve
// historical series through the coordinate cache, fit and forecast each
// variable, merge the results into daily records, rate them, and persist the
// artifact.
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"fishcast/internal/artifact"
	"fishcast/internal/forecast"
	"fishcast/internal/histcache"
	"fishcast/internal/metrics"
	"fishcast/internal/models"
	"fishcast/internal/rating"
	"fishcast/internal/store"
)

// DefaultFitWorkers bounds concurrent model fits within one run.
const DefaultFitWorkers = 4

// ArtifactIndex records where artifacts live so identical requests can be
// re-served without recomputation.
type ArtifactIndex interface {
	InsertArtifact(meta store.ArtifactMeta) error
	LatestArtifact(coordToken string, targetDate string, asof time.Time) (*store.ArtifactMeta, error)
}

type Pipeline struct {
	cache   *histcache.Cache
	planner *forecast.Planner
	engine  *rating.Engine
	writer  *artifact.Writer
	mirror  *artifact.Mirror // nil disables mirroring
	index   ArtifactIndex    // nil disables reuse and indexing
	log     zerolog.Logger

	orders     map[models.Variable]models.ModelOrder
	workers    int
	fitTimeout time.Duration
	reuse      bool
	now        func() time.Time
}

type Option func(*Pipeline)

// WithFitWorkers bounds how many variables are fitted concurrently.
func WithFitWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithFitTimeout bounds the whole forecasting stage of one run.
func WithFitTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.fitTimeout = d }
}

// WithOrders overrides the per-variable model orders.
func WithOrders(orders map[models.Variable]models.ModelOrder) Option {
	return func(p *Pipeline) { p.orders = orders }
}

// WithArtifactIndex enables the durable artifact index and, with it,
// idempotent re-serving of identical requests.
func WithArtifactIndex(idx ArtifactIndex) Option {
	return func(p *Pipeline) {
		p.index = idx
		p.reuse = true
	}
}

// WithMirror enables best-effort FTP mirroring of written artifacts.
func WithMirror(m *artifact.Mirror) Option {
	return func(p *Pipeline) { p.mirror = m }
}

// WithClock overrides the pipeline clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(cache *histcache.Cache, planner *forecast.Planner, engine *rating.Engine, writer *artifact.Writer, log zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cache:   cache,
		planner: planner,
		engine:  engine,
		writer:  writer,
		log:     log,
		orders:  forecast.DefaultOrders,
		workers: DefaultFitWorkers,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one forecast request and returns the finished artifact. The
// returned error, when non-nil, is always a *models.PipelineError carrying
// the failed stage, the error kind, and the originating request.
func (p *Pipeline) Run(ctx context.Context, req models.ForecastRequest) (*models.ForecastArtifact, error) {
	start := p.now()
	runID := uuid.NewString()
	log := p.log.With().Str("run_id", runID).
		Float64("lat", req.Coordinate.Latitude).
		Float64("lon", req.Coordinate.Longitude).
		Logger()

	art, err := p.run(ctx, log, runID, req)
	if err != nil {
		metrics.ForecastRunsTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("forecast run failed")
		return nil, attachRequest(err, req)
	}
	metrics.ForecastRunsTotal.WithLabelValues("ok").Inc()
	metrics.ForecastRunDuration.Observe(p.now().Sub(start).Seconds())
	log.Info().
		Time("start", art.Horizon.StartDate).
		Int("days", art.Horizon.LengthDays).
		Str("path", art.Path).
		Msg("forecast run complete")
	return art, nil
}

func (p *Pipeline) run(ctx context.Context, log zerolog.Logger, runID string, req models.ForecastRequest) (*models.ForecastArtifact, error) {
	// PLANNING: reject bad input before any upstream work.
	if err := req.Coordinate.Validate(); err != nil {
		return nil, err
	}
	asof := p.planner.AsOf(p.now())
	if _, err := p.planner.Plan(asof, req.TargetDate); err != nil {
		return nil, err
	}

	if art, ok := p.reusable(log, req, asof); ok {
		return art, nil
	}

	// FETCHING: resolve history through the coordinate cache.
	set, err := p.cache.GetOrFetch(ctx, req.Coordinate, asof, false)
	if err != nil {
		return nil, err
	}

	// Re-plan from the data actually available; the upstream archive can
	// trail the expected asof by extra days.
	horizon, err := p.planner.Plan(set.LatestDate(), req.TargetDate)
	if err != nil {
		return nil, err
	}

	// FORECASTING: fit and forecast each variable, bounded concurrency.
	forecasts, err := p.forecastAll(ctx, log, set, horizon)
	if err != nil {
		return nil, err
	}

	// MERGING: one record per horizon day.
	records, err := forecast.Merge(set, forecasts, horizon)
	if err != nil {
		return nil, err
	}

	// RATING: rule-based always, summarizer enrichment when configured.
	for i := range records {
		p.engine.Rate(ctx, &records[i])
	}

	art := &models.ForecastArtifact{
		ID:        runID,
		Request:   req,
		Horizon:   horizon,
		Records:   records,
		CreatedAt: p.now(),
	}
	if err := p.persist(log, art, asof); err != nil {
		return nil, err
	}
	return art, nil
}

// reusable returns a previously computed artifact for identical inputs, when
// the index knows one and its file still reads back cleanly.
func (p *Pipeline) reusable(log zerolog.Logger, req models.ForecastRequest, asof time.Time) (*models.ForecastArtifact, bool) {
	if !p.reuse || p.index == nil {
		return nil, false
	}
	meta, err := p.index.LatestArtifact(histcache.Key(req.Coordinate), targetString(req.TargetDate), asof)
	if err != nil || meta == nil {
		return nil, false
	}
	records, err := artifact.Read(meta.Path)
	if err != nil {
		log.Warn().Err(err).Str("path", meta.Path).Msg("stored artifact unreadable, recomputing")
		return nil, false
	}
	if len(records) == 0 {
		return nil, false
	}
	log.Info().Str("path", meta.Path).Msg("re-serving stored artifact")
	return &models.ForecastArtifact{
		ID:      meta.ID,
		Request: req,
		Horizon: models.ForecastHorizon{
			StartDate:  records[0].Date,
			LengthDays: len(records),
		},
		Records:   records,
		Path:      meta.Path,
		CreatedAt: meta.CreatedAt,
	}, true
}

// forecastAll fits every tracked variable and forecasts across the horizon.
// A model-fit failure on one variable substitutes fallback values and marks
// the forecast; any other failure aborts the run.
func (p *Pipeline) forecastAll(ctx context.Context, log zerolog.Logger, set *models.SeriesSet, horizon models.ForecastHorizon) (map[models.Variable]*models.VariableForecast, error) {
	results := make([]*models.VariableForecast, len(models.TrackedVariables))

	if p.fitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.fitTimeout)
		defer cancel()
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, v := range models.TrackedVariables {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return models.WrapErr(models.KindInternal, models.StageForecasting, err)
			}
			series := set.Series[v]
			if series == nil || series.Len() == 0 {
				return models.Errf(models.KindInsufficientHistory, models.StageForecasting,
					"no historical series for %s", v)
			}
			results[i] = p.forecastOne(log, v, series, horizon.LengthDays)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[models.Variable]*models.VariableForecast, len(results))
	for i, v := range models.TrackedVariables {
		out[v] = results[i]
	}
	return out, nil
}

func (p *Pipeline) forecastOne(log zerolog.Logger, v models.Variable, series *models.HistoricalSeries, steps int) *models.VariableForecast {
	order := p.orders[v]

	values, err := fitAndForecast(series.Floats(), order, steps)
	if err == nil {
		return &models.VariableForecast{Variable: v, Values: values, Order: order}
	}

	metrics.ModelFitFailuresTotal.WithLabelValues(string(v)).Inc()
	log.Warn().Err(err).Str("variable", string(v)).Str("order", order.String()).
		Msg("model fit failed, substituting trailing-mean fallback")
	return &models.VariableForecast{
		Variable: v,
		Values:   forecast.FallbackValues(series, steps),
		Order:    order,
		Fallback: true,
		FitErr:   err,
	}
}

func fitAndForecast(values []float64, order models.ModelOrder, steps int) ([]float64, error) {
	model, err := forecast.FitARIMA(values, order)
	if err != nil {
		return nil, err
	}
	return model.Forecast(steps)
}

// persist writes the artifact CSV and manifest, records the index row, and
// mirrors the files. Index and mirror failures are logged but do not fail a
// run whose artifact is already on disk.
func (p *Pipeline) persist(log zerolog.Logger, art *models.ForecastArtifact, asof time.Time) error {
	path, err := p.writer.Write(art)
	if err != nil {
		return models.WrapErr(models.KindInternal, models.StageRating, err)
	}
	art.Path = path

	if p.index != nil {
		meta := store.ArtifactMeta{
			ID:         art.ID,
			CoordToken: histcache.Key(art.Request.Coordinate),
			Coordinate: art.Request.Coordinate,
			AsOf:       asof,
			Path:       path,
			CreatedAt:  art.CreatedAt,
		}
		if t := targetString(art.Request.TargetDate); t != "" {
			meta.TargetDate = sql.NullString{String: t, Valid: true}
		}
		if err := p.index.InsertArtifact(meta); err != nil {
			log.Warn().Err(err).Msg("artifact index insert failed")
		}
	}

	if p.mirror != nil {
		manifestPath := path[:len(path)-len(".csv")] + ".json"
		if err := p.mirror.Upload(path, manifestPath); err != nil {
			log.Warn().Err(err).Msg("artifact mirror upload failed")
		}
	}
	return nil
}

func targetString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func attachRequest(err error, req models.ForecastRequest) error {
	var pe *models.PipelineError
	if errors.As(err, &pe) {
		pe.Request = req
		return pe
	}
	return &models.PipelineError{Kind: models.KindInternal, Stage: models.StageFailed, Request: req, Err: err}
}
