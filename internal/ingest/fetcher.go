package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"fishcast/internal/models"
)

const (
	// DefaultHistoryDays is how much history one fetch covers. 400 days
	// gives the models a full seasonal cycle plus margin.
	DefaultHistoryDays = 400

	// MinHistoryDays is the minimum usable series length. Below this the
	// fetch fails with InsufficientHistory rather than letting a model fit
	// against a few weeks of data.
	MinHistoryDays = 60
)

// HistoricalFetcher adapts the archive client to the cache's Fetcher
// contract: fetch hourly history ending at asof, aggregate to daily series,
// and enforce the minimum-history requirement.
type HistoricalFetcher struct {
	client      *Client
	historyDays int
	minDays     int
	timeout     time.Duration
	log         zerolog.Logger
}

func NewHistoricalFetcher(client *Client, historyDays int, timeout time.Duration, log zerolog.Logger) *HistoricalFetcher {
	if historyDays <= 0 {
		historyDays = DefaultHistoryDays
	}
	return &HistoricalFetcher{
		client:      client,
		historyDays: historyDays,
		minDays:     MinHistoryDays,
		timeout:     timeout,
		log:         log,
	}
}

func (f *HistoricalFetcher) Fetch(ctx context.Context, coord models.Coordinate, asof time.Time) (*models.SeriesSet, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	start := asof.AddDate(0, 0, -(f.historyDays - 1))
	f.log.Info().
		Str("coord", coord.String()).
		Time("start", start).
		Time("end", asof).
		Msg("fetching historical series")

	points, err := f.client.FetchHourly(ctx, coord.Latitude, coord.Longitude, start, asof)
	if err != nil {
		return nil, models.WrapErr(models.KindUpstreamFetch, models.StageFetching, err)
	}

	set := AggregateDaily(coord, points, asof)
	for _, v := range models.TrackedVariables {
		s := set.Series[v]
		if s == nil || s.Len() < f.minDays {
			got := 0
			if s != nil {
				got = s.Len()
			}
			return nil, models.Errf(models.KindInsufficientHistory, models.StageFetching,
				"series %s has %d days, need at least %d", v, got, f.minDays)
		}
	}
	return set, nil
}
