// Package histcache maps geographic coordinates to cached multi-year
// historical series. Coordinates are quantized to a fixed precision so
// nearby requests share one cache key, and fetches for the same key are
// coalesced onto a single upstream call.
package histcache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"fishcast/internal/metrics"
	"fishcast/internal/models"
)

// DefaultStaleAfter is how long a cached series is trusted before the next
// request triggers a refresh.
const DefaultStaleAfter = 24 * time.Hour

// Store is the durable backing for cache entries. Implementations must make
// PutSeriesSet atomic: a concurrent reader sees either the old series or the
// new one, never a partial write.
type Store interface {
	GetEntry(key string) (*models.CacheEntry, error)
	GetSeriesSet(key string) (*models.SeriesSet, error)
	PutSeriesSet(key string, set *models.SeriesSet, refreshedAt time.Time) error
}

// Fetcher retrieves the historical series for a coordinate from the
// upstream source, covering history up to asof.
type Fetcher interface {
	Fetch(ctx context.Context, coord models.Coordinate, asof time.Time) (*models.SeriesSet, error)
}

// Cache implements the coordinate cache with a single-flight fetch
// discipline keyed by the quantized coordinate token.
type Cache struct {
	store      Store
	fetcher    Fetcher
	staleAfter time.Duration
	log        zerolog.Logger
	group      singleflight.Group
	now        func() time.Time
}

type Option func(*Cache)

// WithStaleAfter overrides the staleness threshold.
func WithStaleAfter(d time.Duration) Option {
	return func(c *Cache) { c.staleAfter = d }
}

// WithClock overrides the cache clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(store Store, fetcher Fetcher, log zerolog.Logger, opts ...Option) *Cache {
	c := &Cache{
		store:      store,
		fetcher:    fetcher,
		staleAfter: DefaultStaleAfter,
		log:        log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve maps a coordinate to its cache key.
func (c *Cache) Resolve(coord models.Coordinate) string {
	return Key(coord)
}

// GetOrFetch returns the historical series for a coordinate, fetching from
// upstream when the cache has no entry, the entry is stale, the cached data
// does not reach asof, or the caller forces a refresh.
//
// Concurrent calls for the same key share one fetch. The fetch itself runs
// on a context detached from the caller, so cancelling one waiter neither
// aborts the shared fetch nor leaves a partial cache write behind; the
// cancelled caller just stops waiting.
func (c *Cache) GetOrFetch(ctx context.Context, coord models.Coordinate, asof time.Time, force bool) (*models.SeriesSet, error) {
	key := c.Resolve(coord)

	if !force {
		entry, err := c.store.GetEntry(key)
		if err != nil {
			return nil, models.WrapErr(models.KindInternal, models.StageFetching, err)
		}
		if entry != nil && c.fresh(entry, asof) {
			set, err := c.store.GetSeriesSet(key)
			if err != nil {
				return nil, models.WrapErr(models.KindInternal, models.StageFetching, err)
			}
			if set != nil {
				metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
				return set, nil
			}
		}
		if entry != nil {
			metrics.CacheLookupsTotal.WithLabelValues("stale").Inc()
		} else {
			metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		}
	}

	canonical := Quantize(coord)
	ch := c.group.DoChan(key, func() (any, error) {
		// Detached from the caller: a single waiter cancelling must not
		// abort a fetch other requests are waiting on.
		fetchCtx := context.WithoutCancel(ctx)
		set, err := c.fetcher.Fetch(fetchCtx, canonical, asof)
		if err != nil {
			return nil, err
		}
		if err := c.store.PutSeriesSet(key, set, c.now()); err != nil {
			return nil, models.WrapErr(models.KindInternal, models.StageFetching, err)
		}
		c.log.Debug().Str("key", key).Time("asof", asof).Msg("historical series cached")
		return set, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.CoalescedFetchesTotal.Inc()
		}
		if res.Err != nil {
			return nil, models.WrapErr(models.KindUpstreamFetch, models.StageFetching, res.Err)
		}
		return res.Val.(*models.SeriesSet), nil
	case <-ctx.Done():
		return nil, models.WrapErr(models.KindUpstreamFetch, models.StageFetching, ctx.Err())
	}
}

func (c *Cache) fresh(entry *models.CacheEntry, asof time.Time) bool {
	if entry.AsOf.Before(asof) {
		return false
	}
	return c.now().Sub(entry.RefreshedAt) < c.staleAfter
}
