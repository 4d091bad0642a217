// Package forecast holds the per-variable statistical models and the
// horizon arithmetic that decides how far ahead they run.
package forecast

import (
	"time"

	"fishcast/internal/models"
)

const (
	// DefaultLagDays is the latency of the upstream archive: history is
	// only guaranteed up to today minus this many days.
	DefaultLagDays = 3

	// DefaultHorizonDays is the forecast length when no target date is
	// requested.
	DefaultHorizonDays = 7

	// DefaultMaxLookaheadDays caps how far past the latest known data a
	// target date may reach. Daily ARIMA forecasts degrade to climatology
	// well before this; anything beyond is refused rather than dressed up
	// as a forecast.
	DefaultMaxLookaheadDays = 60
)

// Planner translates a requested target date plus the upstream data latency
// into a concrete forecast horizon.
type Planner struct {
	LagDays          int
	DefaultDays      int
	MaxLookaheadDays int
}

func NewPlanner() *Planner {
	return &Planner{
		LagDays:          DefaultLagDays,
		DefaultDays:      DefaultHorizonDays,
		MaxLookaheadDays: DefaultMaxLookaheadDays,
	}
}

// AsOf returns the last date the upstream source is expected to cover,
// given the current time.
func (p *Planner) AsOf(now time.Time) time.Time {
	return now.UTC().Truncate(24 * time.Hour).AddDate(0, 0, -p.LagDays)
}

// Plan builds the horizon starting the day after latestKnown. With no
// target the horizon has the default length. With a target it always
// reaches the target; when bridging the data-latency gap needs more than
// the default length the horizon is extended and flagged.
func (p *Planner) Plan(latestKnown time.Time, target time.Time) (models.ForecastHorizon, error) {
	latestKnown = latestKnown.UTC().Truncate(24 * time.Hour)
	start := latestKnown.AddDate(0, 0, 1)

	if target.IsZero() {
		return models.ForecastHorizon{StartDate: start, LengthDays: p.DefaultDays}, nil
	}

	target = target.UTC().Truncate(24 * time.Hour)
	if !target.After(latestKnown) {
		return models.ForecastHorizon{}, models.Errf(models.KindHorizon, models.StagePlanning,
			"target date %s is not after latest known data %s: nothing to forecast",
			target.Format("2006-01-02"), latestKnown.Format("2006-01-02"))
	}

	length := daysBetween(latestKnown, target)
	if length > p.MaxLookaheadDays {
		return models.ForecastHorizon{}, models.Errf(models.KindHorizon, models.StagePlanning,
			"target date %s is %d days past latest known data, max lookahead is %d",
			target.Format("2006-01-02"), length, p.MaxLookaheadDays)
	}

	h := models.ForecastHorizon{StartDate: start, LengthDays: length}
	if length > p.DefaultDays {
		h.Extended = true
		h.ExtensionReason = "target date beyond default horizon; extended to bridge upstream data latency"
	}
	return h, nil
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
