package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Variable identifies one of the tracked weather series. Values double as
// column names in persisted artifacts, so they are stable identifiers.
type Variable string

const (
	VarAirTemp   Variable = "air_temp_c"
	VarPressure  Variable = "pressure_kpa"
	VarWindSpeed Variable = "wind_speed_ms"
	VarWaterTemp Variable = "water_temp_c"
)

// TrackedVariables lists every series the pipeline fetches and forecasts,
// in artifact column order.
var TrackedVariables = []Variable{VarAirTemp, VarPressure, VarWindSpeed, VarWaterTemp}

// Coordinate is a geographic point in decimal degrees.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// Validate checks the coordinate against the WGS84 ranges.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return &PipelineError{Kind: KindInvalidCoordinate, Stage: StagePlanning,
			Err: fmt.Errorf("latitude %v outside [-90, 90]", c.Latitude)}
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return &PipelineError{Kind: KindInvalidCoordinate, Stage: StagePlanning,
			Err: fmt.Errorf("longitude %v outside [-180, 180]", c.Longitude)}
	}
	return nil
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.4f,%.4f", c.Latitude, c.Longitude)
}

// DailyValue is one (date, value) point of a historical series. Dates are
// UTC midnight.
type DailyValue struct {
	Date  time.Time
	Value float64
}

// HistoricalSeries is an ordered-by-date daily series for one variable.
// Dates are strictly increasing; gaps that survived aggregation are listed
// in Gaps rather than interpolated silently.
type HistoricalSeries struct {
	Variable Variable
	Values   []DailyValue
	Gaps     []time.Time
}

// Len returns the number of observed days.
func (s *HistoricalSeries) Len() int { return len(s.Values) }

// LatestDate returns the date of the last observation, or the zero time for
// an empty series.
func (s *HistoricalSeries) LatestDate() time.Time {
	if len(s.Values) == 0 {
		return time.Time{}
	}
	return s.Values[len(s.Values)-1].Date
}

// Floats returns the raw value sequence in date order.
func (s *HistoricalSeries) Floats() []float64 {
	out := make([]float64, len(s.Values))
	for i, v := range s.Values {
		out[i] = v.Value
	}
	return out
}

// SeriesSet groups the per-variable historical series produced by one fetch.
type SeriesSet struct {
	Coordinate Coordinate
	AsOf       time.Time // last date covered by the upstream source
	Series     map[Variable]*HistoricalSeries
}

// LatestDate returns the most recent date common to all series, i.e. the
// earliest of the per-series latest dates.
func (ss *SeriesSet) LatestDate() time.Time {
	var latest time.Time
	for _, s := range ss.Series {
		d := s.LatestDate()
		if latest.IsZero() || d.Before(latest) {
			latest = d
		}
	}
	return latest
}

// CacheEntry describes one cached coordinate: the quantized key, the
// canonical coordinate the series was fetched for, the last date the
// upstream source covered, and when the fetch happened.
type CacheEntry struct {
	Key         string
	Coordinate  Coordinate
	AsOf        time.Time
	RefreshedAt time.Time
}

// ForecastHorizon is the resolved contiguous date range for one run.
type ForecastHorizon struct {
	StartDate       time.Time
	LengthDays      int
	Extended        bool
	ExtensionReason string
}

// Dates materializes the horizon as consecutive UTC days.
func (h ForecastHorizon) Dates() []time.Time {
	out := make([]time.Time, h.LengthDays)
	for i := range out {
		out[i] = h.StartDate.AddDate(0, 0, i)
	}
	return out
}

// EndDate is the last day covered by the horizon.
func (h ForecastHorizon) EndDate() time.Time {
	return h.StartDate.AddDate(0, 0, h.LengthDays-1)
}

// ModelOrder is an ARIMA (p,d,q) specification.
type ModelOrder struct {
	P, D, Q int
}

func (o ModelOrder) String() string { return fmt.Sprintf("(%d,%d,%d)", o.P, o.D, o.Q) }

// VariableForecast holds the point forecast for one variable across the
// horizon. Fallback marks values substituted after a model-fit failure.
type VariableForecast struct {
	Variable Variable
	Values   []float64 // length == horizon.LengthDays
	Order    ModelOrder
	Fallback bool
	FitErr   error // cause of the fallback, nil otherwise
}

// Rating is one of the five ordered suitability levels.
type Rating string

const (
	RatingVeryPoor  Rating = "very poor"
	RatingPoor      Rating = "poor"
	RatingAverage   Rating = "average"
	RatingGood      Rating = "good"
	RatingExcellent Rating = "excellent"
)

// Ratings lists the levels from worst to best.
var Ratings = []Rating{RatingVeryPoor, RatingPoor, RatingAverage, RatingGood, RatingExcellent}

// Valid reports whether r is a member of the fixed five-level set.
func (r Rating) Valid() bool {
	for _, known := range Ratings {
		if r == known {
			return true
		}
	}
	return false
}

// RatingFromScore maps a 0..4 band score onto the ordered rating set,
// clamping out-of-range scores toward the conservative end.
func RatingFromScore(score int) Rating {
	if score < 0 {
		score = 0
	}
	if score > 4 {
		score = 4
	}
	return Ratings[score]
}

// DailyRecord is one fully-resolved day of the forecast artifact.
type DailyRecord struct {
	Date           time.Time
	AirTempC       float64
	PressureKPa    float64
	WindSpeedMS    float64
	WaterTempC     float64
	MoonPhase      string
	Rating         Rating
	Recommendation string
	FallbackVars   []Variable // variables whose values came from a fallback
}

// Value returns the record's value for a tracked variable.
func (r DailyRecord) Value(v Variable) float64 {
	switch v {
	case VarAirTemp:
		return r.AirTempC
	case VarPressure:
		return r.PressureKPa
	case VarWindSpeed:
		return r.WindSpeedMS
	case VarWaterTemp:
		return r.WaterTempC
	}
	return math.NaN()
}

// FallbackList renders FallbackVars as a stable comma-joined string for
// persistence. Empty when no substitution occurred.
func (r DailyRecord) FallbackList() string {
	if len(r.FallbackVars) == 0 {
		return ""
	}
	parts := make([]string, len(r.FallbackVars))
	for i, v := range r.FallbackVars {
		parts[i] = string(v)
	}
	return strings.Join(parts, ",")
}

// ForecastRequest is the canonical, already-normalized input to the core
// pipeline. TargetDate may be zero, meaning "default horizon".
type ForecastRequest struct {
	Coordinate Coordinate
	TargetDate time.Time
}

// ForecastArtifact is the immutable result of one pipeline run.
type ForecastArtifact struct {
	ID        string
	Request   ForecastRequest
	Horizon   ForecastHorizon
	Records   []DailyRecord
	Path      string
	CreatedAt time.Time
}
