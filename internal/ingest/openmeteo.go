// Package ingest retrieves multi-year hourly weather history from the
// Open-Meteo archive API and aggregates it into the daily per-variable
// series the forecasting pipeline fits its models against.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"fishcast/internal/metrics"
)

// DefaultBaseURL is the Open-Meteo historical weather endpoint.
const DefaultBaseURL = "https://archive-api.open-meteo.com/v1/archive"

const fetchMaxElapsed = 2 * time.Minute

// Client fetches hourly history for a coordinate and date range.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

func NewClient(log zerolog.Logger) *Client {
	return &Client{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
		log:     log,
	}
}

// NewClientWithBaseURL points the client at an alternate endpoint, for tests.
func NewClientWithBaseURL(baseURL string, log zerolog.Logger) *Client {
	c := NewClient(log)
	c.baseURL = baseURL
	return c
}

type archiveResponse struct {
	Hourly struct {
		Time            []string   `json:"time"`
		Temperature2m   []*float64 `json:"temperature_2m"`
		SurfacePressure []*float64 `json:"surface_pressure"`
		WindSpeed10m    []*float64 `json:"wind_speed_10m"`
	} `json:"hourly"`
}

// HourlyPoint is one hour of upstream history. Nil fields are hours the
// archive had no value for.
type HourlyPoint struct {
	Time        time.Time
	TempC       *float64
	PressureHPa *float64
	WindSpeedMS *float64
}

// FetchHourly downloads hourly temperature, surface pressure, and wind
// speed for [start, end] (inclusive, UTC days). Transient upstream failures
// are retried with exponential backoff; malformed payloads are permanent.
func (c *Client) FetchHourly(ctx context.Context, lat, lon float64, start, end time.Time) ([]HourlyPoint, error) {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", lat))
	params.Set("longitude", fmt.Sprintf("%.4f", lon))
	params.Set("start_date", start.Format("2006-01-02"))
	params.Set("end_date", end.Format("2006-01-02"))
	params.Set("hourly", "temperature_2m,surface_pressure,wind_speed_10m")
	params.Set("wind_speed_unit", "ms")
	params.Set("timezone", "UTC")
	reqURL := c.baseURL + "?" + params.Encode()

	var body []byte
	operation := func() error {
		began := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		resp, err := c.client.Do(req)
		if err != nil {
			metrics.UpstreamCallsTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("fetch archive: %w", err)
		}
		defer resp.Body.Close()
		metrics.UpstreamLatency.Observe(time.Since(began).Seconds())

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			metrics.UpstreamCallsTotal.WithLabelValues(fmt.Sprint(resp.StatusCode)).Inc()
			return fmt.Errorf("archive status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			metrics.UpstreamCallsTotal.WithLabelValues(fmt.Sprint(resp.StatusCode)).Inc()
			return backoff.Permanent(fmt.Errorf("archive status %d: %s", resp.StatusCode, truncate(b, 300)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		metrics.UpstreamCallsTotal.WithLabelValues("200").Inc()
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = fetchMaxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}

	var data archiveResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal archive response: %w", err)
	}
	h := data.Hourly
	if len(h.Time) == 0 {
		return nil, fmt.Errorf("malformed archive response: no hourly/time")
	}
	if len(h.Temperature2m) != len(h.Time) || len(h.SurfacePressure) != len(h.Time) || len(h.WindSpeed10m) != len(h.Time) {
		return nil, fmt.Errorf("malformed archive response: hourly series length mismatch")
	}

	points := make([]HourlyPoint, 0, len(h.Time))
	for i, ts := range h.Time {
		// Open-Meteo emits local ISO timestamps without zone; we request UTC.
		t, err := time.ParseInLocation("2006-01-02T15:04", ts, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse hourly timestamp %q: %w", ts, err)
		}
		points = append(points, HourlyPoint{
			Time:        t,
			TempC:       h.Temperature2m[i],
			PressureHPa: h.SurfacePressure[i],
			WindSpeedMS: h.WindSpeed10m[i],
		})
	}
	return points, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
