package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"fishcast/internal/models"
)

// Clients name coordinate fields inconsistently. Each canonical field has an
// explicit alias list; anything else is rejected rather than guessed at.
var (
	latKeys  = []string{"lat", "latitude"}
	lonKeys  = []string{"lon", "lng", "longitude"}
	dateKeys = []string{"date", "target_date"}
)

// decodeRequest normalizes a forecast request from the JSON body. Numeric
// fields accept both JSON numbers and numeric strings, since form-ish
// clients send "49.5" as a string.
func decodeRequest(r *http.Request) (models.ForecastRequest, error) {
	var req models.ForecastRequest

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return req, fmt.Errorf("decode request body: %w", err)
	}

	lat, ok, err := pickFloat(raw, latKeys)
	if err != nil {
		return req, err
	}
	if !ok {
		return req, fmt.Errorf("missing latitude (one of %v)", latKeys)
	}
	lon, ok, err := pickFloat(raw, lonKeys)
	if err != nil {
		return req, err
	}
	if !ok {
		return req, fmt.Errorf("missing longitude (one of %v)", lonKeys)
	}
	req.Coordinate = models.Coordinate{Latitude: lat, Longitude: lon}

	if dateStr, ok, err := pickString(raw, dateKeys); err != nil {
		return req, err
	} else if ok && dateStr != "" {
		target, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
		if err != nil {
			return req, fmt.Errorf("target date %q: want YYYY-MM-DD", dateStr)
		}
		req.TargetDate = target
	}
	return req, nil
}

func pickFloat(raw map[string]json.RawMessage, keys []string) (float64, bool, error) {
	for _, k := range keys {
		msg, ok := raw[k]
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(msg, &f); err == nil {
			return f, true, nil
		}
		var s string
		if err := json.Unmarshal(msg, &s); err == nil {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return 0, false, fmt.Errorf("field %q: %q is not a number", k, s)
			}
			return f, true, nil
		}
		return 0, false, fmt.Errorf("field %q: want a number", k)
	}
	return 0, false, nil
}

func pickString(raw map[string]json.RawMessage, keys []string) (string, bool, error) {
	for _, k := range keys {
		msg, ok := raw[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return "", false, fmt.Errorf("field %q: want a string", k)
		}
		return s, true, nil
	}
	return "", false, nil
}
