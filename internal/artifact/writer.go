// Package artifact persists finished forecast runs as immutable CSV files
// with a JSON manifest sidecar. Writes go to a temporary file first and are
// published with an atomic rename, so readers never observe a partial
// artifact.
package artifact

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"fishcast/internal/histcache"
	"fishcast/internal/models"
)

const stampLayout = "20060102T150405Z"

var columns = []string{
	"date", "air_temp_c", "pressure_kpa", "wind_speed_ms", "moon_phase",
	"water_temp_c", "rating", "recommendation", "fallback_vars",
}

// Writer persists artifacts under a base directory.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Filename encodes coordinate, optional target date, and creation time, so
// repeated runs for the same inputs produce distinct, auditable files.
func Filename(coord models.Coordinate, target time.Time, createdAt time.Time) string {
	name := "forecast_" + histcache.Key(coord)
	if !target.IsZero() {
		name += "_to_" + target.Format("2006-01-02")
	}
	return name + "_" + createdAt.UTC().Format(stampLayout) + ".csv"
}

type manifest struct {
	Source    string   `json:"source"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Target    string   `json:"target_date,omitempty"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Extended  bool     `json:"extended"`
	CreatedAt string   `json:"created_at"`
	Columns   []string `json:"columns"`
}

// Write persists the record sequence and manifest, returning the final CSV
// path. Both files are staged and renamed; a crash mid-write leaves only
// temp files behind, never a truncated artifact.
func (w *Writer) Write(art *models.ForecastArtifact) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	name := Filename(art.Request.Coordinate, art.Request.TargetDate, art.CreatedAt)
	final := filepath.Join(w.dir, name)

	if err := atomicWrite(final, func(f *os.File) error {
		return writeCSV(f, art.Records)
	}); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}

	m := manifest{
		Source:    "open-meteo archive",
		Latitude:  art.Request.Coordinate.Latitude,
		Longitude: art.Request.Coordinate.Longitude,
		StartDate: art.Horizon.StartDate.Format("2006-01-02"),
		EndDate:   art.Horizon.EndDate().Format("2006-01-02"),
		Extended:  art.Horizon.Extended,
		CreatedAt: art.CreatedAt.UTC().Format(time.RFC3339),
		Columns:   columns,
	}
	if !art.Request.TargetDate.IsZero() {
		m.Target = art.Request.TargetDate.Format("2006-01-02")
	}
	manifestPath := final[:len(final)-len(".csv")] + ".json"
	if err := atomicWrite(manifestPath, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}

	return final, nil
}

func atomicWrite(final string, fill func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(final), "."+filepath.Base(final)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := fill(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), final)
}

func writeCSV(f *os.File, records []models.DailyRecord) error {
	cw := csv.NewWriter(f)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			rec.Date.Format("2006-01-02"),
			formatFloat(rec.AirTempC),
			formatFloat(rec.PressureKPa),
			formatFloat(rec.WindSpeedMS),
			rec.MoonPhase,
			formatFloat(rec.WaterTempC),
			string(rec.Rating),
			rec.Recommendation,
			rec.FallbackList(),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
