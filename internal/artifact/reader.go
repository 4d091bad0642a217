package artifact

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"fishcast/internal/models"
)

// Read loads a previously written artifact CSV back into records, so a run
// with identical inputs can re-serve the stored result instead of
// recomputing it.
func Read(path string) ([]models.DailyRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(columns)

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read artifact header: %w", err)
	}
	for i, col := range columns {
		if header[i] != col {
			return nil, fmt.Errorf("unexpected artifact column %q, want %q", header[i], col)
		}
	}

	var records []models.DailyRecord
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read artifact row: %w", err)
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(row []string) (models.DailyRecord, error) {
	var rec models.DailyRecord
	var err error

	if rec.Date, err = time.Parse("2006-01-02", row[0]); err != nil {
		return rec, fmt.Errorf("parse artifact date %q: %w", row[0], err)
	}
	rec.MoonPhase = row[4]

	for col, dst := range map[int]*float64{
		1: &rec.AirTempC, 2: &rec.PressureKPa, 3: &rec.WindSpeedMS, 5: &rec.WaterTempC,
	} {
		if *dst, err = strconv.ParseFloat(row[col], 64); err != nil {
			return rec, fmt.Errorf("parse artifact value %q: %w", row[col], err)
		}
	}

	rec.Rating = models.Rating(row[6])
	if !rec.Rating.Valid() {
		return rec, fmt.Errorf("unknown rating %q in artifact", row[6])
	}
	rec.Recommendation = row[7]
	if row[8] != "" {
		for _, v := range strings.Split(row[8], ",") {
			rec.FallbackVars = append(rec.FallbackVars, models.Variable(v))
		}
	}
	return rec, nil
}
