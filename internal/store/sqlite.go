// Package store persists cached historical series and the artifact index in
// SQLite. It is the durable backing for the coordinate cache: entries are
// replaced atomically inside a transaction so readers never observe a
// half-written series.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"fishcast/internal/models"
)

const dateLayout = "2006-01-02"

type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

func New(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log}
}

// GetEntry returns the cache entry for a key, or nil when absent.
func (s *Store) GetEntry(key string) (*models.CacheEntry, error) {
	row := s.db.QueryRow(`
		SELECT key, latitude, longitude, asof, refreshed_at
		FROM cache_entries
		WHERE key = ?
	`, key)

	var e models.CacheEntry
	var asof, refreshed string
	err := row.Scan(&e.Key, &e.Coordinate.Latitude, &e.Coordinate.Longitude, &asof, &refreshed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if e.AsOf, err = time.Parse(dateLayout, asof); err != nil {
		return nil, fmt.Errorf("parse asof %q: %w", asof, err)
	}
	if e.RefreshedAt, err = time.Parse(time.RFC3339, refreshed); err != nil {
		return nil, fmt.Errorf("parse refreshed_at %q: %w", refreshed, err)
	}
	return &e, nil
}

// GetSeriesSet loads every tracked variable series for a key. Returns nil
// when the key holds no data.
func (s *Store) GetSeriesSet(key string) (*models.SeriesSet, error) {
	entry, err := s.GetEntry(key)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	set := &models.SeriesSet{
		Coordinate: entry.Coordinate,
		AsOf:       entry.AsOf,
		Series:     make(map[models.Variable]*models.HistoricalSeries),
	}

	rows, err := s.db.Query(`
		SELECT variable, date, value
		FROM series_values
		WHERE key = ?
		ORDER BY variable, date ASC
	`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var variable, dateStr string
		var value float64
		if err := rows.Scan(&variable, &dateStr, &value); err != nil {
			return nil, err
		}
		date, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse series date %q: %w", dateStr, err)
		}
		v := models.Variable(variable)
		series := set.Series[v]
		if series == nil {
			series = &models.HistoricalSeries{Variable: v}
			set.Series[v] = series
		}
		series.Values = append(series.Values, models.DailyValue{Date: date, Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	gaps, err := s.db.Query(`SELECT variable, date FROM series_gaps WHERE key = ? ORDER BY variable, date ASC`, key)
	if err != nil {
		return nil, err
	}
	defer gaps.Close()
	for gaps.Next() {
		var variable, dateStr string
		if err := gaps.Scan(&variable, &dateStr); err != nil {
			return nil, err
		}
		date, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse gap date %q: %w", dateStr, err)
		}
		if series := set.Series[models.Variable(variable)]; series != nil {
			series.Gaps = append(series.Gaps, date)
		}
	}
	return set, gaps.Err()
}

// PutSeriesSet replaces the entry and all series rows for a key in one
// transaction.
func (s *Store) PutSeriesSet(key string, set *models.SeriesSet, refreshedAt time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO cache_entries (key, latitude, longitude, asof, refreshed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			asof = excluded.asof,
			refreshed_at = excluded.refreshed_at
	`, key, set.Coordinate.Latitude, set.Coordinate.Longitude,
		set.AsOf.Format(dateLayout), refreshedAt.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM series_values WHERE key = ?`, key); err != nil {
		return fmt.Errorf("clear series values: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM series_gaps WHERE key = ?`, key); err != nil {
		return fmt.Errorf("clear series gaps: %w", err)
	}

	insVal, err := tx.Prepare(`INSERT INTO series_values (key, variable, date, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare series insert: %w", err)
	}
	defer insVal.Close()

	insGap, err := tx.Prepare(`INSERT INTO series_gaps (key, variable, date) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare gap insert: %w", err)
	}
	defer insGap.Close()

	for variable, series := range set.Series {
		for _, dv := range series.Values {
			if _, err := insVal.Exec(key, string(variable), dv.Date.Format(dateLayout), dv.Value); err != nil {
				return fmt.Errorf("insert series value: %w", err)
			}
		}
		for _, gap := range series.Gaps {
			if _, err := insGap.Exec(key, string(variable), gap.Format(dateLayout)); err != nil {
				return fmt.Errorf("insert series gap: %w", err)
			}
		}
	}

	return tx.Commit()
}

// ArtifactMeta is one row of the artifact index.
type ArtifactMeta struct {
	ID         string
	CoordToken string
	Coordinate models.Coordinate
	TargetDate sql.NullString // YYYY-MM-DD, empty for default-horizon runs
	AsOf       time.Time
	Path       string
	CreatedAt  time.Time
}

func (s *Store) InsertArtifact(meta ArtifactMeta) error {
	_, err := s.db.Exec(`
		INSERT INTO artifacts (id, coord_token, latitude, longitude, target_date, asof, path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, meta.ID, meta.CoordToken, meta.Coordinate.Latitude, meta.Coordinate.Longitude,
		meta.TargetDate, meta.AsOf.Format(dateLayout), meta.Path, meta.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

// LatestArtifact returns the newest artifact recorded for the same
// (coordinate key, target date, asof) inputs, or nil when none exists. Used
// for idempotent re-serving of previously computed results.
func (s *Store) LatestArtifact(coordToken string, targetDate string, asof time.Time) (*ArtifactMeta, error) {
	row := s.db.QueryRow(`
		SELECT id, coord_token, latitude, longitude, target_date, asof, path, created_at
		FROM artifacts
		WHERE coord_token = ? AND COALESCE(target_date, '') = ? AND asof = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, coordToken, targetDate, asof.Format(dateLayout))

	var m ArtifactMeta
	var asofStr, createdStr string
	err := row.Scan(&m.ID, &m.CoordToken, &m.Coordinate.Latitude, &m.Coordinate.Longitude,
		&m.TargetDate, &asofStr, &m.Path, &createdStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if m.AsOf, err = time.Parse(dateLayout, asofStr); err != nil {
		return nil, fmt.Errorf("parse asof %q: %w", asofStr, err)
	}
	if m.CreatedAt, err = time.Parse(time.RFC3339, createdStr); err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdStr, err)
	}
	return &m, nil
}
