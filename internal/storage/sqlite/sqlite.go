// Package sqlite provides the embedded SQLite implementation of store.Store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/JakeFAU/wbstats/internal/store"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS countries (
		country_code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		region TEXT,
		income_level TEXT,
		capital TEXT,
		longitude REAL,
		latitude REAL,
		iso2_code TEXT,
		iso3_code TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS indicators (
		indicator_code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT,
		description TEXT,
		source TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS indicator_values (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		country_code TEXT NOT NULL,
		indicator_code TEXT NOT NULL,
		year INTEGER NOT NULL,
		value REAL,
		FOREIGN KEY (country_code) REFERENCES countries (country_code),
		FOREIGN KEY (indicator_code) REFERENCES indicators (indicator_code),
		UNIQUE(country_code, indicator_code, year)
	)`,
}

var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_country_code ON indicator_values (country_code)`,
	`CREATE INDEX IF NOT EXISTS idx_indicator_code ON indicator_values (indicator_code)`,
	`CREATE INDEX IF NOT EXISTS idx_year ON indicator_values (year)`,
	`CREATE INDEX IF NOT EXISTS idx_country_indicator ON indicator_values (country_code, indicator_code)`,
}

// Store implements store.Store on an embedded SQLite database file.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore opens (creating if needed) the SQLite database at path. The
// special path ":memory:" yields an in-memory database.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer, and each pooled connection to an
	// in-memory database would otherwise see its own empty database.
	db.SetMaxOpenConns(1)

	return &Store{db: db, logger: logger}, nil
}

// EnsureSchema creates the three tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &store.PersistenceError{Op: "create schema", Err: err}
		}
	}
	return nil
}

// ReplaceAll swaps the dataset in one transaction: existing rows are deleted
// and the snapshot inserted. The lookup indexes are (re)created afterwards,
// once the bulk insert is done.
func (s *Store) ReplaceAll(ctx context.Context, snap store.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &store.PersistenceError{Op: "begin transaction", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"indicator_values", "indicators", "countries"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return &store.PersistenceError{Op: "clear " + table, Err: err}
		}
	}

	if err := insertCountries(ctx, tx, snap.Countries); err != nil {
		return err
	}
	if err := insertIndicators(ctx, tx, snap.Indicators); err != nil {
		return err
	}
	if err := insertValues(ctx, tx, snap.Values); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &store.PersistenceError{Op: "commit", Err: err}
	}

	for _, stmt := range indexStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &store.PersistenceError{Op: "create index", Err: err}
		}
	}

	s.logger.Info("Replaced dataset",
		zap.Int("countries", len(snap.Countries)),
		zap.Int("indicators", len(snap.Indicators)),
		zap.Int("values", len(snap.Values)))
	return nil
}

func insertCountries(ctx context.Context, tx *sql.Tx, countries []store.Country) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO countries
		(country_code, name, region, income_level, capital, longitude, latitude, iso2_code, iso3_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return &store.PersistenceError{Op: "prepare country insert", Err: err}
	}
	defer stmt.Close()

	for _, c := range countries {
		_, err := stmt.ExecContext(ctx, c.Code, c.Name,
			nullString(c.Region), nullString(c.IncomeLevel), nullString(c.Capital),
			c.Longitude, c.Latitude,
			nullString(c.ISO2), nullString(c.ISO3))
		if err != nil {
			return &store.PersistenceError{Op: "insert country " + c.Code, Err: err}
		}
	}
	return nil
}

func insertIndicators(ctx context.Context, tx *sql.Tx, indicators []store.Indicator) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO indicators
		(indicator_code, name, category, description, source)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return &store.PersistenceError{Op: "prepare indicator insert", Err: err}
	}
	defer stmt.Close()

	for _, ind := range indicators {
		_, err := stmt.ExecContext(ctx, ind.Code, ind.Name,
			nullString(ind.Category), ind.Description, nullString(ind.Source))
		if err != nil {
			return &store.PersistenceError{Op: "insert indicator " + ind.Code, Err: err}
		}
	}
	return nil
}

func insertValues(ctx context.Context, tx *sql.Tx, values []store.IndicatorValue) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO indicator_values
		(country_code, indicator_code, year, value)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return &store.PersistenceError{Op: "prepare value insert", Err: err}
	}
	defer stmt.Close()

	for _, v := range values {
		if _, err := stmt.ExecContext(ctx, v.CountryCode, v.IndicatorCode, v.Year, v.Value); err != nil {
			return &store.PersistenceError{
				Op:  fmt.Sprintf("insert value %s/%s/%d", v.CountryCode, v.IndicatorCode, v.Year),
				Err: err,
			}
		}
	}
	return nil
}

// ListCountries returns one page of countries ordered by name plus the
// unpaged total.
func (s *Store) ListCountries(ctx context.Context, skip, limit int) ([]store.CountrySummary, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM countries`).Scan(&total); err != nil {
		return nil, 0, &store.PersistenceError{Op: "count countries", Err: err}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT country_code, name, COALESCE(region, '')
		FROM countries ORDER BY name LIMIT ? OFFSET ?`, limit, skip)
	if err != nil {
		return nil, 0, &store.PersistenceError{Op: "list countries", Err: err}
	}
	defer rows.Close()

	summaries := make([]store.CountrySummary, 0)
	for rows.Next() {
		var c store.CountrySummary
		if err := rows.Scan(&c.Code, &c.Name, &c.Region); err != nil {
			return nil, 0, &store.PersistenceError{Op: "scan country row", Err: err}
		}
		summaries = append(summaries, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, &store.PersistenceError{Op: "iterate countries", Err: err}
	}
	return summaries, total, nil
}

// GetCountry loads one country or returns store.ErrNotFound.
func (s *Store) GetCountry(ctx context.Context, code string) (store.Country, error) {
	row := s.db.QueryRowContext(ctx, `SELECT country_code, name,
		COALESCE(region, ''), COALESCE(income_level, ''), COALESCE(capital, ''),
		longitude, latitude,
		COALESCE(iso2_code, ''), COALESCE(iso3_code, '')
		FROM countries WHERE country_code = ?`, code)

	var (
		c        store.Country
		lon, lat sql.NullFloat64
	)
	err := row.Scan(&c.Code, &c.Name, &c.Region, &c.IncomeLevel, &c.Capital,
		&lon, &lat, &c.ISO2, &c.ISO3)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Country{}, store.ErrNotFound
	}
	if err != nil {
		return store.Country{}, &store.PersistenceError{Op: "get country " + code, Err: err}
	}
	c.Longitude = nullableFloat(lon)
	c.Latitude = nullableFloat(lat)
	return c, nil
}

// CountryIndicators returns the country and its series, name-ordered, each
// series most recent year first.
func (s *Store) CountryIndicators(ctx context.Context, code, category string) (store.Country, []store.IndicatorSeries, error) {
	country, err := s.GetCountry(ctx, code)
	if err != nil {
		return store.Country{}, nil, err
	}

	query := `SELECT i.indicator_code, i.name, COALESCE(i.category, ''), iv.year, iv.value
		FROM indicator_values iv
		JOIN indicators i ON iv.indicator_code = i.indicator_code
		WHERE iv.country_code = ?`
	args := []any{code}
	if category != "" {
		query += ` AND i.category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY i.name, iv.year DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return store.Country{}, nil, &store.PersistenceError{Op: "query indicators", Err: err}
	}
	defer rows.Close()

	series := make([]store.IndicatorSeries, 0)
	index := make(map[string]int)
	for rows.Next() {
		var (
			indCode, name, cat string
			year               int
			value              sql.NullFloat64
		)
		if err := rows.Scan(&indCode, &name, &cat, &year, &value); err != nil {
			return store.Country{}, nil, &store.PersistenceError{Op: "scan indicator row", Err: err}
		}
		pos, ok := index[indCode]
		if !ok {
			pos = len(series)
			index[indCode] = pos
			series = append(series, store.IndicatorSeries{
				Code:     indCode,
				Name:     name,
				Category: cat,
				Values:   make([]store.YearValue, 0, 1),
			})
		}
		series[pos].Values = append(series[pos].Values, store.YearValue{
			Year:  year,
			Value: nullableFloat(value),
		})
	}
	if err := rows.Err(); err != nil {
		return store.Country{}, nil, &store.PersistenceError{Op: "iterate indicators", Err: err}
	}
	return country, series, nil
}

// CountryProfile returns the country and the latest observation of each of
// its indicators, grouped by category.
func (s *Store) CountryProfile(ctx context.Context, code string) (store.Country, map[string][]store.ProfileEntry, error) {
	country, err := s.GetCountry(ctx, code)
	if err != nil {
		return store.Country{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `WITH ranked AS (
			SELECT i.indicator_code, i.name, i.category, iv.year, iv.value,
				ROW_NUMBER() OVER (PARTITION BY i.indicator_code ORDER BY iv.year DESC) AS rn
			FROM indicator_values iv
			JOIN indicators i ON iv.indicator_code = i.indicator_code
			WHERE iv.country_code = ?
		)
		SELECT indicator_code, name, COALESCE(category, ''), year, value
		FROM ranked WHERE rn = 1
		ORDER BY category, name`, code)
	if err != nil {
		return store.Country{}, nil, &store.PersistenceError{Op: "query profile", Err: err}
	}
	defer rows.Close()

	profile := make(map[string][]store.ProfileEntry)
	for rows.Next() {
		var (
			entry store.ProfileEntry
			cat   string
			value sql.NullFloat64
		)
		if err := rows.Scan(&entry.Code, &entry.Name, &cat, &entry.Year, &value); err != nil {
			return store.Country{}, nil, &store.PersistenceError{Op: "scan profile row", Err: err}
		}
		entry.Value = nullableFloat(value)
		if cat == "" {
			cat = "other"
		}
		profile[cat] = append(profile[cat], entry)
	}
	if err := rows.Err(); err != nil {
		return store.Country{}, nil, &store.PersistenceError{Op: "iterate profile", Err: err}
	}
	return country, profile, nil
}

// Categories returns indicator counts per category, highest first.
func (s *Store) Categories(ctx context.Context) ([]store.CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT COALESCE(category, ''), COUNT(*) AS count
		FROM indicators GROUP BY category ORDER BY count DESC`)
	if err != nil {
		return nil, &store.PersistenceError{Op: "query categories", Err: err}
	}
	defer rows.Close()

	counts := make([]store.CategoryCount, 0)
	for rows.Next() {
		var c store.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, &store.PersistenceError{Op: "scan category row", Err: err}
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &store.PersistenceError{Op: "iterate categories", Err: err}
	}
	return counts, nil
}

// Ping verifies the database file is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *Store) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Warn("Failed to close sqlite database", zap.Error(err))
	}
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
