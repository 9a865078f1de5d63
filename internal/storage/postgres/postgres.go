// Package postgres provides the Postgres-backed implementation of store.Store.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/wbstats/internal/store"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS countries (
		country_code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		region TEXT,
		income_level TEXT,
		capital TEXT,
		longitude DOUBLE PRECISION,
		latitude DOUBLE PRECISION,
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
		id BIGSERIAL PRIMARY KEY,
		country_code TEXT NOT NULL REFERENCES countries (country_code),
		indicator_code TEXT NOT NULL REFERENCES indicators (indicator_code),
		year INTEGER NOT NULL,
		value DOUBLE PRECISION,
		UNIQUE (country_code, indicator_code, year)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_country_code ON indicator_values (country_code)`,
	`CREATE INDEX IF NOT EXISTS idx_indicator_code ON indicator_values (indicator_code)`,
	`CREATE INDEX IF NOT EXISTS idx_year ON indicator_values (year)`,
	`CREATE INDEX IF NOT EXISTS idx_country_indicator ON indicator_values (country_code, indicator_code)`,
}

// pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Store implements store.Store on a Postgres connection pool.
type Store struct {
	pool   pool
	logger *zap.Logger
}

// NewStore connects a pool from the DSN and verifies it with a ping.
func NewStore(ctx context.Context, dsn string, maxConns int32, logger *zap.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("db.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: p, logger: logger}, nil
}

// NewStoreWithPool constructs a store from an existing pool (primarily for
// testing).
func NewStoreWithPool(p pool, logger *zap.Logger) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: p, logger: logger}, nil
}

// EnsureSchema creates the tables and indexes when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return &store.PersistenceError{Op: "create schema", Err: err}
		}
	}
	return nil
}

// ReplaceAll swaps the dataset in one transaction.
func (s *Store) ReplaceAll(ctx context.Context, snap store.Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &store.PersistenceError{Op: "begin transaction", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, table := range []string{"indicator_values", "indicators", "countries"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return &store.PersistenceError{Op: "clear " + table, Err: err}
		}
	}

	for _, c := range snap.Countries {
		_, err := tx.Exec(ctx, `INSERT INTO countries
			(country_code, name, region, income_level, capital, longitude, latitude, iso2_code, iso3_code)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			c.Code, c.Name,
			nullString(c.Region), nullString(c.IncomeLevel), nullString(c.Capital),
			c.Longitude, c.Latitude,
			nullString(c.ISO2), nullString(c.ISO3))
		if err != nil {
			return &store.PersistenceError{Op: "insert country " + c.Code, Err: err}
		}
	}

	for _, ind := range snap.Indicators {
		_, err := tx.Exec(ctx, `INSERT INTO indicators
			(indicator_code, name, category, description, source)
			VALUES ($1, $2, $3, $4, $5)`,
			ind.Code, ind.Name, nullString(ind.Category), ind.Description, nullString(ind.Source))
		if err != nil {
			return &store.PersistenceError{Op: "insert indicator " + ind.Code, Err: err}
		}
	}

	for _, v := range snap.Values {
		_, err := tx.Exec(ctx, `INSERT INTO indicator_values
			(country_code, indicator_code, year, value)
			VALUES ($1, $2, $3, $4)`,
			v.CountryCode, v.IndicatorCode, v.Year, v.Value)
		if err != nil {
			return &store.PersistenceError{
				Op:  fmt.Sprintf("insert value %s/%s/%d", v.CountryCode, v.IndicatorCode, v.Year),
				Err: err,
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &store.PersistenceError{Op: "commit", Err: err}
	}

	s.logger.Info("Replaced dataset",
		zap.Int("countries", len(snap.Countries)),
		zap.Int("indicators", len(snap.Indicators)),
		zap.Int("values", len(snap.Values)))
	return nil
}

// ListCountries returns one page of countries ordered by name plus the
// unpaged total.
func (s *Store) ListCountries(ctx context.Context, skip, limit int) ([]store.CountrySummary, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM countries`).Scan(&total); err != nil {
		return nil, 0, &store.PersistenceError{Op: "count countries", Err: err}
	}

	rows, err := s.pool.Query(ctx, `SELECT country_code, name, COALESCE(region, '')
		FROM countries ORDER BY name LIMIT $1 OFFSET $2`, limit, skip)
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
	row := s.pool.QueryRow(ctx, `SELECT country_code, name,
		COALESCE(region, ''), COALESCE(income_level, ''), COALESCE(capital, ''),
		longitude, latitude,
		COALESCE(iso2_code, ''), COALESCE(iso3_code, '')
		FROM countries WHERE country_code = $1`, code)

	var c store.Country
	err := row.Scan(&c.Code, &c.Name, &c.Region, &c.IncomeLevel, &c.Capital,
		&c.Longitude, &c.Latitude, &c.ISO2, &c.ISO3)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Country{}, store.ErrNotFound
	}
	if err != nil {
		return store.Country{}, &store.PersistenceError{Op: "get country " + code, Err: err}
	}
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
		WHERE iv.country_code = $1`
	args := []any{code}
	if category != "" {
		query += ` AND i.category = $2`
		args = append(args, category)
	}
	query += ` ORDER BY i.name, iv.year DESC`

	rows, err := s.pool.Query(ctx, query, args...)
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
			value              *float64
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
		series[pos].Values = append(series[pos].Values, store.YearValue{Year: year, Value: value})
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

	rows, err := s.pool.Query(ctx, `WITH ranked AS (
			SELECT i.indicator_code, i.name, i.category, iv.year, iv.value,
				ROW_NUMBER() OVER (PARTITION BY i.indicator_code ORDER BY iv.year DESC) AS rn
			FROM indicator_values iv
			JOIN indicators i ON iv.indicator_code = i.indicator_code
			WHERE iv.country_code = $1
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
		)
		if err := rows.Scan(&entry.Code, &entry.Name, &cat, &entry.Year, &entry.Value); err != nil {
			return store.Country{}, nil, &store.PersistenceError{Op: "scan profile row", Err: err}
		}
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
	rows, err := s.pool.Query(ctx, `SELECT COALESCE(category, ''), COUNT(*) AS count
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

// Ping verifies the pool can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
