// Package store declares the persistence model and interface for normalized
// country data. Implementations live under internal/storage; this package
// must not import database drivers.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// PersistenceError wraps a database failure. Unlike fetch or parse errors,
// a persistence failure aborts the run that produced it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Country models one row of the countries table.
type Country struct {
	Code        string   `json:"country_code"`
	Name        string   `json:"name"`
	Region      string   `json:"region"`
	IncomeLevel string   `json:"income_level"`
	Capital     string   `json:"capital"`
	Longitude   *float64 `json:"longitude"`
	Latitude    *float64 `json:"latitude"`
	ISO2        string   `json:"iso2_code"`
	ISO3        string   `json:"iso3_code"`
}

// Indicator models one row of the indicators table: the metadata shared by
// every observed value of that indicator.
type Indicator struct {
	Code        string `json:"indicator_code"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

// IndicatorValue is one (country, indicator, year) observation.
type IndicatorValue struct {
	CountryCode   string  `json:"country_code"`
	IndicatorCode string  `json:"indicator_code"`
	Year          int     `json:"year"`
	Value         float64 `json:"value"`
}

// Snapshot is a full dataset ready to replace the store contents.
type Snapshot struct {
	Countries  []Country        `json:"countries"`
	Indicators []Indicator      `json:"indicators"`
	Values     []IndicatorValue `json:"values"`
}

// CountrySummary is the listing projection of a country.
type CountrySummary struct {
	Code   string `json:"country_code"`
	Name   string `json:"name"`
	Region string `json:"region"`
}

// YearValue is one observation within an indicator series.
type YearValue struct {
	Year  int      `json:"year"`
	Value *float64 `json:"value"`
}

// IndicatorSeries groups every observed year of one indicator for a country,
// most recent year first.
type IndicatorSeries struct {
	Code     string      `json:"indicator_code"`
	Name     string      `json:"name"`
	Category string      `json:"category"`
	Values   []YearValue `json:"values"`
}

// ProfileEntry is the most recent observation of one indicator.
type ProfileEntry struct {
	Code  string   `json:"indicator_code"`
	Name  string   `json:"name"`
	Value *float64 `json:"value"`
	Year  int      `json:"year"`
}

// CategoryCount pairs an indicator category with the number of distinct
// indicators filed under it.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Store is the persistence contract shared by the SQLite and Postgres
// implementations. Writes happen only through ReplaceAll; the query side is
// read-only.
type Store interface {
	// EnsureSchema creates the tables when they do not exist yet.
	EnsureSchema(ctx context.Context) error
	// ReplaceAll atomically swaps the full dataset for the snapshot.
	ReplaceAll(ctx context.Context, snap Snapshot) error

	// ListCountries returns one page of countries ordered by name, plus the
	// total number of countries regardless of paging.
	ListCountries(ctx context.Context, skip, limit int) ([]CountrySummary, int, error)
	// GetCountry loads a single country or returns ErrNotFound.
	GetCountry(ctx context.Context, code string) (Country, error)
	// CountryIndicators returns the country and its indicator series,
	// optionally restricted to one category. Series are ordered by indicator
	// name, values by year descending.
	CountryIndicators(ctx context.Context, code, category string) (Country, []IndicatorSeries, error)
	// CountryProfile returns the country and its most recent observation per
	// indicator, grouped by category. Indicators without a category land in
	// the "other" bucket.
	CountryProfile(ctx context.Context, code string) (Country, map[string][]ProfileEntry, error)
	// Categories returns indicator counts per category, highest first.
	Categories(ctx context.Context) ([]CategoryCount, error)

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error
	// Close releases the underlying connection resources.
	Close()
}
