package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/wbstats/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func floatPtr(v float64) *float64 {
	return &v
}

func testSnapshot() store.Snapshot {
	return store.Snapshot{
		Countries: []store.Country{
			{Code: "bra", Name: "Brazil", Region: "Latin America & Caribbean", IncomeLevel: "Upper middle income", ISO2: "br", ISO3: "BRA"},
			{Code: "chl", Name: "Chile", Region: "Latin America & Caribbean", IncomeLevel: "High income", ISO2: "ch", ISO3: "CHL"},
		},
		Indicators: []store.Indicator{
			{Code: "gdp_per_capita", Name: "GDP per capita", Category: "economic", Source: "World Bank"},
			{Code: "inflation_rate", Name: "Inflation rate", Category: "economic", Source: "World Bank"},
			{Code: "life_expectancy", Name: "Life expectancy", Category: "social", Source: "World Bank"},
			{Code: "mystery_index", Name: "Mystery index", Source: "World Bank"},
		},
		Values: []store.IndicatorValue{
			{CountryCode: "bra", IndicatorCode: "gdp_per_capita", Year: 2020, Value: 1444.7},
			{CountryCode: "bra", IndicatorCode: "gdp_per_capita", Year: 2019, Value: 1354.1},
			{CountryCode: "bra", IndicatorCode: "life_expectancy", Year: 2021, Value: 75.3},
			{CountryCode: "bra", IndicatorCode: "mystery_index", Year: 2018, Value: 1.0},
			{CountryCode: "chl", IndicatorCode: "gdp_per_capita", Year: 2020, Value: 1600.0},
		},
	}
}

func TestStore_EnsureSchema_Idempotent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.EnsureSchema(context.Background()))
}

func TestStore_ListCountries(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceAll(ctx, testSnapshot()))

	// One page of one row still reports the full total.
	page, total, err := s.ListCountries(ctx, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, page, 1)
	assert.Equal(t, "Brazil", page[0].Name)
	assert.Equal(t, "bra", page[0].Code)

	page, total, err = s.ListCountries(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, page, 1)
	assert.Equal(t, "Chile", page[0].Name)

	page, _, err = s.ListCountries(ctx, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestStore_GetCountry(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceAll(ctx, testSnapshot()))

	country, err := s.GetCountry(ctx, "bra")
	require.NoError(t, err)
	assert.Equal(t, "Brazil", country.Name)
	assert.Equal(t, "Upper middle income", country.IncomeLevel)
	assert.Equal(t, "br", country.ISO2)
	assert.Equal(t, "BRA", country.ISO3)
	assert.Nil(t, country.Longitude)
	assert.Nil(t, country.Latitude)

	_, err = s.GetCountry(ctx, "zzz")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_GetCountry_Coordinates(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	snap := store.Snapshot{Countries: []store.Country{
		{Code: "bra", Name: "Brazil", Longitude: floatPtr(-47.93), Latitude: floatPtr(-15.78)},
	}}
	require.NoError(t, s.ReplaceAll(ctx, snap))

	country, err := s.GetCountry(ctx, "bra")
	require.NoError(t, err)
	require.NotNil(t, country.Longitude)
	assert.InDelta(t, -47.93, *country.Longitude, 0.0001)
	require.NotNil(t, country.Latitude)
	assert.InDelta(t, -15.78, *country.Latitude, 0.0001)
}

func TestStore_CountryIndicators(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceAll(ctx, testSnapshot()))

	country, series, err := s.CountryIndicators(ctx, "bra", "")
	require.NoError(t, err)
	assert.Equal(t, "Brazil", country.Name)

	// Ordered by indicator name, values most recent first.
	require.Len(t, series, 3)
	assert.Equal(t, "gdp_per_capita", series[0].Code)
	require.Len(t, series[0].Values, 2)
	assert.Equal(t, 2020, series[0].Values[0].Year)
	require.NotNil(t, series[0].Values[0].Value)
	assert.InDelta(t, 1444.7, *series[0].Values[0].Value, 0.0001)
	assert.Equal(t, 2019, series[0].Values[1].Year)
	assert.Equal(t, "life_expectancy", series[1].Code)
	assert.Equal(t, "mystery_index", series[2].Code)
}

func TestStore_CountryIndicators_CategoryFilter(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceAll(ctx, testSnapshot()))

	_, series, err := s.CountryIndicators(ctx, "bra", "economic")
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, "gdp_per_capita", series[0].Code)

	_, series, err = s.CountryIndicators(ctx, "bra", "nonexistent")
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestStore_CountryIndicators_NotFound(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceAll(ctx, testSnapshot()))

	_, _, err := s.CountryIndicators(ctx, "zzz", "")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_CountryProfile(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceAll(ctx, testSnapshot()))

	country, profile, err := s.CountryProfile(ctx, "bra")
	require.NoError(t, err)
	assert.Equal(t, "Brazil", country.Name)

	// Only the most recent year per indicator, keyed by category with
	// uncategorized indicators under "other".
	require.Len(t, profile, 3)
	require.Len(t, profile["economic"], 1)
	assert.Equal(t, "gdp_per_capita", profile["economic"][0].Code)
	assert.Equal(t, 2020, profile["economic"][0].Year)
	require.Len(t, profile["social"], 1)
	require.Len(t, profile["other"], 1)
	assert.Equal(t, "mystery_index", profile["other"][0].Code)

	_, _, err = s.CountryProfile(ctx, "zzz")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_Categories(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceAll(ctx, testSnapshot()))

	counts, err := s.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 3)
	assert.Equal(t, "economic", counts[0].Category)
	assert.Equal(t, 2, counts[0].Count)
	for _, c := range counts[1:] {
		assert.Equal(t, 1, c.Count)
	}
}

func TestStore_ReplaceAll_SwapsDataset(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceAll(ctx, testSnapshot()))

	replacement := store.Snapshot{
		Countries:  []store.Country{{Code: "arg", Name: "Argentina"}},
		Indicators: []store.Indicator{{Code: "population", Name: "Population", Category: "social"}},
		Values:     []store.IndicatorValue{{CountryCode: "arg", IndicatorCode: "population", Year: 2022, Value: 46_000_000}},
	}
	require.NoError(t, s.ReplaceAll(ctx, replacement))

	_, total, err := s.ListCountries(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, err = s.GetCountry(ctx, "bra")
	require.ErrorIs(t, err, store.ErrNotFound)

	counts, err := s.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, "social", counts[0].Category)
}

func TestStore_Ping(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Ping(context.Background()))
}
