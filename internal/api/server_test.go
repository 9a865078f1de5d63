package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/wbstats/internal/config"
	"github.com/JakeFAU/wbstats/internal/metrics"
	"github.com/JakeFAU/wbstats/internal/store"
)

func floatPtr(v float64) *float64 { return &v }

type fakeStore struct {
	countries  map[string]store.Country
	summaries  []store.CountrySummary
	series     []store.IndicatorSeries
	profile    map[string][]store.ProfileEntry
	categories []store.CategoryCount

	lastSkip     int
	lastLimit    int
	lastCategory string

	listErr error
	pingErr error
}

func (f *fakeStore) EnsureSchema(_ context.Context) error { return nil }

func (f *fakeStore) ReplaceAll(_ context.Context, _ store.Snapshot) error { return nil }

func (f *fakeStore) ListCountries(_ context.Context, skip, limit int) ([]store.CountrySummary, int, error) {
	f.lastSkip = skip
	f.lastLimit = limit
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	if skip >= len(f.summaries) {
		return nil, len(f.summaries), nil
	}
	end := skip + limit
	if end > len(f.summaries) {
		end = len(f.summaries)
	}
	return f.summaries[skip:end], len(f.summaries), nil
}

func (f *fakeStore) GetCountry(_ context.Context, code string) (store.Country, error) {
	country, ok := f.countries[code]
	if !ok {
		return store.Country{}, store.ErrNotFound
	}
	return country, nil
}

func (f *fakeStore) CountryIndicators(_ context.Context, code, category string) (store.Country, []store.IndicatorSeries, error) {
	f.lastCategory = category
	country, ok := f.countries[code]
	if !ok {
		return store.Country{}, nil, store.ErrNotFound
	}
	return country, f.series, nil
}

func (f *fakeStore) CountryProfile(_ context.Context, code string) (store.Country, map[string][]store.ProfileEntry, error) {
	country, ok := f.countries[code]
	if !ok {
		return store.Country{}, nil, store.ErrNotFound
	}
	return country, f.profile, nil
}

func (f *fakeStore) Categories(_ context.Context) ([]store.CategoryCount, error) {
	return f.categories, nil
}

func (f *fakeStore) Ping(_ context.Context) error { return f.pingErr }

func (f *fakeStore) Close() {}

func newFakeStore() *fakeStore {
	return &fakeStore{
		countries: map[string]store.Country{
			"brazil": {
				Code:        "brazil",
				Name:        "Brazil",
				Region:      "Latin America & Caribbean",
				IncomeLevel: "Upper middle income",
				Longitude:   floatPtr(-47.93),
				Latitude:    floatPtr(-15.78),
				ISO2:        "br",
				ISO3:        "BRA",
			},
		},
		summaries: []store.CountrySummary{
			{Code: "brazil", Name: "Brazil", Region: "Latin America & Caribbean"},
			{Code: "chile", Name: "Chile", Region: "Latin America & Caribbean"},
		},
		series: []store.IndicatorSeries{
			{
				Code:     "gdp__current_us__",
				Name:     "GDP (current US$)",
				Category: "economic",
				Values:   []store.YearValue{{Year: 2020, Value: floatPtr(1444.7)}, {Year: 2019, Value: floatPtr(1430.0)}},
			},
		},
		profile: map[string][]store.ProfileEntry{
			"economic": {{Code: "gdp__current_us__", Name: "GDP (current US$)", Value: floatPtr(1444.7), Year: 2020}},
			"other":    {{Code: "mystery_index", Name: "Mystery index", Value: floatPtr(1.0), Year: 2021}},
		},
		categories: []store.CategoryCount{
			{Category: "economic", Count: 2},
			{Category: "social", Count: 1},
		},
	}
}

func newTestServer(f *fakeStore) *Server {
	metrics.Init()
	cfg := config.Config{
		Server:  config.ServerConfig{Port: 8000, TimeoutSeconds: 30},
		Logging: config.LoggingConfig{Development: true},
	}
	return NewServer(f, cfg, zap.NewNop())
}

func doRequest(t *testing.T, server *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newTestServer(newFakeStore()), http.MethodGet, "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_Readyz_ChecksStore(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newTestServer(newFakeStore()), http.MethodGet, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)

	down := newFakeStore()
	down.pingErr = errors.New("connection refused")
	rec = doRequest(t, newTestServer(down), http.MethodGet, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_ListCountries_PagesAndTotal(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newTestServer(newFakeStore()), http.MethodGet, "/v1/countries?skip=0&limit=1")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp countriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Brazil", resp.Data[0].Name)
}

func TestServer_ListCountries_Defaults(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	rec := doRequest(t, newTestServer(f), http.MethodGet, "/v1/countries")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, f.lastSkip)
	assert.Equal(t, 100, f.lastLimit)
}

func TestServer_ListCountries_ClampsParams(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	rec := doRequest(t, newTestServer(f), http.MethodGet, "/v1/countries?skip=-3&limit=9999")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, f.lastSkip)
	assert.Equal(t, 500, f.lastLimit)
}

func TestServer_ListCountries_BadParams(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeStore())

	rec := doRequest(t, server, http.MethodGet, "/v1/countries?skip=abc")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, server, http.MethodGet, "/v1/countries?limit=ten")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ListCountries_StoreError(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	f.listErr = errors.New("database is locked")
	rec := doRequest(t, newTestServer(f), http.MethodGet, "/v1/countries")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "failed to list countries")
}

func TestServer_GetCountry_ReturnsRow(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newTestServer(newFakeStore()), http.MethodGet, "/v1/countries/brazil")

	require.Equal(t, http.StatusOK, rec.Code)
	var got store.Country
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "brazil", got.Code)
	assert.Equal(t, "BRA", got.ISO3)
	require.NotNil(t, got.Longitude)
	assert.InDelta(t, -47.93, *got.Longitude, 1e-9)
}

func TestServer_GetCountry_NotFound(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newTestServer(newFakeStore()), http.MethodGet, "/v1/countries/atlantis")

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "country not found")
}

func TestServer_CountryIndicators_ReturnsSeries(t *testing.T) {
	t.Parallel()

	f := newFakeStore()
	rec := doRequest(t, newTestServer(f), http.MethodGet, "/v1/countries/brazil/indicators?category=economic")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "economic", f.lastCategory)

	var resp countryIndicatorsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Brazil", resp.Country.Name)
	require.Len(t, resp.Indicators, 1)
	assert.Equal(t, "gdp__current_us__", resp.Indicators[0].Code)
	require.Len(t, resp.Indicators[0].Values, 2)
	assert.Equal(t, 2020, resp.Indicators[0].Values[0].Year)
}

func TestServer_CountryIndicators_NotFound(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newTestServer(newFakeStore()), http.MethodGet, "/v1/countries/atlantis/indicators")

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CountryProfile_GroupsByCategory(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newTestServer(newFakeStore()), http.MethodGet, "/v1/countries/brazil/profile")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp countryProfileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "brazil", resp.Country.Code)
	require.Contains(t, resp.Profile, "economic")
	require.Contains(t, resp.Profile, "other")
	assert.Equal(t, 2020, resp.Profile["economic"][0].Year)
}

func TestServer_Categories_ReturnsCounts(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newTestServer(newFakeStore()), http.MethodGet, "/v1/indicators/categories")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp categoriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Categories, 2)
	assert.Equal(t, "economic", resp.Categories[0].Category)
	assert.Equal(t, 2, resp.Categories[0].Count)
}

func TestServer_APIKey_Required(t *testing.T) {
	t.Parallel()

	metrics.Init()
	cfg := config.Config{
		Server:  config.ServerConfig{Port: 8000, TimeoutSeconds: 30},
		Auth:    config.AuthConfig{Enabled: true, APIKey: "secret"},
		Logging: config.LoggingConfig{Development: true},
	}
	server := NewServer(newFakeStore(), cfg, zap.NewNop())

	rec := doRequest(t, server, http.MethodGet, "/v1/countries")
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/countries", nil)
	req.Header.Set("X-API-Key", "secret")
	withHeader := httptest.NewRecorder()
	server.Handler().ServeHTTP(withHeader, req)
	require.Equal(t, http.StatusOK, withHeader.Code)

	rec = doRequest(t, server, http.MethodGet, "/v1/countries?api_key=secret")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newTestServer(newFakeStore()), http.MethodGet, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "# HELP")
}
