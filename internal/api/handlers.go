package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/wbstats/internal/store"
)

const (
	defaultSkip  = 0
	defaultLimit = 100
	maxLimit     = 500
)

// countriesResponse is the paged listing envelope.
type countriesResponse struct {
	Total int                    `json:"total"`
	Data  []store.CountrySummary `json:"data"`
}

// countryIndicatorsResponse pairs a country with its indicator series.
type countryIndicatorsResponse struct {
	Country    store.Country           `json:"country"`
	Indicators []store.IndicatorSeries `json:"indicators"`
}

// countryProfileResponse pairs a country with its latest observation per
// indicator, grouped by category.
type countryProfileResponse struct {
	Country store.Country                   `json:"country"`
	Profile map[string][]store.ProfileEntry `json:"profile"`
}

type categoriesResponse struct {
	Categories []store.CategoryCount `json:"categories"`
}

func (s *Server) listCountries(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", defaultSkip)
	if err != nil {
		writeError(w, http.StatusBadRequest, "skip must be an integer")
		return
	}
	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	if skip < 0 {
		skip = 0
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	countries, total, err := s.store.ListCountries(r.Context(), skip, limit)
	if err != nil {
		s.logger.Error("Failed to list countries", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list countries")
		return
	}
	if countries == nil {
		countries = []store.CountrySummary{}
	}
	writeJSON(w, http.StatusOK, countriesResponse{Total: total, Data: countries})
}

func (s *Server) getCountry(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	country, err := s.store.GetCountry(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "country not found")
			return
		}
		s.logger.Error("Failed to load country", zap.String("code", code), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load country")
		return
	}
	writeJSON(w, http.StatusOK, country)
}

func (s *Server) countryIndicators(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	category := r.URL.Query().Get("category")

	country, series, err := s.store.CountryIndicators(r.Context(), code, category)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "country not found")
			return
		}
		s.logger.Error("Failed to load country indicators", zap.String("code", code), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load country indicators")
		return
	}
	if series == nil {
		series = []store.IndicatorSeries{}
	}
	writeJSON(w, http.StatusOK, countryIndicatorsResponse{Country: country, Indicators: series})
}

func (s *Server) countryProfile(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	country, profile, err := s.store.CountryProfile(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "country not found")
			return
		}
		s.logger.Error("Failed to load country profile", zap.String("code", code), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load country profile")
		return
	}
	if profile == nil {
		profile = map[string][]store.ProfileEntry{}
	}
	writeJSON(w, http.StatusOK, countryProfileResponse{Country: country, Profile: profile})
}

func (s *Server) categories(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Categories(r.Context())
	if err != nil {
		s.logger.Error("Failed to load categories", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load categories")
		return
	}
	if counts == nil {
		counts = []store.CategoryCount{}
	}
	writeJSON(w, http.StatusOK, categoriesResponse{Categories: counts})
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return value, nil
}
