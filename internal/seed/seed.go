// Package seed builds synthetic snapshots so the query API can be exercised
// without scraping the live site.
package seed

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/jaswdr/faker"
	"go.uber.org/zap"

	"github.com/JakeFAU/wbstats/internal/normalize"
	"github.com/JakeFAU/wbstats/internal/store"
)

const (
	defaultCountries = 10
	maxCountries     = 250
	latestYear       = 2023
	maxYearSpan      = 5
)

// indicatorSpec fixes the catalog of generated indicators with a plausible
// value range each.
type indicatorSpec struct {
	code     string
	name     string
	category string
	min      float64
	max      float64
}

var catalog = []indicatorSpec{
	{"life_expectancy_at_birth", "Life expectancy at birth (years)", "social", 55, 85},
	{"population_total", "Population, total (millions)", "social", 0.5, 1400},
	{"school_enrollment_primary", "School enrollment, primary (% net)", "social", 60, 100},
	{"gdp_current_usd", "GDP (current US$ billions)", "economic", 5, 25000},
	{"gdp_per_capita", "GDP per capita (current US$)", "economic", 500, 90000},
	{"inflation_consumer_prices", "Inflation, consumer prices (annual %)", "economic", -2, 40},
	{"unemployment_rate", "Unemployment, total (% of labor force)", "economic", 2, 30},
	{"co2_emissions_per_capita", "CO2 emissions (metric tons per capita)", "environment", 0.1, 20},
	{"forest_area", "Forest area (% of land area)", "environment", 1, 70},
	{"renewable_energy_consumption", "Renewable energy consumption (%)", "environment", 2, 90},
	{"government_effectiveness", "Government effectiveness index", "institutions", -2.5, 2.5},
	{"control_of_corruption", "Control of corruption index", "institutions", -2.5, 2.5},
}

var regions = []string{
	"East Asia & Pacific",
	"Europe & Central Asia",
	"Latin America & Caribbean",
	"Middle East & North Africa",
	"North America",
	"South Asia",
	"Sub-Saharan Africa",
}

var incomeLevels = []string{
	"Low income",
	"Lower middle income",
	"Upper middle income",
	"High income",
}

// Generator produces fake but structurally faithful snapshots.
type Generator struct {
	faker  faker.Faker
	logger *zap.Logger
}

// New builds a Generator.
func New(logger *zap.Logger) *Generator {
	return &Generator{faker: faker.New(), logger: logger}
}

// Snapshot generates countries fake countries with values across the fixed
// indicator catalog. Counts outside [1, 250] fall back to sensible bounds.
func (g *Generator) Snapshot(countries int) store.Snapshot {
	if countries < 1 {
		countries = defaultCountries
	}
	if countries > maxCountries {
		countries = maxCountries
	}

	snap := store.Snapshot{
		Countries:  g.countries(countries),
		Indicators: make([]store.Indicator, 0, len(catalog)),
		Values:     make([]store.IndicatorValue, 0, countries*len(catalog)),
	}
	for _, spec := range catalog {
		snap.Indicators = append(snap.Indicators, store.Indicator{
			Code:     spec.code,
			Name:     spec.name,
			Category: spec.category,
			Source:   normalize.SourceLabel,
		})
	}
	for _, country := range snap.Countries {
		snap.Values = append(snap.Values, g.values(country.Code)...)
	}

	g.logger.Info("Generated seed snapshot",
		zap.Int("countries", len(snap.Countries)),
		zap.Int("indicators", len(snap.Indicators)),
		zap.Int("values", len(snap.Values)))
	return snap
}

// countries draws fake country names until the requested number of distinct
// codes is reached. Faker's country pool is finite, so exhausted draws fall
// back to numbered placeholders.
func (g *Generator) countries(n int) []store.Country {
	out := make([]store.Country, 0, n)
	seen := make(map[string]bool)
	for attempts := 0; len(out) < n && attempts < n*50; attempts++ {
		name := g.faker.Address().Country()
		code := slug(name)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, g.country(name, code))
	}
	for i := len(out); i < n; i++ {
		name := fmt.Sprintf("Country %d", i+1)
		out = append(out, g.country(name, slug(name)))
	}
	return out
}

func (g *Generator) country(name, code string) store.Country {
	longitude := g.faker.Address().Longitude()
	latitude := g.faker.Address().Latitude()
	c := store.Country{
		Code:        code,
		Name:        name,
		Region:      regions[rand.Intn(len(regions))],
		IncomeLevel: incomeLevels[rand.Intn(len(incomeLevels))],
		Capital:     g.faker.Address().City(),
		Longitude:   &longitude,
		Latitude:    &latitude,
	}
	if len(code) >= 2 {
		c.ISO2 = strings.ToLower(code[:2])
	}
	if len(code) >= 3 {
		c.ISO3 = strings.ToUpper(code[:3])
	}
	return c
}

// values emits one short year series per indicator, ending at a recent year
// so profile queries have a clear winner.
func (g *Generator) values(countryCode string) []store.IndicatorValue {
	out := make([]store.IndicatorValue, 0, len(catalog)*maxYearSpan)
	for _, spec := range catalog {
		span := rand.Intn(maxYearSpan) + 1
		last := latestYear - rand.Intn(2)
		for year := last - span + 1; year <= last; year++ {
			out = append(out, store.IndicatorValue{
				CountryCode:   countryCode,
				IndicatorCode: spec.code,
				Year:          year,
				Value:         round1(spec.min + rand.Float64()*(spec.max-spec.min)),
			})
		}
	}
	return out
}

// slug mirrors the site's country path segments: lowercase with runs of
// non-alphanumerics collapsed to single dashes.
func slug(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
