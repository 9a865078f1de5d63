// Package normalize flattens nested scrape records into the relational
// snapshot the store persists.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/wbstats/internal/scrape"
	"github.com/JakeFAU/wbstats/internal/store"
)

// SourceLabel is stamped on every indicator definition.
const SourceLabel = "World Bank"

// valueScrub strips everything that is not a digit, decimal point or minus
// sign before numeric parsing. Thousands separators and units disappear;
// ranges like "15-20" survive the scrub and fail the parse instead. Known
// limitation: comma-decimal text loses its separator and parses as a larger
// integer ("3,14" becomes 314), and parenthesized negatives lose their sign.
var valueScrub = regexp.MustCompile(`[^0-9.\-]`)

// CoercionError reports value text that still would not parse after
// scrubbing. The value is skipped; the record around it survives.
type CoercionError struct {
	Raw string
	Err error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("coerce %q: %v", e.Raw, e.Err)
}

func (e *CoercionError) Unwrap() error {
	return e.Err
}

// CoerceValue turns display text like "1,444.7" or "$5.2%" into a float.
// Text with no numeric content at all coerces to (0, false) and is treated
// as an absent observation rather than an error.
func CoerceValue(raw string) (float64, bool, error) {
	cleaned := valueScrub.ReplaceAllString(raw, "")
	if cleaned == "" {
		return 0, false, nil
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false, &CoercionError{Raw: raw, Err: err}
	}
	return value, true, nil
}

// Stats summarizes one Flatten pass.
type Stats struct {
	Countries       int
	Indicators      int
	Values          int
	SkippedValues   int
	DuplicateValues int
}

// Normalizer flattens scrape output. Indicator definitions are deduplicated
// on first sight and each (country, indicator, year) triple is kept once.
type Normalizer struct {
	categories  []string
	yearPattern *regexp.Regexp
	source      string
	logger      *zap.Logger
}

// New builds a normalizer sharing the scraper's category order and year
// marker pattern.
func New(rules scrape.Ruleset, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		categories:  rules.Categories,
		yearPattern: rules.YearPattern,
		source:      SourceLabel,
		logger:      logger,
	}
}

type tripleKey struct {
	country   string
	indicator string
	year      int
}

// Flatten maps every scraped country to one snapshot row set. Value-level
// failures are logged and counted but never abort the pass.
func (n *Normalizer) Flatten(records []scrape.CountryRecord) (store.Snapshot, Stats) {
	snap := store.Snapshot{
		Countries:  make([]store.Country, 0, len(records)),
		Indicators: make([]store.Indicator, 0),
		Values:     make([]store.IndicatorValue, 0),
	}
	stats := Stats{}
	seenIndicators := make(map[string]bool)
	seenTriples := make(map[tripleKey]bool)

	for _, record := range records {
		snap.Countries = append(snap.Countries, n.country(record))

		for _, category := range n.categories {
			for _, reading := range record.Indicators[category] {
				if !seenIndicators[reading.Code] {
					seenIndicators[reading.Code] = true
					snap.Indicators = append(snap.Indicators, store.Indicator{
						Code:        reading.Code,
						Name:        reading.Name,
						Category:    category,
						Description: "",
						Source:      n.source,
					})
				}

				value, ok := n.observation(record, reading, &stats)
				if !ok {
					continue
				}
				key := tripleKey{country: record.Code, indicator: reading.Code, year: value.Year}
				if seenTriples[key] {
					stats.DuplicateValues++
					n.logger.Debug("Dropping duplicate observation",
						zap.String("country", key.country),
						zap.String("indicator", key.indicator),
						zap.Int("year", key.year))
					continue
				}
				seenTriples[key] = true
				snap.Values = append(snap.Values, value)
			}
		}
	}

	stats.Countries = len(snap.Countries)
	stats.Indicators = len(snap.Indicators)
	stats.Values = len(snap.Values)
	return snap, stats
}

// country maps one scraped record to a countries row. ISO codes are sliced
// from the site code, which is best effort and documented as such.
func (n *Normalizer) country(record scrape.CountryRecord) store.Country {
	c := store.Country{
		Code:        record.Code,
		Name:        record.Name,
		Region:      record.Region,
		IncomeLevel: record.IncomeLevel,
		Capital:     record.Capital,
	}
	if len(record.Code) >= 2 {
		c.ISO2 = strings.ToLower(record.Code[:2])
	}
	if len(record.Code) >= 3 {
		c.ISO3 = strings.ToUpper(record.Code[:3])
	}
	return c
}

// observation coerces one reading into a value row. A year marker still
// embedded in the value text overrides the reading's year and is stripped
// before coercion, so "1,444.7 (2020)" never folds its year digits into the
// number.
func (n *Normalizer) observation(record scrape.CountryRecord, reading scrape.IndicatorReading, stats *Stats) (store.IndicatorValue, bool) {
	raw := reading.Value
	year := reading.Year
	if m := n.yearPattern.FindStringSubmatch(raw); m != nil {
		if parsed, err := strconv.Atoi(m[1]); err == nil {
			year = parsed
		}
		raw = strings.TrimSpace(strings.ReplaceAll(raw, m[0], ""))
	}
	if year == 0 {
		stats.SkippedValues++
		return store.IndicatorValue{}, false
	}

	value, ok, err := CoerceValue(raw)
	if err != nil {
		stats.SkippedValues++
		n.logger.Warn("Failed to coerce indicator value",
			zap.String("country", record.Name),
			zap.String("indicator", reading.Name),
			zap.String("raw", reading.Value),
			zap.Error(err))
		return store.IndicatorValue{}, false
	}
	if !ok {
		stats.SkippedValues++
		n.logger.Debug("Indicator value has no numeric content",
			zap.String("country", record.Name),
			zap.String("indicator", reading.Name),
			zap.String("raw", reading.Value))
		return store.IndicatorValue{}, false
	}

	return store.IndicatorValue{
		CountryCode:   record.Code,
		IndicatorCode: reading.Code,
		Year:          year,
		Value:         value,
	}, true
}
