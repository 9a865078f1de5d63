package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/wbstats/internal/scrape"
	"github.com/JakeFAU/wbstats/internal/store"
)

func newTestNormalizer() *Normalizer {
	return New(scrape.DefaultRuleset(), zap.NewNop())
}

func TestCoerceValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    float64
		present bool
		wantErr bool
	}{
		{name: "plain number", raw: "3.14", want: 3.14, present: true},
		{name: "percentage", raw: "5.2%", want: 5.2, present: true},
		{name: "currency with separators", raw: "$1,444.7", want: 1444.7, present: true},
		{name: "negative", raw: "-2.5", want: -2.5, present: true},
		{name: "empty", raw: ""},
		{name: "not available marker", raw: "N/A"},
		{name: "words only", raw: "no data"},
		{name: "range keeps both numbers", raw: "15-20", wantErr: true},
		{name: "two decimal points", raw: "1.2.3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, present, err := CoerceValue(tt.raw)
			if tt.wantErr {
				var coerceErr *CoercionError
				require.ErrorAs(t, err, &coerceErr)
				assert.Equal(t, tt.raw, coerceErr.Raw)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.present, present)
			if tt.present {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestNormalizer_Flatten(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()
	records := []scrape.CountryRecord{
		{
			Name:        "Brazil",
			Code:        "brazil",
			URL:         "https://data.worldbank.org/country/brazil",
			Region:      "Latin America & Caribbean",
			IncomeLevel: "Upper middle income",
			Indicators: map[string][]scrape.IndicatorReading{
				"social": {
					{Name: "Life expectancy", Code: "life_expectancy", Value: "75.9", Year: 2021},
				},
				"economic": {
					{Name: "GDP (current US$)", Code: "gdp__current_us__", Value: "1,444.7 (2020)", Year: 2023},
					{Name: "GDP (current US$)", Code: "gdp__current_us__", Value: "1,609.0 (2020)", Year: 2023},
					{Name: "Inflation rate", Code: "inflation_rate", Value: "N/A", Year: 2023},
				},
			},
		},
		{
			Name: "Chile",
			Code: "chile",
			URL:  "https://data.worldbank.org/country/chile",
			Indicators: map[string][]scrape.IndicatorReading{
				"economic": {
					{Name: "GDP (current US$)", Code: "gdp__current_us__", Value: "317.1 (2020)", Year: 2023},
				},
			},
		},
	}

	snap, stats := n.Flatten(records)

	require.Len(t, snap.Countries, 2)
	assert.Equal(t, store.Country{
		Code:        "brazil",
		Name:        "Brazil",
		Region:      "Latin America & Caribbean",
		IncomeLevel: "Upper middle income",
		ISO2:        "br",
		ISO3:        "BRA",
	}, snap.Countries[0])
	assert.Equal(t, "ch", snap.Countries[1].ISO2)
	assert.Equal(t, "CHI", snap.Countries[1].ISO3)

	require.Len(t, snap.Indicators, 3)
	assert.Equal(t, store.Indicator{
		Code:     "life_expectancy",
		Name:     "Life expectancy",
		Category: "social",
		Source:   SourceLabel,
	}, snap.Indicators[0])
	assert.Equal(t, "gdp__current_us__", snap.Indicators[1].Code)
	assert.Equal(t, "inflation_rate", snap.Indicators[2].Code)

	require.Len(t, snap.Values, 3)
	assert.Equal(t, store.IndicatorValue{
		CountryCode:   "brazil",
		IndicatorCode: "life_expectancy",
		Year:          2021,
		Value:         75.9,
	}, snap.Values[0])
	assert.Equal(t, store.IndicatorValue{
		CountryCode:   "brazil",
		IndicatorCode: "gdp__current_us__",
		Year:          2020,
		Value:         1444.7,
	}, snap.Values[1])
	assert.Equal(t, "chile", snap.Values[2].CountryCode)

	assert.Equal(t, Stats{
		Countries:       2,
		Indicators:      3,
		Values:          3,
		SkippedValues:   1,
		DuplicateValues: 1,
	}, stats)
}

func TestNormalizer_Flatten_YearInValueOverridesReading(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()
	records := []scrape.CountryRecord{{
		Name: "Peru",
		Code: "peru",
		Indicators: map[string][]scrape.IndicatorReading{
			"social": {{Name: "Literacy", Code: "literacy", Value: "94.5 (2018)", Year: 2023}},
		},
	}}

	snap, _ := n.Flatten(records)

	require.Len(t, snap.Values, 1)
	assert.Equal(t, 2018, snap.Values[0].Year)
	assert.InDelta(t, 94.5, snap.Values[0].Value, 1e-9)
}

func TestNormalizer_Flatten_FirstCategoryWins(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()
	records := []scrape.CountryRecord{{
		Name: "Ghana",
		Code: "ghana",
		Indicators: map[string][]scrape.IndicatorReading{
			"social":   {{Name: "Access to electricity", Code: "access_to_electricity", Value: "85.9", Year: 2021}},
			"economic": {{Name: "Access to electricity", Code: "access_to_electricity", Value: "85.9", Year: 2021}},
		},
	}}

	snap, stats := n.Flatten(records)

	require.Len(t, snap.Indicators, 1)
	assert.Equal(t, "social", snap.Indicators[0].Category)
	require.Len(t, snap.Values, 1)
	assert.Equal(t, 1, stats.DuplicateValues)
}

func TestNormalizer_Flatten_ShortCodesSkipISOTruncation(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()
	records := []scrape.CountryRecord{
		{Name: "Single", Code: "x"},
		{Name: "Double", Code: "xk"},
	}

	snap, _ := n.Flatten(records)

	require.Len(t, snap.Countries, 2)
	assert.Empty(t, snap.Countries[0].ISO2)
	assert.Empty(t, snap.Countries[0].ISO3)
	assert.Equal(t, "xk", snap.Countries[1].ISO2)
	assert.Empty(t, snap.Countries[1].ISO3)
}

func TestNormalizer_Flatten_BadValueStillRegistersIndicator(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()
	records := []scrape.CountryRecord{{
		Name: "Kenya",
		Code: "kenya",
		Indicators: map[string][]scrape.IndicatorReading{
			"economic": {{Name: "GDP range", Code: "gdp_range", Value: "15-20", Year: 2022}},
		},
	}}

	snap, stats := n.Flatten(records)

	require.Len(t, snap.Indicators, 1)
	assert.Equal(t, "gdp_range", snap.Indicators[0].Code)
	assert.Empty(t, snap.Values)
	assert.Equal(t, 1, stats.SkippedValues)
}

func TestNormalizer_Flatten_Empty(t *testing.T) {
	t.Parallel()

	snap, stats := newTestNormalizer().Flatten(nil)

	assert.Empty(t, snap.Countries)
	assert.Empty(t, snap.Indicators)
	assert.Empty(t, snap.Values)
	assert.Equal(t, Stats{}, stats)
}
