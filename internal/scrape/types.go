package scrape

// Page is one fetched document.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	// Rendered is true when the body came from the headless renderer rather
	// than the plain HTTP fetch.
	Rendered bool
}

// CountryLink is one country discovered on the listing page.
type CountryLink struct {
	URL  string `json:"url"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// IndicatorReading is one indicator row lifted from a country detail page.
// Value stays textual; numeric coercion happens downstream.
type IndicatorReading struct {
	Name  string `json:"name"`
	Code  string `json:"code"`
	Value string `json:"value"`
	Year  int    `json:"year"`
}

// CountryRecord is the nested per-country scrape result, keyed by indicator
// category. It mirrors the raw snapshot written to the archive.
type CountryRecord struct {
	Name        string                        `json:"name"`
	Code        string                        `json:"code"`
	URL         string                        `json:"url"`
	Indicators  map[string][]IndicatorReading `json:"indicators"`
	Region      string                        `json:"region"`
	IncomeLevel string                        `json:"income_level"`
	Capital     string                        `json:"capital"`
}
