package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubFetcher struct {
	pages map[string]Page
	errs  map[string]error
	calls []string
}

func (f *stubFetcher) Fetch(_ context.Context, rawURL string) (Page, error) {
	f.calls = append(f.calls, rawURL)
	if err, ok := f.errs[rawURL]; ok {
		return Page{}, err
	}
	page, ok := f.pages[rawURL]
	if !ok {
		return Page{}, &NetworkError{URL: rawURL, StatusCode: 404, Err: errors.New("no stub page")}
	}
	return page, nil
}

func (f *stubFetcher) Headers() map[string]string {
	return map[string]string{"User-Agent": "test-agent"}
}

type stubRenderer struct {
	page  Page
	err   error
	calls int
}

func (r *stubRenderer) Render(_ context.Context, rawURL string, _ map[string]string) (Page, error) {
	r.calls++
	if r.err != nil {
		return Page{}, r.err
	}
	page := r.page
	page.URL = rawURL
	page.Rendered = true
	return page, nil
}

func (r *stubRenderer) Close() {}

func newTestScraper(t *testing.T, fetcher Fetcher, renderer Renderer) *Scraper {
	t.Helper()
	extractor := newTestExtractor(t)
	return NewScraper(
		fetcher,
		extractor,
		NewDetector(100),
		renderer,
		NewPauser(0, 0),
		zap.NewNop(),
	)
}

func TestScraper_CountryList(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{pages: map[string]Page{
		"https://data.worldbank.org/country": {StatusCode: 200, Body: []byte(countryIndexHTML)},
	}}
	s := newTestScraper(t, fetcher, nil)

	links, err := s.CountryList(context.Background())
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, []string{"https://data.worldbank.org/country"}, fetcher.calls)
}

func TestScraper_CountryList_FetchError(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{errs: map[string]error{
		"https://data.worldbank.org/country": &NetworkError{URL: "https://data.worldbank.org/country", StatusCode: 503, Err: errors.New("unavailable")},
	}}
	s := newTestScraper(t, fetcher, nil)

	_, err := s.CountryList(context.Background())
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, 503, netErr.StatusCode)
}

func TestScraper_CountryDetail(t *testing.T) {
	t.Parallel()

	link := CountryLink{URL: "https://data.worldbank.org/country/brazil", Code: "brazil", Name: "Brazil"}
	fetcher := &stubFetcher{pages: map[string]Page{
		link.URL: {StatusCode: 200, Body: []byte(countryDetailHTML)},
	}}
	s := newTestScraper(t, fetcher, nil)

	record, err := s.CountryDetail(context.Background(), link)
	require.NoError(t, err)
	assert.Equal(t, "brazil", record.Code)
	assert.Len(t, record.Indicators["economic"], 2)
}

func TestScraper_CountryDetail_EscalatesThinPages(t *testing.T) {
	t.Parallel()

	link := CountryLink{URL: "https://data.worldbank.org/country/brazil", Code: "brazil", Name: "Brazil"}
	fetcher := &stubFetcher{pages: map[string]Page{
		link.URL: {StatusCode: 200, Body: []byte(`<div id="root"></div>`)},
	}}
	renderer := &stubRenderer{page: Page{StatusCode: 200, Body: []byte(countryDetailHTML)}}
	s := newTestScraper(t, fetcher, renderer)

	record, err := s.CountryDetail(context.Background(), link)
	require.NoError(t, err)
	assert.Equal(t, 1, renderer.calls)
	assert.Len(t, record.Indicators["economic"], 2)
}

func TestScraper_CountryDetail_RenderFailureFallsBack(t *testing.T) {
	t.Parallel()

	link := CountryLink{URL: "https://data.worldbank.org/country/brazil", Code: "brazil", Name: "Brazil"}
	fetcher := &stubFetcher{pages: map[string]Page{
		link.URL: {StatusCode: 200, Body: []byte(`<div id="root"></div>`)},
	}}
	renderer := &stubRenderer{err: errors.New("browser crashed")}
	s := newTestScraper(t, fetcher, renderer)

	record, err := s.CountryDetail(context.Background(), link)
	require.NoError(t, err)
	assert.Equal(t, 1, renderer.calls)
	assert.Empty(t, record.Indicators["economic"])
}

func TestScraper_CountryDetail_NoRenderer(t *testing.T) {
	t.Parallel()

	link := CountryLink{URL: "https://data.worldbank.org/country/brazil", Code: "brazil", Name: "Brazil"}
	fetcher := &stubFetcher{pages: map[string]Page{
		link.URL: {StatusCode: 200, Body: []byte(`<div id="root"></div>`)},
	}}
	s := newTestScraper(t, fetcher, nil)

	record, err := s.CountryDetail(context.Background(), link)
	require.NoError(t, err)
	assert.Empty(t, record.Indicators["economic"])
}
