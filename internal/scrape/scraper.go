package scrape

import (
	"context"

	"go.uber.org/zap"
)

// Fetcher retrieves a single page over plain HTTP.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
	Headers() map[string]string
}

// Scraper orchestrates the fetch, detect, render, extract cycle for the
// country index and detail pages. Fetches are sequential; the pauser spaces
// them out.
type Scraper struct {
	fetcher   Fetcher
	extractor *Extractor
	detector  *Detector
	renderer  Renderer
	pauser    *Pauser
	logger    *zap.Logger
}

// NewScraper wires a scraper from its collaborators. renderer may be nil, in
// which case thin pages are used as fetched instead of being escalated to a
// browser.
func NewScraper(
	fetcher Fetcher,
	extractor *Extractor,
	detector *Detector,
	renderer Renderer,
	pauser *Pauser,
	logger *zap.Logger,
) *Scraper {
	return &Scraper{
		fetcher:   fetcher,
		extractor: extractor,
		detector:  detector,
		renderer:  renderer,
		pauser:    pauser,
		logger:    logger,
	}
}

// CountryList fetches the index page and returns the unique country links.
func (s *Scraper) CountryList(ctx context.Context) ([]CountryLink, error) {
	listURL := s.extractor.ListURL()
	s.logger.Info("Fetching country list", zap.String("url", listURL))

	page, err := s.fetchPage(ctx, listURL)
	if err != nil {
		return nil, err
	}
	links, err := s.extractor.CountryList(page.Body)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Found unique countries", zap.Int("count", len(links)))
	return links, nil
}

// CountryDetail fetches one country page and extracts its record.
func (s *Scraper) CountryDetail(ctx context.Context, link CountryLink) (CountryRecord, error) {
	s.logger.Info("Fetching country data",
		zap.String("country", link.Name),
		zap.String("code", link.Code))

	page, err := s.fetchPage(ctx, link.URL)
	if err != nil {
		return CountryRecord{}, err
	}
	return s.extractor.CountryDetail(page.Body, link)
}

// Pause sleeps the configured randomized interval between page fetches.
func (s *Scraper) Pause(ctx context.Context) {
	s.pauser.Pause(ctx)
}

// Close releases the renderer, if one is attached.
func (s *Scraper) Close() {
	if s.renderer != nil {
		s.renderer.Close()
	}
}

// fetchPage fetches a URL and escalates to the headless renderer when the
// response looks client-rendered. Render failures fall back to the plain
// fetch rather than failing the page.
func (s *Scraper) fetchPage(ctx context.Context, rawURL string) (Page, error) {
	page, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return Page{}, err
	}
	if s.renderer == nil || !s.detector.ShouldRender(page) {
		return page, nil
	}

	TotalRenderEscalations.Inc()
	s.logger.Debug("Escalating to headless render", zap.String("url", rawURL))
	rendered, err := s.renderer.Render(ctx, rawURL, s.fetcher.Headers())
	if err != nil {
		s.logger.Warn("Headless render failed, using plain fetch",
			zap.String("url", rawURL),
			zap.Error(err))
		return page, nil
	}
	return rendered, nil
}
