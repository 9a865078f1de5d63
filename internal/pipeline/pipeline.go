// Package pipeline orchestrates one scrape run: country list, sequential
// detail fetches with politeness pauses, raw archiving, normalization, and
// the transactional load into the store.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/wbstats/internal/metrics"
	"github.com/JakeFAU/wbstats/internal/normalize"
	"github.com/JakeFAU/wbstats/internal/notify"
	"github.com/JakeFAU/wbstats/internal/progress"
	"github.com/JakeFAU/wbstats/internal/scrape"
	"github.com/JakeFAU/wbstats/internal/storage"
	"github.com/JakeFAU/wbstats/internal/store"
)

// ErrNoCountries signals that the listing page yielded zero country links.
var ErrNoCountries = errors.New("country list yielded no countries")

// ErrNothingScraped signals that every selected country failed to scrape.
var ErrNothingScraped = errors.New("no country pages scraped")

// Summary reports the outcome of one completed run.
type Summary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Countries  int
	Indicators int
	Values     int
	Skipped    int
	Duplicates int
	Checksum   string
}

// Duration is the wall time of the run.
func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Deps bundles the collaborators a Pipeline needs. Archive, Notifier and
// Emitter may be left nil and default to no-ops; everything else is required.
type Deps struct {
	Scraper    Scraper
	Normalizer *normalize.Normalizer
	Store      store.Store
	Archive    storage.Provider
	Notifier   notify.Publisher
	Emitter    progress.Emitter
	Hasher     Hasher
	Clock      Clock
	IDs        IDGenerator
	Logger     *zap.Logger

	// ArchivePrefix scopes raw snapshot object names, resolved once from
	// configuration at startup.
	ArchivePrefix string
}

// Pipeline runs the scrape-normalize-load sequence. One country at a time;
// per-country failures log and continue, persistence failures abort.
type Pipeline struct {
	scraper       Scraper
	normalizer    *normalize.Normalizer
	store         store.Store
	archive       storage.Provider
	notifier      notify.Publisher
	emitter       progress.Emitter
	hasher        Hasher
	clock         Clock
	ids           IDGenerator
	logger        *zap.Logger
	archivePrefix string
}

// New wires a Pipeline from its dependencies.
func New(deps Deps) *Pipeline {
	if deps.Archive == nil {
		deps.Archive = &storage.NoOpProvider{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NoOpPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	metrics.Init()
	return &Pipeline{
		scraper:       deps.Scraper,
		normalizer:    deps.Normalizer,
		store:         deps.Store,
		archive:       deps.Archive,
		notifier:      deps.Notifier,
		emitter:       deps.Emitter,
		hasher:        deps.Hasher,
		clock:         deps.Clock,
		ids:           deps.IDs,
		logger:        deps.Logger,
		archivePrefix: deps.ArchivePrefix,
	}
}

// Run scrapes up to countries country pages and replaces the store contents
// with the normalized result. The returned Summary is only meaningful when
// err is nil.
func (p *Pipeline) Run(ctx context.Context, countries int) (Summary, error) {
	rawID, err := p.ids.NewRawID()
	if err != nil {
		return Summary{}, fmt.Errorf("generate run id: %w", err)
	}
	runID := rawID.String()
	runKey := progress.UUIDToBytes(rawID)
	started := p.clock.Now()
	logger := p.logger.With(zap.String("run_id", runID))

	logger.Info("Starting scrape run", zap.Int("countries", countries))
	p.emit(progress.Event{RunID: runKey, TS: started, Stage: progress.StageRunStart})

	links, err := p.scraper.CountryList(ctx)
	if err != nil {
		p.emitRunError(runKey, started, err)
		return Summary{}, fmt.Errorf("fetch country list: %w", err)
	}
	if len(links) == 0 {
		p.emitRunError(runKey, started, ErrNoCountries)
		return Summary{}, ErrNoCountries
	}
	if countries > 0 && countries < len(links) {
		links = links[:countries]
	}
	p.archiveJSON(ctx, logger, p.objectName(runID, "countries_raw.json"), links)

	records := make([]scrape.CountryRecord, 0, len(links))
	for _, link := range links {
		record, ok, err := p.scrapeCountry(ctx, logger, runID, runKey, link)
		if err != nil {
			p.emitRunError(runKey, started, err)
			return Summary{}, err
		}
		if ok {
			records = append(records, record)
		}
		// The politeness pause runs after every page, including the last.
		p.scraper.Pause(ctx)
	}
	if len(records) == 0 {
		p.emitRunError(runKey, started, ErrNothingScraped)
		return Summary{}, ErrNothingScraped
	}

	snap, stats := p.normalizer.Flatten(records)
	logger.Info("Normalized scrape output",
		zap.Int("countries", stats.Countries),
		zap.Int("indicators", stats.Indicators),
		zap.Int("values", stats.Values),
		zap.Int("skipped_values", stats.SkippedValues),
		zap.Int("duplicate_values", stats.DuplicateValues))

	if err := p.load(ctx, snap); err != nil {
		p.emitRunError(runKey, started, err)
		return Summary{}, err
	}

	finished := p.clock.Now()
	summary := Summary{
		RunID:      runID,
		StartedAt:  started,
		FinishedAt: finished,
		Countries:  stats.Countries,
		Indicators: stats.Indicators,
		Values:     stats.Values,
		Skipped:    stats.SkippedValues,
		Duplicates: stats.DuplicateValues,
		Checksum:   p.checksum(logger, snap),
	}

	if err := p.notifier.RunCompleted(ctx, notify.RunCompleted{
		RunID:      summary.RunID,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
		Countries:  summary.Countries,
		Indicators: summary.Indicators,
		Values:     summary.Values,
		Checksum:   summary.Checksum,
	}); err != nil {
		logger.Warn("Failed to publish run completion", zap.Error(err))
	}

	p.emit(progress.Event{
		RunID: runKey,
		TS:    finished,
		Stage: progress.StageRunDone,
		Dur:   finished.Sub(started),
	})
	logger.Info("Scrape run finished",
		zap.Int("countries", summary.Countries),
		zap.Int("indicators", summary.Indicators),
		zap.Int("values", summary.Values),
		zap.Duration("duration", summary.Duration()))
	return summary, nil
}

// Close releases the scraper's resources.
func (p *Pipeline) Close() {
	p.scraper.Close()
}

// scrapeCountry fetches one country page. A scrape failure is contained: the
// country is skipped with ok=false. Context cancellation is the exception and
// aborts the run.
func (p *Pipeline) scrapeCountry(
	ctx context.Context,
	logger *zap.Logger,
	runID string,
	runKey [16]byte,
	link scrape.CountryLink,
) (scrape.CountryRecord, bool, error) {
	fetchStart := p.clock.Now()
	p.emit(progress.Event{
		RunID:   runKey,
		TS:      fetchStart,
		Stage:   progress.StageCountryStart,
		Country: link.Code,
		URL:     link.URL,
	})

	record, err := p.scraper.CountryDetail(ctx, link)
	if err != nil {
		if ctx.Err() != nil {
			return scrape.CountryRecord{}, false, fmt.Errorf("scrape %s: %w", link.Code, ctx.Err())
		}
		logger.Warn("Failed to scrape country; skipping",
			zap.String("country", link.Code),
			zap.String("url", link.URL),
			zap.Error(err))
		p.emit(progress.Event{
			RunID:       runKey,
			TS:          p.clock.Now(),
			Stage:       progress.StageCountryDone,
			Country:     link.Code,
			URL:         link.URL,
			StatusClass: classify(err),
			Dur:         p.clock.Now().Sub(fetchStart),
			Note:        err.Error(),
		})
		return scrape.CountryRecord{}, false, nil
	}

	data := p.archiveJSON(ctx, logger, p.objectName(runID, "indicators_"+link.Code+".json"), record)
	p.emit(progress.Event{
		RunID:       runKey,
		TS:          p.clock.Now(),
		Stage:       progress.StageCountryDone,
		Country:     link.Code,
		URL:         link.URL,
		Bytes:       int64(len(data)),
		Readings:    countReadings(record),
		StatusClass: progress.Status2xx,
		Dur:         p.clock.Now().Sub(fetchStart),
	})
	return record, true, nil
}

// load ensures the schema and swaps in the snapshot, then publishes the new
// row counts as gauges.
func (p *Pipeline) load(ctx context.Context, snap store.Snapshot) error {
	if err := p.store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	if err := p.store.ReplaceAll(ctx, snap); err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	metrics.SetLoadedRows("countries", len(snap.Countries))
	metrics.SetLoadedRows("indicators", len(snap.Indicators))
	metrics.SetLoadedRows("indicator_values", len(snap.Values))
	return nil
}

// archiveJSON marshals v and saves it under objectName. Archive failures are
// logged, never fatal; the raw snapshots are best-effort debug artifacts.
// The marshaled bytes are returned for size accounting.
func (p *Pipeline) archiveJSON(ctx context.Context, logger *zap.Logger, objectName string, v any) []byte {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Warn("Failed to marshal raw snapshot", zap.String("object", objectName), zap.Error(err))
		return nil
	}
	if err := p.archive.Save(ctx, objectName, data); err != nil {
		logger.Warn("Failed to archive raw snapshot", zap.String("object", objectName), zap.Error(err))
	}
	return data
}

// checksum digests the snapshot for the completion event. A hashing failure
// degrades to an empty checksum.
func (p *Pipeline) checksum(logger *zap.Logger, snap store.Snapshot) string {
	data, err := json.Marshal(snap)
	if err != nil {
		logger.Warn("Failed to marshal snapshot for checksum", zap.Error(err))
		return ""
	}
	sum, err := p.hasher.Hash(data)
	if err != nil {
		logger.Warn("Failed to checksum snapshot", zap.Error(err))
		return ""
	}
	return sum
}

func (p *Pipeline) objectName(runID, name string) string {
	return path.Join(p.archivePrefix, runID, name)
}

func (p *Pipeline) emit(evt progress.Event) {
	if p.emitter == nil {
		return
	}
	p.emitter.Emit(evt)
}

func (p *Pipeline) emitRunError(runKey [16]byte, started time.Time, err error) {
	now := p.clock.Now()
	p.emit(progress.Event{
		RunID: runKey,
		TS:    now,
		Stage: progress.StageRunError,
		Dur:   now.Sub(started),
		Note:  err.Error(),
	})
}

// classify maps a scrape failure to a status class, using the HTTP status
// carried by NetworkError when there is one.
func classify(err error) progress.StatusClass {
	var netErr *scrape.NetworkError
	if errors.As(err, &netErr) && netErr.StatusCode > 0 {
		return progress.ClassifyStatus(netErr.StatusCode)
	}
	return progress.StatusOther
}

func countReadings(record scrape.CountryRecord) int64 {
	var n int64
	for _, readings := range record.Indicators {
		n += int64(len(readings))
	}
	return n
}
