package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/wbstats/internal/clock/system"
	"github.com/JakeFAU/wbstats/internal/config"
	"github.com/JakeFAU/wbstats/internal/hash/sha256"
	"github.com/JakeFAU/wbstats/internal/id/uuid"
	"github.com/JakeFAU/wbstats/internal/normalize"
	"github.com/JakeFAU/wbstats/internal/pipeline"
	"github.com/JakeFAU/wbstats/internal/progress"
	"github.com/JakeFAU/wbstats/internal/progress/sinks"
	"github.com/JakeFAU/wbstats/internal/scrape"
)

// newSetupCmd creates and configures the 'setup' subcommand.
// This command runs the full scrape-normalize-load pipeline against the
// World Bank data portal and replaces the database contents.
func newSetupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup [countries]",
		Short: "Scrapes World Bank data and loads the database",
		Long: `Runs the full extract-transform-load pipeline: fetches the country
index and detail pages from the World Bank data portal, normalizes the
indicator readings, and replaces the database contents with the fresh
snapshot in a single transaction.

The optional argument caps how many countries are scraped; scraping all
of them takes a while because requests are politely spaced out.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSetupCommand,
	}
	return cmd
}

func runSetupCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger
	cfg := appInstance.Config

	countries := parseCountries(args, cfg.Scraper.DefaultCountries, logger)

	scraper, err := buildScraper(cfg, logger)
	if err != nil {
		return err
	}

	promSink, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		return fmt.Errorf("init progress metrics: %w", err)
	}
	hub := progress.NewHub(
		progress.Config{BaseContext: cmd.Context(), Logger: logger},
		sinks.NewLogSink(logger),
		promSink,
	)

	pipe := pipeline.New(pipeline.Deps{
		Scraper:       scraper,
		Normalizer:    normalize.New(scrape.DefaultRuleset(), logger),
		Store:         appInstance.Store,
		Archive:       appInstance.Archive,
		Notifier:      appInstance.Notifier,
		Emitter:       hub,
		Hasher:        sha256.New(),
		Clock:         system.New(),
		IDs:           uuid.New(),
		Logger:        logger,
		ArchivePrefix: cfg.Archive.Prefix,
	})
	defer pipe.Close()

	summary, runErr := pipe.Run(cmd.Context(), countries)

	// Flush buffered progress events even when the run failed.
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if cerr := hub.Close(closeCtx); cerr != nil {
		logger.Warn("Failed to flush progress events", zap.Error(cerr))
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Warn("Setup interrupted before completion")
			return nil
		}
		return fmt.Errorf("run setup: %w", runErr)
	}

	logger.Info("Setup finished",
		zap.String("run_id", summary.RunID),
		zap.Int("countries", summary.Countries),
		zap.Int("indicators", summary.Indicators),
		zap.Int("values", summary.Values),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("took", summary.Duration()))
	return nil
}

// buildScraper assembles the fetch, detect, render, extract stack from
// configuration.
func buildScraper(cfg config.Config, logger *zap.Logger) (*scrape.Scraper, error) {
	client := scrape.NewClient(scrape.ClientConfig{
		UserAgent: cfg.Scraper.UserAgent,
		Timeout:   cfg.Scraper.RequestTimeout(),
	}, logger)

	extractor, err := scrape.NewExtractor(cfg.Scraper.BaseURL, scrape.DefaultRuleset(), logger)
	if err != nil {
		return nil, fmt.Errorf("init extractor: %w", err)
	}

	renderer, err := buildRenderer(cfg, logger)
	if err != nil {
		return nil, err
	}

	detector := scrape.NewDetector(cfg.Headless.PromotionThresh)
	pauser := scrape.NewPauser(cfg.Scraper.DelayMin(), cfg.Scraper.DelayMax())

	return scrape.NewScraper(client, extractor, detector, renderer, pauser, logger), nil
}

// buildRenderer starts the headless browser when rendering escalation is
// enabled. A nil renderer keeps the scraper on the plain-HTTP fast path.
func buildRenderer(cfg config.Config, logger *zap.Logger) (scrape.Renderer, error) {
	if !cfg.Headless.Enabled {
		return nil, nil
	}
	renderer, err := scrape.NewChromeRenderer(scrape.RenderConfig{
		MaxParallel: cfg.Headless.MaxParallel,
		UserAgent:   cfg.Scraper.UserAgent,
		NavTimeout:  cfg.Headless.NavTimeout(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init renderer: %w", err)
	}
	return renderer, nil
}
