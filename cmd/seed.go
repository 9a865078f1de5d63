package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/wbstats/internal/seed"
)

// newSeedCmd creates and configures the 'seed' subcommand.
func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed [countries]",
		Short: "Loads generated demo data into the database",
		Long: `Generates a realistic fake dataset and loads it into the database,
skipping the scrape entirely. Useful for API development and demos when
hitting the live site is undesirable.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSeedCommand,
	}
	return cmd
}

func runSeedCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger

	countries := parseCountries(args, appInstance.Config.Scraper.DefaultCountries, logger)
	snap := seed.New(logger).Snapshot(countries)

	ctx := cmd.Context()
	if err := appInstance.Store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	if err := appInstance.Store.ReplaceAll(ctx, snap); err != nil {
		return fmt.Errorf("load seed snapshot: %w", err)
	}

	logger.Info("Seed finished",
		zap.Int("countries", len(snap.Countries)),
		zap.Int("indicators", len(snap.Indicators)),
		zap.Int("values", len(snap.Values)))
	return nil
}
