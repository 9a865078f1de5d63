// Package cmd defines and implements the CLI commands for the wbstats executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/wbstats/internal/app"
	"github.com/JakeFAU/wbstats/internal/config"
	"github.com/JakeFAU/wbstats/internal/logging"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It's a variable so we can
// replace it with a mock factory in our tests.
var newApp = func(ctx context.Context, cfg config.Config) (*app.App, error) {
	return app.New(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wbstats",
		Short: "Scrapes World Bank development statistics and serves them over HTTP.",
		Long: `wbstats collects country development indicators from the World Bank
data portal, normalizes them into a relational dataset, and exposes the
result through a read-only JSON API.`,

		// This hook runs AFTER config is loaded but BEFORE the subcommand's RunE.
		// This is the perfect place to build and inject the application.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			// Store the app instance in the context for subcommands to use.
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		// This hook ensures services are shut down gracefully.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	// Define persistent flags.
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., /etc/wbstats, $HOME/.wbstats)")

	// Add subcommands. They retrieve the app from the command context.
	cmd.AddCommand(newSetupCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSeedCmd())

	return cmd
}

// resolveApp retrieves the application services injected by the root command.
func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// parseCountries interprets the optional positional country-count argument.
// A missing or non-integer argument falls back to the configured default.
func parseCountries(args []string, fallback int, logger *zap.Logger) int {
	if len(args) == 0 {
		return fallback
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		logger.Warn("Invalid country count; using default",
			zap.String("arg", args[0]),
			zap.Int("default", fallback))
		return fallback
	}
	return n
}

// Execute is the main entry point.
func Execute() {
	// Initialize the bootstrap logger once at the very start.
	logging.InitLogger()

	// SIGINT/SIGTERM cancel the command context so a scrape run or the
	// HTTP server can drain before the process exits.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logging.L.Fatal("Command execution failed", zap.Error(err))
	}
}
