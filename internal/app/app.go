// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/wbstats/internal/config"
	"github.com/JakeFAU/wbstats/internal/logging"
	"github.com/JakeFAU/wbstats/internal/notify"
	notifypubsub "github.com/JakeFAU/wbstats/internal/notify/pubsub"
	"github.com/JakeFAU/wbstats/internal/storage"
	"github.com/JakeFAU/wbstats/internal/storage/local"
	"github.com/JakeFAU/wbstats/internal/storage/memory"
	"github.com/JakeFAU/wbstats/internal/storage/postgres"
	"github.com/JakeFAU/wbstats/internal/storage/sqlite"
	"github.com/JakeFAU/wbstats/internal/store"
)

// App holds the shared, long-lived services for the application: the logger,
// the relational store, the raw-snapshot archive, and the run notifier. It is
// initialized once at startup and passed to the commands that need it.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Store    store.Store
	Archive  storage.Provider
	Notifier notify.Publisher
}

// New builds an App from validated configuration. It instantiates the
// configured providers and fails fast when any critical service cannot be
// initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	logger.Info("Initializing application services")

	st, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize store: %w", err)
	}

	archive, err := newArchive(ctx, cfg, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("initialize archive: %w", err)
	}

	notifier, err := newNotifier(ctx, cfg, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("initialize notifier: %w", err)
	}

	logger.Info("Application services initialized")
	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    st,
		Archive:  archive,
		Notifier: notifier,
	}, nil
}

func newStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.DB.Driver {
	case "sqlite":
		logger.Info("Using SQLite store", zap.String("path", cfg.DB.SQLite.Path))
		return sqlite.NewStore(cfg.DB.SQLite.Path, logger)
	case "postgres":
		logger.Info("Connecting to PostgreSQL")
		return postgres.NewStore(ctx, cfg.DB.Postgres.DSN, int32(cfg.DB.Postgres.MaxConns), logger)
	default:
		return nil, fmt.Errorf("unknown db driver: %s", cfg.DB.Driver)
	}
}

func newArchive(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.Provider, error) {
	switch cfg.Archive.Provider {
	case "gcs":
		logger.Info("Using GCS archive provider", zap.String("bucket", cfg.Archive.GCS.Bucket))
		return storage.NewGCSProvider(ctx, cfg.Archive.GCS.Bucket, nil)
	case "local":
		logger.Info("Using local archive provider", zap.String("base_dir", cfg.Archive.Local.BaseDir))
		return local.New(local.Config{BaseDir: cfg.Archive.Local.BaseDir})
	case "memory":
		return memory.NewBlobStore(), nil
	case "noop":
		logger.Info("Using no-op archive provider; raw snapshots will be discarded")
		return &storage.NoOpProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown archive provider: %s", cfg.Archive.Provider)
	}
}

func newNotifier(ctx context.Context, cfg config.Config, logger *zap.Logger) (notify.Publisher, error) {
	switch cfg.Notify.Provider {
	case "pubsub":
		logger.Info("Connecting to Pub/Sub",
			zap.String("project", cfg.Notify.PubSub.ProjectID),
			zap.String("topic", cfg.Notify.PubSub.TopicID))
		return notifypubsub.New(ctx, cfg.Notify.PubSub.ProjectID, cfg.Notify.PubSub.TopicID)
	case "noop":
		return notify.NoOpPublisher{}, nil
	default:
		return nil, fmt.Errorf("unknown notify provider: %s", cfg.Notify.Provider)
	}
}

// Close gracefully shuts down all services in the App container. Providers
// without shutdown semantics are skipped.
func (a *App) Close() {
	a.Logger.Info("Shutting down application services")
	if a.Store != nil {
		a.Store.Close()
	}
	if c, ok := a.Archive.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			a.Logger.Warn("Error closing archive provider", zap.Error(err))
		}
	}
	if c, ok := a.Notifier.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			a.Logger.Warn("Error closing notifier", zap.Error(err))
		}
	}
	// Flush buffered log entries before the process exits.
	if err := a.Logger.Sync(); err != nil {
		a.Logger.Warn("Error syncing logger on shutdown", zap.Error(err))
	}
}
