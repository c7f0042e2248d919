package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/panel-curation-server/internal/api"
	"github.com/panel-curation-server/internal/config"
	"github.com/panel-curation-server/internal/database"
	"github.com/panel-curation-server/internal/service"
	"github.com/panel-curation-server/internal/storage"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := newLogger(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, cleanup, err := openStore(ctx, configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open storage")
	}
	defer cleanup()

	versions, err := service.NewLatestVersionIndex(0)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create version index")
	}

	gate := service.NewVersionGate(logger)
	links := service.NewLinkService(logger)
	panels := service.NewPanelService(store, links, logger)

	services := api.Services{
		Reconciler:  service.NewReconciler(store, gate, versions, panels, links, logger),
		Panels:      panels,
		Transcripts: service.NewTranscriptIngester(store, gate, versions, logger),
		Review:      service.NewReviewService(store, logger),
		Report:      service.NewReportService(store, logger),
	}

	server := api.NewServer(cfg, services, logger)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"backend": cfg.Storage.Backend,
	}).Info("Starting panel curation server")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

// openStore builds the configured storage backend, running migrations first
// for postgres. The returned cleanup closes everything the store owns.
func openStore(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) (storage.Store, func(), error) {
	cfg := configManager.GetConfig()

	if cfg.Storage.Backend == "postgres" {
		runner, err := database.NewMigrationRunner(configManager.GetDatabaseURL(), cfg.Database.MigrationsPath, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := runner.Up(); err != nil {
			runner.Close()
			return nil, nil, err
		}
		if err := runner.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close migration runner")
		}

		db, err := database.NewConnection(ctx, configManager.GetDatabaseConfig(), logger)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewPostgresStore(db.Pool, logger), db.Close, nil
	}

	store, err := storage.NewSQLiteStore(cfg.Storage.SQLitePath, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		if err := store.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close store")
		}
	}, nil
}

func newLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
