// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/kongdeploy/kongdeploy/internal/config"
	"github.com/kongdeploy/kongdeploy/internal/logging"
	"github.com/kongdeploy/kongdeploy/internal/store"
)

const serviceName = "kongdeploy"

// loadConfig resolves configuration for cmd and installs the default logger.
func loadConfig(cmd *cobra.Command, deps *Deps, databaseOnly bool) (*config.Config, *slog.Logger, error) {
	cfg, err := deps.ConfigLoader(config.LoadOptions{
		File:         configFile,
		Flags:        cmd.Flags(),
		DatabaseOnly: databaseOnly,
	})
	if err != nil {
		return nil, nil, oops.With("operation", "load configuration").Wrap(err)
	}

	logger, err := logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, oops.With("operation", "set up logging").Wrap(err)
	}
	return cfg, logger, nil
}

// openDatabase connects to PostgreSQL and brings the schema up to date.
func openDatabase(ctx context.Context, cfg *config.Config, deps *Deps, logger *slog.Logger) (Database, error) {
	db, err := deps.DatabaseConnector(ctx, cfg.Database.URL, store.ConnectOptions{
		MaxConns: cfg.Database.MaxConns,
		Retries:  cfg.Database.ConnectRetries,
	})
	if err != nil {
		return nil, oops.With("operation", "connect to database").Wrap(err)
	}
	logger.Info("connected to database")

	if err := applyMigrations(cfg.Database.URL, deps, logger); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func applyMigrations(url string, deps *Deps, logger *slog.Logger) error {
	migrator, err := deps.MigratorFactory(url)
	if err != nil {
		return oops.With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.With("operation", "run migrations").Wrap(err)
	}

	current, dirty, err := migrator.Version()
	if err != nil {
		return oops.With("operation", "read schema version").Wrap(err)
	}
	if dirty {
		return oops.Code("MIGRATION_DIRTY").With("version", current).
			Errorf("schema version %d is dirty; fix the database and retry", current)
	}

	latest, err := store.LatestVersion()
	if err != nil {
		return err
	}
	if current > latest {
		logger.Warn("database schema is newer than this binary", "schema_version", current, "binary_version", latest)
	}
	logger.Info("database schema ready", "schema_version", current)
	return nil
}
