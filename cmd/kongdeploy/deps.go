// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

package main

import (
	"context"
	"net"

	"github.com/kongdeploy/kongdeploy/internal/account"
	"github.com/kongdeploy/kongdeploy/internal/account/postgres"
	"github.com/kongdeploy/kongdeploy/internal/config"
	"github.com/kongdeploy/kongdeploy/internal/observability"
	"github.com/kongdeploy/kongdeploy/internal/store"
)

// Deps contains injectable dependencies for serve and admin.
// All fields with nil values will use their default implementations.
type Deps struct {
	// ConfigLoader resolves configuration.
	// Default: config.Load
	ConfigLoader func(opts config.LoadOptions) (*config.Config, error)

	// DatabaseConnector opens the connection pool.
	// Default: store.Connect
	DatabaseConnector func(ctx context.Context, url string, opts store.ConnectOptions) (Database, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// RepositoryFactory builds the account repository over the pool.
	// Default: postgres.NewRepository
	RepositoryFactory func(db Database) account.Repository

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// ListenerFactory creates the API listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)
}

// Database wraps the pool methods used by the service.
type Database interface {
	postgres.DB
	Ping(ctx context.Context) error
	Close()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Version() (version uint, dirty bool, err error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.ConfigLoader == nil {
		out.ConfigLoader = config.Load
	}
	if out.DatabaseConnector == nil {
		out.DatabaseConnector = func(ctx context.Context, url string, opts store.ConnectOptions) (Database, error) {
			pool, err := store.Connect(ctx, url, opts)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(url string) (Migrator, error) {
			m, err := store.NewMigrator(url)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	if out.RepositoryFactory == nil {
		out.RepositoryFactory = func(db Database) account.Repository {
			return postgres.NewRepository(db)
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if out.ListenerFactory == nil {
		out.ListenerFactory = net.Listen
	}
	return &out
}
