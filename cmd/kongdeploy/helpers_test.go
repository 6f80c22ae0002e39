// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

package main

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/kongdeploy/kongdeploy/internal/account"
	"github.com/kongdeploy/kongdeploy/internal/account/memory"
	"github.com/kongdeploy/kongdeploy/internal/config"
	"github.com/kongdeploy/kongdeploy/internal/observability"
	"github.com/kongdeploy/kongdeploy/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{
			Addr:         "127.0.0.1:0",
			CORSOrigins:  []string{"*"},
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		Metrics:  config.MetricsConfig{Addr: "127.0.0.1:0"},
		Database: config.DatabaseConfig{URL: "postgres://kong:pw@localhost/kongdeploy"},
		Token:    config.TokenConfig{Secret: "test-secret", TTL: "1h"},
		Hash:     config.HashConfig{Concurrency: 2},
		Log:      config.LogConfig{Format: "json", Level: "error"},
	}
}

type fakeMigrator struct {
	mu      sync.Mutex
	upErr   error
	version uint
	dirty   bool
	ups     int
	closed  bool
}

func (m *fakeMigrator) Up() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ups++
	return m.upErr
}

func (m *fakeMigrator) Version() (uint, bool, error) {
	return m.version, m.dirty, nil
}

func (m *fakeMigrator) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// harness records what the default-overriding deps produced.
type harness struct {
	cfg      *config.Config
	db       pgxmock.PgxPoolIface
	repo     *memory.Repository
	migrator *fakeMigrator
	listener chan net.Listener
	obs      chan *observability.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := pgxmock.NewPool()
	require.NoError(t, err)

	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	return &harness{
		cfg:      testConfig(),
		db:       db,
		repo:     memory.NewRepository(),
		migrator: &fakeMigrator{version: 2},
		listener: make(chan net.Listener, 1),
		obs:      make(chan *observability.Server, 1),
	}
}

func (h *harness) deps() *Deps {
	return &Deps{
		ConfigLoader: func(config.LoadOptions) (*config.Config, error) {
			return h.cfg, nil
		},
		DatabaseConnector: func(context.Context, string, store.ConnectOptions) (Database, error) {
			return h.db, nil
		},
		MigratorFactory: func(string) (Migrator, error) {
			return h.migrator, nil
		},
		RepositoryFactory: func(Database) account.Repository {
			return h.repo
		},
		ObservabilityServerFactory: func(addr string, ready observability.ReadinessChecker) ObservabilityServer {
			srv := observability.NewServer(addr, ready)
			h.obs <- srv
			return srv
		},
		ListenerFactory: func(network, address string) (net.Listener, error) {
			l, err := net.Listen(network, address)
			if err == nil {
				h.listener <- l
			}
			return l, err
		},
	}
}

func newTestID() ulid.ULID {
	return ulid.Make()
}
