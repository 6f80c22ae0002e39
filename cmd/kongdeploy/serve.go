// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/kongdeploy/kongdeploy/internal/account"
	"github.com/kongdeploy/kongdeploy/internal/config"
	"github.com/kongdeploy/kongdeploy/internal/httpapi"
	"github.com/kongdeploy/kongdeploy/internal/observability"
	"github.com/kongdeploy/kongdeploy/internal/password"
	"github.com/kongdeploy/kongdeploy/internal/session"
)

const (
	shutdownTimeout   = 10 * time.Second
	readinessTimeout  = 2 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account API server",
		Long: `Start the HTTP API serving /register, /login and /me. The database
schema is migrated on startup. Metrics and health probes are served on a
separate listener.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

// runServeWithDeps starts the API with injectable dependencies and blocks
// until a signal arrives, ctx is cancelled, or a listener fails.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *Deps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps = deps.withDefaults()

	cfg, logger, err := loadConfig(cmd, deps, false)
	if err != nil {
		return err
	}
	ttl, err := cfg.TokenTTL()
	if err != nil {
		return err
	}

	logger.Info("starting kongdeploy",
		"http_addr", cfg.HTTP.Addr,
		"metrics_addr", cfg.Metrics.Addr,
		"route_prefix", cfg.HTTP.RoutePrefix,
		"token_ttl", ttl,
	)

	db, err := openDatabase(ctx, cfg, deps, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	hashPool, err := password.NewPool(password.NewArgon2idHasher(), cfg.Hash.Concurrency)
	if err != nil {
		return err
	}
	tokens, err := session.NewService([]byte(cfg.Token.Secret), ttl)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, databaseReady(db))
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		metrics = obsServer.Metrics()
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	managerOpts := []account.ManagerOption{account.WithLogger(logger)}
	if metrics != nil {
		managerOpts = append(managerOpts, account.WithEventRecorder(metrics))
	}
	manager, err := account.NewManager(deps.RepositoryFactory(db), hashPool, tokens, managerOpts...)
	if err != nil {
		stopObservability(obsServer)
		return err
	}

	router, err := httpapi.NewRouter(httpapi.Options{
		Accounts:    manager,
		Tokens:      tokens,
		Logger:      logger,
		Metrics:     metrics,
		RoutePrefix: cfg.HTTP.RoutePrefix,
		CORSOrigins: cfg.HTTP.CORSOrigins,
	})
	if err != nil {
		stopObservability(obsServer)
		return err
	}

	listener, err := deps.ListenerFactory("tcp", cfg.HTTP.Addr)
	if err != nil {
		stopObservability(obsServer)
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	httpServer := &http.Server{
		Handler:           router,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	errChan := make(chan error, 1)
	go func() {
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("KongDeploy API started")
	logger.Info("http server listening", "addr", listener.Addr().String())

	var serveErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case serveErr = <-errChan:
		logger.Error("http server error", "error", serveErr)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	if serveErr != nil {
		return oops.Code("HTTP_SERVE_FAILED").Wrap(serveErr)
	}
	logger.Info("shutdown complete")
	return nil
}

// databaseReady reports ready while the pool answers a ping.
func databaseReady(db Database) observability.ReadinessChecker {
	return func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
		defer cancel()
		return db.Ping(ctx) == nil
	}
}

func stopObservability(server ObservabilityServer) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		slog.Warn("failed to stop observability server during cleanup", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports an error. It exits
// when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
