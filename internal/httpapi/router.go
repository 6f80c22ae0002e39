// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

// Package httpapi exposes account registration, login and the current
// account over JSON HTTP, and provides the bearer-token Gate that protects
// downstream routes.
package httpapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/kongdeploy/kongdeploy/internal/account"
	"github.com/kongdeploy/kongdeploy/internal/observability"
)

// AccountService is the account behaviour the handlers need.
type AccountService interface {
	Register(ctx context.Context, username, email, password string) (*account.Session, error)
	Login(ctx context.Context, username, password string) (*account.Session, error)
	CurrentAccount(ctx context.Context, id ulid.ULID) (*account.Account, error)
}

// TokenValidator resolves a bearer token to an account id.
type TokenValidator interface {
	Validate(token string) (ulid.ULID, error)
}

// Options configure NewRouter.
type Options struct {
	Accounts AccountService
	Tokens   TokenValidator
	Logger   *slog.Logger
	// Metrics is optional.
	Metrics *observability.Metrics
	// RoutePrefix mounts the API under a path such as "/api/auth".
	RoutePrefix string
	// CORSOrigins lists allowed browser origins; "*" allows any. Empty
	// disables CORS handling.
	CORSOrigins []string
}

// NewRouter builds the gin engine with recovery, request id, tracing,
// access logging, metrics and CORS middleware.
func NewRouter(opts Options) (*gin.Engine, error) {
	if opts.Accounts == nil {
		return nil, oops.Code("HTTPAPI_INVALID_OPTIONS").Errorf("account service is required")
	}
	if opts.Tokens == nil {
		return nil, oops.Code("HTTPAPI_INVALID_OPTIONS").Errorf("token validator is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := gin.New()
	engine.Use(recovery(logger))
	engine.Use(requestID())
	engine.Use(tracing())
	engine.Use(accessLog(logger))
	if opts.Metrics != nil {
		engine.Use(metrics(opts.Metrics))
	}
	if len(opts.CORSOrigins) > 0 {
		engine.Use(cors.New(corsConfig(opts.CORSOrigins)))
	}

	h := &handlers{accounts: opts.Accounts, logger: logger}

	api := engine.Group(opts.RoutePrefix)
	api.GET("/health", h.health)
	api.POST("/register", h.register)
	api.POST("/login", h.login)

	secured := api.Group("")
	secured.Use(Gate(opts.Tokens))
	secured.GET("/me", h.me)

	return engine, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders: []string{"Content-Length", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
