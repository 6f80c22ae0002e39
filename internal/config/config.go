// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

// Package config loads service configuration.
//
// Sources are layered, later ones winning: built-in defaults, a YAML file,
// the legacy environment variables of the Node service (JWT_SECRET, DB_HOST,
// ...), KONGDEPLOY_-prefixed environment variables, and command-line flags.
// A .env file in the working directory is read into the environment first.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/kongdeploy/kongdeploy/internal/xdg"
)

// EnvPrefix prefixes environment overrides, e.g. KONGDEPLOY_HTTP__ADDR.
// A double underscore separates nesting levels.
const EnvPrefix = "KONGDEPLOY_"

// Config is the fully resolved service configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	Token    TokenConfig    `koanf:"token"`
	Hash     HashConfig     `koanf:"hash"`
	Log      LogConfig      `koanf:"log"`
}

// HTTPConfig configures the public API listener.
type HTTPConfig struct {
	Addr         string        `koanf:"addr"`
	RoutePrefix  string        `koanf:"route_prefix"`
	CORSOrigins  []string      `koanf:"cors_origins"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// MetricsConfig configures the observability listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures PostgreSQL access.
type DatabaseConfig struct {
	URL            string `koanf:"url"`
	ConnectRetries uint64 `koanf:"connect_retries"`
	MaxConns       int32  `koanf:"max_conns"`
}

// TokenConfig configures session tokens.
type TokenConfig struct {
	Secret string `koanf:"secret"`
	// TTL accepts Go durations ("168h") and whole days ("7d").
	TTL string `koanf:"ttl"`
}

// HashConfig configures password hashing.
type HashConfig struct {
	Concurrency int `koanf:"concurrency"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Defaults returns the built-in configuration.
func Defaults() map[string]any {
	return map[string]any{
		"http.addr":                ":3000",
		"http.route_prefix":        "",
		"http.cors_origins":        []string{"*"},
		"http.read_timeout":        "15s",
		"http.write_timeout":       "15s",
		"metrics.addr":             "127.0.0.1:9100",
		"database.url":             "",
		"database.connect_retries": 5,
		"database.max_conns":       20,
		"token.secret":             "",
		"token.ttl":                "7d",
		"hash.concurrency":         runtime.NumCPU(),
		"log.format":               "json",
		"log.level":                "info",
	}
}

// legacyEnv maps the Node service's variables onto config keys.
var legacyEnv = map[string]string{
	"JWT_SECRET":     "token.secret",
	"JWT_EXPIRES_IN": "token.ttl",
	"DATABASE_URL":   "database.url",
	"PORT":           "legacy.port",
	"DB_HOST":        "legacy.db_host",
	"DB_PORT":        "legacy.db_port",
	"DB_NAME":        "legacy.db_name",
	"DB_USER":        "legacy.db_user",
	"DB_PASSWORD":    "legacy.db_password",
	"LOG_FORMAT":     "log.format",
	"LOG_LEVEL":      "log.level",
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"addr":         "http.addr",
	"route-prefix": "http.route_prefix",
	"database-url": "database.url",
	"metrics-addr": "metrics.addr",
	"log-format":   "log.format",
	"log-level":    "log.level",
}

// RegisterFlags adds the overridable flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("addr", "", "HTTP listen address (default :3000)")
	fs.String("route-prefix", "", "path prefix for API routes, e.g. /api/auth")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("metrics-addr", "", "metrics and health listener address; empty disables")
	fs.String("log-format", "", "log format: json or text")
	fs.String("log-level", "", "log level: debug, info, warn, error")
}

// LoadOptions control which sources Load reads.
type LoadOptions struct {
	// File is an explicit YAML path. When empty the XDG config file is used
	// if it exists.
	File string
	// DotEnv lists .env files to read; nil means ".env". Missing files are skipped.
	DotEnv []string
	// Flags holds command-line overrides registered with RegisterFlags.
	Flags *pflag.FlagSet
	// DatabaseOnly skips token validation, for commands that only touch
	// the database.
	DatabaseOnly bool
}

// Load resolves configuration from every source and validates it.
func Load(opts LoadOptions) (*Config, error) {
	if err := loadDotEnv(opts.DotEnv); err != nil {
		return nil, err
	}

	k := koanf.New(".")
	for key, val := range Defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_DEFAULTS_FAILED").With("key", key).Wrap(err)
		}
	}

	path, err := configFile(opts.File)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_INVALID").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", mapLegacyEnv), nil); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}
	if err := applyLegacy(k); err != nil {
		return nil, err
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", mapPrefixedEnv), nil); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, flagMapper(opts.Flags)), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	validate := cfg.Validate
	if opts.DatabaseOnly {
		validate = cfg.validateDatabase
	}
	if err := validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(paths []string) error {
	if paths == nil {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return oops.Code("CONFIG_DOTENV_INVALID").With("path", p).Wrap(err)
		}
	}
	return nil
}

func configFile(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	path, exists, err := xdg.ConfigFile()
	if err != nil || !exists {
		// No home directory simply means no default file.
		return "", nil //nolint:nilerr // optional source
	}
	return path, nil
}

func mapLegacyEnv(key, value string) (string, any) {
	mapped, ok := legacyEnv[key]
	if !ok || value == "" {
		return "", nil
	}
	return mapped, value
}

func mapPrefixedEnv(key, value string) (string, any) {
	name := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	name = strings.ReplaceAll(name, "__", ".")
	if name == "http.cors_origins" {
		return name, splitList(value)
	}
	return name, value
}

func flagMapper(fs *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}

// applyLegacy folds PORT and the DB_* parts into their modern keys.
// DATABASE_URL, when set, wins over the parts.
func applyLegacy(k *koanf.Koanf) error {
	if port := k.String("legacy.port"); port != "" {
		if _, err := strconv.Atoi(port); err != nil {
			return oops.Code("CONFIG_INVALID").With("key", "PORT").Errorf("PORT must be numeric, got %q", port)
		}
		if err := k.Set("http.addr", ":"+port); err != nil {
			return oops.Code("CONFIG_INVALID").Wrap(err)
		}
	}

	if k.String("database.url") == "" && k.String("legacy.db_password") != "" {
		if err := k.Set("database.url", legacyDatabaseURL(k)); err != nil {
			return oops.Code("CONFIG_INVALID").Wrap(err)
		}
	}
	k.Delete("legacy")
	return nil
}

// legacyDatabaseURL assembles a URL from DB_* with the Node service's defaults.
func legacyDatabaseURL(k *koanf.Koanf) string {
	orDefault := func(key, def string) string {
		if v := k.String(key); v != "" {
			return v
		}
		return def
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(orDefault("legacy.db_user", "kong"), k.String("legacy.db_password")),
		Host:   net.JoinHostPort(orDefault("legacy.db_host", "localhost"), orDefault("legacy.db_port", "5432")),
		Path:   "/" + orDefault("legacy.db_name", "kongdeploy"),
	}
	return u.String()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects configurations the server cannot run with. Secrets fail
// closed: there is no fallback signing key and no default database password.
func (c *Config) Validate() error {
	if c.Token.Secret == "" {
		return oops.Code("CONFIG_TOKEN_SECRET_MISSING").
			Errorf("token secret is required (set JWT_SECRET or %sTOKEN__SECRET)", EnvPrefix)
	}
	if _, err := c.TokenTTL(); err != nil {
		return err
	}
	return c.validateDatabase()
}

func (c *Config) validateDatabase() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_DATABASE_MISSING").
			Errorf("database url is required (set DATABASE_URL, DB_PASSWORD, or %sDATABASE__URL)", EnvPrefix)
	}
	if c.HTTP.Addr == "" {
		return oops.Code("CONFIG_INVALID").With("key", "http.addr").Errorf("http address is required")
	}
	if c.HTTP.RoutePrefix != "" && !strings.HasPrefix(c.HTTP.RoutePrefix, "/") {
		return oops.Code("CONFIG_INVALID").With("key", "http.route_prefix").
			Errorf("route prefix must start with '/', got %q", c.HTTP.RoutePrefix)
	}
	if c.Hash.Concurrency < 0 {
		return oops.Code("CONFIG_INVALID").With("key", "hash.concurrency").Errorf("hash concurrency must not be negative")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return oops.Code("CONFIG_INVALID").With("key", "log.format").Errorf("log format must be json or text, got %q", c.Log.Format)
	}
	return nil
}

// TokenTTL parses Token.TTL.
func (c *Config) TokenTTL() (time.Duration, error) {
	ttl, err := ParseTTL(c.Token.TTL)
	if err != nil {
		return 0, err
	}
	return ttl, nil
}

// ParseTTL accepts Go durations and a whole-day "Nd" form. The result must
// be positive.
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	var (
		ttl time.Duration
		err error
	)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		var n int
		n, err = strconv.Atoi(days)
		ttl = time.Duration(n) * 24 * time.Hour
	} else {
		ttl, err = time.ParseDuration(s)
	}
	if err != nil || ttl <= 0 {
		return 0, oops.Code("CONFIG_TOKEN_TTL_INVALID").With("ttl", s).
			Errorf("token ttl must be a positive duration like 7d or 12h, got %q", s)
	}
	return ttl, nil
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.Token.Secret != "" {
		c.Token.Secret = "[redacted]"
	}
	if u, err := url.Parse(c.Database.URL); err == nil && u.User != nil {
		if _, has := u.User.Password(); has {
			u.User = url.UserPassword(u.User.Username(), "redacted")
			c.Database.URL = u.String()
		}
	}
	return c
}

// String implements fmt.Stringer without leaking secrets.
func (c Config) String() string {
	r := c.Redacted()
	return fmt.Sprintf("http=%s prefix=%q metrics=%q db=%s ttl=%s hash=%d log=%s/%s",
		r.HTTP.Addr, r.HTTP.RoutePrefix, r.Metrics.Addr, r.Database.URL, r.Token.TTL,
		r.Hash.Concurrency, r.Log.Format, r.Log.Level)
}
