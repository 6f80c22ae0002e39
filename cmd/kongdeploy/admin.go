// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

package main

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/kongdeploy/kongdeploy/internal/account"
	"github.com/kongdeploy/kongdeploy/internal/config"
	"github.com/kongdeploy/kongdeploy/internal/password"
)

// Default admin account, matching the dashboard's bootstrap user.
const (
	defaultAdminUsername = "admin"
	defaultAdminEmail    = "admin@example.com"
	defaultPasswordEnv   = "KONGDEPLOY_ADMIN_PASSWORD"
)

// adminConfig holds flags shared by the admin subcommands.
type adminConfig struct {
	username    string
	email       string
	passwordEnv string
}

// NewAdminCmd creates the admin subcommand tree.
func NewAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
		Long: `Administrative account operations that are never exposed over HTTP.
Passwords are read from an environment variable or, when it is unset,
from the first line of standard input.`,
	}
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newAdminEnsureCmd(nil))
	cmd.AddCommand(newAdminResetPasswordCmd(nil))
	cmd.AddCommand(newAdminSetAdminCmd(nil, true))
	cmd.AddCommand(newAdminSetAdminCmd(nil, false))

	return cmd
}

func newAdminEnsureCmd(deps *Deps) *cobra.Command {
	cfg := &adminConfig{}
	cmd := &cobra.Command{
		Use:   "ensure",
		Short: "Create the admin account or reset its password",
		Long: `Create the admin account with administrator rights. If the username
already exists its password is replaced and administrator rights are granted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAccounts(cmd, deps, func(ctx context.Context, mgr *account.Manager) error {
				pw, err := readPassword(cmd, cfg.passwordEnv)
				if err != nil {
					return err
				}
				acct, created, err := mgr.EnsureAdmin(ctx, cfg.username, cfg.email, pw)
				if err != nil {
					return err
				}
				if created {
					cmd.Printf("Created admin account %s (%s)\n", acct.Username, acct.ID)
				} else {
					cmd.Printf("Updated admin account %s (%s)\n", acct.Username, acct.ID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&cfg.username, "username", defaultAdminUsername, "admin username")
	cmd.Flags().StringVar(&cfg.email, "email", defaultAdminEmail, "admin email, used when creating")
	cmd.Flags().StringVar(&cfg.passwordEnv, "password-env", defaultPasswordEnv, "environment variable holding the password")
	return cmd
}

func newAdminResetPasswordCmd(deps *Deps) *cobra.Command {
	cfg := &adminConfig{}
	cmd := &cobra.Command{
		Use:   "reset-password <username>",
		Short: "Replace an account's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccounts(cmd, deps, func(ctx context.Context, mgr *account.Manager) error {
				pw, err := readPassword(cmd, cfg.passwordEnv)
				if err != nil {
					return err
				}
				if err := mgr.ResetPassword(ctx, args[0], pw); err != nil {
					return err
				}
				cmd.Printf("Password reset for %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&cfg.passwordEnv, "password-env", defaultPasswordEnv, "environment variable holding the password")
	return cmd
}

func newAdminSetAdminCmd(deps *Deps, grant bool) *cobra.Command {
	use, short, done := "revoke <username>", "Revoke administrator rights", "Revoked admin rights from %s\n"
	if grant {
		use, short, done = "grant <username>", "Grant administrator rights", "Granted admin rights to %s\n"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccounts(cmd, deps, func(ctx context.Context, mgr *account.Manager) error {
				if err := mgr.SetAdmin(ctx, args[0], grant); err != nil {
					return err
				}
				cmd.Printf(done, args[0])
				return nil
			})
		},
	}
}

// withAccounts opens the database and runs fn with an account manager.
// Admin commands need no token secret, so token issuance is disabled.
func withAccounts(cmd *cobra.Command, deps *Deps, fn func(ctx context.Context, mgr *account.Manager) error) error {
	deps = deps.withDefaults()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, logger, err := loadConfig(cmd, deps, true)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg, deps, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	hashPool, err := password.NewPool(password.NewArgon2idHasher(), cfg.Hash.Concurrency)
	if err != nil {
		return err
	}
	mgr, err := account.NewManager(deps.RepositoryFactory(db), hashPool, noTokens{}, account.WithLogger(logger))
	if err != nil {
		return err
	}
	return fn(ctx, mgr)
}

// readPassword takes the password from envName, falling back to the first
// line of stdin.
func readPassword(cmd *cobra.Command, envName string) (string, error) {
	if envName != "" {
		if pw := os.Getenv(envName); pw != "" {
			return pw, nil
		}
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if scanner.Scan() {
		if pw := strings.TrimRight(scanner.Text(), "\r\n"); pw != "" {
			return pw, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", oops.Code("ADMIN_PASSWORD_READ_FAILED").Wrap(err)
	}
	return "", oops.Code("ADMIN_PASSWORD_MISSING").
		With("env", envName).
		Errorf("password required: set %s or pipe it on stdin", envName)
}

type noTokens struct{}

func (noTokens) Issue(ulid.ULID) (string, error) {
	return "", oops.Code("ADMIN_TOKENS_DISABLED").Errorf("admin commands do not issue session tokens")
}
