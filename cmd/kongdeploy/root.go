// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the KongDeploy CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kongdeploy",
		Short: "KongDeploy - account and session service",
		Long: `KongDeploy issues and validates session tokens for the deployment
dashboard. It stores accounts in PostgreSQL with argon2id password hashes
and protects API routes with signed bearer tokens.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewAdminCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
