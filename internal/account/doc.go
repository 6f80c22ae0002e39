// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

// Package account manages user accounts: registration, credential checks,
// current-account lookup, and the administrative operations used by the CLI.
//
// The Manager never talks to storage, hashing, or token signing directly;
// each sits behind a narrow interface so the Manager can be exercised with
// test doubles and the PostgreSQL store lives in its own package.
package account
