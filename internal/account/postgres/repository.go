// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

// Package postgres implements account.Repository on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/kongdeploy/kongdeploy/internal/account"
)

// Unique constraint names from the accounts migration.
const (
	constraintUsername = "accounts_username_key"
	constraintEmail    = "accounts_email_key"
)

// DB is the subset of pgxpool.Pool used by the repository.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements account.Repository using PostgreSQL.
type Repository struct {
	db DB
}

// NewRepository creates a new Repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// Insert stores acct and fills CreatedAt from the database clock.
func (r *Repository) Insert(ctx context.Context, acct *account.Account) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO accounts (id, username, email, password_hash, is_admin)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`,
		acct.ID.String(),
		acct.Username,
		acct.Email,
		acct.PasswordHash,
		acct.IsAdmin,
	).Scan(&acct.CreatedAt)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		switch pgErr.ConstraintName {
		case constraintUsername:
			return account.UsernameTakenError(acct.Username)
		case constraintEmail:
			return account.EmailTakenError(acct.Email)
		default:
			return account.ConflictError(pgErr.ConstraintName)
		}
	}
	return account.StoreUnavailableError("insert account", err)
}

// FindByUsername retrieves an account by exact username.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*account.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, username, email, password_hash, is_admin, created_at
		FROM accounts
		WHERE username = $1
	`, username)

	acct, err := scanWithHash(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, account.NotFoundError("username", username)
	}
	if err != nil {
		return nil, account.StoreUnavailableError("find account by username", err)
	}
	return acct, nil
}

// FindByEmail retrieves an account by exact email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*account.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, username, email, password_hash, is_admin, created_at
		FROM accounts
		WHERE email = $1
	`, email)

	acct, err := scanWithHash(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, account.NotFoundError("email", email)
	}
	if err != nil {
		return nil, account.StoreUnavailableError("find account by email", err)
	}
	return acct, nil
}

// FindByID retrieves an account by id. The hash column is not selected.
func (r *Repository) FindByID(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, username, email, is_admin, created_at
		FROM accounts
		WHERE id = $1
	`, id.String())

	var (
		acct  account.Account
		rawID string
	)
	err := row.Scan(&rawID, &acct.Username, &acct.Email, &acct.IsAdmin, &acct.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, account.NotFoundError("id", id.String())
	}
	if err != nil {
		return nil, account.StoreUnavailableError("find account by id", err)
	}
	if acct.ID, err = parseID(rawID); err != nil {
		return nil, account.StoreUnavailableError("find account by id", err)
	}
	return &acct, nil
}

// UpdatePassword replaces the password hash of an account.
func (r *Repository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET password_hash = $2 WHERE id = $1`, id.String(), passwordHash)
	if err != nil {
		return account.StoreUnavailableError("update password", err)
	}
	if tag.RowsAffected() == 0 {
		return account.NotFoundError("id", id.String())
	}
	return nil
}

// SetAdmin updates the administrator flag of an account.
func (r *Repository) SetAdmin(ctx context.Context, id ulid.ULID, isAdmin bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET is_admin = $2 WHERE id = $1`, id.String(), isAdmin)
	if err != nil {
		return account.StoreUnavailableError("set admin", err)
	}
	if tag.RowsAffected() == 0 {
		return account.NotFoundError("id", id.String())
	}
	return nil
}

func scanWithHash(row pgx.Row) (*account.Account, error) {
	var (
		acct  account.Account
		rawID string
	)
	if err := row.Scan(&rawID, &acct.Username, &acct.Email, &acct.PasswordHash, &acct.IsAdmin, &acct.CreatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers map ErrNoRows before wrapping
	}
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	acct.ID = id
	return &acct, nil
}

func parseID(raw string) (ulid.ULID, error) {
	id, err := ulid.Parse(raw)
	if err != nil {
		return ulid.ULID{}, oops.Code("ACCOUNT_ID_CORRUPT").With("id", raw).Wrap(err)
	}
	return id, nil
}
