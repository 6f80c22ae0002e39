// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

package account

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// MinPasswordLength is the minimum password length in characters.
const MinPasswordLength = 6

// Account is a registered user.
type Account struct {
	ID           ulid.ULID
	Username     string
	Email        string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// Profile is the client-facing view of an account. It has no hash field.
type Profile struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	IsAdmin   bool       `json:"is_admin"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Profile returns the public view without the creation time.
func (a *Account) Profile() Profile {
	return Profile{
		ID:       a.ID.String(),
		Username: a.Username,
		Email:    a.Email,
		IsAdmin:  a.IsAdmin,
	}
}

// DetailedProfile returns the public view including the creation time.
func (a *Account) DetailedProfile() Profile {
	p := a.Profile()
	created := a.CreatedAt
	p.CreatedAt = &created
	return p
}

// Session is the result of a successful registration or login.
type Session struct {
	Account *Account
	Token   string
}

// Repository persists accounts. Implementations report duplicates with
// errors wrapping ErrUniquenessViolation, missing rows with ErrNotFound,
// and every other failure with ErrStoreUnavailable.
type Repository interface {
	// Insert stores acct and sets its CreatedAt from the store clock.
	Insert(ctx context.Context, acct *Account) error
	FindByUsername(ctx context.Context, username string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	// FindByID never populates PasswordHash.
	FindByID(ctx context.Context, id ulid.ULID) (*Account, error)
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
	SetAdmin(ctx context.Context, id ulid.ULID, isAdmin bool) error
}

// PasswordHasher hashes and verifies passwords. Calls may block while
// waiting for hashing capacity.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, encoded string) (bool, error)
	NeedsUpgrade(encoded string) bool
}

// TokenIssuer mints session tokens for an account.
type TokenIssuer interface {
	Issue(accountID ulid.ULID) (string, error)
}

// EventRecorder observes authentication outcomes.
type EventRecorder interface {
	RecordAuthEvent(event, outcome string)
}
