// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

// Package memory provides an in-process account.Repository for tests and
// local development. Uniqueness is enforced under a single lock, mirroring
// the database constraints.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kongdeploy/kongdeploy/internal/account"
)

// Repository is a map-backed account store.
type Repository struct {
	mu         sync.RWMutex
	byID       map[ulid.ULID]*account.Account
	byUsername map[string]ulid.ULID
	byEmail    map[string]ulid.ULID
	now        func() time.Time
}

// NewRepository creates an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		byID:       make(map[ulid.ULID]*account.Account),
		byUsername: make(map[string]ulid.ULID),
		byEmail:    make(map[string]ulid.ULID),
		now:        time.Now,
	}
}

// Insert stores a copy of acct.
func (r *Repository) Insert(_ context.Context, acct *account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUsername[acct.Username]; ok {
		return account.UsernameTakenError(acct.Username)
	}
	if _, ok := r.byEmail[acct.Email]; ok {
		return account.EmailTakenError(acct.Email)
	}
	if _, ok := r.byID[acct.ID]; ok {
		return account.ConflictError("accounts_pkey")
	}

	acct.CreatedAt = r.now().UTC()
	stored := *acct
	r.byID[acct.ID] = &stored
	r.byUsername[acct.Username] = acct.ID
	r.byEmail[acct.Email] = acct.ID
	return nil
}

// FindByUsername returns a copy of the account with the exact username.
func (r *Repository) FindByUsername(_ context.Context, username string) (*account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return nil, account.NotFoundError("username", username)
	}
	found := *r.byID[id]
	return &found, nil
}

// FindByEmail returns a copy of the account with the exact email.
func (r *Repository) FindByEmail(_ context.Context, email string) (*account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, account.NotFoundError("email", email)
	}
	found := *r.byID[id]
	return &found, nil
}

// FindByID returns a copy of the account without its password hash.
func (r *Repository) FindByID(_ context.Context, id ulid.ULID) (*account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acct, ok := r.byID[id]
	if !ok {
		return nil, account.NotFoundError("id", id.String())
	}
	found := *acct
	found.PasswordHash = ""
	return &found, nil
}

// UpdatePassword replaces the stored hash.
func (r *Repository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.byID[id]
	if !ok {
		return account.NotFoundError("id", id.String())
	}
	acct.PasswordHash = passwordHash
	return nil
}

// SetAdmin updates the administrator flag.
func (r *Repository) SetAdmin(_ context.Context, id ulid.ULID, isAdmin bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.byID[id]
	if !ok {
		return account.NotFoundError("id", id.String())
	}
	acct.IsAdmin = isAdmin
	return nil
}

// Len returns the number of stored accounts.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
