// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

package account

import (
	"context"
	"errors"
	"log/slog"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/kongdeploy/kongdeploy/pkg/errutil"
)

// dummyPasswordHash is verified against when a username does not exist so
// that unknown and known usernames take the same time to reject.
//
//nolint:gosec // G101: not a credential, never matches any password.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Auth event names and outcomes reported to the EventRecorder.
const (
	EventRegister = "register"
	EventLogin    = "login"

	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Manager orchestrates account registration, login, and lookup.
type Manager struct {
	repo   Repository
	hasher PasswordHasher
	tokens TokenIssuer
	events EventRecorder
	logger *slog.Logger
	newID  func() ulid.ULID
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger used for best-effort failures.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithEventRecorder reports register and login outcomes to rec.
func WithEventRecorder(rec EventRecorder) ManagerOption {
	return func(m *Manager) {
		if rec != nil {
			m.events = rec
		}
	}
}

// WithIDGenerator overrides account id generation.
func WithIDGenerator(gen func() ulid.ULID) ManagerOption {
	return func(m *Manager) {
		if gen != nil {
			m.newID = gen
		}
	}
}

type noopRecorder struct{}

func (noopRecorder) RecordAuthEvent(string, string) {}

// NewManager creates a Manager. All three dependencies are required.
func NewManager(repo Repository, hasher PasswordHasher, tokens TokenIssuer, opts ...ManagerOption) (*Manager, error) {
	if repo == nil {
		return nil, oops.Code("ACCOUNT_MANAGER_INVALID").Errorf("repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("ACCOUNT_MANAGER_INVALID").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("ACCOUNT_MANAGER_INVALID").Errorf("token issuer is required")
	}

	m := &Manager{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
		events: noopRecorder{},
		logger: slog.Default(),
		newID:  ulid.Make,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Register creates a non-admin account and issues a session for it.
//
// The username and email pre-checks only give early, specific errors; the
// store's uniqueness constraints decide concurrent registrations, and a
// violation reported by Insert surfaces as the same conflict error.
func (m *Manager) Register(ctx context.Context, username, email, password string) (*Session, error) {
	sess, err := m.register(ctx, username, email, password)
	m.events.RecordAuthEvent(EventRegister, outcomeOf(err))
	return sess, err
}

func (m *Manager) register(ctx context.Context, username, email, password string) (*Session, error) {
	if err := validateNewCredentials(username, email, password); err != nil {
		return nil, err
	}
	if err := m.ensureUnique(ctx, username, email); err != nil {
		return nil, err
	}

	hash, err := m.hasher.Hash(ctx, password)
	if err != nil {
		return nil, oops.In(domainInfrastructure).Code("ACCOUNT_HASH_FAILED").
			With("username", username).
			Wrap(err)
	}

	acct := &Account{
		ID:           m.newID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := m.repo.Insert(ctx, acct); err != nil {
		return nil, err
	}

	return m.issue(acct)
}

// Login verifies credentials and issues a fresh session.
// Unknown usernames and wrong passwords produce the same error.
func (m *Manager) Login(ctx context.Context, username, password string) (*Session, error) {
	sess, err := m.login(ctx, username, password)
	m.events.RecordAuthEvent(EventLogin, outcomeOf(err))
	return sess, err
}

func (m *Manager) login(ctx context.Context, username, password string) (*Session, error) {
	if username == "" || password == "" {
		return nil, missingFieldsError("username", "password")
	}

	acct, err := m.repo.FindByUsername(ctx, username)
	found := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	target := dummyPasswordHash
	if found {
		target = acct.PasswordHash
	}

	ok, err := m.hasher.Verify(ctx, password, target)
	if err != nil {
		return nil, oops.In(domainInfrastructure).Code("ACCOUNT_VERIFY_FAILED").
			With("username", username).
			Wrap(err)
	}
	if !found || !ok {
		return nil, invalidCredentialsError()
	}

	if m.hasher.NeedsUpgrade(acct.PasswordHash) {
		m.upgradeHash(ctx, acct, password)
	}

	return m.issue(acct)
}

// upgradeHash rehashes a legacy password hash. Failures are logged only;
// the login has already succeeded.
func (m *Manager) upgradeHash(ctx context.Context, acct *Account, password string) {
	hash, err := m.hasher.Hash(ctx, password)
	if err == nil {
		err = m.repo.UpdatePassword(ctx, acct.ID, hash)
	}
	if err != nil {
		errutil.LogError(ctx, m.logger, "password hash upgrade failed", err)
		return
	}
	acct.PasswordHash = hash
	m.logger.InfoContext(ctx, "upgraded legacy password hash", "account_id", acct.ID.String())
}

// CurrentAccount returns the account identified by a validated session.
func (m *Manager) CurrentAccount(ctx context.Context, id ulid.ULID) (*Account, error) {
	acct, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	acct.PasswordHash = ""
	return acct, nil
}

// EnsureAdmin makes username an administrator with the given password,
// creating the account when it does not exist. created reports which
// path was taken. email is only used when creating.
func (m *Manager) EnsureAdmin(ctx context.Context, username, email, password string) (acct *Account, created bool, err error) {
	if err := validateNewCredentials(username, email, password); err != nil {
		return nil, false, err
	}

	existing, err := m.repo.FindByUsername(ctx, username)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	hash, err := m.hasher.Hash(ctx, password)
	if err != nil {
		return nil, false, oops.In(domainInfrastructure).Code("ACCOUNT_HASH_FAILED").
			With("username", username).
			Wrap(err)
	}

	if existing != nil {
		if err := m.repo.UpdatePassword(ctx, existing.ID, hash); err != nil {
			return nil, false, err
		}
		if err := m.repo.SetAdmin(ctx, existing.ID, true); err != nil {
			return nil, false, err
		}
		existing.PasswordHash = ""
		existing.IsAdmin = true
		return existing, false, nil
	}

	acct = &Account{
		ID:           m.newID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      true,
	}
	if err := m.repo.Insert(ctx, acct); err != nil {
		return nil, false, err
	}
	acct.PasswordHash = ""
	return acct, true, nil
}

// ResetPassword replaces the password of an existing account.
func (m *Manager) ResetPassword(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return missingFieldsError("username", "password")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return weakPasswordError()
	}

	acct, err := m.repo.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	hash, err := m.hasher.Hash(ctx, password)
	if err != nil {
		return oops.In(domainInfrastructure).Code("ACCOUNT_HASH_FAILED").
			With("username", username).
			Wrap(err)
	}
	return m.repo.UpdatePassword(ctx, acct.ID, hash)
}

// SetAdmin grants or revokes administrator status.
func (m *Manager) SetAdmin(ctx context.Context, username string, isAdmin bool) error {
	if username == "" {
		return missingFieldsError("username")
	}
	acct, err := m.repo.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	return m.repo.SetAdmin(ctx, acct.ID, isAdmin)
}

func (m *Manager) ensureUnique(ctx context.Context, username, email string) error {
	if _, err := m.repo.FindByUsername(ctx, username); err == nil {
		return UsernameTakenError(username)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	if _, err := m.repo.FindByEmail(ctx, email); err == nil {
		return EmailTakenError(email)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

func (m *Manager) issue(acct *Account) (*Session, error) {
	token, err := m.tokens.Issue(acct.ID)
	if err != nil {
		return nil, oops.In(domainInfrastructure).Code("ACCOUNT_TOKEN_FAILED").
			With("account_id", acct.ID.String()).
			Wrap(err)
	}
	acct.PasswordHash = ""
	return &Session{Account: acct, Token: token}, nil
}

func validateNewCredentials(username, email, password string) error {
	if username == "" || email == "" || password == "" {
		return missingFieldsError("username", "email", "password")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return weakPasswordError()
	}
	return nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errutil.KindOf(err) == errutil.KindInfrastructure:
		return OutcomeError
	default:
		return OutcomeRejected
	}
}
