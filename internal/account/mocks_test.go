// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

package account_test

import (
	"context"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/kongdeploy/kongdeploy/internal/account"
)

// mockRepository is a mock for account.Repository.
type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Insert(ctx context.Context, acct *account.Account) error {
	args := m.Called(ctx, acct)
	return args.Error(0)
}

func (m *mockRepository) FindByUsername(ctx context.Context, username string) (*account.Account, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *mockRepository) FindByEmail(ctx context.Context, email string) (*account.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *mockRepository) FindByID(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *mockRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *mockRepository) SetAdmin(ctx context.Context, id ulid.ULID, isAdmin bool) error {
	args := m.Called(ctx, id, isAdmin)
	return args.Error(0)
}

// fakeHasher is a reversible stand-in for the argon2id pool. Hashes carry a
// "legacy:" prefix when NeedsUpgrade should report true.
type fakeHasher struct {
	mu       sync.Mutex
	verified []string
}

func (h *fakeHasher) Hash(_ context.Context, plaintext string) (string, error) {
	return "hashed:" + plaintext, nil
}

func (h *fakeHasher) Verify(_ context.Context, plaintext, encoded string) (bool, error) {
	h.mu.Lock()
	h.verified = append(h.verified, encoded)
	h.mu.Unlock()
	return encoded == "hashed:"+plaintext || encoded == "legacy:"+plaintext, nil
}

func (h *fakeHasher) NeedsUpgrade(encoded string) bool {
	return strings.HasPrefix(encoded, "legacy:")
}

func (h *fakeHasher) verifiedHashes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.verified...)
}

// fakeTokens issues "token-<id>".
type fakeTokens struct {
	err error
}

func (f *fakeTokens) Issue(id ulid.ULID) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token-" + id.String(), nil
}

// recordingEvents captures auth events.
type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEvents) RecordAuthEvent(event, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event+":"+outcome)
}

func (r *recordingEvents) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}
