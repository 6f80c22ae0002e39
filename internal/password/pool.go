// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

package password

import (
	"context"
	"runtime"

	"github.com/samber/oops"
	"golang.org/x/sync/semaphore"
)

// Hasher is a synchronous one-way password transform.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, encoded string) bool
	NeedsUpgrade(encoded string) bool
}

// Pool bounds how many hash computations run at once. Argon2id is CPU and
// memory heavy; without a bound a burst of logins would starve every other
// request of CPU.
type Pool struct {
	hasher Hasher
	sem    *semaphore.Weighted
	size   int
}

// NewPool wraps hasher with a limit of size concurrent computations.
// A size of zero or less uses runtime.NumCPU().
func NewPool(hasher Hasher, size int) (*Pool, error) {
	if hasher == nil {
		return nil, oops.Code("PASSWORD_POOL_INVALID").Errorf("hasher is required")
	}
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{
		hasher: hasher,
		sem:    semaphore.NewWeighted(int64(size)),
		size:   size,
	}, nil
}

// Size returns the maximum number of concurrent computations.
func (p *Pool) Size() int {
	return p.size
}

// Hash waits for a free slot and hashes plaintext.
func (p *Pool) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", oops.Code("PASSWORD_POOL_BUSY").With("operation", "hash").Wrap(err)
	}
	defer p.sem.Release(1)

	return p.hasher.Hash(plaintext)
}

// Verify waits for a free slot and checks plaintext against encoded.
// The error is non-nil only when ctx ends before a slot frees up.
func (p *Pool) Verify(ctx context.Context, plaintext, encoded string) (bool, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return false, oops.Code("PASSWORD_POOL_BUSY").With("operation", "verify").Wrap(err)
	}
	defer p.sem.Release(1)

	return p.hasher.Verify(plaintext, encoded), nil
}

// NeedsUpgrade reports whether encoded was produced by a legacy scheme.
// It only inspects the prefix and does not take a slot.
func (p *Pool) NeedsUpgrade(encoded string) bool {
	return p.hasher.NeedsUpgrade(encoded)
}
