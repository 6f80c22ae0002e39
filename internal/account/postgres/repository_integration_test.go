// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/kongdeploy/kongdeploy/internal/account"
	"github.com/kongdeploy/kongdeploy/internal/account/postgres"
	"github.com/kongdeploy/kongdeploy/pkg/errutil"
)

var _ = Describe("Repository", func() {
	var (
		ctx  context.Context
		repo *postgres.Repository
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = postgres.NewRepository(testPool)
		_, err := testPool.Exec(ctx, `TRUNCATE accounts`)
		Expect(err).NotTo(HaveOccurred())
	})

	newAccount := func(username, email string) *account.Account {
		return &account.Account{ID: ulid.Make(), Username: username, Email: email, PasswordHash: "hash-" + username}
	}

	It("round-trips an account", func() {
		acct := newAccount("alice", "alice@example.com")
		Expect(repo.Insert(ctx, acct)).To(Succeed())
		Expect(acct.CreatedAt).NotTo(BeZero())

		byName, err := repo.FindByUsername(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(byName.ID).To(Equal(acct.ID))
		Expect(byName.PasswordHash).To(Equal("hash-alice"))
		Expect(byName.IsAdmin).To(BeFalse())

		byEmail, err := repo.FindByEmail(ctx, "alice@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(byEmail.ID).To(Equal(acct.ID))

		byID, err := repo.FindByID(ctx, acct.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(byID.Username).To(Equal("alice"))
		Expect(byID.PasswordHash).To(BeEmpty())
	})

	It("maps unique violations to conflict codes", func() {
		Expect(repo.Insert(ctx, newAccount("alice", "alice@example.com"))).To(Succeed())

		err := repo.Insert(ctx, newAccount("alice", "other@example.com"))
		Expect(err).To(MatchError(account.ErrUniquenessViolation))
		Expect(errutil.Code(err)).To(Equal(account.CodeUsernameTaken))

		err = repo.Insert(ctx, newAccount("bob", "alice@example.com"))
		Expect(errutil.Code(err)).To(Equal(account.CodeEmailTaken))
		Expect(errutil.KindOf(err)).To(Equal(errutil.KindConflict))
	})

	It("treats usernames as case sensitive", func() {
		Expect(repo.Insert(ctx, newAccount("alice", "alice@example.com"))).To(Succeed())
		Expect(repo.Insert(ctx, newAccount("Alice", "Alice@example.com"))).To(Succeed())

		_, err := repo.FindByUsername(ctx, "ALICE")
		Expect(err).To(MatchError(account.ErrNotFound))
	})

	It("admits exactly one of many concurrent inserts for one username", func() {
		const n = 10
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				errs[i] = repo.Insert(ctx, newAccount("racer", fmt.Sprintf("racer%d@example.com", i)))
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			Expect(errutil.Code(err)).To(Equal(account.CodeUsernameTaken))
		}
		Expect(succeeded).To(Equal(1))
	})

	It("updates password and admin flag", func() {
		acct := newAccount("alice", "alice@example.com")
		Expect(repo.Insert(ctx, acct)).To(Succeed())

		Expect(repo.UpdatePassword(ctx, acct.ID, "new-hash")).To(Succeed())
		Expect(repo.SetAdmin(ctx, acct.ID, true)).To(Succeed())

		stored, err := repo.FindByUsername(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.PasswordHash).To(Equal("new-hash"))
		Expect(stored.IsAdmin).To(BeTrue())

		Expect(repo.SetAdmin(ctx, ulid.Make(), true)).To(MatchError(account.ErrNotFound))
	})
})
