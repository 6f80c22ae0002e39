// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

//go:build integration

package cli_test

import (
	"context"
	"os/exec"
	"strings"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/kongdeploy/kongdeploy/internal/password"
)

// kongdeploy runs the CLI from source against the test database.
func kongdeploy(ctx context.Context, stdin string, extraEnv []string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "go", append([]string{"run", "."}, args...)...)
	cmd.Dir = "../../../cmd/kongdeploy"
	cmd.Env = append(cmd.Environ(),
		"DATABASE_URL="+env.connStr,
		"KONGDEPLOY_LOG__FORMAT=text",
		"KONGDEPLOY_ADMIN_PASSWORD=",
	)
	cmd.Env = append(cmd.Env, extraEnv...)
	cmd.Stdin = strings.NewReader(stdin)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

var _ = Describe("Admin Command", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupDatabase(ctx, env.pool)
	})

	storedHash := func(username string) (string, bool) {
		var hash string
		var isAdmin bool
		err := env.pool.QueryRow(ctx,
			"SELECT password_hash, is_admin FROM accounts WHERE username = $1", username,
		).Scan(&hash, &isAdmin)
		Expect(err).NotTo(HaveOccurred())
		return hash, isAdmin
	}

	Describe("ensure", func() {
		It("creates the admin account on an empty database", func() {
			output, err := kongdeploy(ctx, "", []string{"KONGDEPLOY_ADMIN_PASSWORD=bootstrap-pw"}, "admin", "ensure")
			Expect(err).NotTo(HaveOccurred(), "admin ensure failed: %s", output)
			Expect(output).To(ContainSubstring("Created admin account admin"))

			hash, isAdmin := storedHash("admin")
			Expect(isAdmin).To(BeTrue())
			Expect(hash).To(HavePrefix("$argon2id$"))
			Expect(password.NewArgon2idHasher().Verify("bootstrap-pw", hash)).To(BeTrue())
		})

		It("is idempotent and replaces the password", func() {
			output, err := kongdeploy(ctx, "first-pw\n", nil, "admin", "ensure")
			Expect(err).NotTo(HaveOccurred(), "first ensure failed: %s", output)

			output, err = kongdeploy(ctx, "second-pw\n", nil, "admin", "ensure")
			Expect(err).NotTo(HaveOccurred(), "second ensure failed: %s", output)
			Expect(output).To(ContainSubstring("Updated admin account admin"))

			var count int
			Expect(env.pool.QueryRow(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count)).To(Succeed())
			Expect(count).To(Equal(1))

			hash, _ := storedHash("admin")
			Expect(password.NewArgon2idHasher().Verify("second-pw", hash)).To(BeTrue())
		})

		It("refuses to run without a password", func() {
			output, err := kongdeploy(ctx, "", nil, "admin", "ensure")
			Expect(err).To(HaveOccurred())
			Expect(output).To(ContainSubstring("password required"))
		})
	})

	Describe("grant and revoke", func() {
		It("toggles administrator rights", func() {
			output, err := kongdeploy(ctx, "operator-pw\n", nil, "admin", "ensure", "--username", "operator", "--email", "ops@example.com")
			Expect(err).NotTo(HaveOccurred(), "ensure failed: %s", output)

			output, err = kongdeploy(ctx, "", nil, "admin", "revoke", "operator")
			Expect(err).NotTo(HaveOccurred(), "revoke failed: %s", output)
			_, isAdmin := storedHash("operator")
			Expect(isAdmin).To(BeFalse())

			output, err = kongdeploy(ctx, "", nil, "admin", "grant", "operator")
			Expect(err).NotTo(HaveOccurred(), "grant failed: %s", output)
			_, isAdmin = storedHash("operator")
			Expect(isAdmin).To(BeTrue())
		})

		It("fails for unknown accounts", func() {
			output, err := kongdeploy(ctx, "", nil, "admin", "grant", "ghost")
			Expect(err).To(HaveOccurred(), "grant should fail: %s", output)
		})
	})
})
