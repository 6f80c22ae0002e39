// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

//go:build integration

package api_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

type response struct {
	status int
	body   map[string]any
}

func call(method, path, body, token string) response {
	req, err := http.NewRequestWithContext(ctx, method, server.URL+"/api/auth"+path, strings.NewReader(body))
	Expect(err).NotTo(HaveOccurred())
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := server.Client().Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = resp.Body.Close() }()

	out := response{status: resp.StatusCode}
	Expect(json.NewDecoder(resp.Body).Decode(&out.body)).To(Succeed())
	return out
}

func registerBody(username, email, pw string) string {
	return fmt.Sprintf(`{"username":%q,"email":%q,"password":%q}`, username, email, pw)
}

var _ = Describe("Account API", func() {
	BeforeEach(func() {
		cleanupAccounts()
	})

	It("registers, rejects duplicates, logs in and resolves the current account", func() {
		res := call(http.MethodPost, "/register", registerBody("alice", "alice@example.com", "secret1"), "")
		Expect(res.status).To(Equal(http.StatusCreated))
		Expect(res.body["token"]).NotTo(BeEmpty())
		registered := res.body["user"].(map[string]any)
		Expect(registered).NotTo(HaveKey("password_hash"))

		res = call(http.MethodPost, "/register", registerBody("alice", "other@example.com", "secret1"), "")
		Expect(res.status).To(Equal(http.StatusConflict))
		Expect(res.body["error"]).To(Equal("Username already exists"))

		res = call(http.MethodPost, "/register", registerBody("alice2", "alice@example.com", "secret1"), "")
		Expect(res.status).To(Equal(http.StatusConflict))
		Expect(res.body["error"]).To(Equal("Email already exists"))

		res = call(http.MethodPost, "/login", `{"username":"alice","password":"wrong-pw"}`, "")
		Expect(res.status).To(Equal(http.StatusUnauthorized))
		Expect(res.body["error"]).To(Equal("Invalid credentials"))

		res = call(http.MethodPost, "/login", `{"username":"alice","password":"secret1"}`, "")
		Expect(res.status).To(Equal(http.StatusOK))
		token := res.body["token"].(string)

		res = call(http.MethodGet, "/me", "", token)
		Expect(res.status).To(Equal(http.StatusOK))
		me := res.body["user"].(map[string]any)
		Expect(me["id"]).To(Equal(registered["id"]))
		Expect(me["username"]).To(Equal("alice"))
		Expect(me["created_at"]).NotTo(BeEmpty())

		res = call(http.MethodGet, "/me", "", token+"x")
		Expect(res.status).To(Equal(http.StatusUnauthorized))
	})

	It("stores argon2id hashes, never plaintext", func() {
		res := call(http.MethodPost, "/register", registerBody("bob", "bob@example.com", "hunter22"), "")
		Expect(res.status).To(Equal(http.StatusCreated))

		var hash string
		Expect(pool.QueryRow(ctx, "SELECT password_hash FROM accounts WHERE username = 'bob'").Scan(&hash)).To(Succeed())
		Expect(hash).To(HavePrefix("$argon2id$"))
		Expect(hash).NotTo(ContainSubstring("hunter22"))
	})

	It("admits exactly one of many concurrent registrations for the same username", func() {
		const attempts = 8
		statuses := make(chan int, attempts)
		var wg sync.WaitGroup
		for i := range attempts {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				body := registerBody("racer", fmt.Sprintf("racer%d@example.com", i), "secret1")
				statuses <- call(http.MethodPost, "/register", body, "").status
			}()
		}
		wg.Wait()
		close(statuses)

		counts := map[int]int{}
		for s := range statuses {
			counts[s]++
		}
		Expect(counts[http.StatusCreated]).To(Equal(1))
		Expect(counts[http.StatusConflict]).To(Equal(attempts - 1))

		var rows int
		Expect(pool.QueryRow(ctx, "SELECT COUNT(*) FROM accounts WHERE username = 'racer'").Scan(&rows)).To(Succeed())
		Expect(rows).To(Equal(1))
	})
})
