// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kongdeploy/kongdeploy/internal/account"
)

type handlers struct {
	accounts AccountService
	logger   *slog.Logger
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Message string          `json:"message"`
	Token   string          `json:"token"`
	User    account.Profile `json:"user"`
}

type profileResponse struct {
	User account.Profile `json:"user"`
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(msgInvalidBody))
		return
	}

	sess, err := h.accounts.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeError(c, "register", err, registerMessages)
		return
	}

	c.JSON(http.StatusCreated, sessionResponse{
		Message: "User registered successfully",
		Token:   sess.Token,
		User:    sess.Account.Profile(),
	})
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(msgInvalidBody))
		return
	}

	sess, err := h.accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(c, "login", err, loginMessages)
		return
	}

	c.JSON(http.StatusOK, sessionResponse{
		Message: "Login successful",
		Token:   sess.Token,
		User:    sess.Account.Profile(),
	})
}

func (h *handlers) me(c *gin.Context) {
	id, ok := AccountIDFrom(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, errorBody(msgTokenRequired))
		return
	}

	acct, err := h.accounts.CurrentAccount(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "me", err, meMessages)
		return
	}

	c.JSON(http.StatusOK, profileResponse{User: acct.DetailedProfile()})
}
