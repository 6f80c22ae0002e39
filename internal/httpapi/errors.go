// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kongdeploy/kongdeploy/internal/account"
	"github.com/kongdeploy/kongdeploy/pkg/errutil"
)

const (
	msgInvalidBody = "Invalid request body"
	msgInternal    = "Internal server error"
)

// Client-facing messages keyed by error code. Codes missing from a map fall
// back to the generic message for their kind.
var (
	registerMessages = map[string]string{
		account.CodeMissingFields: "Username, email, and password are required",
		account.CodeWeakPassword:  "Password must be at least 6 characters long",
		account.CodeUsernameTaken: "Username already exists",
		account.CodeEmailTaken:    "Email already exists",
		account.CodeConflict:      "Account already exists",
	}
	loginMessages = map[string]string{
		account.CodeMissingFields:      "Username and password are required",
		account.CodeInvalidCredentials: "Invalid credentials",
	}
	meMessages = map[string]string{
		account.CodeNotFound: "User not found",
	}
)

var kindStatus = map[errutil.Kind]int{
	errutil.KindValidation:     http.StatusBadRequest,
	errutil.KindConflict:       http.StatusConflict,
	errutil.KindAuthentication: http.StatusUnauthorized,
	errutil.KindNotFound:       http.StatusNotFound,
}

var kindMessage = map[errutil.Kind]string{
	errutil.KindValidation:     "Invalid request",
	errutil.KindConflict:       "Conflict",
	errutil.KindAuthentication: "Unauthorized",
	errutil.KindNotFound:       "Not found",
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errorResponse {
	return errorResponse{Error: msg}
}

// writeError maps err to a status and message. Infrastructure failures are
// logged with full context and reported as a bare 500.
func (h *handlers) writeError(c *gin.Context, op string, err error, messages map[string]string) {
	kind := errutil.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		errutil.LogError(c.Request.Context(), h.logger, op+" failed", err)
		c.JSON(http.StatusInternalServerError, errorBody(msgInternal))
		return
	}

	msg, ok := messages[errutil.Code(err)]
	if !ok {
		msg = kindMessage[kind]
	}
	c.JSON(status, errorBody(msg))
}
