// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

const (
	msgTokenRequired = "Access token required"
	msgTokenInvalid  = "Invalid or expired token"

	accountIDKey = "account_id"
)

type accountIDContextKey struct{}

// Gate authenticates requests carrying "Authorization: Bearer <token>".
// On success the account id is available through AccountIDFrom on the
// request context; otherwise the chain is aborted with 401 and the
// protected handler never runs.
func Gate(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if strings.TrimSpace(header) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(msgTokenRequired))
			return
		}

		token, ok := bearerToken(header)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(msgTokenInvalid))
			return
		}

		id, err := validator.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(msgTokenInvalid))
			return
		}

		c.Set(accountIDKey, id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), accountIDContextKey{}, id))
		c.Next()
	}
}

// AccountIDFrom returns the account id the Gate attached to ctx.
func AccountIDFrom(ctx context.Context) (ulid.ULID, bool) {
	id, ok := ctx.Value(accountIDContextKey{}).(ulid.ULID)
	return id, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
