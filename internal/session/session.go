// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

// Package session issues and validates stateless HS256 session tokens.
//
// A token carries the account id as its subject plus issued-at and expiry
// times. Validation is pure: no store lookup happens, so a token stays valid
// until it expires even if the account changes.
package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Error domain for token failures. Matches errutil.KindAuthentication.
const domainAuthentication = "authentication"

// DefaultTTL is the session lifetime when none is configured.
const DefaultTTL = 7 * 24 * time.Hour

// Sentinel errors for errors.Is checks.
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Service signs and verifies session tokens with a single shared secret.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a Service. An empty secret is rejected outright.
func NewService(secret []byte, ttl time.Duration, opts ...Option) (*Service, error) {
	if len(secret) == 0 {
		return nil, oops.Code("SESSION_SECRET_MISSING").Errorf("session signing secret is required")
	}
	if ttl <= 0 {
		return nil, oops.Code("SESSION_TTL_INVALID").With("ttl", ttl.String()).Errorf("session ttl must be positive")
	}

	s := &Service{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	return s, nil
}

// TTL returns the configured session lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for accountID, valid from now until now+TTL.
func (s *Service) Issue(accountID ulid.ULID) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   accountID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", oops.Code("SESSION_SIGN_FAILED").With("account_id", accountID.String()).Wrap(err)
	}
	return signed, nil
}

// Validate verifies signature, algorithm and expiry, and returns the subject.
func (s *Service) Validate(token string) (ulid.ULID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ulid.ULID{}, oops.In(domainAuthentication).Code("TOKEN_EXPIRED").Wrap(ErrTokenExpired)
		}
		return ulid.ULID{}, oops.In(domainAuthentication).Code("TOKEN_INVALID").
			With("reason", err.Error()).
			Wrap(ErrTokenInvalid)
	}

	id, err := ulid.ParseStrict(claims.Subject)
	if err != nil {
		return ulid.ULID{}, oops.In(domainAuthentication).Code("TOKEN_INVALID").
			With("reason", "subject is not an account id").
			Wrap(ErrTokenInvalid)
	}
	return id, nil
}
