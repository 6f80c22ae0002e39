// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

package account

import (
	"errors"

	"github.com/samber/oops"
)

// Sentinel errors for errors.Is checks.
var (
	ErrNotFound            = errors.New("account not found")
	ErrUniquenessViolation = errors.New("account uniqueness violation")
	ErrStoreUnavailable    = errors.New("account store unavailable")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrMissingFields       = errors.New("required fields missing")
	ErrWeakPassword        = errors.New("password too short")
)

// Error domains, read by errutil.KindOf.
const (
	domainValidation     = "validation"
	domainConflict       = "conflict"
	domainAuthentication = "authentication"
	domainNotFound       = "not_found"
	domainInfrastructure = "infrastructure"
)

// Error codes.
const (
	CodeMissingFields      = "ACCOUNT_MISSING_FIELDS"
	CodeWeakPassword       = "ACCOUNT_WEAK_PASSWORD"
	CodeUsernameTaken      = "ACCOUNT_USERNAME_TAKEN"
	CodeEmailTaken         = "ACCOUNT_EMAIL_TAKEN"
	CodeConflict           = "ACCOUNT_CONFLICT"
	CodeNotFound           = "ACCOUNT_NOT_FOUND"
	CodeStoreUnavailable   = "ACCOUNT_STORE_UNAVAILABLE"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
)

// UsernameTakenError reports a duplicate username.
func UsernameTakenError(username string) error {
	return oops.In(domainConflict).Code(CodeUsernameTaken).
		With("username", username).
		Wrap(ErrUniquenessViolation)
}

// EmailTakenError reports a duplicate email.
func EmailTakenError(email string) error {
	return oops.In(domainConflict).Code(CodeEmailTaken).
		With("email", email).
		Wrap(ErrUniquenessViolation)
}

// ConflictError reports a uniqueness violation on an unrecognised constraint.
func ConflictError(constraint string) error {
	return oops.In(domainConflict).Code(CodeConflict).
		With("constraint", constraint).
		Wrap(ErrUniquenessViolation)
}

// NotFoundError reports a lookup that matched no account.
func NotFoundError(key, value string) error {
	return oops.In(domainNotFound).Code(CodeNotFound).
		With(key, value).
		Wrap(ErrNotFound)
}

// StoreUnavailableError reports a storage failure during operation.
// Both ErrStoreUnavailable and cause remain reachable through errors.Is.
func StoreUnavailableError(operation string, cause error) error {
	return oops.In(domainInfrastructure).Code(CodeStoreUnavailable).
		With("operation", operation).
		Wrap(errors.Join(ErrStoreUnavailable, cause))
}

func missingFieldsError(fields ...string) error {
	return oops.In(domainValidation).Code(CodeMissingFields).
		With("fields", fields).
		Wrap(ErrMissingFields)
}

func weakPasswordError() error {
	return oops.In(domainValidation).Code(CodeWeakPassword).
		With("min_length", MinPasswordLength).
		Wrap(ErrWeakPassword)
}

func invalidCredentialsError() error {
	return oops.In(domainAuthentication).Code(CodeInvalidCredentials).Wrap(ErrInvalidCredentials)
}
