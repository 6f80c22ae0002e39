// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KongDeploy Contributors

// Package errutil classifies and logs oops errors.
package errutil

import "github.com/samber/oops"

// Kind is the client-facing category of an error.
type Kind string

// Error kinds. The string value doubles as the oops domain set with oops.In.
const (
	KindValidation     Kind = "validation"
	KindConflict       Kind = "conflict"
	KindAuthentication Kind = "authentication"
	KindNotFound       Kind = "not_found"
	KindInfrastructure Kind = "infrastructure"
)

// KindOf returns the category of err. Errors without a recognised oops
// domain are treated as infrastructure failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return KindInfrastructure
	}
	switch k := Kind(oopsErr.Domain()); k {
	case KindValidation, KindConflict, KindAuthentication, KindNotFound:
		return k
	default:
		return KindInfrastructure
	}
}

// Code returns the oops code of err, or an empty string.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}
