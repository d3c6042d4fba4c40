// Package common defines shared constants and sentinel errors used across
// the Distrofy backend layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorUpstream     = errors.New("upstream unavailable")

	// Validation errors (bad input shape).
	ErrorValidation = errors.New("validation error")

	// Purchase / entitlement errors.
	ErrorNotPaid = errors.New("purchase not paid")

	// Token lifecycle errors (session and download tokens).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
