// Package common defines sentinel errors shared by the session guard and the
// cache worker. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Configuration errors.
	ErrorMissingConfig = errors.New("missing configuration value")

	// Token errors (malformed or undecodable session token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
