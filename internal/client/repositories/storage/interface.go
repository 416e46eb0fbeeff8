// Package storage persists the guard's browser-style key/value storage in
// SQLite. Two scopes exist: local (survives restarts) and session (wiped
// whenever a new CLI session starts).
package storage

import "context"

type Scope string

const (
	ScopeLocal   Scope = "local"
	ScopeSession Scope = "session"
)

type Repository interface {
	Get(ctx context.Context, scope Scope, key string) ([]byte, error)
	Set(ctx context.Context, scope Scope, key string, value []byte) error
	Delete(ctx context.Context, scope Scope, key string) error
	List(ctx context.Context, scope Scope) (map[string][]byte, error)
	Clear(ctx context.Context, scope Scope) error
	// ClearAll wipes both scopes.
	ClearAll(ctx context.Context) error
}
