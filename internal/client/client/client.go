package client

import (
	"context"

	"github.com/dmitrijs2005/shellkeeper/internal/client/models"
)

// Client is the backend collaborator used by the session guard.
type Client interface {
	// GetSession returns the current session, or (nil, nil) when signed out.
	GetSession(ctx context.Context) (*models.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	SignOut(ctx context.Context) error
	Querier
}

// Querier opens single-table queries.
type Querier interface {
	From(table string) QueryBuilder
}

// QueryBuilder narrows a table query down to one row:
//
//	row, err := c.From("profiles").Select("*").Eq("id", id).Single(ctx)
type QueryBuilder interface {
	Select(columns string) QueryBuilder
	Eq(column string, value any) QueryBuilder
	// Single returns exactly one row. Zero rows is an error.
	Single(ctx context.Context) (map[string]any, error)
}

// SessionStore persists the backend session between runs.
// Load returns (nil, nil) when nothing is stored.
type SessionStore interface {
	Load(ctx context.Context) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	Clear(ctx context.Context) error
}
