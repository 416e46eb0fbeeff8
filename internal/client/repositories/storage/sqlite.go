package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/shellkeeper/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get returns (nil, nil) when the key is absent.
func (r *SQLiteRepository) Get(ctx context.Context, scope Scope, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM web_storage WHERE scope = ? AND key = ?`, string(scope), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s[%s]: %w", scope, key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, scope Scope, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO web_storage (scope, key, value) VALUES (?, ?, ?)
		ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, string(scope), key, value)
	if err != nil {
		return fmt.Errorf("failed to set %s[%s]: %w", scope, key, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, scope Scope, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM web_storage WHERE scope = ? AND key = ?`, string(scope), key)
	if err != nil {
		return fmt.Errorf("failed to delete %s[%s]: %w", scope, key, err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, scope Scope) (map[string][]byte, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM web_storage WHERE scope = ?`, string(scope))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s storage: %w", scope, err)
	}
	defer rows.Close()

	result := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan %s storage row: %w", scope, err)
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s storage rows: %w", scope, err)
	}
	return result, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context, scope Scope) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM web_storage WHERE scope = ?`, string(scope)); err != nil {
		return fmt.Errorf("failed to clear %s storage: %w", scope, err)
	}
	return nil
}

func (r *SQLiteRepository) ClearAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM web_storage`); err != nil {
		return fmt.Errorf("failed to clear storage: %w", err)
	}
	return nil
}
