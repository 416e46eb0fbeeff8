package cachestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/shellkeeper/internal/dbx"
)

// SQLiteStorage keeps buckets in the cache_buckets / cache_entries tables
// (see internal/server/migrations).
type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(db *sql.DB) *SQLiteStorage {
	return &SQLiteStorage{db: db}
}

type sqliteCache struct {
	db   *sql.DB
	name string
}

// bucketID resolves a bucket name; ok is false when it does not exist.
func bucketID(ctx context.Context, db dbx.DBTX, name string) (id int64, ok bool, err error) {
	err = db.QueryRowContext(ctx, `SELECT id FROM cache_buckets WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up bucket %q: %w", name, err)
	}
	return id, true, nil
}

func (c *sqliteCache) Put(ctx context.Context, key string, e *Entry) error {
	header, err := json.Marshal(e.Header)
	if err != nil {
		return fmt.Errorf("failed to encode headers: %w", err)
	}
	body := e.Body
	if body == nil {
		body = []byte{}
	}
	storedAt := e.StoredAt
	if storedAt.IsZero() {
		storedAt = time.Now()
	}

	return dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		id, ok, err := bucketID(ctx, tx, c.name)
		if err != nil {
			return err
		}
		if !ok {
			// bucket deleted after Open: the write is dropped
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cache_entries (bucket_id, url, status, header, body, stored_at) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(bucket_id, url) DO UPDATE SET
				status = excluded.status, header = excluded.header, body = excluded.body, stored_at = excluded.stored_at
		`, id, key, e.Status, header, body, storedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to put %s[%s]: %w", c.name, key, err)
		}
		return nil
	})
}

func (c *sqliteCache) Match(ctx context.Context, key string) (*Entry, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT e.url, e.status, e.header, e.body, e.stored_at
		FROM cache_entries e JOIN cache_buckets b ON b.id = e.bucket_id
		WHERE b.name = ? AND e.url = ?
	`, c.name, key)
	e, err := scanEntry(row)
	if err != nil {
		return nil, fmt.Errorf("failed to match %s[%s]: %w", c.name, key, err)
	}
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry returns (nil, nil) on sql.ErrNoRows.
func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e      Entry
		header []byte
	)
	err := row.Scan(&e.URL, &e.Status, &header, &e.Body, &e.StoredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(header) > 0 {
		if err := json.Unmarshal(header, &e.Header); err != nil {
			return nil, fmt.Errorf("decode headers: %w", err)
		}
	}
	return &e, nil
}

func createBucket(ctx context.Context, db dbx.DBTX, name string) (int64, error) {
	if _, err := db.ExecContext(ctx, `INSERT INTO cache_buckets (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return 0, fmt.Errorf("failed to create bucket %q: %w", name, err)
	}
	id, _, err := bucketID(ctx, db, name)
	return id, err
}

func (s *SQLiteStorage) Open(ctx context.Context, name string) (Cache, error) {
	if _, err := createBucket(ctx, s.db, name); err != nil {
		return nil, err
	}
	return &sqliteCache{db: s.db, name: name}, nil
}

func (s *SQLiteStorage) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM cache_buckets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan bucket row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bucket rows: %w", err)
	}
	return names, nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, name string) (deleted bool, err error) {
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		id, ok, err := bucketID(ctx, tx, name)
		if err != nil || !ok {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE bucket_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete entries of %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cache_buckets WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete bucket %q: %w", name, err)
		}
		deleted = true
		return nil
	})
	return deleted, err
}

func (s *SQLiteStorage) Match(ctx context.Context, key string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT e.url, e.status, e.header, e.body, e.stored_at
		FROM cache_entries e JOIN cache_buckets b ON b.id = e.bucket_id
		WHERE e.url = ?
		ORDER BY b.id
		LIMIT 1
	`, key)
	e, err := scanEntry(row)
	if err != nil {
		return nil, fmt.Errorf("failed to match %s: %w", key, err)
	}
	return e, nil
}
