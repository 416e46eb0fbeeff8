package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/shellkeeper/internal/common"
	"github.com/dmitrijs2005/shellkeeper/internal/dbx"
	"github.com/jackc/pgx/v5"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

// ErrMultipleRows is returned by Single when the filter matches more than one row.
var ErrMultipleRows = errors.New("multiple rows returned")

// PostgresQuerier answers table lookups straight from the backend's Postgres
// database instead of the REST table endpoint.
type PostgresQuerier struct {
	db dbx.DBTX
}

func NewPostgresQuerier(db dbx.DBTX) *PostgresQuerier {
	return &PostgresQuerier{db: db}
}

// OpenPostgresQuerier connects to dsn through the pgx driver. The returned
// *sql.DB must be closed by the caller.
func OpenPostgresQuerier(ctx context.Context, dsn string) (*PostgresQuerier, *sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return NewPostgresQuerier(db), db, nil
}

func (q *PostgresQuerier) From(table string) QueryBuilder {
	return &pgQuery{db: q.db, table: table, columns: []string{"*"}}
}

type pgFilter struct {
	column string
	value  any
}

type pgQuery struct {
	db      dbx.DBTX
	table   string
	columns []string
	filters []pgFilter
}

func (q *pgQuery) Select(columns string) QueryBuilder {
	q.columns = q.columns[:0]
	for _, c := range strings.Split(columns, ",") {
		if c = strings.TrimSpace(c); c != "" {
			q.columns = append(q.columns, c)
		}
	}
	if len(q.columns) == 0 {
		q.columns = []string{"*"}
	}
	return q
}

func (q *pgQuery) Eq(column string, value any) QueryBuilder {
	q.filters = append(q.filters, pgFilter{column: column, value: value})
	return q
}

func (q *pgQuery) build() (string, []any) {
	cols := make([]string, len(q.columns))
	for i, c := range q.columns {
		if c == "*" {
			cols[i] = c
			continue
		}
		cols[i] = pgx.Identifier{c}.Sanitize()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", strings.Join(cols, ", "), pgx.Identifier(strings.Split(q.table, ".")).Sanitize())

	args := make([]any, 0, len(q.filters))
	for i, f := range q.filters {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		args = append(args, f.value)
		fmt.Fprintf(&sb, "%s = $%d", pgx.Identifier{f.column}.Sanitize(), len(args))
	}
	sb.WriteString(" LIMIT 2")
	return sb.String(), args
}

func (q *pgQuery) Single(ctx context.Context) (map[string]any, error) {
	query, args := q.build()

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	var row map[string]any
	for rows.Next() {
		if row != nil {
			return nil, ErrMultipleRows
		}
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		row = make(map[string]any, len(names))
		for i, name := range names {
			if b, ok := values[i].([]byte); ok {
				row[name] = string(b)
				continue
			}
			row[name] = values[i]
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if row == nil {
		return nil, common.ErrorNotFound
	}
	return row, nil
}
