// Package store provides the storage primitives shared by every entity
// operation: existence checks, the whitelist-gated exact-match search, and
// transactional scopes.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx executed against either a pool or a tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxPool is the pool surface the store needs. Satisfied by *pgxpool.Pool
// and by pgxmock pools in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Record is one row of a generic search, keyed by column name.
type Record map[string]any

// Store wraps the connection pool with catalog-checked primitives.
type Store struct {
	pool PgxPool
}

// New creates a store backed by a pgx pool.
func New(pool PgxPool) *Store {
	if pool == nil {
		panic("store: pgx pool required")
	}
	return &Store{pool: pool}
}

// Pool exposes the underlying querier for entity-specific SQL.
func (s *Store) Pool() Querier {
	return s.pool
}

// ExistsByID reports whether table holds a row with the given id.
func (s *Store) ExistsByID(ctx context.Context, table Table, id int64) (bool, error) {
	if err := checkTable(table); err != nil {
		return false, err
	}
	var one int
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE id = $1", table)
	err := s.pool.QueryRow(ctx, query, id).Scan(&one)
	switch {
	case err == nil:
		return true, nil
	case err == pgx.ErrNoRows:
		return false, nil
	default:
		return false, fmt.Errorf("store: exists %s: %w", table, err)
	}
}

// CountWhere returns the number of rows in table whose column equals id.
// Used by the referential integrity guard to count dependents.
func (s *Store) CountWhere(ctx context.Context, table Table, column string, id int64) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	if !table.HasColumn(column) {
		return 0, fmt.Errorf("store: table %s has no column %q", table, column)
	}
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = $1", table, column)
	if err := s.pool.QueryRow(ctx, query, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("store: count %s.%s: %w", table, column, err)
	}
	return count, nil
}

// SearchExact runs the generic exact-match query: included filters are
// AND-conjoined equality, nil values and blank strings are skipped, results
// come back ordered by id. The only predicate form is equality; anything
// fancier belongs in a dedicated entity query.
func (s *Store) SearchExact(ctx context.Context, table Table, filters map[string]any) ([]Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT * FROM %s", table)

	// Deterministic column order so identical filter maps produce identical
	// query text (and pgxmock expectations hold).
	columns := make([]string, 0, len(filters))
	for col := range filters {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	var args []any
	var conditions []string
	for _, col := range columns {
		// Off-catalog columns are rejected even when their value would be
		// skipped, so a bogus filter never passes silently.
		if !table.HasColumn(col) {
			return nil, fmt.Errorf("store: table %s has no column %q", table, col)
		}
		val := filters[col]
		if val == nil {
			continue
		}
		if s, ok := val.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if len(conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}
	b.WriteString(" ORDER BY id")

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("store: search %s: %w", table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("store: search %s: read row: %w", table, err)
		}
		record := make(Record, len(fields))
		for i, fd := range fields {
			record[string(fd.Name)] = values[i]
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: search %s: %w", table, err)
	}
	return out, nil
}

// DeleteByID removes the row with the given id, reporting whether a row was
// deleted. Referential checks happen in the integrity guard before this runs.
func (s *Store) DeleteByID(ctx context.Context, table Table, id int64) (bool, error) {
	if err := checkTable(table); err != nil {
		return false, err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", table)
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("store: delete %s: %w", table, err)
	}
	return tag.RowsAffected() > 0, nil
}

// WithTx runs fn inside a transaction, rolling back on error or panic. The
// schedule engine's delete+insert pair and the duplicate-check-then-insert
// sequences run under this scope so a mid-operation fault leaves no partial
// state.
func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit tx: %w", err)
	}
	return nil
}
