// Package pii answers equality questions over encrypted columns. Sealed
// ciphertext is non-deterministic, so SQL equality cannot see through it;
// every check here fetches candidate rows and compares after decoding.
package pii

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/andescare/hospital-platform/internal/crypto"
	"github.com/andescare/hospital-platform/internal/observability/metrics"
	"github.com/andescare/hospital-platform/internal/store"
)

// Resolver performs duplicate detection and cleartext search over sealed
// columns. The scan is O(n) per column per check, acceptable at the data
// volumes this system targets; FindConflict is the single seam to swap in a
// deterministic searchable-encryption index later.
type Resolver struct {
	store   *store.Store
	cipher  *crypto.Cipher
	metrics *metrics.RecordMetrics

	mu     sync.Mutex
	tables map[store.Table]*sync.Mutex
}

// NewResolver creates a resolver over the given store and cipher.
func NewResolver(s *store.Store, c *crypto.Cipher) *Resolver {
	return &Resolver{
		store:  s,
		cipher: c,
		tables: make(map[store.Table]*sync.Mutex),
	}
}

// SetMetrics attaches scan-duration metrics. A nil receiver value is fine;
// observations become no-ops.
func (r *Resolver) SetMetrics(m *metrics.RecordMetrics) {
	r.metrics = m
}

// Lock serializes writes to one entity table. The duplicate-check-then-insert
// sequence is a check-then-act race under concurrency; callers hold the
// table lock from the first FindConflict until the insert commits.
func (r *Resolver) Lock(table store.Table) func() {
	r.mu.Lock()
	lock, ok := r.tables[table]
	if !ok {
		lock = &sync.Mutex{}
		r.tables[table] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Conflict describes the row holding a duplicate value.
type Conflict struct {
	ID    int64
	Value string
}

// FindConflict scans column of table for a row whose decoded value equals
// value. The value must already carry the normalization applied at write
// time (formatted national id, trimmed email, ...). Rows that fail to
// decrypt are compared as legacy plaintext. excludeID skips the row being
// updated; pass 0 for inserts. The first match in id order wins.
func (r *Resolver) FindConflict(ctx context.Context, table store.Table, column, value string, excludeID int64) (*Conflict, error) {
	if !table.Valid() {
		return nil, &store.InvalidTableError{Table: table}
	}
	if !table.HasColumn(column) {
		return nil, fmt.Errorf("pii: table %s has no column %q", table, column)
	}

	defer func(start time.Time) {
		r.metrics.ObserveDuplicateScan(string(table), time.Since(start).Seconds())
	}(time.Now())

	query := fmt.Sprintf("SELECT id, %s FROM %s WHERE %s IS NOT NULL ORDER BY id", column, table, column)
	rows, err := r.store.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pii: scan %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var stored string
		if err := rows.Scan(&id, &stored); err != nil {
			return nil, fmt.Errorf("pii: scan %s.%s: read row: %w", table, column, err)
		}
		if id == excludeID {
			continue
		}
		if r.cipher.Unseal(stored) == value {
			return &Conflict{ID: id, Value: value}, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pii: scan %s.%s: %w", table, column, err)
	}
	return nil, nil
}

// SearchSealed filters the result of a generic exact-match search down to
// rows whose sealed column decodes to value. baseFilters cover only
// non-encrypted columns and may be nil.
func (r *Resolver) SearchSealed(ctx context.Context, table store.Table, column, value string, baseFilters map[string]any) ([]store.Record, error) {
	if !table.Valid() {
		return nil, &store.InvalidTableError{Table: table}
	}
	if !table.HasColumn(column) {
		return nil, fmt.Errorf("pii: table %s has no column %q", table, column)
	}

	records, err := r.store.SearchExact(ctx, table, baseFilters)
	if err != nil {
		return nil, err
	}
	var out []store.Record
	for _, record := range records {
		stored, ok := record[column].(string)
		if !ok {
			continue
		}
		if r.cipher.Unseal(stored) == value {
			out = append(out, record)
		}
	}
	return out, nil
}

// DecodeColumns replaces the named columns of a record with their decoded
// plaintext, in place. Legacy plaintext passes through unchanged.
func (r *Resolver) DecodeColumns(record store.Record, columns ...string) {
	for _, col := range columns {
		if stored, ok := record[col].(string); ok {
			record[col] = r.cipher.Unseal(stored)
		}
	}
}
