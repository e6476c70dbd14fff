// Package compliance provides healthcare regulatory audit logging.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents the type of audit event.
type AuditEventType string

const (
	// EventRecordViewed is logged when protected patient fields are decrypted for display.
	EventRecordViewed AuditEventType = "audit.record_viewed"
	// EventRecordCreated is logged when a record holding protected fields is created.
	EventRecordCreated AuditEventType = "audit.record_created"
	// EventRecordDeleted is logged when a record is deleted.
	EventRecordDeleted AuditEventType = "audit.record_deleted"
	// EventDuplicateRejected is logged when a write is rejected because a protected
	// field value already exists in another row.
	EventDuplicateRejected AuditEventType = "audit.duplicate_rejected"
	// EventDeleteBlocked is logged when a delete is refused because dependent rows exist.
	EventDeleteBlocked AuditEventType = "audit.delete_blocked"
)

// AuditEvent represents an immutable audit record.
type AuditEvent struct {
	ID        string          `json:"id"`
	EventType AuditEventType  `json:"event_type"`
	Table     string          `json:"table_name"`
	RecordID  string          `json:"record_id,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuditDetails contains event-specific details. Protected field values are
// never stored here, only field names.
type AuditDetails struct {
	// For duplicate rejected
	ConflictField string `json:"conflict_field,omitempty"`
	ConflictID    string `json:"conflict_id,omitempty"`

	// For delete blocked
	BlockingTable string `json:"blocking_table,omitempty"`

	// For record viewed
	FieldsViewed []string `json:"fields_viewed,omitempty"`
}

// AuditService handles audit logging. A nil *AuditService is valid and
// discards all events, so callers never need to guard their calls.
type AuditService struct {
	db *sql.DB
}

// NewAuditService creates a new audit service.
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

// LogEvent records an audit event.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if s == nil || s.db == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_events (
			id, event_type, table_name, record_id, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.Table,
		nullString(event.RecordID),
		event.Details,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}

	return nil
}

// LogRecordViewed logs that protected fields of a record were decrypted.
func (s *AuditService) LogRecordViewed(ctx context.Context, table, recordID string, fields []string) error {
	details := AuditDetails{FieldsViewed: fields}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType: EventRecordViewed,
		Table:     table,
		RecordID:  recordID,
		Details:   detailsJSON,
	})
}

// LogRecordCreated logs the creation of a record.
func (s *AuditService) LogRecordCreated(ctx context.Context, table, recordID string) error {
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventRecordCreated,
		Table:     table,
		RecordID:  recordID,
	})
}

// LogRecordDeleted logs the deletion of a record.
func (s *AuditService) LogRecordDeleted(ctx context.Context, table, recordID string) error {
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventRecordDeleted,
		Table:     table,
		RecordID:  recordID,
	})
}

// LogDuplicateRejected logs a write rejected by the duplicate scan.
func (s *AuditService) LogDuplicateRejected(ctx context.Context, table, field, conflictID string) error {
	details := AuditDetails{ConflictField: field, ConflictID: conflictID}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType: EventDuplicateRejected,
		Table:     table,
		Details:   detailsJSON,
	})
}

// LogDeleteBlocked logs a delete refused by the referential integrity guard.
func (s *AuditService) LogDeleteBlocked(ctx context.Context, table, recordID, blockingTable string) error {
	details := AuditDetails{BlockingTable: blockingTable}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType: EventDeleteBlocked,
		Table:     table,
		RecordID:  recordID,
		Details:   detailsJSON,
	})
}

// QueryEvents returns recent audit events for a table, newest first.
func (s *AuditService) QueryEvents(ctx context.Context, table string, limit int) ([]AuditEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, event_type, table_name, record_id, details, created_at
		FROM audit_events
		WHERE table_name = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, table, limit)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var ev AuditEvent
		var recordID sql.NullString
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.Table, &recordID, &ev.Details, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("compliance: failed to scan audit event: %w", err)
		}
		ev.RecordID = recordID.String
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("compliance: failed to read audit events: %w", err)
	}

	return events, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
