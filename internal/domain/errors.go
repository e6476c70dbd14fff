// Package domain holds the error taxonomy shared by every entity operation.
package domain

import "fmt"

// ValidationError reports malformed or missing input. It is always raised
// before any storage I/O happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError for a named field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports that a referenced entity id does not exist.
type NotFoundError struct {
	Table string
	ID    int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s with id %d", e.Table, e.ID)
}

// DuplicateError reports a conflict on a confidential field: another row
// already decrypts to the same value.
type DuplicateError struct {
	Table string
	Field string
	Value string
	// ConflictID is the id of the row holding the conflicting value.
	ConflictID int64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s with %s %q already exists (id %d)", e.Table, e.Field, e.Value, e.ConflictID)
}

// ReferentialIntegrityError reports a delete blocked by dependent rows,
// naming the first dependent table found.
type ReferentialIntegrityError struct {
	Table         string
	ID            int64
	BlockingTable string
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("cannot delete %s %d: dependent rows exist in %s", e.Table, e.ID, e.BlockingTable)
}
