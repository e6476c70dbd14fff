// Package specialties manages the medical specialty catalog.
package specialties

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/andescare/hospital-platform/internal/domain"
	"github.com/andescare/hospital-platform/internal/integrity"
	"github.com/andescare/hospital-platform/internal/store"
	"github.com/andescare/hospital-platform/internal/validate"
	"github.com/andescare/hospital-platform/pkg/logging"
)

const defaultDescription = "(no description)"

// Specialty is one row of the specialty catalog.
type Specialty struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Service implements specialty operations.
type Service struct {
	store  *store.Store
	guard  *integrity.Guard
	logger *logging.Logger
}

// NewService creates a specialty service.
func NewService(s *store.Store, guard *integrity.Guard, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: s, guard: guard, logger: logger.WithComponent("specialties")}
}

// Create inserts a specialty, refusing case-insensitive name duplicates.
func (s *Service) Create(ctx context.Context, name, description string) (*Specialty, error) {
	name = validate.TitleCase(name)
	if name == "" {
		return nil, domain.Invalid("name", "name is required")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		description = defaultDescription
	}

	var conflictID int64
	err := s.store.Pool().QueryRow(ctx,
		"SELECT id FROM specialty WHERE lower(name) = lower($1)", name).Scan(&conflictID)
	switch {
	case err == nil:
		return nil, &domain.DuplicateError{Table: "specialty", Field: "name", Value: name, ConflictID: conflictID}
	case err != pgx.ErrNoRows:
		return nil, fmt.Errorf("specialties: name lookup: %w", err)
	}

	sp := &Specialty{Name: name, Description: description}
	if err := s.store.Pool().QueryRow(ctx,
		"INSERT INTO specialty (name, description) VALUES ($1, $2) RETURNING id",
		name, description).Scan(&sp.ID); err != nil {
		return nil, fmt.Errorf("specialties: insert: %w", err)
	}

	s.logger.Info("specialty created", "id", sp.ID, "name", name)
	return sp, nil
}

// List returns all specialties ordered by id.
func (s *Service) List(ctx context.Context) ([]Specialty, error) {
	rows, err := s.store.Pool().Query(ctx,
		"SELECT id, name, description FROM specialty ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("specialties: list: %w", err)
	}
	defer rows.Close()

	var out []Specialty
	for rows.Next() {
		var sp Specialty
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.Description); err != nil {
			return nil, fmt.Errorf("specialties: list: read row: %w", err)
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("specialties: list: %w", err)
	}
	return out, nil
}

// Update replaces name and description for one specialty.
func (s *Service) Update(ctx context.Context, id int64, name, description string) error {
	exists, err := s.store.ExistsByID(ctx, store.TableSpecialty, id)
	if err != nil {
		return err
	}
	if !exists {
		return &domain.NotFoundError{Table: string(store.TableSpecialty), ID: id}
	}

	name = validate.TitleCase(name)
	if name == "" {
		return domain.Invalid("name", "name is required")
	}
	description = strings.TrimSpace(description)

	var conflictID int64
	err = s.store.Pool().QueryRow(ctx,
		"SELECT id FROM specialty WHERE lower(name) = lower($1) AND id <> $2",
		name, id).Scan(&conflictID)
	switch {
	case err == nil:
		return &domain.DuplicateError{Table: "specialty", Field: "name", Value: name, ConflictID: conflictID}
	case err != pgx.ErrNoRows:
		return fmt.Errorf("specialties: name lookup: %w", err)
	}

	if _, err := s.store.Pool().Exec(ctx,
		"UPDATE specialty SET name = $1, description = $2 WHERE id = $3",
		name, description, id); err != nil {
		return fmt.Errorf("specialties: update: %w", err)
	}
	return nil
}

// Delete removes a specialty after the integrity guard clears it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	exists, err := s.store.ExistsByID(ctx, store.TableSpecialty, id)
	if err != nil {
		return err
	}
	if !exists {
		return &domain.NotFoundError{Table: string(store.TableSpecialty), ID: id}
	}
	if err := s.guard.CanDelete(ctx, store.TableSpecialty, id); err != nil {
		return err
	}
	if _, err := s.store.DeleteByID(ctx, store.TableSpecialty, id); err != nil {
		return err
	}
	s.logger.Info("specialty deleted", "id", id)
	return nil
}

// Search finds specialties by name and/or id. Name matching ignores case
// and diacritics, so "pediatria" finds "Pediatría".
func (s *Service) Search(ctx context.Context, name string, id int64) ([]store.Record, error) {
	filters := map[string]any{}
	if id > 0 {
		filters["id"] = id
	}
	records, err := s.store.SearchExact(ctx, store.TableSpecialty, filters)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return records, nil
	}
	wanted := validate.NormalizeText(name)
	var out []store.Record
	for _, rec := range records {
		stored, ok := rec["name"].(string)
		if !ok {
			continue
		}
		if validate.NormalizeText(stored) == wanted {
			out = append(out, rec)
		}
	}
	return out, nil
}
