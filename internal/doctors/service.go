// Package doctors manages doctor records with sealed contact fields.
package doctors

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/andescare/hospital-platform/internal/compliance"
	"github.com/andescare/hospital-platform/internal/crypto"
	"github.com/andescare/hospital-platform/internal/domain"
	"github.com/andescare/hospital-platform/internal/integrity"
	"github.com/andescare/hospital-platform/internal/pii"
	"github.com/andescare/hospital-platform/internal/store"
	"github.com/andescare/hospital-platform/internal/validate"
	"github.com/andescare/hospital-platform/pkg/logging"
)

// sealedColumns are the doctor columns stored encrypted at rest.
var sealedColumns = []string{"national_id", "email", "phone"}

// Doctor is a doctor record with sealed fields already decoded.
type Doctor struct {
	ID           int64   `json:"id"`
	NationalID   string  `json:"national_id"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	Email        string  `json:"email"`
	Phone        string  `json:"phone"`
	SpecialtyID  int64   `json:"specialty_id"`
	Specialty    string  `json:"specialty,omitempty"`
	ScheduleNote *string `json:"schedule_note,omitempty"`
}

// Input carries the full set of doctor attributes for create and update.
type Input struct {
	NationalID   string
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	SpecialtyID  int64
	ScheduleNote *string
}

// Filter selects doctors by exact match on plain columns, plus national id
// which is matched after decoding.
type Filter struct {
	ID          int64
	FirstName   string
	LastName    string
	SpecialtyID int64
	NationalID  string
}

// Service implements doctor operations.
type Service struct {
	store    *store.Store
	cipher   *crypto.Cipher
	resolver *pii.Resolver
	guard    *integrity.Guard
	audit    *compliance.AuditService
	logger   *logging.Logger
}

// NewService creates a doctor service. audit may be nil.
func NewService(s *store.Store, cipher *crypto.Cipher, resolver *pii.Resolver, guard *integrity.Guard, audit *compliance.AuditService, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:    s,
		cipher:   cipher,
		resolver: resolver,
		guard:    guard,
		audit:    audit,
		logger:   logger.WithComponent("doctors"),
	}
}

// normalize validates the input and returns it with write-time normalization
// applied: formatted national id, title-cased names, trimmed contact fields.
func normalize(in Input) (Input, error) {
	if strings.TrimSpace(in.NationalID) == "" {
		return in, domain.Invalid("national_id", "national id is required")
	}
	if !validate.ValidNationalID(in.NationalID) {
		return in, domain.Invalid("national_id", "invalid national id, expected format 12.345.678-9")
	}
	in.NationalID = validate.FormatNationalID(in.NationalID)

	in.FirstName = validate.TitleCase(in.FirstName)
	if in.FirstName == "" {
		return in, domain.Invalid("first_name", "first name is required")
	}
	in.LastName = validate.TitleCase(in.LastName)
	if in.LastName == "" {
		return in, domain.Invalid("last_name", "last name is required")
	}

	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" {
		return in, domain.Invalid("email", "email is required")
	}
	if !validate.ValidEmail(in.Email) {
		return in, domain.Invalid("email", "invalid email, expected format user@domain.cl")
	}

	in.Phone = strings.TrimSpace(in.Phone)
	if in.Phone == "" {
		return in, domain.Invalid("phone", "phone is required")
	}
	if !validate.ValidPhone(in.Phone) {
		return in, domain.Invalid("phone", "invalid phone, use digits or +56 format")
	}

	if in.ScheduleNote != nil {
		note := strings.TrimSpace(*in.ScheduleNote)
		if note == "" {
			return in, domain.Invalid("schedule_note", "schedule note cannot be blank when given")
		}
		in.ScheduleNote = &note
	}
	return in, nil
}

// checkConflicts scans the sealed columns for another doctor holding the same
// national id, email or phone. Caller must hold the doctor table lock.
// auditWrite surfaces trail failures in the logs without failing the
// operation; the audit table is best effort.
func (s *Service) auditWrite(err error) {
	if err != nil {
		s.logger.Warn("audit write failed", "error", err)
	}
}

func (s *Service) checkConflicts(ctx context.Context, in Input, excludeID int64) error {
	checks := []struct{ column, value string }{
		{"national_id", in.NationalID},
		{"email", in.Email},
		{"phone", in.Phone},
	}
	for _, c := range checks {
		conflict, err := s.resolver.FindConflict(ctx, store.TableDoctor, c.column, c.value, excludeID)
		if err != nil {
			return err
		}
		if conflict != nil {
			s.auditWrite(s.audit.LogDuplicateRejected(ctx, string(store.TableDoctor), c.column, strconv.FormatInt(conflict.ID, 10)))
			return &domain.DuplicateError{
				Table:      string(store.TableDoctor),
				Field:      c.column,
				Value:      c.value,
				ConflictID: conflict.ID,
			}
		}
	}
	return nil
}

// Create validates, checks duplicates across sealed fields, seals and inserts.
func (s *Service) Create(ctx context.Context, in Input) (*Doctor, error) {
	in, err := normalize(in)
	if err != nil {
		return nil, err
	}

	exists, err := s.store.ExistsByID(ctx, store.TableSpecialty, in.SpecialtyID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &domain.NotFoundError{Table: string(store.TableSpecialty), ID: in.SpecialtyID}
	}

	unlock := s.resolver.Lock(store.TableDoctor)
	defer unlock()

	if err := s.checkConflicts(ctx, in, 0); err != nil {
		return nil, err
	}

	sealedID, err := s.cipher.Seal(in.NationalID)
	if err != nil {
		return nil, err
	}
	sealedEmail, err := s.cipher.Seal(in.Email)
	if err != nil {
		return nil, err
	}
	sealedPhone, err := s.cipher.Seal(in.Phone)
	if err != nil {
		return nil, err
	}

	doc := &Doctor{
		NationalID:   in.NationalID,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Phone:        in.Phone,
		SpecialtyID:  in.SpecialtyID,
		ScheduleNote: in.ScheduleNote,
	}
	err = s.store.Pool().QueryRow(ctx,
		`INSERT INTO doctor (national_id, first_name, last_name, email, phone, specialty_id, schedule_note)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		sealedID, in.FirstName, in.LastName, sealedEmail, sealedPhone, in.SpecialtyID, in.ScheduleNote,
	).Scan(&doc.ID)
	if err != nil {
		return nil, fmt.Errorf("doctors: insert: %w", err)
	}

	s.auditWrite(s.audit.LogRecordCreated(ctx, string(store.TableDoctor), strconv.FormatInt(doc.ID, 10)))
	s.logger.Info("doctor created", "id", doc.ID, "specialty_id", in.SpecialtyID)
	return doc, nil
}

// Update replaces all attributes of an existing doctor.
func (s *Service) Update(ctx context.Context, id int64, in Input) error {
	exists, err := s.store.ExistsByID(ctx, store.TableDoctor, id)
	if err != nil {
		return err
	}
	if !exists {
		return &domain.NotFoundError{Table: string(store.TableDoctor), ID: id}
	}

	in, err = normalize(in)
	if err != nil {
		return err
	}

	exists, err = s.store.ExistsByID(ctx, store.TableSpecialty, in.SpecialtyID)
	if err != nil {
		return err
	}
	if !exists {
		return &domain.NotFoundError{Table: string(store.TableSpecialty), ID: in.SpecialtyID}
	}

	unlock := s.resolver.Lock(store.TableDoctor)
	defer unlock()

	if err := s.checkConflicts(ctx, in, id); err != nil {
		return err
	}

	sealedID, err := s.cipher.Seal(in.NationalID)
	if err != nil {
		return err
	}
	sealedEmail, err := s.cipher.Seal(in.Email)
	if err != nil {
		return err
	}
	sealedPhone, err := s.cipher.Seal(in.Phone)
	if err != nil {
		return err
	}

	_, err = s.store.Pool().Exec(ctx,
		`UPDATE doctor
		 SET national_id = $1, first_name = $2, last_name = $3, email = $4,
		     phone = $5, specialty_id = $6, schedule_note = $7
		 WHERE id = $8`,
		sealedID, in.FirstName, in.LastName, sealedEmail, sealedPhone,
		in.SpecialtyID, in.ScheduleNote, id)
	if err != nil {
		return fmt.Errorf("doctors: update: %w", err)
	}

	s.logger.Info("doctor updated", "id", id)
	return nil
}

// List returns all doctors with their specialty name, sealed fields decoded.
func (s *Service) List(ctx context.Context) ([]Doctor, error) {
	rows, err := s.store.Pool().Query(ctx,
		`SELECT d.id, d.national_id, d.first_name, d.last_name, d.email,
		        d.phone, d.specialty_id, d.schedule_note, COALESCE(sp.name, '')
		 FROM doctor d
		 LEFT JOIN specialty sp ON sp.id = d.specialty_id
		 ORDER BY d.id`)
	if err != nil {
		return nil, fmt.Errorf("doctors: list: %w", err)
	}
	defer rows.Close()

	var docs []Doctor
	for rows.Next() {
		var d Doctor
		var nationalID, email, phone string
		if err := rows.Scan(&d.ID, &nationalID, &d.FirstName, &d.LastName,
			&email, &phone, &d.SpecialtyID, &d.ScheduleNote, &d.Specialty); err != nil {
			return nil, fmt.Errorf("doctors: scan: %w", err)
		}
		d.NationalID = s.cipher.Unseal(nationalID)
		d.Email = s.cipher.Unseal(email)
		d.Phone = s.cipher.Unseal(phone)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("doctors: list rows: %w", err)
	}

	s.auditWrite(s.audit.LogRecordViewed(ctx, string(store.TableDoctor), "", sealedColumns))
	return docs, nil
}

// Search returns doctors matching the filter, sealed fields decoded.
// National id matching happens after decoding since ciphertext equality
// cannot be pushed to the database.
func (s *Service) Search(ctx context.Context, f Filter) ([]store.Record, error) {
	filters := map[string]any{}
	if f.ID != 0 {
		filters["id"] = f.ID
	}
	if f.FirstName != "" {
		filters["first_name"] = validate.TitleCase(f.FirstName)
	}
	if f.LastName != "" {
		filters["last_name"] = validate.TitleCase(f.LastName)
	}
	if f.SpecialtyID != 0 {
		filters["specialty_id"] = f.SpecialtyID
	}

	var records []store.Record
	var err error
	if f.NationalID != "" {
		if !validate.ValidNationalID(f.NationalID) {
			return nil, domain.Invalid("national_id", "invalid national id, expected format 12.345.678-9")
		}
		records, err = s.resolver.SearchSealed(ctx, store.TableDoctor, "national_id",
			validate.FormatNationalID(f.NationalID), filters)
	} else {
		records, err = s.store.SearchExact(ctx, store.TableDoctor, filters)
	}
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		s.resolver.DecodeColumns(rec, sealedColumns...)
	}
	s.auditWrite(s.audit.LogRecordViewed(ctx, string(store.TableDoctor), "", sealedColumns))
	return records, nil
}

// Delete removes a doctor after the integrity guard confirms no dependents.
func (s *Service) Delete(ctx context.Context, id int64) error {
	exists, err := s.store.ExistsByID(ctx, store.TableDoctor, id)
	if err != nil {
		return err
	}
	if !exists {
		return &domain.NotFoundError{Table: string(store.TableDoctor), ID: id}
	}

	if err := s.guard.CanDelete(ctx, store.TableDoctor, id); err != nil {
		var refErr *domain.ReferentialIntegrityError
		if errors.As(err, &refErr) {
			s.auditWrite(s.audit.LogDeleteBlocked(ctx, string(store.TableDoctor),
				strconv.FormatInt(id, 10), refErr.BlockingTable))
		}
		return err
	}

	deleted, err := s.store.DeleteByID(ctx, store.TableDoctor, id)
	if err != nil {
		return err
	}
	if !deleted {
		return &domain.NotFoundError{Table: string(store.TableDoctor), ID: id}
	}

	s.auditWrite(s.audit.LogRecordDeleted(ctx, string(store.TableDoctor), strconv.FormatInt(id, 10)))
	s.logger.Info("doctor deleted", "id", id)
	return nil
}
