// Package patients manages patient records. National id, birth date, email,
// phone, address and the emergency contact are sealed at rest.
package patients

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andescare/hospital-platform/internal/compliance"
	"github.com/andescare/hospital-platform/internal/crypto"
	"github.com/andescare/hospital-platform/internal/domain"
	"github.com/andescare/hospital-platform/internal/integrity"
	"github.com/andescare/hospital-platform/internal/pii"
	"github.com/andescare/hospital-platform/internal/store"
	"github.com/andescare/hospital-platform/internal/validate"
	"github.com/andescare/hospital-platform/pkg/logging"
)

const birthDateLayout = "2006-01-02"

// sealedColumns are the patient columns stored encrypted at rest.
var sealedColumns = []string{
	"national_id", "birth_date", "email", "phone", "address",
	"emergency_first_name", "emergency_last_name", "emergency_phone",
}

// Allowed values for the closed enum fields.
const (
	GenderMale   = "Male"
	GenderFemale = "Female"

	HealthSystemFonasa = "Fonasa"
	HealthSystemIsapre = "Isapre"
)

// Patient is a patient record with sealed fields already decoded.
type Patient struct {
	ID                 int64   `json:"id"`
	NationalID         string  `json:"national_id"`
	FirstName          string  `json:"first_name"`
	LastName           string  `json:"last_name"`
	BirthDate          string  `json:"birth_date"`
	Email              string  `json:"email"`
	Phone              string  `json:"phone"`
	Gender             string  `json:"gender"`
	Address            string  `json:"address"`
	HealthSystem       string  `json:"health_system"`
	Nationality        string  `json:"nationality"`
	EmergencyFirstName *string `json:"emergency_first_name,omitempty"`
	EmergencyLastName  *string `json:"emergency_last_name,omitempty"`
	EmergencyPhone     *string `json:"emergency_phone,omitempty"`
}

// Input carries the full set of patient attributes for create and update.
type Input struct {
	NationalID         string
	FirstName          string
	LastName           string
	BirthDate          string
	Email              string
	Phone              string
	Gender             string
	Address            string
	HealthSystem       string
	Nationality        string
	EmergencyFirstName *string
	EmergencyLastName  *string
	EmergencyPhone     *string
}

// Filter selects patients by exact match on plain columns, plus national id
// which is matched after decoding.
type Filter struct {
	ID           int64
	FirstName    string
	LastName     string
	Gender       string
	HealthSystem string
	Nationality  string
	NationalID   string
}

// Service implements patient operations.
type Service struct {
	store    *store.Store
	cipher   *crypto.Cipher
	resolver *pii.Resolver
	guard    *integrity.Guard
	audit    *compliance.AuditService
	logger   *logging.Logger
}

// NewService creates a patient service. audit may be nil.
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
		logger:   logger.WithComponent("patients"),
	}
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func titlePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := validate.TitleCase(*p)
	if v == "" {
		return nil
	}
	return &v
}

// normalize validates the input and returns it with write-time normalization
// applied. Minors must carry a complete emergency contact.
func normalize(in Input) (Input, error) {
	in.HealthSystem = validate.TitleCase(in.HealthSystem)
	if in.HealthSystem != HealthSystemFonasa && in.HealthSystem != HealthSystemIsapre {
		return in, domain.Invalid("health_system", "health system must be 'Fonasa' or 'Isapre'")
	}

	in.Nationality = validate.TitleCase(in.Nationality)
	if in.Nationality == "" {
		return in, domain.Invalid("nationality", "nationality is required")
	}

	if strings.TrimSpace(in.NationalID) == "" || !validate.ValidNationalID(in.NationalID) {
		return in, domain.Invalid("national_id", "invalid or missing national id")
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

	in.BirthDate = strings.TrimSpace(in.BirthDate)
	birth, err := time.Parse(birthDateLayout, in.BirthDate)
	if err != nil {
		return in, domain.Invalid("birth_date", "birth date must use YYYY-MM-DD")
	}

	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" || !validate.ValidEmail(in.Email) {
		return in, domain.Invalid("email", "invalid or missing email")
	}

	in.Phone = strings.TrimSpace(in.Phone)
	if in.Phone == "" || !validate.ValidPhone(in.Phone) {
		return in, domain.Invalid("phone", "invalid or missing phone")
	}

	in.Gender = validate.TitleCase(in.Gender)
	if in.Gender != GenderMale && in.Gender != GenderFemale {
		return in, domain.Invalid("gender", "gender must be 'Male' or 'Female'")
	}

	in.Address = strings.TrimSpace(in.Address)
	if in.Address == "" {
		return in, domain.Invalid("address", "address is required")
	}

	in.EmergencyFirstName = titlePtr(in.EmergencyFirstName)
	in.EmergencyLastName = titlePtr(in.EmergencyLastName)
	in.EmergencyPhone = trimPtr(in.EmergencyPhone)

	if validate.IsMinor(birth, time.Now()) {
		if in.EmergencyFirstName == nil {
			return in, domain.Invalid("emergency_first_name", "emergency contact first name is required for patients under 18")
		}
		if in.EmergencyLastName == nil {
			return in, domain.Invalid("emergency_last_name", "emergency contact last name is required for patients under 18")
		}
		if in.EmergencyPhone == nil || !validate.ValidPhone(*in.EmergencyPhone) {
			return in, domain.Invalid("emergency_phone", "a valid emergency phone is required for patients under 18")
		}
	}
	if in.EmergencyPhone != nil && !validate.ValidPhone(*in.EmergencyPhone) {
		return in, domain.Invalid("emergency_phone", "invalid emergency phone")
	}

	return in, nil
}

// checkConflicts scans for another patient decoding to the same national id
// or email. Caller must hold the patient table lock.
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
	}
	for _, c := range checks {
		conflict, err := s.resolver.FindConflict(ctx, store.TablePatient, c.column, c.value, excludeID)
		if err != nil {
			return err
		}
		if conflict != nil {
			s.auditWrite(s.audit.LogDuplicateRejected(ctx, string(store.TablePatient), c.column, strconv.FormatInt(conflict.ID, 10)))
			return &domain.DuplicateError{
				Table:      string(store.TablePatient),
				Field:      c.column,
				Value:      c.value,
				ConflictID: conflict.ID,
			}
		}
	}
	return nil
}

// sealInput seals the confidential columns, leaving names and enum fields
// in clear so exact-match search keeps working on them.
func (s *Service) sealInput(in Input) (sealed map[string]any, err error) {
	sealed = make(map[string]any, len(sealedColumns))
	for col, plain := range map[string]string{
		"national_id": in.NationalID,
		"birth_date":  in.BirthDate,
		"email":       in.Email,
		"phone":       in.Phone,
		"address":     in.Address,
	} {
		token, err := s.cipher.Seal(plain)
		if err != nil {
			return nil, err
		}
		sealed[col] = token
	}
	for col, plain := range map[string]*string{
		"emergency_first_name": in.EmergencyFirstName,
		"emergency_last_name":  in.EmergencyLastName,
		"emergency_phone":      in.EmergencyPhone,
	} {
		token, err := s.cipher.SealPtr(plain)
		if err != nil {
			return nil, err
		}
		sealed[col] = token
	}
	return sealed, nil
}

// Create validates, checks national id and email duplicates, seals and inserts.
func (s *Service) Create(ctx context.Context, in Input) (*Patient, error) {
	in, err := normalize(in)
	if err != nil {
		return nil, err
	}

	unlock := s.resolver.Lock(store.TablePatient)
	defer unlock()

	if err := s.checkConflicts(ctx, in, 0); err != nil {
		return nil, err
	}

	sealed, err := s.sealInput(in)
	if err != nil {
		return nil, err
	}

	p := patientFromInput(in)
	err = s.store.Pool().QueryRow(ctx,
		`INSERT INTO patient (national_id, first_name, last_name, birth_date, email,
		   phone, gender, address, health_system, nationality,
		   emergency_first_name, emergency_last_name, emergency_phone)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`,
		sealed["national_id"], in.FirstName, in.LastName, sealed["birth_date"],
		sealed["email"], sealed["phone"], in.Gender, sealed["address"],
		in.HealthSystem, in.Nationality, sealed["emergency_first_name"],
		sealed["emergency_last_name"], sealed["emergency_phone"],
	).Scan(&p.ID)
	if err != nil {
		return nil, fmt.Errorf("patients: insert: %w", err)
	}

	s.auditWrite(s.audit.LogRecordCreated(ctx, string(store.TablePatient), strconv.FormatInt(p.ID, 10)))
	s.logger.Info("patient created", "id", p.ID, "health_system", in.HealthSystem)
	return p, nil
}

func patientFromInput(in Input) *Patient {
	return &Patient{
		NationalID:         in.NationalID,
		FirstName:          in.FirstName,
		LastName:           in.LastName,
		BirthDate:          in.BirthDate,
		Email:              in.Email,
		Phone:              in.Phone,
		Gender:             in.Gender,
		Address:            in.Address,
		HealthSystem:       in.HealthSystem,
		Nationality:        in.Nationality,
		EmergencyFirstName: in.EmergencyFirstName,
		EmergencyLastName:  in.EmergencyLastName,
		EmergencyPhone:     in.EmergencyPhone,
	}
}

// Update replaces all attributes of an existing patient.
func (s *Service) Update(ctx context.Context, id int64, in Input) error {
	exists, err := s.store.ExistsByID(ctx, store.TablePatient, id)
	if err != nil {
		return err
	}
	if !exists {
		return &domain.NotFoundError{Table: string(store.TablePatient), ID: id}
	}

	in, err = normalize(in)
	if err != nil {
		return err
	}

	unlock := s.resolver.Lock(store.TablePatient)
	defer unlock()

	if err := s.checkConflicts(ctx, in, id); err != nil {
		return err
	}

	sealed, err := s.sealInput(in)
	if err != nil {
		return err
	}

	_, err = s.store.Pool().Exec(ctx,
		`UPDATE patient
		 SET national_id = $1, first_name = $2, last_name = $3, birth_date = $4,
		     email = $5, phone = $6, gender = $7, address = $8, health_system = $9,
		     nationality = $10, emergency_first_name = $11, emergency_last_name = $12,
		     emergency_phone = $13
		 WHERE id = $14`,
		sealed["national_id"], in.FirstName, in.LastName, sealed["birth_date"],
		sealed["email"], sealed["phone"], in.Gender, sealed["address"],
		in.HealthSystem, in.Nationality, sealed["emergency_first_name"],
		sealed["emergency_last_name"], sealed["emergency_phone"], id)
	if err != nil {
		return fmt.Errorf("patients: update: %w", err)
	}

	s.logger.Info("patient updated", "id", id)
	return nil
}

// List returns all patients with sealed fields decoded.
func (s *Service) List(ctx context.Context) ([]Patient, error) {
	rows, err := s.store.Pool().Query(ctx,
		`SELECT id, national_id, first_name, last_name, birth_date, email, phone,
		        gender, address, health_system, nationality,
		        emergency_first_name, emergency_last_name, emergency_phone
		 FROM patient ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("patients: list: %w", err)
	}
	defer rows.Close()

	var patients []Patient
	for rows.Next() {
		var p Patient
		var nationalID, birthDate, email, phone, address string
		var emFirst, emLast, emPhone *string
		if err := rows.Scan(&p.ID, &nationalID, &p.FirstName, &p.LastName,
			&birthDate, &email, &phone, &p.Gender, &address, &p.HealthSystem,
			&p.Nationality, &emFirst, &emLast, &emPhone); err != nil {
			return nil, fmt.Errorf("patients: scan: %w", err)
		}
		p.NationalID = s.cipher.Unseal(nationalID)
		p.BirthDate = s.cipher.Unseal(birthDate)
		p.Email = s.cipher.Unseal(email)
		p.Phone = s.cipher.Unseal(phone)
		p.Address = s.cipher.Unseal(address)
		p.EmergencyFirstName = s.cipher.UnsealPtr(emFirst)
		p.EmergencyLastName = s.cipher.UnsealPtr(emLast)
		p.EmergencyPhone = s.cipher.UnsealPtr(emPhone)
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("patients: list rows: %w", err)
	}

	s.auditWrite(s.audit.LogRecordViewed(ctx, string(store.TablePatient), "", sealedColumns))
	return patients, nil
}

// Search returns patients matching the filter, sealed fields decoded.
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
	if f.Gender != "" {
		filters["gender"] = validate.TitleCase(f.Gender)
	}
	if f.HealthSystem != "" {
		filters["health_system"] = validate.TitleCase(f.HealthSystem)
	}
	if f.Nationality != "" {
		filters["nationality"] = validate.TitleCase(f.Nationality)
	}

	var records []store.Record
	var err error
	if f.NationalID != "" {
		if !validate.ValidNationalID(f.NationalID) {
			return nil, domain.Invalid("national_id", "invalid national id, expected format 12.345.678-9")
		}
		records, err = s.resolver.SearchSealed(ctx, store.TablePatient, "national_id",
			validate.FormatNationalID(f.NationalID), filters)
	} else {
		records, err = s.store.SearchExact(ctx, store.TablePatient, filters)
	}
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		s.resolver.DecodeColumns(rec, sealedColumns...)
	}
	s.auditWrite(s.audit.LogRecordViewed(ctx, string(store.TablePatient), "", sealedColumns))
	return records, nil
}

// Delete removes a patient after the integrity guard confirms no dependents.
func (s *Service) Delete(ctx context.Context, id int64) error {
	exists, err := s.store.ExistsByID(ctx, store.TablePatient, id)
	if err != nil {
		return err
	}
	if !exists {
		return &domain.NotFoundError{Table: string(store.TablePatient), ID: id}
	}

	if err := s.guard.CanDelete(ctx, store.TablePatient, id); err != nil {
		var refErr *domain.ReferentialIntegrityError
		if errors.As(err, &refErr) {
			s.auditWrite(s.audit.LogDeleteBlocked(ctx, string(store.TablePatient),
				strconv.FormatInt(id, 10), refErr.BlockingTable))
		}
		return err
	}

	deleted, err := s.store.DeleteByID(ctx, store.TablePatient, id)
	if err != nil {
		return err
	}
	if !deleted {
		return &domain.NotFoundError{Table: string(store.TablePatient), ID: id}
	}

	s.auditWrite(s.audit.LogRecordDeleted(ctx, string(store.TablePatient), strconv.FormatInt(id, 10)))
	s.logger.Info("patient deleted", "id", id)
	return nil
}

// DeleteByNationalID locates the patient whose sealed national id decodes to
// the given value and deletes it through the integrity guard.
func (s *Service) DeleteByNationalID(ctx context.Context, nationalID string) (int64, error) {
	if !validate.ValidNationalID(nationalID) {
		return 0, domain.Invalid("national_id", "invalid national id")
	}
	formatted := validate.FormatNationalID(nationalID)

	conflict, err := s.resolver.FindConflict(ctx, store.TablePatient, "national_id", formatted, 0)
	if err != nil {
		return 0, err
	}
	if conflict == nil {
		return 0, &domain.NotFoundError{Table: string(store.TablePatient)}
	}
	return conflict.ID, s.Delete(ctx, conflict.ID)
}
