// Package appointments manages scheduled appointments between patients and
// doctors.
package appointments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/andescare/hospital-platform/internal/crypto"
	"github.com/andescare/hospital-platform/internal/domain"
	"github.com/andescare/hospital-platform/internal/integrity"
	"github.com/andescare/hospital-platform/internal/schedule"
	"github.com/andescare/hospital-platform/internal/store"
	"github.com/andescare/hospital-platform/internal/validate"
	"github.com/andescare/hospital-platform/pkg/logging"
)

const (
	dateLayout = "2006-01-02"

	// StatusPending is the default status for new appointments.
	StatusPending = "PENDING"
)

// Appointment is one scheduled appointment.
type Appointment struct {
	ID            int64  `json:"id"`
	ScheduledDate string `json:"scheduled_date"`
	ScheduledTime string `json:"scheduled_time"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
	PatientID     int64  `json:"patient_id"`
	DoctorID      int64  `json:"doctor_id"`
}

// Input carries the appointment attributes for create and update.
type Input struct {
	ScheduledDate string
	ScheduledTime string
	Status        string
	Reason        string
	PatientID     int64
	DoctorID      int64
}

// Filter selects appointments by exact match, plus the patient's national id
// which requires decoding each candidate's patient row.
type Filter struct {
	ID                int64
	PatientID         int64
	DoctorID          int64
	ScheduledDate     string
	Status            string
	PatientNationalID string
}

// Service implements appointment operations.
type Service struct {
	store  *store.Store
	cipher *crypto.Cipher
	guard  *integrity.Guard
	logger *logging.Logger
}

// NewService creates an appointment service.
func NewService(s *store.Store, cipher *crypto.Cipher, guard *integrity.Guard, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: s, cipher: cipher, guard: guard, logger: logger.WithComponent("appointments")}
}

func normalize(in Input) (Input, error) {
	in.ScheduledDate = strings.TrimSpace(in.ScheduledDate)
	if _, err := time.Parse(dateLayout, in.ScheduledDate); err != nil {
		return in, domain.Invalid("scheduled_date", "date must use YYYY-MM-DD")
	}

	in.ScheduledTime = strings.TrimSpace(in.ScheduledTime)
	if !schedule.ValidTime(in.ScheduledTime) {
		return in, domain.Invalid("scheduled_time", "time must use HH:MM")
	}

	in.Status = strings.ToUpper(strings.TrimSpace(in.Status))
	if in.Status == "" {
		in.Status = StatusPending
	}

	in.Reason = strings.TrimSpace(in.Reason)
	if in.Reason == "" {
		return in, domain.Invalid("reason", "reason is required")
	}
	return in, nil
}

// checkReferences verifies the patient and doctor both exist.
func (s *Service) checkReferences(ctx context.Context, in Input) error {
	for _, ref := range []struct {
		table store.Table
		id    int64
	}{
		{store.TablePatient, in.PatientID},
		{store.TableDoctor, in.DoctorID},
	} {
		exists, err := s.store.ExistsByID(ctx, ref.table, ref.id)
		if err != nil {
			return err
		}
		if !exists {
			return &domain.NotFoundError{Table: string(ref.table), ID: ref.id}
		}
	}
	return nil
}

// Create validates references and inserts a new appointment.
func (s *Service) Create(ctx context.Context, in Input) (*Appointment, error) {
	in, err := normalize(in)
	if err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, in); err != nil {
		return nil, err
	}

	appt := &Appointment{
		ScheduledDate: in.ScheduledDate,
		ScheduledTime: in.ScheduledTime,
		Status:        in.Status,
		Reason:        in.Reason,
		PatientID:     in.PatientID,
		DoctorID:      in.DoctorID,
	}
	err = s.store.Pool().QueryRow(ctx,
		`INSERT INTO appointment (scheduled_date, scheduled_time, status, reason, patient_id, doctor_id)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		in.ScheduledDate, in.ScheduledTime, in.Status, in.Reason, in.PatientID, in.DoctorID,
	).Scan(&appt.ID)
	if err != nil {
		return nil, fmt.Errorf("appointments: insert: %w", err)
	}

	s.logger.Info("appointment created", "id", appt.ID, "doctor_id", in.DoctorID, "patient_id", in.PatientID)
	return appt, nil
}

// Update replaces all attributes of an existing appointment.
func (s *Service) Update(ctx context.Context, id int64, in Input) error {
	exists, err := s.store.ExistsByID(ctx, store.TableAppointment, id)
	if err != nil {
		return err
	}
	if !exists {
		return &domain.NotFoundError{Table: string(store.TableAppointment), ID: id}
	}

	in, err = normalize(in)
	if err != nil {
		return err
	}
	if err := s.checkReferences(ctx, in); err != nil {
		return err
	}

	_, err = s.store.Pool().Exec(ctx,
		`UPDATE appointment
		 SET scheduled_date = $1, scheduled_time = $2, status = $3, reason = $4,
		     patient_id = $5, doctor_id = $6
		 WHERE id = $7`,
		in.ScheduledDate, in.ScheduledTime, in.Status, in.Reason, in.PatientID, in.DoctorID, id)
	if err != nil {
		return fmt.Errorf("appointments: update: %w", err)
	}

	s.logger.Info("appointment updated", "id", id)
	return nil
}

// List returns all appointments ordered by date and time.
func (s *Service) List(ctx context.Context) ([]Appointment, error) {
	rows, err := s.store.Pool().Query(ctx,
		`SELECT id, scheduled_date, scheduled_time, status, reason, patient_id, doctor_id
		 FROM appointment ORDER BY scheduled_date, scheduled_time`)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	var appts []Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.ScheduledDate, &a.ScheduledTime, &a.Status,
			&a.Reason, &a.PatientID, &a.DoctorID); err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		appts = append(appts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: list rows: %w", err)
	}
	return appts, nil
}

// Search returns appointments matching the filter. Filtering by the patient's
// national id decodes each candidate's patient row once, cached per patient.
func (s *Service) Search(ctx context.Context, f Filter) ([]store.Record, error) {
	// A malformed national id fails before any query runs.
	if f.PatientNationalID != "" && !validate.ValidNationalID(f.PatientNationalID) {
		return nil, domain.Invalid("patient_national_id", "invalid national id")
	}

	filters := map[string]any{}
	if f.ID != 0 {
		filters["id"] = f.ID
	}
	if f.PatientID != 0 {
		filters["patient_id"] = f.PatientID
	}
	if f.DoctorID != 0 {
		filters["doctor_id"] = f.DoctorID
	}
	if f.ScheduledDate != "" {
		filters["scheduled_date"] = strings.TrimSpace(f.ScheduledDate)
	}
	if f.Status != "" {
		filters["status"] = strings.ToUpper(strings.TrimSpace(f.Status))
	}

	records, err := s.store.SearchExact(ctx, store.TableAppointment, filters)
	if err != nil {
		return nil, err
	}
	if f.PatientNationalID == "" {
		return records, nil
	}
	wanted := validate.FormatNationalID(f.PatientNationalID)

	decoded := map[int64]string{}
	var out []store.Record
	for _, rec := range records {
		pid, ok := rec["patient_id"].(int64)
		if !ok {
			continue
		}
		if _, seen := decoded[pid]; !seen {
			var stored string
			err := s.store.Pool().QueryRow(ctx,
				"SELECT national_id FROM patient WHERE id = $1", pid).Scan(&stored)
			switch {
			case err == pgx.ErrNoRows:
				decoded[pid] = ""
			case err != nil:
				return nil, fmt.Errorf("appointments: patient lookup: %w", err)
			default:
				decoded[pid] = s.cipher.Unseal(stored)
			}
		}
		if decoded[pid] == wanted {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Delete removes an appointment after the integrity guard confirms no
// dependents.
func (s *Service) Delete(ctx context.Context, id int64) error {
	exists, err := s.store.ExistsByID(ctx, store.TableAppointment, id)
	if err != nil {
		return err
	}
	if !exists {
		return &domain.NotFoundError{Table: string(store.TableAppointment), ID: id}
	}

	if err := s.guard.CanDelete(ctx, store.TableAppointment, id); err != nil {
		return err
	}

	deleted, err := s.store.DeleteByID(ctx, store.TableAppointment, id)
	if err != nil {
		return err
	}
	if !deleted {
		return &domain.NotFoundError{Table: string(store.TableAppointment), ID: id}
	}

	s.logger.Info("appointment deleted", "id", id)
	return nil
}
