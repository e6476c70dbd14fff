// Package clinical manages diagnoses, treatments, medical record entries and
// encounters.
package clinical

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andescare/hospital-platform/internal/domain"
	"github.com/andescare/hospital-platform/internal/integrity"
	"github.com/andescare/hospital-platform/internal/store"
	"github.com/andescare/hospital-platform/pkg/logging"
)

const dateLayout = "2006-01-02"

// Diagnosis is one diagnosis attached to an appointment.
type Diagnosis struct {
	ID            int64  `json:"id"`
	DiagnosedOn   string `json:"diagnosed_on"`
	Description   string `json:"description"`
	DoctorID      int64  `json:"doctor_id"`
	AppointmentID int64  `json:"appointment_id"`
}

// DiagnosisView is a diagnosis joined with its doctor and appointment.
type DiagnosisView struct {
	ID                int64  `json:"id"`
	DiagnosedOn       string `json:"diagnosed_on"`
	Description       string `json:"description"`
	Doctor            string `json:"doctor"`
	AppointmentDate   string `json:"appointment_date"`
	AppointmentReason string `json:"appointment_reason"`
}

// Treatment is one treatment prescribed for a diagnosis.
type Treatment struct {
	ID          int64   `json:"id"`
	StartedOn   string  `json:"started_on"`
	EndedOn     *string `json:"ended_on,omitempty"`
	Treatment   string  `json:"treatment"`
	DiagnosisID int64   `json:"diagnosis_id"`
}

// TreatmentView is a treatment joined with its diagnosis description.
type TreatmentView struct {
	ID        int64   `json:"id"`
	Treatment string  `json:"treatment"`
	StartedOn string  `json:"started_on"`
	EndedOn   *string `json:"ended_on,omitempty"`
	Diagnosis string  `json:"diagnosis"`
}

// MedicalRecord is one medical record entry.
type MedicalRecord struct {
	ID            int64  `json:"id"`
	RecordedOn    string `json:"recorded_on"`
	DiagnosisID   int64  `json:"diagnosis_id"`
	TreatmentID   int64  `json:"treatment_id"`
	Notes         string `json:"notes"`
	Allergies     string `json:"allergies"`
	ExamResults   string `json:"exam_results"`
	PatientID     int64  `json:"patient_id"`
	AppointmentID int64  `json:"appointment_id"`
}

// MedicalRecordView is a record entry joined with patient name, diagnosis and
// treatment.
type MedicalRecordView struct {
	ID          int64  `json:"id"`
	RecordedOn  string `json:"recorded_on"`
	Patient     string `json:"patient"`
	Diagnosis   string `json:"diagnosis"`
	Treatment   string `json:"treatment"`
	Notes       string `json:"notes"`
	Allergies   string `json:"allergies"`
	ExamResults string `json:"exam_results"`
}

// Encounter links a diagnosis with a medical record entry.
type Encounter struct {
	ID              int64  `json:"id"`
	DiagnosisID     int64  `json:"diagnosis_id"`
	MedicalRecordID int64  `json:"medical_record_id"`
	Description     string `json:"description"`
}

// EncounterView is an encounter joined with its diagnosis and record.
type EncounterView struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	Diagnosis   string `json:"diagnosis"`
	RecordNotes string `json:"record_notes"`
	RecordedOn  string `json:"recorded_on"`
}

// Service implements the clinical entity operations.
type Service struct {
	store  *store.Store
	guard  *integrity.Guard
	logger *logging.Logger
}

// NewService creates a clinical service.
func NewService(s *store.Store, guard *integrity.Guard, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: s, guard: guard, logger: logger.WithComponent("clinical")}
}

func validDate(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if _, err := time.Parse(dateLayout, value); err != nil {
		return "", domain.Invalid(field, "date must use YYYY-MM-DD")
	}
	return value, nil
}

func (s *Service) mustExist(ctx context.Context, table store.Table, id int64) error {
	exists, err := s.store.ExistsByID(ctx, table, id)
	if err != nil {
		return err
	}
	if !exists {
		return &domain.NotFoundError{Table: string(table), ID: id}
	}
	return nil
}

// deleteGuarded is the shared delete path: existence, guard, delete.
func (s *Service) deleteGuarded(ctx context.Context, table store.Table, id int64) error {
	if err := s.mustExist(ctx, table, id); err != nil {
		return err
	}
	if err := s.guard.CanDelete(ctx, table, id); err != nil {
		return err
	}
	deleted, err := s.store.DeleteByID(ctx, table, id)
	if err != nil {
		return err
	}
	if !deleted {
		return &domain.NotFoundError{Table: string(table), ID: id}
	}
	s.logger.Info("record deleted", "table", table, "id", id)
	return nil
}

// CreateDiagnosis validates references and inserts a diagnosis.
func (s *Service) CreateDiagnosis(ctx context.Context, in Diagnosis) (*Diagnosis, error) {
	diagnosedOn, err := validDate("diagnosed_on", in.DiagnosedOn)
	if err != nil {
		return nil, err
	}
	in.DiagnosedOn = diagnosedOn
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return nil, domain.Invalid("description", "description is required")
	}
	if err := s.mustExist(ctx, store.TableDoctor, in.DoctorID); err != nil {
		return nil, err
	}
	if err := s.mustExist(ctx, store.TableAppointment, in.AppointmentID); err != nil {
		return nil, err
	}

	err = s.store.Pool().QueryRow(ctx,
		`INSERT INTO diagnosis (diagnosed_on, description, doctor_id, appointment_id)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		in.DiagnosedOn, in.Description, in.DoctorID, in.AppointmentID,
	).Scan(&in.ID)
	if err != nil {
		return nil, fmt.Errorf("clinical: insert diagnosis: %w", err)
	}

	s.logger.Info("diagnosis created", "id", in.ID, "doctor_id", in.DoctorID)
	return &in, nil
}

// ListDiagnoses returns diagnoses joined with doctor and appointment, newest
// first.
func (s *Service) ListDiagnoses(ctx context.Context) ([]DiagnosisView, error) {
	rows, err := s.store.Pool().Query(ctx,
		`SELECT d.id, d.diagnosed_on, d.description,
		        doc.first_name || ' ' || doc.last_name,
		        a.scheduled_date, a.reason
		 FROM diagnosis d
		 JOIN doctor doc ON d.doctor_id = doc.id
		 JOIN appointment a ON d.appointment_id = a.id
		 ORDER BY d.diagnosed_on DESC`)
	if err != nil {
		return nil, fmt.Errorf("clinical: list diagnoses: %w", err)
	}
	defer rows.Close()

	var views []DiagnosisView
	for rows.Next() {
		var v DiagnosisView
		if err := rows.Scan(&v.ID, &v.DiagnosedOn, &v.Description, &v.Doctor,
			&v.AppointmentDate, &v.AppointmentReason); err != nil {
			return nil, fmt.Errorf("clinical: scan diagnosis: %w", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clinical: list diagnoses: %w", err)
	}
	return views, nil
}

// DeleteDiagnosis removes a diagnosis unless treatments, record entries or
// encounters still reference it.
func (s *Service) DeleteDiagnosis(ctx context.Context, id int64) error {
	return s.deleteGuarded(ctx, store.TableDiagnosis, id)
}

// CreateTreatment validates the diagnosis reference and inserts a treatment.
func (s *Service) CreateTreatment(ctx context.Context, in Treatment) (*Treatment, error) {
	startedOn, err := validDate("started_on", in.StartedOn)
	if err != nil {
		return nil, err
	}
	in.StartedOn = startedOn
	if in.EndedOn != nil {
		endedOn, err := validDate("ended_on", *in.EndedOn)
		if err != nil {
			return nil, err
		}
		if endedOn < in.StartedOn {
			return nil, domain.Invalid("ended_on", "end date precedes start date")
		}
		in.EndedOn = &endedOn
	}
	in.Treatment = strings.TrimSpace(in.Treatment)
	if in.Treatment == "" {
		return nil, domain.Invalid("treatment", "treatment is required")
	}
	if err := s.mustExist(ctx, store.TableDiagnosis, in.DiagnosisID); err != nil {
		return nil, err
	}

	err = s.store.Pool().QueryRow(ctx,
		`INSERT INTO treatment (started_on, ended_on, treatment, diagnosis_id)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		in.StartedOn, in.EndedOn, in.Treatment, in.DiagnosisID,
	).Scan(&in.ID)
	if err != nil {
		return nil, fmt.Errorf("clinical: insert treatment: %w", err)
	}

	s.logger.Info("treatment created", "id", in.ID, "diagnosis_id", in.DiagnosisID)
	return &in, nil
}

// ListTreatments returns treatments joined with their diagnosis description,
// newest first.
func (s *Service) ListTreatments(ctx context.Context) ([]TreatmentView, error) {
	rows, err := s.store.Pool().Query(ctx,
		`SELECT t.id, t.treatment, t.started_on, t.ended_on, d.description
		 FROM treatment t
		 JOIN diagnosis d ON t.diagnosis_id = d.id
		 ORDER BY t.started_on DESC`)
	if err != nil {
		return nil, fmt.Errorf("clinical: list treatments: %w", err)
	}
	defer rows.Close()

	var views []TreatmentView
	for rows.Next() {
		var v TreatmentView
		if err := rows.Scan(&v.ID, &v.Treatment, &v.StartedOn, &v.EndedOn, &v.Diagnosis); err != nil {
			return nil, fmt.Errorf("clinical: scan treatment: %w", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clinical: list treatments: %w", err)
	}
	return views, nil
}

// DeleteTreatment removes a treatment unless record entries reference it.
func (s *Service) DeleteTreatment(ctx context.Context, id int64) error {
	return s.deleteGuarded(ctx, store.TableTreatment, id)
}

// CreateMedicalRecord validates all four references and inserts a record
// entry.
func (s *Service) CreateMedicalRecord(ctx context.Context, in MedicalRecord) (*MedicalRecord, error) {
	recordedOn, err := validDate("recorded_on", in.RecordedOn)
	if err != nil {
		return nil, err
	}
	in.RecordedOn = recordedOn
	in.Notes = strings.TrimSpace(in.Notes)
	in.Allergies = strings.TrimSpace(in.Allergies)
	in.ExamResults = strings.TrimSpace(in.ExamResults)

	for _, ref := range []struct {
		table store.Table
		id    int64
	}{
		{store.TableDiagnosis, in.DiagnosisID},
		{store.TableTreatment, in.TreatmentID},
		{store.TablePatient, in.PatientID},
		{store.TableAppointment, in.AppointmentID},
	} {
		if err := s.mustExist(ctx, ref.table, ref.id); err != nil {
			return nil, err
		}
	}

	err = s.store.Pool().QueryRow(ctx,
		`INSERT INTO medical_record (recorded_on, diagnosis_id, treatment_id, notes,
		   allergies, exam_results, patient_id, appointment_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		in.RecordedOn, in.DiagnosisID, in.TreatmentID, in.Notes,
		in.Allergies, in.ExamResults, in.PatientID, in.AppointmentID,
	).Scan(&in.ID)
	if err != nil {
		return nil, fmt.Errorf("clinical: insert medical record: %w", err)
	}

	s.logger.Info("medical record created", "id", in.ID, "patient_id", in.PatientID)
	return &in, nil
}

// ListMedicalRecords returns record entries joined with patient, diagnosis
// and treatment, newest first.
func (s *Service) ListMedicalRecords(ctx context.Context) ([]MedicalRecordView, error) {
	rows, err := s.store.Pool().Query(ctx,
		`SELECT r.id, r.recorded_on,
		        p.first_name || ' ' || p.last_name,
		        d.description, t.treatment,
		        r.notes, r.allergies, r.exam_results
		 FROM medical_record r
		 JOIN patient p ON r.patient_id = p.id
		 JOIN diagnosis d ON r.diagnosis_id = d.id
		 JOIN treatment t ON r.treatment_id = t.id
		 ORDER BY r.recorded_on DESC`)
	if err != nil {
		return nil, fmt.Errorf("clinical: list medical records: %w", err)
	}
	defer rows.Close()

	var views []MedicalRecordView
	for rows.Next() {
		var v MedicalRecordView
		if err := rows.Scan(&v.ID, &v.RecordedOn, &v.Patient, &v.Diagnosis,
			&v.Treatment, &v.Notes, &v.Allergies, &v.ExamResults); err != nil {
			return nil, fmt.Errorf("clinical: scan medical record: %w", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clinical: list medical records: %w", err)
	}
	return views, nil
}

// DeleteMedicalRecord removes a record entry unless encounters reference it.
func (s *Service) DeleteMedicalRecord(ctx context.Context, id int64) error {
	return s.deleteGuarded(ctx, store.TableMedicalRecord, id)
}

// CreateEncounter validates references and inserts an encounter.
func (s *Service) CreateEncounter(ctx context.Context, in Encounter) (*Encounter, error) {
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return nil, domain.Invalid("description", "description is required")
	}
	if err := s.mustExist(ctx, store.TableDiagnosis, in.DiagnosisID); err != nil {
		return nil, err
	}
	if err := s.mustExist(ctx, store.TableMedicalRecord, in.MedicalRecordID); err != nil {
		return nil, err
	}

	err := s.store.Pool().QueryRow(ctx,
		`INSERT INTO encounter (diagnosis_id, medical_record_id, description)
		 VALUES ($1, $2, $3) RETURNING id`,
		in.DiagnosisID, in.MedicalRecordID, in.Description,
	).Scan(&in.ID)
	if err != nil {
		return nil, fmt.Errorf("clinical: insert encounter: %w", err)
	}

	s.logger.Info("encounter created", "id", in.ID, "diagnosis_id", in.DiagnosisID)
	return &in, nil
}

// ListEncounters returns encounters joined with diagnosis and record entry,
// newest record first.
func (s *Service) ListEncounters(ctx context.Context) ([]EncounterView, error) {
	rows, err := s.store.Pool().Query(ctx,
		`SELECT e.id, e.description, d.description, r.notes, r.recorded_on
		 FROM encounter e
		 JOIN diagnosis d ON e.diagnosis_id = d.id
		 JOIN medical_record r ON e.medical_record_id = r.id
		 ORDER BY r.recorded_on DESC`)
	if err != nil {
		return nil, fmt.Errorf("clinical: list encounters: %w", err)
	}
	defer rows.Close()

	var views []EncounterView
	for rows.Next() {
		var v EncounterView
		if err := rows.Scan(&v.ID, &v.Description, &v.Diagnosis, &v.RecordNotes, &v.RecordedOn); err != nil {
			return nil, fmt.Errorf("clinical: scan encounter: %w", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clinical: list encounters: %w", err)
	}
	return views, nil
}

// DeleteEncounter removes an encounter; nothing references encounters so the
// guard check is a no-op kept for uniformity.
func (s *Service) DeleteEncounter(ctx context.Context, id int64) error {
	return s.deleteGuarded(ctx, store.TableEncounter, id)
}
