// Package integrity blocks deletion of rows that other tables still
// reference.
package integrity

import (
	"context"

	"github.com/andescare/hospital-platform/internal/domain"
	"github.com/andescare/hospital-platform/internal/store"
)

// dependent names one foreign-key edge pointing at a parent table.
type dependent struct {
	table  store.Table
	column string
}

// dependents lists, per parent table, the tables holding foreign keys to it.
// The order is fixed so the blocking table named in an error is reproducible
// across identical states.
var dependents = map[store.Table][]dependent{
	store.TableSpecialty: {
		{store.TableDoctor, "specialty_id"},
	},
	store.TableDoctor: {
		{store.TableAppointment, "doctor_id"},
		{store.TableDiagnosis, "doctor_id"},
		{store.TableScheduleBlock, "doctor_id"},
	},
	store.TablePatient: {
		{store.TableAppointment, "patient_id"},
		{store.TableMedicalRecord, "patient_id"},
	},
	store.TableAppointment: {
		{store.TableDiagnosis, "appointment_id"},
		{store.TableMedicalRecord, "appointment_id"},
	},
	store.TableDiagnosis: {
		{store.TableTreatment, "diagnosis_id"},
		{store.TableMedicalRecord, "diagnosis_id"},
		{store.TableEncounter, "diagnosis_id"},
	},
	store.TableTreatment: {
		{store.TableMedicalRecord, "treatment_id"},
	},
	store.TableMedicalRecord: {
		{store.TableEncounter, "medical_record_id"},
	},
	store.TableEncounter:     {},
	store.TableScheduleBlock: {},
}

// Guard runs pre-delete dependency checks against the store.
type Guard struct {
	store *store.Store
}

// NewGuard creates a guard over the given store.
func NewGuard(s *store.Store) *Guard {
	return &Guard{store: s}
}

// CanDelete returns nil when no dependents reference the row, or a
// ReferentialIntegrityError naming the first dependent table found.
func (g *Guard) CanDelete(ctx context.Context, table store.Table, id int64) error {
	if !table.Valid() {
		return &store.InvalidTableError{Table: table}
	}
	for _, dep := range dependents[table] {
		count, err := g.store.CountWhere(ctx, dep.table, dep.column, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return &domain.ReferentialIntegrityError{
				Table:         string(table),
				ID:            id,
				BlockingTable: string(dep.table),
			}
		}
	}
	return nil
}
