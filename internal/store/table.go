package store

import "fmt"

// Table identifies one of the persisted entity tables. Table names are
// interpolated into query text (identifiers cannot be parameterized), so
// every value is checked against the closed catalog below first.
type Table string

const (
	TableSpecialty     Table = "specialty"
	TableDoctor        Table = "doctor"
	TablePatient       Table = "patient"
	TableAppointment   Table = "appointment"
	TableDiagnosis     Table = "diagnosis"
	TableTreatment     Table = "treatment"
	TableMedicalRecord Table = "medical_record"
	TableEncounter     Table = "encounter"
	TableScheduleBlock Table = "schedule_block"
)

// InvalidTableError reports a table outside the catalog. It is a programming
// error, never the result of user input reaching the store.
type InvalidTableError struct {
	Table Table
}

func (e *InvalidTableError) Error() string {
	return fmt.Sprintf("table %q is not in the entity table catalog", string(e.Table))
}

// catalog maps each permitted table to its filterable columns. Filter column
// names are interpolated too, so they go through the same whitelist.
var catalog = map[Table]map[string]bool{
	TableSpecialty: cols("id", "name", "description"),
	TableDoctor: cols("id", "national_id", "first_name", "last_name", "email",
		"phone", "specialty_id", "schedule_note"),
	TablePatient: cols("id", "national_id", "first_name", "last_name",
		"birth_date", "email", "phone", "gender", "address", "health_system",
		"nationality", "emergency_first_name", "emergency_last_name",
		"emergency_phone"),
	TableAppointment: cols("id", "scheduled_date", "scheduled_time", "status",
		"reason", "patient_id", "doctor_id"),
	TableDiagnosis: cols("id", "diagnosed_on", "description", "doctor_id",
		"appointment_id"),
	TableTreatment: cols("id", "started_on", "ended_on", "treatment",
		"diagnosis_id"),
	TableMedicalRecord: cols("id", "recorded_on", "diagnosis_id",
		"treatment_id", "notes", "allergies", "exam_results", "patient_id",
		"appointment_id"),
	TableEncounter: cols("id", "diagnosis_id", "medical_record_id",
		"description"),
	TableScheduleBlock: cols("id", "doctor_id", "weekday", "start_time",
		"end_time", "category"),
}

func cols(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// Valid reports whether t is in the catalog.
func (t Table) Valid() bool {
	_, ok := catalog[t]
	return ok
}

// HasColumn reports whether column is filterable on t.
func (t Table) HasColumn(column string) bool {
	return catalog[t][column]
}

func checkTable(t Table) error {
	if !t.Valid() {
		return &InvalidTableError{Table: t}
	}
	return nil
}
