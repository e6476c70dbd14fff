package doctors

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andescare/hospital-platform/internal/compliance"
	"github.com/andescare/hospital-platform/internal/crypto"
	"github.com/andescare/hospital-platform/internal/domain"
	"github.com/andescare/hospital-platform/internal/integrity"
	"github.com/andescare/hospital-platform/internal/pii"
	"github.com/andescare/hospital-platform/internal/store"
	"github.com/andescare/hospital-platform/pkg/logging"
)

func newService(t *testing.T) (*Service, *crypto.Cipher, pgxmock.PgxPoolIface) {
	t.Helper()
	kr, err := crypto.LoadOrCreate(filepath.Join(t.TempDir(), "test.key"))
	require.NoError(t, err)
	cipher, err := crypto.NewCipher(kr)
	require.NoError(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	st := store.New(mock)
	svc := NewService(st, cipher, pii.NewResolver(st, cipher), integrity.NewGuard(st), nil, logging.Default())
	return svc, cipher, mock
}

func seal(t *testing.T, c *crypto.Cipher, plaintext string) string {
	t.Helper()
	token, err := c.Seal(plaintext)
	require.NoError(t, err)
	return token
}

func validInput() Input {
	return Input{
		NationalID:  "76543210-3",
		FirstName:   " maría josé ",
		LastName:    "soto",
		Email:       " maria.soto@hospital.cl ",
		Phone:       "+56 9 1234 5678",
		SpecialtyID: 2,
	}
}

func expectEmptyScan(mock pgxmock.PgxPoolIface, column string) {
	mock.ExpectQuery(`SELECT id, ` + column + ` FROM doctor WHERE ` + column + ` IS NOT NULL ORDER BY id`).
		WillReturnRows(pgxmock.NewRows([]string{"id", column}))
}

func TestCreateSealsAndInserts(t *testing.T) {
	s, _, mock := newService(t)

	mock.ExpectQuery(`SELECT 1 FROM specialty WHERE id = \$1`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"1"}).AddRow(1))
	expectEmptyScan(mock, "national_id")
	expectEmptyScan(mock, "email")
	expectEmptyScan(mock, "phone")
	mock.ExpectQuery(`INSERT INTO doctor`).
		WithArgs(pgxmock.AnyArg(), "María José", "Soto", pgxmock.AnyArg(), pgxmock.AnyArg(), int64(2), (*string)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))

	doc, err := s.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, int64(11), doc.ID)
	assert.Equal(t, "76.543.210-3", doc.NationalID)
	assert.Equal(t, "María José", doc.FirstName)
	assert.Equal(t, "maria.soto@hospital.cl", doc.Email)
	assert.Equal(t, "+56 9 1234 5678", doc.Phone)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSucceedsWhenAuditWriteFails(t *testing.T) {
	kr, err := crypto.LoadOrCreate(filepath.Join(t.TempDir(), "test.key"))
	require.NoError(t, err)
	cipher, err := crypto.NewCipher(kr)
	require.NoError(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	auditDB, auditMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = auditDB.Close() })
	auditMock.ExpectExec("INSERT INTO audit_events").
		WillReturnError(errors.New("relation audit_events does not exist"))

	st := store.New(mock)
	s := NewService(st, cipher, pii.NewResolver(st, cipher), integrity.NewGuard(st),
		compliance.NewAuditService(auditDB), logging.Default())

	mock.ExpectQuery(`SELECT 1 FROM specialty WHERE id = \$1`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"1"}).AddRow(1))
	expectEmptyScan(mock, "national_id")
	expectEmptyScan(mock, "email")
	expectEmptyScan(mock, "phone")
	mock.ExpectQuery(`INSERT INTO doctor`).
		WithArgs(pgxmock.AnyArg(), "María José", "Soto", pgxmock.AnyArg(), pgxmock.AnyArg(), int64(2), (*string)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))

	// The dead audit table is logged, not surfaced to the caller.
	doc, err := s.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, int64(11), doc.ID)

	require.NoError(t, mock.ExpectationsWereMet())
	require.NoError(t, auditMock.ExpectationsWereMet())
}

func TestCreateRejectsDuplicateEmailAcrossCiphertexts(t *testing.T) {
	s, cipher, mock := newService(t)

	mock.ExpectQuery(`SELECT 1 FROM specialty WHERE id = \$1`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"1"}).AddRow(1))
	// Another doctor holds a different national id but the same email,
	// under a ciphertext that differs from any fresh sealing of it.
	mock.ExpectQuery(`SELECT id, national_id FROM doctor`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "national_id"}).
			AddRow(int64(4), seal(t, cipher, "12.345.678-5")))
	mock.ExpectQuery(`SELECT id, email FROM doctor`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "email"}).
			AddRow(int64(4), seal(t, cipher, "maria.soto@hospital.cl")))

	_, err := s.Create(context.Background(), validInput())
	var dupErr *domain.DuplicateError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "email", dupErr.Field)
	assert.Equal(t, int64(4), dupErr.ConflictID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDetectsLegacyPlaintextConflict(t *testing.T) {
	s, _, mock := newService(t)

	mock.ExpectQuery(`SELECT 1 FROM specialty WHERE id = \$1`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"1"}).AddRow(1))
	// Row written before encryption was introduced stores the id in clear.
	mock.ExpectQuery(`SELECT id, national_id FROM doctor`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "national_id"}).
			AddRow(int64(9), "76.543.210-3"))

	_, err := s.Create(context.Background(), validInput())
	var dupErr *domain.DuplicateError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "national_id", dupErr.Field)
	assert.Equal(t, int64(9), dupErr.ConflictID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateValidationFailuresBeforeAnyIO(t *testing.T) {
	s, _, mock := newService(t)

	tests := []struct {
		name   string
		mutate func(*Input)
		field  string
	}{
		{"bad check digit", func(in *Input) { in.NationalID = "76.543.210-0" }, "national_id"},
		{"missing first name", func(in *Input) { in.FirstName = "  " }, "first_name"},
		{"bad email", func(in *Input) { in.Email = "not-an-email" }, "email"},
		{"bad phone", func(in *Input) { in.Phone = "abc" }, "phone"},
		{"blank schedule note", func(in *Input) { note := "  "; in.ScheduleNote = &note }, "schedule_note"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			_, err := s.Create(context.Background(), in)
			var valErr *domain.ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, tt.field, valErr.Field)
		})
	}

	// No queries were ever issued.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUnknownSpecialty(t *testing.T) {
	s, _, mock := newService(t)

	mock.ExpectQuery(`SELECT 1 FROM specialty WHERE id = \$1`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"1"}))

	_, err := s.Create(context.Background(), validInput())
	var nfErr *domain.NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "specialty", nfErr.Table)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSkipsOwnRowInConflictScan(t *testing.T) {
	s, cipher, mock := newService(t)

	mock.ExpectQuery(`SELECT 1 FROM doctor WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(`SELECT 1 FROM specialty WHERE id = \$1`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"1"}).AddRow(1))
	// The only matching rows belong to the doctor being updated.
	mock.ExpectQuery(`SELECT id, national_id FROM doctor`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "national_id"}).
			AddRow(int64(5), seal(t, cipher, "76.543.210-3")))
	mock.ExpectQuery(`SELECT id, email FROM doctor`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "email"}).
			AddRow(int64(5), seal(t, cipher, "maria.soto@hospital.cl")))
	mock.ExpectQuery(`SELECT id, phone FROM doctor`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "phone"}).
			AddRow(int64(5), seal(t, cipher, "+56 9 1234 5678")))
	mock.ExpectExec(`UPDATE doctor`).
		WithArgs(pgxmock.AnyArg(), "María José", "Soto", pgxmock.AnyArg(), pgxmock.AnyArg(), int64(2), (*string)(nil), int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.Update(context.Background(), 5, validInput())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListDecodesSealedFields(t *testing.T) {
	s, cipher, mock := newService(t)

	mock.ExpectQuery(`SELECT d.id, d.national_id`).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "national_id", "first_name", "last_name", "email",
			"phone", "specialty_id", "schedule_note", "name",
		}).
			AddRow(int64(1), seal(t, cipher, "76.543.210-3"), "María José", "Soto",
				seal(t, cipher, "maria.soto@hospital.cl"), seal(t, cipher, "+56912345678"),
				int64(2), nil, "Cardiología").
			AddRow(int64(2), "7.654.321-6", "Pedro", "Rojas",
				"pedro@hospital.cl", "+56987654321",
				int64(3), nil, "Neurología"))

	docs, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "76.543.210-3", docs[0].NationalID)
	assert.Equal(t, "Cardiología", docs[0].Specialty)
	// Legacy row passes through as stored.
	assert.Equal(t, "7.654.321-6", docs[1].NationalID)
	assert.Equal(t, "pedro@hospital.cl", docs[1].Email)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchByNationalIDMatchesAfterDecode(t *testing.T) {
	s, cipher, mock := newService(t)

	mock.ExpectQuery(`SELECT \* FROM doctor WHERE specialty_id = \$1 ORDER BY id`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "national_id", "first_name", "email", "phone"}).
			AddRow(int64(1), seal(t, cipher, "76.543.210-3"), "María José",
				seal(t, cipher, "maria.soto@hospital.cl"), seal(t, cipher, "+56912345678")).
			AddRow(int64(2), seal(t, cipher, "12.345.678-5"), "Pedro",
				seal(t, cipher, "pedro@hospital.cl"), seal(t, cipher, "+56987654321")))

	records, err := s.Search(context.Background(), Filter{SpecialtyID: 2, NationalID: "76543210-3"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0]["id"])
	assert.Equal(t, "76.543.210-3", records[0]["national_id"])
	assert.Equal(t, "maria.soto@hospital.cl", records[0]["email"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchRejectsMalformedNationalID(t *testing.T) {
	s, _, mock := newService(t)

	_, err := s.Search(context.Background(), Filter{NationalID: "76.543.210-0"})
	var valErr *domain.ValidationError
	require.ErrorAs(t, err, &valErr)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBlockedByAppointments(t *testing.T) {
	s, _, mock := newService(t)

	mock.ExpectQuery(`SELECT 1 FROM doctor WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM appointment WHERE doctor_id = \$1`).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))

	err := s.Delete(context.Background(), 5)
	var refErr *domain.ReferentialIntegrityError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "appointment", refErr.BlockingTable)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSucceedsWithoutDependents(t *testing.T) {
	s, _, mock := newService(t)

	mock.ExpectQuery(`SELECT 1 FROM doctor WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"1"}).AddRow(1))
	for _, dep := range []string{"appointment", "diagnosis", "schedule_block"} {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ` + dep + ` WHERE doctor_id = \$1`).
			WithArgs(int64(5)).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	}
	mock.ExpectExec(`DELETE FROM doctor WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := s.Delete(context.Background(), 5)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
