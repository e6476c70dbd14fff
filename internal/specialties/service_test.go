package specialties

import (
	"context"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andescare/hospital-platform/internal/domain"
	"github.com/andescare/hospital-platform/internal/integrity"
	"github.com/andescare/hospital-platform/internal/store"
	"github.com/andescare/hospital-platform/pkg/logging"
)

func newService(t *testing.T) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	st := store.New(mock)
	return NewService(st, integrity.NewGuard(st), logging.Default()), mock
}

func TestCreateNormalizesAndInserts(t *testing.T) {
	s, mock := newService(t)

	mock.ExpectQuery(`SELECT id FROM specialty WHERE lower\(name\) = lower\(\$1\)`).
		WithArgs("Cardiología").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`INSERT INTO specialty \(name, description\) VALUES \(\$1, \$2\) RETURNING id`).
		WithArgs("Cardiología", "(no description)").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	sp, err := s.Create(context.Background(), "  cardiología ", "")
	require.NoError(t, err)
	assert.Equal(t, int64(7), sp.ID)
	assert.Equal(t, "Cardiología", sp.Name)
	assert.Equal(t, "(no description)", sp.Description)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	s, mock := newService(t)

	mock.ExpectQuery(`SELECT id FROM specialty WHERE lower\(name\) = lower\(\$1\)`).
		WithArgs("Cardiología").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))

	_, err := s.Create(context.Background(), "CARDIOLOGÍA", "dup")
	var dupErr *domain.DuplicateError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, int64(3), dupErr.ConflictID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRejectsEmptyName(t *testing.T) {
	s, mock := newService(t)

	_, err := s.Create(context.Background(), "   ", "x")
	var valErr *domain.ValidationError
	require.ErrorAs(t, err, &valErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBlockedByDoctors(t *testing.T) {
	s, mock := newService(t)

	mock.ExpectQuery(`SELECT 1 FROM specialty WHERE id = \$1`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM doctor WHERE specialty_id = \$1`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(4)))

	err := s.Delete(context.Background(), 2)
	var refErr *domain.ReferentialIntegrityError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "doctor", refErr.BlockingTable)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSucceedsWithNoDependents(t *testing.T) {
	s, mock := newService(t)

	mock.ExpectQuery(`SELECT 1 FROM specialty WHERE id = \$1`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM doctor WHERE specialty_id = \$1`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectExec(`DELETE FROM specialty WHERE id = \$1`).
		WithArgs(int64(2)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.Delete(context.Background(), 2))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchMatchesNameIgnoringAccents(t *testing.T) {
	s, mock := newService(t)

	mock.ExpectQuery(`SELECT \* FROM specialty ORDER BY id`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "description"}).
			AddRow(int64(1), "Cardiología", "Heart care").
			AddRow(int64(2), "Pediatría", "(no description)"))

	out, err := s.Search(context.Background(), "pediatria", 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(2), out[0]["id"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	s, mock := newService(t)

	mock.ExpectQuery(`SELECT id, name, description FROM specialty ORDER BY id`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "description"}).
			AddRow(int64(1), "Cardiología", "Heart care").
			AddRow(int64(2), "Pediatría", "(no description)"))

	out, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Pediatría", out[1].Name)

	require.NoError(t, mock.ExpectationsWereMet())
}
