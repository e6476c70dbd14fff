package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return New(mock), mock
}

func TestExistsByID(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT 1 FROM patient WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	ok, err := s.ExistsByID(context.Background(), TablePatient, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectQuery(`SELECT 1 FROM patient WHERE id = \$1`).
		WithArgs(int64(8)).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}))
	ok, err = s.ExistsByID(context.Background(), TablePatient, 8)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExistsByIDRejectsUnknownTable(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.ExistsByID(context.Background(), Table("users; --"), 1)
	var tableErr *InvalidTableError
	require.ErrorAs(t, err, &tableErr)
	assert.Equal(t, Table("users; --"), tableErr.Table)

	// No query may reach the pool.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchExactRejectsUnknownTable(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.SearchExact(context.Background(), Table("drop_table_students"), nil)
	var tableErr *InvalidTableError
	require.ErrorAs(t, err, &tableErr)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchExactRejectsUnknownColumn(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.SearchExact(context.Background(), TablePatient, map[string]any{
		"password": "x",
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchExactRejectsUnknownColumnWithBlankValue(t *testing.T) {
	s, mock := newMockStore(t)

	// A bogus column must error even when its value would otherwise be
	// skipped as nil or blank.
	for _, val := range []any{nil, "   "} {
		_, err := s.SearchExact(context.Background(), TablePatient, map[string]any{
			"password": val,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `no column "password"`)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchExactNoFilters(t *testing.T) {
	s, mock := newMockStore(t)

	rows := pgxmock.NewRows([]string{"id", "name", "description"}).
		AddRow(int64(1), "Cardiology", "Heart care").
		AddRow(int64(2), "Pediatrics", "Child care")
	mock.ExpectQuery(`SELECT \* FROM specialty ORDER BY id`).WillReturnRows(rows)

	records, err := s.SearchExact(context.Background(), TableSpecialty, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0]["id"])
	assert.Equal(t, "Cardiology", records[0]["name"])
	assert.Equal(t, "Pediatrics", records[1]["name"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchExactSkipsEmptyFilters(t *testing.T) {
	s, mock := newMockStore(t)

	// Blank and nil filters drop out; remaining columns are AND-conjoined in
	// sorted order.
	rows := pgxmock.NewRows([]string{"id", "first_name", "last_name", "specialty_id"}).
		AddRow(int64(3), "Ana", "Rojas", int64(2))
	mock.ExpectQuery(`SELECT \* FROM doctor WHERE first_name = \$1 AND specialty_id = \$2 ORDER BY id`).
		WithArgs("Ana", int64(2)).
		WillReturnRows(rows)

	records, err := s.SearchExact(context.Background(), TableDoctor, map[string]any{
		"first_name":    "Ana",
		"last_name":     "   ",
		"schedule_note": nil,
		"specialty_id":  int64(2),
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Rojas", records[0]["last_name"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountWhere(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM treatment WHERE diagnosis_id = \$1`).
		WithArgs(int64(4)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))

	count, err := s.CountWhere(context.Background(), TableTreatment, "diagnosis_id", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountWhereRejectsUnknownColumn(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.CountWhere(context.Background(), TableTreatment, "1=1; DROP TABLE", 4)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteByID(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM encounter WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	deleted, err := s.DeleteByID(context.Background(), TableEncounter, 9)
	require.NoError(t, err)
	assert.True(t, deleted)

	mock.ExpectExec(`DELETE FROM encounter WHERE id = \$1`).
		WithArgs(int64(10)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	deleted, err = s.DeleteByID(context.Background(), TableEncounter, 10)
	require.NoError(t, err)
	assert.False(t, deleted)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxCommits(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM schedule_block`).
		WithArgs(int64(1), int16(2)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback() // deferred rollback after commit is a no-op

	err := s.WithTx(context.Background(), func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(),
			"DELETE FROM schedule_block WHERE doctor_id = $1 AND weekday = $2",
			int64(1), int16(2))
		return err
	})
	require.NoError(t, err)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	sentinel := assert.AnError
	err := s.WithTx(context.Background(), func(tx pgx.Tx) error {
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTableCatalog(t *testing.T) {
	valid := []Table{
		TableSpecialty, TableDoctor, TablePatient, TableAppointment,
		TableDiagnosis, TableTreatment, TableMedicalRecord, TableEncounter,
		TableScheduleBlock,
	}
	for _, table := range valid {
		assert.True(t, table.Valid(), "table %s", table)
	}
	assert.False(t, Table("drop_table_students").Valid())
	assert.False(t, Table("").Valid())

	assert.True(t, TablePatient.HasColumn("national_id"))
	assert.False(t, TablePatient.HasColumn("national_id; --"))
	assert.False(t, Table("nope").HasColumn("id"))
}
