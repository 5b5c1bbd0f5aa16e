package store

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresLoadDecodesRowsInOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT data").
		WithArgs("doctors").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).
			AddRow([]byte(`{"id":"1","full_name":"Dr. John Smith"}`)).
			AddRow([]byte(`{"id":"2","full_name":"Dr. Sarah Johnson"}`)))

	backend := NewPostgresBackend(mock)
	records, err := backend.Load(context.Background(), Doctors)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Dr. John Smith", records[0]["full_name"])
	assert.Equal(t, "2", records[1]["id"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveReplacesEntitiesInOneTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM entity_rows").WithArgs("appointments").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("INSERT INTO entity_rows").WithArgs("appointments", 0, pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM entity_rows").WithArgs("slots").WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("INSERT INTO entity_rows").WithArgs("slots", 0, pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO entity_rows").WithArgs("slots", 1, pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	backend := NewPostgresBackend(mock)
	err = backend.Save(context.Background(),
		Snapshot{Entity: Appointments, Fields: []string{"id", "status"}, Records: []Record{{"id": "1", "status": "confirmed"}}},
		Snapshot{Entity: Slots, Fields: []string{"id", "status"}, Records: []Record{{"id": "1", "status": "booked"}, {"id": "2", "status": "available"}}},
	)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveRollsBackOnFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM entity_rows").WithArgs("slots").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	backend := NewPostgresBackend(mock)
	err = backend.Save(context.Background(), Snapshot{Entity: Slots, Fields: []string{"id"}, Records: []Record{{"id": "1"}}})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnsureSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS entity_rows").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCommit()

	require.NoError(t, NewPostgresBackend(mock).EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectFillsMissingFields(t *testing.T) {
	out := project(Record{"id": "3", "stray": "x"}, []string{"id", "status"})
	assert.Equal(t, Record{"id": "3", "status": ""}, out)
}
