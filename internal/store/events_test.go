package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxEventID(t *testing.T) {
	s, mock := mockedStore(t)

	// The head query spans all events, acknowledged or not.
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(id\), 0\) FROM signal_events`).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(42)))

	id, err := s.MaxEventID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaxEventIDEmptyTable(t *testing.T) {
	s, mock := mockedStore(t)

	mock.ExpectQuery(`SELECT COALESCE\(MAX\(id\), 0\) FROM signal_events`).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(0)))

	id, err := s.MaxEventID(context.Background())
	require.NoError(t, err)
	assert.Zero(t, id)
}
