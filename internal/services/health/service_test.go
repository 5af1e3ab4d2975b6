package health

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestStatusWithoutDatabase(t *testing.T) {
	status, ok := NewService(nil).Status(context.Background())
	require.True(t, ok)
	require.Equal(t, "memory", status["database"])
}

func TestStatusPingsDatabase(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectPing()
	status, ok := NewService(sqlDB).Status(context.Background())
	require.True(t, ok)
	require.Equal(t, "ok", status["database"])

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	status, ok = NewService(sqlDB).Status(context.Background())
	require.False(t, ok)
	require.Equal(t, false, status["ok"])
	require.Equal(t, "unreachable", status["database"])
	require.NoError(t, mock.ExpectationsWereMet())
}
