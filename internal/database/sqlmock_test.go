package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"farmrent/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	logger := zerolog.Nop()
	return NewFromSQL(sqlDB, &logger), mock
}

func TestStoreErrors_Persistence(t *testing.T) {
	db, mock := setupMockDB(t)
	ctx := context.Background()
	diskFull := errors.New("disk I/O error")

	mock.ExpectExec("INSERT INTO rental_requests").WillReturnError(diskFull)
	err := db.CreateRequest(ctx, newTestRequest("req-1", time.Now().UTC()))
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, diskFull)

	mock.ExpectQuery("(?s)SELECT (.+) FROM rental_requests WHERE farmer_email").WillReturnError(diskFull)
	_, err = db.ListRequestsByFarmer(ctx, "ravi@example.com")
	assert.ErrorIs(t, err, domain.ErrPersistence)

	mock.ExpectExec("UPDATE rental_requests").WillReturnError(diskFull)
	err = db.UpdateRequestWithVersion(ctx, newTestRequest("req-1", time.Now().UTC()), 1)
	assert.ErrorIs(t, err, domain.ErrPersistence)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreErrors_VersionMismatch(t *testing.T) {
	db, mock := setupMockDB(t)
	ctx := context.Background()

	mock.ExpectExec("UPDATE rental_requests").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM rental_requests").
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	req := newTestRequest("req-1", time.Now().UTC())
	err := db.UpdateRequestWithVersion(ctx, req, 3)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	assert.Equal(t, int64(0), req.Version)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreErrors_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email").WillReturnError(sql.ErrNoRows)
	_, err := db.GetUser(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
