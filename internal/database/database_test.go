package database

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"farmrent/internal/domain"
	"farmrent/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "farmrent.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	assert.NoError(t, db.PingContext(context.Background()))
}

func TestNewDB_SharedFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "farmrent.db")
	logger := zerolog.Nop()
	ctx := context.Background()

	first, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer first.Close()
	second, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, first.UpsertUser(ctx, &models.User{Email: "ravi@example.com", Name: "Ravi", Role: models.RoleFarmer}))

	got, err := second.GetUser(ctx, "ravi@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ravi", got.Name)
}

func TestUsers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := &models.User{Email: "suresh@example.com", Name: "Suresh", Phone: "98450", Role: models.RoleProvider, District: "Mandya", State: "Karnataka"}
	require.NoError(t, db.UpsertUser(ctx, user))
	created := user.CreatedAt

	user.Phone = "99000"
	require.NoError(t, db.UpsertUser(ctx, user))

	got, err := db.GetUser(ctx, "suresh@example.com")
	require.NoError(t, err)
	assert.Equal(t, "99000", got.Phone)
	assert.Equal(t, models.RoleProvider, got.Role)
	assert.True(t, created.Equal(got.CreatedAt))

	_, err = db.GetUser(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	all, err := db.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUsers_RoleConstraint(t *testing.T) {
	db := setupTestDB(t)
	err := db.UpsertUser(context.Background(), &models.User{Email: "x@example.com", Name: "X", Role: "admin"})
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestMachinery(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	m := &models.Machinery{
		ID:             "tractor-1",
		Name:           "Mahindra 575 DI",
		Category:       "tractor",
		OwnerEmail:     "suresh@example.com",
		OwnerName:      "Suresh",
		DailyRate:      2500,
		Specifications: map[string]string{models.SpecFuelConsumption: "8 L/day", "hp": "45"},
	}
	require.NoError(t, db.SaveMachinery(ctx, m))

	got, err := db.GetMachinery(ctx, "tractor-1")
	require.NoError(t, err)
	assert.Equal(t, models.MachineryAvailable, got.Status)
	assert.Equal(t, "8 L/day", got.Specifications[models.SpecFuelConsumption])
	assert.Empty(t, got.Reviews)

	got.Reviews = append(got.Reviews, models.Review{RaterEmail: "ravi@example.com", Rating: 4, Date: time.Now().UTC()})
	require.NoError(t, db.SaveMachinery(ctx, got))

	again, err := db.GetMachinery(ctx, "tractor-1")
	require.NoError(t, err)
	require.Len(t, again.Reviews, 1)
	assert.Equal(t, 4, again.Reviews[0].Rating)

	_, err = db.GetMachinery(ctx, "missing")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "machinery", nf.Kind)

	list, err := db.ListMachinery(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
