package progress

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/dmv-prep/backend/internal/database"
	"github.com/dmv-prep/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestPostgres connects to the database named by POSTGRES_TEST_DSN and
// applies the migrations. Tests are skipped when it is not set.
func newTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	db, err := database.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))
	return NewPostgresStore(db)
}

func TestPostgresStore_SaveAndLoad(t *testing.T) {
	store := newTestPostgres(t)
	ctx := context.Background()
	userID := uuid.NewString()
	t.Cleanup(func() { store.db.Exec(`DELETE FROM user_progress WHERE user_id = $1`, userID) })

	_, err := store.Load(ctx, userID)
	assert.True(t, errors.Is(err, ErrNotFound))

	tx := "TX"
	require.NoError(t, store.Save(ctx, userID, models.ProgressUpdate{
		SelectedState: &tx,
		ActiveDates:   []string{"2026-03-04"},
	}))

	doc, err := store.Load(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "TX", doc.SelectedState)
	assert.Equal(t, []string{"2026-03-04"}, doc.ActiveDates)
}

func TestPostgresStore_ConcurrentFirstSavesKeepBothFields(t *testing.T) {
	store := newTestPostgres(t)

	for i := 0; i < 5; i++ {
		userID := uuid.NewString()
		t.Cleanup(func() { store.db.Exec(`DELETE FROM user_progress WHERE user_id = $1`, userID) })
		concurrentFirstSaves(t, store, userID)
	}
}
