package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sheetsync/internal/triggers"
)

// NewTestDB creates a new in-memory SQLite database for testing
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err, "failed to create test database")

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestMigrations(t *testing.T) {
	db := NewTestDB(t)

	for _, table := range []string{"properties", "triggers"} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err, "failed to query table %s", table)
		require.Equal(t, 1, count, "table %s not found", table)
	}

	// Running the schema again must be harmless.
	require.NoError(t, db.Migrate())
}

func TestPropertyStore(t *testing.T) {
	ctx := context.Background()
	props := NewPropertyStore(NewTestDB(t))

	_, err := props.Get(ctx, "SUPABASE_API_KEY")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, props.Set(ctx, "SUPABASE_API_KEY", "eyJfirst"))
	require.NoError(t, props.Set(ctx, "SUPABASE_API_KEY", "eyJsecond"))

	value, err := props.Get(ctx, "SUPABASE_API_KEY")
	require.NoError(t, err)
	require.Equal(t, "eyJsecond", value)
}

func TestPropertyStorePersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sheetsync.db")

	db, err := New(path)
	require.NoError(t, err)
	require.NoError(t, NewPropertyStore(db).Set(ctx, "k", "v"))
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)
	defer db.Close()

	value, err := NewPropertyStore(db).Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", value)
}

func TestTriggerRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewTriggerRepository(NewTestDB(t))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list)

	created := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	edit := &triggers.Trigger{ID: "t1", Handler: triggers.HandlerEdit, Kind: triggers.KindEdit, Source: "sheet-id", CreatedAt: created}
	timer := &triggers.Trigger{ID: "t2", Handler: triggers.HandlerScheduled, Kind: triggers.KindTime, Interval: time.Hour, CreatedAt: created.Add(time.Second)}
	require.NoError(t, repo.Create(ctx, edit))
	require.NoError(t, repo.Create(ctx, timer))

	list, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "t1", list[0].ID)
	require.Equal(t, triggers.KindEdit, list[0].Kind)
	require.Equal(t, "sheet-id", list[0].Source)
	require.True(t, created.Equal(list[0].CreatedAt))
	require.Equal(t, time.Hour, list[1].Interval)

	require.NoError(t, repo.Delete(ctx, "t1"))
	require.ErrorIs(t, repo.Delete(ctx, "t1"), ErrNotFound)

	list, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, triggers.HandlerScheduled, list[0].Handler)
}

func TestTriggerRepositoryOrdersByCreationTime(t *testing.T) {
	ctx := context.Background()
	repo := NewTriggerRepository(NewTestDB(t))

	base := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	late := &triggers.Trigger{ID: "t-late", Handler: triggers.HandlerEdit, Kind: triggers.KindEdit, CreatedAt: base.Add(120 * time.Millisecond)}
	early := &triggers.Trigger{ID: "t-early", Handler: triggers.HandlerEdit, Kind: triggers.KindEdit, CreatedAt: base.Add(100 * time.Millisecond)}
	require.NoError(t, repo.Create(ctx, late))
	require.NoError(t, repo.Create(ctx, early))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "t-early", list[0].ID)
	require.Equal(t, "t-late", list[1].ID)
	require.True(t, early.CreatedAt.Equal(list[0].CreatedAt))
	require.Equal(t, time.UTC, list[0].CreatedAt.Location())
}

func TestTriggerRepositoryRejectsUnknownKind(t *testing.T) {
	repo := NewTriggerRepository(NewTestDB(t))
	err := repo.Create(context.Background(), &triggers.Trigger{ID: "x", Handler: "h", Kind: "weekly"})
	require.Error(t, err)
}
