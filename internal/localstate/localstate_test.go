package localstate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintline/internal/localstate"
)

func openTestDB(t *testing.T) *localstate.DB {
	t.Helper()
	db, err := localstate.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSelectedProjectRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	got, err := db.SelectedProject(ctx)
	require.NoError(t, err)
	assert.Empty(t, got, "fresh workspace has no selection")

	require.NoError(t, db.SetSelectedProject(ctx, "p1"))
	got, err = db.SelectedProject(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p1", got)

	// Switching overwrites rather than accumulating.
	require.NoError(t, db.SetSelectedProject(ctx, "p2"))
	got, err = db.SelectedProject(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p2", got)

	require.NoError(t, db.SetSelectedProject(ctx, ""))
	got, err = db.SelectedProject(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	db, err := localstate.Open(dir)
	require.NoError(t, err)
	require.NoError(t, db.SetSelectedProject(context.Background(), "p1"))
	require.NoError(t, db.Close())

	// Re-opening migrates nothing and keeps the data.
	db2, err := localstate.Open(dir)
	require.NoError(t, err)
	defer db2.Close()
	got, err := db2.SelectedProject(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "p1", got)
}

func TestJournalRecordAndRecent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	j := localstate.Journal{DB: db, Now: func() time.Time { return now }}

	require.NoError(t, j.Record(ctx, "p1", "task.create", "task", "t1", "ok", map[string]any{"name": "a"}))
	require.NoError(t, j.Record(ctx, "p1", "task.update", "task", "t1", "validation: nope", nil))
	require.NoError(t, j.Record(ctx, "p2", "sprint.complete", "sprint", "s1", "ok", nil))

	entries, err := j.Recent(ctx, "p1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "task.update", entries[0].Op, "newest first")
	assert.Equal(t, "task.create", entries[1].Op)
	assert.Equal(t, now.Format(time.RFC3339), entries[0].TS)
	assert.Equal(t, "a", entries[1].Detail["name"])
	assert.Nil(t, entries[0].Detail)

	all, err := j.Recent(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := j.Recent(ctx, "p1", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "task.update", limited[0].Op)
}
