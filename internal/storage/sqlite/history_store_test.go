package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/studio/internal/querykey"
	"github.com/willibrandon/studio/internal/sqlexec"
)

func setupTestHistoryStore(t *testing.T, maxEntries int) *HistoryStore {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewHistoryStore(db, maxEntries)
}

func execution(project, sql string, at time.Time) sqlexec.Execution {
	return sqlexec.Execution{
		ProjectRef: project,
		QueryKey:   querykey.BucketsLargestSizeLimit,
		SQL:        sql,
		ExecutedAt: at,
		Duration:   25 * time.Millisecond,
		RowCount:   3,
	}
}

func TestHistoryStore_RecordAndRecent(t *testing.T) {
	store := setupTestHistoryStore(t, 10)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	require.NoError(t, store.RecordExecution(ctx, execution("abc", "select 1", base)))
	require.NoError(t, store.RecordExecution(ctx, execution("abc", "select * from storage.buckets", base.Add(time.Minute))))
	require.NoError(t, store.RecordExecution(ctx, execution("xyz", "select 1", base.Add(2*time.Minute))))

	entries, err := store.Recent(ctx, "abc", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "select * from storage.buckets", entries[0].SQL)
	assert.Equal(t, "buckets-with-largest-size-limit", entries[0].QueryKey)
	assert.Equal(t, int64(25), entries[0].DurationMs)
	assert.Equal(t, int64(3), entries[0].RowCount)
	assert.NotEmpty(t, entries[0].ID)

	all, err := store.Recent(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestHistoryStore_DeduplicatesByShape(t *testing.T) {
	store := setupTestHistoryStore(t, 10)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	require.NoError(t, store.RecordExecution(ctx, execution("abc", "select * from t where id = 1", base)))
	require.NoError(t, store.RecordExecution(ctx, execution("abc", "select 2", base.Add(time.Minute))))
	failed := execution("abc", "select * from t where id = 2", base.Add(2*time.Minute))
	failed.Error = "permission denied"
	require.NoError(t, store.RecordExecution(ctx, failed))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	entries, err := store.Recent(ctx, "abc", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "select * from t where id = 2", entries[0].SQL, "repeated shape moves to the top")
	assert.Equal(t, "permission denied", entries[0].Error)
}

func TestHistoryStore_TrimsToMaxEntries(t *testing.T) {
	store := setupTestHistoryStore(t, 3)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := range 5 {
		sql := fmt.Sprintf("select col_%d from t", i)
		require.NoError(t, store.RecordExecution(ctx, execution("abc", sql, base.Add(time.Duration(i)*time.Minute))))
	}

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	entries, err := store.Recent(ctx, "abc", 10)
	require.NoError(t, err)
	assert.Equal(t, "select col_4 from t", entries[0].SQL)
	assert.Equal(t, "select col_2 from t", entries[2].SQL)
}

func TestHistoryStore_Search(t *testing.T) {
	store := setupTestHistoryStore(t, 10)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.RecordExecution(ctx, execution("abc", "select * from storage.buckets", now)))
	require.NoError(t, store.RecordExecution(ctx, execution("abc", "select n_live_tup from pg_stat_user_tables", now)))

	entries, err := store.Search(ctx, "abc", "BUCKETS", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].SQL, "storage.buckets")
}

func TestHistoryStore_IgnoresBlankSQL(t *testing.T) {
	store := setupTestHistoryStore(t, 10)
	ctx := context.Background()

	require.NoError(t, store.RecordExecution(ctx, execution("abc", "   ", time.Now())))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOpen_InMemory(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	store := NewHistoryStore(db, 0)
	require.NoError(t, store.RecordExecution(context.Background(), execution("abc", "select 1", time.Now())))

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
