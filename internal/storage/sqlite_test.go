package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/praxical/rulesync/internal/common"
	"github.com/praxical/rulesync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "rulesync-store-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := NewSQLiteStore(filepath.Join(tmpDir, "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func testSnapshot(version int64) model.Snapshot {
	return model.Snapshot{
		SavedAt:     time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		BaseVersion: &version,
		Rules: []model.Rule{
			{RuleID: "G1.A.1", Title: "No bare excepts", Severity: model.SeverityWarning, IsActive: true},
		},
		Tags: model.EmptyTagData(),
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	snap := testSnapshot(1000)
	require.NoError(t, store.PutSnapshot(ctx, model.SlotCurrent, snap))

	got, err := store.GetSnapshot(ctx, model.SlotCurrent)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, snap, *got)
}

func TestGetSnapshotAbsent(t *testing.T) {
	store := setupTestStore(t)

	got, err := store.GetSnapshot(context.Background(), model.SlotOrigin)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPutSnapshotOverwrites(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutSnapshot(ctx, model.SlotCurrent, testSnapshot(1000)))

	updated := testSnapshot(1005)
	updated.Rules = append(updated.Rules, model.Rule{RuleID: "G1.B.2", Title: "Close your files"})
	require.NoError(t, store.PutSnapshot(ctx, model.SlotCurrent, updated))

	got, err := store.GetSnapshot(ctx, model.SlotCurrent)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1005), *got.BaseVersion)
	assert.Len(t, got.Rules, 2)
}

func TestMetadataRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// All absent initially
	pullAt, err := store.GetLastPullAt(ctx)
	require.NoError(t, err)
	assert.Nil(t, pullAt)

	pushAt, err := store.GetLastPushAt(ctx)
	require.NoError(t, err)
	assert.Nil(t, pushAt)

	version, err := store.GetBaseVersion(ctx)
	require.NoError(t, err)
	assert.Nil(t, version)

	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	require.NoError(t, store.PutLastPullAt(ctx, at))
	require.NoError(t, store.PutLastPushAt(ctx, at.Add(time.Minute)))
	require.NoError(t, store.PutBaseVersion(ctx, 1000))

	pullAt, err = store.GetLastPullAt(ctx)
	require.NoError(t, err)
	require.NotNil(t, pullAt)
	assert.True(t, pullAt.Equal(at))

	pushAt, err = store.GetLastPushAt(ctx)
	require.NoError(t, err)
	require.NotNil(t, pushAt)
	assert.True(t, pushAt.Equal(at.Add(time.Minute)))

	version, err = store.GetBaseVersion(ctx)
	require.NoError(t, err)
	require.NotNil(t, version)
	assert.Equal(t, int64(1000), *version)
}

func TestSaveAfterPull(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	snap := testSnapshot(1000)
	require.NoError(t, store.SaveAfterPull(ctx, snap))

	origin, err := store.GetSnapshot(ctx, model.SlotOrigin)
	require.NoError(t, err)
	require.NotNil(t, origin)
	assert.Equal(t, snap, *origin)

	current, err := store.GetSnapshot(ctx, model.SlotCurrent)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, snap, *current)

	pullAt, err := store.GetLastPullAt(ctx)
	require.NoError(t, err)
	require.NotNil(t, pullAt)
	assert.True(t, pullAt.Equal(snap.SavedAt))

	version, err := store.GetBaseVersion(ctx)
	require.NoError(t, err)
	require.NotNil(t, version)
	assert.Equal(t, int64(1000), *version)

	// lastPush is untouched by a pull
	lastPush, err := store.GetSnapshot(ctx, model.SlotLastPush)
	require.NoError(t, err)
	assert.Nil(t, lastPush)
}

func TestSaveAfterPullRequiresBaseVersion(t *testing.T) {
	store := setupTestStore(t)

	snap := testSnapshot(1000)
	snap.BaseVersion = nil
	err := store.SaveAfterPull(context.Background(), snap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base version")
}

func TestSaveAfterPush(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveAfterPull(ctx, testSnapshot(1000)))

	working := testSnapshot(1000)
	working.Rules = append(working.Rules, model.Rule{RuleID: "G1.B.2", Title: "Close your files"})
	pushedAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveAfterPush(ctx, working, pushedAt, 1010))

	lastPush, err := store.GetSnapshot(ctx, model.SlotLastPush)
	require.NoError(t, err)
	require.NotNil(t, lastPush)
	assert.Equal(t, int64(1010), *lastPush.BaseVersion)
	assert.True(t, lastPush.SavedAt.Equal(pushedAt))
	assert.Len(t, lastPush.Rules, 2)

	// current matches lastPush after a push
	current, err := store.GetSnapshot(ctx, model.SlotCurrent)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, *lastPush, *current)

	version, err := store.GetBaseVersion(ctx)
	require.NoError(t, err)
	require.NotNil(t, version)
	assert.Equal(t, int64(1010), *version)

	pushAt, err := store.GetLastPushAt(ctx)
	require.NoError(t, err)
	require.NotNil(t, pushAt)
	assert.True(t, pushAt.Equal(pushedAt))

	// origin still reflects the last pull, not the push
	origin, err := store.GetSnapshot(ctx, model.SlotOrigin)
	require.NoError(t, err)
	require.NotNil(t, origin)
	assert.Equal(t, int64(1000), *origin.BaseVersion)
	assert.Len(t, origin.Rules, 1)
}

func TestClearAll(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveAfterPull(ctx, testSnapshot(1000)))
	require.NoError(t, store.ClearAll(ctx))

	for _, slot := range []model.Slot{model.SlotOrigin, model.SlotCurrent, model.SlotLastPush} {
		snap, err := store.GetSnapshot(ctx, slot)
		require.NoError(t, err)
		assert.Nil(t, snap, "slot %s should be cleared", slot)
	}

	version, err := store.GetBaseVersion(ctx)
	require.NoError(t, err)
	assert.Nil(t, version)

	pullAt, err := store.GetLastPullAt(ctx)
	require.NoError(t, err)
	assert.Nil(t, pullAt)
}

func TestPersistsAcrossReopen(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "rulesync-store-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "local.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.SaveAfterPull(ctx, testSnapshot(1000)))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	current, err := reopened.GetSnapshot(ctx, model.SlotCurrent)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, int64(1000), *current.BaseVersion)
	assert.Equal(t, "G1.A.1", current.Rules[0].RuleID)
}

func TestCorruptedValuesReportStoreCorrupted(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.put(ctx, snapshotKey(model.SlotCurrent), "not json"))
	_, err := store.GetSnapshot(ctx, model.SlotCurrent)
	assert.ErrorIs(t, err, common.ErrStoreCorrupted)

	require.NoError(t, store.put(ctx, metaLastPullAt, "yesterday-ish"))
	_, err = store.GetLastPullAt(ctx)
	assert.ErrorIs(t, err, common.ErrStoreCorrupted)

	require.NoError(t, store.put(ctx, metaBaseVersion, "one thousand"))
	_, err = store.GetBaseVersion(ctx)
	assert.ErrorIs(t, err, common.ErrStoreCorrupted)
}

func TestClosedStoreReportsUnavailable(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Close())

	err := store.PutBaseVersion(ctx, 1000)
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)

	_, err = store.GetBaseVersion(ctx)
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
}
