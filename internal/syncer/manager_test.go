package syncer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/praxical/rulesync/internal/common"
	"github.com/praxical/rulesync/internal/model"
	"github.com/praxical/rulesync/internal/remote"
	"github.com/praxical/rulesync/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory LocalStore with failure injection for tests.
type memStore struct {
	mu         sync.Mutex
	snapshots  map[model.Slot]model.Snapshot
	lastPullAt *time.Time
	lastPushAt *time.Time
	baseVer    *int64
	failReads  bool
	failWrites bool
	writeCount int
}

func newMemStore() *memStore {
	return &memStore{snapshots: make(map[model.Slot]model.Snapshot)}
}

func (s *memStore) PutSnapshot(_ context.Context, slot model.Slot, snap model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return fmt.Errorf("store unavailable")
	}
	s.writeCount++
	s.snapshots[slot] = snap.Clone()
	return nil
}

func (s *memStore) GetSnapshot(_ context.Context, slot model.Slot) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads {
		return nil, fmt.Errorf("store unavailable")
	}
	snap, ok := s.snapshots[slot]
	if !ok {
		return nil, nil
	}
	clone := snap.Clone()
	return &clone, nil
}

func (s *memStore) PutLastPullAt(_ context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeCount++
	s.lastPullAt = &at
	return nil
}

func (s *memStore) GetLastPullAt(_ context.Context) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads {
		return nil, fmt.Errorf("store unavailable")
	}
	return s.lastPullAt, nil
}

func (s *memStore) PutLastPushAt(_ context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeCount++
	s.lastPushAt = &at
	return nil
}

func (s *memStore) GetLastPushAt(_ context.Context) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads {
		return nil, fmt.Errorf("store unavailable")
	}
	return s.lastPushAt, nil
}

func (s *memStore) PutBaseVersion(_ context.Context, v int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeCount++
	s.baseVer = &v
	return nil
}

func (s *memStore) GetBaseVersion(_ context.Context) (*int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads {
		return nil, fmt.Errorf("store unavailable")
	}
	return s.baseVer, nil
}

func (s *memStore) SaveAfterPull(_ context.Context, snap model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return fmt.Errorf("store unavailable")
	}
	s.writeCount++
	s.snapshots[model.SlotOrigin] = snap.Clone()
	s.snapshots[model.SlotCurrent] = snap.Clone()
	at := snap.SavedAt
	s.lastPullAt = &at
	s.baseVer = copyVersion(snap.BaseVersion)
	return nil
}

func (s *memStore) SaveAfterPush(_ context.Context, snap model.Snapshot, pushedAt time.Time, newVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return fmt.Errorf("store unavailable")
	}
	s.writeCount++
	stamped := snap.Clone()
	stamped.SavedAt = pushedAt
	stamped.BaseVersion = &newVersion
	s.snapshots[model.SlotLastPush] = stamped
	s.snapshots[model.SlotCurrent] = stamped
	s.lastPushAt = &pushedAt
	s.baseVer = &newVersion
	return nil
}

func (s *memStore) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = make(map[model.Slot]model.Snapshot)
	s.lastPullAt = nil
	s.lastPushAt = nil
	s.baseVer = nil
	return nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeCount
}

func (s *memStore) snapshot(slot model.Slot) *model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[slot]
	if !ok {
		return nil
	}
	clone := snap.Clone()
	return &clone
}

var _ service.LocalStore = (*memStore)(nil)

func pullResultFixture(ver int64, rules ...model.Rule) *service.PullResult {
	return &service.PullResult{
		Version:  ver,
		PulledAt: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Rules:    rules,
		Tags:     model.EmptyTagData(),
		Metadata: service.PullMetadata{RuleCount: len(rules)},
	}
}

func newTestManager(t *testing.T, store service.LocalStore, mock *remote.MockClient) *Manager {
	t.Helper()
	m := NewManager(store, mock)
	m.queue.retryDelay = time.Millisecond
	t.Cleanup(m.Close)
	return m
}

func TestHydrateFromSnapshot(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	ver := int64(1000)
	snap := model.Snapshot{
		SavedAt:     time.Now().UTC(),
		BaseVersion: &ver,
		Rules:       []model.Rule{{RuleID: "G1.A.1", Title: "No bare excepts"}},
		Tags:        model.EmptyTagData(),
	}
	require.NoError(t, store.SaveAfterPull(ctx, snap))

	m := newTestManager(t, store, remote.NewMockClient())
	m.Hydrate(ctx)

	status := m.Status()
	assert.True(t, status.Hydrated)
	require.NotNil(t, status.BaseVersion)
	assert.Equal(t, int64(1000), *status.BaseVersion)
	assert.Equal(t, 1, status.RuleCount)
	require.NotNil(t, status.LastPullAt)
}

func TestHydrateFallsBackToMetadata(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	// Metadata without a snapshot: first-run edge case
	require.NoError(t, store.PutBaseVersion(ctx, 900))
	require.NoError(t, store.PutLastPullAt(ctx, time.Now().UTC()))

	m := newTestManager(t, store, remote.NewMockClient())
	m.Hydrate(ctx)

	status := m.Status()
	assert.True(t, status.Hydrated)
	require.NotNil(t, status.BaseVersion)
	assert.Equal(t, int64(900), *status.BaseVersion)
	assert.Equal(t, 0, status.RuleCount)
}

func TestHydrateDegradesOnReadFailure(t *testing.T) {
	store := newMemStore()
	store.failReads = true

	m := newTestManager(t, store, remote.NewMockClient())
	m.Hydrate(context.Background())

	// Boot continues with empty state
	status := m.Status()
	assert.True(t, status.Hydrated)
	assert.Nil(t, status.BaseVersion)
	assert.Equal(t, 0, status.RuleCount)
}

func TestHydrateRunsOnce(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	require.NoError(t, store.PutBaseVersion(ctx, 900))

	m := newTestManager(t, store, remote.NewMockClient())
	m.Hydrate(ctx)

	require.NoError(t, store.PutBaseVersion(ctx, 950))
	m.Hydrate(ctx)

	assert.Equal(t, int64(900), *m.BaseVersion())
}

func TestPullReplacesStateAndPersists(t *testing.T) {
	store := newMemStore()
	mock := remote.NewMockClient()
	mock.PullFn = func(_ context.Context) (*service.PullResult, error) {
		return pullResultFixture(1000, model.Rule{RuleID: "G1.A.1", Title: "No bare excepts"}), nil
	}

	m := newTestManager(t, store, mock)
	result, err := m.Pull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1000), result.Version)

	assert.Equal(t, int64(1000), *m.BaseVersion())
	require.Len(t, m.Rules(), 1)

	origin := store.snapshot(model.SlotOrigin)
	require.NotNil(t, origin)
	assert.Equal(t, int64(1000), *origin.BaseVersion)

	current := store.snapshot(model.SlotCurrent)
	require.NotNil(t, current)
	assert.Equal(t, origin.Rules, current.Rules)
}

func TestPullIdempotent(t *testing.T) {
	store := newMemStore()
	mock := remote.NewMockClient()
	mock.PullFn = func(_ context.Context) (*service.PullResult, error) {
		return pullResultFixture(1000, model.Rule{RuleID: "G1.A.1", Title: "No bare excepts"}), nil
	}

	m := newTestManager(t, store, mock)
	ctx := context.Background()

	_, err := m.Pull(ctx)
	require.NoError(t, err)
	firstRules := m.Rules()
	firstCurrent := store.snapshot(model.SlotCurrent)

	_, err = m.Pull(ctx)
	require.NoError(t, err)

	assert.Equal(t, firstRules, m.Rules())
	assert.Equal(t, *m.BaseVersion(), int64(1000))

	secondCurrent := store.snapshot(model.SlotCurrent)
	require.NotNil(t, secondCurrent)
	assert.Equal(t, firstCurrent.Rules, secondCurrent.Rules)
	assert.Equal(t, *firstCurrent.BaseVersion, *secondCurrent.BaseVersion)
}

func TestPullErrorRecordedAndReturned(t *testing.T) {
	store := newMemStore()
	mock := remote.NewMockClient()
	mock.PullFn = func(_ context.Context) (*service.PullResult, error) {
		return nil, common.NewRemoteError("server is down", common.KindInternalError, nil)
	}

	m := newTestManager(t, store, mock)
	_, err := m.Pull(context.Background())
	require.Error(t, err)

	status := m.Status()
	assert.False(t, status.Loading)
	assert.Contains(t, status.LastError, "server is down")
	assert.Equal(t, 0, store.writes())
}

func pullIntoManager(t *testing.T, m *Manager, ver int64, rules ...model.Rule) {
	t.Helper()
	mock, ok := m.remote.(*remote.MockClient)
	require.True(t, ok)
	prev := mock.PullFn
	mock.PullFn = func(_ context.Context) (*service.PullResult, error) {
		return pullResultFixture(ver, rules...), nil
	}
	_, err := m.Pull(context.Background())
	require.NoError(t, err)
	mock.PullFn = prev
}

func TestAddRulePersistsCurrentOnly(t *testing.T) {
	store := newMemStore()
	mock := remote.NewMockClient()
	m := newTestManager(t, store, mock)
	pullIntoManager(t, m, 1000, model.Rule{RuleID: "G1.A.1", Title: "No bare excepts"})

	require.NoError(t, m.AddRule(model.Rule{RuleID: "G1.B.2", Title: "Close your files"}))
	require.NoError(t, m.WaitForPersists(context.Background()))

	assert.Len(t, m.Rules(), 2)

	current := store.snapshot(model.SlotCurrent)
	require.NotNil(t, current)
	assert.Len(t, current.Rules, 2)

	// origin is written only by pulls
	origin := store.snapshot(model.SlotOrigin)
	require.NotNil(t, origin)
	assert.Len(t, origin.Rules, 1)
}

func TestAddRuleRejectsDuplicateID(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store, remote.NewMockClient())
	pullIntoManager(t, m, 1000, model.Rule{RuleID: "G1.A.1", Title: "No bare excepts"})

	err := m.AddRule(model.Rule{RuleID: "G1.A.1", Title: "Duplicate"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.Len(t, m.Rules(), 1)
}

func TestUpdateRule(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store, remote.NewMockClient())
	pullIntoManager(t, m, 1000, model.Rule{RuleID: "G1.A.1", Title: "Original", Severity: model.SeverityInfo})

	title := "Updated"
	m.UpdateRule("G1.A.1", model.RulePatch{Title: &title})
	require.NoError(t, m.WaitForPersists(context.Background()))

	rule, ok := m.GetRule("G1.A.1")
	require.True(t, ok)
	assert.Equal(t, "Updated", rule.Title)
	assert.Equal(t, model.SeverityInfo, rule.Severity)

	current := store.snapshot(model.SlotCurrent)
	require.NotNil(t, current)
	assert.Equal(t, "Updated", current.Rules[0].Title)
}

func TestUpdateRuleEmptyPatchLeavesRuleUnchanged(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store, remote.NewMockClient())
	rule := model.Rule{RuleID: "G1.A.1", Title: "Original", RequiredTags: []string{"uses_db"}}
	pullIntoManager(t, m, 1000, rule)

	before := m.Rules()
	m.UpdateRule("G1.A.1", model.RulePatch{})
	assert.Equal(t, before, m.Rules())
}

func TestUpdateRuleUnknownIDIsNoOp(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store, remote.NewMockClient())
	pullIntoManager(t, m, 1000, model.Rule{RuleID: "G1.A.1", Title: "Original"})
	require.NoError(t, m.WaitForPersists(context.Background()))
	writesBefore := store.writes()

	title := "Updated"
	m.UpdateRule("G9.Z.9", model.RulePatch{Title: &title})
	require.NoError(t, m.WaitForPersists(context.Background()))

	assert.Len(t, m.Rules(), 1)
	assert.Equal(t, "Original", m.Rules()[0].Title)
	// no persist scheduled for a no-op
	assert.Equal(t, writesBefore, store.writes())
}

func TestDeleteRuleTwiceSecondIsNoOp(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store, remote.NewMockClient())
	pullIntoManager(t, m, 1000,
		model.Rule{RuleID: "G1.A.1", Title: "One"},
		model.Rule{RuleID: "G1.B.2", Title: "Two"})

	m.DeleteRule("G1.A.1")
	require.NoError(t, m.WaitForPersists(context.Background()))
	assert.Len(t, m.Rules(), 1)
	writesAfterFirst := store.writes()

	m.DeleteRule("G1.A.1")
	require.NoError(t, m.WaitForPersists(context.Background()))
	assert.Len(t, m.Rules(), 1)
	assert.Equal(t, writesAfterFirst, store.writes())
}

func TestReplaceTags(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store, remote.NewMockClient())
	pullIntoManager(t, m, 1000)

	tags := model.EmptyTagData()
	tags.Tags["uses_flask"] = model.TagDef{
		Extraction: "regex",
		Tier:       1,
		Detection:  model.NewRegexDetection(`import\s+flask`, ""),
	}
	require.NoError(t, m.ReplaceTags(tags))
	require.NoError(t, m.WaitForPersists(context.Background()))

	assert.Equal(t, 1, m.Tags().TagCount())

	current := store.snapshot(model.SlotCurrent)
	require.NotNil(t, current)
	assert.Contains(t, current.Tags.Tags, "uses_flask")
}

func TestReplaceTagsRejectsInvalid(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store, remote.NewMockClient())
	pullIntoManager(t, m, 1000)

	tags := model.EmptyTagData()
	tags.Tags["broken"] = model.TagDef{Tier: 7}
	require.Error(t, m.ReplaceTags(tags))
	assert.Equal(t, 0, m.Tags().TagCount())
}

func TestPersistCurrentNoOpWithoutBaseVersion(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store, remote.NewMockClient())
	m.Hydrate(context.Background())

	require.NoError(t, m.PersistCurrent(context.Background()))
	assert.Equal(t, 0, store.writes())
	assert.Nil(t, store.snapshot(model.SlotCurrent))
}

func TestMutationsBeforePullAreNotPersisted(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store, remote.NewMockClient())
	m.Hydrate(context.Background())

	require.NoError(t, m.AddRule(model.Rule{RuleID: "G1.A.1", Title: "Unbased"}))
	require.NoError(t, m.WaitForPersists(context.Background()))

	assert.Len(t, m.Rules(), 1)
	assert.Equal(t, 0, store.writes())
}

func TestPushConflictLeavesStateUntouched(t *testing.T) {
	store := newMemStore()
	mock := remote.NewMockClient()
	m := newTestManager(t, store, mock)
	pullIntoManager(t, m, 1000, model.Rule{RuleID: "G1.A.1", Title: "One"})
	writesBefore := store.writes()

	mock.PushFn = func(_ context.Context, base *int64, _ []model.Rule, _ model.TagData, _ bool) (*service.PushOutcome, error) {
		return &service.PushOutcome{
			Conflict: &service.VersionConflict{
				BaseVersion:    *base,
				CurrentVersion: 1005,
				Message:        "remote data is at version 1005",
			},
		}, nil
	}

	outcome, err := m.Push(context.Background(), false)
	require.NoError(t, err)
	require.NotNil(t, outcome.Conflict)
	assert.Equal(t, int64(1000), outcome.Conflict.BaseVersion)
	assert.Equal(t, int64(1005), outcome.Conflict.CurrentVersion)

	// Neither memory nor store moved
	assert.Equal(t, int64(1000), *m.BaseVersion())
	assert.Nil(t, m.Status().LastPushAt)
	assert.Equal(t, writesBefore, store.writes())
	assert.Nil(t, store.snapshot(model.SlotLastPush))
}

func TestPushSuccessAdoptsNewVersion(t *testing.T) {
	store := newMemStore()
	mock := remote.NewMockClient()
	m := newTestManager(t, store, mock)
	pullIntoManager(t, m, 1000, model.Rule{RuleID: "G1.A.1", Title: "One"})

	pushedAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	mock.PushFn = func(_ context.Context, _ *int64, _ []model.Rule, _ model.TagData, _ bool) (*service.PushOutcome, error) {
		return &service.PushOutcome{NewVersion: 1006, PushedAt: pushedAt}, nil
	}

	outcome, err := m.Push(context.Background(), true)
	require.NoError(t, err)
	require.Nil(t, outcome.Conflict)

	assert.Equal(t, int64(1006), *m.BaseVersion())
	require.NotNil(t, m.Status().LastPushAt)

	lastPush := store.snapshot(model.SlotLastPush)
	require.NotNil(t, lastPush)
	assert.Equal(t, int64(1006), *lastPush.BaseVersion)

	current := store.snapshot(model.SlotCurrent)
	require.NotNil(t, current)
	assert.Equal(t, *lastPush, *current)
	assert.Equal(t, int64(1006), *store.baseVer)
}

func TestPushWithoutBaseVersionRequiresForce(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store, remote.NewMockClient())
	m.Hydrate(context.Background())

	_, err := m.Push(context.Background(), false)
	require.ErrorIs(t, err, common.ErrNoBaseVersion)
}

func TestDiffPassesWorkingCopy(t *testing.T) {
	store := newMemStore()
	mock := remote.NewMockClient()
	m := newTestManager(t, store, mock)
	pullIntoManager(t, m, 1000, model.Rule{RuleID: "G1.A.1", Title: "One"})

	mock.DiffFn = func(_ context.Context, base *int64, rules []model.Rule, _ model.TagData) (*service.DiffResult, error) {
		require.NotNil(t, base)
		assert.Equal(t, int64(1000), *base)
		assert.Len(t, rules, 1)
		// Diff is still computed under conflict
		return &service.DiffResult{BaseVersion: *base, CurrentVersion: 1005, HasConflict: true}, nil
	}

	result, err := m.Diff(context.Background())
	require.NoError(t, err)
	assert.True(t, result.HasConflict)
	assert.Equal(t, 1, mock.DiffCalls)
}

func TestReset(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store, remote.NewMockClient())
	pullIntoManager(t, m, 1000, model.Rule{RuleID: "G1.A.1", Title: "One"})

	require.NoError(t, m.Reset(context.Background()))

	assert.Nil(t, m.BaseVersion())
	assert.Empty(t, m.Rules())
	assert.Nil(t, store.snapshot(model.SlotCurrent))
	assert.Nil(t, store.snapshot(model.SlotOrigin))
}
