package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/praxical/rulesync/internal/common"
	"github.com/praxical/rulesync/internal/model"
	"github.com/praxical/rulesync/internal/service"
)

// Manager owns the in-memory sync state: the working copy of rules and
// tags plus the base version they were pulled against. It is the single
// writer of that state; the CLI talks to the store and remote only
// through it. Construct one per process and pass it where needed.
type Manager struct {
	store  service.LocalStore
	remote service.RemoteClient
	logger *slog.Logger
	queue  *persistQueue

	mu          sync.RWMutex
	rules       []model.Rule
	tags        model.TagData
	baseVersion *int64
	lastPullAt  *time.Time
	lastPushAt  *time.Time
	lastErr     string
	hydrated    bool
	loading     bool

	hydrateOnce sync.Once
}

// Status is a read-only view of the manager's state.
type Status struct {
	LastPullAt      *time.Time
	LastPushAt      *time.Time
	BaseVersion     *int64
	LastError       string
	RuleCount       int
	TagCount        int
	CompoundCount   int
	PendingPersists int
	Hydrated        bool
	Loading         bool
}

// NewManager creates a sync state manager over the given collaborators.
func NewManager(store service.LocalStore, remote service.RemoteClient) *Manager {
	logger := slog.Default().With("component", "syncer")
	return &Manager{
		store:  store,
		remote: remote,
		logger: logger,
		tags:   model.EmptyTagData(),
		queue:  newPersistQueue(logger, 64),
	}
}

// Close drains outstanding persistence writes.
func (m *Manager) Close() {
	m.queue.Close()
}

// Hydrate loads state from the local store. It runs at most once; any
// read failure degrades to empty hydrated state so a broken local cache
// never prevents startup.
func (m *Manager) Hydrate(ctx context.Context) {
	m.hydrateOnce.Do(func() {
		m.hydrate(ctx)
	})
}

func (m *Manager) hydrate(ctx context.Context) {
	var (
		wg      sync.WaitGroup
		snap    *model.Snapshot
		pullAt  *time.Time
		pushAt  *time.Time
		baseVer *int64
		snapErr error
		pullErr error
		pushErr error
		baseErr error
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		snap, snapErr = m.store.GetSnapshot(ctx, model.SlotCurrent)
	}()
	go func() {
		defer wg.Done()
		pullAt, pullErr = m.store.GetLastPullAt(ctx)
	}()
	go func() {
		defer wg.Done()
		pushAt, pushErr = m.store.GetLastPushAt(ctx)
	}()
	go func() {
		defer wg.Done()
		baseVer, baseErr = m.store.GetBaseVersion(ctx)
	}()
	wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.hydrated = true

	for _, err := range []error{snapErr, pullErr, pushErr, baseErr} {
		if err != nil {
			m.logger.Warn("local cache unreadable, starting with empty state", "error", err)
			return
		}
	}

	if snap != nil {
		m.rules = snap.Rules
		if snap.Tags.Tags != nil || snap.Tags.Categories != nil || snap.Tags.CompoundTags != nil {
			m.tags = snap.Tags
		}
		m.baseVersion = snap.BaseVersion
	}
	// Metadata fills any gaps the snapshot leaves
	if m.baseVersion == nil {
		m.baseVersion = baseVer
	}
	m.lastPullAt = pullAt
	m.lastPushAt = pushAt

	if m.baseVersion != nil {
		m.logger.Info("Hydrated from local store",
			"base_version", *m.baseVersion,
			"rules", len(m.rules))
	}
}

// Pull fetches the full remote state, replaces the in-memory copy, and
// persists origin and current. The in-memory replacement lands before
// persistence; callers that need durability must let Pull return.
func (m *Manager) Pull(ctx context.Context) (*service.PullResult, error) {
	m.setLoading(true)
	defer m.setLoading(false)

	result, err := m.remote.Pull(ctx)
	if err != nil {
		m.recordError(err)
		return nil, err
	}

	savedAt := result.PulledAt
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}
	version := result.Version

	m.mu.Lock()
	m.rules = result.Rules
	if result.Tags.Tags == nil && result.Tags.Categories == nil && result.Tags.CompoundTags == nil {
		m.tags = model.EmptyTagData()
	} else {
		m.tags = result.Tags
	}
	m.baseVersion = &version
	m.lastPullAt = &savedAt
	m.lastErr = ""
	snap := m.snapshotLocked(savedAt)
	m.mu.Unlock()

	if err := m.queue.RunSync(ctx, "save-after-pull", func(ctx context.Context) error {
		return m.store.SaveAfterPull(ctx, snap)
	}); err != nil {
		m.recordError(err)
		return nil, fmt.Errorf("pulled version %d but failed to persist locally: %w", version, err)
	}

	return result, nil
}

// Diff compares the in-memory working copy against the server. The diff
// is always computed, conflict or not; only pushes are blocked by the
// conflict policy.
func (m *Manager) Diff(ctx context.Context) (*service.DiffResult, error) {
	m.mu.RLock()
	base := copyVersion(m.baseVersion)
	rules := m.rulesCopyLocked()
	tags := m.tags.Clone()
	m.mu.RUnlock()

	result, err := m.remote.Diff(ctx, base, rules, tags)
	if err != nil {
		m.recordError(err)
		return nil, err
	}
	return result, nil
}

// Push uploads the working copy. A version conflict comes back as the
// outcome's Conflict field and leaves both memory and store untouched.
// On success the server-assigned version becomes the new base version.
func (m *Manager) Push(ctx context.Context, force bool) (*service.PushOutcome, error) {
	m.mu.RLock()
	base := copyVersion(m.baseVersion)
	rules := m.rulesCopyLocked()
	tags := m.tags.Clone()
	m.mu.RUnlock()

	if base == nil && !force {
		return nil, common.ErrNoBaseVersion
	}

	m.setLoading(true)
	defer m.setLoading(false)

	outcome, err := m.remote.Push(ctx, base, rules, tags, force)
	if err != nil {
		m.recordError(err)
		return nil, err
	}

	if outcome.Conflict != nil {
		// Rejected push: no local mutation of any kind
		return outcome, nil
	}

	pushedAt := outcome.PushedAt
	if pushedAt.IsZero() {
		pushedAt = time.Now().UTC()
	}

	m.mu.Lock()
	newVersion := outcome.NewVersion
	m.baseVersion = &newVersion
	m.lastPushAt = &pushedAt
	m.lastErr = ""
	snap := model.Snapshot{SavedAt: pushedAt, BaseVersion: base, Rules: rules, Tags: tags}
	m.mu.Unlock()

	if err := m.queue.RunSync(ctx, "save-after-push", func(ctx context.Context) error {
		return m.store.SaveAfterPush(ctx, snap, pushedAt, outcome.NewVersion)
	}); err != nil {
		m.recordError(err)
		return outcome, fmt.Errorf("pushed version %d but failed to persist locally: %w", outcome.NewVersion, err)
	}

	return outcome, nil
}

// AddRule appends a rule to the working copy and schedules a persist.
func (m *Manager) AddRule(rule model.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	for _, existing := range m.rules {
		if existing.RuleID == rule.RuleID {
			m.mu.Unlock()
			return fmt.Errorf("rule %s already exists", rule.RuleID)
		}
	}
	m.rules = append(m.rules, rule)
	m.mu.Unlock()

	m.schedulePersist()
	return nil
}

// UpdateRule applies a partial update to the rule with the given ID.
// An unknown ID is a silent no-op: the caller already holds the
// authoritative list, so there is nothing useful to report.
func (m *Manager) UpdateRule(ruleID string, patch model.RulePatch) {
	m.mu.Lock()
	found := false
	for i, rule := range m.rules {
		if rule.RuleID == ruleID {
			m.rules[i] = patch.Apply(rule)
			found = true
			break
		}
	}
	m.mu.Unlock()

	if found {
		m.schedulePersist()
	}
}

// DeleteRule removes the rule with the given ID. Deleting an absent ID
// is a no-op.
func (m *Manager) DeleteRule(ruleID string) {
	m.mu.Lock()
	found := false
	filtered := m.rules[:0]
	for _, rule := range m.rules {
		if rule.RuleID == ruleID {
			found = true
			continue
		}
		filtered = append(filtered, rule)
	}
	m.rules = filtered
	m.mu.Unlock()

	if found {
		m.schedulePersist()
	}
}

// GetRule returns a copy of the rule with the given ID.
func (m *Manager) GetRule(ruleID string) (model.Rule, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rule := range m.rules {
		if rule.RuleID == ruleID {
			return rule.Clone(), true
		}
	}
	return model.Rule{}, false
}

// ReplaceTags swaps in a complete new tag aggregate and schedules a
// persist. TagData is never patched field by field.
func (m *Manager) ReplaceTags(tags model.TagData) error {
	if err := tags.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.tags = tags.Clone()
	m.mu.Unlock()

	m.schedulePersist()
	return nil
}

// PersistCurrent writes the working copy to the current slot and waits
// for it. Before the first pull there is no base version and nothing is
// written: an un-based snapshot would corrupt later conflict checks.
func (m *Manager) PersistCurrent(ctx context.Context) error {
	m.mu.RLock()
	if m.baseVersion == nil {
		m.mu.RUnlock()
		return nil
	}
	snap := m.snapshotLocked(time.Now().UTC())
	m.mu.RUnlock()

	return m.queue.RunSync(ctx, "persist-current", func(ctx context.Context) error {
		return m.store.PutSnapshot(ctx, model.SlotCurrent, snap)
	})
}

// Reset clears the local store and the in-memory state.
func (m *Manager) Reset(ctx context.Context) error {
	if err := m.store.ClearAll(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	m.rules = nil
	m.tags = model.EmptyTagData()
	m.baseVersion = nil
	m.lastPullAt = nil
	m.lastPushAt = nil
	m.lastErr = ""
	m.mu.Unlock()

	return nil
}

// Rules returns a copy of the working rule list.
func (m *Manager) Rules() []model.Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rulesCopyLocked()
}

// Tags returns a copy of the working tag aggregate.
func (m *Manager) Tags() model.TagData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tags.Clone()
}

// BaseVersion returns the base version, nil before the first pull.
func (m *Manager) BaseVersion() *int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyVersion(m.baseVersion)
}

// Status returns a read-only view of the manager's state.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Status{
		Hydrated:        m.hydrated,
		Loading:         m.loading,
		BaseVersion:     copyVersion(m.baseVersion),
		LastPullAt:      copyTime(m.lastPullAt),
		LastPushAt:      copyTime(m.lastPushAt),
		LastError:       m.lastErr,
		RuleCount:       len(m.rules),
		TagCount:        m.tags.TagCount(),
		CompoundCount:   m.tags.CompoundCount(),
		PendingPersists: m.queue.Pending(),
	}
}

// WaitForPersists blocks until the queue is empty or the context ends.
// Intended for tests and orderly shutdown.
func (m *Manager) WaitForPersists(ctx context.Context) error {
	for m.queue.Pending() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
	return nil
}

// schedulePersist enqueues a background write of the current snapshot.
// Skipped while baseVersion is nil, matching PersistCurrent.
func (m *Manager) schedulePersist() {
	m.mu.RLock()
	if m.baseVersion == nil {
		m.mu.RUnlock()
		return
	}
	snap := m.snapshotLocked(time.Now().UTC())
	m.mu.RUnlock()

	m.queue.Enqueue("persist-current", func(ctx context.Context) error {
		return m.store.PutSnapshot(ctx, model.SlotCurrent, snap)
	})
}

// snapshotLocked builds a deep-copied snapshot of the current state.
// Callers must hold at least the read lock.
func (m *Manager) snapshotLocked(savedAt time.Time) model.Snapshot {
	return model.Snapshot{
		SavedAt:     savedAt,
		BaseVersion: copyVersion(m.baseVersion),
		Rules:       m.rulesCopyLocked(),
		Tags:        m.tags.Clone(),
	}
}

func (m *Manager) rulesCopyLocked() []model.Rule {
	out := make([]model.Rule, len(m.rules))
	for i, r := range m.rules {
		out[i] = r.Clone()
	}
	return out
}

func (m *Manager) setLoading(loading bool) {
	m.mu.Lock()
	m.loading = loading
	m.mu.Unlock()
}

func (m *Manager) recordError(err error) {
	m.mu.Lock()
	m.lastErr = err.Error()
	m.mu.Unlock()
}

func copyVersion(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	out := *t
	return &out
}
