// Package service defines the interfaces and protocol types shared across
// the sync core.
package service

import (
	"context"
	"time"

	"github.com/praxical/rulesync/internal/model"
)

// LocalStore defines the contract for durable client-side persistence of
// snapshots and sync metadata.
type LocalStore interface {
	// Snapshot slots
	PutSnapshot(ctx context.Context, slot model.Slot, snap model.Snapshot) error
	// GetSnapshot returns (nil, nil) when the slot has never been written.
	GetSnapshot(ctx context.Context, slot model.Slot) (*model.Snapshot, error)

	// Scalar metadata
	PutLastPullAt(ctx context.Context, at time.Time) error
	GetLastPullAt(ctx context.Context) (*time.Time, error)
	PutLastPushAt(ctx context.Context, at time.Time) error
	GetLastPushAt(ctx context.Context) (*time.Time, error)
	PutBaseVersion(ctx context.Context, version int64) error
	GetBaseVersion(ctx context.Context) (*int64, error)

	// Composite writes
	SaveAfterPull(ctx context.Context, snap model.Snapshot) error
	SaveAfterPush(ctx context.Context, snap model.Snapshot, pushedAt time.Time, newVersion int64) error

	// ClearAll removes every snapshot slot and metadata key.
	ClearAll(ctx context.Context) error

	Close() error
}

// RemoteClient defines the contract for the remote rule/tag authority.
type RemoteClient interface {
	Health(ctx context.Context) (*HealthStatus, error)
	Pull(ctx context.Context) (*PullResult, error)
	Diff(ctx context.Context, baseVersion *int64, rules []model.Rule, tags model.TagData) (*DiffResult, error)
	// Push returns a conflict as a regular outcome, not an error; callers
	// must branch on Outcome.Conflict.
	Push(ctx context.Context, baseVersion *int64, rules []model.Rule, tags model.TagData, force bool) (*PushOutcome, error)
	Stats(ctx context.Context) (*StatsResult, error)
}

// HealthStatus reports remote availability.
type HealthStatus struct {
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Version   string    `json:"version"`
}

// PullResult is the full remote state returned by a pull.
type PullResult struct {
	PulledAt time.Time     `json:"pulledAt"`
	Rules    []model.Rule  `json:"rules"`
	Tags     model.TagData `json:"tags"`
	Metadata PullMetadata  `json:"metadata"`
	Version  int64         `json:"version"`
}

// PullMetadata carries server-side counts for the pulled data.
type PullMetadata struct {
	RuleCount        int `json:"ruleCount"`
	TagCount         int `json:"tagCount"`
	CompoundTagCount int `json:"compoundTagCount"`
}

// ChangeSummary totals one side of a diff.
type ChangeSummary struct {
	Added     int `json:"added"`
	Modified  int `json:"modified"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`
}

// RuleChanges lists per-rule differences between local and server state.
type RuleChanges struct {
	Added     []model.Rule  `json:"added"`
	Modified  []model.Rule  `json:"modified"`
	Deleted   []model.Rule  `json:"deleted"`
	Unchanged []string      `json:"unchanged"`
	Summary   ChangeSummary `json:"summary"`
}

// TagChanges lists per-tag differences between local and server state.
type TagChanges struct {
	Added     []string      `json:"added"`
	Modified  []string      `json:"modified"`
	Deleted   []string      `json:"deleted"`
	Unchanged []string      `json:"unchanged"`
	Summary   ChangeSummary `json:"summary"`
}

// DiffResult compares caller-supplied local state against the server's
// current state. The diff is computed even when HasConflict is true.
type DiffResult struct {
	Rules          RuleChanges `json:"rules"`
	Tags           TagChanges  `json:"tags"`
	BaseVersion    int64       `json:"baseVersion"`
	CurrentVersion int64       `json:"currentVersion"`
	HasConflict    bool        `json:"hasConflict"`
}

// VersionConflict reports a push rejected by the server's version check.
type VersionConflict struct {
	Message        string `json:"message"`
	BaseVersion    int64  `json:"baseVersion"`
	CurrentVersion int64  `json:"currentVersion"`
}

// PushStats summarizes the server's application of a successful push.
type PushStats struct {
	RulesTotal   int `json:"rulesTotal"`
	RulesSuccess int `json:"rulesSuccess"`
	RulesFailed  int `json:"rulesFailed"`
	TagsTotal    int `json:"tagsTotal"`
}

// PushOutcome is the result of a push attempt. Exactly one of the success
// fields or Conflict is meaningful: when Conflict is non-nil the push was
// rejected and no state changed server-side.
type PushOutcome struct {
	PushedAt   time.Time        `json:"pushedAt"`
	Conflict   *VersionConflict `json:"conflict,omitempty"`
	BackupPath string           `json:"backupPath,omitempty"`
	Stats      PushStats        `json:"stats"`
	NewVersion int64            `json:"newVersion"`
}

// StatsResult holds remote counts and category breakdown.
type StatsResult struct {
	Categories    map[string]int `json:"categories"`
	RuleStatus    map[string]int `json:"ruleStatus"`
	RuleCount     int            `json:"ruleCount"`
	TagCount      int            `json:"tagCount"`
	CompoundCount int            `json:"compoundCount"`
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
