package remote

import (
	"context"

	"github.com/praxical/rulesync/internal/model"
	"github.com/praxical/rulesync/internal/service"
)

// MockClient is a mock implementation of service.RemoteClient for testing.
type MockClient struct {
	// Functions that can be set by tests to control behavior
	HealthFn func(ctx context.Context) (*service.HealthStatus, error)
	PullFn   func(ctx context.Context) (*service.PullResult, error)
	DiffFn   func(ctx context.Context, baseVersion *int64, rules []model.Rule, tags model.TagData) (*service.DiffResult, error)
	PushFn   func(ctx context.Context, baseVersion *int64, rules []model.Rule, tags model.TagData, force bool) (*service.PushOutcome, error)
	StatsFn  func(ctx context.Context) (*service.StatsResult, error)

	// Call tracking
	PushCalls  []PushCall
	PullCalls  int
	DiffCalls  int
	StatsCalls int
}

// PushCall records the parameters of a Push call.
type PushCall struct {
	BaseVersion *int64
	Rules       []model.Rule
	Tags        model.TagData
	Force       bool
}

// NewMockClient creates a new mock remote client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Health implements service.RemoteClient.
func (m *MockClient) Health(ctx context.Context) (*service.HealthStatus, error) {
	if m.HealthFn != nil {
		return m.HealthFn(ctx)
	}
	return &service.HealthStatus{Status: "ok"}, nil
}

// Pull implements service.RemoteClient.
func (m *MockClient) Pull(ctx context.Context) (*service.PullResult, error) {
	m.PullCalls++
	if m.PullFn != nil {
		return m.PullFn(ctx)
	}
	return &service.PullResult{Tags: model.EmptyTagData()}, nil
}

// Diff implements service.RemoteClient.
func (m *MockClient) Diff(ctx context.Context, baseVersion *int64, rules []model.Rule, tags model.TagData) (*service.DiffResult, error) {
	m.DiffCalls++
	if m.DiffFn != nil {
		return m.DiffFn(ctx, baseVersion, rules, tags)
	}
	return &service.DiffResult{}, nil
}

// Push implements service.RemoteClient.
func (m *MockClient) Push(ctx context.Context, baseVersion *int64, rules []model.Rule, tags model.TagData, force bool) (*service.PushOutcome, error) {
	m.PushCalls = append(m.PushCalls, PushCall{
		BaseVersion: baseVersion,
		Rules:       rules,
		Tags:        tags,
		Force:       force,
	})
	if m.PushFn != nil {
		return m.PushFn(ctx, baseVersion, rules, tags, force)
	}
	return &service.PushOutcome{NewVersion: 1}, nil
}

// Stats implements service.RemoteClient.
func (m *MockClient) Stats(ctx context.Context) (*service.StatsResult, error) {
	m.StatsCalls++
	if m.StatsFn != nil {
		return m.StatsFn(ctx)
	}
	return &service.StatsResult{}, nil
}

// Ensure MockClient implements the RemoteClient interface.
var _ service.RemoteClient = (*MockClient)(nil)
