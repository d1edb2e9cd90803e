// Package remote provides the HTTP client for the rule/tag authority.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/praxical/rulesync/internal/common"
	"github.com/praxical/rulesync/internal/model"
	"github.com/praxical/rulesync/internal/service"
)

// Config holds remote authority configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: server URL is required", common.ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("%w: server URL must start with http:// or https://", common.ErrInvalidConfig)
	}
	return nil
}

// Client implements the service.RemoteClient interface over HTTP.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	retryOpts  service.RetryOptions
	baseURL    string
	apiKey     string
}

// NewClient creates a new remote client with the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		logger:     slog.Default().With("component", "remote"),
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     15 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// Wire shapes for the authority's JSON contract.
type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

type pullResponse struct {
	PulledAt time.Time `json:"pulledAt"`
	Rules    struct {
		Count int          `json:"count"`
		Items []model.Rule `json:"items"`
	} `json:"rules"`
	Tags     model.TagData        `json:"tags"`
	Metadata service.PullMetadata `json:"metadata"`
	Version  int64                `json:"version"`
}

type diffRequest struct {
	BaseVersion *int64        `json:"baseVersion"`
	Rules       []model.Rule  `json:"rules"`
	Tags        model.TagData `json:"tags"`
}

type diffResponse struct {
	Rules          service.RuleChanges `json:"rules"`
	Tags           service.TagChanges  `json:"tags"`
	BaseVersion    int64               `json:"baseVersion"`
	CurrentVersion int64               `json:"currentVersion"`
	HasConflict    bool                `json:"hasConflict"`
}

type pushRequest struct {
	BaseVersion *int64        `json:"baseVersion,omitempty"`
	Rules       []model.Rule  `json:"rules"`
	Tags        model.TagData `json:"tags"`
	Force       bool          `json:"force"`
}

type pushResponse struct {
	PushedAt   time.Time `json:"pushedAt"`
	Error      string    `json:"error"`
	Message    string    `json:"message"`
	BackupPath string    `json:"backupPath"`
	Rules      struct {
		Total   int `json:"total"`
		Success int `json:"success"`
		Failed  int `json:"failed"`
	} `json:"rules"`
	Tags struct {
		Total int `json:"total"`
	} `json:"tags"`
	NewVersion     int64 `json:"newVersion"`
	BaseVersion    int64 `json:"baseVersion"`
	CurrentVersion int64 `json:"currentVersion"`
	Success        bool  `json:"success"`
}

type statsResponse struct {
	Stats struct {
		Rules struct {
			Count  int            `json:"count"`
			Status map[string]int `json:"status"`
		} `json:"rules"`
		Tags struct {
			Count         int            `json:"count"`
			CompoundCount int            `json:"compoundCount"`
			Categories    map[string]int `json:"categories"`
		} `json:"tags"`
	} `json:"stats"`
	Success bool `json:"success"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// Health checks remote availability.
func (c *Client) Health(ctx context.Context) (*service.HealthStatus, error) {
	var resp healthResponse
	if err := c.getWithRetry(ctx, "/health", &resp); err != nil {
		return nil, err
	}
	return &service.HealthStatus{
		Status:    resp.Status,
		Timestamp: resp.Timestamp,
		Version:   resp.Version,
	}, nil
}

// Pull fetches the full remote state. Pulls are always whole-state reads;
// there is no incremental variant.
func (c *Client) Pull(ctx context.Context) (*service.PullResult, error) {
	c.logger.Info("Pulling full state from remote")

	var resp pullResponse
	if err := c.getWithRetry(ctx, "/api/data/pull", &resp); err != nil {
		return nil, err
	}

	c.logger.Info("Pull complete",
		"version", resp.Version,
		"rules", resp.Rules.Count,
		"tags", resp.Metadata.TagCount)

	return &service.PullResult{
		Version:  resp.Version,
		PulledAt: resp.PulledAt,
		Rules:    resp.Rules.Items,
		Tags:     resp.Tags,
		Metadata: resp.Metadata,
	}, nil
}

// Diff compares the supplied local state against the server's current
// state. The server computes and returns the diff even when the base
// version has fallen behind; HasConflict flags that case.
func (c *Client) Diff(ctx context.Context, baseVersion *int64, rules []model.Rule, tags model.TagData) (*service.DiffResult, error) {
	req := diffRequest{BaseVersion: baseVersion, Rules: rules, Tags: tags}

	var resp diffResponse
	if err := c.post(ctx, "/api/data/diff", req, &resp); err != nil {
		return nil, err
	}

	return &service.DiffResult{
		BaseVersion:    resp.BaseVersion,
		CurrentVersion: resp.CurrentVersion,
		HasConflict:    resp.HasConflict,
		Rules:          resp.Rules,
		Tags:           resp.Tags,
	}, nil
}

// Push replaces the server's rule/tag store wholesale. A version conflict
// comes back as a PushOutcome with Conflict set, never as an error, so
// callers can branch without exception handling.
func (c *Client) Push(ctx context.Context, baseVersion *int64, rules []model.Rule, tags model.TagData, force bool) (*service.PushOutcome, error) {
	c.logger.Info("Pushing state to remote",
		"rules", len(rules),
		"force", force)

	req := pushRequest{BaseVersion: baseVersion, Rules: rules, Tags: tags, Force: force}

	body, status, err := c.do(ctx, http.MethodPost, "/api/data/push", req)
	if err != nil {
		return nil, err
	}

	var resp pushResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, common.NewRemoteError("invalid push response", "", fmt.Errorf("%w: %v", common.ErrRemoteProtocol, err))
	}

	// 409 is an expected protocol outcome on the push path.
	if status == http.StatusConflict {
		message := resp.Message
		if message == "" {
			message = "remote version has advanced; diff against remote or force push"
		}
		c.logger.Warn("Push rejected by version check",
			"base_version", resp.BaseVersion,
			"current_version", resp.CurrentVersion)
		return &service.PushOutcome{
			Conflict: &service.VersionConflict{
				BaseVersion:    resp.BaseVersion,
				CurrentVersion: resp.CurrentVersion,
				Message:        message,
			},
		}, nil
	}

	if status != http.StatusOK || !resp.Success {
		return nil, c.normalizeError(status, body)
	}

	c.logger.Info("Push complete", "new_version", resp.NewVersion)

	return &service.PushOutcome{
		NewVersion: resp.NewVersion,
		PushedAt:   resp.PushedAt,
		BackupPath: resp.BackupPath,
		Stats: service.PushStats{
			RulesTotal:   resp.Rules.Total,
			RulesSuccess: resp.Rules.Success,
			RulesFailed:  resp.Rules.Failed,
			TagsTotal:    resp.Tags.Total,
		},
	}, nil
}

// Stats fetches remote counts and category breakdown.
func (c *Client) Stats(ctx context.Context) (*service.StatsResult, error) {
	var resp statsResponse
	if err := c.getWithRetry(ctx, "/api/data/stats", &resp); err != nil {
		return nil, err
	}

	return &service.StatsResult{
		RuleCount:     resp.Stats.Rules.Count,
		RuleStatus:    resp.Stats.Rules.Status,
		TagCount:      resp.Stats.Tags.Count,
		CompoundCount: resp.Stats.Tags.CompoundCount,
		Categories:    resp.Stats.Tags.Categories,
	}, nil
}

// getWithRetry performs an idempotent GET with retry on transport failures.
func (c *Client) getWithRetry(ctx context.Context, path string, out any) error {
	return common.WithRetry(ctx, func() error {
		body, status, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return c.normalizeError(status, body)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return common.NewRemoteError("invalid response from server", "", fmt.Errorf("%w: %v", common.ErrRemoteProtocol, err))
		}
		return nil
	}, c.retryOpts)
}

// post performs a non-retried POST; diff and push race the server's
// version check and must not be replayed blindly.
func (c *Client) post(ctx context.Context, path string, req, out any) error {
	body, status, err := c.do(ctx, http.MethodPost, path, req)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return c.normalizeError(status, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return common.NewRemoteError("invalid response from server", "", fmt.Errorf("%w: %v", common.ErrRemoteProtocol, err))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, common.NewRemoteError(
			"could not reach the rule server",
			"",
			fmt.Errorf("%w: %v", common.ErrRemoteConnection, err))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, common.NewRemoteError(
			"failed to read server response",
			"",
			fmt.Errorf("%w: %v", common.ErrRemoteConnection, err))
	}

	return body, resp.StatusCode, nil
}

// normalizeError converts a non-2xx response into the single structured
// failure shape. The server-supplied message wins when present; otherwise
// a fixed fallback per status is used.
func (c *Client) normalizeError(status int, body []byte) error {
	var remote errorResponse
	_ = json.Unmarshal(body, &remote) // best effort; fall back to status text

	kind := kindForStatus(status)
	if remote.Error != "" {
		kind = kindForCode(remote.Error)
	}

	message := remote.Message
	if message == "" {
		message = fallbackMessage(status)
	}

	return common.NewRemoteError(message, kind, fmt.Errorf("server returned status %d", status))
}

func kindForStatus(status int) common.ErrorKind {
	switch status {
	case http.StatusBadRequest:
		return common.KindInvalidData
	case http.StatusNotFound:
		return common.KindNotFound
	case http.StatusConflict:
		return common.KindVersionConflict
	case http.StatusInternalServerError:
		return common.KindInternalError
	default:
		return ""
	}
}

func kindForCode(code string) common.ErrorKind {
	switch code {
	case "INVALID_DATA":
		return common.KindInvalidData
	case "VERSION_CONFLICT":
		return common.KindVersionConflict
	case "NOT_FOUND":
		return common.KindNotFound
	case "INTERNAL_ERROR":
		return common.KindInternalError
	default:
		return ""
	}
}

func fallbackMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "the server rejected the data as invalid"
	case http.StatusNotFound:
		return "the requested resource was not found"
	case http.StatusConflict:
		return "the remote data has changed since your last pull"
	case http.StatusInternalServerError:
		return "the server encountered an internal error"
	default:
		return fmt.Sprintf("unexpected server response (status %d)", status)
	}
}
