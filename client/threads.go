// Package client provides the HTTP client for the platform's thread API:
// creating a thread on the first turn, refreshing its query on follow-up
// turns, and reading it back for history hydration.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/varkai/chatflow/internal/httputil"
	"github.com/varkai/chatflow/types"
)

// Config holds the thread API client configuration.
type Config struct {
	// BaseURL is the platform root, e.g. "https://platform.example.com".
	BaseURL string
	// APIKey is sent as a bearer token when set.
	APIKey string
	// TeamID scopes every thread operation to one workflow team.
	TeamID int64
	// Timeout bounds each unary call.
	Timeout time.Duration
}

// Threads is the thread API client. Update calls are cancelable through
// their context; the orchestrator shares one turn-scoped context between the
// update call and the stream so a single cancel stops both.
type Threads struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewThreads creates a thread API client.
func NewThreads(cfg Config, logger *zap.Logger) *Threads {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Threads{
		cfg:    cfg,
		client: httputil.RequestClient(timeout),
		logger: logger.With(zap.String("component", "threads_client")),
	}
}

// Create persists a new thread titled by the first turn's query and returns
// the server-assigned thread. A failure here is fatal to the turn: the
// caller must not proceed to streaming.
func (t *Threads) Create(ctx context.Context, req types.ThreadCreate) (*types.Thread, error) {
	var thread types.Thread
	url := fmt.Sprintf("%s/api/v1/teams/%d/threads", t.cfg.BaseURL, t.cfg.TeamID)
	if err := t.do(ctx, http.MethodPost, url, req, &thread); err != nil {
		return nil, types.NewError(types.ErrThreadCreate, "failed to create thread").WithCause(err)
	}
	t.logger.Debug("thread created", zap.String("thread_id", thread.ID))
	return &thread, nil
}

// Update refreshes the thread's query (its title and search key) for a
// follow-up turn.
func (t *Threads) Update(ctx context.Context, threadID string, req types.ThreadUpdate) (*types.Thread, error) {
	var thread types.Thread
	url := fmt.Sprintf("%s/api/v1/teams/%d/threads/%s", t.cfg.BaseURL, t.cfg.TeamID, threadID)
	if err := t.do(ctx, http.MethodPut, url, req, &thread); err != nil {
		return nil, types.NewError(types.ErrThreadUpdate, "failed to update thread").WithCause(err)
	}
	return &thread, nil
}

// Read fetches a thread with its ordered message history for hydration.
func (t *Threads) Read(ctx context.Context, threadID string) (*types.Thread, error) {
	var thread types.Thread
	url := fmt.Sprintf("%s/api/v1/teams/%d/threads/%s", t.cfg.BaseURL, t.cfg.TeamID, threadID)
	if err := t.do(ctx, http.MethodGet, url, nil, &thread); err != nil {
		return nil, types.NewError(types.ErrThreadNotFound, "failed to read thread").WithCause(err)
	}
	return &thread, nil
}

func (t *Threads) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apiError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// apiError extracts the backend's {"detail": "..."} error body.
func apiError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Detail string `json:"detail"`
	}
	msg := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &body); err == nil && body.Detail != "" {
		msg = body.Detail
	}
	return types.NewError(types.ErrUpstreamError, msg).
		WithHTTPStatus(resp.StatusCode).
		WithRetryable(resp.StatusCode >= 500)
}
