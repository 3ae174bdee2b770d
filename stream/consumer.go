// Package stream opens the POST-initiated SSE connection for one turn and
// exposes the server's events as a pull-based sequence of message deltas.
//
// The consumer does no transcript reconciliation itself: deltas are handed
// to the caller strictly in arrival order, never reordered or batched. SSE
// preserves send order on the underlying byte stream.
package stream

import (
	"bufio"
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

// Config holds the stream transport configuration.
type Config struct {
	// BaseURL is the platform root, e.g. "https://platform.example.com".
	BaseURL string
	// APIKey is sent as a bearer token when set.
	APIKey string
	// TeamID selects the agent graph the turn runs against.
	TeamID int64
	// OpenTimeout bounds connection establishment only; the open stream has
	// no deadline and lives until the turn ends or is canceled.
	OpenTimeout time.Duration
}

// Client opens turn streams.
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewClient creates a stream client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:    cfg,
		client: httputil.StreamingClient(cfg.OpenTimeout),
		logger: logger.With(zap.String("component", "stream_consumer")),
	}
}

// Open starts exactly one SSE connection for the turn. The returned stream
// is bound to ctx: canceling it closes the underlying transport, so a reader
// blocked in Recv is released. A non-2xx response fails the open and the
// turn; no stream is returned.
func (c *Client) Open(ctx context.Context, threadID string, in *types.TurnInput) (*Stream, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "encode turn input").WithCause(err)
	}

	url := fmt.Sprintf("%s/api/v1/teams/%d/stream/%s", c.cfg.BaseURL, c.cfg.TeamID, threadID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrStreamOpen, "build stream request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrStreamOpen, "open stream").WithCause(err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, types.NewError(types.ErrStreamOpen, strings.TrimSpace(string(data))).
			WithHTTPStatus(resp.StatusCode).
			WithRetryable(resp.StatusCode >= 500)
	}

	c.logger.Debug("stream opened", zap.String("thread_id", threadID))
	return &Stream{body: resp.Body, reader: bufio.NewReader(resp.Body), logger: c.logger}, nil
}

// Stream is a finite, non-restartable sequence of message deltas read off
// one SSE connection.
type Stream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	logger *zap.Logger
}

// Recv blocks until the next delta arrives and returns it. It returns io.EOF
// on a normal end of stream. A malformed event is dropped with a logged
// warning rather than terminating the sequence: one bad event must not kill
// the rest of the stream. Context cancellation surfaces as an error wrapping
// context.Canceled; the caller decides that cancellation is not a failure.
func (s *Stream) Recv() (*types.ChatMessage, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, err
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "event:") || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return nil, io.EOF
		}

		var delta types.ChatMessage
		if err := json.Unmarshal([]byte(data), &delta); err != nil {
			s.logger.Warn("dropping malformed stream event", zap.Error(err))
			continue
		}
		return &delta, nil
	}
}

// Close tears down the underlying transport. Safe to call after the stream
// has ended; the orchestrator always closes so no socket outlives the turn.
func (s *Stream) Close() error {
	return s.body.Close()
}
