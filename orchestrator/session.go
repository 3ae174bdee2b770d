// Package orchestrator drives the streaming conversation protocol: it
// resolves the thread for a turn, opens the SSE stream while racing the
// thread-update call, folds arriving deltas into the transcript, exposes the
// interrupt/resume contract, and supports user cancellation of an in-flight
// turn.
package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/varkai/chatflow/history"
	"github.com/varkai/chatflow/internal/metrics"
	"github.com/varkai/chatflow/interrupt"
	"github.com/varkai/chatflow/stream"
	"github.com/varkai/chatflow/transcript"
	"github.com/varkai/chatflow/types"
)

var (
	// ErrTurnInFlight is returned when a turn is submitted while another is
	// still streaming. Submissions are rejected, not queued.
	ErrTurnInFlight = errors.New("orchestrator: a turn is already in flight")
	// ErrEmptyInput is returned for a turn with no messages.
	ErrEmptyInput = errors.New("orchestrator: turn input has no messages")
	// ErrNoPendingInterrupt is returned by Resume when the transcript does
	// not end in an interrupt-shaped message.
	ErrNoPendingInterrupt = errors.New("orchestrator: no pending interrupt to resume")
	// ErrNoThread is returned by Hydrate before any thread exists.
	ErrNoThread = errors.New("orchestrator: session has no thread")
)

// defaultCancelNotice is the synthetic system message appended when the user
// aborts a turn. It is an ordinary ai message, deliberately distinct from a
// backend interrupt, and carries no resumable state.
const defaultCancelNotice = "turn interrupted by user"

// ThreadService is the thread lifecycle boundary.
type ThreadService interface {
	Create(ctx context.Context, req types.ThreadCreate) (*types.Thread, error)
	Update(ctx context.Context, threadID string, req types.ThreadUpdate) (*types.Thread, error)
	Read(ctx context.Context, threadID string) (*types.Thread, error)
}

// DeltaStream is a finite sequence of message deltas for one turn.
type DeltaStream interface {
	Recv() (*types.ChatMessage, error)
	Close() error
}

// StreamOpener opens the SSE stream for one turn.
type StreamOpener interface {
	Open(ctx context.Context, threadID string, in *types.TurnInput) (DeltaStream, error)
}

type streamClientOpener struct {
	c *stream.Client
}

func (o streamClientOpener) Open(ctx context.Context, threadID string, in *types.TurnInput) (DeltaStream, error) {
	s, err := o.c.Open(ctx, threadID, in)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewStreamOpener adapts a stream.Client to the StreamOpener boundary.
func NewStreamOpener(c *stream.Client) StreamOpener {
	return streamClientOpener{c: c}
}

// Session owns one conversation context: the thread reference, the
// transcript, and the state of the turn in flight. It replaces what the web
// client kept in ambient global stores with one explicit, injectable object;
// single-writer semantics per conversation are preserved because at most one
// turn streams at a time.
type Session struct {
	threads ThreadService
	stream  StreamOpener
	store   *transcript.Store
	history history.Store
	metrics *metrics.Collector
	logger  *zap.Logger
	tracer  trace.Tracer

	nodes        []transcript.Node
	onDelta      func(types.ChatMessage)
	onNode       func(nodeID, producer string)
	userName     string
	cancelNotice string

	mu         sync.Mutex
	threadID   string
	busy       bool
	streaming  bool
	canceled   bool
	cancelTurn context.CancelFunc
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithThreadID resumes an existing conversation instead of creating a new
// thread on the first turn.
func WithThreadID(id string) Option {
	return func(s *Session) { s.threadID = id }
}

// WithHistory snapshots the transcript to store whenever a turn settles, and
// lets Hydrate fall back to the local snapshot when the backend is
// unreachable.
func WithHistory(store history.Store) Option {
	return func(s *Session) { s.history = store }
}

// WithMetrics registers turn metrics against reg (nil for the default
// registerer).
func WithMetrics(namespace string, reg prometheus.Registerer) Option {
	return func(s *Session) { s.metrics = metrics.NewCollector(namespace, reg) }
}

// WithNodes supplies the workflow graph nodes used for producer attribution.
func WithNodes(nodes []transcript.Node) Option {
	return func(s *Session) { s.nodes = nodes }
}

// WithDeltaHandler observes every delta applied to the transcript, in
// arrival order.
func WithDeltaHandler(fn func(types.ChatMessage)) Option {
	return func(s *Session) { s.onDelta = fn }
}

// WithNodeHandler observes node attribution hits for UI highlighting.
func WithNodeHandler(fn func(nodeID, producer string)) Option {
	return func(s *Session) { s.onNode = fn }
}

// WithUserName sets the name recorded on human messages. Defaults to "user".
func WithUserName(name string) Option {
	return func(s *Session) { s.userName = name }
}

// WithCancelNotice overrides the synthetic cancellation message text, e.g.
// for localization.
func WithCancelNotice(text string) Option {
	return func(s *Session) { s.cancelNotice = text }
}

// NewSession creates a session over the given thread and stream boundaries.
func NewSession(threads ThreadService, opener StreamOpener, opts ...Option) *Session {
	s := &Session{
		threads:      threads,
		stream:       opener,
		store:        transcript.NewStore(),
		logger:       zap.NewNop(),
		tracer:       otel.Tracer("github.com/varkai/chatflow/orchestrator"),
		userName:     "user",
		cancelNotice: defaultCancelNotice,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "session"))
	return s
}

// ThreadID returns the adopted thread id, empty before the first turn.
func (s *Session) ThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID
}

// Streaming reports whether a turn is in flight and abortable. UIs disable
// the input surface while this is true.
func (s *Session) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// Transcript returns the current transcript snapshot.
func (s *Session) Transcript() []types.ChatMessage {
	return s.store.Messages()
}

// PendingInterrupt describes a paused turn awaiting a human decision.
type PendingInterrupt struct {
	Kind    interrupt.Kind
	Message types.ChatMessage
}

// Pending returns the interrupt awaiting a decision, or nil. The state is
// derived from the transcript, not stored: it exists exactly while the last
// message is interrupt-shaped.
func (s *Session) Pending() *PendingInterrupt {
	last, ok := s.store.Last()
	if !ok {
		return nil
	}
	kind, ok := interrupt.Classify(last)
	if !ok {
		return nil
	}
	return &PendingInterrupt{Kind: kind, Message: last}
}

// Hydrate replays the thread's persisted history through the assembler,
// replacing the current transcript. When the backend read fails and a local
// snapshot exists, the snapshot is used instead.
func (s *Session) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrTurnInFlight
	}
	threadID := s.threadID
	s.mu.Unlock()
	if threadID == "" {
		return ErrNoThread
	}

	thread, err := s.threads.Read(ctx, threadID)
	if err != nil {
		if s.history != nil {
			if msgs, herr := s.history.Load(ctx, threadID); herr == nil {
				s.logger.Warn("thread read failed, hydrating from local snapshot", zap.Error(err))
				s.replay(msgs)
				return nil
			}
		}
		return err
	}

	s.replay(thread.Messages)
	s.logger.Debug("thread hydrated",
		zap.String("thread_id", threadID),
		zap.Int("messages", s.store.Len()))
	return nil
}

func (s *Session) replay(msgs []types.ChatMessage) {
	s.store.Reset()
	for _, msg := range msgs {
		s.store.Apply(msg)
	}
}
