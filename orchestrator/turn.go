package orchestrator

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/varkai/chatflow/internal/metrics"
	"github.com/varkai/chatflow/interrupt"
	"github.com/varkai/chatflow/transcript"
	"github.com/varkai/chatflow/types"
)

// snapshotTimeout bounds the post-turn history write so a slow store cannot
// hold the turn slot.
const snapshotTimeout = 5 * time.Second

// SendText submits a plain text turn. Image data, when present, rides on the
// same human message.
func (s *Session) SendText(ctx context.Context, text string, imageData string) error {
	msg := types.NewHumanMessage("", s.userName, text)
	if imageData != "" {
		msg = msg.WithImage(imageData)
	}
	return s.Send(ctx, &types.TurnInput{Messages: []types.ChatMessage{msg}})
}

// Send runs one full turn: resolve the thread (create on the first turn,
// update concurrently with streaming on later turns), open the delta stream,
// and fold deltas into the transcript until the stream ends, fails, or the
// user cancels. Only one turn runs at a time; concurrent submissions get
// ErrTurnInFlight.
func (s *Session) Send(ctx context.Context, in *types.TurnInput) error {
	if in == nil || len(in.Messages) == 0 {
		return ErrEmptyInput
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrTurnInFlight
	}
	s.busy = true
	s.canceled = false
	s.mu.Unlock()

	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "chatflow.turn")
	err := s.runTurn(ctx, in)

	s.mu.Lock()
	canceled := s.canceled
	s.canceled = false
	s.cancelTurn = nil
	s.streaming = false
	threadID := s.threadID
	s.busy = false
	s.mu.Unlock()

	result := metrics.ResultCompleted
	switch {
	case canceled:
		result = metrics.ResultCanceled
	case err != nil:
		result = metrics.ResultFailed
	}
	s.metrics.ObserveTurn(result, time.Since(start))
	span.SetAttributes(
		attribute.String("chatflow.thread_id", threadID),
		attribute.String("chatflow.turn.result", result),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	if pending := s.Pending(); pending != nil {
		s.metrics.IncInterrupt(pending.Kind.String())
		s.logger.Info("turn paused on interrupt", zap.String("kind", pending.Kind.String()))
	}
	s.snapshot(threadID)
	return err
}

func (s *Session) runTurn(ctx context.Context, in *types.TurnInput) error {
	human := in.Messages[0]
	if human.ID == "" {
		human.ID = uuid.NewString()
	}
	if human.Type == "" {
		human.Type = types.MessageTypeHuman
	}
	if human.Name == "" {
		human.Name = s.userName
	}
	query := human.Content

	s.mu.Lock()
	threadID := s.threadID
	s.mu.Unlock()

	// First turn creates the thread and carries the query with it. A create
	// failure is fatal for the turn: there is nothing to stream against.
	created := false
	if threadID == "" {
		thread, err := s.threads.Create(ctx, types.ThreadCreate{Query: query})
		if err != nil {
			return err
		}
		threadID = thread.ID
		created = true
		s.mu.Lock()
		s.threadID = threadID
		s.mu.Unlock()
		s.logger.Info("thread created", zap.String("thread_id", threadID))
	}

	s.store.Append(human)
	if s.onDelta != nil {
		s.onDelta(human)
	}

	send := &types.TurnInput{Messages: []types.ChatMessage{human}, Interrupt: in.Interrupt}

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := s.stream.Open(turnCtx, threadID, send)
	if err != nil {
		return err
	}

	// Arm the turn-scoped cancellation token. Cancel aborts both the stream
	// and the in-flight update through this one handle.
	s.mu.Lock()
	s.cancelTurn = cancel
	s.streaming = true
	s.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error {
		defer st.Close()
		return s.consume(st)
	})
	g.Go(func() error {
		if created {
			// The create call already carried this turn's query.
			return nil
		}
		if _, uerr := s.threads.Update(turnCtx, threadID, types.ThreadUpdate{Query: query}); uerr != nil {
			// Update failures never fail the turn: the stream result is
			// what the user sees.
			s.logger.Warn("thread update failed",
				zap.String("thread_id", threadID),
				zap.Error(uerr))
		}
		return nil
	})
	return g.Wait()
}

// consume drains the stream, folding each delta into the transcript. A
// stream torn down by cancellation is a clean end, not a failure.
func (s *Session) consume(st DeltaStream) error {
	for {
		delta, err := st.Recv()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if errors.Is(err, context.Canceled) || s.isCanceled() {
				return nil
			}
			return types.NewError(types.ErrStreamBroken, "stream terminated unexpectedly").WithCause(err)
		}
		s.applyDelta(*delta)
	}
}

func (s *Session) applyDelta(delta types.ChatMessage) {
	s.mu.Lock()
	if s.canceled {
		// Cancellation is terminal for the turn. A straggler delta that
		// raced the abort must not land after the cancellation notice.
		s.mu.Unlock()
		return
	}
	s.store.Apply(delta)
	s.mu.Unlock()

	s.metrics.IncDelta()
	if s.onDelta != nil {
		s.onDelta(delta)
	}
	if s.onNode != nil {
		if nodeID, ok := transcript.Attribute(s.nodes, delta.Name); ok {
			s.onNode(nodeID, delta.Name)
		}
	}
}

// Cancel aborts the turn in flight: the shared token tears down the stream
// and the update call, and exactly one synthetic notice is appended to the
// transcript. Calling Cancel with no turn in flight, or twice for the same
// turn, is a no-op.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.cancelTurn == nil || s.canceled {
		s.mu.Unlock()
		return
	}
	s.canceled = true
	s.streaming = false
	cancel := s.cancelTurn
	s.store.Append(types.ChatMessage{
		ID:      uuid.NewString(),
		Type:    types.MessageTypeAI,
		Name:    "system",
		Content: s.cancelNotice,
	})
	s.mu.Unlock()

	cancel()
	s.metrics.IncCancellation()
	s.logger.Info("turn canceled by user")
}

func (s *Session) isCanceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}

// Resume answers the pending interrupt with the given decision and resumes
// the paused run as a new turn on the same thread.
func (s *Session) Resume(ctx context.Context, decision types.Decision, payload any) error {
	pending := s.Pending()
	if pending == nil {
		return ErrNoPendingInterrupt
	}
	in, err := interrupt.BuildResume(pending.Kind, decision, payload)
	if err != nil {
		return err
	}
	return s.Send(ctx, in)
}

func (s *Session) snapshot(threadID string) {
	if s.history == nil || threadID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	if err := s.history.Save(ctx, threadID, s.store.Messages()); err != nil {
		s.logger.Warn("transcript snapshot failed",
			zap.String("thread_id", threadID),
			zap.Error(err))
	}
}
