package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/varkai/chatflow/types"
)

func sseServer(t *testing.T, events []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, ev := range events {
			w.Write([]byte(ev))
			flusher.Flush()
		}
	}))
}

func newTestClient(url string) *Client {
	return NewClient(Config{BaseURL: url, TeamID: 7}, zap.NewNop())
}

func collect(t *testing.T, s *Stream) []types.ChatMessage {
	t.Helper()
	var out []types.ChatMessage
	for {
		delta, err := s.Recv()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, *delta)
	}
}

func TestStream_RecvInArrivalOrder(t *testing.T) {
	server := sseServer(t, []string{
		"data: {\"id\":\"m1\",\"type\":\"ai\",\"name\":\"planner\",\"content\":\"Hi\"}\n\n",
		"data: {\"id\":\"m1\",\"content\":\" there\"}\n\n",
		"data: {\"id\":\"m2\",\"type\":\"tool\",\"tool_output\":\"{\\\"x\\\":1}\"}\n\n",
	})
	defer server.Close()

	s, err := newTestClient(server.URL).Open(context.Background(), "th-1", &types.TurnInput{})
	require.NoError(t, err)
	defer s.Close()

	deltas := collect(t, s)
	require.Len(t, deltas, 3)
	assert.Equal(t, "Hi", deltas[0].Content)
	assert.Equal(t, " there", deltas[1].Content)
	assert.Equal(t, `{"x":1}`, deltas[2].ToolOutput)
}

func TestStream_SkipsEventAndCommentLines(t *testing.T) {
	server := sseServer(t, []string{
		"event: message\n",
		": keepalive\n\n",
		"data: {\"id\":\"m1\",\"content\":\"ok\"}\n\n",
	})
	defer server.Close()

	s, err := newTestClient(server.URL).Open(context.Background(), "th-1", &types.TurnInput{})
	require.NoError(t, err)
	defer s.Close()

	deltas := collect(t, s)
	require.Len(t, deltas, 1)
	assert.Equal(t, "ok", deltas[0].Content)
}

func TestStream_DropsMalformedEvent(t *testing.T) {
	server := sseServer(t, []string{
		"data: {not json}\n\n",
		"data: {\"id\":\"m1\",\"content\":\"survives\"}\n\n",
	})
	defer server.Close()

	s, err := newTestClient(server.URL).Open(context.Background(), "th-1", &types.TurnInput{})
	require.NoError(t, err)
	defer s.Close()

	deltas := collect(t, s)
	require.Len(t, deltas, 1, "one bad event must not kill the rest of the stream")
	assert.Equal(t, "survives", deltas[0].Content)
}

func TestStream_DoneSentinelEndsStream(t *testing.T) {
	server := sseServer(t, []string{
		"data: {\"id\":\"m1\",\"content\":\"a\"}\n\n",
		"data: [DONE]\n\n",
		"data: {\"id\":\"m2\",\"content\":\"never seen\"}\n\n",
	})
	defer server.Close()

	s, err := newTestClient(server.URL).Open(context.Background(), "th-1", &types.TurnInput{})
	require.NoError(t, err)
	defer s.Close()

	deltas := collect(t, s)
	require.Len(t, deltas, 1)
}

func TestStream_OpenFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"Validation Error"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Open(context.Background(), "th-1", &types.TurnInput{})
	require.Error(t, err)
	assert.Equal(t, types.ErrStreamOpen, types.GetErrorCode(err))
}

func TestStream_CancellationReleasesRecv(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	s, err := newTestClient(server.URL).Open(ctx, "th-1", &types.TurnInput{})
	require.NoError(t, err)
	defer s.Close()

	done := make(chan error, 1)
	go func() {
		_, err := s.Recv()
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled) || err == io.EOF,
			"cancellation must release the blocked reader, got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("Recv did not return after cancellation")
	}
}

func TestStream_RequestBodyCarriesTurnInput(t *testing.T) {
	var got types.TurnInput
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	in := &types.TurnInput{
		Messages:  []types.ChatMessage{types.NewHumanMessage("id-1", "user", "approved")},
		Interrupt: &types.InterruptState{Decision: types.DecisionApproved},
	}
	s, err := newTestClient(server.URL).Open(context.Background(), "th-1", in)
	require.NoError(t, err)
	s.Close()

	require.Len(t, got.Messages, 1)
	require.NotNil(t, got.Interrupt)
	assert.Equal(t, types.DecisionApproved, got.Interrupt.Decision)
}
