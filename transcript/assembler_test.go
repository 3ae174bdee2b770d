package transcript

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/varkai/chatflow/types"
)

func TestApply_AppendsUnknownID(t *testing.T) {
	tests := []struct {
		name string
		seed []types.ChatMessage
	}{
		{name: "empty transcript", seed: nil},
		{name: "single message", seed: []types.ChatMessage{{ID: "m1", Content: "hi"}}},
		{
			name: "many messages",
			seed: []types.ChatMessage{
				{ID: "m1", Content: "a"},
				{ID: "m2", Content: "b"},
				{ID: "m3", Content: "c"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta := types.ChatMessage{ID: "fresh", Type: types.MessageTypeAI, Content: "new"}
			out := Apply(tt.seed, delta)
			require.Len(t, out, len(tt.seed)+1)
			assert.Equal(t, delta, out[len(out)-1])
		})
	}
}

func TestApply_ConcatenatesSharedID(t *testing.T) {
	var msgs []types.ChatMessage
	for _, chunk := range []string{"a", "b", "c"} {
		msgs = Apply(msgs, types.ChatMessage{ID: "m1", Type: types.MessageTypeAI, Content: chunk})
	}
	require.Len(t, msgs, 1)
	assert.Equal(t, "abc", msgs[0].Content)
}

func TestApply_ToolOutputOverwrites(t *testing.T) {
	msgs := Apply(nil, types.ChatMessage{ID: "m1", Type: types.MessageTypeTool, ToolOutput: `{"x":1}`})
	msgs = Apply(msgs, types.ChatMessage{ID: "m1", ToolOutput: `{"x":2}`})
	require.Len(t, msgs, 1)
	assert.Equal(t, `{"x":2}`, msgs[0].ToolOutput)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	orig := []types.ChatMessage{{ID: "m1", Content: "hi"}}
	out := Apply(orig, types.ChatMessage{ID: "m1", Content: " there"})
	assert.Equal(t, "hi", orig[0].Content, "input transcript must stay intact")
	assert.Equal(t, "hi there", out[0].Content)
}

func TestApply_StreamScenario(t *testing.T) {
	// Scenario from the protocol contract: two interleaved messages where the
	// second closes the first.
	deltas := []types.ChatMessage{
		{ID: "m1", Type: types.MessageTypeAI, Content: "Hi"},
		{ID: "m1", Content: " there"},
		{ID: "m2", Type: types.MessageTypeTool, ToolOutput: `{"x":1}`},
	}
	var msgs []types.ChatMessage
	for _, d := range deltas {
		msgs = Apply(msgs, d)
	}
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hi there", msgs[0].Content)
	assert.Equal(t, `{"x":1}`, msgs[1].ToolOutput)
	assert.Equal(t, types.MessageTypeTool, msgs[1].Type)
}

func TestApply_ContentConcatenationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chunks := rapid.SliceOfN(rapid.String(), 1, 20).Draw(t, "chunks")
		var msgs []types.ChatMessage
		for _, c := range chunks {
			msgs = Apply(msgs, types.ChatMessage{ID: "m1", Content: c})
		}
		require.Len(t, msgs, 1)
		assert.Equal(t, strings.Join(chunks, ""), msgs[0].Content)
	})
}

func TestApply_NewIDAlwaysAppendsOneProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 50).Draw(t, "n")
		var msgs []types.ChatMessage
		for i := 0; i < n; i++ {
			msgs = Apply(msgs, types.ChatMessage{ID: fmt.Sprintf("m%d", i), Content: "x"})
		}
		require.Len(t, msgs, n)
		msgs = Apply(msgs, types.ChatMessage{ID: "outside", Content: "y"})
		assert.Len(t, msgs, n+1)
	})
}
