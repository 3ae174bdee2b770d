// Package transcript maintains the ordered transcript of a conversation and
// reconciles incoming stream deltas against it.
//
// The merge rule is the crux of correct streaming text: deltas sharing one id
// concatenate into a single logical message, and a switch to a new id always
// opens a new message, never a correction of a prior one.
package transcript

import "github.com/varkai/chatflow/types"

// Apply merges a delta into the transcript and returns the resulting
// transcript. The input slice is never mutated; renderers holding the prior
// slice never observe a partial merge.
//
// The lookup scans from the most recent message backward, since deltas almost
// always target the newest open message.
func Apply(msgs []types.ChatMessage, delta types.ChatMessage) []types.ChatMessage {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].ID != delta.ID {
			continue
		}
		out := make([]types.ChatMessage, len(msgs))
		copy(out, msgs)
		merged := out[i]
		// Streaming tokens concatenate; tool output arrives as a single
		// delta and is replaced wholesale.
		merged.Content += delta.Content
		merged.ToolOutput = delta.ToolOutput
		out[i] = merged
		return out
	}

	out := make([]types.ChatMessage, len(msgs), len(msgs)+1)
	copy(out, msgs)
	return append(out, delta)
}
