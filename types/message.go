// Package types provides the core wire and domain types used across chatflow.
// This package has ZERO dependencies on other chatflow packages to avoid
// circular imports. All other packages should import types from here.
package types

import (
	"encoding/json"
	"time"
)

// MessageType identifies the producer category of a transcript message.
type MessageType string

const (
	MessageTypeHuman     MessageType = "human"
	MessageTypeAI        MessageType = "ai"
	MessageTypeTool      MessageType = "tool"
	MessageTypeInterrupt MessageType = "interrupt"
)

// ToolCall represents a pending or executed tool invocation attached to a
// message. Args is the argument map as sent by the workflow engine.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Document is one retrieval hit. The wire carries documents as a
// JSON-encoded array inside ChatMessage.Documents; use ParseDocuments to
// decode it.
type Document struct {
	Score   float64 `json:"score"`
	Content string  `json:"content"`
}

// ChatMessage is one transcript entry. The same structure doubles as the
// stream delta: every field except ID is optional on the wire, and a delta
// is an incremental update to be merged, never a full replacement.
type ChatMessage struct {
	ID         string      `json:"id"`
	Type       MessageType `json:"type,omitempty"`
	Name       string      `json:"name,omitempty"`
	Content    string      `json:"content,omitempty"`
	ImageData  string      `json:"imgdata,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolOutput string      `json:"tool_output,omitempty"`
	Documents  string      `json:"documents,omitempty"`
	Next       string      `json:"next,omitempty"`
}

// ParseDocuments decodes the JSON-encoded Documents field.
func (m ChatMessage) ParseDocuments() ([]Document, error) {
	if m.Documents == "" {
		return nil, nil
	}
	var docs []Document
	if err := json.Unmarshal([]byte(m.Documents), &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// NewHumanMessage creates a user-authored message.
func NewHumanMessage(id, name, content string) ChatMessage {
	return ChatMessage{ID: id, Type: MessageTypeHuman, Name: name, Content: content}
}

// WithImage attaches inlined image data to the message.
func (m ChatMessage) WithImage(data string) ChatMessage {
	m.ImageData = data
	return m
}

// Thread is a persisted conversation owned by the backend; the client holds
// only the reference. Messages is populated on thread reads (hydration).
type Thread struct {
	ID        string        `json:"id"`
	Query     string        `json:"query,omitempty"`
	UpdatedAt time.Time     `json:"updated_at,omitempty"`
	Messages  []ChatMessage `json:"messages,omitempty"`
}

// ThreadCreate is the request body for creating a thread. Query doubles as
// the thread title and search key.
type ThreadCreate struct {
	Query string `json:"query"`
}

// ThreadUpdate is the request body for refreshing a thread's query on a
// follow-up turn.
type ThreadUpdate struct {
	Query string `json:"query"`
}

// Decision is a human verdict on a backend interrupt.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
	DecisionReplied  Decision = "replied"
	DecisionUpdate   Decision = "update"
	DecisionReview   Decision = "review"
	DecisionContinue Decision = "continue"
)

// InteractionType routes an interrupt resume on the backend. It is derived
// solely from the interrupting message's name; the generic approval gate and
// the free-text reply carry no interaction type.
type InteractionType string

const (
	InteractionToolReview   InteractionType = "tool_review"
	InteractionOutputReview InteractionType = "output_review"
	InteractionContextInput InteractionType = "context_input"
)

// InterruptState is the resume sidecar forwarded with the next turn so the
// backend can continue a paused run. It exists only between the interrupt
// message arriving and the decision being submitted.
type InterruptState struct {
	Decision        Decision        `json:"decision"`
	ToolMessage     string          `json:"tool_message,omitempty"`
	InteractionType InteractionType `json:"interaction_type,omitempty"`
}

// TurnInput is the request body for one streaming turn.
type TurnInput struct {
	Messages  []ChatMessage   `json:"messages"`
	Interrupt *InterruptState `json:"interrupt,omitempty"`
}
