// Package interrupt implements the human-in-the-loop sub-protocol: it
// recognizes a paused turn, classifies which interrupt variant occurred, and
// builds the correctly shaped resume request for the next turn.
package interrupt

import (
	"encoding/json"
	"fmt"

	"github.com/varkai/chatflow/types"
)

// Kind is the closed set of interrupt variants. The backend selects the
// variant through the interrupting message's name; an unrecognized name never
// classifies, so a malformed resume cannot be produced for it.
type Kind int

const (
	// KindReply is a free-text reply request (message name "human").
	KindReply Kind = iota
	// KindApprovalGate is the generic approve/reject gate (name "interrupt").
	KindApprovalGate
	// KindToolReview reviews a pending tool call: approve, reject with
	// feedback, or replace the call's argument map (name "tool_review").
	KindToolReview
	// KindOutputReview reviews produced output: approve or send review notes
	// (name "output_review").
	KindOutputReview
	// KindContextInput supplies missing context before execution continues
	// (name "context_input").
	KindContextInput
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindReply:
		return "human"
	case KindApprovalGate:
		return "interrupt"
	case KindToolReview:
		return "tool_review"
	case KindOutputReview:
		return "output_review"
	case KindContextInput:
		return "context_input"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// InteractionType maps the kind to the backend routing discriminator. The
// reply and approval-gate variants carry none; the mapping for the rest must
// stay exact since the backend dispatches on it.
func (k Kind) InteractionType() types.InteractionType {
	switch k {
	case KindToolReview:
		return types.InteractionToolReview
	case KindOutputReview:
		return types.InteractionOutputReview
	case KindContextInput:
		return types.InteractionContextInput
	default:
		return ""
	}
}

// Classify reports whether a message represents a paused turn and which
// variant it is. Non-interrupt messages and unknown interrupt names yield
// ok=false.
func Classify(msg types.ChatMessage) (Kind, bool) {
	if msg.Type != types.MessageTypeInterrupt {
		return 0, false
	}
	switch msg.Name {
	case "human":
		return KindReply, true
	case "interrupt":
		return KindApprovalGate, true
	case "tool_review":
		return KindToolReview, true
	case "output_review":
		return KindOutputReview, true
	case "context_input":
		return KindContextInput, true
	default:
		return 0, false
	}
}

// BuildResume maps a decision and its optional payload to the next turn's
// input. The message content is the stringified payload, or the decision
// literal when no payload is supplied; the structured sidecar lets the
// backend route the resume.
//
// Payload may be nil, a string, or a JSON-marshalable value (tool-call
// argument maps for DecisionUpdate). A decision not allowed for the kind is
// rejected.
func BuildResume(kind Kind, decision types.Decision, payload any) (*types.TurnInput, error) {
	if err := validate(kind, decision, payload); err != nil {
		return nil, err
	}

	toolMessage, err := stringify(payload)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidDecision, "unencodable resume payload").WithCause(err)
	}

	content := toolMessage
	if content == "" {
		content = string(decision)
	}

	return &types.TurnInput{
		Messages: []types.ChatMessage{{Type: types.MessageTypeHuman, Content: content}},
		Interrupt: &types.InterruptState{
			Decision:        decision,
			ToolMessage:     toolMessage,
			InteractionType: kind.InteractionType(),
		},
	}, nil
}

// validate enforces the decision set of each variant exhaustively.
func validate(kind Kind, decision types.Decision, payload any) error {
	ok := false
	switch kind {
	case KindReply:
		ok = decision == types.DecisionReplied && payload != nil
	case KindApprovalGate:
		ok = decision == types.DecisionApproved || decision == types.DecisionRejected
	case KindToolReview:
		switch decision {
		case types.DecisionApproved, types.DecisionRejected:
			ok = true
		case types.DecisionUpdate:
			ok = payload != nil
		}
	case KindOutputReview:
		ok = decision == types.DecisionApproved || decision == types.DecisionReview
	case KindContextInput:
		ok = decision == types.DecisionContinue && payload != nil
	default:
		return types.NewError(types.ErrInvalidDecision, fmt.Sprintf("unknown interrupt kind %d", int(kind)))
	}
	if !ok {
		return types.NewError(types.ErrInvalidDecision,
			fmt.Sprintf("decision %q not allowed for %s interrupt", decision, kind))
	}
	return nil
}

func stringify(payload any) (string, error) {
	switch p := payload.(type) {
	case nil:
		return "", nil
	case string:
		return p, nil
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
