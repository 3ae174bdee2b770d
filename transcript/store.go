package transcript

import (
	"sync"

	"github.com/varkai/chatflow/types"
)

// Store is the ground-truth transcript for one active thread. All mutations
// go through Apply or Append and are expressed as pure transformations of the
// prior message slice, so a snapshot handed out earlier is never mutated
// underneath its holder.
type Store struct {
	mu   sync.RWMutex
	msgs []types.ChatMessage
}

// NewStore creates an empty transcript store.
func NewStore() *Store {
	return &Store{}
}

// Apply reconciles a delta into the transcript.
func (s *Store) Apply(delta types.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = Apply(s.msgs, delta)
}

// Append adds a message verbatim without merge lookup. Used for locally
// authored messages (user input, synthetic notices) whose ids are fresh.
func (s *Store) Append(msg types.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ChatMessage, len(s.msgs), len(s.msgs)+1)
	copy(out, s.msgs)
	s.msgs = append(out, msg)
}

// Messages returns the current transcript snapshot. The returned slice is
// immutable under the copy-on-write discipline.
func (s *Store) Messages() []types.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.msgs
}

// Last returns the most recent message, if any.
func (s *Store) Last() (types.ChatMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.msgs) == 0 {
		return types.ChatMessage{}, false
	}
	return s.msgs[len(s.msgs)-1], true
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}

// Reset clears the transcript, e.g. before hydrating another thread.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = nil
}
