package history

import (
	"context"
	"sync"

	"github.com/varkai/chatflow/types"
)

// MemoryStore is an in-memory snapshot store. Suitable for tests and for
// single-process sessions that do not need durability.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]types.ChatMessage
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string][]types.ChatMessage)}
}

func (s *MemoryStore) Save(_ context.Context, threadID string, msgs []types.ChatMessage) error {
	cp := make([]types.ChatMessage, len(msgs))
	copy(cp, msgs)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[threadID] = cp
	return nil
}

func (s *MemoryStore) Load(_ context.Context, threadID string) ([]types.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, ok := s.snapshots[threadID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]types.ChatMessage, len(msgs))
	copy(cp, msgs)
	return cp, nil
}

func (s *MemoryStore) Delete(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, threadID)
	return nil
}

func (s *MemoryStore) Threads(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.snapshots))
	for id := range s.snapshots {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryStore) Close() error { return nil }
