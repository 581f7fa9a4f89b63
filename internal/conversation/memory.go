package conversation

import (
	"context"
	"sync"
)

// MemoryStore keeps threads for the lifetime of the process.
type MemoryStore struct {
	mu          sync.RWMutex
	threads     map[string][]Message
	maxMessages int
}

// NewMemoryStore keeps at most maxMessages per thread; zero means unbounded.
func NewMemoryStore(maxMessages int) *MemoryStore {
	return &MemoryStore{
		threads:     make(map[string][]Message),
		maxMessages: maxMessages,
	}
}

func (s *MemoryStore) History(_ context.Context, threadID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.threads[threadID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) Append(_ context.Context, threadID string, msgs ...Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread := append(s.threads[threadID], msgs...)
	s.threads[threadID] = append([]Message(nil), Tail(thread, s.maxMessages)...)
	return nil
}

func (s *MemoryStore) Reset(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.threads, threadID)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
