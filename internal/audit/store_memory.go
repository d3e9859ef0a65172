package audit

import (
	"context"
	"sync"
)

// MemoryStore keeps the message trail in process memory. Suitable for tests
// and single-instance deployments that do not need a durable trail.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListByTransaction(ctx context.Context, txnID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if e.TransactionID == txnID {
			out = append(out, e)
		}
	}
	return out, nil
}
