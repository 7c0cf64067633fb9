package audit

import (
	"context"
	"sync"
	"time"

	"polyrec.org/internal/ids"
)

// InMemory keeps audit entries in process. Used by tests and DSN-less runs.
type InMemory struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *InMemory) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Entry
	for i := len(s.entries) - 1; i >= 0 && len(res) < limit; i-- {
		res = append(res, s.entries[i])
	}
	return res, nil
}
