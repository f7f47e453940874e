package sessionlog

import (
	"context"
	"sync"

	"firegate/internal/domain"
)

// MemoryStore keeps category logs in nested maps guarded by a mutex.
type MemoryStore struct {
	mu   sync.RWMutex
	logs map[string]map[domain.LogCategory]*CategoryLog
}

// NewMemory creates an empty in-memory session log store.
func NewMemory() *MemoryStore {
	return &MemoryStore{logs: make(map[string]map[domain.LogCategory]*CategoryLog)}
}

func (s *MemoryStore) Save(ctx context.Context, log *CategoryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byCat, ok := s.logs[log.RequestID]
	if !ok {
		byCat = make(map[domain.LogCategory]*CategoryLog)
		s.logs[log.RequestID] = byCat
	}
	byCat[log.Category] = log.Clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, requestID string) (map[domain.LogCategory]*CategoryLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.LogCategory]*CategoryLog)
	for cat, log := range s.logs[requestID] {
		out[cat] = log.Clone()
	}
	return out, nil
}
