package pool

import (
	"context"
	"sort"
	"sync"
	"time"

	"firegate/internal/domain"
	"firegate/pkg/platform/sentinel"
)

// MemoryStore keeps pool entries in a map guarded by a mutex.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemory creates an empty in-memory pool store.
func NewMemory() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

func (s *MemoryStore) Add(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[e.FirefighterID]; exists {
		return sentinel.ErrConflict
	}
	cp := e.Clone()
	if cp.State == "" {
		cp.State = StateFree
	}
	s.entries[e.FirefighterID] = cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, firefighterID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[firefighterID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return e.Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirefighterID < out[j].FirefighterID })
	return out, nil
}

func (s *MemoryStore) Reserve(ctx context.Context, targetSystem string, tier domain.Tier, window domain.Window, holder string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Deterministic tie-break: lowest firefighter ID among eligible.
	var ids []string
	for id, e := range s.entries {
		if e.State == StateFree && e.TargetSystem == targetSystem && e.Tier.AtLeast(tier) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, sentinel.ErrNoCapacity
	}
	sort.Strings(ids)

	e := s.entries[ids[0]]
	e.State = StateReserved
	e.HeldBy = holder
	e.ReservedWindow = window
	return e.Clone(), nil
}

func (s *MemoryStore) Activate(ctx context.Context, firefighterID, holder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[firefighterID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if e.State == StateActive && e.HeldBy == holder {
		return nil
	}
	if e.State != StateReserved || e.HeldBy != holder {
		return sentinel.ErrInvalidState
	}
	e.State = StateActive
	return nil
}

func (s *MemoryStore) Deactivate(ctx context.Context, firefighterID, holder string, cooldownUntil time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[firefighterID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if e.State == StateCoolingDown {
		return nil
	}
	if e.State != StateActive || e.HeldBy != holder {
		return sentinel.ErrInvalidState
	}
	e.State = StateCoolingDown
	e.HeldBy = ""
	e.ReservedWindow = domain.Window{}
	e.CooldownUntil = cooldownUntil
	return nil
}

func (s *MemoryStore) Release(ctx context.Context, firefighterID, holder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[firefighterID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if e.State == StateFree {
		return nil
	}
	if e.State != StateReserved || e.HeldBy != holder {
		return sentinel.ErrInvalidState
	}
	e.State = StateFree
	e.HeldBy = ""
	e.ReservedWindow = domain.Window{}
	return nil
}

func (s *MemoryStore) SweepCooldown(ctx context.Context, now time.Time) ([]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var freed []*Entry
	for _, e := range s.entries {
		if e.State == StateCoolingDown && !e.CooldownUntil.After(now) {
			e.State = StateFree
			e.CooldownUntil = time.Time{}
			freed = append(freed, e.Clone())
		}
	}
	sort.Slice(freed, func(i, j int) bool { return freed[i].FirefighterID < freed[j].FirefighterID })
	return freed, nil
}
