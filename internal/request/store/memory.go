package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"firegate/internal/domain"
	"firegate/internal/request/models"
	"firegate/pkg/platform/sentinel"
)

// MemoryStore keeps requests in a map guarded by a RWMutex. Reads return
// deep copies so callers never alias stored state.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]*models.AccessRequest
	seq      uint64
}

// NewMemory creates an empty in-memory request store.
func NewMemory() *MemoryStore {
	return &MemoryStore{requests: make(map[string]*models.AccessRequest)}
}

func (s *MemoryStore) NextID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return domain.FormatRequestID(s.seq), nil
}

func (s *MemoryStore) Create(ctx context.Context, req *models.AccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; exists {
		return sentinel.ErrConflict
	}
	s.requests[req.ID] = req.Clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return req.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, req *models.AccessRequest, expected domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.requests[req.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if cur.Status != expected {
		return sentinel.ErrConflict
	}
	s.requests[req.ID] = req.Clone()
	return nil
}

func (s *MemoryStore) AppendDecision(ctx context.Context, id string, d models.Decision) (*models.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if cur.Status.IsTerminal() {
		return nil, sentinel.ErrInvalidState
	}
	cur.Decisions = append(cur.Decisions, d)
	return cur.Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context, f Filter) ([]*models.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.AccessRequest
	for _, req := range s.requests {
		if f.Status != "" && req.Status != f.Status {
			continue
		}
		if f.Requester != "" && req.Requester != f.Requester {
			continue
		}
		if f.Approver != "" && !awaitsApprover(req, f.Approver) {
			continue
		}
		out = append(out, req.Clone())
	}
	sortByCreation(out)
	return out, nil
}

func (s *MemoryStore) ListActivationDue(ctx context.Context, now time.Time) ([]*models.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.AccessRequest
	for _, req := range s.requests {
		if req.Status == domain.StatusApproved && req.FirefighterID != "" &&
			!req.ProvisioningFailed && !req.Window.Start.After(now) {
			out = append(out, req.Clone())
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *MemoryStore) ListExpiryDue(ctx context.Context, now time.Time) ([]*models.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.AccessRequest
	for _, req := range s.requests {
		if req.Status == domain.StatusActive && !req.Window.End.After(now) {
			out = append(out, req.Clone())
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *MemoryStore) ListAwaitingCapacity(ctx context.Context, targetSystem string) ([]*models.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.AccessRequest
	for _, req := range s.requests {
		if req.AwaitingCapacity && req.TargetSystem == targetSystem &&
			req.Status == domain.StatusPendingApproval {
			out = append(out, req.Clone())
		}
	}
	sortByCreation(out)
	return out, nil
}

// awaitsApprover reports whether the request's pending manager step is
// addressed to the given actor. Role-based steps (controller, security
// review) are matched by the transport layer against role membership,
// which the directory owns.
func awaitsApprover(req *models.AccessRequest, approver string) bool {
	if req.Status != domain.StatusPendingApproval {
		return false
	}
	if req.SubjectManager != approver {
		return false
	}
	_, decided := req.DecisionFor(domain.StepManagerApproval)
	return !decided
}

func sortByCreation(reqs []*models.AccessRequest) {
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].ID < reqs[j].ID
		}
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
}
