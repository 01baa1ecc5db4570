package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tyreaid/roadaid/core/model"
)

// MemoryStore keeps requests in process memory. Each record carries its own
// mutex, so transitions on unrelated requests never contend; the map-level
// lock only guards lookup and insert.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*entry
}

type entry struct {
	mu  sync.Mutex
	req model.ServiceRequest
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]*entry)}
}

// Create persists a new request, rejecting duplicates and invalid records.
func (s *MemoryStore) Create(ctx context.Context, req model.ServiceRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[req.ID]; exists {
		return fmt.Errorf("store: duplicate request id %s", req.ID)
	}
	s.data[req.ID] = &entry{req: req}
	return nil
}

func (s *MemoryStore) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[id]
	return e, ok
}

// Get returns a copy of the stored request.
func (s *MemoryStore) Get(ctx context.Context, id string) (model.ServiceRequest, error) {
	if err := ctx.Err(); err != nil {
		return model.ServiceRequest{}, err
	}
	e, ok := s.lookup(id)
	if !ok {
		return model.ServiceRequest{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.req, nil
}

// ListByStatus returns requests in the given status, oldest first.
func (s *MemoryStore) ListByStatus(ctx context.Context, st model.Status) ([]model.ServiceRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var res []model.ServiceRequest
	for _, e := range s.entries() {
		e.mu.Lock()
		if e.req.Status == st {
			res = append(res, e.req)
		}
		e.mu.Unlock()
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

// ListByClaimant returns the provider's claimed requests, newest first.
func (s *MemoryStore) ListByClaimant(ctx context.Context, providerID string) ([]model.ServiceRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var res []model.ServiceRequest
	for _, e := range s.entries() {
		e.mu.Lock()
		if e.req.ClaimantID == providerID {
			res = append(res, e.req)
		}
		e.mu.Unlock()
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (s *MemoryStore) entries() []*entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]*entry, 0, len(s.data))
	for _, e := range s.data {
		res = append(res, e)
	}
	return res
}

// Transition performs the compare-and-swap described by the RequestStore
// contract. The record mutex makes the check-and-commit a single step: the
// loser of a race observes the winner's committed state, never a torn write.
func (s *MemoryStore) Transition(ctx context.Context, id string, from, to model.Status, claimantID string, at time.Time) (model.ServiceRequest, error) {
	if err := ctx.Err(); err != nil {
		return model.ServiceRequest{}, err
	}
	e, ok := s.lookup(id)
	if !ok {
		return model.ServiceRequest{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.req.Status != from {
		return model.ServiceRequest{}, &ConflictError{Current: e.req.Status, ClaimantID: e.req.ClaimantID}
	}

	next := e.req
	next.Status = to
	switch {
	case to == model.StatusAccepted:
		next.ClaimantID = claimantID
		next.AcceptedAt = at
	case to.Terminal():
		next.ClosedAt = at
	}
	if err := next.Validate(); err != nil {
		return model.ServiceRequest{}, err
	}
	e.req = next
	return next, nil
}
