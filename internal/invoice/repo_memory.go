package invoice

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store useful for tests and early development.
// It is not intended for production; see the Postgres implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]InvoiceRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]InvoiceRequest)}
}

func key(workspaceID, id string) string { return workspaceID + "/" + id }

func (s *MemoryStore) Create(ctx context.Context, r InvoiceRequest) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[key(r.WorkspaceID, r.ID)]; ok {
		return ErrAlreadyExists
	}
	s.rows[key(r.WorkspaceID, r.ID)] = clone(r)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, workspaceID, id string) (InvoiceRequest, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[key(workspaceID, id)]
	if !ok {
		return InvoiceRequest{}, ErrNotFound
	}
	return clone(r), nil
}

func (s *MemoryStore) Update(ctx context.Context, r InvoiceRequest) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[key(r.WorkspaceID, r.ID)]; !ok {
		return ErrNotFound
	}
	s.rows[key(r.WorkspaceID, r.ID)] = clone(r)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, workspaceID string, f Filter) ([]InvoiceRequest, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []InvoiceRequest
	for _, r := range s.rows {
		if r.WorkspaceID != workspaceID {
			continue
		}
		if !matches(r, f) {
			continue
		}
		out = append(out, clone(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func matches(r InvoiceRequest, f Filter) bool {
	switch f {
	case FilterPending:
		return r.Status == StatusPending
	case FilterIssued:
		return r.Status == StatusIssued
	case FilterPrepaid:
		return r.Status == StatusIssued && r.IsPrepaid
	default:
		return true
	}
}

// clone deep-copies a record so callers cannot mutate stored state.
func clone(r InvoiceRequest) InvoiceRequest {
	out := r
	if r.Issuances != nil {
		out.Issuances = make([]Issuance, len(r.Issuances))
		copy(out.Issuances, r.Issuances)
	}
	if r.Cancellation != nil {
		c := *r.Cancellation
		out.Cancellation = &c
	}
	if r.PendingSubmission != nil {
		p := *r.PendingSubmission
		out.PendingSubmission = &p
	}
	return out
}
