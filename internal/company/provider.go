package company

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("company: not found")

// Provider supplies company records to the billing core. The core never
// writes companies; CRUD belongs to the account-management surface.
type Provider interface {
	GetCompany(ctx context.Context, workspaceID, companyID string) (Company, error)
}

// MemoryProvider is a simple in-memory provider useful for tests and early
// development.
type MemoryProvider struct {
	mu        sync.RWMutex
	companies map[string]Company
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{companies: make(map[string]Company)}
}

func (p *MemoryProvider) Put(c Company) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.companies[c.WorkspaceID+"/"+c.ID] = c
}

func (p *MemoryProvider) GetCompany(ctx context.Context, workspaceID, companyID string) (Company, error) {
	_ = ctx
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.companies[workspaceID+"/"+companyID]
	if !ok {
		return Company{}, ErrNotFound
	}
	return c, nil
}
