package reporting

import (
	"context"
	"errors"
	"sync"
	"time"

	"campaign-billing/internal/deposit"
	"campaign-billing/internal/invoice"
)

// MemoryRepo is a simple in-memory reporting repository for tests and early
// development. It enforces workspace isolation on reads.
type MemoryRepo struct {
	mu sync.Mutex

	Requests []invoice.InvoiceRequest
	Ledgers  []deposit.Ledger
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListInvoiceRequests(ctx context.Context, workspaceID string, from, to time.Time, companyID string) ([]invoice.InvoiceRequest, error) {
	_ = ctx
	if workspaceID == "" {
		return nil, errors.New("workspace_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]invoice.InvoiceRequest, 0)
	for _, req := range r.Requests {
		if req.WorkspaceID != workspaceID {
			continue
		}
		if !from.IsZero() && !to.IsZero() {
			if req.CreatedAt.Before(from) || !req.CreatedAt.Before(to) {
				continue
			}
		}
		if companyID != "" && req.CompanyID != companyID {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

func (r *MemoryRepo) ListDepositLedger(ctx context.Context, workspaceID string, from, to time.Time, accountID string) ([]deposit.Ledger, error) {
	_ = ctx
	if workspaceID == "" {
		return nil, errors.New("workspace_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]deposit.Ledger, 0)
	for _, l := range r.Ledgers {
		if l.WorkspaceID != workspaceID {
			continue
		}
		if !l.CreatedAt.IsZero() {
			if l.CreatedAt.Before(from) || !l.CreatedAt.Before(to) {
				continue
			}
		}
		if accountID != "" && l.AccountID != accountID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}
