package reporting

import (
	"context"
	"time"

	"campaign-billing/internal/deposit"
	"campaign-billing/internal/invoice"
)

// StoreRepo adapts the billing store and deposit service as a reporting
// source, filtering in memory. Fine at campaign-billing volumes; a dedicated
// SQL reporting repo can replace it without touching the service.
type StoreRepo struct {
	Store   invoice.Store
	Deposit *deposit.Service
}

func NewStoreRepo(store invoice.Store, dep *deposit.Service) *StoreRepo {
	return &StoreRepo{Store: store, Deposit: dep}
}

func (r *StoreRepo) ListInvoiceRequests(ctx context.Context, workspaceID string, from, to time.Time, companyID string) ([]invoice.InvoiceRequest, error) {
	rows, err := r.Store.List(ctx, workspaceID, invoice.FilterAll)
	if err != nil {
		return nil, err
	}
	out := make([]invoice.InvoiceRequest, 0, len(rows))
	for _, req := range rows {
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

func (r *StoreRepo) ListDepositLedger(ctx context.Context, workspaceID string, from, to time.Time, accountID string) ([]deposit.Ledger, error) {
	// Deposit flow reports through this adapter are per-account.
	if accountID == "" {
		return nil, deposit.ErrInvalidArgument
	}
	rows, err := r.Deposit.ListLedger(ctx, workspaceID, accountID, 500)
	if err != nil {
		return nil, err
	}
	out := make([]deposit.Ledger, 0, len(rows))
	for _, e := range rows {
		if e.CreatedAt.Before(from) || !e.CreatedAt.Before(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
