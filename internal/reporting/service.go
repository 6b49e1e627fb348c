package reporting

import (
	"context"
	"errors"
	"time"

	"campaign-billing/internal/deposit"
	"campaign-billing/internal/invoice"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// Implementations must enforce workspace filtering and should read from
// immutable sources where possible (issuance history, deposit ledger).
type Repository interface {
	ListInvoiceRequests(ctx context.Context, workspaceID string, from, to time.Time, companyID string) ([]invoice.InvoiceRequest, error)
	ListDepositLedger(ctx context.Context, workspaceID string, from, to time.Time, accountID string) ([]deposit.Ledger, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) InvoiceSummary(ctx context.Context, req InvoiceSummaryRequest) (InvoiceSummary, error) {
	if req.WorkspaceID == "" {
		return InvoiceSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return InvoiceSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return InvoiceSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListInvoiceRequests(ctx, req.WorkspaceID, req.Range.From, req.Range.To, req.CompanyID)
	if err != nil {
		return InvoiceSummary{}, err
	}

	out := InvoiceSummary{WorkspaceID: req.WorkspaceID, CompanyID: req.CompanyID}
	for _, r := range rows {
		out.TotalRequests++
		switch r.Status {
		case invoice.StatusPending:
			out.PendingRequests++
		case invoice.StatusIssued:
			out.IssuedRequests++
			out.IssuedAmountMinor += r.AmountMinor
		case invoice.StatusCancelled:
			out.CancelledRequests++
			// The issuance stays on the books; the cancellation carries the
			// negating amount.
			out.IssuedAmountMinor += r.AmountMinor
			if r.Cancellation != nil {
				out.CancelledAmountMinor += r.Cancellation.AmountMinor
			}
		}
		if len(r.Issuances) > 1 {
			out.ReissuedRequests++
		}
	}
	out.NetAmountMinor = out.IssuedAmountMinor + out.CancelledAmountMinor
	return out, nil
}

func (s *Service) Receivables(ctx context.Context, req ReceivablesRequest) (ReceivablesReport, error) {
	if req.WorkspaceID == "" {
		return ReceivablesReport{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return ReceivablesReport{}, errors.New("reporting: repository not configured")
	}

	// Receivables are a point-in-time view, not ranged.
	rows, err := s.repo.ListInvoiceRequests(ctx, req.WorkspaceID, time.Time{}, time.Time{}, req.CompanyID)
	if err != nil {
		return ReceivablesReport{}, err
	}

	out := ReceivablesReport{WorkspaceID: req.WorkspaceID}
	for _, r := range rows {
		if r.Status != invoice.StatusIssued || !r.IsPrepaid || r.IsDepositConfirmed {
			continue
		}
		line := ReceivableLine{
			InvoiceRequestID: r.ID,
			CompanyID:        r.CompanyID,
			AmountMinor:      r.AmountMinor,
			Currency:         r.Currency,
		}
		if r.IssuedAt != nil {
			line.IssuedAt = *r.IssuedAt
		}
		out.Lines = append(out.Lines, line)
		out.OutstandingMinor += r.AmountMinor
	}
	return out, nil
}

func (s *Service) DepositFlow(ctx context.Context, req DepositFlowRequest) (DepositFlowSummary, error) {
	if req.WorkspaceID == "" {
		return DepositFlowSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return DepositFlowSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return DepositFlowSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListDepositLedger(ctx, req.WorkspaceID, req.Range.From, req.Range.To, req.AccountID)
	if err != nil {
		return DepositFlowSummary{}, err
	}

	out := DepositFlowSummary{WorkspaceID: req.WorkspaceID, AccountID: req.AccountID, Currency: req.Currency}
	for _, e := range rows {
		if req.Currency != "" && e.Currency != req.Currency {
			continue
		}
		if out.Currency == "" {
			out.Currency = e.Currency
		}
		switch e.Type {
		case deposit.EntryTypeDeposit:
			out.DepositedMinor += e.AmountMinor
		case deposit.EntryTypeSettlement:
			out.SettledMinor += e.AmountMinor
		case deposit.EntryTypeRefund:
			out.RefundedMinor += e.AmountMinor
		case deposit.EntryTypeAdjustment:
			out.AdjustedMinor += e.AmountMinor
		}
		out.NetDeltaMinor += e.AmountMinor
	}
	return out, nil
}
