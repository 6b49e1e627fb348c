package reporting

import (
	"context"
	"testing"
	"time"

	"campaign-billing/internal/deposit"
	"campaign-billing/internal/invoice"
)

func ts(day int) time.Time {
	return time.Date(2025, 6, day, 12, 0, 0, 0, time.UTC)
}

func issuedAt(day int) *time.Time {
	t := ts(day)
	return &t
}

func seededRepo() *MemoryRepo {
	repo := NewMemoryRepo()
	repo.Requests = []invoice.InvoiceRequest{
		{
			ID: "inv-1", WorkspaceID: "ws-1", CompanyID: "comp-a",
			AmountMinor: 3_300_000, Currency: "KRW",
			Status: invoice.StatusIssued, IsDepositConfirmed: true,
			IssuedAt:  issuedAt(2),
			Issuances: []invoice.Issuance{{Seq: 1, ConfirmationID: "c1"}},
			CreatedAt: ts(1),
		},
		{
			ID: "inv-2", WorkspaceID: "ws-1", CompanyID: "comp-a",
			AmountMinor: 1_100_000, Currency: "KRW",
			Status: invoice.StatusIssued, IsPrepaid: true,
			IssuedAt:  issuedAt(3),
			Issuances: []invoice.Issuance{{Seq: 1, ConfirmationID: "c2"}, {Seq: 2, ConfirmationID: "c3"}},
			CreatedAt: ts(2),
		},
		{
			ID: "inv-3", WorkspaceID: "ws-1", CompanyID: "comp-b",
			AmountMinor: 2_200_000, Currency: "KRW",
			Status:       invoice.StatusCancelled,
			Issuances:    []invoice.Issuance{{Seq: 1, ConfirmationID: "c4"}},
			Cancellation: &invoice.Cancellation{AmountMinor: -2_200_000},
			CreatedAt:    ts(3),
		},
		{
			ID: "inv-4", WorkspaceID: "ws-1", CompanyID: "comp-b",
			AmountMinor: 550_000, Currency: "KRW",
			Status:    invoice.StatusPending,
			CreatedAt: ts(4),
		},
		{
			ID: "inv-other", WorkspaceID: "ws-2", CompanyID: "comp-x",
			AmountMinor: 9_000_000, Currency: "KRW",
			Status:    invoice.StatusIssued,
			CreatedAt: ts(2),
		},
	}
	repo.Ledgers = []deposit.Ledger{
		{WorkspaceID: "ws-1", AccountID: "acc-1", Type: deposit.EntryTypeDeposit, AmountMinor: 5_000_000, Currency: "KRW", CreatedAt: ts(1)},
		{WorkspaceID: "ws-1", AccountID: "acc-1", Type: deposit.EntryTypeSettlement, AmountMinor: -3_300_000, Currency: "KRW", CreatedAt: ts(2)},
		{WorkspaceID: "ws-1", AccountID: "acc-1", Type: deposit.EntryTypeRefund, AmountMinor: 2_200_000, Currency: "KRW", CreatedAt: ts(3)},
		{WorkspaceID: "ws-2", AccountID: "acc-x", Type: deposit.EntryTypeDeposit, AmountMinor: 1_000_000, Currency: "KRW", CreatedAt: ts(2)},
	}
	return repo
}

func TestInvoiceSummary(t *testing.T) {
	svc := NewService(seededRepo())

	out, err := svc.InvoiceSummary(context.Background(), InvoiceSummaryRequest{
		WorkspaceID: "ws-1",
		Range:       TimeRange{From: ts(1), To: ts(30)},
	})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if out.TotalRequests != 4 {
		t.Fatalf("expected 4 requests, got %d", out.TotalRequests)
	}
	if out.IssuedRequests != 2 || out.CancelledRequests != 1 || out.PendingRequests != 1 {
		t.Fatalf("unexpected status counts: %+v", out)
	}
	if out.IssuedAmountMinor != 3_300_000+1_100_000+2_200_000 {
		t.Fatalf("unexpected issued amount: %d", out.IssuedAmountMinor)
	}
	if out.CancelledAmountMinor != -2_200_000 {
		t.Fatalf("unexpected cancelled amount: %d", out.CancelledAmountMinor)
	}
	if out.NetAmountMinor != 4_400_000 {
		t.Fatalf("unexpected net amount: %d", out.NetAmountMinor)
	}
	if out.ReissuedRequests != 1 {
		t.Fatalf("expected 1 reissued request, got %d", out.ReissuedRequests)
	}
}

func TestInvoiceSummaryRejectsInvalidRange(t *testing.T) {
	svc := NewService(seededRepo())
	_, err := svc.InvoiceSummary(context.Background(), InvoiceSummaryRequest{
		WorkspaceID: "ws-1",
		Range:       TimeRange{From: ts(5), To: ts(5)},
	})
	if err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestReceivables(t *testing.T) {
	svc := NewService(seededRepo())

	out, err := svc.Receivables(context.Background(), ReceivablesRequest{WorkspaceID: "ws-1"})
	if err != nil {
		t.Fatalf("receivables: %v", err)
	}
	if len(out.Lines) != 1 || out.Lines[0].InvoiceRequestID != "inv-2" {
		t.Fatalf("expected only the unpaid prepaid invoice, got %+v", out.Lines)
	}
	if out.OutstandingMinor != 1_100_000 {
		t.Fatalf("unexpected outstanding amount: %d", out.OutstandingMinor)
	}
}

func TestDepositFlow(t *testing.T) {
	svc := NewService(seededRepo())

	out, err := svc.DepositFlow(context.Background(), DepositFlowRequest{
		WorkspaceID: "ws-1",
		Range:       TimeRange{From: ts(1), To: ts(30)},
	})
	if err != nil {
		t.Fatalf("flow: %v", err)
	}
	if out.DepositedMinor != 5_000_000 || out.SettledMinor != -3_300_000 || out.RefundedMinor != 2_200_000 {
		t.Fatalf("unexpected flow: %+v", out)
	}
	if out.NetDeltaMinor != 3_900_000 {
		t.Fatalf("unexpected net delta: %d", out.NetDeltaMinor)
	}
	if out.Currency != "KRW" {
		t.Fatalf("expected inferred currency KRW, got %q", out.Currency)
	}
}

func TestWorkspaceIsolation(t *testing.T) {
	svc := NewService(seededRepo())

	out, err := svc.InvoiceSummary(context.Background(), InvoiceSummaryRequest{
		WorkspaceID: "ws-2",
		Range:       TimeRange{From: ts(1), To: ts(30)},
	})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if out.TotalRequests != 1 {
		t.Fatalf("expected only ws-2 rows, got %d", out.TotalRequests)
	}
}
