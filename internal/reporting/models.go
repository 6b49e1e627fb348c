package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// InvoiceSummaryRequest requests aggregated invoicing metrics.
// Workspace isolation: WorkspaceID is required.

type InvoiceSummaryRequest struct {
	WorkspaceID string    `json:"workspace_id"`
	Range       TimeRange `json:"range"`
	CompanyID   string    `json:"company_id,omitempty"`
}

type InvoiceSummary struct {
	WorkspaceID string `json:"workspace_id"`
	CompanyID   string `json:"company_id,omitempty"`

	TotalRequests     int `json:"total_requests"`
	PendingRequests   int `json:"pending_requests"`
	IssuedRequests    int `json:"issued_requests"`
	CancelledRequests int `json:"cancelled_requests"`

	IssuedAmountMinor    int64 `json:"issued_amount_minor"`
	CancelledAmountMinor int64 `json:"cancelled_amount_minor"`
	NetAmountMinor       int64 `json:"net_amount_minor"`

	ReissuedRequests int `json:"reissued_requests"`
}

// ReceivablesRequest lists the prepaid invoices whose deposit has not
// arrived yet: issued before the money was confirmed.

type ReceivablesRequest struct {
	WorkspaceID string `json:"workspace_id"`
	CompanyID   string `json:"company_id,omitempty"`
}

type ReceivableLine struct {
	InvoiceRequestID string    `json:"invoice_request_id"`
	CompanyID        string    `json:"company_id"`
	AmountMinor      int64     `json:"amount_minor"`
	Currency         string    `json:"currency"`
	IssuedAt         time.Time `json:"issued_at"`
}

type ReceivablesReport struct {
	WorkspaceID string `json:"workspace_id"`

	Lines            []ReceivableLine `json:"lines"`
	OutstandingMinor int64            `json:"outstanding_minor"`
}

// DepositFlowRequest requests aggregated deposit account movement. Flow is
// derived from immutable deposit ledger entries scoped to the workspace.

type DepositFlowRequest struct {
	WorkspaceID string    `json:"workspace_id"`
	Range       TimeRange `json:"range"`
	AccountID   string    `json:"account_id,omitempty"`
	Currency    string    `json:"currency,omitempty"`
}

type DepositFlowSummary struct {
	WorkspaceID string `json:"workspace_id"`
	AccountID   string `json:"account_id,omitempty"`
	Currency    string `json:"currency"`

	DepositedMinor int64 `json:"deposited_minor"`
	SettledMinor   int64 `json:"settled_minor"`
	RefundedMinor  int64 `json:"refunded_minor"`
	AdjustedMinor  int64 `json:"adjusted_minor"`
	NetDeltaMinor  int64 `json:"net_delta_minor"`
}
