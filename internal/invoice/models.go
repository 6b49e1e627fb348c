package invoice

import (
	"fmt"
	"strings"
	"time"

	"campaign-billing/internal/taxauthority"
)

// Status is the invoice request lifecycle state. Transitions are monotonic:
// pending -> issued -> cancelled. Nothing moves backwards and nothing is ever
// physically deleted; a cancellation is an additional signed event.
type Status string

const (
	StatusPending   Status = "pending"
	StatusIssued    Status = "issued"
	StatusCancelled Status = "cancelled"
)

// Operation names a state-changing provider submission.
type Operation string

const (
	OperationIssue   Operation = "issue"
	OperationReissue Operation = "reissue"
	OperationCancel  Operation = "cancel"
)

// InvoiceRequest is one billable campaign payment.
//
// Invariants:
// - AmountMinor equals a computed quote total at creation time; it is never
//   entered independently and never changes afterwards.
// - A reissue requires status issued with no cancellation.
// - A cancellation requires an existing provider confirmation id, and its
//   amount is always the exact negation of AmountMinor.
type InvoiceRequest struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`
	CompanyID   string `json:"company_id" db:"company_id"`
	CampaignID  string `json:"campaign_id,omitempty" db:"campaign_id"`

	AmountMinor int64  `json:"amount_minor" db:"amount_minor"`
	Currency    string `json:"currency" db:"currency"`

	IsDepositConfirmed bool `json:"is_deposit_confirmed" db:"is_deposit_confirmed"`

	Status Status `json:"status" db:"status"`

	// IsPrepaid is true iff issuance happened while the deposit was still
	// unconfirmed (a receivable invoice).
	IsPrepaid bool `json:"is_prepaid" db:"is_prepaid"`

	IssuedAt               *time.Time `json:"issued_at,omitempty" db:"issued_at"`
	ProviderConfirmationID string     `json:"provider_confirmation_id,omitempty" db:"provider_confirmation_id"`

	// Snapshot freezes the company billing fields at first issuance. A later
	// change to the company record never alters an issued invoice.
	Snapshot taxauthority.Snapshot `json:"invoice_snapshot" db:"-"`

	// IssuanceCount is the number of submission attempts whose document key
	// has been consumed (successful or pending). It feeds the idempotent
	// document key and never decreases.
	IssuanceCount int `json:"issuance_count" db:"issuance_count"`

	// Issuances is the append-only history of confirmed issuance attempts.
	// Reissuing never erases a prior confirmation.
	Issuances []Issuance `json:"issuances,omitempty" db:"-"`

	Cancellation *Cancellation `json:"cancellation,omitempty" db:"-"`

	// PendingSubmission is set when a provider call ended ambiguously. While
	// present, every transition on this request is refused until Reconcile
	// resolves the outcome.
	PendingSubmission *PendingSubmission `json:"pending_submission,omitempty" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Issuance is one confirmed issuance attempt.
type Issuance struct {
	Seq            int       `json:"seq" db:"seq"`
	ConfirmationID string    `json:"confirmation_id" db:"confirmation_id"`
	Forced         bool      `json:"forced" db:"forced"`
	IssuedAt       time.Time `json:"issued_at" db:"issued_at"`
}

// Cancellation is the additive negative-issuance event. The original
// issuance fields are never mutated by it.
type Cancellation struct {
	ModifyCode             taxauthority.ModifyCode `json:"modify_code" db:"modify_code"`
	Reason                 string                  `json:"reason,omitempty" db:"reason"`
	AmountMinor            int64                   `json:"amount_minor" db:"amount_minor"`
	ProviderConfirmationID string                  `json:"provider_confirmation_id" db:"provider_confirmation_id"`
	CancelledAt            time.Time               `json:"cancelled_at" db:"cancelled_at"`
}

// PendingSubmission records an in-flight submission whose outcome is unknown.
type PendingSubmission struct {
	Op          Operation               `json:"op" db:"op"`
	DocumentKey string                  `json:"document_key" db:"document_key"`
	Forced      bool                    `json:"forced" db:"forced"`
	ModifyCode  taxauthority.ModifyCode `json:"modify_code,omitempty" db:"modify_code"`
	Reason      string                  `json:"reason,omitempty" db:"reason"`
	SubmittedAt time.Time               `json:"submitted_at" db:"submitted_at"`
}

// Filter selects invoice requests for listing.
type Filter string

const (
	FilterAll     Filter = "all"
	FilterPending Filter = "pending"
	FilterIssued  Filter = "issued"
	// FilterPrepaid selects issued receivables: status issued and is_prepaid.
	FilterPrepaid Filter = "prepaid"
)

func (f Filter) Valid() bool {
	switch f {
	case FilterAll, FilterPending, FilterIssued, FilterPrepaid:
		return true
	default:
		return false
	}
}

// DocumentKey builds the idempotent submission key for an attempt ordinal.
func DocumentKey(requestID string, seq int) string {
	return fmt.Sprintf("%s/%d", requestID, seq)
}

// RequestIDFromDocumentKey recovers the request id from a document key.
func RequestIDFromDocumentKey(key string) string {
	if i := strings.LastIndex(key, "/"); i > 0 {
		return key[:i]
	}
	return key
}
