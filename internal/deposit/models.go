package deposit

import "time"

// Account is a company-scoped deposit account funded by bank transfers.
// Invariant: the available balance is derived from immutable ledger entries.
// No code may move money without writing a corresponding ledger entry.
type Account struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`
	CompanyID   string `json:"company_id" db:"company_id"`
	Currency    string `json:"currency" db:"currency"`

	Status AccountStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusDisabled AccountStatus = "disabled"
)

// Ledger is an immutable append-only entry. Deposits and refunds are
// positive, settlements are negative.
type Ledger struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`
	AccountID   string `json:"account_id" db:"account_id"`

	Type EntryType `json:"type" db:"type"`

	AmountMinor int64  `json:"amount_minor" db:"amount_minor"`
	Currency    string `json:"currency" db:"currency"`

	// ExternalRef ties the entry to its cause: a bank transfer reference for
	// deposits, an invoice request id for settlements and refunds.
	ExternalRef string `json:"external_ref,omitempty" db:"external_ref"`

	// IdempotencyKey is required for safe retries of money-posting operations.
	IdempotencyKey string `json:"idempotency_key" db:"idempotency_key"`

	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EntryType string

const (
	EntryTypeDeposit    EntryType = "deposit"    // confirmed bank transfer
	EntryTypeSettlement EntryType = "settlement" // campaign payment consumed
	EntryTypeRefund     EntryType = "refund"     // cancelled campaign payment
	EntryTypeAdjustment EntryType = "adjustment" // manual finance correction
)

// AdminAction tracks privileged manual corrections. It is not the ledger:
// every admin money mutation also creates a Ledger entry.
type AdminAction struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`
	AccountID   string `json:"account_id" db:"account_id"`

	AdminUserID string `json:"admin_user_id" db:"admin_user_id"`
	AdminRole   string `json:"admin_role" db:"admin_role"`

	Reason string `json:"reason" db:"reason"`

	AmountMinor int64  `json:"amount_minor" db:"amount_minor"`
	Currency    string `json:"currency" db:"currency"`

	// RelatedLedgerID links to the adjustment entry created by the action.
	RelatedLedgerID string `json:"related_ledger_id,omitempty" db:"related_ledger_id"`

	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
