package taxauthority

import (
	"context"
	"errors"
	"fmt"
)

// Gateway is the provider-agnostic interface to the e-invoicing authority.
//
// Rules:
// - No authority SDK/HTTP calls outside this package.
// - A negative issuance is non-retractable: once the authority confirms it,
//   there is no compensating call. Callers must validate preconditions before
//   submitting, not after.
// - An ambiguous outcome (request possibly delivered, response lost) is
//   reported as ErrAmbiguousOutcome, never as a clean failure.
type Gateway interface {
	Name() string
	HealthCheck(ctx context.Context) error

	Issue(ctx context.Context, req IssueRequest) (IssueResult, error)
	NegativeIssue(ctx context.Context, req NegativeIssueRequest) (NegativeIssueResult, error)

	// QuerySubmission asks the authority whether a previously submitted
	// document was accepted. Used to reconcile ambiguous outcomes.
	QuerySubmission(ctx context.Context, req QueryRequest) (QueryResult, error)
}

// Snapshot carries the company billing fields frozen at issuance time.
type Snapshot struct {
	LegalName        string `json:"legal_name"`
	BusinessNumber   string `json:"business_number"`
	Representative   string `json:"representative,omitempty"`
	Email            string `json:"email"`
	Phone            string `json:"phone,omitempty"`
	Address          string `json:"address,omitempty"`
	BusinessType     string `json:"business_type,omitempty"`
	BusinessCategory string `json:"business_category,omitempty"`
}

// IssueRequest submits a tax invoice for issuance.
type IssueRequest struct {
	WorkspaceID string `json:"workspace_id"`

	// DocumentKey is the caller-chosen idempotent key for this submission
	// (the invoice request id plus attempt ordinal). The authority rejects a
	// duplicate key rather than issuing twice.
	DocumentKey string `json:"document_key"`

	Snapshot    Snapshot `json:"snapshot"`
	AmountMinor int64    `json:"amount_minor"`
	Currency    string   `json:"currency"`
}

type IssueResult struct {
	// ConfirmationID is the authority's confirmation number for the issued
	// invoice.
	ConfirmationID string `json:"confirmation_id"`
}

// NegativeIssueRequest submits a negative (modified) invoice cancelling a
// previously issued one.
type NegativeIssueRequest struct {
	WorkspaceID string `json:"workspace_id"`
	DocumentKey string `json:"document_key"`

	// OriginalConfirmationID identifies the invoice being cancelled.
	OriginalConfirmationID string `json:"original_confirmation_id"`

	// AmountMinor must be the exact negation of the original amount.
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`

	ModifyCode ModifyCode `json:"modify_code"`
	Reason     string     `json:"reason,omitempty"`
}

type NegativeIssueResult struct {
	ConfirmationID string `json:"confirmation_id"`
}

type QueryRequest struct {
	WorkspaceID string `json:"workspace_id"`
	DocumentKey string `json:"document_key"`
}

type QueryResult struct {
	// Found reports whether the authority accepted a submission under the
	// document key.
	Found          bool   `json:"found"`
	ConfirmationID string `json:"confirmation_id,omitempty"`
}

// ModifyCode is the authority's fixed reason-code taxonomy for negative
// issuance.
type ModifyCode string

const (
	ModifyCodeClerical           ModifyCode = "01" // clerical correction
	ModifyCodePriceChange        ModifyCode = "02" // price change
	ModifyCodeReturn             ModifyCode = "03" // return
	ModifyCodeTermination        ModifyCode = "04" // contract termination
	ModifyCodeRetroactiveCredit  ModifyCode = "05" // retroactive credit-note opening
	ModifyCodeDuplicateIssuance  ModifyCode = "06" // erroneous duplicate issuance
)

func (m ModifyCode) Valid() bool {
	switch m {
	case ModifyCodeClerical, ModifyCodePriceChange, ModifyCodeReturn,
		ModifyCodeTermination, ModifyCodeRetroactiveCredit, ModifyCodeDuplicateIssuance:
		return true
	default:
		return false
	}
}

// ProviderError is a definitive rejection from the authority. The raw code
// and message are preserved so operators can decide between retry, force, and
// manual intervention.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("taxauthority: provider rejected submission (code=%s): %s", e.Code, e.Message)
}

// ErrAmbiguousOutcome means the submission may or may not have reached the
// authority; the outcome must be established via QuerySubmission before any
// further transition.
var ErrAmbiguousOutcome = errors.New("taxauthority: submission outcome unknown")
