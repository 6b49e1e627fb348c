package deposit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"campaign-billing/pkg/utils"

	"github.com/google/uuid"
)

// Service provides deposit account operations.
//
// Money invariants:
// - No balance updates without a ledger entry
// - Ledger is append-only (immutable)
// - All money operations run inside a DB transaction
//
// Tenancy invariant:
// - workspace_id is required and enforced in all queries
//
// Balance strategy:
// - The balance lives in a projection table (deposit_balances) updated
//   atomically alongside ledger inserts.
type Service struct {
	db *sql.DB
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, clock: time.Now}
}

type Balance struct {
	WorkspaceID  string    `json:"workspace_id"`
	AccountID    string    `json:"account_id"`
	Currency     string    `json:"currency"`
	BalanceMinor int64     `json:"balance_minor"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RecordDepositRequest credits a confirmed incoming bank transfer.
type RecordDepositRequest struct {
	AmountMinor    int64  `json:"amount_minor"`
	Currency       string `json:"currency"`
	BankRef        string `json:"bank_ref,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
	Metadata       string `json:"metadata,omitempty"`
}

// SettleRequest debits the account when a campaign payment is consumed.
type SettleRequest struct {
	AmountMinor      int64  `json:"amount_minor"`
	Currency         string `json:"currency"`
	InvoiceRequestID string `json:"invoice_request_id"`
	IdempotencyKey   string `json:"idempotency_key"`
	Metadata         string `json:"metadata,omitempty"`
}

// RefundRequest credits back a settled amount after a cancellation.
type RefundRequest struct {
	AmountMinor      int64  `json:"amount_minor"`
	Currency         string `json:"currency"`
	InvoiceRequestID string `json:"invoice_request_id"`
	IdempotencyKey   string `json:"idempotency_key"`
	Metadata         string `json:"metadata,omitempty"`
}

// AdminAdjustRequest is a manual finance correction, positive or negative.
type AdminAdjustRequest struct {
	AmountMinor    int64  `json:"amount_minor"`
	Currency       string `json:"currency"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key"`
	Metadata       string `json:"metadata,omitempty"`
}

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidArgument   = errors.New("invalid argument")
)

func (s *Service) GetBalance(ctx context.Context, workspaceID, accountID string) (Balance, error) {
	if workspaceID == "" || accountID == "" {
		return Balance{}, ErrInvalidArgument
	}
	return getBalance(ctx, s.db, workspaceID, accountID)
}

func (s *Service) RecordDeposit(ctx context.Context, workspaceID, accountID string, req RecordDepositRequest) (Ledger, Balance, error) {
	if err := validatePosting(workspaceID, accountID, req.AmountMinor, req.Currency, req.IdempotencyKey); err != nil {
		return Ledger{}, Balance{}, err
	}
	if req.AmountMinor <= 0 {
		return Ledger{}, Balance{}, ErrInvalidArgument
	}
	return s.post(ctx, workspaceID, accountID, posting{
		entryType:      EntryTypeDeposit,
		amountMinor:    req.AmountMinor,
		currency:       req.Currency,
		externalRef:    req.BankRef,
		idempotencyKey: req.IdempotencyKey,
		metadata:       req.Metadata,
	})
}

func (s *Service) Settle(ctx context.Context, workspaceID, accountID string, req SettleRequest) (Ledger, Balance, error) {
	if err := validatePosting(workspaceID, accountID, req.AmountMinor, req.Currency, req.IdempotencyKey); err != nil {
		return Ledger{}, Balance{}, err
	}
	if req.AmountMinor <= 0 || req.InvoiceRequestID == "" {
		return Ledger{}, Balance{}, ErrInvalidArgument
	}
	return s.post(ctx, workspaceID, accountID, posting{
		entryType:      EntryTypeSettlement,
		amountMinor:    -req.AmountMinor,
		currency:       req.Currency,
		externalRef:    req.InvoiceRequestID,
		idempotencyKey: req.IdempotencyKey,
		metadata:       req.Metadata,
		requireFunds:   true,
	})
}

func (s *Service) Refund(ctx context.Context, workspaceID, accountID string, req RefundRequest) (Ledger, Balance, error) {
	if err := validatePosting(workspaceID, accountID, req.AmountMinor, req.Currency, req.IdempotencyKey); err != nil {
		return Ledger{}, Balance{}, err
	}
	if req.AmountMinor <= 0 || req.InvoiceRequestID == "" {
		return Ledger{}, Balance{}, ErrInvalidArgument
	}
	return s.post(ctx, workspaceID, accountID, posting{
		entryType:      EntryTypeRefund,
		amountMinor:    req.AmountMinor,
		currency:       req.Currency,
		externalRef:    req.InvoiceRequestID,
		idempotencyKey: req.IdempotencyKey,
		metadata:       req.Metadata,
	})
}

func (s *Service) AdminAdjust(ctx context.Context, workspaceID, accountID, adminUserID, adminRole string, req AdminAdjustRequest) (AdminAction, Ledger, Balance, error) {
	if adminUserID == "" || adminRole == "" || req.Reason == "" {
		return AdminAction{}, Ledger{}, Balance{}, ErrInvalidArgument
	}
	if err := validatePosting(workspaceID, accountID, req.AmountMinor, req.Currency, req.IdempotencyKey); err != nil {
		return AdminAction{}, Ledger{}, Balance{}, err
	}

	now := s.clock().UTC()

	var outAction AdminAction
	var outLedger Ledger
	var outBal Balance

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		acc, err := lockAccount(ctx, tx, workspaceID, accountID)
		if err != nil {
			return err
		}
		if acc.Currency != req.Currency {
			return ErrInvalidArgument
		}

		if existing, ok, err := findLedgerByIdempotency(ctx, tx, workspaceID, accountID, req.IdempotencyKey); err != nil {
			return err
		} else if ok {
			outLedger = existing
			if act, ok, err := findAdminActionByLedger(ctx, tx, workspaceID, accountID, existing.ID); err != nil {
				return err
			} else if ok {
				outAction = act
			}
			outBal, err = getBalanceTx(ctx, tx, workspaceID, accountID)
			return err
		}

		if req.AmountMinor < 0 {
			b, err := getBalanceForUpdate(ctx, tx, workspaceID, accountID)
			if err != nil {
				return err
			}
			if b.BalanceMinor+req.AmountMinor < 0 {
				return ErrInsufficientFunds
			}
		}

		entry := Ledger{
			ID:             uuid.NewString(),
			WorkspaceID:    workspaceID,
			AccountID:      accountID,
			Type:           EntryTypeAdjustment,
			AmountMinor:    req.AmountMinor,
			Currency:       req.Currency,
			ExternalRef:    "admin_adjustment",
			IdempotencyKey: req.IdempotencyKey,
			Metadata:       req.Metadata,
			CreatedAt:      now,
		}
		if err := insertLedger(ctx, tx, entry); err != nil {
			return err
		}
		b, err := applyBalanceDelta(ctx, tx, workspaceID, accountID, req.Currency, req.AmountMinor, now)
		if err != nil {
			return err
		}

		action := AdminAction{
			ID:              uuid.NewString(),
			WorkspaceID:     workspaceID,
			AccountID:       accountID,
			AdminUserID:     adminUserID,
			AdminRole:       adminRole,
			Reason:          req.Reason,
			AmountMinor:     req.AmountMinor,
			Currency:        req.Currency,
			RelatedLedgerID: entry.ID,
			Metadata:        req.Metadata,
			CreatedAt:       now,
		}
		if err := insertAdminAction(ctx, tx, action); err != nil {
			return err
		}

		outAction = action
		outLedger = entry
		outBal = b
		return nil
	})

	return outAction, outLedger, outBal, err
}

// ListLedger returns the account history, newest first.
func (s *Service) ListLedger(ctx context.Context, workspaceID, accountID string, limit int) ([]Ledger, error) {
	if workspaceID == "" || accountID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return selectLedger(ctx, s.db, workspaceID, accountID, limit)
}

type posting struct {
	entryType      EntryType
	amountMinor    int64 // signed
	currency       string
	externalRef    string
	idempotencyKey string
	metadata       string
	requireFunds   bool
}

func (s *Service) post(ctx context.Context, workspaceID, accountID string, p posting) (Ledger, Balance, error) {
	now := s.clock().UTC()

	var outLedger Ledger
	var outBal Balance

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		acc, err := lockAccount(ctx, tx, workspaceID, accountID)
		if err != nil {
			return err
		}
		if acc.Currency != p.currency {
			return ErrInvalidArgument
		}

		// Safe retry: an existing entry under the key wins.
		if existing, ok, err := findLedgerByIdempotency(ctx, tx, workspaceID, accountID, p.idempotencyKey); err != nil {
			return err
		} else if ok {
			outLedger = existing
			outBal, err = getBalanceTx(ctx, tx, workspaceID, accountID)
			return err
		}

		if p.requireFunds {
			b, err := getBalanceForUpdate(ctx, tx, workspaceID, accountID)
			if err != nil {
				return err
			}
			if b.BalanceMinor+p.amountMinor < 0 {
				return ErrInsufficientFunds
			}
		}

		entry := Ledger{
			ID:             uuid.NewString(),
			WorkspaceID:    workspaceID,
			AccountID:      accountID,
			Type:           p.entryType,
			AmountMinor:    p.amountMinor,
			Currency:       p.currency,
			ExternalRef:    p.externalRef,
			IdempotencyKey: p.idempotencyKey,
			Metadata:       p.metadata,
			CreatedAt:      now,
		}
		if err := insertLedger(ctx, tx, entry); err != nil {
			return err
		}
		b, err := applyBalanceDelta(ctx, tx, workspaceID, accountID, p.currency, p.amountMinor, now)
		if err != nil {
			return err
		}
		outLedger = entry
		outBal = b
		return nil
	})

	return outLedger, outBal, err
}

func validatePosting(workspaceID, accountID string, amountMinor int64, currency, idempotencyKey string) error {
	if workspaceID == "" || accountID == "" {
		return ErrInvalidArgument
	}
	if currency == "" {
		return ErrInvalidArgument
	}
	if idempotencyKey == "" {
		return ErrInvalidArgument
	}
	if amountMinor == 0 {
		return ErrInvalidArgument
	}
	return nil
}
