package deposit

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// NOTE: This repository assumes the following tables exist:
// - deposit_accounts
// - deposit_ledger (immutable append-only)
// - deposit_balances (projection)
// - admin_deposit_actions
//
// It also assumes an idempotency constraint:
// UNIQUE (account_id, idempotency_key)

func lockAccount(ctx context.Context, tx *sql.Tx, workspaceID, accountID string) (Account, error) {
	// Lock the account row to serialize concurrent money operations.
	const q = `
SELECT id, workspace_id, company_id, currency, status, created_at, updated_at
FROM deposit_accounts
WHERE workspace_id = $1 AND id = $2
FOR UPDATE
`
	var a Account
	if err := tx.QueryRowContext(ctx, q, workspaceID, accountID).Scan(
		&a.ID,
		&a.WorkspaceID,
		&a.CompanyID,
		&a.Currency,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

const balanceColumns = `workspace_id, account_id, currency, balance_minor, updated_at`

func scanBalance(row *sql.Row) (Balance, error) {
	var b Balance
	if err := row.Scan(
		&b.WorkspaceID,
		&b.AccountID,
		&b.Currency,
		&b.BalanceMinor,
		&b.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Balance{}, ErrNotFound
		}
		return Balance{}, err
	}
	return b, nil
}

func getBalance(ctx context.Context, db *sql.DB, workspaceID, accountID string) (Balance, error) {
	const q = `
SELECT ` + balanceColumns + `
FROM deposit_balances
WHERE workspace_id = $1 AND account_id = $2
`
	return scanBalance(db.QueryRowContext(ctx, q, workspaceID, accountID))
}

func getBalanceTx(ctx context.Context, tx *sql.Tx, workspaceID, accountID string) (Balance, error) {
	const q = `
SELECT ` + balanceColumns + `
FROM deposit_balances
WHERE workspace_id = $1 AND account_id = $2
`
	return scanBalance(tx.QueryRowContext(ctx, q, workspaceID, accountID))
}

func getBalanceForUpdate(ctx context.Context, tx *sql.Tx, workspaceID, accountID string) (Balance, error) {
	const q = `
SELECT ` + balanceColumns + `
FROM deposit_balances
WHERE workspace_id = $1 AND account_id = $2
FOR UPDATE
`
	return scanBalance(tx.QueryRowContext(ctx, q, workspaceID, accountID))
}

const ledgerColumns = `id, workspace_id, account_id, type, amount_minor, currency, external_ref, idempotency_key, metadata, created_at`

func findLedgerByIdempotency(ctx context.Context, tx *sql.Tx, workspaceID, accountID, key string) (Ledger, bool, error) {
	const q = `
SELECT ` + ledgerColumns + `
FROM deposit_ledger
WHERE workspace_id = $1 AND account_id = $2 AND idempotency_key = $3
LIMIT 1
`
	var e Ledger
	err := tx.QueryRowContext(ctx, q, workspaceID, accountID, key).Scan(
		&e.ID,
		&e.WorkspaceID,
		&e.AccountID,
		&e.Type,
		&e.AmountMinor,
		&e.Currency,
		&e.ExternalRef,
		&e.IdempotencyKey,
		&e.Metadata,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Ledger{}, false, nil
		}
		return Ledger{}, false, err
	}
	return e, true, nil
}

func insertLedger(ctx context.Context, tx *sql.Tx, e Ledger) error {
	const q = `
INSERT INTO deposit_ledger (` + ledgerColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`
	_, err := tx.ExecContext(ctx, q,
		e.ID,
		e.WorkspaceID,
		e.AccountID,
		e.Type,
		e.AmountMinor,
		e.Currency,
		e.ExternalRef,
		e.IdempotencyKey,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}

func selectLedger(ctx context.Context, db *sql.DB, workspaceID, accountID string, limit int) ([]Ledger, error) {
	const q = `
SELECT ` + ledgerColumns + `
FROM deposit_ledger
WHERE workspace_id = $1 AND account_id = $2
ORDER BY created_at DESC
LIMIT $3
`
	rows, err := db.QueryContext(ctx, q, workspaceID, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ledger
	for rows.Next() {
		var e Ledger
		if err := rows.Scan(
			&e.ID,
			&e.WorkspaceID,
			&e.AccountID,
			&e.Type,
			&e.AmountMinor,
			&e.Currency,
			&e.ExternalRef,
			&e.IdempotencyKey,
			&e.Metadata,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func applyBalanceDelta(ctx context.Context, tx *sql.Tx, workspaceID, accountID, currency string, deltaMinor int64, now time.Time) (Balance, error) {
	// Upsert the projection row. Currency stays stable; the account lock plus
	// the service-level currency check prevent mismatches.
	const q = `
INSERT INTO deposit_balances (workspace_id, account_id, currency, balance_minor, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (workspace_id, account_id)
DO UPDATE SET balance_minor = deposit_balances.balance_minor + EXCLUDED.balance_minor,
              updated_at = EXCLUDED.updated_at
RETURNING ` + balanceColumns + `
`
	return scanBalance(tx.QueryRowContext(ctx, q, workspaceID, accountID, currency, deltaMinor, now))
}

func insertAdminAction(ctx context.Context, tx *sql.Tx, a AdminAction) error {
	const q = `
INSERT INTO admin_deposit_actions (
  id, workspace_id, account_id, admin_user_id, admin_role, reason,
  amount_minor, currency, related_ledger_id, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
`
	_, err := tx.ExecContext(ctx, q,
		a.ID,
		a.WorkspaceID,
		a.AccountID,
		a.AdminUserID,
		a.AdminRole,
		a.Reason,
		a.AmountMinor,
		a.Currency,
		a.RelatedLedgerID,
		a.Metadata,
		a.CreatedAt,
	)
	return err
}

func findAdminActionByLedger(ctx context.Context, tx *sql.Tx, workspaceID, accountID, ledgerID string) (AdminAction, bool, error) {
	const q = `
SELECT id, workspace_id, account_id, admin_user_id, admin_role, reason,
       amount_minor, currency, related_ledger_id, metadata, created_at
FROM admin_deposit_actions
WHERE workspace_id = $1 AND account_id = $2 AND related_ledger_id = $3
LIMIT 1
`
	var a AdminAction
	err := tx.QueryRowContext(ctx, q, workspaceID, accountID, ledgerID).Scan(
		&a.ID,
		&a.WorkspaceID,
		&a.AccountID,
		&a.AdminUserID,
		&a.AdminRole,
		&a.Reason,
		&a.AmountMinor,
		&a.Currency,
		&a.RelatedLedgerID,
		&a.Metadata,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AdminAction{}, false, nil
		}
		return AdminAction{}, false, err
	}
	return a, true, nil
}
