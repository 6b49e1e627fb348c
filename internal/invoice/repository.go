package invoice

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"campaign-billing/internal/taxauthority"
	"campaign-billing/pkg/utils"
)

// NOTE: This store assumes the following tables exist:
// - invoice_requests (snapshot and pending_submission as JSONB)
// - invoice_issuances (immutable append-only, PRIMARY KEY (request_id, seq))
// - invoice_cancellations (at most one row per request)

// PostgresStore persists invoice requests in Postgres. Transition exclusivity
// is the Locker's job; the store only guarantees that a request and its
// issuance history change together.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, r InvoiceRequest) error {
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		return insertRequest(ctx, tx, r)
	})
}

func (s *PostgresStore) Get(ctx context.Context, workspaceID, id string) (InvoiceRequest, error) {
	r, err := selectRequest(ctx, s.db, workspaceID, id)
	if err != nil {
		return InvoiceRequest{}, err
	}
	r.Issuances, err = selectIssuances(ctx, s.db, r.ID)
	if err != nil {
		return InvoiceRequest{}, err
	}
	r.Cancellation, err = selectCancellation(ctx, s.db, r.ID)
	if err != nil {
		return InvoiceRequest{}, err
	}
	return r, nil
}

func (s *PostgresStore) Update(ctx context.Context, r InvoiceRequest) error {
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := updateRequest(ctx, tx, r); err != nil {
			return err
		}
		for _, iss := range r.Issuances {
			if err := insertIssuance(ctx, tx, r.ID, iss); err != nil {
				return err
			}
		}
		if r.Cancellation != nil {
			if err := insertCancellation(ctx, tx, r.ID, *r.Cancellation); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) List(ctx context.Context, workspaceID string, f Filter) ([]InvoiceRequest, error) {
	reqs, err := selectRequests(ctx, s.db, workspaceID, f)
	if err != nil {
		return nil, err
	}
	for i := range reqs {
		reqs[i].Issuances, err = selectIssuances(ctx, s.db, reqs[i].ID)
		if err != nil {
			return nil, err
		}
		reqs[i].Cancellation, err = selectCancellation(ctx, s.db, reqs[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return reqs, nil
}

const requestColumns = `
id, workspace_id, company_id, campaign_id, amount_minor, currency,
is_deposit_confirmed, status, is_prepaid, issued_at, provider_confirmation_id,
snapshot, issuance_count, pending_submission, created_at, updated_at
`

type requestRow interface {
	Scan(dest ...any) error
}

func scanRequest(row requestRow) (InvoiceRequest, error) {
	var (
		r              InvoiceRequest
		campaignID     sql.NullString
		issuedAt       sql.NullTime
		confirmationID sql.NullString
		snapshot       []byte
		pending        []byte
	)
	err := row.Scan(
		&r.ID,
		&r.WorkspaceID,
		&r.CompanyID,
		&campaignID,
		&r.AmountMinor,
		&r.Currency,
		&r.IsDepositConfirmed,
		&r.Status,
		&r.IsPrepaid,
		&issuedAt,
		&confirmationID,
		&snapshot,
		&r.IssuanceCount,
		&pending,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return InvoiceRequest{}, err
	}
	r.CampaignID = campaignID.String
	r.ProviderConfirmationID = confirmationID.String
	if issuedAt.Valid {
		t := issuedAt.Time
		r.IssuedAt = &t
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &r.Snapshot); err != nil {
			return InvoiceRequest{}, err
		}
	}
	if len(pending) > 0 {
		var p PendingSubmission
		if err := json.Unmarshal(pending, &p); err != nil {
			return InvoiceRequest{}, err
		}
		r.PendingSubmission = &p
	}
	return r, nil
}

func selectRequest(ctx context.Context, db *sql.DB, workspaceID, id string) (InvoiceRequest, error) {
	const q = `
SELECT ` + requestColumns + `
FROM invoice_requests
WHERE workspace_id = $1 AND id = $2
`
	r, err := scanRequest(db.QueryRowContext(ctx, q, workspaceID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return InvoiceRequest{}, ErrNotFound
		}
		return InvoiceRequest{}, err
	}
	return r, nil
}

func selectRequests(ctx context.Context, db *sql.DB, workspaceID string, f Filter) ([]InvoiceRequest, error) {
	q := `
SELECT ` + requestColumns + `
FROM invoice_requests
WHERE workspace_id = $1
`
	switch f {
	case FilterPending:
		q += ` AND status = 'pending'`
	case FilterIssued:
		q += ` AND status = 'issued'`
	case FilterPrepaid:
		q += ` AND status = 'issued' AND is_prepaid`
	}
	q += ` ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, q, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InvoiceRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func requestArgs(r InvoiceRequest) ([]any, error) {
	snapshot, err := json.Marshal(r.Snapshot)
	if err != nil {
		return nil, err
	}
	var pending []byte
	if r.PendingSubmission != nil {
		pending, err = json.Marshal(r.PendingSubmission)
		if err != nil {
			return nil, err
		}
	}
	return []any{
		r.ID,
		r.WorkspaceID,
		r.CompanyID,
		nullString(r.CampaignID),
		r.AmountMinor,
		r.Currency,
		r.IsDepositConfirmed,
		r.Status,
		r.IsPrepaid,
		nullTime(r.IssuedAt),
		nullString(r.ProviderConfirmationID),
		snapshot,
		r.IssuanceCount,
		nullBytes(pending),
		r.CreatedAt,
		r.UpdatedAt,
	}, nil
}

func insertRequest(ctx context.Context, tx *sql.Tx, r InvoiceRequest) error {
	const q = `
INSERT INTO invoice_requests (` + requestColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (id) DO NOTHING
`
	args, err := requestArgs(r)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func updateRequest(ctx context.Context, tx *sql.Tx, r InvoiceRequest) error {
	const q = `
UPDATE invoice_requests
SET is_deposit_confirmed = $3,
    status = $4,
    is_prepaid = $5,
    issued_at = $6,
    provider_confirmation_id = $7,
    snapshot = $8,
    issuance_count = $9,
    pending_submission = $10,
    updated_at = $11
WHERE workspace_id = $1 AND id = $2
`
	snapshot, err := json.Marshal(r.Snapshot)
	if err != nil {
		return err
	}
	var pending []byte
	if r.PendingSubmission != nil {
		pending, err = json.Marshal(r.PendingSubmission)
		if err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, q,
		r.WorkspaceID,
		r.ID,
		r.IsDepositConfirmed,
		r.Status,
		r.IsPrepaid,
		nullTime(r.IssuedAt),
		nullString(r.ProviderConfirmationID),
		snapshot,
		r.IssuanceCount,
		nullBytes(pending),
		r.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func selectIssuances(ctx context.Context, db *sql.DB, requestID string) ([]Issuance, error) {
	const q = `
SELECT seq, confirmation_id, forced, issued_at
FROM invoice_issuances
WHERE request_id = $1
ORDER BY seq
`
	rows, err := db.QueryContext(ctx, q, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Issuance
	for rows.Next() {
		var iss Issuance
		if err := rows.Scan(&iss.Seq, &iss.ConfirmationID, &iss.Forced, &iss.IssuedAt); err != nil {
			return nil, err
		}
		out = append(out, iss)
	}
	return out, rows.Err()
}

func insertIssuance(ctx context.Context, tx *sql.Tx, requestID string, iss Issuance) error {
	// Issuance rows are append-only; re-writing an existing seq is a no-op.
	const q = `
INSERT INTO invoice_issuances (request_id, seq, confirmation_id, forced, issued_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (request_id, seq) DO NOTHING
`
	_, err := tx.ExecContext(ctx, q, requestID, iss.Seq, iss.ConfirmationID, iss.Forced, iss.IssuedAt)
	return err
}

func selectCancellation(ctx context.Context, db *sql.DB, requestID string) (*Cancellation, error) {
	const q = `
SELECT modify_code, reason, amount_minor, provider_confirmation_id, cancelled_at
FROM invoice_cancellations
WHERE request_id = $1
`
	var (
		c      Cancellation
		code   string
		reason sql.NullString
	)
	err := db.QueryRowContext(ctx, q, requestID).Scan(&code, &reason, &c.AmountMinor, &c.ProviderConfirmationID, &c.CancelledAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.ModifyCode = taxauthority.ModifyCode(code)
	c.Reason = reason.String
	return &c, nil
}

func insertCancellation(ctx context.Context, tx *sql.Tx, requestID string, c Cancellation) error {
	const q = `
INSERT INTO invoice_cancellations (request_id, modify_code, reason, amount_minor, provider_confirmation_id, cancelled_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (request_id) DO NOTHING
`
	_, err := tx.ExecContext(ctx, q, requestID, string(c.ModifyCode), nullString(c.Reason), c.AmountMinor, c.ProviderConfirmationID, c.CancelledAt)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
