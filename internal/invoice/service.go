package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campaign-billing/internal/company"
	"campaign-billing/internal/pricing"
	"campaign-billing/internal/taxauthority"

	"github.com/google/uuid"
)

// Service is the billing lifecycle manager. It is the only writer of the
// invoice request store.
//
// Lifecycle invariants:
// - pending -> issued -> cancelled, strictly monotonic.
// - A failed provider call leaves the visible status unchanged; partial
//   success is never a valid resting state.
// - An ambiguous provider outcome blocks all transitions on the request
//   until Reconcile establishes what the authority actually recorded.
// - At most one state-changing call runs per request id (Locker lease held
//   across the provider call and the store update).
type Service struct {
	store     Store
	gateway   taxauthority.Gateway
	companies company.Provider
	pricer    *pricing.Service
	locker    Locker
	auditLog  AuditLog

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(store Store, gateway taxauthority.Gateway, companies company.Provider, pricer *pricing.Service, locker Locker, auditLog AuditLog) *Service {
	return &Service{
		store:     store,
		gateway:   gateway,
		companies: companies,
		pricer:    pricer,
		locker:    locker,
		auditLog:  auditLog,
		clock:     time.Now,
	}
}

var (
	ErrNotFound             = errors.New("invoice: not found")
	ErrAlreadyExists        = errors.New("invoice: already exists")
	ErrValidation           = errors.New("invoice: validation failed")
	ErrDepositNotConfirmed  = errors.New("invoice: deposit not confirmed")
	ErrPrecondition         = errors.New("invoice: transition not allowed in current state")
	ErrAmbiguousSubmission  = errors.New("invoice: submission outcome unknown, reconcile required")
	ErrTransitionInProgress = errors.New("invoice: another transition is in progress")
)

// CreateParams describes a new billable campaign payment. The amount is not
// a parameter: it is always bound to the quote's total.
type CreateParams struct {
	WorkspaceID string
	CompanyID   string
	CampaignID  string
	Quote       pricing.Quote
}

// Create persists a new request in state pending. Company billing fields are
// validated here, mirroring issuance-time requirements, to fail fast.
func (s *Service) Create(ctx context.Context, p CreateParams) (InvoiceRequest, error) {
	if p.WorkspaceID == "" || p.CompanyID == "" {
		return InvoiceRequest{}, fmt.Errorf("%w: workspace_id and company_id required", ErrValidation)
	}

	// The amount must be reproducible from the quote's inputs; a tampered or
	// stale total is rejected before anything is stored.
	recomputed, err := s.pricer.Quote(pricing.QuoteRequest{
		UnitPriceMinor: p.Quote.UnitPriceMinor,
		CreatorCount:   p.Quote.CreatorCount,
		CampaignType:   p.Quote.CampaignType,
	})
	if err != nil {
		return InvoiceRequest{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if recomputed.TotalMinor != p.Quote.TotalMinor {
		return InvoiceRequest{}, fmt.Errorf("%w: quote total %d does not match computed total %d",
			ErrValidation, p.Quote.TotalMinor, recomputed.TotalMinor)
	}

	comp, err := s.companies.GetCompany(ctx, p.WorkspaceID, p.CompanyID)
	if err != nil {
		return InvoiceRequest{}, fmt.Errorf("%w: company lookup: %v", ErrValidation, err)
	}
	if err := validateProfile(comp.ResolveBillingProfile()); err != nil {
		return InvoiceRequest{}, err
	}

	now := s.clock().UTC()
	r := InvoiceRequest{
		ID:          uuid.NewString(),
		WorkspaceID: p.WorkspaceID,
		CompanyID:   p.CompanyID,
		CampaignID:  p.CampaignID,
		AmountMinor: recomputed.TotalMinor,
		Currency:    recomputed.Currency,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return InvoiceRequest{}, err
	}
	return r, nil
}

// Issue submits the invoice to the authority.
//
// If the deposit is unconfirmed, issuance requires force=true and marks the
// invoice prepaid (a receivable). Forcing is an explicit caller decision,
// never implied.
func (s *Service) Issue(ctx context.Context, workspaceID, id string, force bool) (InvoiceRequest, error) {
	release, ok, err := s.locker.Acquire(ctx, workspaceID, id)
	if err != nil {
		return InvoiceRequest{}, err
	}
	if !ok {
		return InvoiceRequest{}, ErrTransitionInProgress
	}
	defer release()

	r, err := s.store.Get(ctx, workspaceID, id)
	if err != nil {
		return InvoiceRequest{}, err
	}
	if r.PendingSubmission != nil {
		return InvoiceRequest{}, ErrAmbiguousSubmission
	}
	if r.Status != StatusPending {
		return InvoiceRequest{}, fmt.Errorf("%w: issue requires status pending, have %s", ErrPrecondition, r.Status)
	}
	if !r.IsDepositConfirmed && !force {
		return InvoiceRequest{}, ErrDepositNotConfirmed
	}

	// Freeze the company billing fields now. Later company edits must not
	// change what was submitted.
	comp, err := s.companies.GetCompany(ctx, workspaceID, r.CompanyID)
	if err != nil {
		return InvoiceRequest{}, fmt.Errorf("%w: company lookup: %v", ErrValidation, err)
	}
	profile := comp.ResolveBillingProfile()
	if err := validateProfile(profile); err != nil {
		return InvoiceRequest{}, err
	}
	snapshot := snapshotFrom(profile)

	seq := r.IssuanceCount + 1
	docKey := DocumentKey(r.ID, seq)
	forced := force && !r.IsDepositConfirmed

	res, err := s.gateway.Issue(ctx, taxauthority.IssueRequest{
		WorkspaceID: workspaceID,
		DocumentKey: docKey,
		Snapshot:    snapshot,
		AmountMinor: r.AmountMinor,
		Currency:    r.Currency,
	})
	if err != nil {
		if errors.Is(err, taxauthority.ErrAmbiguousOutcome) {
			return InvoiceRequest{}, s.markUncertain(ctx, r, PendingSubmission{
				Op:          OperationIssue,
				DocumentKey: docKey,
				Forced:      forced,
				SubmittedAt: s.clock().UTC(),
			}, seq, snapshot)
		}
		// Definitive provider rejection or local failure: status unchanged,
		// error surfaced verbatim. Retrying is the caller's decision.
		return InvoiceRequest{}, err
	}

	now := s.clock().UTC()
	r.Snapshot = snapshot
	r.Status = StatusIssued
	r.IsPrepaid = forced
	r.IssuedAt = &now
	r.ProviderConfirmationID = res.ConfirmationID
	r.IssuanceCount = seq
	r.Issuances = append(r.Issuances, Issuance{Seq: seq, ConfirmationID: res.ConfirmationID, Forced: forced, IssuedAt: now})
	r.UpdatedAt = now

	if err := s.store.Update(ctx, r); err != nil {
		return InvoiceRequest{}, err
	}
	s.audit(ctx, r, "issued", auditMeta(docKey, res.ConfirmationID))
	return r, nil
}

// Reissue re-submits an already issued invoice with the same frozen snapshot
// and amount. The prior confirmation stays on record.
func (s *Service) Reissue(ctx context.Context, workspaceID, id string) (InvoiceRequest, error) {
	release, ok, err := s.locker.Acquire(ctx, workspaceID, id)
	if err != nil {
		return InvoiceRequest{}, err
	}
	if !ok {
		return InvoiceRequest{}, ErrTransitionInProgress
	}
	defer release()

	r, err := s.store.Get(ctx, workspaceID, id)
	if err != nil {
		return InvoiceRequest{}, err
	}
	if r.PendingSubmission != nil {
		return InvoiceRequest{}, ErrAmbiguousSubmission
	}
	if r.Status != StatusIssued || r.Cancellation != nil {
		return InvoiceRequest{}, fmt.Errorf("%w: reissue requires status issued without cancellation", ErrPrecondition)
	}

	seq := r.IssuanceCount + 1
	docKey := DocumentKey(r.ID, seq)

	res, err := s.gateway.Issue(ctx, taxauthority.IssueRequest{
		WorkspaceID: workspaceID,
		DocumentKey: docKey,
		Snapshot:    r.Snapshot,
		AmountMinor: r.AmountMinor,
		Currency:    r.Currency,
	})
	if err != nil {
		if errors.Is(err, taxauthority.ErrAmbiguousOutcome) {
			return InvoiceRequest{}, s.markUncertain(ctx, r, PendingSubmission{
				Op:          OperationReissue,
				DocumentKey: docKey,
				Forced:      r.IsPrepaid,
				SubmittedAt: s.clock().UTC(),
			}, seq, r.Snapshot)
		}
		return InvoiceRequest{}, err
	}

	now := s.clock().UTC()
	r.IssuedAt = &now
	r.ProviderConfirmationID = res.ConfirmationID
	r.IssuanceCount = seq
	r.Issuances = append(r.Issuances, Issuance{Seq: seq, ConfirmationID: res.ConfirmationID, Forced: r.IsPrepaid, IssuedAt: now})
	r.UpdatedAt = now

	if err := s.store.Update(ctx, r); err != nil {
		return InvoiceRequest{}, err
	}
	s.audit(ctx, r, "reissued", auditMeta(docKey, res.ConfirmationID))
	return r, nil
}

// Cancel drives a negative issuance. The negative submission is
// non-retractable, so every precondition is checked before the provider call;
// afterwards there is nothing to unwind.
func (s *Service) Cancel(ctx context.Context, workspaceID, id string, code taxauthority.ModifyCode, reason string) (InvoiceRequest, error) {
	if !code.Valid() {
		return InvoiceRequest{}, fmt.Errorf("%w: unknown modify code %q", ErrValidation, code)
	}

	release, ok, err := s.locker.Acquire(ctx, workspaceID, id)
	if err != nil {
		return InvoiceRequest{}, err
	}
	if !ok {
		return InvoiceRequest{}, ErrTransitionInProgress
	}
	defer release()

	r, err := s.store.Get(ctx, workspaceID, id)
	if err != nil {
		return InvoiceRequest{}, err
	}
	if r.PendingSubmission != nil {
		return InvoiceRequest{}, ErrAmbiguousSubmission
	}
	if r.Status != StatusIssued || r.Cancellation != nil {
		return InvoiceRequest{}, fmt.Errorf("%w: cancel requires status issued without cancellation, have %s", ErrPrecondition, r.Status)
	}
	if r.ProviderConfirmationID == "" {
		return InvoiceRequest{}, fmt.Errorf("%w: cancel requires a provider confirmation id", ErrPrecondition)
	}

	seq := r.IssuanceCount + 1
	docKey := DocumentKey(r.ID, seq)

	// The cancellation amount is derived, never supplied.
	res, err := s.gateway.NegativeIssue(ctx, taxauthority.NegativeIssueRequest{
		WorkspaceID:            workspaceID,
		DocumentKey:            docKey,
		OriginalConfirmationID: r.ProviderConfirmationID,
		AmountMinor:            -r.AmountMinor,
		Currency:               r.Currency,
		ModifyCode:             code,
		Reason:                 reason,
	})
	if err != nil {
		if errors.Is(err, taxauthority.ErrAmbiguousOutcome) {
			return InvoiceRequest{}, s.markUncertain(ctx, r, PendingSubmission{
				Op:          OperationCancel,
				DocumentKey: docKey,
				ModifyCode:  code,
				Reason:      reason,
				SubmittedAt: s.clock().UTC(),
			}, seq, r.Snapshot)
		}
		return InvoiceRequest{}, err
	}

	now := s.clock().UTC()
	r.Cancellation = &Cancellation{
		ModifyCode:             code,
		Reason:                 reason,
		AmountMinor:            -r.AmountMinor,
		ProviderConfirmationID: res.ConfirmationID,
		CancelledAt:            now,
	}
	r.Status = StatusCancelled
	r.IssuanceCount = seq
	r.UpdatedAt = now

	if err := s.store.Update(ctx, r); err != nil {
		return InvoiceRequest{}, err
	}
	s.audit(ctx, r, "cancelled", auditMeta(docKey, res.ConfirmationID))
	return r, nil
}

// Reconcile resolves an ambiguous submission by asking the authority what it
// actually recorded. It never guesses: a confirmed submission is applied as
// if the original call had succeeded, an unknown one simply clears the block.
func (s *Service) Reconcile(ctx context.Context, workspaceID, id string) (InvoiceRequest, error) {
	release, ok, err := s.locker.Acquire(ctx, workspaceID, id)
	if err != nil {
		return InvoiceRequest{}, err
	}
	if !ok {
		return InvoiceRequest{}, ErrTransitionInProgress
	}
	defer release()

	r, err := s.store.Get(ctx, workspaceID, id)
	if err != nil {
		return InvoiceRequest{}, err
	}
	pending := r.PendingSubmission
	if pending == nil {
		return InvoiceRequest{}, fmt.Errorf("%w: nothing to reconcile", ErrPrecondition)
	}

	q, err := s.gateway.QuerySubmission(ctx, taxauthority.QueryRequest{
		WorkspaceID: workspaceID,
		DocumentKey: pending.DocumentKey,
	})
	if err != nil {
		// Still unknown; the block stays.
		return InvoiceRequest{}, err
	}

	now := s.clock().UTC()
	r.PendingSubmission = nil
	r.UpdatedAt = now

	if q.Found {
		switch pending.Op {
		case OperationIssue:
			r.Status = StatusIssued
			r.IsPrepaid = pending.Forced
			r.IssuedAt = &now
			r.ProviderConfirmationID = q.ConfirmationID
			r.Issuances = append(r.Issuances, Issuance{Seq: r.IssuanceCount, ConfirmationID: q.ConfirmationID, Forced: pending.Forced, IssuedAt: now})
			s.audit(ctx, r, "issued (reconciled)", auditMeta(pending.DocumentKey, q.ConfirmationID))
		case OperationReissue:
			r.IssuedAt = &now
			r.ProviderConfirmationID = q.ConfirmationID
			r.Issuances = append(r.Issuances, Issuance{Seq: r.IssuanceCount, ConfirmationID: q.ConfirmationID, Forced: pending.Forced, IssuedAt: now})
			s.audit(ctx, r, "reissued (reconciled)", auditMeta(pending.DocumentKey, q.ConfirmationID))
		case OperationCancel:
			r.Cancellation = &Cancellation{
				ModifyCode:             pending.ModifyCode,
				Reason:                 pending.Reason,
				AmountMinor:            -r.AmountMinor,
				ProviderConfirmationID: q.ConfirmationID,
				CancelledAt:            now,
			}
			r.Status = StatusCancelled
			s.audit(ctx, r, "cancelled (reconciled)", auditMeta(pending.DocumentKey, q.ConfirmationID))
		}
	}
	// Not found: the submission never landed. The document key stays
	// consumed and the request returns to its prior resting state.

	if err := s.store.Update(ctx, r); err != nil {
		return InvoiceRequest{}, err
	}
	return r, nil
}

// MarkDepositConfirmed records that the matching bank transfer arrived.
// Allowed while pending or issued (collecting a prepaid receivable).
func (s *Service) MarkDepositConfirmed(ctx context.Context, workspaceID, id string) (InvoiceRequest, error) {
	release, ok, err := s.locker.Acquire(ctx, workspaceID, id)
	if err != nil {
		return InvoiceRequest{}, err
	}
	if !ok {
		return InvoiceRequest{}, ErrTransitionInProgress
	}
	defer release()

	r, err := s.store.Get(ctx, workspaceID, id)
	if err != nil {
		return InvoiceRequest{}, err
	}
	if r.Status == StatusCancelled {
		return InvoiceRequest{}, fmt.Errorf("%w: cancelled requests accept no changes", ErrPrecondition)
	}
	if r.IsDepositConfirmed {
		return r, nil
	}

	r.IsDepositConfirmed = true
	r.UpdatedAt = s.clock().UTC()
	if err := s.store.Update(ctx, r); err != nil {
		return InvoiceRequest{}, err
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, workspaceID, id string) (InvoiceRequest, error) {
	if workspaceID == "" || id == "" {
		return InvoiceRequest{}, fmt.Errorf("%w: workspace_id and id required", ErrValidation)
	}
	return s.store.Get(ctx, workspaceID, id)
}

func (s *Service) List(ctx context.Context, workspaceID string, f Filter) ([]InvoiceRequest, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("%w: workspace_id required", ErrValidation)
	}
	if f == "" {
		f = FilterAll
	}
	if !f.Valid() {
		return nil, fmt.Errorf("%w: unknown filter %q", ErrValidation, f)
	}
	return s.store.List(ctx, workspaceID, f)
}

// markUncertain persists the in-flight submission marker and reports the
// ambiguity. The consumed document key is recorded so a later retry can
// never reuse it.
func (s *Service) markUncertain(ctx context.Context, r InvoiceRequest, p PendingSubmission, seq int, snapshot taxauthority.Snapshot) error {
	r.PendingSubmission = &p
	r.IssuanceCount = seq
	r.Snapshot = snapshot
	r.UpdatedAt = s.clock().UTC()
	if err := s.store.Update(ctx, r); err != nil {
		return err
	}
	return ErrAmbiguousSubmission
}

func (s *Service) audit(ctx context.Context, r InvoiceRequest, message, metadata string) {
	if s.auditLog == nil {
		return
	}
	if r.Status == StatusCancelled {
		s.auditLog.LogCancellation(ctx, r.WorkspaceID, r.ID, message, metadata)
		return
	}
	s.auditLog.LogIssuance(ctx, r.WorkspaceID, r.ID, message, metadata)
}

func auditMeta(docKey, confirmationID string) string {
	return fmt.Sprintf(`{"document_key":%q,"confirmation_id":%q}`, docKey, confirmationID)
}

// validateProfile checks the fields the authority requires on every
// submission: legal name, business number and email.
func validateProfile(p company.BillingProfile) error {
	var missing []string
	if p.LegalName == "" {
		missing = append(missing, "legal_name")
	}
	if p.BusinessNumber == "" {
		missing = append(missing, "business_number")
	}
	if p.Email == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: company billing fields missing: %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

func snapshotFrom(p company.BillingProfile) taxauthority.Snapshot {
	return taxauthority.Snapshot{
		LegalName:        p.LegalName,
		BusinessNumber:   p.BusinessNumber,
		Representative:   p.Representative,
		Email:            p.Email,
		Phone:            p.Phone,
		Address:          p.Address,
		BusinessType:     p.BusinessType,
		BusinessCategory: p.BusinessCategory,
	}
}
