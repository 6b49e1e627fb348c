package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"campaign-billing/internal/auth"
	"campaign-billing/internal/deposit"
	"campaign-billing/internal/invoice"
	"campaign-billing/internal/pricing"
	"campaign-billing/internal/rbac"
	"campaign-billing/internal/reporting"
	"campaign-billing/internal/taxauthority"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth    *auth.Manager
	Pricing *pricing.Service
	Billing *invoice.Service
	Deposit DepositLedger
	Reports *reporting.Service
}

// DepositLedger is the deposit-account surface the API consumes.
// *deposit.Service satisfies it; tests substitute an in-memory fake.
type DepositLedger interface {
	GetBalance(ctx context.Context, workspaceID, accountID string) (deposit.Balance, error)
	RecordDeposit(ctx context.Context, workspaceID, accountID string, req deposit.RecordDepositRequest) (deposit.Ledger, deposit.Balance, error)
	Settle(ctx context.Context, workspaceID, accountID string, req deposit.SettleRequest) (deposit.Ledger, deposit.Balance, error)
	Refund(ctx context.Context, workspaceID, accountID string, req deposit.RefundRequest) (deposit.Ledger, deposit.Balance, error)
	AdminAdjust(ctx context.Context, workspaceID, accountID, adminUserID, adminRole string, req deposit.AdminAdjustRequest) (deposit.AdminAction, deposit.Ledger, deposit.Balance, error)
	ListLedger(ctx context.Context, workspaceID, accountID string, limit int) ([]deposit.Ledger, error)
}

// billingError maps service errors onto HTTP responses. Provider rejections
// pass their raw code and message through untranslated.
func billingError(c *gin.Context, err error) {
	var pe *taxauthority.ProviderError
	switch {
	case errors.As(err, &pe):
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": pe.Message, "provider_code": pe.Code})
	case errors.Is(err, invoice.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "invoice request not found"})
	case errors.Is(err, invoice.ErrValidation):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, invoice.ErrDepositNotConfirmed),
		errors.Is(err, invoice.ErrPrecondition),
		errors.Is(err, invoice.ErrAmbiguousSubmission),
		errors.Is(err, invoice.ErrTransitionInProgress):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func workspaceID(c *gin.Context) (string, bool) {
	wid, err := auth.WorkspaceID(c.Request.Context())
	if err != nil || wid == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "workspace_id required"})
		return "", false
	}
	return wid, true
}

// --- Auth ---

type loginRequest struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
	Role        string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.WorkspaceID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, workspace_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.WorkspaceID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Pricing ---

func (h Handlers) ListTiers(c *gin.Context) {
	tiers, err := h.Pricing.ListTiers(c.Request.Context(), pricing.CampaignType(c.Query("campaign_type")))
	if err != nil {
		if errors.Is(err, pricing.ErrInvalidInput) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown campaign_type"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "tier lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tiers": tiers})
}

type quoteRequest struct {
	TierID       string `json:"tier_id"`
	CreatorCount int    `json:"creator_count"`
}

func (h Handlers) Quote(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	q, err := h.Pricing.QuoteForTier(c.Request.Context(), req.TierID, req.CreatorCount)
	if err != nil {
		switch {
		case errors.Is(err, pricing.ErrTierNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "tier not found"})
		case errors.Is(err, pricing.ErrInvalidInput):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "tier_id and a positive creator_count required"})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "quote failed"})
		}
		return
	}
	c.JSON(http.StatusOK, q)
}

// --- Billing ---

type createInvoiceRequest struct {
	CompanyID    string `json:"company_id"`
	CampaignID   string `json:"campaign_id"`
	TierID       string `json:"tier_id"`
	CreatorCount int    `json:"creator_count"`
}

func (h Handlers) CreateInvoiceRequest(c *gin.Context) {
	wid, ok := workspaceID(c)
	if !ok {
		return
	}
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	q, err := h.Pricing.QuoteForTier(c.Request.Context(), req.TierID, req.CreatorCount)
	if err != nil {
		if errors.Is(err, pricing.ErrTierNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "tier not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "tier_id and a positive creator_count required"})
		return
	}

	r, err := h.Billing.Create(c.Request.Context(), invoice.CreateParams{
		WorkspaceID: wid,
		CompanyID:   req.CompanyID,
		CampaignID:  req.CampaignID,
		Quote:       q,
	})
	if err != nil {
		billingError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h Handlers) GetInvoiceRequest(c *gin.Context) {
	wid, ok := workspaceID(c)
	if !ok {
		return
	}
	r, err := h.Billing.Get(c.Request.Context(), wid, c.Param("id"))
	if err != nil {
		billingError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Handlers) ListInvoiceRequests(c *gin.Context) {
	wid, ok := workspaceID(c)
	if !ok {
		return
	}
	rs, err := h.Billing.List(c.Request.Context(), wid, invoice.Filter(c.DefaultQuery("filter", "all")))
	if err != nil {
		billingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice_requests": rs})
}

type issueRequest struct {
	Force bool `json:"force"`
}

func (h Handlers) IssueInvoice(c *gin.Context) {
	wid, ok := workspaceID(c)
	if !ok {
		return
	}
	var req issueRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	r, err := h.Billing.Issue(c.Request.Context(), wid, c.Param("id"), req.Force)
	if err != nil {
		billingError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Handlers) ReissueInvoice(c *gin.Context) {
	wid, ok := workspaceID(c)
	if !ok {
		return
	}
	r, err := h.Billing.Reissue(c.Request.Context(), wid, c.Param("id"))
	if err != nil {
		billingError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type cancelRequest struct {
	ModifyCode string `json:"modify_code"`
	Reason     string `json:"reason"`
}

func (h Handlers) CancelInvoice(c *gin.Context) {
	wid, ok := workspaceID(c)
	if !ok {
		return
	}
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	r, err := h.Billing.Cancel(c.Request.Context(), wid, c.Param("id"), taxauthority.ModifyCode(req.ModifyCode), req.Reason)
	if err != nil {
		billingError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Handlers) ReconcileInvoice(c *gin.Context) {
	wid, ok := workspaceID(c)
	if !ok {
		return
	}
	r, err := h.Billing.Reconcile(c.Request.Context(), wid, c.Param("id"))
	if err != nil {
		billingError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type confirmDepositRequest struct {
	// AccountID names the deposit account the payment arrived on. When set,
	// the invoice amount is settled against that account before the request
	// is marked confirmed.
	AccountID      string `json:"account_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (h Handlers) ConfirmInvoiceDeposit(c *gin.Context) {
	wid, ok := workspaceID(c)
	if !ok {
		return
	}
	var req confirmDepositRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	id := c.Param("id")

	if req.AccountID != "" {
		if h.Deposit == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "deposit ledger not configured"})
			return
		}
		r, err := h.Billing.Get(c.Request.Context(), wid, id)
		if err != nil {
			billingError(c, err)
			return
		}
		key := req.IdempotencyKey
		if key == "" {
			key = "settle:invoice:" + id
		}
		// The settlement is idempotent under its key, so a retry after a
		// failed confirm cannot debit the account twice.
		if _, _, err := h.Deposit.Settle(c.Request.Context(), wid, req.AccountID, deposit.SettleRequest{
			AmountMinor:      r.AmountMinor,
			Currency:         r.Currency,
			InvoiceRequestID: id,
			IdempotencyKey:   key,
		}); err != nil {
			depositError(c, err)
			return
		}
	}

	r, err := h.Billing.MarkDepositConfirmed(c.Request.Context(), wid, id)
	if err != nil {
		billingError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// --- Deposits ---

func depositError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, deposit.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "deposit account not found"})
	case errors.Is(err, deposit.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid deposit request"})
	case errors.Is(err, deposit.ErrInsufficientFunds):
		c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{"error": "insufficient funds"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h Handlers) GetDepositBalance(c *gin.Context) {
	wid, ok := workspaceID(c)
	if !ok {
		return
	}
	bal, err := h.Deposit.GetBalance(c.Request.Context(), wid, c.Param("account_id"))
	if err != nil {
		depositError(c, err)
		return
	}
	c.JSON(http.StatusOK, bal)
}

func (h Handlers) RecordDeposit(c *gin.Context) {
	wid, ok := workspaceID(c)
	if !ok {
		return
	}
	var req deposit.RecordDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	entry, bal, err := h.Deposit.RecordDeposit(c.Request.Context(), wid, c.Param("account_id"), req)
	if err != nil {
		depositError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry, "balance": bal})
}

type refundDepositRequest struct {
	InvoiceRequestID string `json:"invoice_request_id"`
	// AmountMinor defaults to the full invoice amount when zero.
	AmountMinor    int64  `json:"amount_minor"`
	IdempotencyKey string `json:"idempotency_key"`
	Metadata       string `json:"metadata,omitempty"`
}

// RefundDeposit credits back a settled amount after a cancellation. The
// cancellation itself is never retractable; the money flows back through the
// deposit ledger instead.
func (h Handlers) RefundDeposit(c *gin.Context) {
	wid, ok := workspaceID(c)
	if !ok {
		return
	}
	var req refundDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.InvoiceRequestID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invoice_request_id required"})
		return
	}

	r, err := h.Billing.Get(c.Request.Context(), wid, req.InvoiceRequestID)
	if err != nil {
		billingError(c, err)
		return
	}
	if r.Status != invoice.StatusCancelled {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "invoice request is not cancelled"})
		return
	}

	amount := req.AmountMinor
	if amount == 0 {
		amount = r.AmountMinor
	}
	key := req.IdempotencyKey
	if key == "" {
		key = "refund:invoice:" + r.ID
	}
	entry, bal, err := h.Deposit.Refund(c.Request.Context(), wid, c.Param("account_id"), deposit.RefundRequest{
		AmountMinor:      amount,
		Currency:         r.Currency,
		InvoiceRequestID: r.ID,
		IdempotencyKey:   key,
		Metadata:         req.Metadata,
	})
	if err != nil {
		depositError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry, "balance": bal})
}

func (h Handlers) ListDepositLedger(c *gin.Context) {
	wid, ok := workspaceID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := h.Deposit.ListLedger(c.Request.Context(), wid, c.Param("account_id"), limit)
	if err != nil {
		depositError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// AdminAdjustDeposit performs an admin-only balance correction.
// RBAC: owner or super_admin.
func (h Handlers) AdminAdjustDeposit(c *gin.Context) {
	wid, ok := workspaceID(c)
	if !ok {
		return
	}
	adminUserID, _ := auth.UserID(c.Request.Context())
	adminRole, _ := auth.Role(c.Request.Context())

	var req deposit.AdminAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	_, _, bal, err := h.Deposit.AdminAdjust(c.Request.Context(), wid, c.Param("account_id"), adminUserID, adminRole, req)
	if err != nil {
		depositError(c, err)
		return
	}
	c.JSON(http.StatusOK, bal)
}

// --- Reports ---

func parseRange(c *gin.Context) (reporting.TimeRange, bool) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
		return reporting.TimeRange{}, false
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
		return reporting.TimeRange{}, false
	}
	return reporting.TimeRange{From: from, To: to}, true
}

func (h Handlers) InvoiceSummaryReport(c *gin.Context) {
	wid, ok := workspaceID(c)
	if !ok {
		return
	}
	rng, ok := parseRange(c)
	if !ok {
		return
	}
	out, err := h.Reports.InvoiceSummary(c.Request.Context(), reporting.InvoiceSummaryRequest{
		WorkspaceID: wid,
		Range:       rng,
		CompanyID:   c.Query("company_id"),
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid report range"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) ReceivablesReport(c *gin.Context) {
	wid, ok := workspaceID(c)
	if !ok {
		return
	}
	out, err := h.Reports.Receivables(c.Request.Context(), reporting.ReceivablesRequest{
		WorkspaceID: wid,
		CompanyID:   c.Query("company_id"),
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) DepositFlowReport(c *gin.Context) {
	wid, ok := workspaceID(c)
	if !ok {
		return
	}
	rng, ok := parseRange(c)
	if !ok {
		return
	}
	out, err := h.Reports.DepositFlow(c.Request.Context(), reporting.DepositFlowRequest{
		WorkspaceID: wid,
		Range:       rng,
		AccountID:   c.Query("account_id"),
		Currency:    c.Query("currency"),
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid report range"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// Convenience middleware bundle.

func RequireWorkspaceAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireWorkspace(), rbac.RequireAnyRole(roles...)}
}
