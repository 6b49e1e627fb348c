package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"campaign-billing/internal/auth"
	"campaign-billing/internal/company"
	"campaign-billing/internal/deposit"
	"campaign-billing/internal/invoice"
	"campaign-billing/internal/pricing"
	"campaign-billing/internal/rbac"
	"campaign-billing/internal/taxauthority"

	"github.com/gin-gonic/gin"
)

// fakeLedger records deposit postings in memory and satisfies DepositLedger.
type fakeLedger struct {
	settles []deposit.SettleRequest
	refunds []deposit.RefundRequest
	err     error
}

func (f *fakeLedger) GetBalance(_ context.Context, _, accountID string) (deposit.Balance, error) {
	return deposit.Balance{AccountID: accountID}, f.err
}

func (f *fakeLedger) RecordDeposit(_ context.Context, _, _ string, _ deposit.RecordDepositRequest) (deposit.Ledger, deposit.Balance, error) {
	return deposit.Ledger{}, deposit.Balance{}, f.err
}

func (f *fakeLedger) Settle(_ context.Context, _, _ string, req deposit.SettleRequest) (deposit.Ledger, deposit.Balance, error) {
	if f.err != nil {
		return deposit.Ledger{}, deposit.Balance{}, f.err
	}
	f.settles = append(f.settles, req)
	return deposit.Ledger{Type: deposit.EntryTypeSettlement, AmountMinor: -req.AmountMinor}, deposit.Balance{}, nil
}

func (f *fakeLedger) Refund(_ context.Context, _, _ string, req deposit.RefundRequest) (deposit.Ledger, deposit.Balance, error) {
	if f.err != nil {
		return deposit.Ledger{}, deposit.Balance{}, f.err
	}
	f.refunds = append(f.refunds, req)
	return deposit.Ledger{Type: deposit.EntryTypeRefund, AmountMinor: req.AmountMinor}, deposit.Balance{}, nil
}

func (f *fakeLedger) AdminAdjust(_ context.Context, _, _, _, _ string, _ deposit.AdminAdjustRequest) (deposit.AdminAction, deposit.Ledger, deposit.Balance, error) {
	return deposit.AdminAction{}, deposit.Ledger{}, deposit.Balance{}, f.err
}

func (f *fakeLedger) ListLedger(_ context.Context, _, _ string, _ int) ([]deposit.Ledger, error) {
	return nil, f.err
}

type stubGateway struct{}

func (stubGateway) Name() string                        { return "stub" }
func (stubGateway) HealthCheck(_ context.Context) error { return nil }
func (stubGateway) Issue(_ context.Context, req taxauthority.IssueRequest) (taxauthority.IssueResult, error) {
	return taxauthority.IssueResult{ConfirmationID: "CONF-" + req.DocumentKey}, nil
}
func (stubGateway) NegativeIssue(_ context.Context, req taxauthority.NegativeIssueRequest) (taxauthority.NegativeIssueResult, error) {
	return taxauthority.NegativeIssueResult{ConfirmationID: "NCONF-" + req.DocumentKey}, nil
}
func (stubGateway) QuerySubmission(_ context.Context, _ taxauthority.QueryRequest) (taxauthority.QueryResult, error) {
	return taxauthority.QueryResult{}, nil
}

func testRouter(t *testing.T) (*gin.Engine, *fakeLedger) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	companies := company.NewMemoryProvider()
	companies.Put(company.Company{
		ID: "comp-1", WorkspaceID: "ws-1",
		Name: "Acme Media Co.", BusinessNumber: "123-45-67890", Email: "billing@acme.example",
	})

	pricer := pricing.NewService(pricing.NewSeededMemoryRepo(), pricing.Policy{}, "KRW")
	billing := invoice.NewService(invoice.NewMemoryStore(), stubGateway{}, companies, pricer, invoice.NewMemoryLocker(), nil)

	ledger := &fakeLedger{}
	h := Handlers{Pricing: pricer, Billing: billing, Deposit: ledger}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "user-1", "ws-1", rbac.RoleFinance)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	v1 := r.Group("/v1")
	{
		v1.GET("/pricing/tiers", h.ListTiers)
		v1.POST("/pricing/quote", h.Quote)

		inv := v1.Group("/invoice-requests")
		{
			inv.POST("", h.CreateInvoiceRequest)
			inv.GET("", h.ListInvoiceRequests)
			inv.GET("/:id", h.GetInvoiceRequest)
			inv.POST("/:id/issue", h.IssueInvoice)
			inv.POST("/:id/cancel", h.CancelInvoice)
			inv.POST("/:id/deposit-confirmed", h.ConfirmInvoiceDeposit)
		}

		dep := v1.Group("/deposits")
		{
			dep.POST("/:account_id/refunds", h.RefundDeposit)
		}
	}
	return r, ledger
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("invalid response json: %v (%s)", err, w.Body.String())
		}
	}
	return w, out
}

func TestQuoteEndpoint(t *testing.T) {
	r, _ := testRouter(t)

	w, out := doJSON(t, r, http.MethodPost, "/v1/pricing/quote", `{"tier_id":"standard","creator_count":10}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if out["total_minor"].(float64) != 3_300_000 {
		t.Fatalf("unexpected total: %v", out["total_minor"])
	}
}

func TestInvoiceLifecycleOverHTTP(t *testing.T) {
	r, _ := testRouter(t)

	w, created := doJSON(t, r, http.MethodPost, "/v1/invoice-requests",
		`{"company_id":"comp-1","campaign_id":"camp-1","tier_id":"standard","creator_count":10}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	id := created["id"].(string)

	// Unforced issuance without a deposit is refused.
	w, _ = doJSON(t, r, http.MethodPost, "/v1/invoice-requests/"+id+"/issue", `{"force":false}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("unforced issue: expected 409, got %d", w.Code)
	}

	w, issued := doJSON(t, r, http.MethodPost, "/v1/invoice-requests/"+id+"/issue", `{"force":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("forced issue: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if issued["status"] != "issued" || issued["is_prepaid"] != true {
		t.Fatalf("unexpected issue response: %v", issued)
	}

	w, cancelled := doJSON(t, r, http.MethodPost, "/v1/invoice-requests/"+id+"/cancel",
		`{"modify_code":"04","reason":"campaign withdrawn"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if cancelled["status"] != "cancelled" {
		t.Fatalf("unexpected cancel response: %v", cancelled)
	}

	w, _ = doJSON(t, r, http.MethodPost, "/v1/invoice-requests/"+id+"/cancel",
		`{"modify_code":"01","reason":"again"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("double cancel: expected 409, got %d", w.Code)
	}
}

func TestConfirmDepositPostsSettlement(t *testing.T) {
	r, ledger := testRouter(t)

	w, created := doJSON(t, r, http.MethodPost, "/v1/invoice-requests",
		`{"company_id":"comp-1","campaign_id":"camp-1","tier_id":"standard","creator_count":10}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	id := created["id"].(string)

	w, confirmed := doJSON(t, r, http.MethodPost, "/v1/invoice-requests/"+id+"/deposit-confirmed",
		`{"account_id":"acct-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if confirmed["is_deposit_confirmed"] != true {
		t.Fatalf("expected confirmed record, got %v", confirmed)
	}

	if len(ledger.settles) != 1 {
		t.Fatalf("expected one settlement posting, got %d", len(ledger.settles))
	}
	s := ledger.settles[0]
	if s.AmountMinor != 3_300_000 || s.InvoiceRequestID != id {
		t.Fatalf("unexpected settlement: %+v", s)
	}

	// With the deposit settled, unforced issuance goes through unflagged.
	w, issued := doJSON(t, r, http.MethodPost, "/v1/invoice-requests/"+id+"/issue", `{"force":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("issue: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if issued["is_prepaid"] != false {
		t.Fatalf("deposit-backed issuance must not be prepaid: %v", issued)
	}
}

func TestConfirmDepositFailedSettlementLeavesRequestUnconfirmed(t *testing.T) {
	r, ledger := testRouter(t)

	w, created := doJSON(t, r, http.MethodPost, "/v1/invoice-requests",
		`{"company_id":"comp-1","tier_id":"standard","creator_count":10}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", w.Code)
	}
	id := created["id"].(string)

	ledger.err = deposit.ErrInsufficientFunds
	w, _ = doJSON(t, r, http.MethodPost, "/v1/invoice-requests/"+id+"/deposit-confirmed",
		`{"account_id":"acct-1"}`)
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 on insufficient funds, got %d", w.Code)
	}

	// The request must still be unconfirmed: unforced issuance is refused.
	w, _ = doJSON(t, r, http.MethodPost, "/v1/invoice-requests/"+id+"/issue", `{"force":false}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for unforced issue, got %d", w.Code)
	}
}

func TestRefundRequiresCancelledInvoice(t *testing.T) {
	r, ledger := testRouter(t)

	w, created := doJSON(t, r, http.MethodPost, "/v1/invoice-requests",
		`{"company_id":"comp-1","tier_id":"standard","creator_count":10}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", w.Code)
	}
	id := created["id"].(string)

	w, _ = doJSON(t, r, http.MethodPost, "/v1/invoice-requests/"+id+"/issue", `{"force":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("issue: expected 200, got %d", w.Code)
	}

	// Still issued: no refund allowed.
	w, _ = doJSON(t, r, http.MethodPost, "/v1/deposits/acct-1/refunds",
		`{"invoice_request_id":"`+id+`"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for uncancelled invoice, got %d", w.Code)
	}
	if len(ledger.refunds) != 0 {
		t.Fatalf("refund must not be posted before cancellation")
	}

	w, _ = doJSON(t, r, http.MethodPost, "/v1/invoice-requests/"+id+"/cancel",
		`{"modify_code":"04","reason":"campaign withdrawn"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", w.Code)
	}

	w, out := doJSON(t, r, http.MethodPost, "/v1/deposits/acct-1/refunds",
		`{"invoice_request_id":"`+id+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("refund: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(ledger.refunds) != 1 {
		t.Fatalf("expected one refund posting, got %d", len(ledger.refunds))
	}
	rf := ledger.refunds[0]
	// Amount defaults to the full invoice total.
	if rf.AmountMinor != 3_300_000 || rf.InvoiceRequestID != id {
		t.Fatalf("unexpected refund: %+v", rf)
	}
	if out["entry"] == nil {
		t.Fatalf("expected ledger entry in response: %v", out)
	}
}

func TestCancelRejectsBadModifyCode(t *testing.T) {
	r, _ := testRouter(t)

	w, created := doJSON(t, r, http.MethodPost, "/v1/invoice-requests",
		`{"company_id":"comp-1","tier_id":"basic","creator_count":1}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", w.Code)
	}
	id := created["id"].(string)

	w, _ = doJSON(t, r, http.MethodPost, "/v1/invoice-requests/"+id+"/cancel",
		`{"modify_code":"99","reason":"x"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown modify code, got %d", w.Code)
	}
}
