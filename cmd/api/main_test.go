package main

import (
	"context"
	"net/http/httptest"
	"testing"

	"campaign-billing/internal/company"
	"campaign-billing/internal/invoice"
	"campaign-billing/internal/pricing"
	"campaign-billing/internal/taxauthority"

	"github.com/gin-gonic/gin"
)

type noopGateway struct{}

func (noopGateway) Name() string                        { return "noop" }
func (noopGateway) HealthCheck(_ context.Context) error { return nil }
func (noopGateway) Issue(_ context.Context, req taxauthority.IssueRequest) (taxauthority.IssueResult, error) {
	return taxauthority.IssueResult{ConfirmationID: "CONF-" + req.DocumentKey}, nil
}
func (noopGateway) NegativeIssue(_ context.Context, req taxauthority.NegativeIssueRequest) (taxauthority.NegativeIssueResult, error) {
	return taxauthority.NegativeIssueResult{ConfirmationID: "NCONF-" + req.DocumentKey}, nil
}
func (noopGateway) QuerySubmission(_ context.Context, _ taxauthority.QueryRequest) (taxauthority.QueryResult, error) {
	return taxauthority.QueryResult{}, nil
}

func callbackContext(t *testing.T) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/webhooks/taxauthority/result", nil)
	return c
}

func TestResultReconcilerAcksUnresolvableCallbacks(t *testing.T) {
	companies := company.NewMemoryProvider()
	companies.Put(company.Company{
		ID: "comp-1", WorkspaceID: "ws-1",
		Name: "Acme Media Co.", BusinessNumber: "123-45-67890", Email: "billing@acme.example",
	})
	pricer := pricing.NewService(pricing.NewSeededMemoryRepo(), pricing.Policy{}, "KRW")
	billing := invoice.NewService(invoice.NewMemoryStore(), noopGateway{}, companies, pricer, invoice.NewMemoryLocker(), nil)

	reconcile := resultReconciler(billing)

	// A document key for a request we never created must be acked, not
	// errored: a 5xx would make the authority redeliver forever.
	if err := reconcile(callbackContext(t), taxauthority.ResultCallback{
		WorkspaceID: "ws-1",
		DocumentKey: "no-such-request/1",
	}); err != nil {
		t.Fatalf("unknown document key must be terminal, got %v", err)
	}

	// Same for a known request with nothing pending: already resolved.
	q, err := pricer.QuoteForTier(context.Background(), "standard", 10)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	r, err := billing.Create(context.Background(), invoice.CreateParams{
		WorkspaceID: "ws-1", CompanyID: "comp-1", Quote: q,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := reconcile(callbackContext(t), taxauthority.ResultCallback{
		WorkspaceID: "ws-1",
		DocumentKey: invoice.DocumentKey(r.ID, 1),
	}); err != nil {
		t.Fatalf("callback without a pending submission must be terminal, got %v", err)
	}
}
