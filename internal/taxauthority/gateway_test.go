package taxauthority

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campaign-billing/internal/config"
)

func TestModifyCode_Valid(t *testing.T) {
	for _, code := range []ModifyCode{"01", "02", "03", "04", "05", "06"} {
		if !code.Valid() {
			t.Fatalf("expected %q to be valid", code)
		}
	}
	for _, code := range []ModifyCode{"", "00", "07", "1"} {
		if code.Valid() {
			t.Fatalf("expected %q to be invalid", code)
		}
	}
}

func newGatewayFor(srv *httptest.Server) *HTTPGateway {
	return NewHTTPGateway(config.TaxAuthorityConfig{
		BaseURL:       srv.URL,
		APIKey:        "test-key",
		SubmitTimeout: 2 * time.Second,
	})
}

func TestHTTPGateway_IssueSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/invoices" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing auth header, got %q", got)
		}
		var req IssueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.AmountMinor != 3_300_000 {
			t.Errorf("unexpected amount %d", req.AmountMinor)
		}
		_ = json.NewEncoder(w).Encode(IssueResult{ConfirmationID: "NTS-123"})
	}))
	defer srv.Close()

	g := newGatewayFor(srv)
	res, err := g.Issue(context.Background(), IssueRequest{
		WorkspaceID: "ws",
		DocumentKey: "inv-1/1",
		Snapshot:    Snapshot{LegalName: "Acme", BusinessNumber: "111-22-33333", Email: "x@acme.test"},
		AmountMinor: 3_300_000,
		Currency:    "KRW",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ConfirmationID != "NTS-123" {
		t.Fatalf("unexpected confirmation id %q", res.ConfirmationID)
	}
}

func TestHTTPGateway_RejectionSurfacesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":"E4021","message":"business number not registered"}`))
	}))
	defer srv.Close()

	g := newGatewayFor(srv)
	_, err := g.Issue(context.Background(), IssueRequest{DocumentKey: "inv-1/1", AmountMinor: 100})
	if err == nil {
		t.Fatalf("expected error")
	}
	pe, ok := err.(*ProviderError)
	if !ok {
		t.Fatalf("expected *ProviderError, got %T", err)
	}
	if pe.Code != "E4021" || pe.Message != "business number not registered" {
		t.Fatalf("provider error must carry the raw code/message, got %+v", pe)
	}
}

func TestHTTPGateway_TimeoutIsAmbiguous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	g := NewHTTPGateway(config.TaxAuthorityConfig{
		BaseURL:       srv.URL,
		APIKey:        "k",
		SubmitTimeout: 20 * time.Millisecond,
	})

	_, err := g.Issue(context.Background(), IssueRequest{DocumentKey: "inv-1/1", AmountMinor: 100})
	if err != ErrAmbiguousOutcome {
		t.Fatalf("expected ErrAmbiguousOutcome on timeout, got %v", err)
	}
}

func TestHTTPGateway_QuerySubmission(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/submissions/found-key":
			_ = json.NewEncoder(w).Encode(QueryResult{Found: true, ConfirmationID: "NTS-9"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	g := newGatewayFor(srv)

	res, err := g.QuerySubmission(context.Background(), QueryRequest{WorkspaceID: "ws", DocumentKey: "found-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Found || res.ConfirmationID != "NTS-9" {
		t.Fatalf("unexpected result %+v", res)
	}

	res, err = g.QuerySubmission(context.Background(), QueryRequest{WorkspaceID: "ws", DocumentKey: "missing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Found {
		t.Fatalf("expected not found")
	}
}
