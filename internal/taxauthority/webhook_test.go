package taxauthority

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func postResult(t *testing.T, h WebhookHandler, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/webhooks/taxauthority/result", h.HandleResult)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/taxauthority/result", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Authority-Signature", signature)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookDelegatesValidCallback(t *testing.T) {
	var got ResultCallback
	h := WebhookHandler{
		Secret: "s3cret",
		Reconcile: func(_ *gin.Context, cb ResultCallback) error {
			got = cb
			return nil
		},
	}

	body := `{"workspace_id":"ws-1","document_key":"inv-1/1","accepted":true,"confirmation_id":"CONF-9"}`
	w := postResult(t, h, body, sign("s3cret", body))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got.DocumentKey != "inv-1/1" || got.ConfirmationID != "CONF-9" || !got.Accepted {
		t.Fatalf("unexpected callback: %+v", got)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	called := false
	h := WebhookHandler{
		Secret: "s3cret",
		Reconcile: func(_ *gin.Context, _ ResultCallback) error {
			called = true
			return nil
		},
	}

	body := `{"workspace_id":"ws-1","document_key":"inv-1/1"}`
	w := postResult(t, h, body, sign("wrong-secret", body))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if called {
		t.Fatal("reconcile must not run on a rejected signature")
	}
}

func TestWebhookRequiresDocumentKey(t *testing.T) {
	h := WebhookHandler{
		Secret:    "s3cret",
		Reconcile: func(_ *gin.Context, _ ResultCallback) error { return nil },
	}

	body := `{"workspace_id":"ws-1"}`
	w := postResult(t, h, body, sign("s3cret", body))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestWebhookReturns500OnReconcileFailure(t *testing.T) {
	h := WebhookHandler{
		Reconcile: func(_ *gin.Context, _ ResultCallback) error {
			return ErrAmbiguousOutcome
		},
	}

	// No secret configured: signature check skipped.
	body := `{"workspace_id":"ws-1","document_key":"inv-1/1"}`
	w := postResult(t, h, body, "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 so the authority redelivers, got %d", w.Code)
	}
}
