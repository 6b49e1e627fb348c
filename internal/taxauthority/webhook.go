package taxauthority

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"campaign-billing/pkg/logger"

	"github.com/gin-gonic/gin"
)

const headerSignature = "X-Authority-Signature"

// ResultCallback is the authority's asynchronous verdict for a submitted
// document. It arrives when a synchronous submission timed out on our side
// but was accepted on theirs.
type ResultCallback struct {
	WorkspaceID    string `json:"workspace_id"`
	DocumentKey    string `json:"document_key"`
	Accepted       bool   `json:"accepted"`
	ConfirmationID string `json:"confirmation_id,omitempty"`
	Code           string `json:"code,omitempty"`
	Message        string `json:"message,omitempty"`
	OccurredAt     string `json:"occurred_at,omitempty"`
}

// WebhookHandler validates and converts authority result callbacks, then
// delegates reconciliation. No lifecycle logic here.
type WebhookHandler struct {
	// Secret signs callback bodies (HMAC-SHA256, hex in X-Authority-Signature).
	Secret string

	// Reconcile is the injected reconciliation entry point, normally the
	// billing lifecycle manager's Reconcile keyed by the document's invoice
	// request.
	Reconcile func(c *gin.Context, cb ResultCallback) error

	Now func() time.Time
}

func (h WebhookHandler) HandleResult(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Reconcile == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reconciler not configured"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if h.Secret != "" {
		sig := c.GetHeader(headerSignature)
		if !validSignature(h.Secret, body, sig) {
			log.Warn("authority webhook signature rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "bad signature"})
			return
		}
	}

	var cb ResultCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		log.Warn("authority webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if cb.WorkspaceID == "" || cb.DocumentKey == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "workspace_id and document_key required"})
		return
	}

	if err := h.Reconcile(c, cb); err != nil {
		log.Error("authority callback reconciliation failed", "document_key", cb.DocumentKey, "err", err)
		// Non-2xx makes the authority redeliver; reconciliation is idempotent.
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func validSignature(secret string, body []byte, sigHex string) bool {
	if sigHex == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := mac.Sum(nil)
	got, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	return hmac.Equal(want, got)
}
