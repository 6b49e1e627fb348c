package taxauthority

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"campaign-billing/internal/config"
)

// HTTPGateway talks to the e-invoicing authority over its REST API.
//
// Outcome classification:
// - 2xx: accepted, confirmation id returned.
// - non-2xx: definitive rejection; the authority's code/message surface
//   verbatim as *ProviderError.
// - timeout or a broken response after the request went out: the submission
//   may have been received, so the outcome is ambiguous (ErrAmbiguousOutcome).
// - failure to even connect: a clean local error; nothing was submitted.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPGateway(cfg config.TaxAuthorityConfig) *HTTPGateway {
	timeout := cfg.SubmitTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPGateway{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGateway) Name() string { return "nts-einvoice" }

func (g *HTTPGateway) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/ping", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("taxauthority: health check returned %d", resp.StatusCode)
	}
	return nil
}

func (g *HTTPGateway) Issue(ctx context.Context, req IssueRequest) (IssueResult, error) {
	var out IssueResult
	err := g.submit(ctx, "/v1/invoices", req, &out)
	return out, err
}

func (g *HTTPGateway) NegativeIssue(ctx context.Context, req NegativeIssueRequest) (NegativeIssueResult, error) {
	var out NegativeIssueResult
	err := g.submit(ctx, "/v1/invoices/negative", req, &out)
	return out, err
}

func (g *HTTPGateway) QuerySubmission(ctx context.Context, req QueryRequest) (QueryResult, error) {
	u := fmt.Sprintf("%s/v1/submissions/%s?workspace_id=%s",
		g.baseURL, url.PathEscape(req.DocumentKey), url.QueryEscape(req.WorkspaceID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return QueryResult{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		// A failed status query is retryable by nature; no classification.
		return QueryResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return QueryResult{Found: false}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return QueryResult{}, rejectionError(resp)
	}

	var out QueryResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return QueryResult{}, fmt.Errorf("taxauthority: decoding query response: %w", err)
	}
	return out, nil
}

// submit POSTs a signed document and classifies the outcome.
func (g *HTTPGateway) submit(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		if isAmbiguousTransportError(err) {
			return ErrAmbiguousOutcome
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return rejectionError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// The authority accepted the document but we lost the confirmation.
		return ErrAmbiguousOutcome
	}
	return nil
}

// rejectionError builds a *ProviderError from a non-2xx response, preserving
// the authority's raw code and message.
func rejectionError(resp *http.Response) error {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := json.Unmarshal(raw, &body); err != nil || body.Code == "" {
		body.Code = fmt.Sprintf("HTTP_%d", resp.StatusCode)
	}
	if body.Message == "" {
		body.Message = string(raw)
	}
	return &ProviderError{Code: body.Code, Message: body.Message}
}

// isAmbiguousTransportError reports whether the request may have gone out
// before the failure. Timeouts and context expiry count; a refused connection
// does not.
func isAmbiguousTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}
