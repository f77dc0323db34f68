// Package payment implements the HTTP client for the external payment
// provider. The provider is a collaborator, not part of the core: this
// package only initiates payment intents, polls their outcome and
// verifies callback signatures. It never decides booking state; that
// is the reconciler's job.
package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrProviderUnavailable marks transient provider failures (network
// errors, 5xx responses). The client retries these with backoff up to
// its attempt budget before returning the error to the reconciler.
var ErrProviderUnavailable = errors.New("payment provider unavailable")

// Outcome is the provider's verdict on a payment intent.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomePending   Outcome = "pending"
)

// InitiateRequest is the body of the initiate-payment call. Reference
// is the booking id; the amount is always the server-computed total.
type InitiateRequest struct {
	Reference      string `json:"reference"`
	AmountCents    uint32 `json:"amount_cents"`
	Currency       string `json:"currency"`
	ReturnURL      string `json:"return_url"`
	IdempotencyKey string `json:"idempotency_key"`
}

// InitiateResponse carries the provider's transaction handle and the
// checkout URL the customer is redirected to.
type InitiateResponse struct {
	ProviderRef string `json:"provider_ref"`
	RedirectURL string `json:"redirect_url"`
}

// CallbackPayload is the body of the provider's asynchronous callback.
// The signature over the raw body must be verified before any field is
// trusted.
type CallbackPayload struct {
	Reference   string  `json:"reference"`
	ProviderRef string  `json:"provider_ref"`
	Outcome     Outcome `json:"outcome"`
}

// Client talks to the payment provider over HTTP. Transient failures
// are retried with doubling backoff, mirroring how the broker consumer
// handles a flaky dependency.
type Client struct {
	baseURL     string
	secret      []byte
	httpClient  *http.Client
	maxAttempts int
	backoff     time.Duration
}

// NewClient returns a Client for the provider at baseURL. The secret
// is the shared HMAC key for callback signatures. maxAttempts bounds
// retries of transient failures; values below 1 are treated as 1.
func NewClient(baseURL, secret string, maxAttempts int) *Client {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Client{
		baseURL:     baseURL,
		secret:      []byte(secret),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		maxAttempts: maxAttempts,
		backoff:     500 * time.Millisecond,
	}
}

// Initiate creates a payment intent for the given reference and
// amount. On transient failure it retries up to the attempt budget and
// then returns ErrProviderUnavailable; the reconciler fails the
// booking and releases its seats at that point.
func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.doWithRetry(ctx, http.MethodPost, c.baseURL+"/v1/intents", body)
	if err != nil {
		return nil, err
	}
	var out InitiateResponse
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("decode initiate response: %w", err)
	}
	if out.ProviderRef == "" {
		return nil, fmt.Errorf("initiate response missing provider_ref")
	}
	return &out, nil
}

// Verify polls the provider for the outcome of an intent. Used when no
// callback arrived; the result feeds the same finalize path as a
// callback would.
func (c *Client) Verify(ctx context.Context, providerRef string) (Outcome, error) {
	resp, err := c.doWithRetry(ctx, http.MethodGet, c.baseURL+"/v1/intents/"+providerRef, nil)
	if err != nil {
		return "", err
	}
	var out struct {
		Status Outcome `json:"status"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return "", fmt.Errorf("decode verify response: %w", err)
	}
	switch out.Status {
	case OutcomeSucceeded, OutcomeFailed, OutcomePending:
		return out.Status, nil
	}
	return "", fmt.Errorf("unknown intent status %q", out.Status)
}

// VerifySignature checks the hex-encoded HMAC-SHA256 signature the
// provider sends with each callback. Constant-time comparison; an
// unverified payload must never reach the reconciler.
func (c *Client) VerifySignature(payload []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(c.secret, payload)), []byte(signature))
}

// Sign computes the hex HMAC-SHA256 of payload under secret. Exported
// so tests and the callback simulator can produce valid signatures.
func Sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// doWithRetry issues the request, retrying network errors and 5xx
// responses with doubling backoff. 4xx responses are not retried; they
// indicate a request the provider will never accept.
func (c *Client) doWithRetry(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	backoff := c.backoff
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
			continue
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		switch {
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%w: provider returned %d", ErrProviderUnavailable, resp.StatusCode)
			continue
		case resp.StatusCode >= 400:
			return nil, fmt.Errorf("provider rejected request: %d %s", resp.StatusCode, bytes.TrimSpace(data))
		case readErr != nil:
			lastErr = fmt.Errorf("%w: %v", ErrProviderUnavailable, readErr)
			continue
		}
		return data, nil
	}
	return nil, lastErr
}
