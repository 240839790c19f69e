// kledo/client.go
package kledo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// API endpoint paths. The upstream contract is fixed and versioned here
// rather than discovered at runtime; GetProfile validates it at startup.
const (
	pathProfile       = "/user"
	pathContacts      = "/finance/contacts"
	pathContactGroups = "/finance/contactGroups"
	pathAccounts      = "/finance/accounts"
	pathInvoices      = "/finance/invoices"
	pathPayments      = "/finance/payments"
)

const (
	getRetryAttempts = 3
	getRetryBackoff  = 250 * time.Millisecond
)

// TokenSource supplies a valid access token for each request
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client is the Kledo API client
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// NewClient creates a new Kledo API client
func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL:    baseURL,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// sendRequest makes an authenticated request to the Kledo API.
// GET requests are retried with exponential backoff on transport errors
// and 5xx responses; writes are never retried.
func (c *Client) sendRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	attempts := 1
	if method == http.MethodGet {
		attempts = getRetryAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := getRetryBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, wrapTransportErr(ctx.Err())
			case <-time.After(backoff):
			}
		}

		respBody, retryable, err := c.doRequest(ctx, method, path, body)
		if err == nil {
			return respBody, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}

	return nil, lastErr
}

// doRequest performs a single request. The second return value reports
// whether the failure is safe to retry.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, bool, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get valid token: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-APP", "finance")
	if method == http.MethodPost || method == http.MethodPut {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, wrapTransportErr(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Body: string(respBody)}

		var errBody struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(respBody, &errBody); err == nil {
			apiErr.Message = errBody.Message
		}

		return nil, resp.StatusCode >= 500, apiErr
	}

	return respBody, false, nil
}

// wrapTransportErr maps deadline and timeout failures to ErrUpstreamTimeout
func wrapTransportErr(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("request failed: %w", err)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	body, err := c.sendRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	body, err := c.sendRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// GetProfile fetches the authenticated user, verifying connectivity
// and the API contract
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	var resp dataEnvelope[Profile]
	if err := c.get(ctx, pathProfile, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}
