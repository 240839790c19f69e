// xendit/client.go
package xendit

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// Transaction statuses that count as successfully paid
const (
	StatusPaid    = "PAID"
	StatusSettled = "SETTLED"
)

// Transaction is a payment-gateway invoice as delivered by webhook
// or returned by the invoice listing API. Immutable once fetched.
type Transaction struct {
	ID          string          `json:"id"`
	ExternalID  string          `json:"external_id"`
	Status      string          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	PayerEmail  string          `json:"payer_email"`
	Description string          `json:"description"`
	Created     time.Time       `json:"created"`
}

// Settled reports whether the transaction reached a paid terminal state
func (t Transaction) Settled() bool {
	return t.Status == StatusPaid || t.Status == StatusSettled
}

// Client is a read-only Xendit API client
type Client struct {
	rest *resty.Client
}

// NewClient creates a new Xendit client authenticated with the secret key
func NewClient(baseURL, secretKey string) *Client {
	rest := resty.New().
		SetBaseURL(baseURL).
		SetBasicAuth(secretKey, "").
		SetHeader("Accept", "application/json").
		SetTimeout(30 * time.Second)

	return &Client{rest: rest}
}

// ListInvoices fetches recent invoices, optionally filtered by status
func (c *Client) ListInvoices(ctx context.Context, statuses []string, limit int) ([]Transaction, error) {
	req := c.rest.R().SetContext(ctx)

	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	for _, status := range statuses {
		params.Add("statuses[]", status)
	}
	req.SetQueryParamsFromValues(params)

	var invoices []Transaction
	resp, err := req.SetResult(&invoices).Get("/v2/invoices")
	if err != nil {
		return nil, fmt.Errorf("xendit request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("xendit API returned status %d: %s", resp.StatusCode(), resp.String())
	}

	return invoices, nil
}

// ListSettled fetches recent transactions in paid terminal states
func (c *Client) ListSettled(ctx context.Context, limit int) ([]Transaction, error) {
	return c.ListInvoices(ctx, []string{StatusPaid, StatusSettled}, limit)
}
