// kledo/finance.go
package kledo

import "context"

// ListFinanceAccounts returns the chart of accounts
func (c *Client) ListFinanceAccounts(ctx context.Context) ([]FinanceAccount, error) {
	var resp listEnvelope[FinanceAccount]
	if err := c.get(ctx, pathAccounts, &resp); err != nil {
		return nil, err
	}
	return resp.Data.Data, nil
}

// CreateInvoice creates a new sales invoice
func (c *Client) CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	var resp dataEnvelope[Invoice]
	if err := c.post(ctx, pathInvoices, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// CreatePayment records a payment against an invoice
func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error) {
	var resp dataEnvelope[Payment]
	if err := c.post(ctx, pathPayments, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}
