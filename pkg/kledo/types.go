// kledo/types.go
package kledo

// Contact is a Kledo contact record. Invoices may only reference
// contacts created with the customer type.
type Contact struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	GroupID int64  `json:"group_id"`
	TypeID  int    `json:"type_id"`
}

// CustomerTypeID marks a contact as a customer in Kledo
const CustomerTypeID = 1

// IsCustomer reports whether the contact can be referenced by invoices
func (c Contact) IsCustomer() bool {
	return c.TypeID == CustomerTypeID
}

// ContactRequest is the payload for contact creation
type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	GroupID int64  `json:"group_id,omitempty"`
	TypeID  int    `json:"type_id"`
}

// ContactGroup is the required parent for contact creation
type ContactGroup struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// FinanceAccount is a chart-of-accounts entry. Every invoice line
// item must reference one.
type FinanceAccount struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Code   string `json:"code"`
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

// InvoiceItem is a single invoice line
type InvoiceItem struct {
	FinanceAccountID int64   `json:"finance_account_id"`
	TaxID            int64   `json:"tax_id"`
	Desc             string  `json:"desc"`
	Qty              float64 `json:"qty"`
	Price            float64 `json:"price"`
	Amount           float64 `json:"amount"`
}

// InvoiceRequest is the payload for invoice creation
type InvoiceRequest struct {
	TransDate string        `json:"trans_date"`
	DueDate   string        `json:"due_date"`
	ContactID int64         `json:"contact_id"`
	RefNumber string        `json:"ref_number,omitempty"`
	Memo      string        `json:"memo,omitempty"`
	Items     []InvoiceItem `json:"items"`
}

// Invoice is a created invoice record
type Invoice struct {
	ID        int64   `json:"id"`
	ContactID int64   `json:"contact_id"`
	RefNumber string  `json:"ref_number"`
	StatusID  int     `json:"status_id"`
	Amount    float64 `json:"amount"`
}

// PaymentRequest marks an invoice as (partially) paid
type PaymentRequest struct {
	InvoiceID int64   `json:"invoice_id"`
	Amount    float64 `json:"amount"`
	Date      string  `json:"date"`
	Method    string  `json:"method,omitempty"`
	Memo      string  `json:"memo,omitempty"`
}

// Payment is a created payment record
type Payment struct {
	ID        int64   `json:"id"`
	InvoiceID int64   `json:"invoice_id"`
	Amount    float64 `json:"amount"`
	Date      string  `json:"date"`
}

// Profile is the authenticated Kledo user, used as the startup
// connectivity check
type Profile struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// dataEnvelope wraps single-object responses
type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

// listEnvelope wraps paginated list responses
type listEnvelope[T any] struct {
	Data struct {
		Data []T `json:"data"`
	} `json:"data"`
}
