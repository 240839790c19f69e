// syncer/service.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eGGnogSC/paysync/internal/transfers"
	"github.com/eGGnogSC/paysync/pkg/kledo"
	"github.com/eGGnogSC/paysync/pkg/xendit"
)

// ErrNotSettled indicates the transaction is not in a paid terminal
// state and nothing was synced
var ErrNotSettled = errors.New("transaction is not in a settled state")

// ErrSyncInProgress indicates another delivery of the same transaction
// is being synced right now
var ErrSyncInProgress = errors.New("sync already in progress for this transaction")

// ErrNoFinanceAccount indicates no active finance account exists to
// attach invoice lines to
var ErrNoFinanceAccount = errors.New("no active finance account available")

// ContactResolutionError wraps failures to find or create the payer contact
type ContactResolutionError struct {
	Email string
	Err   error
}

func (e *ContactResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve contact for %q: %v", e.Email, e.Err)
}

func (e *ContactResolutionError) Unwrap() error { return e.Err }

// AccountingClient is the subset of the Kledo API the orchestrator uses
type AccountingClient interface {
	FindContactByEmail(ctx context.Context, email string) (*kledo.Contact, error)
	CreateContact(ctx context.Context, req kledo.ContactRequest) (*kledo.Contact, error)
	ListContactGroups(ctx context.Context) ([]kledo.ContactGroup, error)
	CreateContactGroup(ctx context.Context, name string) (*kledo.ContactGroup, error)
	ListFinanceAccounts(ctx context.Context) ([]kledo.FinanceAccount, error)
	CreateInvoice(ctx context.Context, req kledo.InvoiceRequest) (*kledo.Invoice, error)
	CreatePayment(ctx context.Context, req kledo.PaymentRequest) (*kledo.Payment, error)
}

// Service mirrors settled payment-gateway transactions as paid invoices
// in the accounting platform
type Service struct {
	accounting AccountingClient
	store      *transfers.Store
	log        *zap.Logger
}

// NewService creates a new sync service
func NewService(accounting AccountingClient, store *transfers.Store, log *zap.Logger) *Service {
	return &Service{
		accounting: accounting,
		store:      store,
		log:        log,
	}
}

// SyncTransaction creates a paid invoice for a settled transaction.
// Re-delivery of an already-synced external_id is a no-op returning the
// recorded invoice.
func (s *Service) SyncTransaction(ctx context.Context, tx xendit.Transaction) (*kledo.Invoice, error) {
	if !tx.Settled() {
		return nil, ErrNotSettled
	}

	claimed, existing, err := s.store.Claim(ctx, tx.ExternalID, tx.ID, tx.Amount, tx.Currency, tx.PayerEmail)
	if err != nil {
		return nil, err
	}
	if !claimed {
		if existing.Synced() {
			s.log.Info("duplicate delivery, invoice already exists",
				zap.String("external_id", tx.ExternalID),
				zap.Int64("invoice_id", existing.InvoiceID))
			return &kledo.Invoice{ID: existing.InvoiceID, RefNumber: tx.ExternalID}, nil
		}
		return nil, ErrSyncInProgress
	}

	invoice, err := s.syncClaimed(ctx, tx)
	if err != nil {
		if markErr := s.store.MarkFailed(ctx, tx.ExternalID, err.Error()); markErr != nil {
			s.log.Error("failed to record sync failure", zap.Error(markErr))
		}
		return nil, err
	}

	return invoice, nil
}

func (s *Service) syncClaimed(ctx context.Context, tx xendit.Transaction) (*kledo.Invoice, error) {
	contact, err := s.resolveContact(ctx, tx.PayerEmail)
	if err != nil {
		return nil, &ContactResolutionError{Email: tx.PayerEmail, Err: err}
	}

	account, err := s.resolveFinanceAccount(ctx)
	if err != nil {
		return nil, err
	}

	amount := tx.Amount.InexactFloat64()
	desc := tx.Description
	if desc == "" {
		desc = "Payment via Xendit"
	}

	now := time.Now()
	invoice, err := s.accounting.CreateInvoice(ctx, kledo.InvoiceRequest{
		TransDate: now.Format("2006-01-02"),
		DueDate:   now.AddDate(0, 0, 30).Format("2006-01-02"),
		ContactID: contact.ID,
		RefNumber: tx.ExternalID,
		Memo:      fmt.Sprintf("Imported from Xendit payment %s (external id %s)", tx.ID, tx.ExternalID),
		Items: []kledo.InvoiceItem{{
			FinanceAccountID: account.ID,
			TaxID:            0,
			Desc:             desc,
			Qty:              1,
			Price:            amount,
			Amount:           amount,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("invoice creation failed: %w", err)
	}

	// Payment recording is best effort: a failure leaves the invoice
	// unpaid for manual reconciliation, it never rolls the invoice back.
	_, err = s.accounting.CreatePayment(ctx, kledo.PaymentRequest{
		InvoiceID: invoice.ID,
		Amount:    amount,
		Date:      now.Format("2006-01-02"),
		Method:    "transfer",
		Memo:      "Payment received via Xendit",
	})
	if err != nil {
		s.log.Warn("invoice created but payment recording failed, manual reconciliation needed",
			zap.String("external_id", tx.ExternalID),
			zap.Int64("invoice_id", invoice.ID),
			zap.Error(err))
		if markErr := s.store.MarkUnpaid(ctx, tx.ExternalID, invoice.ID, err.Error()); markErr != nil {
			s.log.Error("failed to record unpaid outcome", zap.Error(markErr))
		}
		return invoice, nil
	}

	if err := s.store.MarkSynced(ctx, tx.ExternalID, invoice.ID); err != nil {
		s.log.Error("failed to record sync outcome", zap.Error(err))
	}

	s.log.Info("transaction synced",
		zap.String("external_id", tx.ExternalID),
		zap.Int64("invoice_id", invoice.ID),
		zap.Float64("amount", amount))

	return invoice, nil
}

// resolveContact finds the payer's contact by email or creates a
// customer-typed one, resolving a contact group first
func (s *Service) resolveContact(ctx context.Context, email string) (*kledo.Contact, error) {
	name := "Anonymous Customer"
	if email != "" {
		name = strings.SplitN(email, "@", 2)[0]

		contact, err := s.accounting.FindContactByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if contact != nil {
			return contact, nil
		}
	}

	group, err := s.resolveContactGroup(ctx)
	if err != nil {
		return nil, err
	}

	req := kledo.ContactRequest{
		Name:    name,
		Email:   email,
		GroupID: group.ID,
		TypeID:  kledo.CustomerTypeID,
	}

	contact, err := s.accounting.CreateContact(ctx, req)
	if err == nil {
		return contact, nil
	}

	// Retry once with a disambiguated name, but only for an actual
	// name collision; other validation rejections are final.
	if isNameCollision(err) {
		req.Name = fmt.Sprintf("%s-%s", name, uuid.NewString()[:8])
		return s.accounting.CreateContact(ctx, req)
	}

	return nil, err
}

func isNameCollision(err error) bool {
	var apiErr *kledo.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnprocessableEntity {
		return false
	}
	return containsAny(apiErr.Message+" "+apiErr.Body, "name")
}

// resolveContactGroup prefers a customer-like group, then any active
// group, then creates one
func (s *Service) resolveContactGroup(ctx context.Context) (*kledo.ContactGroup, error) {
	groups, err := s.accounting.ListContactGroups(ctx)
	if err != nil {
		return nil, err
	}

	var firstActive *kledo.ContactGroup
	for i := range groups {
		g := &groups[i]
		if !g.Active {
			continue
		}
		if containsAny(g.Name, "customer", "pelanggan") {
			return g, nil
		}
		if firstActive == nil {
			firstActive = g
		}
	}
	if firstActive != nil {
		return firstActive, nil
	}

	return s.accounting.CreateContactGroup(ctx, "Customers")
}

// resolveFinanceAccount selects the invoice-line account: the persisted
// default when it is still active, else an active revenue-like account,
// else the first active account
func (s *Service) resolveFinanceAccount(ctx context.Context) (*kledo.FinanceAccount, error) {
	accounts, err := s.accounting.ListFinanceAccounts(ctx)
	if err != nil {
		return nil, err
	}

	configured, err := s.store.DefaultFinanceAccountID(ctx)
	if err != nil {
		return nil, err
	}

	var firstActive, revenue *kledo.FinanceAccount
	for i := range accounts {
		a := &accounts[i]
		if !a.Active {
			continue
		}
		if a.ID == configured {
			return a, nil
		}
		if revenue == nil && containsAny(a.Name+" "+a.Type, "revenue", "sales", "income", "pendapatan", "penjualan") {
			revenue = a
		}
		if firstActive == nil {
			firstActive = a
		}
	}

	if revenue != nil {
		return revenue, nil
	}
	if firstActive != nil {
		return firstActive, nil
	}

	return nil, ErrNoFinanceAccount
}

func containsAny(s string, needles ...string) bool {
	lower := strings.ToLower(s)
	for _, needle := range needles {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}
