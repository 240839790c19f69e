// syncer/handlers.go
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/eGGnogSC/paysync/internal/transfers"
	"github.com/eGGnogSC/paysync/pkg/xendit"
)

const defaultSyncBatch = 10

// GatewayClient is the subset of the payment gateway API the handlers use
type GatewayClient interface {
	ListInvoices(ctx context.Context, statuses []string, limit int) ([]xendit.Transaction, error)
	ListSettled(ctx context.Context, limit int) ([]xendit.Transaction, error)
}

// Handler provides HTTP handlers for sync operations and the dashboard
// data endpoints
type Handler struct {
	service *Service
	gateway GatewayClient
	store   *transfers.Store
	log     *zap.Logger
}

// NewHandler creates a new sync handler
func NewHandler(service *Service, gateway GatewayClient, store *transfers.Store, log *zap.Logger) *Handler {
	return &Handler{
		service: service,
		gateway: gateway,
		store:   store,
		log:     log,
	}
}

type syncError struct {
	TransactionID string `json:"transaction_id"`
	Error         string `json:"error"`
}

// TriggerHandler fetches recent settled transactions from the gateway
// and syncs each one, collecting per-transaction errors into a report
// instead of aborting the batch
func (h *Handler) TriggerHandler(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultSyncBatch)

	txs, err := h.gateway.ListSettled(r.Context(), limit)
	if err != nil {
		h.log.Error("failed to fetch gateway transactions", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"success": false,
			"error":   "failed to fetch transactions from payment gateway",
		})
		return
	}

	report := struct {
		Success    bool        `json:"success"`
		Processed  int         `json:"processed"`
		Successful int         `json:"successful"`
		Errors     []syncError `json:"errors"`
	}{Success: true, Errors: []syncError{}}

	for _, tx := range txs {
		report.Processed++

		_, err := h.service.SyncTransaction(r.Context(), tx)
		switch {
		case err == nil:
			report.Successful++
		case errors.Is(err, ErrNotSettled):
			// Listing is status-filtered, but do not trust the upstream
			report.Processed--
		default:
			h.log.Warn("manual sync failed for transaction",
				zap.String("transaction_id", tx.ID), zap.Error(err))
			report.Errors = append(report.Errors, syncError{
				TransactionID: tx.ID,
				Error:         err.Error(),
			})
		}
	}

	writeJSON(w, http.StatusOK, report)
}

// transferView is the dashboard wire form of a transfer record
type transferView struct {
	ID            int64           `json:"id"`
	ExternalID    string          `json:"external_id"`
	TransactionID string          `json:"transaction_id"`
	InvoiceID     int64           `json:"invoice_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PayerEmail    string          `json:"payer_email"`
	Status        string          `json:"status"`
	Detail        string          `json:"detail,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TransfersHandler lists recent transfers from the durable ledger
func (h *Handler) TransfersHandler(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)

	records, err := h.store.Recent(r.Context(), limit)
	if err != nil {
		h.log.Error("failed to list transfers", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "failed to list transfers",
		})
		return
	}

	views := make([]transferView, 0, len(records))
	for _, rec := range records {
		views = append(views, transferView{
			ID:            rec.ID,
			ExternalID:    rec.ExternalID,
			TransactionID: rec.TransactionID,
			InvoiceID:     rec.InvoiceID,
			Amount:        rec.Amount,
			Currency:      rec.Currency,
			PayerEmail:    rec.PayerEmail,
			Status:        rec.Status,
			Detail:        rec.Detail,
			CreatedAt:     rec.CreatedAt,
			UpdatedAt:     rec.UpdatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    views,
		"total":   len(views),
	})
}

// TransactionsHandler is a read-only passthrough to the payment gateway
// transaction list
func (h *Handler) TransactionsHandler(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 25)

	txs, err := h.gateway.ListInvoices(r.Context(), nil, limit)
	if err != nil {
		h.log.Error("failed to fetch gateway transactions", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"success": false,
			"error":   "failed to fetch transactions from payment gateway",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    txs,
		"total":   len(txs),
	})
}

// SingleSyncHandler syncs one transaction supplied in the request body
func (h *Handler) SingleSyncHandler(w http.ResponseWriter, r *http.Request) {
	var tx xendit.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil || tx.ID == "" || tx.ExternalID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "a transaction with id and external_id is required",
		})
		return
	}

	invoice, err := h.service.SyncTransaction(r.Context(), tx)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, ErrNotSettled) {
			status = http.StatusUnprocessableEntity
		}
		h.log.Warn("single sync failed",
			zap.String("transaction_id", tx.ID), zap.Error(err))
		writeJSON(w, status, map[string]any{
			"success":        false,
			"transaction_id": tx.ID,
			"error":          err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"transaction_id": tx.ID,
		"invoice_id":     invoice.ID,
	})
}

// AccountsHandler lists the accounting platform's finance accounts so
// operators can pick a default account id
func (h *Handler) AccountsHandler(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.accounting.ListFinanceAccounts(r.Context())
	if err != nil {
		h.log.Error("failed to list finance accounts", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"success": false,
			"error":   "failed to fetch accounts from accounting platform",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    accounts,
		"total":   len(accounts),
	})
}

// FinanceAccountHandler persists the default finance account id after
// validating it against the live chart of accounts
func (h *Handler) FinanceAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID int64 `json:"account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "account_id is required",
		})
		return
	}

	accounts, err := h.service.accounting.ListFinanceAccounts(r.Context())
	if err != nil {
		h.log.Error("failed to list finance accounts", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"success": false,
			"error":   "failed to verify account against accounting platform",
		})
		return
	}

	valid := false
	for _, account := range accounts {
		if account.ID == req.AccountID && account.Active {
			valid = true
			break
		}
	}
	if !valid {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "account is unknown or inactive",
		})
		return
	}

	if err := h.store.SetDefaultFinanceAccountID(r.Context(), req.AccountID); err != nil {
		h.log.Error("failed to persist finance account", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "failed to save setting",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"account_id": req.AccountID,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
