// webhook/handler.go
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/eGGnogSC/paysync/internal/syncer"
	"github.com/eGGnogSC/paysync/pkg/kledo"
	"github.com/eGGnogSC/paysync/pkg/xendit"
)

// SignatureHeader carries the gateway's shared webhook secret
const SignatureHeader = "X-Callback-Token"

// TransactionSyncer mirrors one settled transaction into the
// accounting platform
type TransactionSyncer interface {
	SyncTransaction(ctx context.Context, tx xendit.Transaction) (*kledo.Invoice, error)
}

// Handler receives payment-gateway webhooks
type Handler struct {
	secret string
	syncer TransactionSyncer
	log    *zap.Logger
}

// NewHandler creates a new webhook handler
func NewHandler(secret string, s TransactionSyncer, log *zap.Logger) *Handler {
	return &Handler{
		secret: secret,
		syncer: s,
		log:    log,
	}
}

// Handle processes a webhook delivery. Signature mismatches get 401,
// malformed payloads 400. Sync failures for qualifying events are logged
// and recorded but still acknowledged with 200 so the gateway does not
// retry-storm.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get(SignatureHeader)
	if subtle.ConstantTimeCompare([]byte(signature), []byte(h.secret)) != 1 {
		h.log.Warn("webhook signature verification failed")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var tx xendit.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "malformed payload",
		})
		return
	}
	if tx.ID == "" || tx.ExternalID == "" || tx.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "malformed payload: id, external_id and status are required",
		})
		return
	}

	h.log.Info("webhook received",
		zap.String("transaction_id", tx.ID),
		zap.String("external_id", tx.ExternalID),
		zap.String("status", tx.Status),
		zap.String("amount", tx.Amount.String()),
		zap.String("currency", tx.Currency))

	if !tx.Settled() {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":        true,
			"message":        "transaction status: " + tx.Status,
			"transaction_id": tx.ID,
		})
		return
	}

	if _, err := h.syncer.SyncTransaction(r.Context(), tx); err != nil {
		if errors.Is(err, syncer.ErrSyncInProgress) {
			h.log.Info("concurrent delivery ignored", zap.String("external_id", tx.ExternalID))
		} else {
			// Failure is recorded in the transfer ledger for operator
			// visibility; the gateway still gets a 200.
			h.log.Error("webhook sync failed",
				zap.String("transaction_id", tx.ID),
				zap.String("external_id", tx.ExternalID),
				zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"transaction_id": tx.ID,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
