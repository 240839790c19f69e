// transfers/store.go
package transfers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// pendingStaleAfter is how long a pending claim may go without progress
// before another delivery is allowed to take it over (process death
// mid-sync would otherwise block the external_id forever)
const pendingStaleAfter = 15 * time.Minute

// Transfer statuses
const (
	StatusPending = "pending" // claimed, sync in flight
	StatusSynced  = "synced"  // invoice created and paid
	StatusUnpaid  = "unpaid"  // invoice created, payment recording failed
	StatusFailed  = "failed"  // sync attempt failed before invoice creation
)

// Record is one row of the transfer ledger. external_id is unique, which
// makes Claim an atomic insert-if-absent and closes the duplicate-invoice
// race under concurrent webhook delivery.
type Record struct {
	ID            int64
	ExternalID    string
	TransactionID string
	InvoiceID     int64
	Amount        decimal.Decimal
	Currency      string
	PayerEmail    string
	Status        string
	Detail        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Synced reports whether an invoice already exists for this transfer
func (r Record) Synced() bool {
	return r.Status == StatusSynced || r.Status == StatusUnpaid
}

// Store is the SQLite-backed transfer ledger and settings store
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at the given path
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transfers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT NOT NULL UNIQUE,
		transaction_id TEXT NOT NULL,
		invoice_id INTEGER NOT NULL DEFAULT 0,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		payer_email TEXT NOT NULL,
		status TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transfers_status ON transfers(status);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`

	_, err := s.db.Exec(schema)
	return err
}

// Claim atomically registers an external_id for syncing. It returns
// claimed=true when this caller owns the sync attempt. When the id is
// already present, the existing record is returned; a failed record is
// re-claimed so retries can proceed.
func (s *Store) Claim(ctx context.Context, externalID, transactionID string, amount decimal.Decimal, currency, payerEmail string) (bool, *Record, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO transfers
		 (external_id, transaction_id, invoice_id, amount, currency, payer_email, status, created_at, updated_at)
		 VALUES (?, ?, 0, ?, ?, ?, ?, ?, ?)`,
		externalID, transactionID, amount.String(), currency, payerEmail, StatusPending, now, now)
	if err != nil {
		return false, nil, fmt.Errorf("failed to claim transfer: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return true, nil, nil
	}

	existing, err := s.Get(ctx, externalID)
	if err != nil {
		return false, nil, err
	}

	stalePending := existing.Status == StatusPending && time.Since(existing.UpdatedAt) > pendingStaleAfter
	if existing.Status == StatusFailed || stalePending {
		res, err := s.db.ExecContext(ctx,
			`UPDATE transfers SET status = ?, detail = '', updated_at = ?
			 WHERE external_id = ? AND (status = ? OR (status = ? AND updated_at <= ?))`,
			StatusPending, time.Now().UTC(), externalID,
			StatusFailed, StatusPending, time.Now().UTC().Add(-pendingStaleAfter))
		if err != nil {
			return false, nil, fmt.Errorf("failed to re-claim transfer: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			return true, existing, nil
		}
		// Lost the race to another retry
		existing, err = s.Get(ctx, externalID)
		if err != nil {
			return false, nil, err
		}
	}

	return false, existing, nil
}

// Get returns the record for an external_id
func (s *Store) Get(ctx context.Context, externalID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, external_id, transaction_id, invoice_id, amount, currency, payer_email, status, detail, created_at, updated_at
		 FROM transfers WHERE external_id = ?`, externalID)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transfer %s not found", externalID)
		}
		return nil, fmt.Errorf("failed to get transfer: %w", err)
	}
	return rec, nil
}

// MarkSynced records a successfully created and paid invoice
func (s *Store) MarkSynced(ctx context.Context, externalID string, invoiceID int64) error {
	return s.setOutcome(ctx, externalID, StatusSynced, invoiceID, "")
}

// MarkUnpaid records an invoice whose payment recording failed and
// needs manual reconciliation
func (s *Store) MarkUnpaid(ctx context.Context, externalID string, invoiceID int64, detail string) error {
	return s.setOutcome(ctx, externalID, StatusUnpaid, invoiceID, detail)
}

// MarkFailed records a failed sync attempt
func (s *Store) MarkFailed(ctx context.Context, externalID, detail string) error {
	return s.setOutcome(ctx, externalID, StatusFailed, 0, detail)
}

func (s *Store) setOutcome(ctx context.Context, externalID, status string, invoiceID int64, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE transfers SET status = ?, invoice_id = ?, detail = ?, updated_at = ? WHERE external_id = ?`,
		status, invoiceID, detail, time.Now().UTC(), externalID)
	if err != nil {
		return fmt.Errorf("failed to update transfer %s: %w", externalID, err)
	}
	return nil
}

// Recent returns the latest transfers, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, external_id, transaction_id, invoice_id, amount, currency, payer_email, status, detail, created_at, updated_at
		 FROM transfers ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var amount string

	err := row.Scan(&rec.ID, &rec.ExternalID, &rec.TransactionID, &rec.InvoiceID,
		&amount, &rec.Currency, &rec.PayerEmail, &rec.Status, &rec.Detail,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("bad amount %q: %w", amount, err)
	}

	return &rec, nil
}

const settingFinanceAccount = "default_finance_account_id"

// DefaultFinanceAccountID returns the persisted default finance account,
// or 0 when unset
func (s *Store) DefaultFinanceAccountID(ctx context.Context) (int64, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, settingFinanceAccount).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read setting: %w", err)
	}

	var id int64
	if _, err := fmt.Sscanf(value, "%d", &id); err != nil {
		return 0, fmt.Errorf("bad finance account id %q: %w", value, err)
	}
	return id, nil
}

// SetDefaultFinanceAccountID persists the default finance account.
// This is the only mutation path; runtime config is never written.
func (s *Store) SetDefaultFinanceAccountID(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		settingFinanceAccount, fmt.Sprintf("%d", id), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save setting: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}
