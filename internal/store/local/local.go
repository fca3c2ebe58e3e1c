// Package local provides the embedded SQLite store for invoicedesk.
//
// The database runs in embedded mode with WAL so the UI thread and a
// background sync run can read concurrently. The file is exclusively
// owned by the single application process; no cross-process
// coordination is provided.
//
// Monetary values are stored as decimal strings, never as REAL, so
// round-tripping through the store loses no precision.
package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/shopspring/decimal"

	"github.com/mkramer/invoicedesk/internal/model"
	"github.com/mkramer/invoicedesk/internal/store"
)

// DB wraps the SQLite connection with invoice-specific operations.
// It implements store.LocalStore.
type DB struct {
	conn *sql.DB
	path string
}

var _ store.LocalStore = (*DB)(nil)

// Open creates a database connection at the specified path.
//
// If the database doesn't exist it is created; InitSchema must still
// be called before use. The caller MUST call Close() when done.
//
// Example:
//
//	db, err := local.Open("local_invoices.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path}

	// WAL mode for concurrent reads during writes
	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Line item cascade deletes require this
	if _, err := db.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close closes the database connection after checkpointing the WAL.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// Idempotent - safe to call multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS invoices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		invoice_number TEXT NOT NULL UNIQUE,
		invoice_date TEXT NOT NULL,
		customer_name TEXT NOT NULL,
		customer_address TEXT NOT NULL DEFAULT '',
		is_synced INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS invoice_line_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		invoice_id INTEGER NOT NULL
			REFERENCES invoices(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		description TEXT NOT NULL,
		quantity TEXT NOT NULL,   -- decimal string
		unit_price TEXT NOT NULL  -- decimal string
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		reference TEXT NOT NULL UNIQUE,
		tx_date TEXT NOT NULL,
		amount TEXT NOT NULL,     -- decimal string
		category TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		payment_method TEXT NOT NULL,
		is_synced INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- The unsynced scan is the hot query for sync runs
	CREATE INDEX IF NOT EXISTS idx_invoices_synced ON invoices(is_synced);
	CREATE INDEX IF NOT EXISTS idx_transactions_synced ON transactions(is_synced);
	CREATE INDEX IF NOT EXISTS idx_line_items_invoice ON invoice_line_items(invoice_id);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// InsertInvoice persists an invoice and its line items in a single SQL
// transaction. The UNIQUE constraint on invoice_number makes the
// check-and-insert atomic; a collision surfaces as
// store.ErrDuplicateKey with nothing written.
func (db *DB) InsertInvoice(ctx context.Context, inv *model.Invoice, synced bool) (*store.StoredInvoice, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO invoices (invoice_number, invoice_date, customer_name, customer_address, is_synced, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		inv.InvoiceNumber,
		inv.InvoiceDate,
		inv.CustomerName,
		inv.CustomerAddress,
		boolToInt(synced),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("invoice %q: %w", inv.InvoiceNumber, store.ErrDuplicateKey)
		}
		return nil, fmt.Errorf("failed to insert invoice %q: %w", inv.InvoiceNumber, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice id: %w", err)
	}

	for i, li := range inv.LineItems {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO invoice_line_items (invoice_id, position, description, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)`,
			id, i+1, li.Description, li.Quantity.String(), li.UnitPrice.String(),
		); err != nil {
			return nil, fmt.Errorf("failed to insert line item %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit invoice: %w", err)
	}

	stored := &store.StoredInvoice{ID: id, IsSynced: synced, Invoice: *inv}
	return stored, nil
}

// GetInvoiceByNumber retrieves an invoice by its natural key.
// Returns store.ErrNotFound if no such invoice exists.
func (db *DB) GetInvoiceByNumber(ctx context.Context, number string) (*store.StoredInvoice, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, invoice_number, invoice_date, customer_name, customer_address, is_synced
		FROM invoices WHERE invoice_number = ?`, number)

	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice %q: %w", number, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if err := db.loadLineItems(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// ListUnsyncedInvoices returns a snapshot of unsynced invoices ordered
// by id ascending. Invoices inserted after the query runs belong to
// the next sync run.
func (db *DB) ListUnsyncedInvoices(ctx context.Context) ([]*store.StoredInvoice, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, invoice_number, invoice_date, customer_name, customer_address, is_synced
		FROM invoices WHERE is_synced = 0 ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unsynced invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*store.StoredInvoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoices: %w", err)
	}

	for _, inv := range invoices {
		if err := db.loadLineItems(ctx, inv); err != nil {
			return nil, err
		}
	}

	return invoices, nil
}

// MarkInvoiceSynced sets the synced flag on a local invoice.
//
// The transition is one-way: the flag only ever goes false to true.
// Marking an already-synced invoice succeeds silently, which is what
// lets the sync engine heal after a crash between remote insert and
// local mark. Returns false when the id is unknown.
func (db *DB) MarkInvoiceSynced(ctx context.Context, id int64) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `UPDATE invoices SET is_synced = 1 WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark invoice %d synced: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteInvoice removes an invoice header. Line items go with it via
// ON DELETE CASCADE.
func (db *DB) DeleteInvoice(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete invoice %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("invoice %d: %w", id, store.ErrNotFound)
	}
	return nil
}

// InvoiceCount returns the total number of invoices in the store.
func (db *DB) InvoiceCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM invoices").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	return count, nil
}

// InsertTransaction persists a bookkeeping entry. A reference
// collision surfaces as store.ErrDuplicateKey.
func (db *DB) InsertTransaction(ctx context.Context, tr *model.Transaction, synced bool) (*store.StoredTransaction, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO transactions (reference, tx_date, amount, category, description, payment_method, is_synced, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.Reference,
		tr.Date,
		tr.Amount.String(),
		tr.Category,
		tr.Description,
		tr.PaymentMethod,
		boolToInt(synced),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("transaction %q: %w", tr.Reference, store.ErrDuplicateKey)
		}
		return nil, fmt.Errorf("failed to insert transaction %q: %w", tr.Reference, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read transaction id: %w", err)
	}

	stored := &store.StoredTransaction{ID: id, IsSynced: synced, Transaction: *tr}
	return stored, nil
}

// ListUnsyncedTransactions returns a snapshot of unsynced transactions
// ordered by id ascending.
func (db *DB) ListUnsyncedTransactions(ctx context.Context) ([]*store.StoredTransaction, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, reference, tx_date, amount, category, description, payment_method, is_synced
		FROM transactions WHERE is_synced = 0 ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unsynced transactions: %w", err)
	}
	defer rows.Close()

	var txs []*store.StoredTransaction
	for rows.Next() {
		tr, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

// MarkTransactionSynced sets the synced flag on a local transaction.
// Same contract as MarkInvoiceSynced.
func (db *DB) MarkTransactionSynced(ctx context.Context, id int64) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `UPDATE transactions SET is_synced = 1 WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark transaction %d synced: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// TransactionCount returns the total number of transactions in the store.
func (db *DB) TransactionCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// LineItemCount returns the number of line items attached to an
// invoice. Used to verify cascade behavior.
func (db *DB) LineItemCount(ctx context.Context, invoiceID int64) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM invoice_line_items WHERE invoice_id = ?", invoiceID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count line items: %w", err)
	}
	return count, nil
}

func (db *DB) loadLineItems(ctx context.Context, inv *store.StoredInvoice) error {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT description, quantity, unit_price
		FROM invoice_line_items WHERE invoice_id = ? ORDER BY position ASC`, inv.ID)
	if err != nil {
		return fmt.Errorf("failed to query line items for invoice %d: %w", inv.ID, err)
	}
	defer rows.Close()

	var items []model.LineItem
	for rows.Next() {
		var li model.LineItem
		var qty, price string
		if err := rows.Scan(&li.Description, &qty, &price); err != nil {
			return fmt.Errorf("failed to scan line item: %w", err)
		}
		if li.Quantity, err = decimal.NewFromString(qty); err != nil {
			return fmt.Errorf("failed to parse quantity %q: %w", qty, err)
		}
		if li.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("failed to parse unit price %q: %w", price, err)
		}
		items = append(items, li)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating line items: %w", err)
	}

	inv.LineItems = items
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*store.StoredInvoice, error) {
	var inv store.StoredInvoice
	var synced int
	err := row.Scan(
		&inv.ID,
		&inv.InvoiceNumber,
		&inv.InvoiceDate,
		&inv.CustomerName,
		&inv.CustomerAddress,
		&synced,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan invoice: %w", err)
	}
	inv.IsSynced = synced != 0
	return &inv, nil
}

func scanTransaction(row rowScanner) (*store.StoredTransaction, error) {
	var tr store.StoredTransaction
	var synced int
	var amount string
	err := row.Scan(
		&tr.ID,
		&tr.Reference,
		&tr.Date,
		&amount,
		&tr.Category,
		&tr.Description,
		&tr.PaymentMethod,
		&synced,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	if tr.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
	}
	tr.IsSynced = synced != 0
	return &tr, nil
}

// isUniqueViolation classifies a driver error structurally via the
// SQLite extended result code. The original system matched driver
// message substrings, which breaks across driver versions and locales.
func isUniqueViolation(err error) bool {
	var serr *sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode() == sqlite3.CONSTRAINT_UNIQUE
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
