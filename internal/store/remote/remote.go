// Package remote provides the PostgreSQL remote store.
//
// The remote store holds the authoritative, shared copy of records.
// Its insert operations report a three-way outcome (inserted,
// already-exists, failed) because the sync engine treats a natural-key
// collision as a valid terminal state, not an error: it is how a
// crashed run heals on the next attempt.
package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/mkramer/invoicedesk/internal/model"
	"github.com/mkramer/invoicedesk/internal/store"
)

// DefaultPort is the standard PostgreSQL port.
const DefaultPort = 5432

// Config holds the remote store connection parameters.
//
// Host, Database and User are required; absence of any of them means
// "not configured", which callers must treat as distinct from
// "configured but unreachable". Password may legitimately be empty for
// some auth methods.
type Config struct {
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	Database string `mapstructure:"database" json:"database"`
	User     string `mapstructure:"user" json:"user"`
	Password string `mapstructure:"password" json:"password"`
}

// Configured reports whether the required connection fields are set.
func (c Config) Configured() bool {
	return c.Host != "" && c.Database != "" && c.User != ""
}

// URL assembles the connection string. Returns ErrNotConfigured when
// required fields are missing.
func (c Config) URL() (string, error) {
	if !c.Configured() {
		return "", store.ErrNotConfigured
	}
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, port),
		Path:   "/" + c.Database,
	}
	return u.String(), nil
}

// DB wraps the PostgreSQL connection. It implements store.RemoteStore.
type DB struct {
	conn *sql.DB
}

var _ store.RemoteStore = (*DB)(nil)

// Open connects to the remote store and verifies reachability.
//
// A missing configuration returns an error wrapping
// store.ErrNotConfigured; a failed connection attempt returns one
// wrapping store.ErrRemoteUnavailable. The caller MUST Close() the
// returned store.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	dsn, err := cfg.URL()
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrRemoteUnavailable, err)
	}

	conn.SetMaxIdleConns(2)
	conn.SetMaxOpenConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %v", store.ErrRemoteUnavailable, err)
	}

	return &DB{conn: conn}, nil
}

// Opener returns a store.RemoteOpener that dials this configuration
// and initializes the schema. The sync engine opens one connection per
// run through it.
func Opener(cfg Config) store.RemoteOpener {
	return store.RemoteOpenerFunc(func(ctx context.Context) (store.RemoteStore, error) {
		db, err := Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := db.InitSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	})
}

// Ping verifies the connection is still alive.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", store.ErrRemoteUnavailable, err)
	}
	return nil
}

// Close releases the connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// InitSchema creates the remote tables if they don't exist. Idempotent.
// The logical schema mirrors the local store; is_synced is absent
// because "synced" is a local-store-only concept.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS invoices (
		id BIGSERIAL PRIMARY KEY,
		invoice_number TEXT NOT NULL UNIQUE,
		invoice_date DATE NOT NULL,
		customer_name TEXT NOT NULL,
		customer_address TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS invoice_line_items (
		id BIGSERIAL PRIMARY KEY,
		invoice_id BIGINT NOT NULL
			REFERENCES invoices(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		description TEXT NOT NULL,
		quantity NUMERIC(12, 4) NOT NULL,
		unit_price NUMERIC(12, 4) NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id BIGSERIAL PRIMARY KEY,
		reference TEXT NOT NULL UNIQUE,
		tx_date DATE NOT NULL,
		amount NUMERIC(12, 4) NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		payment_method TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_line_items_invoice ON invoice_line_items(invoice_id);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize remote schema: %w", err)
	}
	return nil
}

// InsertInvoice writes an invoice to the remote store.
//
// A unique violation on the invoice number is classified via the
// driver's SQLSTATE and reported as StatusAlreadyExists together with
// the existing remote record. Any other failure is returned as an
// error for the caller to count and retry later.
func (db *DB) InsertInvoice(ctx context.Context, inv *model.Invoice) (*store.StoredInvoice, store.InsertStatus, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO invoices (invoice_number, invoice_date, customer_name, customer_address)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		inv.InvoiceNumber, inv.InvoiceDate, inv.CustomerName, inv.CustomerAddress,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			existing, lookupErr := db.getInvoiceByNumber(ctx, inv.InvoiceNumber)
			if lookupErr != nil {
				return nil, 0, fmt.Errorf("invoice %q exists but lookup failed: %w", inv.InvoiceNumber, lookupErr)
			}
			return existing, store.StatusAlreadyExists, nil
		}
		return nil, 0, fmt.Errorf("failed to insert invoice %q: %w", inv.InvoiceNumber, err)
	}

	for i, li := range inv.LineItems {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO invoice_line_items (invoice_id, position, description, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)`,
			id, i+1, li.Description, li.Quantity.String(), li.UnitPrice.String(),
		); err != nil {
			return nil, 0, fmt.Errorf("failed to insert line item %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("failed to commit invoice: %w", err)
	}

	stored := &store.StoredInvoice{ID: id, IsSynced: true, Invoice: *inv}
	return stored, store.StatusInserted, nil
}

// InsertTransaction writes a bookkeeping entry to the remote store.
// Same outcome contract as InsertInvoice.
func (db *DB) InsertTransaction(ctx context.Context, tr *model.Transaction) (*store.StoredTransaction, store.InsertStatus, error) {
	var id int64
	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO transactions (reference, tx_date, amount, category, description, payment_method)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		tr.Reference, tr.Date, tr.Amount.String(), tr.Category, tr.Description, tr.PaymentMethod,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			existing, lookupErr := db.getTransactionByReference(ctx, tr.Reference)
			if lookupErr != nil {
				return nil, 0, fmt.Errorf("transaction %q exists but lookup failed: %w", tr.Reference, lookupErr)
			}
			return existing, store.StatusAlreadyExists, nil
		}
		return nil, 0, fmt.Errorf("failed to insert transaction %q: %w", tr.Reference, err)
	}

	stored := &store.StoredTransaction{ID: id, IsSynced: true, Transaction: *tr}
	return stored, store.StatusInserted, nil
}

// NextInvoiceNumber suggests the next free number of the form
// PREFIX-YYYYMMDD-NNN based on the highest existing suffix for today.
func (db *DB) NextInvoiceNumber(ctx context.Context, prefix string) (string, error) {
	todayPrefix := fmt.Sprintf("%s%s-", prefix, time.Now().Format("20060102"))

	var max sql.NullInt64
	err := db.conn.QueryRowContext(ctx, `
		SELECT MAX(CAST(SUBSTRING(invoice_number FROM $2) AS INTEGER))
		FROM invoices
		WHERE invoice_number LIKE $1`,
		todayPrefix+"%", len(todayPrefix)+1,
	).Scan(&max)
	if err != nil {
		return "", fmt.Errorf("failed to query next invoice number: %w", err)
	}

	next := int64(1)
	if max.Valid {
		next = max.Int64 + 1
	}
	return fmt.Sprintf("%s%03d", todayPrefix, next), nil
}

func (db *DB) getInvoiceByNumber(ctx context.Context, number string) (*store.StoredInvoice, error) {
	var inv store.StoredInvoice
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, invoice_number, to_char(invoice_date, 'YYYY-MM-DD'), customer_name, customer_address
		FROM invoices WHERE invoice_number = $1`, number,
	).Scan(&inv.ID, &inv.InvoiceNumber, &inv.InvoiceDate, &inv.CustomerName, &inv.CustomerAddress)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice %q: %w", number, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice %q: %w", number, err)
	}
	inv.IsSynced = true

	rows, err := db.conn.QueryContext(ctx, `
		SELECT description, quantity, unit_price
		FROM invoice_line_items WHERE invoice_id = $1 ORDER BY position ASC`, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query line items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var li model.LineItem
		var qty, price string
		if err := rows.Scan(&li.Description, &qty, &price); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		if li.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("failed to parse quantity %q: %w", qty, err)
		}
		if li.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("failed to parse unit price %q: %w", price, err)
		}
		inv.LineItems = append(inv.LineItems, li)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating line items: %w", err)
	}

	return &inv, nil
}

func (db *DB) getTransactionByReference(ctx context.Context, ref string) (*store.StoredTransaction, error) {
	var tr store.StoredTransaction
	var amount string
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, reference, to_char(tx_date, 'YYYY-MM-DD'), amount, category, description, payment_method
		FROM transactions WHERE reference = $1`, ref,
	).Scan(&tr.ID, &tr.Reference, &tr.Date, &amount, &tr.Category, &tr.Description, &tr.PaymentMethod)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %q: %w", ref, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction %q: %w", ref, err)
	}
	if tr.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
	}
	tr.IsSynced = true
	return &tr, nil
}

// isUniqueViolation classifies a driver error via SQLSTATE 23505
// (unique_violation), never by matching message text.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
