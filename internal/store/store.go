// Package store defines the persistence contracts shared by the local
// and remote stores, together with the error taxonomy the rest of the
// application classifies against.
//
// Duplicate-key detection is structural: implementations translate
// their driver's typed error (SQLite extended result code, Postgres
// SQLSTATE) into ErrDuplicateKey. Message text is never inspected.
package store

import (
	"context"
	"errors"

	"github.com/mkramer/invoicedesk/internal/model"
)

var (
	// ErrDuplicateKey indicates a natural key collision (invoice
	// number or transaction reference already present in the store).
	ErrDuplicateKey = errors.New("duplicate natural key")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNotConfigured indicates the remote store has no usable
	// connection parameters. Distinct from ErrRemoteUnavailable so the
	// caller can disable online actions rather than retry them.
	ErrNotConfigured = errors.New("remote store not configured")

	// ErrRemoteUnavailable indicates the remote store is configured
	// but could not be reached.
	ErrRemoteUnavailable = errors.New("remote store unavailable")
)

// StoredInvoice is an invoice with its store-assigned identity.
type StoredInvoice struct {
	ID       int64
	IsSynced bool
	model.Invoice
}

// StoredTransaction is a transaction with its store-assigned identity.
type StoredTransaction struct {
	ID       int64
	IsSynced bool
	model.Transaction
}

// InsertStatus classifies a successful remote insert.
type InsertStatus int

const (
	// StatusInserted means the record was freshly written.
	StatusInserted InsertStatus = iota
	// StatusAlreadyExists means a record with the same natural key was
	// already present. Within a sync run this is a valid terminal
	// outcome, not an error.
	StatusAlreadyExists
)

// String returns a human-readable representation of the status.
func (s InsertStatus) String() string {
	switch s {
	case StatusInserted:
		return "inserted"
	case StatusAlreadyExists:
		return "already-exists"
	default:
		return "unknown"
	}
}

// LocalStore is the offline, single-writer store. Records land here
// unsynced and are drained to the remote store by the sync engine.
type LocalStore interface {
	// InsertInvoice persists an invoice atomically with its line
	// items. The natural-key uniqueness check and the insert are one
	// operation; a collision returns ErrDuplicateKey with no partial
	// write.
	InsertInvoice(ctx context.Context, inv *model.Invoice, synced bool) (*StoredInvoice, error)

	// ListUnsyncedInvoices returns a snapshot of unsynced invoices
	// ordered by id ascending.
	ListUnsyncedInvoices(ctx context.Context) ([]*StoredInvoice, error)

	// MarkInvoiceSynced flips the synced flag. It is idempotent:
	// marking an already-synced invoice succeeds silently. Returns
	// false when the id is unknown.
	MarkInvoiceSynced(ctx context.Context, id int64) (bool, error)

	// DeleteInvoice removes an invoice header and, by cascade, its
	// line items. Returns ErrNotFound for an unknown id.
	DeleteInvoice(ctx context.Context, id int64) error

	InsertTransaction(ctx context.Context, tx *model.Transaction, synced bool) (*StoredTransaction, error)
	ListUnsyncedTransactions(ctx context.Context) ([]*StoredTransaction, error)
	MarkTransactionSynced(ctx context.Context, id int64) (bool, error)

	Close() error
}

// RemoteStore is the networked, authoritative store. Inserts report a
// three-way outcome: (status, nil) for inserted or already-exists, or
// a non-nil error for a transient failure the sync engine counts and
// retries on a later run.
type RemoteStore interface {
	// InsertInvoice writes an invoice. On StatusAlreadyExists the
	// returned record is the existing remote one.
	InsertInvoice(ctx context.Context, inv *model.Invoice) (*StoredInvoice, InsertStatus, error)

	InsertTransaction(ctx context.Context, tx *model.Transaction) (*StoredTransaction, InsertStatus, error)

	// NextInvoiceNumber suggests the next free PREFIX-YYYYMMDD-NNN
	// number for today based on existing records.
	NextInvoiceNumber(ctx context.Context, prefix string) (string, error)

	Ping(ctx context.Context) error
	Close() error
}

// RemoteOpener acquires a remote store connection. The sync engine
// opens one connection per run and closes it at run end.
//
// Open returns an error wrapping ErrNotConfigured when connection
// parameters are absent and one wrapping ErrRemoteUnavailable when the
// store is configured but unreachable.
type RemoteOpener interface {
	Open(ctx context.Context) (RemoteStore, error)
}

// RemoteOpenerFunc adapts a function to the RemoteOpener interface.
type RemoteOpenerFunc func(ctx context.Context) (RemoteStore, error)

// Open implements RemoteOpener.
func (f RemoteOpenerFunc) Open(ctx context.Context) (RemoteStore, error) {
	return f(ctx)
}
