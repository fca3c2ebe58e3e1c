package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync/atomic"

	"github.com/mkramer/invoicedesk/internal/store"
)

// ErrRunInProgress is returned when Run is called while another run
// against the same engine has not finished.
var ErrRunInProgress = errors.New("sync run already in progress")

// Report aggregates the outcome of one sync run.
type Report struct {
	// Fresh is the number of records newly inserted into the remote store.
	Fresh int
	// Duplicates is the number of records the remote store already had;
	// they were marked synced locally without a new remote write.
	Duplicates int
	// Failed is the number of records left unsynced for the next run.
	Failed int
}

// Total returns the number of records processed.
func (r *Report) Total() int {
	return r.Fresh + r.Duplicates + r.Failed
}

// String renders the run summary in the form shown to the user.
func (r *Report) String() string {
	return fmt.Sprintf("Sync complete. Synced: %d, Skipped (duplicates): %d, Failed: %d.",
		r.Fresh, r.Duplicates, r.Failed)
}

// Engine drains the local store's unsynced set into the remote store.
type Engine struct {
	local   store.LocalStore
	opener  store.RemoteOpener
	logger  *log.Logger
	running atomic.Bool
}

// New creates a sync engine.
//
// The local store must be open with its schema initialized. The opener
// is dialed once per run. If logger is nil, a default logger writing
// to stderr is used.
func New(local store.LocalStore, opener store.RemoteOpener, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Engine{
		local:  local,
		opener: opener,
		logger: logger,
	}
}

// Run performs one sync run and returns its report.
//
// The remote connection is acquired once for the whole run and
// released at the end. If the remote is unreachable or not configured,
// the run aborts before touching any record and every record stays
// unsynced. Records added to the local store during the run are not
// part of the snapshot; the next run picks them up.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer e.running.Store(false)

	remote, err := e.opener.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire remote store: %w", err)
	}
	defer remote.Close()

	invoices, err := e.local.ListUnsyncedInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsynced invoices: %w", err)
	}
	txs, err := e.local.ListUnsyncedTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsynced transactions: %w", err)
	}

	report := &Report{}
	e.logger.Printf("Starting sync run: %d invoices, %d transactions", len(invoices), len(txs))

	for _, inv := range invoices {
		_, status, err := remote.InsertInvoice(ctx, &inv.Invoice)
		if err != nil {
			report.Failed++
			e.logger.Printf("WARNING: Failed to sync invoice %s (id=%d): %v", inv.InvoiceNumber, inv.ID, err)
			continue
		}
		e.countAndMark(ctx, report, status, inv.InvoiceNumber, func() (bool, error) {
			return e.local.MarkInvoiceSynced(ctx, inv.ID)
		})
	}

	for _, tr := range txs {
		_, status, err := remote.InsertTransaction(ctx, &tr.Transaction)
		if err != nil {
			report.Failed++
			e.logger.Printf("WARNING: Failed to sync transaction %s (id=%d): %v", tr.Reference, tr.ID, err)
			continue
		}
		e.countAndMark(ctx, report, status, tr.Reference, func() (bool, error) {
			return e.local.MarkTransactionSynced(ctx, tr.ID)
		})
	}

	e.logger.Printf("Sync run complete: fresh=%d duplicates=%d failed=%d",
		report.Fresh, report.Duplicates, report.Failed)
	return report, nil
}

// countAndMark classifies a successful remote insert and flips the
// local synced flag. A failed local mark is counted as a failure so
// the record is retried; the next run's AlreadyExists path heals it.
func (e *Engine) countAndMark(ctx context.Context, report *Report, status store.InsertStatus, key string, mark func() (bool, error)) {
	ok, err := mark()
	if err != nil || !ok {
		report.Failed++
		e.logger.Printf("WARNING: Remote accepted %s but local mark failed (ok=%v err=%v)", key, ok, err)
		return
	}

	switch status {
	case store.StatusAlreadyExists:
		report.Duplicates++
		e.logger.Printf("Record %s already in remote store, marked synced locally", key)
	default:
		report.Fresh++
		e.logger.Printf("Synced record %s", key)
	}
}
