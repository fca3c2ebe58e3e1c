// Package memory provides an in-memory implementation of the remote
// store contract. It backs dev/demo mode when no PostgreSQL connection
// is configured, and gives tests a remote store without a network.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mkramer/invoicedesk/internal/model"
	"github.com/mkramer/invoicedesk/internal/store"
)

// Store is a thread-safe in-memory remote store.
type Store struct {
	mu               sync.RWMutex
	nextID           int64
	invoicesByNumber map[string]*store.StoredInvoice
	txsByReference   map[string]*store.StoredTransaction
}

var _ store.RemoteStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		invoicesByNumber: map[string]*store.StoredInvoice{},
		txsByReference:   map[string]*store.StoredTransaction{},
	}
}

// Opener returns a store.RemoteOpener that always hands out this
// store. The sync engine's per-run Close() is a no-op here.
func (s *Store) Opener() store.RemoteOpener {
	return store.RemoteOpenerFunc(func(context.Context) (store.RemoteStore, error) {
		return s, nil
	})
}

// InsertInvoice implements store.RemoteStore.
func (s *Store) InsertInvoice(_ context.Context, inv *model.Invoice) (*store.StoredInvoice, store.InsertStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.invoicesByNumber[inv.InvoiceNumber]; ok {
		return existing, store.StatusAlreadyExists, nil
	}

	s.nextID++
	stored := &store.StoredInvoice{ID: s.nextID, IsSynced: true, Invoice: *inv}
	s.invoicesByNumber[inv.InvoiceNumber] = stored
	return stored, store.StatusInserted, nil
}

// InsertTransaction implements store.RemoteStore.
func (s *Store) InsertTransaction(_ context.Context, tr *model.Transaction) (*store.StoredTransaction, store.InsertStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.txsByReference[tr.Reference]; ok {
		return existing, store.StatusAlreadyExists, nil
	}

	s.nextID++
	stored := &store.StoredTransaction{ID: s.nextID, IsSynced: true, Transaction: *tr}
	s.txsByReference[tr.Reference] = stored
	return stored, store.StatusInserted, nil
}

// NextInvoiceNumber implements store.RemoteStore.
func (s *Store) NextInvoiceNumber(_ context.Context, prefix string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	todayPrefix := fmt.Sprintf("%s%s-", prefix, time.Now().Format("20060102"))
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s%03d", todayPrefix, n)
		if _, taken := s.invoicesByNumber[candidate]; !taken {
			return candidate, nil
		}
	}
}

// InvoiceCount returns the number of stored invoices.
func (s *Store) InvoiceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.invoicesByNumber)
}

// TransactionCount returns the number of stored transactions.
func (s *Store) TransactionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txsByReference)
}

// Ping implements store.RemoteStore. Always reachable.
func (s *Store) Ping(context.Context) error { return nil }

// Close implements store.RemoteStore. No resources to release.
func (s *Store) Close() error { return nil }
