package local

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mkramer/invoicedesk/internal/model"
	"github.com/mkramer/invoicedesk/internal/store"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	return db
}

// testInvoice builds a valid invoice with the given number.
func testInvoice(number string) *model.Invoice {
	return &model.Invoice{
		InvoiceNumber:   number,
		InvoiceDate:     "2025-06-15",
		CustomerName:    "Acme Corp",
		CustomerAddress: "1 Main St",
		LineItems: []model.LineItem{
			{Description: "Widget", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("9.99")},
			{Description: "Gadget", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("100")},
		},
	}
}

func TestInsertInvoice(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	stored, err := db.InsertInvoice(ctx, testInvoice("INV-001"), false)
	if err != nil {
		t.Fatalf("InsertInvoice failed: %v", err)
	}
	if stored.ID == 0 {
		t.Error("expected a store-assigned id")
	}
	if stored.IsSynced {
		t.Error("offline insert must default to unsynced")
	}

	got, err := db.GetInvoiceByNumber(ctx, "INV-001")
	if err != nil {
		t.Fatalf("GetInvoiceByNumber failed: %v", err)
	}
	if len(got.LineItems) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(got.LineItems))
	}
	want := decimal.RequireFromString("119.98")
	if !got.TotalAmount().Equal(want) {
		t.Errorf("expected total %s, got %s", want, got.TotalAmount())
	}
}

func TestInsertInvoiceDuplicateKey(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.InsertInvoice(ctx, testInvoice("INV-001"), false); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	_, err := db.InsertInvoice(ctx, testInvoice("INV-001"), false)
	if !errors.Is(err, store.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	// The store must retain exactly one record with that key, and the
	// failed insert must not leave orphaned line items behind.
	count, err := db.InvoiceCount(ctx)
	if err != nil {
		t.Fatalf("InvoiceCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 invoice, got %d", count)
	}
	got, err := db.GetInvoiceByNumber(ctx, "INV-001")
	if err != nil {
		t.Fatalf("GetInvoiceByNumber failed: %v", err)
	}
	if n, _ := db.LineItemCount(ctx, got.ID); n != 2 {
		t.Errorf("expected 2 line items after failed duplicate insert, got %d", n)
	}
}

func TestListUnsyncedInvoices(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a, _ := db.InsertInvoice(ctx, testInvoice("INV-001"), false)
	if _, err := db.InsertInvoice(ctx, testInvoice("INV-002"), true); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	c, _ := db.InsertInvoice(ctx, testInvoice("INV-003"), false)

	unsynced, err := db.ListUnsyncedInvoices(ctx)
	if err != nil {
		t.Fatalf("ListUnsyncedInvoices failed: %v", err)
	}
	if len(unsynced) != 2 {
		t.Fatalf("expected 2 unsynced invoices, got %d", len(unsynced))
	}
	// Deterministic order: ascending local id
	if unsynced[0].ID != a.ID || unsynced[1].ID != c.ID {
		t.Errorf("expected ids [%d %d], got [%d %d]", a.ID, c.ID, unsynced[0].ID, unsynced[1].ID)
	}
	if len(unsynced[0].LineItems) != 2 {
		t.Errorf("unsynced invoices must carry their line items")
	}
}

func TestMarkInvoiceSynced(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	stored, _ := db.InsertInvoice(ctx, testInvoice("INV-001"), false)

	ok, err := db.MarkInvoiceSynced(ctx, stored.ID)
	if err != nil {
		t.Fatalf("MarkInvoiceSynced failed: %v", err)
	}
	if !ok {
		t.Error("expected mark to report success")
	}

	// Idempotent: marking again succeeds silently
	ok, err = db.MarkInvoiceSynced(ctx, stored.ID)
	if err != nil {
		t.Fatalf("second MarkInvoiceSynced failed: %v", err)
	}
	if !ok {
		t.Error("marking an already-synced invoice must succeed")
	}

	// Unknown id reports false, not an error
	ok, err = db.MarkInvoiceSynced(ctx, 9999)
	if err != nil {
		t.Fatalf("MarkInvoiceSynced on unknown id errored: %v", err)
	}
	if ok {
		t.Error("expected false for unknown id")
	}

	unsynced, _ := db.ListUnsyncedInvoices(ctx)
	if len(unsynced) != 0 {
		t.Errorf("expected no unsynced invoices, got %d", len(unsynced))
	}
}

func TestDeleteInvoiceCascades(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	stored, _ := db.InsertInvoice(ctx, testInvoice("INV-001"), false)
	if n, _ := db.LineItemCount(ctx, stored.ID); n != 2 {
		t.Fatalf("expected 2 line items before delete, got %d", n)
	}

	if err := db.DeleteInvoice(ctx, stored.ID); err != nil {
		t.Fatalf("DeleteInvoice failed: %v", err)
	}

	// No orphaned line items remain queryable
	if n, _ := db.LineItemCount(ctx, stored.ID); n != 0 {
		t.Errorf("expected 0 line items after delete, got %d", n)
	}

	if err := db.DeleteInvoice(ctx, stored.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestGetInvoiceByNumberNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetInvoiceByNumber(context.Background(), "INV-MISSING")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertInvoiceDecimalRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	inv := &model.Invoice{
		InvoiceNumber: "INV-DEC",
		InvoiceDate:   "2025-06-15",
		CustomerName:  "Acme Corp",
		LineItems: []model.LineItem{
			{Description: "tiny", Quantity: decimal.RequireFromString("0.1"), UnitPrice: decimal.RequireFromString("0.1")},
			{Description: "tiny", Quantity: decimal.RequireFromString("0.1"), UnitPrice: decimal.RequireFromString("0.1")},
			{Description: "tiny", Quantity: decimal.RequireFromString("0.1"), UnitPrice: decimal.RequireFromString("0.1")},
		},
	}
	if _, err := db.InsertInvoice(ctx, inv, false); err != nil {
		t.Fatalf("InsertInvoice failed: %v", err)
	}

	got, err := db.GetInvoiceByNumber(ctx, "INV-DEC")
	if err != nil {
		t.Fatalf("GetInvoiceByNumber failed: %v", err)
	}
	want := decimal.RequireFromString("0.03")
	if !got.TotalAmount().Equal(want) {
		t.Errorf("decimal drift through storage: expected %s, got %s", want, got.TotalAmount())
	}
}

func TestTransactions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tr := &model.Transaction{
		Reference:     "TXN-001",
		Date:          "2025-06-15",
		Amount:        decimal.RequireFromString("-42.50"),
		Category:      "Office Supplies",
		Description:   "printer paper",
		PaymentMethod: "Cash",
	}

	stored, err := db.InsertTransaction(ctx, tr, false)
	if err != nil {
		t.Fatalf("InsertTransaction failed: %v", err)
	}

	if _, err := db.InsertTransaction(ctx, tr, false); !errors.Is(err, store.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	unsynced, err := db.ListUnsyncedTransactions(ctx)
	if err != nil {
		t.Fatalf("ListUnsyncedTransactions failed: %v", err)
	}
	if len(unsynced) != 1 {
		t.Fatalf("expected 1 unsynced transaction, got %d", len(unsynced))
	}
	if !unsynced[0].Amount.Equal(tr.Amount) {
		t.Errorf("expected amount %s, got %s", tr.Amount, unsynced[0].Amount)
	}

	ok, err := db.MarkTransactionSynced(ctx, stored.ID)
	if err != nil || !ok {
		t.Fatalf("MarkTransactionSynced failed: ok=%v err=%v", ok, err)
	}
	unsynced, _ = db.ListUnsyncedTransactions(ctx)
	if len(unsynced) != 0 {
		t.Errorf("expected no unsynced transactions, got %d", len(unsynced))
	}
}
