package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkramer/invoicedesk/internal/model"
	"github.com/mkramer/invoicedesk/internal/store"
)

var saveCmd = &cobra.Command{
	Use:   "save <invoice.json>",
	Short: "Save an invoice to the local store (offline)",
	Long: `Validate an invoice and save it to the local database.

The invoice is flagged as unsynced; a later sync run pushes it to the
remote database. Works without any network connectivity.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app, err := openApp()
		if err != nil {
			fail("%v", err)
		}
		defer app.Close()

		inv, err := readInvoice(args[0])
		if err != nil {
			fail("%v", err)
		}
		if errs := model.ValidateInvoice(inv); len(errs) > 0 {
			printValidationErrors(errs)
			os.Exit(1)
		}

		stored, err := app.local.InsertInvoice(context.Background(), inv, false)
		if errors.Is(err, store.ErrDuplicateKey) {
			fail("invoice number %q already exists; choose a different number", inv.InvoiceNumber)
		}
		if err != nil {
			fail("%v", err)
		}

		app.logger.Printf("Saved invoice %s locally (id=%d)", stored.InvoiceNumber, stored.ID)
		fmt.Printf("Invoice %s saved offline (total %s). Run 'invoicedesk sync' when online.\n",
			stored.InvoiceNumber, stored.TotalAmount().StringFixed(2))
	},
}

var recordCmd = &cobra.Command{
	Use:   "record <transaction.json>",
	Short: "Record a transaction in the local store (offline)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app, err := openApp()
		if err != nil {
			fail("%v", err)
		}
		defer app.Close()

		tr, err := readTransaction(args[0])
		if err != nil {
			fail("%v", err)
		}
		if errs := model.ValidateTransaction(tr); len(errs) > 0 {
			printValidationErrors(errs)
			os.Exit(1)
		}

		stored, err := app.local.InsertTransaction(context.Background(), tr, false)
		if errors.Is(err, store.ErrDuplicateKey) {
			fail("transaction reference %q already exists; choose a different reference", tr.Reference)
		}
		if err != nil {
			fail("%v", err)
		}

		app.logger.Printf("Recorded transaction %s locally (id=%d)", stored.Reference, stored.ID)
		fmt.Printf("Transaction %s recorded offline (%s %s).\n",
			stored.Reference, stored.Amount.StringFixed(2), stored.Category)
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit <invoice.json>",
	Short: "Submit an invoice directly to the remote store (online)",
	Long: `Validate an invoice and write it straight to the remote database.

Requires the PostgreSQL connection to be configured in settings.json.
Online submissions do not leave a copy in the local store; the remote
database is their source of truth.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app, err := openApp()
		if err != nil {
			fail("%v", err)
		}
		defer app.Close()

		inv, err := readInvoice(args[0])
		if err != nil {
			fail("%v", err)
		}
		if errs := model.ValidateInvoice(inv); len(errs) > 0 {
			printValidationErrors(errs)
			os.Exit(1)
		}

		ctx := context.Background()
		rs, err := app.remoteOpener().Open(ctx)
		if errors.Is(err, store.ErrNotConfigured) {
			fail("remote database not configured; edit %s or use 'invoicedesk save' for offline entry", configPath)
		}
		if errors.Is(err, store.ErrRemoteUnavailable) {
			fail("remote database unreachable: %v", err)
		}
		if err != nil {
			fail("%v", err)
		}
		defer rs.Close()

		stored, status, err := rs.InsertInvoice(ctx, inv)
		if err != nil {
			fail("failed to submit invoice: %v", err)
		}
		if status == store.StatusAlreadyExists {
			fail("invoice number %q already exists in the remote database; choose a different number", inv.InvoiceNumber)
		}

		app.logger.Printf("Submitted invoice %s online (remote id=%d)", stored.InvoiceNumber, stored.ID)
		fmt.Printf("Invoice %s submitted online (total %s).\n",
			stored.InvoiceNumber, stored.TotalAmount().StringFixed(2))
	},
}

var nextNumberCmd = &cobra.Command{
	Use:   "next-number",
	Short: "Suggest the next free invoice number from the remote store",
	Run: func(cmd *cobra.Command, args []string) {
		app, err := openApp()
		if err != nil {
			fail("%v", err)
		}
		defer app.Close()

		ctx := context.Background()
		rs, err := app.remoteOpener().Open(ctx)
		if err != nil {
			// Fall back to a date-based suggestion when offline.
			fmt.Println(model.DefaultInvoice().InvoiceNumber)
			return
		}
		defer rs.Close()

		n, err := rs.NextInvoiceNumber(ctx, model.DefaultNumberPrefix)
		if err != nil {
			fail("%v", err)
		}
		fmt.Println(n)
	},
}

func init() {
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(nextNumberCmd)
}
