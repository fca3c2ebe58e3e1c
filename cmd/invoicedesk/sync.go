package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkramer/invoicedesk/internal/jobs"
	"github.com/mkramer/invoicedesk/internal/store"
	syncengine "github.com/mkramer/invoicedesk/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push unsynced local records to the remote store",
	Long: `Reconcile locally-saved records against the remote database.

Each unsynced invoice and transaction is written to the remote store.
Records the remote already has are marked synced locally and counted
as duplicates; per-record failures are counted and retried on the next
run. If the remote is unreachable, nothing is touched.`,
	Run: func(cmd *cobra.Command, args []string) {
		app, err := openApp()
		if err != nil {
			fail("%v", err)
		}
		defer app.Close()

		// Store and network work runs on the job runner, never on the
		// invoking thread, mirroring how a form front end must call it.
		runner := jobs.NewRunner(4, app.logger)
		defer runner.Close()

		engine := syncengine.New(app.local, app.remoteOpener(), app.logger)

		var report *syncengine.Report
		err = runner.Do(context.Background(), "sync", func(ctx context.Context) error {
			r, runErr := engine.Run(ctx)
			report = r
			return runErr
		})
		if errors.Is(err, store.ErrNotConfigured) {
			fail("remote database not configured; edit %s to enable sync", configPath)
		}
		if errors.Is(err, store.ErrRemoteUnavailable) {
			fail("remote database unreachable; records stay queued locally: %v", err)
		}
		if err != nil {
			fail("%v", err)
		}

		fmt.Println(report.String())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local store counts and pending sync backlog",
	Run: func(cmd *cobra.Command, args []string) {
		app, err := openApp()
		if err != nil {
			fail("%v", err)
		}
		defer app.Close()

		ctx := context.Background()
		invoices, err := app.local.InvoiceCount(ctx)
		if err != nil {
			fail("%v", err)
		}
		txs, err := app.local.TransactionCount(ctx)
		if err != nil {
			fail("%v", err)
		}
		pendingInv, err := app.local.ListUnsyncedInvoices(ctx)
		if err != nil {
			fail("%v", err)
		}
		pendingTx, err := app.local.ListUnsyncedTransactions(ctx)
		if err != nil {
			fail("%v", err)
		}

		fmt.Printf("Local store: %s\n", app.cfg.SQLitePath)
		fmt.Printf("  Invoices:     %d (%d unsynced)\n", invoices, len(pendingInv))
		fmt.Printf("  Transactions: %d (%d unsynced)\n", txs, len(pendingTx))
		if app.cfg.Postgres.Configured() {
			fmt.Printf("Remote store: %s:%d/%s\n", app.cfg.Postgres.Host, app.cfg.Postgres.Port, app.cfg.Postgres.Database)
		} else {
			fmt.Println("Remote store: not configured")
		}
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
}
