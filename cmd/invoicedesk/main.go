// Command invoicedesk is a desktop invoicing and bookkeeping tool.
//
// Records are saved to a local embedded database when offline and
// reconciled against a shared PostgreSQL database with the sync
// command. Invoices can be exported to PDF.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mkramer/invoicedesk/internal/config"
	"github.com/mkramer/invoicedesk/internal/model"
	"github.com/mkramer/invoicedesk/internal/store"
	"github.com/mkramer/invoicedesk/internal/store/local"
	"github.com/mkramer/invoicedesk/internal/store/memory"
	"github.com/mkramer/invoicedesk/internal/store/remote"
)

var (
	configPath string
	demoMode   bool
)

var rootCmd = &cobra.Command{
	Use:   "invoicedesk",
	Short: "Offline-first invoicing and bookkeeping",
	Long: `invoicedesk records invoices and transactions.

Records saved while offline land in a local database flagged as
unsynced; the sync command reconciles them against the shared
PostgreSQL database configured in settings.json.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultFileName, "path to the settings file")
	rootCmd.PersistentFlags().BoolVar(&demoMode, "demo", false, "use an in-memory remote store (data discarded at exit)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the resolved configuration, logger and open local store
// shared by the commands. Nothing here is global: every command
// constructs its own app and closes it.
type app struct {
	cfg    *config.Config
	logger *log.Logger
	local  *local.DB
}

func openApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	logWriter := io.MultiWriter(os.Stderr, &lumberjack.Logger{
		Filename:   cfg.LogPath,
		MaxSize:    5, // megabytes
		MaxBackups: 3,
	})
	logger := log.New(logWriter, "[invoicedesk] ", log.LstdFlags)

	db, err := local.Open(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	if err := db.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize local schema: %w", err)
	}

	return &app{cfg: cfg, logger: logger, local: db}, nil
}

func (a *app) Close() {
	if err := a.local.Close(); err != nil {
		a.logger.Printf("failed to close local store: %v", err)
	}
}

// remoteOpener selects the remote store for this invocation. Demo mode
// substitutes an in-memory store so the full save/sync flow can be
// exercised without a database server.
func (a *app) remoteOpener() store.RemoteOpener {
	if demoMode {
		return memory.New().Opener()
	}
	return remote.Opener(a.cfg.Postgres)
}

func readInvoice(path string) (*model.Invoice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice file: %w", err)
	}
	var inv model.Invoice
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("failed to parse invoice file: %w", err)
	}
	return &inv, nil
}

func readTransaction(path string) (*model.Transaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transaction file: %w", err)
	}
	var tr model.Transaction
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("failed to parse transaction file: %w", err)
	}
	return &tr, nil
}

// printValidationErrors writes the validator's messages verbatim, one
// per line, the way the form dialog shows them.
func printValidationErrors(errs []string) {
	fmt.Fprintln(os.Stderr, "Validation failed:")
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "- %s\n", e)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
