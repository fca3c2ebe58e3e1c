package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mkramer/invoicedesk/internal/model"
	"github.com/mkramer/invoicedesk/internal/pdf"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <invoice.json>",
	Short: "Export an invoice to PDF",
	Args:  cobra.ExactArgs(1),
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

		out := exportOutput
		if out == "" {
			out = filepath.Join(app.cfg.PDFOutputDir, pdf.DefaultFileName(inv))
		}

		g := &pdf.Generator{Author: "invoicedesk"}
		if err := g.Export(inv, out); err != nil {
			fail("%v", err)
		}

		app.logger.Printf("Exported invoice %s to %s", inv.InvoiceNumber, out)
		fmt.Printf("Exported %s\n", out)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved settings",
	Long: `Print the effective configuration, creating the settings file
with defaults on first run. The database password is masked.`,
	Run: func(cmd *cobra.Command, args []string) {
		app, err := openApp()
		if err != nil {
			fail("%v", err)
		}
		defer app.Close()

		shown := *app.cfg
		if shown.Postgres.Password != "" {
			shown.Postgres.Password = "********"
		}
		out, err := json.MarshalIndent(shown, "", "  ")
		if err != nil {
			fail("%v", err)
		}
		fmt.Printf("Settings file: %s\n%s\n", configPath, out)
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output PDF path (default: <pdf dir>/<invoice number>.pdf)")
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(configCmd)
}
