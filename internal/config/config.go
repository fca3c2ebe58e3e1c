// Package config loads and watches the application settings.
//
// Settings live in a JSON document (settings.json). Loading never
// fails the application: a missing or corrupt file is replaced with
// defaults and the defaults are returned. Every field defaults
// independently, so a partial file keeps its explicit values and
// inherits the rest.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/mkramer/invoicedesk/internal/store/remote"
)

// DefaultFileName is the settings file created next to the database
// when no explicit path is given.
const DefaultFileName = "settings.json"

// Config is the typed application configuration.
type Config struct {
	// SQLitePath is the local store database file.
	SQLitePath string `mapstructure:"sqlite_db_name" json:"sqlite_db_name"`
	// PDFOutputDir is where exported invoices land by default.
	PDFOutputDir string `mapstructure:"pdf_output_directory" json:"pdf_output_directory"`
	// LogPath is the rotating application log file.
	LogPath string `mapstructure:"log_path" json:"log_path"`

	// Postgres holds the remote store connection parameters. An empty
	// user leaves the remote unconfigured and disables online actions.
	Postgres remote.Config `mapstructure:"postgres" json:"postgres"`

	// Categories and PaymentMethods populate the transaction form's
	// option lists.
	Categories     []string `mapstructure:"categories" json:"categories"`
	PaymentMethods []string `mapstructure:"payment_methods" json:"payment_methods"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sqlite_db_name", "local_invoices.db")
	v.SetDefault("pdf_output_directory", "invoices_pdf")
	v.SetDefault("log_path", "invoicedesk.log")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", remote.DefaultPort)
	v.SetDefault("postgres.database", "invoice_db")
	v.SetDefault("postgres.user", "")
	v.SetDefault("postgres.password", "")
	v.SetDefault("categories", []string{
		"Sales", "Office Supplies", "Rent", "Utilities", "Travel", "Miscellaneous",
	})
	v.SetDefault("payment_methods", []string{
		"Cash", "Bank Transfer", "Credit Card", "Check",
	})
}

// Load reads the settings file at path.
//
// If the file is absent it is created with defaults. If it cannot be
// parsed, defaults are written back and returned; a malformed settings
// file must never crash the application.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Missing or corrupt: recreate with defaults.
		if writeErr := writeDefaults(v, path); writeErr != nil {
			return nil, fmt.Errorf("failed to write default settings: %w", writeErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &cfg, nil
}

func writeDefaults(v *viper.Viper, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	// Fresh viper so stale values from a half-parsed file never leak
	// into the rewritten document.
	defaults := viper.New()
	defaults.SetConfigFile(path)
	defaults.SetConfigType("json")
	setDefaults(defaults)
	if err := defaults.WriteConfigAs(path); err != nil {
		return err
	}
	return v.ReadInConfig()
}
