package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultsWhenAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "local_invoices.db", cfg.SQLitePath)
	assert.Equal(t, "invoices_pdf", cfg.PDFOutputDir)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.False(t, cfg.Postgres.Configured(), "defaults must leave the remote unconfigured")
	assert.NotEmpty(t, cfg.Categories)
	assert.NotEmpty(t, cfg.PaymentMethods)

	// The defaults were persisted for the user to edit.
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLoadMergesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	partial := `{"postgres": {"host": "db.internal", "user": "books", "database": "ledger"}}`
	require.NoError(t, os.WriteFile(path, []byte(partial), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Explicit values survive
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, "books", cfg.Postgres.User)
	assert.True(t, cfg.Postgres.Configured())
	// Unset fields default independently
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, "local_invoices.db", cfg.SQLitePath)
}

func TestLoadRecoversFromCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err, "a malformed settings file must never crash the application")
	assert.Equal(t, "local_invoices.db", cfg.SQLitePath)

	// The corrupt file was replaced with valid defaults.
	cfg2, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.SQLitePath, cfg2.SQLitePath)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	_, err := Load(path)
	require.NoError(t, err)

	w, err := NewWatcher(path)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	updated := `{"sqlite_db_name": "elsewhere.db"}`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0644))

	select {
	case cfg := <-w.Configs():
		assert.Equal(t, "elsewhere.db", cfg.SQLitePath)
	case err := <-w.Errors():
		t.Fatalf("unexpected watcher error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	_, err := Load(path)
	require.NoError(t, err)

	w, err := NewWatcher(path)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644))

	select {
	case cfg := <-w.Configs():
		t.Fatalf("unexpected reload: %+v", cfg)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	w, err := NewWatcher(path)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
