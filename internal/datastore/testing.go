package datastore

import (
	"path/filepath"
	"testing"

	"github.com/casetrail/casetrail/internal/conf"
)

// NewTestStore opens an isolated SQLite store in a per-test temp directory.
// The store is closed automatically when the test finishes.
func NewTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	settings := &conf.Settings{}
	settings.Database.Backend = "sqlite"
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "casetrail-test.db")

	store := &SQLiteStore{Settings: settings}
	if err := store.Open(); err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("failed to close test store: %v", err)
		}
	})
	return store
}
