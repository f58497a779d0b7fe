package testing

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/spuro/spuro/db"
)

// OpenTestDB opens a fully migrated entity store database backed by a
// temporary file. A file, not :memory:, because the connection pool would
// otherwise hand each connection its own empty database.
// Cleanup is registered via t.Cleanup().
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(filepath.Join(t.TempDir(), "spuro_test.db"), nil)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.Migrate(conn, nil); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return conn
}
