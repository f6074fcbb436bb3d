//go:build integration_test

package sqltest

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// NewSQLiteDB opens a fresh SQLite file in the temporary directory of the
// test.  The file goes away with the directory.
func NewSQLiteDB(t testing.TB) *sql.DB {
	t.Helper()

	path := filepath.Join(
		t.TempDir(), fmt.Sprintf("headers_%s.sqlite", deterministicTestID(t)),
	)

	// Writers wait for each other instead of failing with SQLITE_BUSY
	// when subtests share a connection pool.
	dsn := "file:" + path + "?mode=rwc&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err, "failed to open SQLite database")
	require.NoError(t, db.Ping(), "failed to ping SQLite database")

	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	return db
}
