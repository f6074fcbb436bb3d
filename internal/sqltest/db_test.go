//go:build integration_test

package sqltest

import (
	"bytes"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// Statements that work identically in both PostgreSQL and SQLite.  The raw
// column type is picked per database since BLOB is unknown to PostgreSQL.
const (
	createTableFmt = `
		CREATE TABLE IF NOT EXISTS raw_rows (
			height INTEGER PRIMARY KEY,
			raw %s NOT NULL
		);`
	insertSQL = `INSERT INTO raw_rows (height, raw) VALUES ($1, $2);`
	selectSQL = `SELECT height, raw FROM raw_rows ORDER BY height`
	countSQL  = `SELECT COUNT(*) FROM raw_rows`
)

func createTable(t *testing.T, driver string, db *sql.DB) {
	t.Helper()

	blob := "BYTEA"
	if driver == "sqlite" {
		blob = "BLOB"
	}
	_, err := db.Exec(fmt.Sprintf(createTableFmt, blob))
	require.NoError(t, err)
}

// TestDatabaseIsolation checks that every factory call yields a fresh
// database, even for parallel subtests.
func TestDatabaseIsolation(t *testing.T) {
	RunDatabaseTest(t, func(t *testing.T, driver string,
		dbFactory DBFactory) {

		for i := range 3 {
			t.Run(fmt.Sprintf("TestIsolationDB%d", i), func(t *testing.T) {
				t.Parallel()

				db := dbFactory(t)
				require.NotNil(t, db)
				createTable(t, driver, db)

				var count int
				require.NoError(t, db.QueryRow(countSQL).Scan(&count))
				require.Zero(t, count)

				for h := range 10 {
					raw := bytes.Repeat([]byte{byte(h)}, 80)
					_, err := db.Exec(insertSQL, h, raw)
					require.NoError(t, err, "insert failed")
				}

				var (
					height int
					raw    []byte
				)
				err := db.QueryRow(selectSQL).Scan(&height, &raw)
				require.NoError(t, err, "select failed")
				require.Zero(t, height)
				require.Len(t, raw, 80)
			})
		}
	})
}
