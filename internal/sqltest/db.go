//go:build integration_test

package sqltest

import (
	"database/sql"
	"fmt"
	"hash/fnv"
	"testing"

	// Register the pgx driver under name "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"

	// Register SQLite driver under name "sqlite".
	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"
)

// DBFactory is a function type that creates a new database connection for
// testing purposes. It takes a testing.TB interface to allow for test failure
// when cannot create the database connection, add cleanup logic and create a
// unique and isolated database for each test case.
type DBFactory func(t testing.TB) *sql.DB

// DBTestFunc is run once per database.  driver is the database/sql driver
// name the factory opens connections with.
type DBTestFunc func(t *testing.T, driver string, dbFactory DBFactory)

// RunDatabaseTest runs testFunc against a PostgreSQL container and an SQLite
// file.  Each factory call yields an isolated database, so subtests may run
// in parallel.
func RunDatabaseTest(t *testing.T, testFunc DBTestFunc) {
	t.Helper()

	testCases := []struct {
		name      string
		driver    string
		dbFactory DBFactory
	}{
		{
			name:      "Postgres",
			driver:    "pgx",
			dbFactory: NewPostgresDB,
		},
		{
			name:      "SQLite",
			driver:    "sqlite",
			dbFactory: NewSQLiteDB,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			testFunc(t, tc.driver, tc.dbFactory)
		})
	}
}

// deterministicTestID hashes the test name into a short database name suffix
// so that repeated runs of a test reuse the same name.
func deterministicTestID(t testing.TB) string {
	t.Helper()
	h := fnv.New32a()
	_, err := h.Write([]byte(t.Name()))

	require.NoError(t, err)

	hashed := fmt.Sprintf("%08x", h.Sum32())
	t.Logf("db name hash: %s", hashed)
	return hashed
}
