//go:build integration_test

package headerchain

import (
	"context"
	"testing"

	"github.com/axerunners/axewallet/internal/sqltest"
	"github.com/stretchr/testify/require"
)

// TestSQLStoreDatabases runs the store contract against Postgres and SQLite.
func TestSQLStoreDatabases(t *testing.T) {
	sqltest.RunDatabaseTest(t, func(t *testing.T, driver string,
		dbFactory sqltest.DBFactory) {

		dialect, err := DialectForDriver(driver)
		require.NoError(t, err)

		store, err := NewSQLStore(
			context.Background(), dbFactory(t), dialect,
		)
		require.NoError(t, err)
		testHeaderStore(t, store)
	})
}
