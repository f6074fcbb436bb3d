// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package headerchain

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	// Register the pure Go SQLite driver under name "sqlite".
	_ "modernc.org/sqlite"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "headers.sqlite") +
		"?mode=rwc"
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	store, err := NewSQLStore(context.Background(), db, DialectSQLite)
	require.NoError(t, err)
	return store
}

func storeHeaders(n int, nonce uint32) []wire.BlockHeader {
	headers := make([]wire.BlockHeader, n)
	for i := range headers {
		headers[i] = testGenesis()
		headers[i].Nonce = nonce + uint32(i)
	}
	return headers
}

// testHeaderStore exercises the HeaderStore contract.
func testHeaderStore(t *testing.T, store HeaderStore) {
	ctx := context.Background()

	tip, err := store.Height(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(-1), tip)

	_, err = store.FetchHeader(ctx, 0)
	require.True(t, IsErrorCode(err, ErrMissingHeader), err)

	headers := storeHeaders(10, 100)
	require.NoError(t, store.PutHeaders(ctx, 0, headers))

	tip, err = store.Height(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(9), tip)

	h, err := store.FetchHeader(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, serializeHeader(&headers[5]), serializeHeader(h))

	// Rewriting from the middle drops everything above.
	replacement := storeHeaders(2, 500)
	require.NoError(t, store.PutHeaders(ctx, 5, replacement))

	tip, err = store.Height(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(6), tip)

	h, err = store.FetchHeader(ctx, 6)
	require.NoError(t, err)
	require.Equal(t, uint32(501), h.Nonce)

	_, err = store.FetchHeader(ctx, 7)
	require.True(t, IsErrorCode(err, ErrMissingHeader), err)

	err = store.PutHeaders(ctx, 9, replacement)
	require.True(t, IsErrorCode(err, ErrBadHeight), err)

	// Appending at the tip.
	require.NoError(t, store.PutHeaders(ctx, 7, storeHeaders(1, 900)))
	tip, err = store.Height(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(7), tip)
}

// TestHeaderStores runs the store contract against every implementation
// that needs no external service.
func TestHeaderStores(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		store func(t *testing.T) HeaderStore
	}{
		{
			name: "memory",
			store: func(*testing.T) HeaderStore {
				return NewMemStore()
			},
		},
		{
			name: "sqlite",
			store: func(t *testing.T) HeaderStore {
				return newSQLiteStore(t)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			testHeaderStore(t, tc.store(t))
		})
	}
}

// TestChainReopen makes sure a chain picks up where a persistent store left
// off.
func TestChainReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newSQLiteStore(t)
	params := testParams(easyHash)

	c, err := New(ctx, Config{Params: params, Store: store, Hash: easyHash})
	require.NoError(t, err)
	extendChain(t, c, testActivation+3)

	reopened, err := New(ctx, Config{
		Params: params, Store: store, Hash: easyHash,
	})
	require.NoError(t, err)
	require.Equal(t, c.Height(), reopened.Height())

	next := mineBranch(t, reopened, reopened.Height(), 1, 0)[0]
	res, err := reopened.Connect(ctx, &next)
	require.NoError(t, err)
	require.Equal(t, Connected, res.Kind)
}

func TestDialectForDriver(t *testing.T) {
	t.Parallel()

	d, err := DialectForDriver("sqlite")
	require.NoError(t, err)
	require.Equal(t, DialectSQLite, d)

	d, err = DialectForDriver("pgx")
	require.NoError(t, err)
	require.Equal(t, DialectPostgres, d)

	_, err = DialectForDriver("mysql")
	require.Error(t, err)
}
