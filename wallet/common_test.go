// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/axerunners/axewallet/headerchain"
	"github.com/axerunners/axewallet/ledger"
	"github.com/axerunners/axewallet/netparams"
	"github.com/axerunners/axewallet/txcodec"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

const testTipHeight = 20

var testTipTime = time.Unix(1600000000, 0)

// testParams returns the main network parameters under their own name, so
// ledger metrics of parallel tests stay apart.
func testParams(name string) *netparams.Params {
	p := netparams.MainNetParams
	chainParams := *p.Params
	chainParams.Name = name
	p.Params = &chainParams
	return &p
}

func testSecret(seed byte) []byte {
	secret := make([]byte, 32)
	secret[31] = seed
	return secret
}

// newTestKeyRing returns a key ring holding one key per seed, and the
// addresses of those keys in seed order.
func newTestKeyRing(t *testing.T, params *netparams.Params,
	seeds ...byte) (*MemKeyRing, []btcutil.Address) {

	t.Helper()

	keys := NewMemKeyRing(params.Params)
	addrs := make([]btcutil.Address, 0, len(seeds))
	for _, seed := range seeds {
		addr, err := keys.ImportSecret(testSecret(seed))
		require.NoError(t, err)
		addrs = append(addrs, addr)
	}
	return keys, addrs
}

// foreignAddress is an address no test key ring holds.
func foreignAddress(t *testing.T, seed byte) btcutil.Address {
	t.Helper()

	var hash [20]byte
	hash[0] = seed
	addr, err := btcutil.NewAddressPubKeyHash(
		hash[:], netparams.MainNetParams.Params,
	)
	require.NoError(t, err)
	return addr
}

// testHeaders returns unvalidated headers for heights start up to tip.  The
// tip is stamped at testTipTime and each block before it 150 seconds
// earlier.  nonce tells apart the headers of competing branches.
func testHeaders(start, tip int32, nonce uint32) []wire.BlockHeader {
	headers := make([]wire.BlockHeader, 0, tip-start+1)
	for height := start; height <= tip; height++ {
		age := time.Duration(tip-height) * 150 * time.Second
		headers = append(headers, wire.BlockHeader{
			Version:   2,
			Timestamp: testTipTime.Add(-age),
			Bits:      0x1e0ffff0,
			Nonce:     nonce + uint32(height),
		})
	}
	return headers
}

// newTestChain returns a chain loaded from a store filled with testHeaders.
func newTestChain(t *testing.T,
	params *netparams.Params) (*headerchain.Chain, *headerchain.MemStore) {

	t.Helper()

	ctx := context.Background()
	store := headerchain.NewMemStore()
	err := store.PutHeaders(ctx, 0, testHeaders(0, testTipHeight, 0))
	require.NoError(t, err)

	chain, err := headerchain.New(ctx, headerchain.Config{
		Params: params,
		Store:  store,
	})
	require.NoError(t, err)
	return chain, store
}

type testHarness struct {
	wallet *Wallet
	chain  *headerchain.Chain
	store  *headerchain.MemStore
	clock  *clock.TestClock
	addrs  []btcutil.Address

	// hist is the server history of each funded address.
	hist  map[string][]ledger.HistoryEntry
	funds uint32
}

// newTestWallet creates a wallet over a fresh ledger holding keys for seeds
// 1 and 2.  cfg fields left empty get test defaults.
func newTestWallet(t *testing.T, cfg Config) *testHarness {
	t.Helper()

	if cfg.Params == nil {
		cfg.Params = testParams(t.Name())
	}
	h := &testHarness{
		clock: clock.NewTestClock(testTipTime.Add(time.Minute)),
		hist:  make(map[string][]ledger.HistoryEntry),
	}
	h.chain, h.store = newTestChain(t, cfg.Params)
	cfg.Chain = h.chain
	cfg.Clock = h.clock

	if cfg.Keys == nil {
		var keys *MemKeyRing
		keys, h.addrs = newTestKeyRing(t, cfg.Params, 1, 2)
		cfg.Keys = keys
	}

	w, err := New(cfg)
	require.NoError(t, err)
	h.wallet = w
	return h
}

// fund pays value to addr in a new transaction.  A height above zero mines
// it in the local header at that height.
func (h *testHarness) fund(t *testing.T, addr btcutil.Address, value int64,
	height int32) chainhash.Hash {

	t.Helper()

	// Every funding transaction spends its own made up output.
	h.funds++
	var prev chainhash.Hash
	prev[0] = 0xee
	in := &txcodec.TxIn{
		Kind: txcodec.KindUnknown,
		PreviousOutPoint: wire.OutPoint{
			Hash: prev, Index: h.funds,
		},
		Sequence:  wire.MaxTxInSequenceNum,
		ScriptSig: []byte{0x51},
	}
	out, err := txcodec.NewTxOut(addr, value)
	require.NoError(t, err)
	tx := txcodec.NewTx(
		[]*txcodec.TxIn{in}, []*txcodec.TxOut{out}, 0, false,
	)
	txid, err := tx.TxID()
	require.NoError(t, err)

	l := h.wallet.Ledger()
	encoded := addr.EncodeAddress()
	h.hist[encoded] = append(h.hist[encoded], ledger.HistoryEntry{
		TxID: txid, Height: height,
	})
	err = l.ReceiveHistory(encoded, h.hist[encoded], nil)
	require.NoError(t, err)
	require.NoError(t, l.ReceiveTx(txid, tx, height))

	if height > 0 {
		hash, ok := h.chain.HeaderHash(height)
		require.True(t, ok)
		require.NoError(t, l.AddVerifiedTx(txid, ledger.TxMinedInfo{
			Height:     height,
			HeaderHash: hash,
		}))
	}
	return txid
}

func newOutput(t *testing.T, addr btcutil.Address,
	value int64) *txcodec.TxOut {

	t.Helper()

	out, err := txcodec.NewTxOut(addr, value)
	require.NoError(t, err)
	return out
}

// recv reads one value from c, failing the test after a timeout.
func recv[T any](t *testing.T, c <-chan T) T {
	t.Helper()

	select {
	case v := <-c:
		return v
	case <-time.After(5 * time.Second):
		var zero T
		t.Fatalf("timed out waiting for %T", zero)
		return zero
	}
}

func testOutPoint(seed byte) wire.OutPoint {
	var hash chainhash.Hash
	hash[0] = seed
	return wire.OutPoint{Hash: hash}
}
