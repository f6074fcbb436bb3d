// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/axerunners/axewallet/netparams"
	"github.com/axerunners/axewallet/txcodec"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testStartTime = time.Unix(1600000000, 0)

// testParams returns the main network parameters under their own name, so
// metrics of one test are not disturbed by others running in parallel.
func testParams(name string) *netparams.Params {
	p := netparams.MainNetParams
	chainParams := *p.Params
	chainParams.Name = name
	p.Params = &chainParams
	return &p
}

func testAddress(t *testing.T, seed byte) btcutil.Address {
	t.Helper()

	addr, err := btcutil.NewAddressPubKeyHash(
		bytes.Repeat([]byte{seed}, 20), netparams.MainNetParams.Params,
	)
	require.NoError(t, err)
	return addr
}

// foreignOutPoint is an outpoint of a transaction the ledger never sees.
func foreignOutPoint(seed byte) wire.OutPoint {
	var hash chainhash.Hash
	hash[0] = seed
	hash[31] = 0xee
	return wire.OutPoint{Hash: hash, Index: uint32(seed)}
}

type testOut struct {
	addr  btcutil.Address
	value int64
}

// buildTx returns a signed transaction spending ops.  lockTime tells apart
// transactions that would otherwise be identical.
func buildTx(t *testing.T, ops []wire.OutPoint, lockTime uint32,
	outs ...testOut) (chainhash.Hash, *txcodec.Tx) {

	t.Helper()

	inputs := make([]*txcodec.TxIn, 0, len(ops))
	for _, op := range ops {
		inputs = append(inputs, &txcodec.TxIn{
			Kind:             txcodec.KindUnknown,
			PreviousOutPoint: op,
			Sequence:         wire.MaxTxInSequenceNum,
			ScriptSig:        []byte{0x51},
		})
	}
	return finishTx(t, inputs, lockTime, outs)
}

func buildCoinbase(t *testing.T, height int32,
	outs ...testOut) (chainhash.Hash, *txcodec.Tx) {

	t.Helper()

	in := &txcodec.TxIn{
		Kind: txcodec.KindCoinbase,
		PreviousOutPoint: wire.OutPoint{
			Index: wire.MaxPrevOutIndex,
		},
		Sequence:  wire.MaxTxInSequenceNum,
		ScriptSig: []byte{0x02, byte(height), byte(height >> 8)},
	}
	return finishTx(t, []*txcodec.TxIn{in}, 0, outs)
}

func finishTx(t *testing.T, inputs []*txcodec.TxIn, lockTime uint32,
	outs []testOut) (chainhash.Hash, *txcodec.Tx) {

	t.Helper()

	outputs := make([]*txcodec.TxOut, 0, len(outs))
	for _, o := range outs {
		out, err := txcodec.NewTxOut(o.addr, o.value)
		require.NoError(t, err)
		outputs = append(outputs, out)
	}
	tx := txcodec.NewTx(inputs, outputs, lockTime, false)

	txid, err := tx.TxID()
	require.NoError(t, err)
	return txid, tx
}

// testChain is a ChainSource whose tip and header hashes are set by the
// test.
type testChain struct {
	mu     sync.Mutex
	height int32
	hashes map[int32]chainhash.Hash
}

func newTestChain(height int32) *testChain {
	return &testChain{
		height: height,
		hashes: make(map[int32]chainhash.Hash),
	}
}

func (c *testChain) LocalHeight() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

func (c *testChain) HeaderHash(height int32) (chainhash.Hash, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hash, ok := c.hashes[height]
	return hash, ok
}

func (c *testChain) setHeight(height int32) {
	c.mu.Lock()
	c.height = height
	c.mu.Unlock()
}

func (c *testChain) setHash(height int32, hash chainhash.Hash) {
	c.mu.Lock()
	c.hashes[height] = hash
	c.mu.Unlock()
}

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) RemoveSPVProofForTx(txid chainhash.Hash) {
	m.Called(txid)
}

type mockIslocks struct {
	mock.Mock
}

func (m *mockIslocks) VerifyOnRecentIslocks(txid chainhash.Hash) bool {
	return m.Called(txid).Bool(0)
}

// newTestLedger creates a ledger over a fresh MemStore.  cfg fields left
// empty get test defaults.
func newTestLedger(t *testing.T, cfg Config) *Ledger {
	t.Helper()

	if cfg.Params == nil {
		cfg.Params = testParams(t.Name())
	}
	if cfg.Chain == nil {
		cfg.Chain = newTestChain(100)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewTestClock(testStartTime)
	}
	l, err := New(cfg)
	require.NoError(t, err)
	return l
}

func watch(t *testing.T, l *Ledger, addrs ...btcutil.Address) {
	t.Helper()

	for _, addr := range addrs {
		require.NoError(t, l.AddAddress(addr.EncodeAddress()))
	}
}

// nextEvent returns the next event of type E, skipping others.
func nextEvent[E Event](t *testing.T, sub *Subscription) E {
	t.Helper()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-sub.Events():
			require.True(t, ok, "subscription closed")
			if want, ok := e.(E); ok {
				return want
			}
		case <-timeout:
			var zero E
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}
