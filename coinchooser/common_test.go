// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinchooser

import (
	"testing"

	"github.com/axerunners/axewallet/netparams"
	"github.com/axerunners/axewallet/txcodec"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// testKey is a deterministic key with its pay to pubkey hash address.
type testKey struct {
	pubKey []byte
	addr   btcutil.Address
}

func newTestKey(t *testing.T, seed byte) testKey {
	t.Helper()

	var secret [32]byte
	secret[31] = seed
	_, pub := btcec.PrivKeyFromBytes(secret[:])
	pubKey := pub.SerializeCompressed()

	addr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(pubKey), netparams.MainNetParams.Params,
	)
	require.NoError(t, err)
	return testKey{pubKey: pubKey, addr: addr}
}

func testOutPoint(seed byte, index uint32) wire.OutPoint {
	var hash chainhash.Hash
	hash[0] = seed
	return wire.OutPoint{Hash: hash, Index: index}
}

func newTestCoin(key testKey, op wire.OutPoint, value int64,
	height int32) *Coin {

	return &Coin{
		Input:  txcodec.NewTxIn(op, key.pubKey, key.addr, value),
		Height: height,
	}
}

func newTestOutput(t *testing.T, key testKey, value int64) *txcodec.TxOut {
	t.Helper()

	out, err := txcodec.NewTxOut(key.addr, value)
	require.NoError(t, err)
	return out
}

func outPoints(tx *txcodec.Tx) []wire.OutPoint {
	ops := make([]wire.OutPoint, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		ops = append(ops, in.PreviousOutPoint)
	}
	return ops
}

// testBucket returns a bucket with only the fields selection looks at.
func testBucket(desc string, value int64, minHeight int32) *Bucket {
	return &Bucket{Desc: desc, Value: value, MinHeight: minHeight}
}

// atLeast is sufficient once the buckets hold target.
func atLeast(target int64) SufficientFunc {
	return func(_ []*Bucket, valueSum int64) bool {
		return valueSum >= target
	}
}

func descs(buckets []*Bucket) []string {
	d := make([]string, 0, len(buckets))
	for _, b := range buckets {
		d = append(d, b.Desc)
	}
	return d
}
