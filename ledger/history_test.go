// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"testing"

	"github.com/axerunners/axewallet/txcodec"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestGetHistory checks ordering, deltas and the running balance.
func TestGetHistory(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t, Config{})
	mine, other := testAddress(t, 1), testAddress(t, 9)
	watch(t, l, mine)

	t1, tx1 := buildTx(t, []wire.OutPoint{foreignOutPoint(1)}, 0,
		testOut{mine, 5e8})
	t2, tx2 := buildTx(t, []wire.OutPoint{{Hash: t1}}, 0,
		testOut{mine, 2e8}, testOut{other, 2.5e8})
	t3, tx3 := buildTx(t, []wire.OutPoint{foreignOutPoint(2)}, 0,
		testOut{mine, 1e8})

	// Received out of order: the mempool transaction first.
	require.NoError(t, l.ReceiveTx(t2, tx2, 0))
	require.NoError(t, l.ReceiveTx(t3, tx3, 12))
	require.NoError(t, l.ReceiveTx(t1, tx1, 12))
	err := l.AddVerifiedTx(t1, TxMinedInfo{Height: 12, TxPos: 3})
	require.NoError(t, err)
	err = l.AddVerifiedTx(t3, TxMinedInfo{Height: 12, TxPos: 7})
	require.NoError(t, err)

	hist, err := l.GetHistory(nil, nil, false)
	require.NoError(t, err)
	require.Len(t, hist, 3, spew.Sdump(hist))

	wantIDs := []chainhash.Hash{t1, t3, t2}
	wantDeltas := []int64{5e8, 1e8, -3e8}
	wantBalances := []int64{5e8, 6e8, 3e8}
	for i, item := range hist {
		require.Equal(t, wantIDs[i], item.TxID, "item %d", i)
		require.Equal(t, fn.Some(wantDeltas[i]), item.Delta, "item %d", i)
		require.Equal(t, fn.Some(wantBalances[i]), item.Balance,
			"item %d", i)
		require.Equal(t, txcodec.TxTypeStandard, item.TxType)
	}
	require.Equal(t, int32(12), hist[0].Mined.Height)
	require.Equal(t, int32(100-12+1), hist[0].Mined.Conf)
	require.Equal(t, HeightUnconfirmed, hist[2].Mined.Height)

	// A domain restricted to a foreign address has no history.
	hist, err = l.GetHistory(nil, []string{other.EncodeAddress()}, false)
	require.NoError(t, err)
	require.Empty(t, hist)
}

// TestGetHistoryIslockOrder checks that locked mempool transactions sort
// by lock time ahead of unlocked ones.
func TestGetHistoryIslockOrder(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t, Config{})
	addr := testAddress(t, 1)
	watch(t, l, addr)

	unlocked, unlockedTx := buildTx(t, []wire.OutPoint{foreignOutPoint(1)},
		0, testOut{addr, 1e8})
	locked, lockedTx := buildTx(t, []wire.OutPoint{foreignOutPoint(2)},
		0, testOut{addr, 2e8})
	mined, minedTx := buildTx(t, []wire.OutPoint{foreignOutPoint(3)},
		0, testOut{addr, 3e8})

	require.NoError(t, l.ReceiveTx(unlocked, unlockedTx, 0))
	require.NoError(t, l.ReceiveTx(locked, lockedTx, 0))
	require.NoError(t, l.ReceiveTx(mined, minedTx, 50))
	require.NoError(t, l.AddIslock(locked))

	hist, err := l.GetHistory(nil, nil, false)
	require.NoError(t, err)

	var got []chainhash.Hash
	for _, item := range hist {
		got = append(got, item.TxID)
	}
	require.Equal(t, []chainhash.Hash{mined, locked, unlocked}, got)
	require.Equal(t, testStartTime.Unix(), hist[1].Islock)
	require.Zero(t, hist[2].Islock)
}

// TestGetHistoryInconsistent removes a funding transaction so the running
// balance cannot reconcile.
func TestGetHistoryInconsistent(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t, Config{})
	addr := testAddress(t, 1)
	watch(t, l, addr)

	t1, tx1 := buildTx(t, []wire.OutPoint{foreignOutPoint(1)}, 0,
		testOut{addr, 5e8})
	t2, tx2 := buildTx(t, []wire.OutPoint{{Hash: t1}}, 0,
		testOut{addr, 2e8})
	require.NoError(t, l.ReceiveTx(t1, tx1, 10))
	require.NoError(t, l.ReceiveTx(t2, tx2, 11))

	hist, err := l.GetHistory(nil, nil, false)
	require.NoError(t, err)
	require.Len(t, hist, 2)

	require.NoError(t, l.RemoveTransaction(t1))

	hist, err = l.GetHistory(nil, nil, false)
	require.NoError(t, err)
	require.NotNil(t, hist)
	require.Empty(t, hist)
	require.Equal(t, float64(1), testutil.ToFloat64(
		historyInconsistentTotal.WithLabelValues(l.metrics.network),
	))
}

// TestReceiveHistory reconciles a server history with the local one.
func TestReceiveHistory(t *testing.T) {
	t.Parallel()

	verifier := &mockVerifier{}
	verifier.On("RemoveSPVProofForTx", mock.Anything).Return()
	l := newTestLedger(t, Config{Verifier: verifier})
	addr := testAddress(t, 1)
	watch(t, l, addr)
	sub := l.Subscribe()
	defer sub.Cancel()

	t1, tx1 := buildTx(t, []wire.OutPoint{foreignOutPoint(1)}, 0,
		testOut{addr, 5e8})
	t2, tx2 := buildTx(t, []wire.OutPoint{foreignOutPoint(2)}, 0,
		testOut{addr, 1e8})

	hist := []HistoryEntry{{TxID: t1, Height: 10}}
	require.NoError(t, l.ReceiveHistory(addr.EncodeAddress(), hist, nil))
	require.NoError(t, l.ReceiveTx(t1, tx1, 10))
	require.NoError(t, l.AddVerifiedTx(t1, TxMinedInfo{Height: 10}))
	require.Equal(t, t1, nextEvent[TransactionAdded](t, sub).TxID)

	// A local transaction the server starts reporting is announced.
	ok, err := l.AddTransaction(nil, t2, tx2, false)
	require.NoError(t, err)
	require.True(t, ok)
	local, err := l.IsLocalTx(t2)
	require.NoError(t, err)
	require.True(t, local)

	hist = append(hist, HistoryEntry{TxID: t2, Height: 0})
	require.NoError(t, l.ReceiveHistory(addr.EncodeAddress(), hist, nil))
	require.Equal(t, t2, nextEvent[TransactionAdded](t, sub).TxID)
	mined, err := l.GetTxHeight(nil, t2)
	require.NoError(t, err)
	require.Equal(t, HeightUnconfirmed, mined.Height)

	// Dropping t1 from the history withdraws its verification.
	verifier.AssertNotCalled(t, "RemoveSPVProofForTx", t1)
	hist = hist[1:]
	require.NoError(t, l.ReceiveHistory(addr.EncodeAddress(), hist, nil))
	verifier.AssertCalled(t, "RemoveSPVProofForTx", t1)

	mined, err = l.GetTxHeight(nil, t1)
	require.NoError(t, err)
	require.Equal(t, HeightLocal, mined.Height)

	addrHist, err := l.AddressHistory(nil, addr.EncodeAddress())
	require.NoError(t, err)
	require.ElementsMatch(t, []AddrTx{
		{TxID: t1, Height: HeightLocal},
		{TxID: t2, Height: HeightUnconfirmed},
	}, addrHist)
}
