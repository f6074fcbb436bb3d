// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"sync"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// TestUndoVerifications withdraws verifications of transactions whose
// block left the chain.
func TestUndoVerifications(t *testing.T) {
	t.Parallel()

	chain := newTestChain(20)
	l := newTestLedger(t, Config{Chain: chain})
	addr := testAddress(t, 1)
	watch(t, l, addr)

	kept, keptTx := buildTx(t, []wire.OutPoint{foreignOutPoint(1)}, 0,
		testOut{addr, 1e8})
	below, belowTx := buildTx(t, []wire.OutPoint{foreignOutPoint(2)}, 0,
		testOut{addr, 2e8})
	orphaned, orphanedTx := buildTx(t, []wire.OutPoint{foreignOutPoint(3)},
		0, testOut{addr, 3e8})

	hash10 := chainhash.Hash{10}
	hash12 := chainhash.Hash{12}
	hash5 := chainhash.Hash{5}
	chain.setHash(5, chainhash.Hash{0x55})
	chain.setHash(10, hash10)
	chain.setHash(12, chainhash.Hash{0xbb})

	verified := map[chainhash.Hash]TxMinedInfo{
		kept:     {Height: 10, HeaderHash: hash10},
		below:    {Height: 5, HeaderHash: hash5},
		orphaned: {Height: 12, HeaderHash: hash12},
	}
	for txid, info := range verified {
		require.NoError(t, l.AddVerifiedTx(txid, info))
	}
	require.NoError(t, l.ReceiveTx(kept, keptTx, 10))
	require.NoError(t, l.ReceiveTx(below, belowTx, 5))
	require.NoError(t, l.ReceiveTx(orphaned, orphanedTx, 12))

	undone, err := l.UndoVerifications(chain, 8)
	require.NoError(t, err)
	require.Equal(t, []chainhash.Hash{orphaned}, undone)

	mined, err := l.GetTxHeight(nil, orphaned)
	require.NoError(t, err)
	require.Equal(t, TxMinedInfo{Height: 12}, mined)
	require.Equal(t, int32(12), l.UnverifiedTxs()[orphaned])

	// Below the fork nothing is checked.
	mined, err = l.GetTxHeight(nil, below)
	require.NoError(t, err)
	require.Equal(t, int32(20-5+1), mined.Conf)

	mined, err = l.GetTxHeight(nil, kept)
	require.NoError(t, err)
	require.Equal(t, hash10, mined.HeaderHash)

	require.Equal(t, float64(1), testutil.ToFloat64(
		verificationsUndoneTotal.WithLabelValues(l.metrics.network),
	))
}

// TestUnverifiedTransitions covers the verification state machine.
func TestUnverifiedTransitions(t *testing.T) {
	t.Parallel()

	verifier := &mockVerifier{}
	l := newTestLedger(t, Config{Verifier: verifier})
	txid := chainhash.Hash{1}

	require.NoError(t, l.AddUnverifiedTx(txid, 30))
	require.Equal(t, map[chainhash.Hash]int32{txid: 30}, l.UnverifiedTxs())

	// Only the expected height clears the entry.
	l.RemoveUnverifiedTx(txid, 31)
	require.Len(t, l.UnverifiedTxs(), 1)
	l.RemoveUnverifiedTx(txid, 30)
	require.Empty(t, l.UnverifiedTxs())

	require.NoError(t, l.AddUnverifiedTx(txid, 30))
	require.NoError(t, l.AddVerifiedTx(txid, TxMinedInfo{Height: 30}))
	require.Empty(t, l.UnverifiedTxs())

	// Reported again at a height, the verification stands.
	require.NoError(t, l.AddUnverifiedTx(txid, 30))
	mined, err := l.GetTxHeight(nil, txid)
	require.NoError(t, err)
	require.Equal(t, int32(100-30+1), mined.Conf)

	// Back in the mempool it does not.
	verifier.On("RemoveSPVProofForTx", txid).Return().Once()
	require.NoError(t, l.AddUnverifiedTx(txid, HeightUnconfirmed))
	verifier.AssertExpectations(t)

	info, err := l.store.VerifiedTx(txid)
	require.NoError(t, err)
	require.Nil(t, info)
}

// TestGetTxPos checks the history sort key.
func TestGetTxPos(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t, Config{})
	verified := chainhash.Hash{1}
	mined := chainhash.Hash{2}
	mempool := chainhash.Hash{3}
	parent := chainhash.Hash{4}

	require.NoError(t, l.AddVerifiedTx(verified, TxMinedInfo{
		Height: 40, TxPos: 9,
	}))
	require.NoError(t, l.AddUnverifiedTx(mined, 41))
	require.NoError(t, l.AddUnverifiedTx(mempool, HeightUnconfirmed))
	require.NoError(t, l.AddUnverifiedTx(parent, HeightUnconfParent))

	testCases := []struct {
		name    string
		txid    chainhash.Hash
		islock  int64
		wantPos int64
		wantIdx uint32
	}{
		{"verified", verified, 0, 40, 9},
		{"mined", mined, 0, 41, 0},
		{"mined and locked", mined, 77, 41, 0},
		{"mempool", mempool, 0, 1e10, 0},
		{"unconfirmed parent", parent, 0, 1e10 + 1, 0},
		{"locked mempool", mempool, 1600000000, 1600000000, 0},
		{"unknown", chainhash.Hash{5}, 0, 1e10 + 1, 0},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			pos, idx, err := l.GetTxPos(tc.txid, tc.islock)
			require.NoError(t, err)
			require.Equal(t, tc.wantPos, pos)
			require.Equal(t, tc.wantIdx, idx)
		})
	}
}

// TestIslocks covers recording and clearing of instant send locks.
func TestIslocks(t *testing.T) {
	t.Parallel()

	chain := newTestChain(100)
	islocks := &mockIslocks{}
	l := newTestLedger(t, Config{Chain: chain, Islocks: islocks})
	addr := testAddress(t, 1)
	watch(t, l, addr)
	sub := l.Subscribe()
	defer sub.Cancel()

	txid, tx := buildTx(t, []wire.OutPoint{foreignOutPoint(1)}, 0,
		testOut{addr, 1e8})
	unknown := chainhash.Hash{9}

	// No lock is known when the transaction arrives.
	islocks.On("VerifyOnRecentIslocks", txid).Return(false).Once()
	require.NoError(t, l.ReceiveTx(txid, tx, 0))

	islocks.On("VerifyOnRecentIslocks", txid).Return(true).Once()
	require.NoError(t, l.OnIslock(unknown))
	require.NoError(t, l.OnIslock(txid))
	require.Equal(t, txid, nextEvent[IslockVerified](t, sub).TxID)
	islocks.AssertExpectations(t)
	islocks.AssertNotCalled(t, "VerifyOnRecentIslocks", unknown)

	lock, err := l.store.Islock(txid)
	require.NoError(t, err)
	require.Equal(t, &Islock{
		Height:    100,
		Timestamp: testStartTime.Unix(),
	}, lock)

	// A known lock is not checked again.
	require.NoError(t, l.OnIslock(txid))

	bal, err := l.GetBalance(nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, Balance{Confirmed: 1e8}, bal)

	// Locks of unmined transactions are kept.
	require.NoError(t, l.ProcessAndClearIslocks(200))
	lock, err = l.store.Islock(txid)
	require.NoError(t, err)
	require.NotNil(t, lock)

	// Once mined they go after a few blocks.
	require.NoError(t, l.AddVerifiedTx(txid, TxMinedInfo{Height: 102}))
	require.NoError(t, l.ProcessAndClearIslocks(100+islockKeepDepth-1))
	lock, err = l.store.Islock(txid)
	require.NoError(t, err)
	require.NotNil(t, lock)

	chain.setHeight(100 + islockKeepDepth)
	require.NoError(t, l.OnBlockchainUpdated())
	lock, err = l.store.Islock(txid)
	require.NoError(t, err)
	require.Nil(t, lock)
}

// TestQueryContext checks that the local height is read once.
func TestQueryContext(t *testing.T) {
	t.Parallel()

	chain := newTestChain(100)
	l := newTestLedger(t, Config{Chain: chain})

	qc := l.NewQueryContext()
	require.Equal(t, int32(100), qc.LocalHeight())
	chain.setHeight(101)
	require.Equal(t, int32(100), qc.LocalHeight())
	require.Equal(t, int32(101), l.NewQueryContext().LocalHeight())
	require.Equal(t, int32(7), QueryContextAt(7).LocalHeight())

	// Offline ledgers fall back to the stored height.
	store := NewMemStore()
	require.NoError(t, store.PutStoredHeight(55))
	offline, err := New(Config{Params: l.params, Store: store})
	require.NoError(t, err)
	require.Equal(t, int32(55), offline.NewQueryContext().LocalHeight())

	require.NoError(t, l.PersistLocalHeight())
	height, err := l.store.StoredHeight()
	require.NoError(t, err)
	require.Equal(t, int32(101), height)
}

// TestAddVerifiedTxTransitions checks that a verification only moves to
// another block after it was undone.
func TestAddVerifiedTxTransitions(t *testing.T) {
	t.Parallel()

	hash100 := chainhash.Hash{0x64}
	hash101 := chainhash.Hash{0x65}
	first := TxMinedInfo{Height: 100, TxPos: 3, HeaderHash: hash100}

	testCases := []struct {
		name       string
		undo       bool
		second     TxMinedInfo
		wantErr    bool
		wantMined  TxMinedInfo
		wantEvents int
	}{
		{
			name:       "same block",
			second:     first,
			wantMined:  first,
			wantEvents: 1,
		},
		{
			name:       "other height",
			second:     TxMinedInfo{Height: 101, HeaderHash: hash101},
			wantErr:    true,
			wantMined:  first,
			wantEvents: 1,
		},
		{
			name:       "other block at same height",
			second:     TxMinedInfo{Height: 100, HeaderHash: hash101},
			wantErr:    true,
			wantMined:  first,
			wantEvents: 1,
		},
		{
			name:       "other height after undo",
			undo:       true,
			second:     TxMinedInfo{Height: 101, HeaderHash: hash101},
			wantMined:  TxMinedInfo{Height: 101, HeaderHash: hash101},
			wantEvents: 2,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			l := newTestLedger(t, Config{Chain: newTestChain(110)})
			sub := l.Subscribe()
			defer sub.Cancel()
			txid := chainhash.Hash{1}

			require.NoError(t, l.AddUnverifiedTx(txid, 100))
			require.NoError(t, l.AddVerifiedTx(txid, first))

			if tc.undo {
				// Reported back in the mempool, then mined again.
				err := l.AddUnverifiedTx(txid, HeightUnconfirmed)
				require.NoError(t, err)
				require.NoError(t, l.AddUnverifiedTx(txid, 101))
			}

			err := l.AddVerifiedTx(txid, tc.second)
			if tc.wantErr {
				require.True(t, IsError(err, ErrVerifiedConflict), err)
			} else {
				require.NoError(t, err)
			}

			stored, err := l.store.VerifiedTx(txid)
			require.NoError(t, err)
			require.Equal(t, &tc.wantMined, stored)
			require.NotContains(t, l.UnverifiedTxs(), txid)

			for i := 0; i < tc.wantEvents; i++ {
				nextEvent[TransactionVerified](t, sub)
			}
			select {
			case e := <-sub.Events():
				t.Fatalf("unexpected event %#v", e)
			default:
			}
		})
	}
}

// TestAddIslockClearsCachedBalance checks that balances computed while a
// lock is recorded do not outlive it.
func TestAddIslockClearsCachedBalance(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t, Config{})
	addr := testAddress(t, 1)
	watch(t, l, addr)
	encoded := addr.EncodeAddress()

	txid, tx := buildTx(t, []wire.OutPoint{foreignOutPoint(1)}, 0,
		testOut{addr, 1e8})
	require.NoError(t, l.ReceiveTx(txid, tx, HeightUnconfirmed))

	bal, err := l.GetAddrBalance(nil, encoded, nil)
	require.NoError(t, err)
	require.Equal(t, Balance{Unconfirmed: 1e8}, bal)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, err := l.GetAddrBalance(nil, encoded, nil)
				if err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	require.NoError(t, l.AddIslock(txid))
	wg.Wait()

	bal, err = l.GetAddrBalance(nil, encoded, nil)
	require.NoError(t, err)
	require.Equal(t, Balance{Confirmed: 1e8}, bal)

	// A second lock keeps the first timestamp.
	lock, err := l.store.Islock(txid)
	require.NoError(t, err)
	require.NoError(t, l.AddIslock(txid))
	again, err := l.store.Islock(txid)
	require.NoError(t, err)
	require.Equal(t, lock, again)
}
