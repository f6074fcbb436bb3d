// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// islockKeepDepth is how many blocks a lock of a verified transaction is
// kept for.
const islockKeepDepth = 6

// AddUnverifiedTx records that an indexing server reported txid at height.
// A verified transaction that is reported back in the mempool loses its
// verification.
func (l *Ledger) AddUnverifiedTx(txid chainhash.Hash, height int32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addUnverifiedTx(txid, height)
}

func (l *Ledger) addUnverifiedTx(txid chainhash.Hash, height int32) error {
	verified, err := l.store.VerifiedTx(txid)
	if err != nil {
		return err
	}
	if verified == nil {
		l.unverified[txid] = height
		return nil
	}

	if height == HeightUnconfirmed || height == HeightUnconfParent {
		if err := l.store.RemoveVerifiedTx(txid); err != nil {
			return err
		}
		if l.verifier != nil {
			l.verifier.RemoveSPVProofForTx(txid)
		}
	}
	return nil
}

// RemoveUnverifiedTx forgets the pending verification of txid, but only if
// it is still expected at height.
func (l *Ledger) RemoveUnverifiedTx(txid chainhash.Hash, height int32) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.unverified[txid]; ok && h == height {
		delete(l.unverified, txid)
	}
}

// AddVerifiedTx records a checked merkle proof of txid.  Verifying a
// transaction again in the same block does nothing.  Verifying it in a
// different block fails with ErrVerifiedConflict until the old
// verification is undone.
func (l *Ledger) AddVerifiedTx(txid chainhash.Hash, info TxMinedInfo) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing, err := l.store.VerifiedTx(txid)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Height == info.Height &&
			existing.HeaderHash == info.HeaderHash {

			delete(l.unverified, txid)
			return nil
		}
		str := fmt.Sprintf("transaction %v is verified at height %d, "+
			"not %d", txid, existing.Height, info.Height)
		return storeError(ErrVerifiedConflict, str, nil)
	}

	info.Conf = 0
	if err := l.store.PutVerifiedTx(txid, &info); err != nil {
		return err
	}
	delete(l.unverified, txid)

	l.clearBalanceCache()
	l.notifier.publish(TransactionVerified{TxID: txid, Mined: info})
	return nil
}

// UnverifiedTxs returns the transactions awaiting a merkle proof and the
// height each is expected at.
func (l *Ledger) UnverifiedTxs() map[chainhash.Hash]int32 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	txs := make(map[chainhash.Hash]int32, len(l.unverified))
	for txid, height := range l.unverified {
		txs[txid] = height
	}
	return txs
}

// UndoVerifications withdraws the verification of every transaction mined
// above aboveHeight whose block is no longer part of chain.  Those
// transactions become unverified at their old height and are returned.
func (l *Ledger) UndoVerifications(chain ChainSource,
	aboveHeight int32) ([]chainhash.Hash, error) {

	l.mu.Lock()
	defer l.mu.Unlock()

	txids, err := l.store.VerifiedTxIDs()
	if err != nil {
		return nil, err
	}

	var undone []chainhash.Hash
	for _, txid := range txids {
		info, err := l.store.VerifiedTx(txid)
		if err != nil {
			return nil, err
		}
		if info == nil || info.Height <= aboveHeight {
			continue
		}
		hash, ok := chain.HeaderHash(info.Height)
		if ok && hash == info.HeaderHash {
			continue
		}

		if err := l.store.RemoveVerifiedTx(txid); err != nil {
			return nil, err
		}
		l.unverified[txid] = info.Height
		undone = append(undone, txid)
	}

	if len(undone) > 0 {
		log.Infof("Undid %d verifications above height %d",
			len(undone), aboveHeight)
		l.clearBalanceCache()
		l.metrics.undone(len(undone))
	}
	return undone, nil
}

// GetTxHeight returns how firmly txid is mined.  Transactions unknown to
// both the verifier and the indexing server are local.
func (l *Ledger) GetTxHeight(qc *QueryContext,
	txid chainhash.Hash) (TxMinedInfo, error) {

	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.txHeight(l.queryContext(qc), txid)
}

func (l *Ledger) txHeight(qc *QueryContext,
	txid chainhash.Hash) (TxMinedInfo, error) {

	info, err := l.store.VerifiedTx(txid)
	if err != nil {
		return TxMinedInfo{}, err
	}
	if info != nil {
		mined := *info
		mined.Conf = qc.LocalHeight() - info.Height + 1
		if mined.Conf < 0 {
			mined.Conf = 0
		}
		return mined, nil
	}
	if height, ok := l.unverified[txid]; ok {
		return TxMinedInfo{Height: height}, nil
	}
	return TxMinedInfo{Height: HeightLocal}, nil
}

// IsLocalTx reports whether the network does not know about txid.
func (l *Ledger) IsLocalTx(txid chainhash.Hash) (bool, error) {
	mined, err := l.GetTxHeight(nil, txid)
	if err != nil {
		return false, err
	}
	return mined.Height == HeightLocal, nil
}

// GetTxPos returns a key ordering txid in a history: the block height and
// position for mined transactions, and past every block for the rest.
// Instantly locked mempool transactions sort by lock time, and others
// sort behind them with transactions of unconfirmed parents last.
func (l *Ledger) GetTxPos(txid chainhash.Hash, islock int64) (int64,
	uint32, error) {

	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.txPos(txid, islock)
}

func (l *Ledger) txPos(txid chainhash.Hash, islock int64) (int64, uint32,
	error) {

	const unmined = 1e10

	info, err := l.store.VerifiedTx(txid)
	if err != nil {
		return 0, 0, err
	}
	if info != nil {
		return int64(info.Height), info.TxPos, nil
	}
	height, ok := l.unverified[txid]
	switch {
	case !ok:
		return unmined + 1, 0, nil
	case height > 0:
		return int64(height), 0, nil
	case islock == 0:
		return unmined - int64(height), 0, nil
	default:
		return islock, 0, nil
	}
}

// txIslock returns the lock timestamp of txid, or 0.
func (l *Ledger) txIslock(txid chainhash.Hash) (int64, error) {
	lock, err := l.store.Islock(txid)
	if err != nil || lock == nil {
		return 0, err
	}
	return lock.Timestamp, nil
}

// OnIslock handles an instant send lock announced by the network.  Locks
// for transactions the indexing server has not reported are ignored.
func (l *Ledger) OnIslock(txid chainhash.Hash) error {
	l.mu.RLock()
	_, known := l.unverified[txid]
	if !known {
		verified, err := l.store.VerifiedTx(txid)
		if err != nil {
			l.mu.RUnlock()
			return err
		}
		known = verified != nil
	}
	l.mu.RUnlock()

	if !known {
		return nil
	}
	log.Debugf("Found tx %v for islock", txid)
	return l.findIslockPair(txid)
}

// findIslockPair records a lock for txid if the network saw one recently.
// The network is asked without holding the ledger lock.
func (l *Ledger) findIslockPair(txid chainhash.Hash) error {
	if l.islocks == nil {
		return nil
	}
	l.mu.RLock()
	lock, err := l.store.Islock(txid)
	l.mu.RUnlock()
	if err != nil || lock != nil {
		return err
	}
	if !l.islocks.VerifyOnRecentIslocks(txid) {
		return nil
	}
	return l.AddIslock(txid)
}

// AddIslock records an instant send lock for txid.  A lock already on
// record is kept.
func (l *Ledger) AddIslock(txid chainhash.Hash) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addIslock(txid)
}

// addIslock must be called with l.mu held for writes.
func (l *Ledger) addIslock(txid chainhash.Hash) error {
	existing, err := l.store.Islock(txid)
	if err != nil || existing != nil {
		return err
	}

	lock := Islock{
		Height:    l.localHeight(),
		Timestamp: l.clock.Now().Unix(),
	}
	if err := l.store.PutIslock(txid, lock); err != nil {
		return err
	}

	l.clearBalanceCache()
	l.notifier.publish(IslockVerified{TxID: txid})
	return nil
}

// ProcessAndClearIslocks drops locks recorded more than a few blocks below
// height, once their transaction is mined or gone.
func (l *Ledger) ProcessAndClearIslocks(height int32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.processAndClearIslocks(height)
}

func (l *Ledger) processAndClearIslocks(height int32) error {
	locks, err := l.store.Islocks()
	if err != nil {
		return err
	}
	var cleared bool
	for _, txid := range sortedHashes(locks) {
		if height-locks[txid].Height < islockKeepDepth {
			continue
		}
		if _, ok := l.unverified[txid]; ok {
			continue
		}
		log.Debugf("Clearing islock of tx %v", txid)
		if err := l.store.RemoveIslock(txid); err != nil {
			return err
		}
		cleared = true
	}
	if cleared {
		l.clearBalanceCache()
	}
	return nil
}

// OnBlockchainUpdated is called when the local tip changed.
func (l *Ledger) OnBlockchainUpdated() error {
	height := l.localHeight()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.clearBalanceCache()
	return l.processAndClearIslocks(height)
}
