// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"bytes"
	"sort"
	"time"

	"github.com/axerunners/axewallet/txcodec"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// ReceiveTx ingests a transaction an indexing server sent for a history
// entry at height.
func (l *Ledger) ReceiveTx(txid chainhash.Hash, tx *txcodec.Tx,
	height int32) error {

	l.mu.Lock()
	l.txMu.Lock()
	err := l.inBatch(func() error {
		if err := l.addUnverifiedTx(txid, height); err != nil {
			return err
		}
		_, err := l.addTransaction(l.NewQueryContext(), txid, tx, true)
		return err
	})
	l.txMu.Unlock()
	l.mu.Unlock()
	if err != nil {
		return err
	}

	return l.findIslockPair(txid)
}

// ReceiveHistory reconciles the history an indexing server reported for
// addr with the local one.  Transactions no longer listed lose their
// verification and become local.  Listed transactions that are already
// stored are ingested again, since addr may be new to them.  fees holds the
// fees the server reported.
func (l *Ledger) ReceiveHistory(addr string, hist []HistoryEntry,
	fees map[chainhash.Hash]int64) error {

	var appeared []chainhash.Hash
	l.mu.Lock()
	l.txMu.Lock()
	err := l.inBatch(func() error {
		var err error
		appeared, err = l.receiveHistory(addr, hist, fees)
		return err
	})
	l.txMu.Unlock()
	l.mu.Unlock()
	if err != nil {
		return err
	}

	// Local transactions the network now knows about.
	for _, txid := range appeared {
		if err := l.findIslockPair(txid); err != nil {
			return err
		}
		tx, err := l.base.Tx(txid)
		if err != nil {
			return err
		}
		if tx != nil {
			l.notifier.publish(TransactionAdded{TxID: txid, Tx: tx})
		}
	}
	return nil
}

func (l *Ledger) receiveHistory(addr string, hist []HistoryEntry,
	fees map[chainhash.Hash]int64) ([]chainhash.Hash, error) {

	qc := l.NewQueryContext()

	reported := make(map[HistoryEntry]struct{}, len(hist))
	for _, e := range hist {
		reported[e] = struct{}{}
	}

	old, err := l.addrHistory(qc, addr)
	if err != nil {
		return nil, err
	}
	known := make(map[chainhash.Hash]struct{}, len(old))
	for _, e := range old {
		if e.Height > HeightLocal {
			known[e.TxID] = struct{}{}
		}
		entry := HistoryEntry{TxID: e.TxID, Height: e.Height}
		if _, ok := reported[entry]; ok {
			continue
		}

		delete(l.unverified, e.TxID)
		if err := l.store.RemoveVerifiedTx(e.TxID); err != nil {
			return nil, err
		}
		if l.verifier != nil {
			l.verifier.RemoveSPVProofForTx(e.TxID)
		}
	}
	if err := l.store.PutAddrHistory(addr, hist); err != nil {
		return nil, err
	}

	var appeared []chainhash.Hash
	for _, e := range hist {
		if _, ok := known[e.TxID]; !ok {
			mined, err := l.txHeight(qc, e.TxID)
			if err != nil {
				return nil, err
			}
			if mined.Height == HeightLocal {
				appeared = append(appeared, e.TxID)
			}
		}

		if err := l.addUnverifiedTx(e.TxID, e.Height); err != nil {
			return nil, err
		}
		tx, err := l.store.Tx(e.TxID)
		if err != nil {
			return nil, err
		}
		if tx == nil {
			continue
		}
		if _, err := l.addTransaction(qc, e.TxID, tx, true); err != nil {
			return nil, err
		}
	}

	if err := l.store.PutTxFees(fees); err != nil {
		return nil, err
	}
	return appeared, nil
}

// AddressHistory returns the local history of addr ordered by txid.
func (l *Ledger) AddressHistory(qc *QueryContext, addr string) ([]AddrTx,
	error) {

	l.mu.RLock()
	defer l.mu.RUnlock()
	l.txMu.RLock()
	defer l.txMu.RUnlock()

	return l.addrHistory(l.queryContext(qc), addr)
}

func (l *Ledger) addrHistory(qc *QueryContext, addr string) ([]AddrTx,
	error) {

	txids := sortedHashes(l.historyLocal[addr])
	hist := make([]AddrTx, 0, len(txids))
	for _, txid := range txids {
		mined, err := l.txHeight(qc, txid)
		if err != nil {
			return nil, err
		}
		islock, err := l.txIslock(txid)
		if err != nil {
			return nil, err
		}
		hist = append(hist, AddrTx{
			TxID:   txid,
			Height: mined.Height,
			Islock: islock,
		})
	}
	return hist, nil
}

// AddressHistoryLen returns how many transactions involve addr.
func (l *Ledger) AddressHistoryLen(addr string) int {
	l.txMu.RLock()
	defer l.txMu.RUnlock()
	return len(l.historyLocal[addr])
}

// IsUsed reports whether any transaction involves addr.
func (l *Ledger) IsUsed(addr string) bool {
	return l.AddressHistoryLen(addr) != 0
}

// IsEmpty reports whether addr holds no coins in any tier.
func (l *Ledger) IsEmpty(qc *QueryContext, addr string) (bool, error) {
	b, err := l.GetAddrBalance(qc, addr, nil)
	if err != nil {
		return false, err
	}
	return b.Total() == 0, nil
}

type historyRow struct {
	txid   chainhash.Hash
	mined  TxMinedInfo
	delta  fn.Option[int64]
	islock int64

	pos    int64
	txPos  uint32
	sortID string
}

// less orders rows newest first.
func (r *historyRow) less(o *historyRow) bool {
	if r.pos != o.pos {
		return r.pos > o.pos
	}
	if r.txPos != o.txPos {
		return r.txPos > o.txPos
	}
	if r.sortID != o.sortID {
		return r.sortID > o.sortID
	}
	return bytes.Compare(r.txid[:], o.txid[:]) > 0
}

// GetHistory returns the transactions of the addresses in domain, oldest
// first, each with its effect on the domain and the running balance after
// it.  A nil domain means every watched address.  grouping is accepted for
// mixing sessions and currently has no effect.
//
// When the running balance does not reconcile with the current balance the
// ledger is missing transactions.  The history is then empty rather than
// wrong.
func (l *Ledger) GetHistory(qc *QueryContext, domain []string,
	grouping bool) ([]HistoryItem, error) {

	defer l.metrics.observeHistory(time.Now())

	l.mu.RLock()
	defer l.mu.RUnlock()
	l.txMu.RLock()
	defer l.txMu.RUnlock()

	qc = l.queryContext(qc)
	if domain == nil {
		addrs, err := l.store.Addresses()
		if err != nil {
			return nil, err
		}
		domain = addrs
	}
	domainSet := setOf(domain)

	deltas := make(map[chainhash.Hash]fn.Option[int64])
	islocks := make(map[chainhash.Hash]int64)
	for addr := range domainSet {
		hist, err := l.addrHistory(qc, addr)
		if err != nil {
			return nil, err
		}
		for _, e := range hist {
			delta, err := l.txDelta(e.TxID, addr)
			if err != nil {
				return nil, err
			}
			sum, ok := deltas[e.TxID]
			switch {
			case !ok:
				deltas[e.TxID] = fn.Some(delta)
			case sum.IsSome():
				deltas[e.TxID] = fn.Some(sum.UnwrapOr(0) + delta)
			}
			if _, ok := islocks[e.TxID]; !ok {
				islocks[e.TxID] = e.Islock
			}
		}
	}

	rows := make([]*historyRow, 0, len(deltas))
	for txid, delta := range deltas {
		mined, err := l.txHeight(qc, txid)
		if err != nil {
			return nil, err
		}
		islock := islocks[txid]
		pos, txPos, err := l.txPos(txid, islock)
		if err != nil {
			return nil, err
		}
		row := &historyRow{
			txid:   txid,
			mined:  mined,
			delta:  delta,
			islock: islock,
			pos:    pos,
			txPos:  txPos,
		}
		if islock != 0 && mined.Conf == 0 {
			row.sortID = txid.String()
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].less(rows[j])
	})

	total, err := l.balance(qc, domain, nil)
	if err != nil {
		return nil, err
	}
	balance := fn.Some(int64(total.Total()))

	items := make([]HistoryItem, len(rows))
	for i, row := range rows {
		var txType txcodec.TxType
		tx, err := l.store.Tx(row.txid)
		if err != nil {
			return nil, err
		}
		if tx != nil {
			txType = tx.Type
		}

		// Filled from the end, so the result is oldest first.
		items[len(rows)-1-i] = HistoryItem{
			TxID:    row.txid,
			TxType:  txType,
			Mined:   row.mined,
			Delta:   row.delta,
			Balance: balance,
			Islock:  row.islock,
		}

		if balance.IsNone() || row.delta.IsNone() {
			balance = fn.None[int64]()
		} else {
			balance = fn.Some(balance.UnwrapOr(0) -
				row.delta.UnwrapOr(0))
		}
	}

	if balance.UnwrapOr(0) != 0 {
		log.Warnf("Dropping history of %d transactions: %v", len(items),
			ErrInconsistentHistory)
		l.metrics.inconsistent()
		return []HistoryItem{}, nil
	}
	return items, nil
}
