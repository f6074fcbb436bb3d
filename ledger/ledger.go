// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/axerunners/axewallet/netparams"
	"github.com/axerunners/axewallet/txcodec"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/clock"
)

// ChainSource provides the local header chain.  headerchain.Chain satisfies
// it.
type ChainSource interface {
	// LocalHeight returns the height of the local tip.
	LocalHeight() int32

	// HeaderHash returns the hash of the local header at height.  The
	// second return is false when no header is stored there.
	HeaderHash(height int32) (chainhash.Hash, bool)
}

// Verifier checks merkle proofs of wallet transactions.  It is called with
// ledger locks held and must not call back into the ledger.
type Verifier interface {
	// RemoveSPVProofForTx forgets the proof of a transaction whose
	// verification was withdrawn.
	RemoveSPVProofForTx(txid chainhash.Hash)
}

// IslockSource checks transactions against recently received instant send
// locks.
type IslockSource interface {
	VerifyOnRecentIslocks(txid chainhash.Hash) bool
}

// Config holds the collaborators of a Ledger.
type Config struct {
	// Params selects the network.  It is required.
	Params *netparams.Params

	// Store holds the ledger tables.  A MemStore is used when nil.
	Store Store

	// Chain provides the local height.  Without a chain the ledger is
	// offline and uses the stored height.
	Chain ChainSource

	// Verifier and Islocks are optional.
	Verifier Verifier
	Islocks  IslockSource

	// Owns reports whether an address belongs to the wallet.  When set,
	// histories of addresses it rejects are dropped on load.
	Owns func(addr string) bool

	// Clock timestamps instant send locks.  The system clock is used
	// when nil.
	Clock clock.Clock
}

// Ledger tracks the transactions, outputs and balances of a set of watched
// addresses, and what is known about how firmly each transaction is mined.
//
// Two locks protect the ledger and are always taken in the same order: mu,
// which guards verification state, then txMu, which guards the transaction
// tables and indexes.
type Ledger struct {
	params *netparams.Params

	// base is the configured store.  store is base, or a batch of it
	// while a writer holds both mu and txMu.  Code holding neither lock
	// uses base.
	base  Store
	store Store

	chain    ChainSource
	verifier Verifier
	islocks  IslockSource
	owns     func(addr string) bool
	clock    clock.Clock
	metrics  metrics
	notifier *notifier

	mu         sync.RWMutex
	unverified map[chainhash.Hash]int32
	upToDate   bool

	txMu         sync.RWMutex
	historyLocal map[string]map[chainhash.Hash]struct{}

	cacheMu      sync.Mutex
	balanceCache map[string]Balance
}

// New creates a Ledger over the tables in cfg.Store and rebuilds its
// in-memory indexes.
func New(cfg Config) (*Ledger, error) {
	if cfg.Params == nil {
		return nil, errors.New("ledger: network params required")
	}
	if cfg.Store == nil {
		cfg.Store = NewMemStore()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	l := &Ledger{
		params:       cfg.Params,
		base:         cfg.Store,
		store:        cfg.Store,
		chain:        cfg.Chain,
		verifier:     cfg.Verifier,
		islocks:      cfg.Islocks,
		owns:         cfg.Owns,
		clock:        cfg.Clock,
		metrics:      newMetrics(cfg.Params.Name),
		notifier:     newNotifier(),
		unverified:   make(map[chainhash.Hash]int32),
		historyLocal: make(map[string]map[chainhash.Hash]struct{}),
		balanceCache: make(map[string]Balance),
	}
	if err := l.LoadAndCleanup(); err != nil {
		return nil, err
	}
	return l, nil
}

// Params returns the network parameters of the ledger.
func (l *Ledger) Params() *netparams.Params {
	return l.params
}

// Subscribe returns a subscription to ledger events.
func (l *Ledger) Subscribe() *Subscription {
	return l.notifier.subscribe()
}

// localHeight returns the chain tip, or the height stored when the wallet
// last went offline.
func (l *Ledger) localHeight() int32 {
	if l.chain != nil {
		return l.chain.LocalHeight()
	}
	height, err := l.base.StoredHeight()
	if err != nil {
		log.Errorf("Unable to read stored height: %v", err)
		return 0
	}
	return height
}

// PersistLocalHeight saves the local height so an offline ledger can still
// compute confirmations and maturity.
func (l *Ledger) PersistLocalHeight() error {
	return l.base.PutStoredHeight(l.localHeight())
}

// LoadAndCleanup rebuilds the local history index from the stored debits
// and credits and repairs tables left inconsistent by an interrupted sync.
func (l *Ledger) LoadAndCleanup() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txMu.Lock()
	defer l.txMu.Unlock()

	qc := l.NewQueryContext()
	if err := l.loadLocalHistory(); err != nil {
		return err
	}
	if err := l.checkHistory(qc); err != nil {
		return err
	}
	if err := l.loadUnverifiedTxs(); err != nil {
		return err
	}
	return l.removeLocalTxsWeDontHave(qc)
}

// indexedTxIDs returns every transaction with a debit or credit record.
func (l *Ledger) indexedTxIDs() ([]chainhash.Hash, error) {
	txi, err := l.store.TxiIDs()
	if err != nil {
		return nil, err
	}
	txo, err := l.store.TxoIDs()
	if err != nil {
		return nil, err
	}

	ids := make(map[chainhash.Hash]struct{}, len(txi)+len(txo))
	for _, txid := range append(txi, txo...) {
		ids[txid] = struct{}{}
	}
	return sortedHashes(ids), nil
}

func (l *Ledger) loadLocalHistory() error {
	l.historyLocal = make(map[string]map[chainhash.Hash]struct{})
	txids, err := l.indexedTxIDs()
	if err != nil {
		return err
	}
	for _, txid := range txids {
		if err := l.addTxToLocalHistory(txid); err != nil {
			return err
		}
	}
	return nil
}

// checkHistory drops histories of addresses the wallet does not own and
// indexes stored transactions that the history lists but no debit or credit
// refers to.
func (l *Ledger) checkHistory(qc *QueryContext) error {
	addrs, err := l.store.Addresses()
	if err != nil {
		return err
	}
	for _, addr := range addrs {
		if l.owns != nil && !l.owns(addr) {
			log.Infof("Dropping history of foreign address %s", addr)
			if err := l.store.RemoveAddrHistory(addr); err != nil {
				return err
			}
			continue
		}

		hist, err := l.store.AddrHistory(addr)
		if err != nil {
			return err
		}
		for _, e := range hist {
			indexed, err := l.isIndexed(e.TxID)
			if err != nil {
				return err
			}
			if indexed {
				continue
			}
			tx, err := l.store.Tx(e.TxID)
			if err != nil {
				return err
			}
			if tx == nil {
				continue
			}
			_, err = l.addTransaction(qc, e.TxID, tx, true)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *Ledger) isIndexed(txid chainhash.Hash) (bool, error) {
	txi, err := l.store.Txi(txid)
	if err != nil || len(txi) > 0 {
		return len(txi) > 0, err
	}
	txo, err := l.store.Txo(txid)
	return len(txo) > 0, err
}

// loadUnverifiedTxs marks every transaction of every history unverified at
// its reported height.
func (l *Ledger) loadUnverifiedTxs() error {
	addrs, err := l.store.Addresses()
	if err != nil {
		return err
	}
	for _, addr := range addrs {
		hist, err := l.store.AddrHistory(addr)
		if err != nil {
			return err
		}
		for _, e := range hist {
			if err := l.addUnverifiedTx(e.TxID, e.Height); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *Ledger) removeLocalTxsWeDontHave(qc *QueryContext) error {
	txids, err := l.indexedTxIDs()
	if err != nil {
		return err
	}
	for _, txid := range txids {
		mined, err := l.txHeight(qc, txid)
		if err != nil {
			return err
		}
		if mined.Height != HeightLocal {
			continue
		}
		tx, err := l.store.Tx(txid)
		if err != nil {
			return err
		}
		if tx == nil {
			if err := l.removeTransaction(txid); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddAddress starts watching addr.
func (l *Ledger) AddAddress(addr string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txMu.Lock()
	defer l.txMu.Unlock()

	ok, err := l.store.HasAddress(addr)
	if err != nil || ok {
		return err
	}
	if err := l.store.PutAddrHistory(addr, nil); err != nil {
		return err
	}
	l.upToDate = false
	return nil
}

// IsMine reports whether addr is watched.
func (l *Ledger) IsMine(addr string) (bool, error) {
	return l.isMine(addr)
}

func (l *Ledger) isMine(addr string) (bool, error) {
	if addr == "" {
		return false, nil
	}
	return l.store.HasAddress(addr)
}

// Addresses returns the watched addresses in sorted order.
func (l *Ledger) Addresses() ([]string, error) {
	return l.base.Addresses()
}

// SetUpToDate records whether the histories of all watched addresses are
// synchronized.
func (l *Ledger) SetUpToDate(upToDate bool) {
	l.mu.Lock()
	l.upToDate = upToDate
	l.mu.Unlock()
}

// IsUpToDate reports the flag set by SetUpToDate.
func (l *Ledger) IsUpToDate() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.upToDate
}

// ClearHistory forgets every transaction and history.  Watched addresses
// must be added again.
func (l *Ledger) ClearHistory() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txMu.Lock()
	defer l.txMu.Unlock()

	if err := l.store.ClearHistory(); err != nil {
		return err
	}
	l.historyLocal = make(map[string]map[chainhash.Hash]struct{})
	l.unverified = make(map[chainhash.Hash]int32)
	l.clearBalanceCache()
	return nil
}

// txinAddress returns the watched address an input spends from, or "" when
// it cannot be told.
func (l *Ledger) txinAddress(in *txcodec.TxIn) (string, error) {
	if in.IsCoinbase() {
		return "", nil
	}
	if in.Address != nil {
		if _, ok := in.Address.(*btcutil.AddressPubKey); !ok {
			return in.Address.EncodeAddress(), nil
		}
	}

	prev := in.PreviousOutPoint
	txo, err := l.store.Txo(prev.Hash)
	if err != nil {
		return "", err
	}
	for addr, entries := range txo {
		for _, e := range entries {
			if e.Index == prev.Index {
				return addr, nil
			}
		}
	}
	return "", nil
}

// txoutAddress returns the address an output pays, in its pay to pubkey
// hash form for bare pubkey outputs.
func txoutAddress(out *txcodec.TxOut) string {
	switch out.Type {
	case txcodec.OutputAddress, txcodec.OutputPubKey:
		if out.Address != nil {
			return out.Address.EncodeAddress()
		}
	}
	return ""
}

// isRelated reports whether tx spends from or pays to a watched address.
func (l *Ledger) isRelated(tx *txcodec.Tx) (bool, error) {
	for _, in := range tx.Inputs {
		addr, err := l.txinAddress(in)
		if err != nil {
			return false, err
		}
		mine, err := l.isMine(addr)
		if err != nil || mine {
			return mine, err
		}
	}
	for _, out := range tx.Outputs {
		mine, err := l.isMine(txoutAddress(out))
		if err != nil || mine {
			return mine, err
		}
	}
	return false, nil
}

// conflictingTxs returns the stored transactions spending an outpoint that
// tx spends too.  tx itself is not reported.
func (l *Ledger) conflictingTxs(txid chainhash.Hash,
	tx *txcodec.Tx) (map[chainhash.Hash]struct{}, error) {

	conflicts := make(map[chainhash.Hash]struct{})
	for _, in := range tx.Inputs {
		if in.IsCoinbase() {
			continue
		}
		spender, ok, err := l.store.SpentBy(in.PreviousOutPoint)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		stored, err := l.store.Tx(spender)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			invariant("spending tx %v of %v not in ledger", spender,
				in.PreviousOutPoint)
		}
		conflicts[spender] = struct{}{}
	}

	if _, ok := conflicts[txid]; ok {
		if len(conflicts) > 1 {
			invariant("found conflicting transactions already in " +
				"wallet history")
		}
		delete(conflicts, txid)
	}
	return conflicts, nil
}

// AddTransaction stores tx and indexes its debits and credits.  Conflicts
// are resolved by confirmation tier: a mined transaction beats a mempool
// one, which beats a local one.  tx replaces its conflicts only when its
// tier is strictly higher than all of theirs, in which case they are removed
// along with everything that spends from them.  Otherwise nothing changes
// and the boolean return is false.
//
// Unless allowUnrelated is set, transactions that neither spend from nor
// pay to a watched address fail with ErrUnrelatedTransaction.
func (l *Ledger) AddTransaction(qc *QueryContext, txid chainhash.Hash,
	tx *txcodec.Tx, allowUnrelated bool) (bool, error) {

	l.mu.Lock()
	defer l.mu.Unlock()
	l.txMu.Lock()
	defer l.txMu.Unlock()

	var added bool
	err := l.inBatch(func() error {
		var err error
		added, err = l.addTransaction(
			l.queryContext(qc), txid, tx, allowUnrelated,
		)
		return err
	})
	return added, err
}

// inBatch calls f with l.store bound to a single store batch, so that the
// writes of f are committed together.  Both l.mu and l.txMu must be held
// for writes.
func (l *Ledger) inBatch(f func() error) error {
	return l.base.Batch(func(s Store) error {
		l.store = s
		defer func() { l.store = l.base }()
		return f()
	})
}

// Conflict tiers, lowest first.
const (
	tierLocal = iota
	tierMempool
	tierMined
)

var tierNames = [...]string{
	tierLocal:   "local",
	tierMempool: "mempool",
	tierMined:   "mined",
}

// conflictTier ranks a height for conflict resolution.
func conflictTier(height int32) int {
	switch {
	case height > 0:
		return tierMined
	case height == HeightLocal:
		return tierLocal
	default:
		return tierMempool
	}
}

func (l *Ledger) addTransaction(qc *QueryContext, txid chainhash.Hash,
	tx *txcodec.Tx, allowUnrelated bool) (bool, error) {

	if !tx.IsComplete() {
		str := "transaction " + txid.String() + " is not signed"
		return false, storeError(ErrIncompleteTx, str, nil)
	}

	isCoinbase := tx.IsCoinbase()
	mined, err := l.txHeight(qc, txid)
	if err != nil {
		return false, err
	}
	txHeight := mined.Height

	if !allowUnrelated {
		related, err := l.isRelated(tx)
		if err != nil {
			return false, err
		}
		if !related {
			return false, ErrUnrelatedTransaction
		}
	}

	conflicts, err := l.conflictingTxs(txid, tx)
	if err != nil {
		return false, err
	}
	if len(conflicts) > 0 {
		best := tierLocal
		for c := range conflicts {
			m, err := l.txHeight(qc, c)
			if err != nil {
				return false, err
			}
			best = max(best, conflictTier(m.Height))
		}

		// Only a strictly better tier replaces what is stored.
		if conflictTier(txHeight) <= best {
			log.Debugf("Dropping tx %v: conflicts with a %s tx", txid,
				tierNames[best])
			l.metrics.rejected(tierNames[best] + "_conflict")
			return false, nil
		}

		toRemove := make(map[chainhash.Hash]struct{})
		for c := range conflicts {
			toRemove[c] = struct{}{}
			if err := l.dependingTxs(c, toRemove); err != nil {
				return false, err
			}
		}
		for _, c := range sortedHashes(toRemove) {
			if err := l.removeTransaction(c); err != nil {
				return false, err
			}
		}
		l.metrics.evicted(len(toRemove))
	}

	// Debits.
	for _, in := range tx.Inputs {
		if in.IsCoinbase() {
			continue
		}
		prev := in.PreviousOutPoint
		if err := l.store.PutSpent(prev, txid); err != nil {
			return false, err
		}
		if err := l.addValueFromPrevOutput(txid, prev); err != nil {
			return false, err
		}
	}

	// Credits.
	for n, out := range tx.Outputs {
		addr := txoutAddress(out)
		mine, err := l.isMine(addr)
		if err != nil {
			return false, err
		}
		if !mine {
			continue
		}

		e := TxoEntry{Index: uint32(n), Value: out.Value, Coinbase: isCoinbase}
		if err := l.store.AddTxo(txid, addr, e); err != nil {
			return false, err
		}
		l.invalidateBalance(addr)

		// The output may already be spent by a transaction that
		// arrived first.  Give it the value now.
		op := wire.OutPoint{Hash: txid, Index: uint32(n)}
		next, ok, err := l.store.SpentBy(op)
		if err != nil {
			return false, err
		}
		if ok {
			debit := TxiEntry{OutPoint: op, Value: out.Value}
			if err := l.store.AddTxi(next, addr, debit); err != nil {
				return false, err
			}
			if err := l.addTxToLocalHistory(next); err != nil {
				return false, err
			}
		}
	}

	if err := l.addTxToLocalHistory(txid); err != nil {
		return false, err
	}

	prev, err := l.store.Tx(txid)
	if err != nil {
		return false, err
	}
	if err := l.store.PutTx(txid, tx); err != nil {
		return false, err
	}
	if prev == nil {
		l.metrics.added()
		if txHeight != HeightLocal {
			l.notifier.publish(TransactionAdded{TxID: txid, Tx: tx})
		}
	}
	return true, nil
}

// addValueFromPrevOutput records a debit of txid when the output it spends
// pays a watched address.
func (l *Ledger) addValueFromPrevOutput(txid chainhash.Hash,
	prev wire.OutPoint) error {

	txo, err := l.store.Txo(prev.Hash)
	if err != nil {
		return err
	}
	for addr, entries := range txo {
		for _, e := range entries {
			if e.Index != prev.Index {
				continue
			}
			mine, err := l.isMine(addr)
			if err != nil || !mine {
				return err
			}
			debit := TxiEntry{OutPoint: prev, Value: e.Value}
			if err := l.store.AddTxi(txid, addr, debit); err != nil {
				return err
			}
			l.invalidateBalance(addr)
			return nil
		}
	}
	return nil
}

// RemoveTransaction removes a transaction and its index records.
// Transactions spending from it are left alone.
func (l *Ledger) RemoveTransaction(txid chainhash.Hash) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txMu.Lock()
	defer l.txMu.Unlock()

	return l.inBatch(func() error {
		return l.removeTransaction(txid)
	})
}

func (l *Ledger) removeTransaction(txid chainhash.Hash) error {
	log.Infof("Removing tx %v from history", txid)

	tx, err := l.store.RemoveTx(txid)
	if err != nil {
		return err
	}
	if tx != nil {
		for _, in := range tx.Inputs {
			if in.IsCoinbase() {
				continue
			}
			err := l.store.RemoveSpent(in.PreviousOutPoint)
			if err != nil {
				return err
			}
		}
	} else {
		// Without the transaction every spent outpoint has to be
		// checked.
		ops, err := l.store.SpentOutPoints()
		if err != nil {
			return err
		}
		for _, op := range ops {
			spender, ok, err := l.store.SpentBy(op)
			if err != nil {
				return err
			}
			if !ok || spender != txid {
				continue
			}
			if err := l.store.RemoveSpent(op); err != nil {
				return err
			}
		}
	}

	addrs, err := l.txAddresses(txid)
	if err != nil {
		return err
	}
	for _, addr := range addrs {
		if hist, ok := l.historyLocal[addr]; ok {
			delete(hist, txid)
		}
		l.invalidateBalance(addr)
		l.notifier.markChanged(addr)
	}
	if err := l.store.RemoveTxi(txid); err != nil {
		return err
	}
	if err := l.store.RemoveTxo(txid); err != nil {
		return err
	}

	l.metrics.removed()
	return nil
}

// GetDependingTransactions returns every stored transaction that spends,
// directly or through others, an output of txid.
func (l *Ledger) GetDependingTransactions(
	txid chainhash.Hash) ([]chainhash.Hash, error) {

	l.txMu.RLock()
	defer l.txMu.RUnlock()

	children := make(map[chainhash.Hash]struct{})
	if err := l.dependingTxs(txid, children); err != nil {
		return nil, err
	}
	return sortedHashes(children), nil
}

func (l *Ledger) dependingTxs(txid chainhash.Hash,
	children map[chainhash.Hash]struct{}) error {

	spenders, err := l.store.Spenders(txid)
	if err != nil {
		return err
	}
	for _, child := range spenders {
		if _, ok := children[child]; ok {
			continue
		}
		children[child] = struct{}{}
		if err := l.dependingTxs(child, children); err != nil {
			return err
		}
	}
	return nil
}

// txAddresses returns the watched addresses with a debit or credit record
// in txid.
func (l *Ledger) txAddresses(txid chainhash.Hash) ([]string, error) {
	txi, err := l.store.Txi(txid)
	if err != nil {
		return nil, err
	}
	txo, err := l.store.Txo(txid)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(txi)+len(txo))
	for addr := range txi {
		seen[addr] = struct{}{}
	}
	for addr := range txo {
		seen[addr] = struct{}{}
	}
	addrs := make([]string, 0, len(seen))
	for addr := range seen {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs, nil
}

func (l *Ledger) addTxToLocalHistory(txid chainhash.Hash) error {
	addrs, err := l.txAddresses(txid)
	if err != nil {
		return err
	}
	for _, addr := range addrs {
		hist, ok := l.historyLocal[addr]
		if !ok {
			hist = make(map[chainhash.Hash]struct{})
			l.historyLocal[addr] = hist
		}
		hist[txid] = struct{}{}
		l.notifier.markChanged(addr)
	}
	return nil
}

// WaitForAddressHistoryChange blocks until the local history of addr
// changes next, or ctx is done.  Changes made before the call are not
// reported.
func (l *Ledger) WaitForAddressHistoryChange(ctx context.Context,
	addr string) error {

	mine, err := l.isMine(addr)
	if err != nil {
		return err
	}
	if !mine {
		str := "address " + addr + " is not watched"
		return storeError(ErrNotWatched, str, nil)
	}
	return l.notifier.wait(ctx, addr)
}

func (l *Ledger) invalidateBalance(addr string) {
	l.cacheMu.Lock()
	delete(l.balanceCache, addr)
	l.cacheMu.Unlock()
}

func (l *Ledger) clearBalanceCache() {
	l.cacheMu.Lock()
	l.balanceCache = make(map[string]Balance)
	l.cacheMu.Unlock()
}
