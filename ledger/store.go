// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"bytes"
	"sort"
	"sync"

	"github.com/axerunners/axewallet/txcodec"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Store holds the tables of a Ledger.  Lookups of missing records return
// zero values, not errors.  Implementations must be safe for concurrent use,
// though the Ledger serializes all writes.
type Store interface {
	// Tx returns the stored transaction, or nil.
	Tx(txid chainhash.Hash) (*txcodec.Tx, error)
	PutTx(txid chainhash.Hash, tx *txcodec.Tx) error
	RemoveTx(txid chainhash.Hash) (*txcodec.Tx, error)
	TxIDs() ([]chainhash.Hash, error)

	// SpentBy returns the transaction spending op, if any.
	SpentBy(op wire.OutPoint) (chainhash.Hash, bool, error)

	// Spenders returns the spending transactions of the outputs of txid
	// by output index.
	Spenders(txid chainhash.Hash) (map[uint32]chainhash.Hash, error)
	PutSpent(op wire.OutPoint, spender chainhash.Hash) error
	RemoveSpent(op wire.OutPoint) error
	SpentOutPoints() ([]wire.OutPoint, error)

	// AddTxi and AddTxo ignore duplicate entries.
	AddTxi(txid chainhash.Hash, addr string, e TxiEntry) error
	AddTxo(txid chainhash.Hash, addr string, e TxoEntry) error
	Txi(txid chainhash.Hash) (map[string][]TxiEntry, error)
	Txo(txid chainhash.Hash) (map[string][]TxoEntry, error)
	RemoveTxi(txid chainhash.Hash) error
	RemoveTxo(txid chainhash.Hash) error
	TxiIDs() ([]chainhash.Hash, error)
	TxoIDs() ([]chainhash.Hash, error)

	// Addresses returns every address with a history record.  Having a
	// record, even an empty one, is what makes an address watched.
	Addresses() ([]string, error)
	HasAddress(addr string) (bool, error)
	AddrHistory(addr string) ([]HistoryEntry, error)
	PutAddrHistory(addr string, hist []HistoryEntry) error
	RemoveAddrHistory(addr string) error

	// ClearHistory drops everything but islocks and the stored height.
	ClearHistory() error

	// VerifiedTx returns the mined info of an SPV verified transaction,
	// or nil.
	VerifiedTx(txid chainhash.Hash) (*TxMinedInfo, error)
	PutVerifiedTx(txid chainhash.Hash, info *TxMinedInfo) error
	RemoveVerifiedTx(txid chainhash.Hash) error
	VerifiedTxIDs() ([]chainhash.Hash, error)

	// TxFee returns the fee an indexing server reported for txid.
	TxFee(txid chainhash.Hash) (fn.Option[int64], error)
	PutTxFees(fees map[chainhash.Hash]int64) error

	// Islock returns the instant send lock of txid, or nil.
	Islock(txid chainhash.Hash) (*Islock, error)
	PutIslock(txid chainhash.Hash, lock Islock) error
	RemoveIslock(txid chainhash.Hash) error
	Islocks() (map[chainhash.Hash]Islock, error)

	// StoredHeight is the local height saved when the wallet went
	// offline.
	StoredHeight() (int32, error)
	PutStoredHeight(height int32) error

	// Batch calls f with a Store whose writes are committed together if
	// f returns nil.
	Batch(f func(s Store) error) error
}

// MemStore is a Store kept entirely in memory.
type MemStore struct {
	mu sync.RWMutex

	txs      map[chainhash.Hash]*txcodec.Tx
	spent    map[chainhash.Hash]map[uint32]chainhash.Hash
	txi      map[chainhash.Hash]map[string][]TxiEntry
	txo      map[chainhash.Hash]map[string][]TxoEntry
	history  map[string][]HistoryEntry
	verified map[chainhash.Hash]TxMinedInfo
	fees     map[chainhash.Hash]int64
	islocks  map[chainhash.Hash]Islock
	height   int32
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	s := &MemStore{islocks: make(map[chainhash.Hash]Islock)}
	s.reset()
	return s
}

func (s *MemStore) reset() {
	s.txs = make(map[chainhash.Hash]*txcodec.Tx)
	s.spent = make(map[chainhash.Hash]map[uint32]chainhash.Hash)
	s.txi = make(map[chainhash.Hash]map[string][]TxiEntry)
	s.txo = make(map[chainhash.Hash]map[string][]TxoEntry)
	s.history = make(map[string][]HistoryEntry)
	s.verified = make(map[chainhash.Hash]TxMinedInfo)
	s.fees = make(map[chainhash.Hash]int64)
}

func (s *MemStore) Tx(txid chainhash.Hash) (*txcodec.Tx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.txs[txid], nil
}

func (s *MemStore) PutTx(txid chainhash.Hash, tx *txcodec.Tx) error {
	s.mu.Lock()
	s.txs[txid] = tx
	s.mu.Unlock()
	return nil
}

func (s *MemStore) RemoveTx(txid chainhash.Hash) (*txcodec.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := s.txs[txid]
	delete(s.txs, txid)
	return tx, nil
}

func (s *MemStore) TxIDs() ([]chainhash.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedHashes(s.txs), nil
}

func (s *MemStore) SpentBy(op wire.OutPoint) (chainhash.Hash, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	spender, ok := s.spent[op.Hash][op.Index]
	return spender, ok, nil
}

func (s *MemStore) Spenders(txid chainhash.Hash) (map[uint32]chainhash.Hash,
	error) {

	s.mu.RLock()
	defer s.mu.RUnlock()
	spenders := make(map[uint32]chainhash.Hash, len(s.spent[txid]))
	for n, spender := range s.spent[txid] {
		spenders[n] = spender
	}
	return spenders, nil
}

func (s *MemStore) PutSpent(op wire.OutPoint, spender chainhash.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.spent[op.Hash]
	if !ok {
		m = make(map[uint32]chainhash.Hash)
		s.spent[op.Hash] = m
	}
	m[op.Index] = spender
	return nil
}

func (s *MemStore) RemoveSpent(op wire.OutPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.spent[op.Hash]
	if !ok {
		return nil
	}
	delete(m, op.Index)
	if len(m) == 0 {
		delete(s.spent, op.Hash)
	}
	return nil
}

func (s *MemStore) SpentOutPoints() ([]wire.OutPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ops []wire.OutPoint
	for hash, m := range s.spent {
		for n := range m {
			ops = append(ops, wire.OutPoint{Hash: hash, Index: n})
		}
	}
	sortOutPoints(ops)
	return ops, nil
}

func (s *MemStore) AddTxi(txid chainhash.Hash, addr string, e TxiEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.txi[txid]
	if !ok {
		m = make(map[string][]TxiEntry)
		s.txi[txid] = m
	}
	for _, have := range m[addr] {
		if have == e {
			return nil
		}
	}
	m[addr] = append(m[addr], e)
	return nil
}

func (s *MemStore) AddTxo(txid chainhash.Hash, addr string, e TxoEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.txo[txid]
	if !ok {
		m = make(map[string][]TxoEntry)
		s.txo[txid] = m
	}
	for _, have := range m[addr] {
		if have == e {
			return nil
		}
	}
	m[addr] = append(m[addr], e)
	return nil
}

func (s *MemStore) Txi(txid chainhash.Hash) (map[string][]TxiEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := make(map[string][]TxiEntry, len(s.txi[txid]))
	for addr, entries := range s.txi[txid] {
		m[addr] = append([]TxiEntry(nil), entries...)
	}
	return m, nil
}

func (s *MemStore) Txo(txid chainhash.Hash) (map[string][]TxoEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := make(map[string][]TxoEntry, len(s.txo[txid]))
	for addr, entries := range s.txo[txid] {
		m[addr] = append([]TxoEntry(nil), entries...)
	}
	return m, nil
}

func (s *MemStore) RemoveTxi(txid chainhash.Hash) error {
	s.mu.Lock()
	delete(s.txi, txid)
	s.mu.Unlock()
	return nil
}

func (s *MemStore) RemoveTxo(txid chainhash.Hash) error {
	s.mu.Lock()
	delete(s.txo, txid)
	s.mu.Unlock()
	return nil
}

func (s *MemStore) TxiIDs() ([]chainhash.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedHashes(s.txi), nil
}

func (s *MemStore) TxoIDs() ([]chainhash.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedHashes(s.txo), nil
}

func (s *MemStore) Addresses() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	addrs := make([]string, 0, len(s.history))
	for addr := range s.history {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs, nil
}

func (s *MemStore) HasAddress(addr string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.history[addr]
	return ok, nil
}

func (s *MemStore) AddrHistory(addr string) ([]HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]HistoryEntry(nil), s.history[addr]...), nil
}

func (s *MemStore) PutAddrHistory(addr string, hist []HistoryEntry) error {
	s.mu.Lock()
	s.history[addr] = append([]HistoryEntry{}, hist...)
	s.mu.Unlock()
	return nil
}

func (s *MemStore) RemoveAddrHistory(addr string) error {
	s.mu.Lock()
	delete(s.history, addr)
	s.mu.Unlock()
	return nil
}

func (s *MemStore) ClearHistory() error {
	s.mu.Lock()
	s.reset()
	s.mu.Unlock()
	return nil
}

func (s *MemStore) VerifiedTx(txid chainhash.Hash) (*TxMinedInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.verified[txid]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

func (s *MemStore) PutVerifiedTx(txid chainhash.Hash, info *TxMinedInfo) error {
	s.mu.Lock()
	stored := *info
	stored.Conf = 0
	s.verified[txid] = stored
	s.mu.Unlock()
	return nil
}

func (s *MemStore) RemoveVerifiedTx(txid chainhash.Hash) error {
	s.mu.Lock()
	delete(s.verified, txid)
	s.mu.Unlock()
	return nil
}

func (s *MemStore) VerifiedTxIDs() ([]chainhash.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedHashes(s.verified), nil
}

func (s *MemStore) TxFee(txid chainhash.Hash) (fn.Option[int64], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fee, ok := s.fees[txid]
	if !ok {
		return fn.None[int64](), nil
	}
	return fn.Some(fee), nil
}

func (s *MemStore) PutTxFees(fees map[chainhash.Hash]int64) error {
	s.mu.Lock()
	for txid, fee := range fees {
		s.fees[txid] = fee
	}
	s.mu.Unlock()
	return nil
}

func (s *MemStore) Islock(txid chainhash.Hash) (*Islock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lock, ok := s.islocks[txid]
	if !ok {
		return nil, nil
	}
	return &lock, nil
}

func (s *MemStore) PutIslock(txid chainhash.Hash, lock Islock) error {
	s.mu.Lock()
	s.islocks[txid] = lock
	s.mu.Unlock()
	return nil
}

func (s *MemStore) RemoveIslock(txid chainhash.Hash) error {
	s.mu.Lock()
	delete(s.islocks, txid)
	s.mu.Unlock()
	return nil
}

func (s *MemStore) Islocks() (map[chainhash.Hash]Islock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	locks := make(map[chainhash.Hash]Islock, len(s.islocks))
	for txid, lock := range s.islocks {
		locks[txid] = lock
	}
	return locks, nil
}

// Batch calls f with s.  Writes are visible as they are made and are not
// rolled back when f fails.
func (s *MemStore) Batch(f func(Store) error) error {
	return f(s)
}

func (s *MemStore) StoredHeight() (int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height, nil
}

func (s *MemStore) PutStoredHeight(height int32) error {
	s.mu.Lock()
	s.height = height
	s.mu.Unlock()
	return nil
}

// sortedHashes returns the keys of m in byte order.
func sortedHashes[V any](m map[chainhash.Hash]V) []chainhash.Hash {
	hashes := make([]chainhash.Hash, 0, len(m))
	for hash := range m {
		hashes = append(hashes, hash)
	}
	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i][:], hashes[j][:]) < 0
	})
	return hashes
}

func sortOutPoints(ops []wire.OutPoint) {
	sort.Slice(ops, func(i, j int) bool {
		c := bytes.Compare(ops[i].Hash[:], ops[j].Hash[:])
		if c != 0 {
			return c < 0
		}
		return ops[i].Index < ops[j].Index
	})
}
