// Copyright (c) 2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/axerunners/axewallet/txcodec"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/walletdb"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/tlv"
)

// Naming
//
// The following variables are commonly used in this file and given
// reserved names:
//
//   ns: The namespace bucket for this package
//   b:  The primary bucket being operated on
//   k:  A single bucket key
//   v:  A single bucket value
//
// Functions use the naming scheme `Op[Raw]Type[Field]` like the rest of the
// wallet stores.  Nested buckets keyed by transaction hash hold the per
// transaction debit, credit and spender records.

// Big endian is the preferred byte order, due to cursor scans over integer
// keys iterating in order.
var byteOrder = binary.BigEndian

// This package makes assumptions that the width of a chainhash.Hash is always
// 32 bytes.
var _ [32]byte = chainhash.Hash{}

// Bucket names
var (
	namespaceKey = []byte("ledger")

	bucketTxs      = []byte("t")
	bucketSpent    = []byte("s")
	bucketTxi      = []byte("i")
	bucketTxo      = []byte("o")
	bucketHistory  = []byte("h")
	bucketVerified = []byte("v")
	bucketFees     = []byte("f")
	bucketIslocks  = []byte("l")
)

// Root (namespace) bucket keys
var (
	rootVersion      = []byte("vers")
	rootStoredHeight = []byte("height")
)

// LatestVersion is the most recent store version.
const LatestVersion = 1

// The history value of an address is prefixed by a version byte so that an
// address with an empty history still has a non-empty value.
const historyVersion = 0

// TLV record types of the verified transaction values.
const (
	typeMinedHeight     tlv.Type = 1
	typeMinedTimestamp  tlv.Type = 2
	typeMinedTxPos      tlv.Type = 3
	typeMinedHeaderHash tlv.Type = 4
)

// BoltStore is a Store persisted in a walletdb namespace.  Every call runs in
// its own database transaction, except within Batch.
type BoltStore struct {
	db     walletdb.DB
	params *chaincfg.Params

	// tx is the open transaction of the store handed to a Batch
	// callback.
	tx walletdb.ReadWriteTx
}

var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens the ledger namespace of db, creating it when missing.
// params decodes the addresses of stored transactions.
func OpenBoltStore(db walletdb.DB, params *chaincfg.Params) (*BoltStore,
	error) {

	err := walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		ns := tx.ReadWriteBucket(namespaceKey)
		if ns != nil {
			v := ns.Get(rootVersion)
			if len(v) != 4 {
				return storeError(ErrData, "missing version", nil)
			}
			if version := byteOrder.Uint32(v); version > LatestVersion {
				str := fmt.Sprintf("unknown ledger version %d",
					version)
				return storeError(ErrData, str, nil)
			}
			return nil
		}

		ns, err := tx.CreateTopLevelBucket(namespaceKey)
		if err != nil {
			str := "failed to create namespace"
			return storeError(ErrDatabase, str, err)
		}
		return createBuckets(ns)
	})
	if err != nil {
		return nil, err
	}

	return &BoltStore{db: db, params: params}, nil
}

func createBuckets(ns walletdb.ReadWriteBucket) error {
	buckets := [][]byte{
		bucketTxs, bucketSpent, bucketTxi, bucketTxo, bucketHistory,
		bucketVerified, bucketFees, bucketIslocks,
	}
	for _, name := range buckets {
		if _, err := ns.CreateBucketIfNotExists(name); err != nil {
			str := fmt.Sprintf("failed to create bucket %s", name)
			return storeError(ErrDatabase, str, err)
		}
	}

	v := make([]byte, 4)
	byteOrder.PutUint32(v, LatestVersion)
	if err := ns.Put(rootVersion, v); err != nil {
		return storeError(ErrDatabase, "failed to put version", err)
	}
	return nil
}

// Batch calls f with a store whose calls all run in a single database
// transaction.  The transaction commits when f returns nil.  Batches do not
// nest: f may call Batch on the store it was given, which calls f directly.
func (s *BoltStore) Batch(f func(Store) error) error {
	if s.tx != nil {
		return f(s)
	}
	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		return f(&BoltStore{db: s.db, params: s.params, tx: tx})
	})
}

func (s *BoltStore) viewTx(f func(tx walletdb.ReadTx) error) error {
	if s.tx != nil {
		return f(s.tx)
	}
	return walletdb.View(s.db, f)
}

func (s *BoltStore) updateTx(f func(tx walletdb.ReadWriteTx) error) error {
	if s.tx != nil {
		return f(s.tx)
	}
	return walletdb.Update(s.db, f)
}

func (s *BoltStore) view(b []byte, f func(b walletdb.ReadBucket) error) error {
	return s.viewTx(func(tx walletdb.ReadTx) error {
		return f(tx.ReadBucket(namespaceKey).NestedReadBucket(b))
	})
}

func (s *BoltStore) update(b []byte,
	f func(b walletdb.ReadWriteBucket) error) error {

	return s.updateTx(func(tx walletdb.ReadWriteTx) error {
		ns := tx.ReadWriteBucket(namespaceKey)
		return f(ns.NestedReadWriteBucket(b))
	})
}

// canonicalOutPoint serializes an outpoint as the 32 byte hash followed by
// the 4 byte index.
func canonicalOutPoint(op *wire.OutPoint) []byte {
	k := make([]byte, 36)
	copy(k, op.Hash[:])
	byteOrder.PutUint32(k[32:36], op.Index)
	return k
}

func readCanonicalOutPoint(k []byte, op *wire.OutPoint) error {
	if len(k) < 36 {
		return storeError(ErrData, "short canonical outpoint", nil)
	}
	copy(op.Hash[:], k)
	op.Index = byteOrder.Uint32(k[32:36])
	return nil
}

// readHash copies a 32 byte key into a hash.
func readHash(k []byte) (chainhash.Hash, error) {
	var hash chainhash.Hash
	if len(k) != chainhash.HashSize {
		str := fmt.Sprintf("bad hash length %d", len(k))
		return hash, storeError(ErrData, str, nil)
	}
	copy(hash[:], k)
	return hash, nil
}

// addressKey prefixes a key suffix with the length prefixed address.
func addressKey(addr string, suffix []byte) []byte {
	k := make([]byte, 0, 1+len(addr)+len(suffix))
	k = append(k, byte(len(addr)))
	k = append(k, addr...)
	return append(k, suffix...)
}

func extractAddressKey(k []byte) (string, []byte, error) {
	if len(k) == 0 || len(k) < 1+int(k[0]) {
		return "", nil, storeError(ErrData, "short address key", nil)
	}
	n := 1 + int(k[0])
	return string(k[1:n]), k[n:], nil
}

// bucketHashes returns the keys of the nested buckets, or of the values,
// of b.
func bucketHashes(b walletdb.ReadBucket) ([]chainhash.Hash, error) {
	var hashes []chainhash.Hash
	err := b.ForEach(func(k, _ []byte) error {
		hash, err := readHash(k)
		if err != nil {
			return err
		}
		hashes = append(hashes, hash)
		return nil
	})
	return hashes, err
}

func (s *BoltStore) Tx(txid chainhash.Hash) (*txcodec.Tx, error) {
	var tx *txcodec.Tx
	err := s.view(bucketTxs, func(b walletdb.ReadBucket) error {
		v := b.Get(txid[:])
		if v == nil {
			return nil
		}
		var err error
		tx, err = txcodec.Parse(v, s.params, false)
		if err != nil {
			str := fmt.Sprintf("failed to decode tx %v", txid)
			return storeError(ErrData, str, err)
		}
		return nil
	})
	return tx, err
}

func (s *BoltStore) PutTx(txid chainhash.Hash, tx *txcodec.Tx) error {
	v, err := tx.Serialize()
	if err != nil {
		return err
	}
	return s.update(bucketTxs, func(b walletdb.ReadWriteBucket) error {
		if err := b.Put(txid[:], v); err != nil {
			return storeError(ErrDatabase, "failed to put tx", err)
		}
		return nil
	})
}

func (s *BoltStore) RemoveTx(txid chainhash.Hash) (*txcodec.Tx, error) {
	tx, err := s.Tx(txid)
	if err != nil || tx == nil {
		return tx, err
	}
	err = s.update(bucketTxs, func(b walletdb.ReadWriteBucket) error {
		if err := b.Delete(txid[:]); err != nil {
			return storeError(ErrDatabase, "failed to delete tx", err)
		}
		return nil
	})
	return tx, err
}

func (s *BoltStore) TxIDs() ([]chainhash.Hash, error) {
	var hashes []chainhash.Hash
	err := s.view(bucketTxs, func(b walletdb.ReadBucket) error {
		var err error
		hashes, err = bucketHashes(b)
		return err
	})
	return hashes, err
}

func (s *BoltStore) SpentBy(op wire.OutPoint) (chainhash.Hash, bool, error) {
	var (
		spender chainhash.Hash
		found   bool
	)
	err := s.view(bucketSpent, func(b walletdb.ReadBucket) error {
		v := b.Get(canonicalOutPoint(&op))
		if v == nil {
			return nil
		}
		var err error
		spender, err = readHash(v)
		found = err == nil
		return err
	})
	return spender, found, err
}

// Spent outpoint keys are canonical outpoints, so the spenders of one
// transaction are a contiguous run of keys.
func (s *BoltStore) Spenders(txid chainhash.Hash) (map[uint32]chainhash.Hash,
	error) {

	spenders := make(map[uint32]chainhash.Hash)
	err := s.view(bucketSpent, func(b walletdb.ReadBucket) error {
		c := b.ReadCursor()
		for k, v := c.Seek(txid[:]); k != nil &&
			bytes.HasPrefix(k, txid[:]); k, v = c.Next() {

			var op wire.OutPoint
			if err := readCanonicalOutPoint(k, &op); err != nil {
				return err
			}
			spender, err := readHash(v)
			if err != nil {
				return err
			}
			spenders[op.Index] = spender
		}
		return nil
	})
	return spenders, err
}

func (s *BoltStore) PutSpent(op wire.OutPoint, spender chainhash.Hash) error {
	return s.update(bucketSpent, func(b walletdb.ReadWriteBucket) error {
		err := b.Put(canonicalOutPoint(&op), spender[:])
		if err != nil {
			str := "failed to put spent outpoint"
			return storeError(ErrDatabase, str, err)
		}
		return nil
	})
}

func (s *BoltStore) RemoveSpent(op wire.OutPoint) error {
	return s.update(bucketSpent, func(b walletdb.ReadWriteBucket) error {
		if err := b.Delete(canonicalOutPoint(&op)); err != nil {
			str := "failed to delete spent outpoint"
			return storeError(ErrDatabase, str, err)
		}
		return nil
	})
}

func (s *BoltStore) SpentOutPoints() ([]wire.OutPoint, error) {
	var ops []wire.OutPoint
	err := s.view(bucketSpent, func(b walletdb.ReadBucket) error {
		return b.ForEach(func(k, _ []byte) error {
			var op wire.OutPoint
			if err := readCanonicalOutPoint(k, &op); err != nil {
				return err
			}
			ops = append(ops, op)
			return nil
		})
	})
	return ops, err
}

// The debit records of a transaction live in a nested bucket keyed by its
// hash.  Keys are the length prefixed address followed by the canonical
// spent outpoint and values are the 8 byte spent amount.

func (s *BoltStore) AddTxi(txid chainhash.Hash, addr string, e TxiEntry) error {
	return s.update(bucketTxi, func(b walletdb.ReadWriteBucket) error {
		nb, err := b.CreateBucketIfNotExists(txid[:])
		if err != nil {
			return storeError(ErrDatabase, "failed to create txi", err)
		}
		v := make([]byte, 8)
		byteOrder.PutUint64(v, uint64(e.Value))
		err = nb.Put(addressKey(addr, canonicalOutPoint(&e.OutPoint)), v)
		if err != nil {
			return storeError(ErrDatabase, "failed to put txi", err)
		}
		return nil
	})
}

// Credit records are keyed like debit records, with the 4 byte output index
// in place of the outpoint.  Values are the 8 byte amount and a coinbase
// flag byte.

func (s *BoltStore) AddTxo(txid chainhash.Hash, addr string, e TxoEntry) error {
	return s.update(bucketTxo, func(b walletdb.ReadWriteBucket) error {
		nb, err := b.CreateBucketIfNotExists(txid[:])
		if err != nil {
			return storeError(ErrDatabase, "failed to create txo", err)
		}
		idx := make([]byte, 4)
		byteOrder.PutUint32(idx, e.Index)
		v := make([]byte, 9)
		byteOrder.PutUint64(v, uint64(e.Value))
		if e.Coinbase {
			v[8] = 1
		}
		if err := nb.Put(addressKey(addr, idx), v); err != nil {
			return storeError(ErrDatabase, "failed to put txo", err)
		}
		return nil
	})
}

func (s *BoltStore) Txi(txid chainhash.Hash) (map[string][]TxiEntry, error) {
	m := make(map[string][]TxiEntry)
	err := s.view(bucketTxi, func(b walletdb.ReadBucket) error {
		nb := b.NestedReadBucket(txid[:])
		if nb == nil {
			return nil
		}
		return nb.ForEach(func(k, v []byte) error {
			addr, rest, err := extractAddressKey(k)
			if err != nil {
				return err
			}
			var e TxiEntry
			if err := readCanonicalOutPoint(rest, &e.OutPoint); err != nil {
				return err
			}
			if len(v) != 8 {
				return storeError(ErrData, "bad txi value", nil)
			}
			e.Value = int64(byteOrder.Uint64(v))
			m[addr] = append(m[addr], e)
			return nil
		})
	})
	return m, err
}

func (s *BoltStore) Txo(txid chainhash.Hash) (map[string][]TxoEntry, error) {
	m := make(map[string][]TxoEntry)
	err := s.view(bucketTxo, func(b walletdb.ReadBucket) error {
		nb := b.NestedReadBucket(txid[:])
		if nb == nil {
			return nil
		}
		return nb.ForEach(func(k, v []byte) error {
			addr, rest, err := extractAddressKey(k)
			if err != nil {
				return err
			}
			if len(rest) != 4 || len(v) != 9 {
				return storeError(ErrData, "bad txo record", nil)
			}
			m[addr] = append(m[addr], TxoEntry{
				Index:    byteOrder.Uint32(rest),
				Value:    int64(byteOrder.Uint64(v)),
				Coinbase: v[8] == 1,
			})
			return nil
		})
	})
	return m, err
}

func deleteNested(b walletdb.ReadWriteBucket, txid chainhash.Hash) error {
	if b.NestedReadWriteBucket(txid[:]) == nil {
		return nil
	}
	if err := b.DeleteNestedBucket(txid[:]); err != nil {
		str := fmt.Sprintf("failed to delete records of %v", txid)
		return storeError(ErrDatabase, str, err)
	}
	return nil
}

func (s *BoltStore) RemoveTxi(txid chainhash.Hash) error {
	return s.update(bucketTxi, func(b walletdb.ReadWriteBucket) error {
		return deleteNested(b, txid)
	})
}

func (s *BoltStore) RemoveTxo(txid chainhash.Hash) error {
	return s.update(bucketTxo, func(b walletdb.ReadWriteBucket) error {
		return deleteNested(b, txid)
	})
}

func (s *BoltStore) TxiIDs() ([]chainhash.Hash, error) {
	var hashes []chainhash.Hash
	err := s.view(bucketTxi, func(b walletdb.ReadBucket) error {
		var err error
		hashes, err = bucketHashes(b)
		return err
	})
	return hashes, err
}

func (s *BoltStore) TxoIDs() ([]chainhash.Hash, error) {
	var hashes []chainhash.Hash
	err := s.view(bucketTxo, func(b walletdb.ReadBucket) error {
		var err error
		hashes, err = bucketHashes(b)
		return err
	})
	return hashes, err
}

// The history value of an address is the version byte followed by 36 byte
// records of the transaction hash and its 4 byte height.

func valueAddrHistory(hist []HistoryEntry) []byte {
	v := make([]byte, 1, 1+36*len(hist))
	v[0] = historyVersion
	for _, e := range hist {
		v = append(v, e.TxID[:]...)
		v = byteOrder.AppendUint32(v, uint32(e.Height))
	}
	return v
}

func readAddrHistory(v []byte) ([]HistoryEntry, error) {
	if len(v) == 0 || v[0] != historyVersion || (len(v)-1)%36 != 0 {
		return nil, storeError(ErrData, "bad address history", nil)
	}
	hist := make([]HistoryEntry, 0, (len(v)-1)/36)
	for r := v[1:]; len(r) > 0; r = r[36:] {
		var e HistoryEntry
		copy(e.TxID[:], r[:32])
		e.Height = int32(byteOrder.Uint32(r[32:36]))
		hist = append(hist, e)
	}
	return hist, nil
}

func (s *BoltStore) Addresses() ([]string, error) {
	var addrs []string
	err := s.view(bucketHistory, func(b walletdb.ReadBucket) error {
		return b.ForEach(func(k, _ []byte) error {
			addrs = append(addrs, string(k))
			return nil
		})
	})
	sort.Strings(addrs)
	return addrs, err
}

func (s *BoltStore) HasAddress(addr string) (bool, error) {
	var ok bool
	err := s.view(bucketHistory, func(b walletdb.ReadBucket) error {
		ok = b.Get([]byte(addr)) != nil
		return nil
	})
	return ok, err
}

func (s *BoltStore) AddrHistory(addr string) ([]HistoryEntry, error) {
	var hist []HistoryEntry
	err := s.view(bucketHistory, func(b walletdb.ReadBucket) error {
		v := b.Get([]byte(addr))
		if v == nil {
			return nil
		}
		var err error
		hist, err = readAddrHistory(v)
		return err
	})
	return hist, err
}

func (s *BoltStore) PutAddrHistory(addr string, hist []HistoryEntry) error {
	return s.update(bucketHistory, func(b walletdb.ReadWriteBucket) error {
		err := b.Put([]byte(addr), valueAddrHistory(hist))
		if err != nil {
			str := fmt.Sprintf("failed to put history of %s", addr)
			return storeError(ErrDatabase, str, err)
		}
		return nil
	})
}

func (s *BoltStore) RemoveAddrHistory(addr string) error {
	return s.update(bucketHistory, func(b walletdb.ReadWriteBucket) error {
		if err := b.Delete([]byte(addr)); err != nil {
			str := fmt.Sprintf("failed to delete history of %s", addr)
			return storeError(ErrDatabase, str, err)
		}
		return nil
	})
}

func (s *BoltStore) ClearHistory() error {
	return s.updateTx(func(tx walletdb.ReadWriteTx) error {
		ns := tx.ReadWriteBucket(namespaceKey)
		buckets := [][]byte{
			bucketTxs, bucketSpent, bucketTxi, bucketTxo,
			bucketHistory, bucketVerified, bucketFees,
		}
		for _, name := range buckets {
			if err := ns.DeleteNestedBucket(name); err != nil {
				str := fmt.Sprintf("failed to delete bucket %s",
					name)
				return storeError(ErrDatabase, str, err)
			}
		}
		return createBuckets(ns)
	})
}

// Verified transactions are stored as a TLV stream so that fields can be
// added without a migration.

func valueTxMinedInfo(info *TxMinedInfo) ([]byte, error) {
	var (
		height    = uint32(info.Height)
		timestamp = uint64(info.Timestamp)
		txPos     = info.TxPos
		hash      = [32]byte(info.HeaderHash)
	)
	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeMinedHeight, &height),
		tlv.MakePrimitiveRecord(typeMinedTimestamp, &timestamp),
		tlv.MakePrimitiveRecord(typeMinedTxPos, &txPos),
		tlv.MakePrimitiveRecord(typeMinedHeaderHash, &hash),
	)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := stream.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readTxMinedInfo(v []byte) (*TxMinedInfo, error) {
	var (
		height    uint32
		timestamp uint64
		txPos     uint32
		hash      [32]byte
	)
	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeMinedHeight, &height),
		tlv.MakePrimitiveRecord(typeMinedTimestamp, &timestamp),
		tlv.MakePrimitiveRecord(typeMinedTxPos, &txPos),
		tlv.MakePrimitiveRecord(typeMinedHeaderHash, &hash),
	)
	if err != nil {
		return nil, err
	}
	if err := stream.Decode(bytes.NewReader(v)); err != nil {
		return nil, storeError(ErrData, "bad verified tx record", err)
	}

	return &TxMinedInfo{
		Height:     int32(height),
		Timestamp:  int64(timestamp),
		TxPos:      txPos,
		HeaderHash: chainhash.Hash(hash),
	}, nil
}

func (s *BoltStore) VerifiedTx(txid chainhash.Hash) (*TxMinedInfo, error) {
	var info *TxMinedInfo
	err := s.view(bucketVerified, func(b walletdb.ReadBucket) error {
		v := b.Get(txid[:])
		if v == nil {
			return nil
		}
		var err error
		info, err = readTxMinedInfo(v)
		return err
	})
	return info, err
}

func (s *BoltStore) PutVerifiedTx(txid chainhash.Hash, info *TxMinedInfo) error {
	v, err := valueTxMinedInfo(info)
	if err != nil {
		return err
	}
	return s.update(bucketVerified, func(b walletdb.ReadWriteBucket) error {
		if err := b.Put(txid[:], v); err != nil {
			str := "failed to put verified tx"
			return storeError(ErrDatabase, str, err)
		}
		return nil
	})
}

func (s *BoltStore) RemoveVerifiedTx(txid chainhash.Hash) error {
	return s.update(bucketVerified, func(b walletdb.ReadWriteBucket) error {
		if err := b.Delete(txid[:]); err != nil {
			str := "failed to delete verified tx"
			return storeError(ErrDatabase, str, err)
		}
		return nil
	})
}

func (s *BoltStore) VerifiedTxIDs() ([]chainhash.Hash, error) {
	var hashes []chainhash.Hash
	err := s.view(bucketVerified, func(b walletdb.ReadBucket) error {
		var err error
		hashes, err = bucketHashes(b)
		return err
	})
	return hashes, err
}

func (s *BoltStore) TxFee(txid chainhash.Hash) (fn.Option[int64], error) {
	fee := fn.None[int64]()
	err := s.view(bucketFees, func(b walletdb.ReadBucket) error {
		v := b.Get(txid[:])
		if v == nil {
			return nil
		}
		if len(v) != 8 {
			return storeError(ErrData, "bad fee value", nil)
		}
		fee = fn.Some(int64(byteOrder.Uint64(v)))
		return nil
	})
	return fee, err
}

func (s *BoltStore) PutTxFees(fees map[chainhash.Hash]int64) error {
	return s.update(bucketFees, func(b walletdb.ReadWriteBucket) error {
		for txid, fee := range fees {
			v := make([]byte, 8)
			byteOrder.PutUint64(v, uint64(fee))
			if err := b.Put(txid[:], v); err != nil {
				str := "failed to put tx fee"
				return storeError(ErrDatabase, str, err)
			}
		}
		return nil
	})
}

// Islock values are the 4 byte local height followed by the 8 byte unix
// timestamp of the lock.

func readIslock(v []byte) (Islock, error) {
	if len(v) != 12 {
		return Islock{}, storeError(ErrData, "bad islock value", nil)
	}
	return Islock{
		Height:    int32(byteOrder.Uint32(v[:4])),
		Timestamp: int64(byteOrder.Uint64(v[4:])),
	}, nil
}

func (s *BoltStore) Islock(txid chainhash.Hash) (*Islock, error) {
	var lock *Islock
	err := s.view(bucketIslocks, func(b walletdb.ReadBucket) error {
		v := b.Get(txid[:])
		if v == nil {
			return nil
		}
		l, err := readIslock(v)
		lock = &l
		return err
	})
	return lock, err
}

func (s *BoltStore) PutIslock(txid chainhash.Hash, lock Islock) error {
	v := make([]byte, 12)
	byteOrder.PutUint32(v[:4], uint32(lock.Height))
	byteOrder.PutUint64(v[4:], uint64(lock.Timestamp))
	return s.update(bucketIslocks, func(b walletdb.ReadWriteBucket) error {
		if err := b.Put(txid[:], v); err != nil {
			return storeError(ErrDatabase, "failed to put islock", err)
		}
		return nil
	})
}

func (s *BoltStore) RemoveIslock(txid chainhash.Hash) error {
	return s.update(bucketIslocks, func(b walletdb.ReadWriteBucket) error {
		if err := b.Delete(txid[:]); err != nil {
			str := "failed to delete islock"
			return storeError(ErrDatabase, str, err)
		}
		return nil
	})
}

func (s *BoltStore) Islocks() (map[chainhash.Hash]Islock, error) {
	locks := make(map[chainhash.Hash]Islock)
	err := s.view(bucketIslocks, func(b walletdb.ReadBucket) error {
		return b.ForEach(func(k, v []byte) error {
			txid, err := readHash(k)
			if err != nil {
				return err
			}
			locks[txid], err = readIslock(v)
			return err
		})
	})
	return locks, err
}

func (s *BoltStore) StoredHeight() (int32, error) {
	var height int32
	err := s.viewTx(func(tx walletdb.ReadTx) error {
		v := tx.ReadBucket(namespaceKey).Get(rootStoredHeight)
		if v == nil {
			return nil
		}
		if len(v) != 4 {
			return storeError(ErrData, "bad stored height", nil)
		}
		height = int32(byteOrder.Uint32(v))
		return nil
	})
	return height, err
}

func (s *BoltStore) PutStoredHeight(height int32) error {
	return s.updateTx(func(tx walletdb.ReadWriteTx) error {
		v := make([]byte, 4)
		byteOrder.PutUint32(v, uint32(height))
		ns := tx.ReadWriteBucket(namespaceKey)
		if err := ns.Put(rootStoredHeight, v); err != nil {
			str := "failed to put stored height"
			return storeError(ErrDatabase, str, err)
		}
		return nil
	})
}
