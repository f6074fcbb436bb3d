// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"fmt"

	"github.com/axerunners/axewallet/netparams"
	"github.com/axerunners/axewallet/txcodec"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Heights at or below zero mark transactions that are not mined.
const (
	// HeightLocal is the height of transactions only the wallet knows
	// about.
	HeightLocal int32 = -2

	// HeightUnconfParent is the height of mempool transactions spending
	// an unconfirmed output.
	HeightUnconfParent int32 = -1

	// HeightUnconfirmed is the height of mempool transactions.
	HeightUnconfirmed int32 = 0
)

// CoinbaseMaturity is the number of blocks before a coinbase output can be
// spent.
const CoinbaseMaturity = netparams.CoinbaseMaturity

// TxMinedInfo describes where, and how firmly, a transaction is mined.
type TxMinedInfo struct {
	Height int32

	// Conf is derived from the local height and never stored.
	Conf int32

	Timestamp  int64
	TxPos      uint32
	HeaderHash chainhash.Hash
}

// TxiEntry is a debit: a watched output spent by a transaction.
type TxiEntry struct {
	OutPoint wire.OutPoint
	Value    int64
}

// TxoEntry is a credit: an output of a transaction paying a watched
// address.
type TxoEntry struct {
	Index    uint32
	Value    int64
	Coinbase bool
}

// HistoryEntry is one (txid, height) pair of the history an indexing server
// reported for an address.
type HistoryEntry struct {
	TxID   chainhash.Hash
	Height int32
}

// Islock records when, and at which local height, an instant send lock was
// seen for a transaction.
type Islock struct {
	Height    int32
	Timestamp int64
}

// AddrTx is a transaction in the local history of an address.
type AddrTx struct {
	TxID   chainhash.Hash
	Height int32

	// Islock is the lock timestamp, or 0 when the transaction is not
	// instantly locked.
	Islock int64
}

// Utxo is an unspent output paying a watched address.
type Utxo struct {
	OutPoint wire.OutPoint
	Address  string
	Value    int64
	Height   int32
	Coinbase bool
	Islock   int64
}

// String returns the outpoint and value of the output.
func (u *Utxo) String() string {
	return fmt.Sprintf("%v (%v)", u.OutPoint, btcutil.Amount(u.Value))
}

// ReceivedOutput is an output ever paid to an address, spent or not.
type ReceivedOutput struct {
	Height   int32
	Value    int64
	Coinbase bool
	Islock   int64
}

// SpentOutput describes the transaction that spent a received output.
type SpentOutput struct {
	Height int32
	Islock int64
}

// Balance splits an amount by how settled its outputs are.
type Balance struct {
	Confirmed   btcutil.Amount
	Unconfirmed btcutil.Amount
	Immature    btcutil.Amount
}

// Total returns the sum of all tiers.
func (b Balance) Total() btcutil.Amount {
	return b.Confirmed + b.Unconfirmed + b.Immature
}

// Add returns the tier-wise sum of b and o.
func (b Balance) Add(o Balance) Balance {
	return Balance{
		Confirmed:   b.Confirmed + o.Confirmed,
		Unconfirmed: b.Unconfirmed + o.Unconfirmed,
		Immature:    b.Immature + o.Immature,
	}
}

// BalanceOptions filters the outputs a balance is computed over.  Balances
// computed without any filter are cached.
type BalanceOptions struct {
	ExcludedAddresses map[string]struct{}
	ExcludedCoins     map[wire.OutPoint]struct{}
}

func (o *BalanceOptions) empty() bool {
	return o == nil || (len(o.ExcludedAddresses) == 0 &&
		len(o.ExcludedCoins) == 0)
}

// UtxoOptions filters the result of GetUtxos.
type UtxoOptions struct {
	// ConfirmedOnly skips outputs that are not mined.  With
	// ConsiderIslocks set instantly locked outputs are kept too.
	ConfirmedOnly   bool
	ConsiderIslocks bool

	// NonLocalOnly skips outputs of transactions the network has not
	// seen.
	NonLocalOnly bool

	// MatureOnly skips coinbase outputs that cannot be spent yet.
	MatureOnly bool

	ExcludedAddresses map[string]struct{}
}

// HistoryItem is one row of a wallet history.  Histories are listed oldest
// first.
type HistoryItem struct {
	TxID   chainhash.Hash
	TxType txcodec.TxType
	Mined  TxMinedInfo

	// Delta is the effect of the transaction on the queried addresses.
	// It is absent when an input value is unknown.
	Delta fn.Option[int64]

	// Balance is the balance of the queried addresses after the
	// transaction.  It is absent once any older delta is unknown.
	Balance fn.Option[int64]

	Islock int64
}

// WalletDelta is the effect of a transaction on the whole wallet.
type WalletDelta struct {
	// Relevant is set when an input or output belongs to the wallet.
	Relevant bool

	// Mine is set when at least one input spends a wallet output.
	Mine bool

	Value int64

	// Fee is only known when every input is the wallet's own.
	Fee fn.Option[int64]
}

func setOf(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}
