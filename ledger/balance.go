// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"bytes"
	"sort"

	"github.com/axerunners/axewallet/txcodec"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// GetAddrIO returns every output ever paid to addr, and the outputs of
// addr that were spent along with what spent them.
func (l *Ledger) GetAddrIO(qc *QueryContext, addr string) (
	map[wire.OutPoint]ReceivedOutput, map[wire.OutPoint]SpentOutput,
	error) {

	l.mu.RLock()
	defer l.mu.RUnlock()
	l.txMu.RLock()
	defer l.txMu.RUnlock()

	return l.addrIO(l.queryContext(qc), addr)
}

func (l *Ledger) addrIO(qc *QueryContext, addr string) (
	map[wire.OutPoint]ReceivedOutput, map[wire.OutPoint]SpentOutput,
	error) {

	hist, err := l.addrHistory(qc, addr)
	if err != nil {
		return nil, nil, err
	}

	received := make(map[wire.OutPoint]ReceivedOutput)
	sent := make(map[wire.OutPoint]SpentOutput)
	for _, e := range hist {
		txo, err := l.store.Txo(e.TxID)
		if err != nil {
			return nil, nil, err
		}
		for _, credit := range txo[addr] {
			op := wire.OutPoint{Hash: e.TxID, Index: credit.Index}
			received[op] = ReceivedOutput{
				Height:   e.Height,
				Value:    credit.Value,
				Coinbase: credit.Coinbase,
				Islock:   e.Islock,
			}
		}

		txi, err := l.store.Txi(e.TxID)
		if err != nil {
			return nil, nil, err
		}
		for _, debit := range txi[addr] {
			sent[debit.OutPoint] = SpentOutput{
				Height: e.Height,
				Islock: e.Islock,
			}
		}
	}
	return received, sent, nil
}

// GetAddrUtxo returns the unspent outputs of addr.
func (l *Ledger) GetAddrUtxo(qc *QueryContext, addr string) ([]Utxo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.txMu.RLock()
	defer l.txMu.RUnlock()

	return l.addrUtxo(l.queryContext(qc), addr)
}

func (l *Ledger) addrUtxo(qc *QueryContext, addr string) ([]Utxo, error) {
	received, sent, err := l.addrIO(qc, addr)
	if err != nil {
		return nil, err
	}

	utxos := make([]Utxo, 0, len(received))
	for op, r := range received {
		if _, ok := sent[op]; ok {
			continue
		}
		utxos = append(utxos, Utxo{
			OutPoint: op,
			Address:  addr,
			Value:    r.Value,
			Height:   r.Height,
			Coinbase: r.Coinbase,
			Islock:   r.Islock,
		})
	}
	sortUtxos(utxos)
	return utxos, nil
}

// GetAddrReceived returns the total ever paid to addr.
func (l *Ledger) GetAddrReceived(qc *QueryContext,
	addr string) (btcutil.Amount, error) {

	received, _, err := l.GetAddrIO(qc, addr)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, r := range received {
		total += r.Value
	}
	return btcutil.Amount(total), nil
}

// GetAddrBalance returns the balance of addr.  Outputs of unmatured
// coinbases are immature.  The rest are confirmed when mined or instantly
// locked, and unconfirmed otherwise.  A spent output is taken off the
// confirmed balance once its spender is mined or locked, and off the
// unconfirmed balance before.
func (l *Ledger) GetAddrBalance(qc *QueryContext, addr string,
	opts *BalanceOptions) (Balance, error) {

	l.mu.RLock()
	defer l.mu.RUnlock()
	l.txMu.RLock()
	defer l.txMu.RUnlock()

	return l.addrBalance(l.queryContext(qc), addr, opts)
}

func (l *Ledger) addrBalance(qc *QueryContext, addr string,
	opts *BalanceOptions) (Balance, error) {

	cacheable := opts.empty()
	if cacheable {
		l.cacheMu.Lock()
		b, ok := l.balanceCache[addr]
		l.cacheMu.Unlock()
		if ok {
			return b, nil
		}
	}

	received, sent, err := l.addrIO(qc, addr)
	if err != nil {
		return Balance{}, err
	}

	localHeight := qc.LocalHeight()
	var c, u, x int64
	for op, r := range received {
		if opts != nil {
			if _, ok := opts.ExcludedCoins[op]; ok {
				continue
			}
		}

		switch {
		case r.Coinbase && r.Height+CoinbaseMaturity > localHeight:
			x += r.Value
		case r.Height > 0 || r.Islock != 0:
			c += r.Value
		default:
			u += r.Value
		}

		if s, ok := sent[op]; ok {
			if s.Height > 0 || s.Islock != 0 {
				c -= r.Value
			} else {
				u -= r.Value
			}
		}
	}

	b := Balance{
		Confirmed:   btcutil.Amount(c),
		Unconfirmed: btcutil.Amount(u),
		Immature:    btcutil.Amount(x),
	}
	if cacheable {
		l.cacheMu.Lock()
		l.balanceCache[addr] = b
		l.cacheMu.Unlock()
	}
	return b, nil
}

// GetBalance sums the balances of the addresses in domain, or of every
// watched address when domain is nil.
func (l *Ledger) GetBalance(qc *QueryContext, domain []string,
	opts *BalanceOptions) (Balance, error) {

	l.mu.RLock()
	defer l.mu.RUnlock()
	l.txMu.RLock()
	defer l.txMu.RUnlock()

	return l.balance(l.queryContext(qc), domain, opts)
}

func (l *Ledger) balance(qc *QueryContext, domain []string,
	opts *BalanceOptions) (Balance, error) {

	addrs, err := l.domain(domain)
	if err != nil {
		return Balance{}, err
	}

	var total Balance
	for _, addr := range addrs {
		if opts != nil {
			if _, ok := opts.ExcludedAddresses[addr]; ok {
				continue
			}
		}
		b, err := l.addrBalance(qc, addr, opts)
		if err != nil {
			return Balance{}, err
		}
		total = total.Add(b)
	}
	return total, nil
}

// domain returns the distinct addresses of domain in sorted order, or
// every watched address when domain is nil.
func (l *Ledger) domain(domain []string) ([]string, error) {
	if domain == nil {
		return l.store.Addresses()
	}
	set := setOf(domain)
	addrs := make([]string, 0, len(set))
	for addr := range set {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs, nil
}

// GetUtxos returns the unspent outputs of the addresses in domain, or of
// every watched address when domain is nil, ordered by outpoint.
func (l *Ledger) GetUtxos(qc *QueryContext, domain []string,
	opts *UtxoOptions) ([]Utxo, error) {

	l.mu.RLock()
	defer l.mu.RUnlock()
	l.txMu.RLock()
	defer l.txMu.RUnlock()

	qc = l.queryContext(qc)
	if opts == nil {
		opts = &UtxoOptions{}
	}
	addrs, err := l.domain(domain)
	if err != nil {
		return nil, err
	}

	var coins []Utxo
	for _, addr := range addrs {
		if _, ok := opts.ExcludedAddresses[addr]; ok {
			continue
		}
		utxos, err := l.addrUtxo(qc, addr)
		if err != nil {
			return nil, err
		}
		for _, u := range utxos {
			if opts.ConfirmedOnly && u.Height <= 0 {
				if !opts.ConsiderIslocks || u.Islock == 0 {
					continue
				}
			}
			if opts.NonLocalOnly && u.Height == HeightLocal {
				continue
			}
			if opts.MatureOnly && u.Coinbase &&
				u.Height+CoinbaseMaturity > qc.LocalHeight() {

				continue
			}
			coins = append(coins, u)
		}
	}
	sortUtxos(coins)
	return coins, nil
}

func sortUtxos(utxos []Utxo) {
	sort.Slice(utxos, func(i, j int) bool {
		a, b := &utxos[i].OutPoint, &utxos[j].OutPoint
		if c := bytes.Compare(a.Hash[:], b.Hash[:]); c != 0 {
			return c < 0
		}
		return a.Index < b.Index
	})
}

// GetTxDelta returns the effect of txid on the balance of addr.
func (l *Ledger) GetTxDelta(txid chainhash.Hash, addr string) (int64, error) {
	l.txMu.RLock()
	defer l.txMu.RUnlock()
	return l.txDelta(txid, addr)
}

func (l *Ledger) txDelta(txid chainhash.Hash, addr string) (int64, error) {
	txi, err := l.store.Txi(txid)
	if err != nil {
		return 0, err
	}
	txo, err := l.store.Txo(txid)
	if err != nil {
		return 0, err
	}

	var delta int64
	for _, debit := range txi[addr] {
		delta -= debit.Value
	}
	for _, credit := range txo[addr] {
		delta += credit.Value
	}
	return delta, nil
}

// GetTxValue returns the effect of txid on every watched address.
func (l *Ledger) GetTxValue(txid chainhash.Hash) (int64, error) {
	l.txMu.RLock()
	defer l.txMu.RUnlock()

	txi, err := l.store.Txi(txid)
	if err != nil {
		return 0, err
	}
	txo, err := l.store.Txo(txid)
	if err != nil {
		return 0, err
	}

	var delta int64
	for _, debits := range txi {
		for _, debit := range debits {
			delta -= debit.Value
		}
	}
	for _, credits := range txo {
		for _, credit := range credits {
			delta += credit.Value
		}
	}
	return delta, nil
}

// GetWalletDelta returns the effect of tx on the wallet.  tx need not be
// stored.
func (l *Ledger) GetWalletDelta(tx *txcodec.Tx) (WalletDelta, error) {
	l.txMu.RLock()
	defer l.txMu.RUnlock()
	return l.walletDelta(tx)
}

func (l *Ledger) walletDelta(tx *txcodec.Tx) (WalletDelta, error) {
	var (
		d                   WalletDelta
		pruned, partial     bool
		vIn, vOut, vOutMine int64
	)
	for _, in := range tx.Inputs {
		addr, err := l.txinAddress(in)
		if err != nil {
			return d, err
		}
		mine, err := l.isMine(addr)
		if err != nil {
			return d, err
		}
		if !mine {
			partial = true
			continue
		}
		d.Mine = true
		d.Relevant = true

		value, err := l.prevOutValue(in.PreviousOutPoint, addr)
		if err != nil {
			return d, err
		}
		value.WhenSome(func(v int64) {
			vIn += v
		})
		if value.IsNone() {
			pruned = true
		}
	}
	if !d.Mine {
		partial = false
	}

	for _, out := range tx.Outputs {
		vOut += out.Value
		mine, err := l.isMine(txoutAddress(out))
		if err != nil {
			return d, err
		}
		if mine {
			vOutMine += out.Value
			d.Relevant = true
		}
	}

	switch {
	case pruned && d.Mine:
		d.Value = vOutMine - vOut
	case pruned:
		d.Value = vOutMine
	default:
		d.Value = vOutMine - vIn
		if !partial && d.Mine {
			d.Fee = fn.Some(vIn - vOut)
		}
	}
	return d, nil
}

// prevOutValue returns the value of the output op pays to addr, if known.
func (l *Ledger) prevOutValue(op wire.OutPoint,
	addr string) (fn.Option[int64], error) {

	txo, err := l.store.Txo(op.Hash)
	if err != nil {
		return fn.None[int64](), err
	}
	for _, e := range txo[addr] {
		if e.Index == op.Index {
			return fn.Some(e.Value), nil
		}
	}
	return fn.None[int64](), nil
}

// GetTxFee returns the fee of tx when every input belongs to the wallet,
// and the fee reported by the indexing server otherwise.
func (l *Ledger) GetTxFee(tx *txcodec.Tx) (fn.Option[int64], error) {
	if tx == nil {
		return fn.None[int64](), nil
	}

	l.txMu.RLock()
	d, err := l.walletDelta(tx)
	l.txMu.RUnlock()
	if err != nil {
		return fn.None[int64](), err
	}
	if d.Fee.IsSome() {
		return d.Fee, nil
	}

	txid, err := tx.TxID()
	if err != nil {
		return fn.None[int64](), err
	}
	return l.store.TxFee(txid)
}
