// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/axerunners/axewallet/coinchooser"
	"github.com/axerunners/axewallet/ledger"
	"github.com/axerunners/axewallet/txcodec"
	"github.com/btcsuite/btcd/btcutil"
)

// staleTipAge is how old the local tip may be before new transactions stop
// committing to its height in their lock time.
const staleTipAge = 8 * time.Hour

// ErrMultipleMax is returned when more than one output asks for the maximum
// amount.
var ErrMultipleMax = errors.New("more than one output set to the " +
	"maximum amount")

// SpendableCoins returns the coins of domain, or of the whole wallet when
// domain is nil, that may be spent now.  Coins of frozen addresses, immature
// coinbase outputs and, when the wallet only spends confirmed coins, unmined
// outputs are left out.
func (w *Wallet) SpendableCoins(domain []string) ([]ledger.Utxo, error) {
	return w.ledger.GetUtxos(nil, domain, &ledger.UtxoOptions{
		ConfirmedOnly:     w.confirmedOnly,
		ConsiderIslocks:   true,
		MatureOnly:        true,
		ExcludedAddresses: w.frozenAddresses(),
	})
}

// coinInput describes u as an input with everything needed to size and sign
// it.  Coins whose key is unknown are spent as address placeholders.
func (w *Wallet) coinInput(u *ledger.Utxo) (*txcodec.TxIn, error) {
	addr, err := btcutil.DecodeAddress(u.Address, w.params.Params)
	if err != nil {
		return nil, err
	}
	if w.keys != nil {
		if pubKey, ok := w.keys.PubKey(addr); ok {
			in := txcodec.NewTxIn(u.OutPoint, pubKey, addr, u.Value)
			return in, nil
		}
	}
	return txcodec.NewAddressTxIn(u.OutPoint, addr, u.Value)
}

// FeeEstimator returns the fee estimator for feePerKb, or for the wallet
// fee rate when feePerKb is zero.
func (w *Wallet) FeeEstimator(feePerKb btcutil.Amount) coinchooser.FeeEstimator {
	if feePerKb == 0 {
		feePerKb = w.feePerKb
	}
	return coinchooser.FeePerKbEstimator(feePerKb)
}

// MakeUnsignedTransaction creates a transaction paying outputs from coins.
// At most one output may carry txcodec.MaxValue; it receives everything the
// coins hold beyond the other outputs and the fee, and every coin is spent.
// Otherwise coins are chosen by the coin chooser and change is sent to
// changeAddr, or to the address of the first input when changeAddr is nil.
func (w *Wallet) MakeUnsignedTransaction(coins []ledger.Utxo,
	outputs []*txcodec.TxOut, feeEstimator coinchooser.FeeEstimator,
	changeAddr btcutil.Address) (*txcodec.Tx, error) {

	if feeEstimator == nil {
		feeEstimator = w.FeeEstimator(0)
	}

	// Outputs are copied so the max output can be filled in.
	outs := make([]*txcodec.TxOut, len(outputs))
	var maxOut *txcodec.TxOut
	for i, o := range outputs {
		out := *o
		outs[i] = &out
		if !out.IsMax() {
			continue
		}
		if maxOut != nil {
			return nil, ErrMultipleMax
		}
		maxOut = &out
	}

	var (
		tx  *txcodec.Tx
		err error
	)
	if maxOut != nil {
		tx, err = w.makeMaxTx(coins, outs, maxOut, feeEstimator)
	} else {
		tx, err = w.makeTx(coins, outs, feeEstimator, changeAddr)
	}
	if err != nil {
		return nil, err
	}

	tx.LockTime = w.lockTime()
	return tx, nil
}

func (w *Wallet) makeTx(coins []ledger.Utxo, outs []*txcodec.TxOut,
	feeEstimator coinchooser.FeeEstimator,
	changeAddr btcutil.Address) (*txcodec.Tx, error) {

	candidates := make([]*coinchooser.Coin, 0, len(coins))
	for i := range coins {
		in, err := w.coinInput(&coins[i])
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, &coinchooser.Coin{
			Input:  in,
			Height: coins[i].Height,
		})
	}

	var changeAddrs []btcutil.Address
	if changeAddr != nil {
		changeAddrs = []btcutil.Address{changeAddr}
	}
	return w.chooser.MakeTx(
		candidates, nil, outs, changeAddrs, feeEstimator,
		w.dustThreshold, nil,
	)
}

// makeMaxTx spends all coins and sets maxOut to what is left after the
// other outputs and the fee.
func (w *Wallet) makeMaxTx(coins []ledger.Utxo, outs []*txcodec.TxOut,
	maxOut *txcodec.TxOut,
	feeEstimator coinchooser.FeeEstimator) (*txcodec.Tx, error) {

	inputs := make([]*txcodec.TxIn, 0, len(coins))
	var sendable int64
	for i := range coins {
		in, err := w.coinInput(&coins[i])
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
		sendable += coins[i].Value
	}

	maxOut.Value = 0
	tx := txcodec.NewTx(inputs, outs, 0, true)
	size, err := tx.EstimatedSize()
	if err != nil {
		return nil, err
	}
	fee := feeEstimator(size)

	amount := sendable - tx.OutputValue() - fee
	if amount < 0 {
		return nil, coinchooser.ErrNotEnoughFunds
	}
	maxOut.Value = amount

	// The max output only now has its value.
	tx.BIP69Sort(false, true)

	log.Infof("Spending %v from %d coins with a fee of %v",
		btcutil.Amount(amount), len(inputs), btcutil.Amount(fee))
	return tx, nil
}

// lockTime returns the local height, or zero when there is no chain or its
// tip is too old to be trusted.
func (w *Wallet) lockTime() uint32 {
	if w.chain == nil {
		return 0
	}
	height := w.chain.LocalHeight()
	if height <= 0 {
		return 0
	}
	tip, err := w.chain.Header(context.Background(), height)
	if err != nil {
		log.Warnf("Unable to read tip header at height %d: %v",
			height, err)
		return 0
	}
	if w.clock.Now().Sub(tip.Timestamp) > staleTipAge {
		return 0
	}
	return uint32(height)
}

// SignTransaction adds every signature the key ring can make to tx.
func (w *Wallet) SignTransaction(tx *txcodec.Tx) error {
	if w.keys == nil {
		return ErrWatchingOnly
	}
	return tx.Sign(w.keys)
}

// CreateTransaction chooses spendable coins of domain to pay outputs and
// signs the result.
func (w *Wallet) CreateTransaction(domain []string, outputs []*txcodec.TxOut,
	feePerKb btcutil.Amount, changeAddr btcutil.Address) (*txcodec.Tx,
	error) {

	if w.keys == nil {
		return nil, ErrWatchingOnly
	}
	coins, err := w.SpendableCoins(domain)
	if err != nil {
		return nil, err
	}
	tx, err := w.MakeUnsignedTransaction(
		coins, outputs, w.FeeEstimator(feePerKb), changeAddr,
	)
	if err != nil {
		return nil, err
	}
	if err := w.SignTransaction(tx); err != nil {
		return nil, err
	}
	return tx, nil
}
