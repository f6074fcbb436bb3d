// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinchooser

import (
	"math"
	"sort"

	"github.com/axerunners/axewallet/txcodec"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txauthor"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
)

// FeeEstimator returns the fee for a transaction of size virtual bytes.
type FeeEstimator func(size int) int64

// FeePerKbEstimator returns an estimator charging feePerKb per kilobyte.
func FeePerKbEstimator(feePerKb btcutil.Amount) FeeEstimator {
	return func(size int) int64 {
		return int64(txrules.FeeForSerializeSize(feePerKb, size))
	}
}

// DustThreshold returns the smallest value of a pay to pubkey hash output
// that mempools relaying at relayFeePerKb do not consider dust.
func DustThreshold(relayFeePerKb btcutil.Amount) int64 {
	v := sort.Search(math.MaxInt32, func(v int) bool {
		return !txrules.IsDustAmount(
			btcutil.Amount(v), txsizes.P2PKHPkScriptSize,
			relayFeePerKb,
		)
	})
	return int64(v)
}

// DefaultDustThreshold is the dust threshold at the default relay fee.
var DefaultDustThreshold = DustThreshold(txrules.DefaultRelayFeePerKb)

// sumOutputs returns the total value paid by outputs.
func sumOutputs(outputs []*txcodec.TxOut) int64 {
	txOuts := make([]*wire.TxOut, 0, len(outputs))
	for _, o := range outputs {
		txOuts = append(txOuts, wire.NewTxOut(o.Value, o.PkScript))
	}
	return int64(txauthor.SumOutputValues(txOuts))
}
