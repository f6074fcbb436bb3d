// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinchooser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/axerunners/axewallet/txcodec"
	"github.com/btcsuite/btcd/btcutil"
)

// minSplitChange is the change below which change is never split.
const minSplitChange = 0.02 * btcutil.SatoshiPerBitcoin

// ChangeFee returns the fee of the transaction with count change outputs.
type ChangeFee func(count int) int64

func trailingZeros(v int64) int {
	s := strconv.FormatInt(v, 10)
	return len(s) - len(strings.TrimRight(s, "0"))
}

func pow10(n int) int64 {
	v := int64(1)
	for ; n > 0; n-- {
		v *= 10
	}
	return v
}

// roundHalfEven rounds v to a multiple of 10^precision, ties to even.
func roundHalfEven(v int64, precision int) int64 {
	if precision <= 0 {
		return v
	}
	unit := pow10(precision)
	q, r := v/unit, v%unit
	if r < 0 {
		q, r = q-1, r+unit
	}
	if 2*r > unit || (2*r == unit && q%2 != 0) {
		q++
	}
	return q * unit
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// ChangeAmounts splits what is left in tx after fee into at most count
// change amounts.  More outputs are used only while each would exceed the
// largest output by a quarter.  The amounts are rounded to a precision
// similar to the existing outputs.
func (c *Chooser) ChangeAmounts(p *PRNG, tx *txcodec.Tx, count int,
	fee ChangeFee) ([]int64, error) {

	if count < 1 {
		return nil, nil
	}

	var maxOut int64
	zeroes := make([]int, 0, len(tx.Outputs))
	for _, o := range tx.Outputs {
		maxOut = max(maxOut, o.Value)
		zeroes = append(zeroes, trailingZeros(o.Value))
	}
	maxChange := math.Max(float64(maxOut)*1.25, minSplitChange)

	var (
		n      int
		change int64
	)
	for n = 1; n <= count; n++ {
		change = max(0, tx.Fee()-fee(n))
		if float64(change/int64(n)) <= maxChange {
			break
		}
	}
	n = min(n, count)

	minZeroes, maxZeroes := 0, 0
	if len(zeroes) > 0 {
		minZeroes, maxZeroes = zeroes[0], zeroes[0]
		for _, z := range zeroes[1:] {
			minZeroes = min(minZeroes, z)
			maxZeroes = max(maxZeroes, z)
		}
	}

	// A single change output is exactly as precise as the most precise
	// output.
	precisions := []int{minZeroes}
	if n > 1 {
		precisions = precisions[:0]
		for z := max(0, minZeroes-1); z <= maxZeroes+1; z++ {
			precisions = append(precisions, z)
		}
	}

	remaining := change
	amounts := make([]int64, 0, n)
	for ; n > 1; n-- {
		average := float64(remaining) / float64(n)
		amount := p.RandInt(int64(average*0.7), int64(average*1.3))
		precision := Choice(p, precisions)
		if amount > 0 {
			digits := int(math.Floor(math.Log10(float64(amount))))
			precision = min(precision, digits)
		}
		amount = roundHalfEven(amount, precision)
		amounts = append(amounts, amount)
		remaining -= amount
	}

	// The last output loses at most 10^maxRound satoshis to the fee.
	maxRound := 0
	if c.outputRounding {
		maxRound = 2
	}
	unit := pow10(min(maxRound, precisions[0]))
	amounts = append(amounts, floorDiv(remaining, unit)*unit)

	var sum int64
	for _, a := range amounts {
		if a < 0 {
			return nil, fmt.Errorf("negative change amount %d", a)
		}
		sum += a
	}
	if sum > change {
		return nil, fmt.Errorf("change amounts %v exceed change %d",
			amounts, change)
	}
	return amounts, nil
}

// ChangeOutputs returns the change outputs for tx.  Amounts below
// dustThreshold are not paid out and go to the fee instead.
func (c *Chooser) ChangeOutputs(p *PRNG, tx *txcodec.Tx,
	changeAddrs []btcutil.Address, fee ChangeFee,
	dustThreshold int64) ([]*txcodec.TxOut, error) {

	amounts, err := c.ChangeAmounts(p, tx, len(changeAddrs), fee)
	if err != nil {
		return nil, err
	}

	var (
		dust   int64
		change []*txcodec.TxOut
	)
	for _, amount := range amounts {
		if amount < dustThreshold {
			dust += amount
			continue
		}
		out, err := txcodec.NewTxOut(changeAddrs[len(change)], amount)
		if err != nil {
			return nil, err
		}
		change = append(change, out)
	}

	log.Debugf("Change: %d outputs", len(change))
	if dust != 0 {
		log.Infof("Not keeping dust %d", dust)
	}
	return change, nil
}
