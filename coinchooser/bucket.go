// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinchooser

import (
	"sort"

	"github.com/axerunners/axewallet/txcodec"
)

// Coin is a spendable output offered to the chooser.
type Coin struct {
	// Input spends the output.  Its Value and Address must be set.
	Input *txcodec.TxIn

	// Height is the height of the funding transaction, with the ledger's
	// conventions for unconfirmed and local transactions.
	Height int32
}

// Value returns the value of the coin.
func (c *Coin) Value() int64 {
	return c.Input.Value
}

// Bucket is a group of coins that are spent together.
type Bucket struct {
	Desc string

	// Weight is the estimated weight the coins add once signed.
	Weight int
	Value  int64
	Coins  []*Coin

	// MinHeight is the lowest height of any coin in the bucket.
	MinHeight int32
}

// KeyFunc returns the key coins are grouped by.
type KeyFunc func(c *Coin) string

// Bucketize groups coins by key, keeping the order in which keys first
// appear.
func Bucketize(coins []*Coin, key KeyFunc) ([]*Bucket, error) {
	var buckets []*Bucket
	index := make(map[string]*Bucket)
	for _, c := range coins {
		weight, err := txcodec.EstimatedInputWeight(c.Input)
		if err != nil {
			return nil, err
		}

		k := key(c)
		b, ok := index[k]
		if !ok {
			b = &Bucket{Desc: k, MinHeight: c.Height}
			index[k] = b
			buckets = append(buckets, b)
		}
		b.Weight += weight
		b.Value += c.Value()
		b.Coins = append(b.Coins, c)
		if c.Height < b.MinHeight {
			b.MinHeight = c.Height
		}
	}
	return buckets, nil
}

// SufficientFunc reports whether buckets pay for the transaction.  valueSum
// is the total value of buckets.
type SufficientFunc func(buckets []*Bucket, valueSum int64) bool

// PenaltyFunc scores a set of buckets.  Lower is better.
type PenaltyFunc func(buckets []*Bucket) float64

func sumValues(buckets []*Bucket) int64 {
	var sum int64
	for _, b := range buckets {
		sum += b.Value
	}
	return sum
}

// StripUnneeded returns the fewest of the most valuable buckets that are
// still sufficient.  It panics when all of buckets are not sufficient.
func StripUnneeded(buckets []*Bucket, sufficient SufficientFunc) []*Bucket {
	if sufficient(nil, 0) {
		return nil
	}

	sorted := make([]*Bucket, len(buckets))
	copy(sorted, buckets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value > sorted[j].Value
	})

	var sum int64
	for i, b := range sorted {
		sum += b.Value
		if sufficient(sorted[:i+1], sum) {
			return sorted[:i+1]
		}
	}
	panic("coinchooser: keeping all buckets is still not enough")
}
