// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinchooser

import (
	"math"
	"sort"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// PRNG is a deterministic random number generator.  Coins are chosen
// "randomly", but the same set of coins always gives the same choice, so
// spending twice from one UTXO set reveals nothing new to a malicious or
// stale server.
type PRNG struct {
	sha  []byte
	pool []byte
}

// NewPRNG returns a generator seeded with seed.
func NewPRNG(seed []byte) *PRNG {
	return &PRNG{sha: chainhash.HashB(seed)}
}

// NewPRNGFromCoins seeds a generator with the sorted outpoints of coins.
// The order of coins does not matter.
func NewPRNGFromCoins(coins []*Coin) *PRNG {
	ids := make([]string, 0, len(coins))
	for _, c := range coins {
		op := c.Input.PreviousOutPoint
		ids = append(ids, op.Hash.String()+strconv.FormatUint(
			uint64(op.Index), 10,
		))
	}
	sort.Strings(ids)

	var seed []byte
	for _, id := range ids {
		seed = append(seed, id...)
	}
	return NewPRNG(seed)
}

// Bytes returns the next n bytes of the stream.
func (p *PRNG) Bytes(n int) []byte {
	for len(p.pool) < n {
		p.pool = append(p.pool, p.sha...)
		p.sha = chainhash.HashB(p.sha)
	}
	b := p.pool[:n:n]
	p.pool = p.pool[n:]
	return b
}

// RandInt returns an integer in [start, end).  It returns start when the
// range is empty.
func (p *PRNG) RandInt(start, end int64) int64 {
	if end <= start {
		return start
	}

	n := uint64(end - start)
	var r, m uint64 = 0, 1
	for m < n && m <= math.MaxUint64>>8 {
		r = uint64(p.Bytes(1)[0]) + r<<8
		m <<= 8
	}
	return start + int64(r%n)
}

// Shuffle permutes n elements with swap, like rand.Shuffle.
func (p *PRNG) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := int(p.RandInt(0, int64(i+1)))
		swap(i, j)
	}
}

// Choice returns a random element of s, which must not be empty.
func Choice[T any](p *PRNG, s []T) T {
	return s[p.RandInt(0, int64(len(s)))]
}
