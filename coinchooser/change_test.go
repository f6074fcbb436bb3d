// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinchooser

import (
	"testing"

	"github.com/axerunners/axewallet/txcodec"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"
)

func constantFee(fee int64) ChangeFee {
	return func(int) int64 { return fee }
}

func TestChangeAmounts(t *testing.T) {
	t.Parallel()

	key := newTestKey(t, 1)
	dest := newTestKey(t, 2)
	newTx := func(inputValue int64) *txcodec.Tx {
		in := txcodec.NewTxIn(testOutPoint(1, 0), key.pubKey, key.addr,
			inputValue)
		out := newTestOutput(t, dest, 1e8)
		return txcodec.NewTx(
			[]*txcodec.TxIn{in}, []*txcodec.TxOut{out}, 0, true,
		)
	}

	testCases := []struct {
		name       string
		inputValue int64
		count      int
		rounding   bool
		want       []int64
	}{
		{
			name:       "exact",
			inputValue: 3e8,
			count:      1,
			want:       []int64{199998766},
		},
		{
			name:       "rounded",
			inputValue: 3e8,
			count:      1,
			rounding:   true,
			want:       []int64{199998700},
		},
		{
			name:       "small change is not split",
			inputValue: 1.1e8,
			count:      3,
			want:       []int64{9998766},
		},
		{
			name:       "fee eats everything",
			inputValue: 1e8 + 1000,
			count:      1,
			want:       []int64{0},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := New(Config{OutputRounding: tc.rounding})
			got, err := c.ChangeAmounts(
				NewPRNG([]byte(tc.name)), newTx(tc.inputValue),
				tc.count, constantFee(1234),
			)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	// Large change is split over the change addresses.
	split := func() []int64 {
		got, err := New(Config{}).ChangeAmounts(
			NewPRNG([]byte("split")), newTx(3e8), 2,
			constantFee(1234),
		)
		require.NoError(t, err)
		return got
	}
	amounts := split()
	require.Len(t, amounts, 2)
	require.Equal(t, int64(199998766), amounts[0]+amounts[1])
	require.Equal(t, amounts, split())
}

func TestChangeOutputsDust(t *testing.T) {
	t.Parallel()

	key := newTestKey(t, 1)
	change := newTestKey(t, 3)
	in := txcodec.NewTxIn(testOutPoint(1, 0), key.pubKey, key.addr, 1e8)
	out := newTestOutput(t, newTestKey(t, 2), 1e8-2000)
	tx := txcodec.NewTx([]*txcodec.TxIn{in}, []*txcodec.TxOut{out}, 0, true)

	c := New(Config{})
	addrs := []btcutil.Address{change.addr}

	// 2000 left, 226 of it for the fee.
	outs, err := c.ChangeOutputs(NewPRNG(nil), tx, addrs, constantFee(226),
		1774)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	require.Equal(t, int64(1774), outs[0].Value)

	outs, err = c.ChangeOutputs(NewPRNG(nil), tx, addrs, constantFee(226),
		1775)
	require.NoError(t, err)
	require.Empty(t, outs)
}

func TestRoundHalfEven(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		v         int64
		precision int
		want      int64
	}{
		{123456, 0, 123456},
		{123456, 2, 123500},
		{125, 1, 120},
		{135, 1, 140},
		{150, 2, 200},
		{250, 2, 200},
		{49, 2, 0},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.want, roundHalfEven(tc.v, tc.precision),
			"round(%d, -%d)", tc.v, tc.precision)
	}

	require.Equal(t, 1, trailingZeros(0))
	require.Equal(t, 3, trailingZeros(5000))
	require.Equal(t, 0, trailingZeros(5001))
}
