// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package headerchain

import (
	"testing"
	"time"

	"github.com/axerunners/axewallet/netparams"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// TestBitsToTarget checks the accepted compact range and the conversion
// back.
func TestBitsToTarget(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		bits  uint32
		valid bool
	}{
		{name: "network limit", bits: 0x1e0ffff0, valid: true},
		{name: "mainnet era", bits: 0x1b0404cb, valid: true},
		{name: "smallest mantissa", bits: 0x1d008000, valid: true},
		{name: "exponent too large", bits: 0x1f00ffff},
		{name: "exponent too small", bits: 0x0200ffff},
		{name: "mantissa too small", bits: 0x1e007fff},
		{name: "negative mantissa", bits: 0x1e800000},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			target, err := BitsToTarget(tc.bits)
			if !tc.valid {
				require.True(t, IsErrorCode(err, ErrInvalidBits))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.bits, TargetToBits(target))
		})
	}

	require.Equal(t, uint32(0x1e0fffff),
		TargetToBits(netparams.MainNetParams.PowLimit))
}

// windowLookup serves the headers below height 30 from a generator.
func windowLookup(gen func(height int32) wire.BlockHeader) headerLookup {
	return func(height int32) (*wire.BlockHeader, error) {
		if height < 0 || height >= testActivation {
			return nil, missingHeader(height)
		}
		h := gen(height)
		return &h, nil
	}
}

func spacedHeaders(spacing int64, bits uint32) func(int32) wire.BlockHeader {
	return func(height int32) wire.BlockHeader {
		return wire.BlockHeader{
			Timestamp: time.Unix(
				testGenesisTime+int64(height)*spacing, 0,
			),
			Bits: bits,
		}
	}
}

// TestRequiredBits recomputes Dark Gravity Wave targets for synthetic
// windows.
func TestRequiredBits(t *testing.T) {
	t.Parallel()

	params := testParams(DoubleSHA256)

	testCases := []struct {
		name   string
		height int32
		gen    func(int32) wire.BlockHeader
		want   uint32
	}{
		{
			name:   "genesis",
			height: 0,
			gen:    spacedHeaders(150, 0x1e0ffff0),
			want:   0x1e0ffff0,
		},
		{
			name:   "before activation",
			height: testActivation - 1,
			gen:    spacedHeaders(10, 0x1b0404cb),
			want:   0x1e0ffff0,
		},
		{
			name:   "on schedule",
			height: testActivation,
			gen:    spacedHeaders(150, 0x1e0ffff0),
			want:   0x1e0f5546,
		},
		{
			name:   "fast blocks clamp to a third",
			height: testActivation,
			gen:    spacedHeaders(10, 0x1e0ffff0),
			want:   0x1e055550,
		},
		{
			name:   "slow blocks capped at the limit",
			height: testActivation,
			gen:    spacedHeaders(1000, 0x1e0ffff0),
			want:   0x1e0fffff,
		},
		{
			name:   "mixed window",
			height: testActivation,
			gen: func(height int32) wire.BlockHeader {
				bits := uint32(0x1c00ffff)
				if height%2 == 1 {
					bits = 0x1b0404cb
				}
				return wire.BlockHeader{
					Timestamp: time.Unix(testGenesisTime+
						int64(height)*150+
						int64(height%3)*20, 0),
					Bits: bits,
				}
			},
			want: 0x1b79263e,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			bits, err := requiredBits(
				params, tc.height, windowLookup(tc.gen),
			)
			require.NoError(t, err)
			require.Equalf(t, tc.want, bits, "got %08x", bits)
		})
	}
}

// TestRequiredBitsMissingWindow makes sure a short window reports the
// missing header instead of guessing.
func TestRequiredBitsMissingWindow(t *testing.T) {
	t.Parallel()

	params := testParams(DoubleSHA256)
	lookup := windowLookup(spacedHeaders(150, 0x1e0ffff0))

	_, err := requiredBits(params, testActivation+1, lookup)
	require.True(t, IsErrorCode(err, ErrMissingHeader))
}
