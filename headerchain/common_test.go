// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package headerchain

import (
	"context"
	"testing"
	"time"

	"github.com/axerunners/axewallet/netparams"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	// testActivation is the Dark Gravity Wave height of the test params.
	testActivation = 30

	testGenesisTime = 1390095618
)

// easyHash is DoubleSHA256 with the most significant bytes cleared, so every
// header meets any target the tests produce.
func easyHash(b []byte) chainhash.Hash {
	h := chainhash.DoubleHashH(b)
	for i := 26; i < chainhash.HashSize; i++ {
		h[i] = 0
	}
	return h
}

// hardHash never meets a target.
func hardHash(b []byte) chainhash.Hash {
	h := chainhash.DoubleHashH(b)
	h[chainhash.HashSize-1] = 0xff
	return h
}

func testGenesis() wire.BlockHeader {
	return wire.BlockHeader{
		Version:   1,
		Timestamp: time.Unix(testGenesisTime, 0),
		Bits:      0x1e0ffff0,
		Nonce:     28917698,
	}
}

// testParams copies the main network parameters with an early retarget
// activation and a genesis hash matching hash.
func testParams(hash HashFunc) *netparams.Params {
	p := netparams.MainNetParams
	p.DGWActivationHeight = testActivation
	genesis := testGenesis()
	p.GenesisHash = hash(serializeHeader(&genesis))
	return &p
}

func newTestChain(t *testing.T, hash HashFunc) *Chain {
	t.Helper()

	c, err := New(context.Background(), Config{
		Params: testParams(hash),
		Hash:   hash,
	})
	require.NoError(t, err)
	return c
}

// mineBranch builds n valid headers on top of the local header at fork.  The
// skew is added to every timestamp so different branches hash differently.
func mineBranch(t *testing.T, c *Chain, fork int32, n int,
	skew int64) []Header {

	t.Helper()
	ctx := context.Background()

	branch := make([]Header, 0, n)
	lookup := func(height int32) (*wire.BlockHeader, error) {
		if height > fork {
			return &branch[height-fork-1].BlockHeader, nil
		}
		return c.store.FetchHeader(ctx, height)
	}

	prevHash, err := c.hashAt(ctx, fork)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		height := fork + 1 + int32(i)
		if height == 0 {
			branch = append(branch, Header{BlockHeader: testGenesis()})
			prevHash = c.HashHeader(&branch[0].BlockHeader)
			continue
		}

		bits, err := requiredBits(c.params, height, lookup)
		require.NoError(t, err)

		h := Header{
			BlockHeader: wire.BlockHeader{
				Version:   2,
				PrevBlock: prevHash,
				Timestamp: time.Unix(
					testGenesisTime+int64(height)*150+skew, 0,
				),
				Bits:  bits,
				Nonce: uint32(height),
			},
			Height: height,
		}
		branch = append(branch, h)
		prevHash = c.HashHeader(&h.BlockHeader)
	}
	return branch
}

// extendChain connects n freshly mined headers on top of the local tip.
func extendChain(t *testing.T, c *Chain, n int) []Header {
	t.Helper()

	headers := mineBranch(t, c, c.Height(), n, 0)
	for i := range headers {
		res, err := c.Connect(context.Background(), &headers[i])
		require.NoError(t, err)
		require.Equal(t, ConnectResult{
			Kind: Connected, Height: headers[i].Height,
		}, res)
	}
	return headers
}

func chunkBytes(headers []Header) []byte {
	var data []byte
	for i := range headers {
		data = append(data, headers[i].Bytes()...)
	}
	return data
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) HeadersReorganized(forkHeight int32) {
	m.Called(forkHeight)
}
