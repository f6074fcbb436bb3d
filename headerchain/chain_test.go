// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package headerchain

import (
	"context"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
)

// TestConnectExtends grows a chain across the retarget activation height.
func TestConnectExtends(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newTestChain(t, easyHash)
	require.Equal(t, int32(-1), c.Height())

	headers := extendChain(t, c, 40)
	require.Equal(t, int32(39), c.LocalHeight())

	genesisHash, ok := c.HeaderHash(0)
	require.True(t, ok)
	require.Equal(t, c.params.GenesisHash, genesisHash)

	for i := 1; i < len(headers); i++ {
		prev, ok := c.HeaderHash(int32(i - 1))
		require.True(t, ok)
		require.Equal(t, prev, headers[i].PrevBlock)
	}

	stored, err := c.Header(ctx, testActivation)
	require.NoError(t, err)
	require.Equal(t, uint32(0x1e0f5546), stored.Bits, spew.Sdump(stored))
	require.Equal(t, headers[testActivation].Bytes(), stored.Bytes())

	_, ok = c.HeaderHash(40)
	require.False(t, ok)

	// Connecting a known header again changes nothing.
	res, err := c.Connect(ctx, &headers[10])
	require.NoError(t, err)
	require.Equal(t, ConnectResult{Kind: Connected, Height: 39}, res)
	require.Equal(t, int32(39), c.Height())
}

// TestRejectInsufficientWork makes sure a header whose hash is above its
// claimed target is rejected once the retarget is active.
func TestRejectInsufficientWork(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newTestChain(t, hardHash)

	// Proof of work is not enforced before activation.
	extendChain(t, c, testActivation)

	next := mineBranch(t, c, c.Height(), 1, 0)[0]
	require.Equal(t, int32(testActivation), next.Height)

	res := c.Accept(ctx, &next)
	require.Equal(t, Rejected, res.Kind)
	require.True(t, IsErrorCode(res.Err, ErrInsufficientWork), res.Err)
	require.False(t, c.CanConnect(ctx, &next, true))

	_, err := c.Connect(ctx, &next)
	require.ErrorIs(t, err, HeaderError{ErrorCode: ErrInsufficientWork})
	require.Equal(t, int32(testActivation-1), c.Height())
}

// TestAccept covers the outcomes of validating a header without storing it.
func TestAccept(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newTestChain(t, easyHash)
	extendChain(t, c, 35)

	next := mineBranch(t, c, c.Height(), 1, 0)[0]

	badBits := next
	badBits.Bits = 0x1e0ffff0

	badLink := next
	badLink.PrevBlock = chainhash.Hash{0x01}

	orphan := next
	orphan.Height = 50

	badGenesis := Header{BlockHeader: testGenesis()}
	badGenesis.Nonce++

	testCases := []struct {
		name   string
		header Header
		kind   AcceptKind
		height int32
		code   ErrorCode
	}{
		{
			name:   "valid",
			header: next,
			kind:   Accepted,
		},
		{
			name:   "genesis",
			header: Header{BlockHeader: testGenesis()},
			kind:   Accepted,
		},
		{
			name:   "wrong bits",
			header: badBits,
			kind:   Rejected,
			code:   ErrBitsMismatch,
		},
		{
			name:   "wrong parent",
			header: badLink,
			kind:   Rejected,
			code:   ErrPrevHashMismatch,
		},
		{
			name:   "unknown parent",
			header: orphan,
			kind:   NeedsParent,
			height: 49,
		},
		{
			name:   "wrong genesis",
			header: badGenesis,
			kind:   Rejected,
			code:   ErrBadGenesis,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			res := c.Accept(ctx, &tc.header)
			require.Equal(t, tc.kind, res.Kind, res.Kind.String())
			switch tc.kind {
			case Rejected:
				require.True(t, IsErrorCode(res.Err, tc.code),
					res.Err)
			case NeedsParent:
				require.Equal(t, tc.height, res.Height)
			default:
				require.NoError(t, res.Err)
			}
		})
	}
}

// TestSkipPoWCheck makes sure the test networks only check linkage.
func TestSkipPoWCheck(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	params := testParams(hardHash)
	params.SkipPoWCheck = true

	c, err := New(ctx, Config{Params: params, Hash: hardHash})
	require.NoError(t, err)
	extendChain(t, c, testActivation+5)

	next := mineBranch(t, c, c.Height(), 1, 0)[0]
	next.Bits = 0x1b0404cb
	res, err := c.Connect(ctx, &next)
	require.NoError(t, err)
	require.Equal(t, ConnectResult{Kind: Connected, Height: next.Height},
		res)

	work, err := c.Chainwork(ctx, c.Height())
	require.NoError(t, err)
	require.Equal(t, int64(c.Height()), work.Int64())
}

// TestReorg switches to a heavier branch delivered in both orders.
func TestReorg(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		reversed bool
	}{
		{name: "parents first"},
		{name: "tip first", reversed: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			c := newTestChain(t, easyHash)
			notifier := &mockNotifier{}
			c.SetNotifier(notifier)

			extendChain(t, c, 40)
			branch := mineBranch(t, c, 35, 6, 7)

			notifier.On("HeadersReorganized", int32(35)).Return().Once()

			for i := range branch {
				h := &branch[i]
				want := ConnectResult{Kind: SideChain, Height: 35}
				switch {
				case tc.reversed && i == len(branch)-1:
					h = &branch[0]
					want = ConnectResult{Kind: Reorg, Height: 35}

				case tc.reversed:
					h = &branch[len(branch)-1-i]
					want = ConnectResult{
						Kind: Pending, Height: h.Height - 1,
					}

				case h.Height == 40:
					want = ConnectResult{Kind: Reorg, Height: 35}

				case h.Height == 41:
					want = ConnectResult{Kind: Connected, Height: 41}
				}

				res, err := c.Connect(ctx, h)
				require.NoError(t, err)
				require.Equalf(t, want, res, "header %d", h.Height)
			}

			require.Equal(t, int32(41), c.Height())
			notifier.AssertExpectations(t)

			for i := range branch {
				hash, ok := c.HeaderHash(branch[i].Height)
				require.True(t, ok)
				require.Equal(t,
					c.HashHeader(&branch[i].BlockHeader), hash)
			}
			require.Empty(t, c.pending)
		})
	}
}

// TestConnectChunk appends a batch of headers and rejects batches that
// conflict with the stored ones.
func TestConnectChunk(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newTestChain(t, easyHash)
	headers := mineBranch(t, c, -1, 60, 0)

	verified, err := c.VerifyChunk(ctx, 0, chunkBytes(headers))
	require.NoError(t, err)
	require.Len(t, verified, 60)

	tip, err := c.ConnectChunk(ctx, 0, chunkBytes(headers[:40]))
	require.NoError(t, err)
	require.Equal(t, int32(39), tip)

	// Overlapping chunk: only the new part is written.
	tip, err = c.ConnectChunk(ctx, 20, chunkBytes(headers[20:]))
	require.NoError(t, err)
	require.Equal(t, int32(59), tip)

	tip, err = c.ConnectChunk(ctx, 0, chunkBytes(headers))
	require.NoError(t, err)
	require.Equal(t, int32(59), tip)

	conflicting := make([]Header, len(headers))
	copy(conflicting, headers)
	conflicting[45].Nonce++

	broken := make([]Header, len(headers))
	copy(broken, headers)
	broken[10].PrevBlock = chainhash.Hash{}

	testCases := []struct {
		name  string
		start int32
		data  []byte
		code  ErrorCode
	}{
		{
			name:  "conflicts with stored header",
			start: 0,
			data:  chunkBytes(conflicting),
			code:  ErrHashMismatch,
		},
		{
			name:  "truncated header",
			start: 0,
			data:  chunkBytes(headers)[:100],
			code:  ErrBadChunk,
		},
		{
			name:  "gap above tip",
			start: 61,
			data:  chunkBytes(headers[:1]),
			code:  ErrBadHeight,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.ConnectChunk(ctx, tc.start, tc.data)
			require.True(t, IsErrorCode(err, tc.code), err)
			require.Equal(t, int32(59), c.Height())
		})
	}

	fresh := newTestChain(t, easyHash)
	_, err = fresh.VerifyChunk(ctx, 0, chunkBytes(broken))
	require.True(t, IsErrorCode(err, ErrPrevHashMismatch), err)

	err = fresh.VerifyChain(ctx, headers)
	require.NoError(t, err)
}

// TestChainwork sums the work of every stored header and survives cache
// invalidation.
func TestChainwork(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newTestChain(t, easyHash)
	headers := extendChain(t, c, 40)

	want := new(big.Int)
	for i := range headers {
		want.Add(want, blockchain.CalcWork(headers[i].Bits))
	}

	got, err := c.Chainwork(ctx, 39)
	require.NoError(t, err)
	require.Zero(t, want.Cmp(got), "got %v want %v", got, want)

	partial, err := c.Chainwork(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, got.Cmp(partial))

	_, err = c.Chainwork(ctx, 45)
	require.True(t, IsErrorCode(err, ErrMissingHeader))
}
