// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package headerchain

import (
	"context"
	"fmt"
	"math/big"
	"runtime"

	"github.com/axerunners/axewallet/netparams"
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/sync/errgroup"
)

// ConnectKind is the outcome of Connect.
type ConnectKind uint8

const (
	// Connected means the header now sits on the local chain.
	// ConnectResult.Height is the new tip.
	Connected ConnectKind = iota

	// Reorg means the local chain switched to the header's branch.
	// ConnectResult.Height is the last height both branches share.
	Reorg

	// Pending means the header was kept aside because its branch does
	// not link to the local chain yet.  ConnectResult.Height is the
	// height of the header to fetch next.
	Pending

	// SideChain means the header's branch links to the local chain but
	// does not carry more work.  ConnectResult.Height is the fork point.
	SideChain
)

// String returns the ConnectKind as a human-readable name.
func (k ConnectKind) String() string {
	switch k {
	case Connected:
		return "connected"
	case Reorg:
		return "reorg"
	case Pending:
		return "pending"
	case SideChain:
		return "side chain"
	default:
		return fmt.Sprintf("unknown connect kind %d", k)
	}
}

// ConnectResult describes the outcome of Connect.
type ConnectResult struct {
	Kind   ConnectKind
	Height int32
}

// hashHeaders computes the identity of every header concurrently.
func (c *Chain) hashHeaders(ctx context.Context,
	headers []Header) ([]chainhash.Hash, error) {

	hashes := make([]chainhash.Hash, len(headers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range headers {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			hashes[i] = c.HashHeader(&headers[i].BlockHeader)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hashes, nil
}

// verifyRun validates an ordered, contiguous run of headers.  The first one
// must link to the stored header below it.  Retarget windows reaching into
// the run are served from the run itself.  With checkStored set, headers at
// heights the store already holds must match the stored ones.
func (c *Chain) verifyRun(ctx context.Context, headers []Header,
	hashes []chainhash.Hash, checkStored bool) error {

	if len(headers) == 0 {
		return nil
	}

	first := headers[0].Height
	for i := range headers {
		if headers[i].Height != first+int32(i) {
			str := fmt.Sprintf("header %d out of sequence at "+
				"position %d", headers[i].Height, i)
			return headerError(ErrBadHeight, str, nil)
		}
	}

	lookup := func(height int32) (*wire.BlockHeader, error) {
		if height >= first && height < first+int32(len(headers)) {
			return &headers[height-first].BlockHeader, nil
		}
		return c.store.FetchHeader(ctx, height)
	}

	prevHash, err := c.hashAt(ctx, first-1)
	if err != nil {
		return err
	}
	for i := range headers {
		h := &headers[i]
		if h.Height == 0 {
			if err := c.checkGenesis(hashes[i]); err != nil {
				return err
			}
			prevHash = hashes[i]
			continue
		}

		var expected *chainhash.Hash
		if checkStored && h.Height <= c.tip {
			stored, err := c.hashAt(ctx, h.Height)
			if err != nil {
				return err
			}
			expected = &stored
		}

		target, err := calcTarget(c.params, h.Height, lookup)
		if err != nil {
			return err
		}
		err = c.verifyHeader(h, hashes[i], prevHash, target, expected)
		if err != nil {
			return err
		}
		prevHash = hashes[i]
	}
	return nil
}

// VerifyChain checks the linkage and difficulty of an ordered run of
// headers.  The first header must link to the stored header below it.
func (c *Chain) VerifyChain(ctx context.Context, headers []Header) error {
	hashes, err := c.hashHeaders(ctx, headers)
	if err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.verifyRun(ctx, headers, hashes, false)
}

// VerifyChunk decodes and validates a batch of concatenated headers starting
// at height start.  Headers the local chain already holds must match.
func (c *Chain) VerifyChunk(ctx context.Context, start int32,
	data []byte) ([]Header, error) {

	headers, err := ParseChunk(start, data)
	if err != nil {
		return nil, err
	}
	hashes, err := c.hashHeaders(ctx, headers)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.verifyRun(ctx, headers, hashes, true); err != nil {
		return nil, err
	}
	return headers, nil
}

// ConnectChunk validates a batch of headers and appends the part of it that
// lies above the local tip.  It returns the new tip height.
func (c *Chain) ConnectChunk(ctx context.Context, start int32,
	data []byte) (int32, error) {

	headers, err := ParseChunk(start, data)
	if err != nil {
		return 0, err
	}
	hashes, err := c.hashHeaders(ctx, headers)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if start > c.tip+1 {
		str := fmt.Sprintf("chunk at %d does not connect to tip %d",
			start, c.tip)
		return 0, headerError(ErrBadHeight, str, nil)
	}
	if err := c.verifyRun(ctx, headers, hashes, true); err != nil {
		log.Warnf("Chunk at height %d failed verification: %v", start,
			err)
		return 0, err
	}

	skip := int(c.tip + 1 - start)
	if skip >= len(headers) {
		return c.tip, nil
	}
	if err := c.appendHeaders(ctx, c.tip+1, headers[skip:]); err != nil {
		return 0, err
	}
	log.Debugf("Connected chunk at height %d, tip now %d", start, c.tip)

	return c.tip, nil
}

// appendHeaders writes headers at start, dropping anything stored at or
// above it.  The caller must hold c.mu for writes.
func (c *Chain) appendHeaders(ctx context.Context, start int32,
	headers []Header) error {

	raw := make([]wire.BlockHeader, len(headers))
	for i := range headers {
		raw[i] = headers[i].BlockHeader
	}
	if err := c.store.PutHeaders(ctx, start, raw); err != nil {
		return err
	}
	c.tip = start + int32(len(headers)) - 1
	c.invalidateWork(start)

	return nil
}

// Connect tries to extend the local chain with h.  Headers whose parent is
// unknown are pooled until the missing ancestors arrive.  Once a pooled
// branch links to the local chain it replaces the local headers above the
// fork point if it carries more work.
func (c *Chain) Connect(ctx context.Context, h *Header) (ConnectResult,
	error) {

	result, notify, err := c.connect(ctx, h)
	if err != nil {
		return ConnectResult{}, err
	}
	if notify != nil {
		notify.HeadersReorganized(result.Height)
	}
	return result, nil
}

func (c *Chain) connect(ctx context.Context, h *Header) (ConnectResult,
	ReorgNotifier, error) {

	hash := c.HashHeader(&h.BlockHeader)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Already on the local chain.
	if h.Height <= c.tip {
		stored, err := c.hashAt(ctx, h.Height)
		if err == nil && stored == hash {
			return ConnectResult{Kind: Connected, Height: c.tip},
				nil, nil
		}
	}

	// Walk back through the pool until the branch meets the local chain.
	branch := []*Header{h}
	cur := h
	var fork int32
	for {
		parent := cur.Height - 1
		if parent <= c.tip {
			stored, err := c.hashAt(ctx, parent)
			if err != nil {
				return ConnectResult{}, nil, err
			}
			if stored == cur.PrevBlock {
				fork = parent
				break
			}
		}

		p, ok := c.pending[cur.PrevBlock]
		if !ok || p.Height != parent {
			c.addPending(hash, h)
			log.Debugf("Header %d pooled, missing parent at %d",
				h.Height, parent)
			return ConnectResult{Kind: Pending, Height: parent},
				nil, nil
		}
		branch = append(branch, p)
		cur = p
	}

	// The branch was collected tip first.
	run := make([]Header, len(branch))
	for i, bh := range branch {
		run[len(branch)-1-i] = *bh
	}

	// Pull in pooled descendants that arrived before h.
	last := hash
	for {
		child := c.pooledChild(last, run[len(run)-1].Height+1)
		if child == nil {
			break
		}
		run = append(run, *child)
		last = c.HashHeader(&child.BlockHeader)
	}

	if fork < c.tip {
		more, err := c.moreWork(ctx, fork, run)
		if err != nil {
			return ConnectResult{}, nil, err
		}
		if !more {
			c.addPending(hash, h)
			log.Debugf("Side chain forking at %d, tip %d stays",
				fork, c.tip)
			return ConnectResult{Kind: SideChain, Height: fork},
				nil, nil
		}
	}

	hashes := make([]chainhash.Hash, len(run))
	for i := range run {
		hashes[i] = c.HashHeader(&run[i].BlockHeader)
	}
	if err := c.verifyRun(ctx, run, hashes, false); err != nil {
		for i := range run {
			delete(c.pending, hashes[i])
		}
		return ConnectResult{}, nil, err
	}

	oldTip := c.tip
	if err := c.appendHeaders(ctx, fork+1, run); err != nil {
		return ConnectResult{}, nil, err
	}
	for i := range run {
		delete(c.pending, hashes[i])
	}

	if fork < oldTip {
		log.Infof("Chain reorganized at height %d: old tip %d, new "+
			"tip %d", fork, oldTip, c.tip)
		return ConnectResult{Kind: Reorg, Height: fork}, c.notifier, nil
	}
	return ConnectResult{Kind: Connected, Height: c.tip}, nil, nil
}

// pooledChild returns the pooled header at height whose parent is prevHash.
func (c *Chain) pooledChild(prevHash chainhash.Hash, height int32) *Header {
	for _, h := range c.pending {
		if h.Height == height && h.PrevBlock == prevHash {
			return h
		}
	}
	return nil
}

func (c *Chain) addPending(hash chainhash.Hash, h *Header) {
	if len(c.pending) >= c.maxPending {
		log.Warnf("Dropping %d pooled headers", len(c.pending))
		c.pending = make(map[chainhash.Hash]*Header)
	}
	hc := *h
	c.pending[hash] = &hc
}

// moreWork reports whether run, which links to the local header at fork,
// carries more work than the local headers above fork.
func (c *Chain) moreWork(ctx context.Context, fork int32,
	run []Header) (bool, error) {

	if c.params.SkipPoWCheck {
		return int32(len(run)) > c.tip-fork, nil
	}

	branchWork := new(big.Int)
	for i := range run {
		branchWork.Add(branchWork, blockchain.CalcWork(run[i].Bits))
	}
	localWork := new(big.Int)
	for height := fork + 1; height <= c.tip; height++ {
		bh, err := c.store.FetchHeader(ctx, height)
		if err != nil {
			return false, err
		}
		localWork.Add(localWork, blockchain.CalcWork(bh.Bits))
	}
	return branchWork.Cmp(localWork) > 0, nil
}

// Chainwork returns the total work of the local headers up to and including
// height.  The test networks count one unit per header.
func (c *Chain) Chainwork(ctx context.Context, height int32) (*big.Int,
	error) {

	if c.params.SkipPoWCheck {
		return big.NewInt(int64(height)), nil
	}

	c.workMu.Lock()
	defer c.workMu.Unlock()

	// Totals are cached at the last height of each chunk.
	boundary := (height+1)/netparams.ChunkSize*netparams.ChunkSize - 1
	for boundary >= 0 && c.work[boundary] == nil {
		boundary -= netparams.ChunkSize
	}
	total := new(big.Int)
	if boundary >= 0 {
		total.Set(c.work[boundary])
	}

	for h := boundary + 1; h <= height; h++ {
		bh, err := c.store.FetchHeader(ctx, h)
		if err != nil {
			return nil, err
		}
		total.Add(total, blockchain.CalcWork(bh.Bits))
		if (h+1)%netparams.ChunkSize == 0 {
			c.work[h] = new(big.Int).Set(total)
		}
	}
	return total, nil
}

// invalidateWork forgets cached totals that cover heights at or above
// height.
func (c *Chain) invalidateWork(height int32) {
	c.workMu.Lock()
	for h := range c.work {
		if h >= height {
			delete(c.work, h)
		}
	}
	c.workMu.Unlock()
}
