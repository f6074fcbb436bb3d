// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package headerchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/axerunners/axewallet/netparams"
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// DefaultMaxPendingHeaders bounds the pool of headers that do not yet
// connect to the local chain.
const DefaultMaxPendingHeaders = netparams.ChunkSize

// ReorgNotifier is told when the local chain switched to a branch that forks
// off below the previous tip.  Every header above forkHeight changed.
type ReorgNotifier interface {
	HeadersReorganized(forkHeight int32)
}

// Config holds the collaborators of a Chain.
type Config struct {
	// Params selects the network.  It is required.
	Params *netparams.Params

	// Store persists the headers.  A MemStore is used when nil.
	Store HeaderStore

	// Hash computes header identities.  DoubleSHA256 is used when nil.
	Hash HashFunc

	// Notifier is told about reorganizations.  It may be nil.
	Notifier ReorgNotifier

	// MaxPendingHeaders overrides DefaultMaxPendingHeaders when positive.
	MaxPendingHeaders int
}

// Chain is a validated, linear run of block headers starting at the genesis
// block.  Headers that do not connect yet are kept aside until the branch
// they belong to either links up with the local chain or is abandoned.
type Chain struct {
	params     *netparams.Params
	store      HeaderStore
	hash       HashFunc
	maxPending int

	mu       sync.RWMutex
	tip      int32
	notifier ReorgNotifier
	pending  map[chainhash.Hash]*Header

	workMu sync.Mutex
	work   map[int32]*big.Int
}

// New returns a Chain over the headers already in cfg.Store.
func New(ctx context.Context, cfg Config) (*Chain, error) {
	if cfg.Params == nil {
		return nil, errors.New("headerchain: network params required")
	}
	if cfg.Store == nil {
		cfg.Store = NewMemStore()
	}
	if cfg.Hash == nil {
		cfg.Hash = DoubleSHA256
	}
	if cfg.MaxPendingHeaders <= 0 {
		cfg.MaxPendingHeaders = DefaultMaxPendingHeaders
	}

	tip, err := cfg.Store.Height(ctx)
	if err != nil {
		return nil, err
	}
	log.Infof("Loaded %s header chain at height %d", cfg.Params.Name, tip)

	return &Chain{
		params:     cfg.Params,
		store:      cfg.Store,
		hash:       cfg.Hash,
		maxPending: cfg.MaxPendingHeaders,
		tip:        tip,
		notifier:   cfg.Notifier,
		pending:    make(map[chainhash.Hash]*Header),
		work:       make(map[int32]*big.Int),
	}, nil
}

// SetNotifier replaces the reorganization notifier.
func (c *Chain) SetNotifier(n ReorgNotifier) {
	c.mu.Lock()
	c.notifier = n
	c.mu.Unlock()
}

// Params returns the network parameters of the chain.
func (c *Chain) Params() *netparams.Params {
	return c.params
}

// Height returns the height of the local tip, or -1 for an empty chain.
func (c *Chain) Height() int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tip
}

// LocalHeight is Height under the name the ledger expects.
func (c *Chain) LocalHeight() int32 {
	return c.Height()
}

// HashHeader returns the identity of a header.
func (c *Chain) HashHeader(h *wire.BlockHeader) chainhash.Hash {
	return c.hash(serializeHeader(h))
}

// Header returns the stored header at height.
func (c *Chain) Header(ctx context.Context, height int32) (*Header, error) {
	h, err := c.store.FetchHeader(ctx, height)
	if err != nil {
		return nil, err
	}
	return &Header{BlockHeader: *h, Height: height}, nil
}

// HeaderHash returns the hash of the stored header at height.  The second
// return is false when no header is stored there.
func (c *Chain) HeaderHash(height int32) (chainhash.Hash, bool) {
	if height < 0 {
		return chainhash.Hash{}, false
	}
	hash, err := c.hashAt(context.Background(), height)
	if err != nil {
		return chainhash.Hash{}, false
	}
	return hash, true
}

// hashAt returns the identity of the header at height.  Height -1 is the all
// zero hash that the genesis block links to.
func (c *Chain) hashAt(ctx context.Context, height int32) (chainhash.Hash,
	error) {

	switch {
	case height == -1:
		return chainhash.Hash{}, nil
	case height == 0:
		return c.params.GenesisHash, nil
	}

	h, err := c.store.FetchHeader(ctx, height)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return c.HashHeader(h), nil
}

func (c *Chain) storeLookup(ctx context.Context) headerLookup {
	return func(height int32) (*wire.BlockHeader, error) {
		return c.store.FetchHeader(ctx, height)
	}
}

// Target returns the target a header at height must meet, computed from the
// stored headers below it.
func (c *Chain) Target(ctx context.Context, height int32) (*big.Int, error) {
	return calcTarget(c.params, height, c.storeLookup(ctx))
}

// RequiredBits returns the difficulty bits a header at height must carry.
func (c *Chain) RequiredBits(ctx context.Context, height int32) (uint32,
	error) {

	return requiredBits(c.params, height, c.storeLookup(ctx))
}

// verifyHeader checks a single header against its parent hash and target.
// expected, when set, is the hash already stored at the header's height.
func (c *Chain) verifyHeader(h *Header, hash, prevHash chainhash.Hash,
	target *big.Int, expected *chainhash.Hash) error {

	if expected != nil && *expected != hash {
		str := fmt.Sprintf("header %d hash %v does not match stored %v",
			h.Height, hash, expected)
		return headerError(ErrHashMismatch, str, nil)
	}
	if h.PrevBlock != prevHash {
		str := fmt.Sprintf("header %d prev hash mismatch: %v vs %v",
			h.Height, prevHash, h.PrevBlock)
		return headerError(ErrPrevHashMismatch, str, nil)
	}
	if c.params.SkipPoWCheck || h.Height < c.params.DGWActivationHeight {
		return nil
	}

	if bits := TargetToBits(target); bits != h.Bits {
		str := fmt.Sprintf("header %d bits mismatch: %08x vs %08x",
			h.Height, bits, h.Bits)
		return headerError(ErrBitsMismatch, str, nil)
	}
	if blockchain.HashToBig(&hash).Cmp(target) > 0 {
		str := fmt.Sprintf("header %d: insufficient proof of work: "+
			"hash %v above target %064x", h.Height, hash, target)
		return headerError(ErrInsufficientWork, str, nil)
	}
	return nil
}

func (c *Chain) checkGenesis(hash chainhash.Hash) error {
	if hash != c.params.GenesisHash {
		str := fmt.Sprintf("genesis hash %v, want %v", hash,
			c.params.GenesisHash)
		return headerError(ErrBadGenesis, str, nil)
	}
	return nil
}

// CanConnect reports whether h links to the stored header below it and
// passes validation.  With checkHeight set, h must also sit right above the
// local tip.
func (c *Chain) CanConnect(ctx context.Context, h *Header,
	checkHeight bool) bool {

	c.mu.RLock()
	defer c.mu.RUnlock()

	if checkHeight && c.tip != h.Height-1 {
		return false
	}
	hash := c.HashHeader(&h.BlockHeader)
	if h.Height == 0 {
		return c.checkGenesis(hash) == nil
	}
	prevHash, err := c.hashAt(ctx, h.Height-1)
	if err != nil || prevHash != h.PrevBlock {
		return false
	}
	target, err := c.Target(ctx, h.Height)
	if err != nil {
		return false
	}
	return c.verifyHeader(h, hash, prevHash, target, nil) == nil
}

// AcceptKind is the outcome of Accept.
type AcceptKind uint8

const (
	// Accepted means the header links to the local chain and is valid.
	Accepted AcceptKind = iota

	// NeedsParent means a header the check depends on is missing locally.
	// The caller should fetch the header at AcceptResult.Height.
	NeedsParent

	// Rejected means the header is invalid.  AcceptResult.Err says why.
	Rejected
)

// String returns the AcceptKind as a human-readable name.
func (k AcceptKind) String() string {
	switch k {
	case Accepted:
		return "accepted"
	case NeedsParent:
		return "needs parent"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("unknown accept kind %d", k)
	}
}

// AcceptResult describes the outcome of Accept.
type AcceptResult struct {
	Kind   AcceptKind
	Height int32
	Err    error
}

// Accept validates h against the stored header at h.Height-1 without
// storing it.
func (c *Chain) Accept(ctx context.Context, h *Header) AcceptResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hash := c.HashHeader(&h.BlockHeader)
	if h.Height == 0 {
		if err := c.checkGenesis(hash); err != nil {
			return AcceptResult{Kind: Rejected, Err: err}
		}
		return AcceptResult{Kind: Accepted}
	}

	prevHash, err := c.hashAt(ctx, h.Height-1)
	switch {
	case IsErrorCode(err, ErrMissingHeader):
		return AcceptResult{Kind: NeedsParent, Height: h.Height - 1}
	case err != nil:
		return AcceptResult{Kind: Rejected, Err: err}
	}
	if prevHash != h.PrevBlock {
		str := fmt.Sprintf("header %d does not link to local header "+
			"%v", h.Height, prevHash)
		return AcceptResult{
			Kind: Rejected,
			Err:  headerError(ErrPrevHashMismatch, str, nil),
		}
	}

	missing := int32(-1)
	lookup := func(height int32) (*wire.BlockHeader, error) {
		bh, err := c.store.FetchHeader(ctx, height)
		if IsErrorCode(err, ErrMissingHeader) && missing < 0 {
			missing = height
		}
		return bh, err
	}
	target, err := calcTarget(c.params, h.Height, lookup)
	switch {
	case err != nil && missing >= 0:
		return AcceptResult{Kind: NeedsParent, Height: missing}
	case err != nil:
		return AcceptResult{Kind: Rejected, Err: err}
	}

	if err := c.verifyHeader(h, hash, prevHash, target, nil); err != nil {
		return AcceptResult{Kind: Rejected, Err: err}
	}
	return AcceptResult{Kind: Accepted}
}
