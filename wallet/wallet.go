// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/axerunners/axewallet/coinchooser"
	"github.com/axerunners/axewallet/headerchain"
	"github.com/axerunners/axewallet/ledger"
	"github.com/axerunners/axewallet/netparams"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/lightningnetwork/lnd/clock"
)

var (
	// ErrWatchingOnly is returned when keys are needed but the wallet
	// has none.
	ErrWatchingOnly = errors.New("wallet is watching-only")

	// ErrNotMine is returned for addresses that are not part of the
	// wallet.
	ErrNotMine = errors.New("address is not part of the wallet")

	// ErrWrongNetwork is returned for keys and addresses encoded for
	// another network.
	ErrWrongNetwork = errors.New("encoded for a different network")

	// ErrDuplicateListen is returned for any attempts to listen for the
	// same notification more than once.
	ErrDuplicateListen = errors.New("duplicate listen")
)

// Chain is the header chain a wallet follows.  *headerchain.Chain satisfies
// it.
type Chain interface {
	ledger.ChainSource

	// Header returns the local header at height.
	Header(ctx context.Context, height int32) (*headerchain.Header, error)

	// SetNotifier registers the receiver of reorganizations.
	SetNotifier(n headerchain.ReorgNotifier)
}

// A compile-time assertion to ensure *headerchain.Chain meets the Chain
// interface.
var _ Chain = (*headerchain.Chain)(nil)

// Config holds the collaborators of a Wallet.
type Config struct {
	// Params selects the network.  It is required.
	Params *netparams.Params

	// Store holds the ledger tables.  A ledger.MemStore is used when
	// nil.
	Store ledger.Store

	// Chain is the local header chain.  Without one the wallet is offline.
	Chain Chain

	// Verifier and Islocks are handed to the ledger.
	Verifier ledger.Verifier
	Islocks  ledger.IslockSource

	// Keys holds the wallet keys.  A nil key ring makes the wallet
	// watching-only.
	Keys KeyRing

	// Chooser selects coins.  The privacy policy is used when nil.
	Chooser *coinchooser.Chooser

	// FeePerKb is the fee rate used when a caller passes none.
	FeePerKb btcutil.Amount

	// DustThreshold is the smallest change output worth creating.  It
	// is derived from the relay fee when zero.
	DustThreshold int64

	// ConfirmedOnly restricts spending to mined coins.
	ConfirmedOnly bool

	// Clock is the time source, the system clock when nil.
	Clock clock.Clock
}

// Wallet ties a ledger of watched addresses to the keys that spend from them
// and the header chain that confirms them.
type Wallet struct {
	params        *netparams.Params
	ledger        *ledger.Ledger
	chain         Chain
	keys          KeyRing
	chooser       *coinchooser.Chooser
	feePerKb      btcutil.Amount
	dustThreshold int64
	confirmedOnly bool
	clock         clock.Clock

	frozenMu sync.RWMutex
	frozen   map[string]struct{}

	// Channels for wallet notifications.
	notificationMu sync.Mutex
	balanceChanges chan ledger.Balance
	relevantTxs    chan ledger.TransactionAdded

	// reorged wakes the event handler after verifications were undone.
	reorged chan struct{}

	started bool
	quit    chan struct{}
	quitMu  sync.Mutex
	wg      sync.WaitGroup
}

// New creates a Wallet and loads its ledger.  Every address of the key ring
// is watched.
func New(cfg Config) (*Wallet, error) {
	if cfg.Params == nil {
		return nil, errors.New("wallet: network params required")
	}
	if cfg.Chooser == nil {
		cfg.Chooser = coinchooser.New(coinchooser.Config{})
	}
	if cfg.FeePerKb == 0 {
		cfg.FeePerKb = txrules.DefaultRelayFeePerKb
	}
	if cfg.DustThreshold == 0 {
		cfg.DustThreshold = coinchooser.DefaultDustThreshold
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	w := &Wallet{
		params:        cfg.Params,
		chain:         cfg.Chain,
		keys:          cfg.Keys,
		chooser:       cfg.Chooser,
		feePerKb:      cfg.FeePerKb,
		dustThreshold: cfg.DustThreshold,
		confirmedOnly: cfg.ConfirmedOnly,
		clock:         cfg.Clock,
		frozen:        make(map[string]struct{}),
		reorged:       make(chan struct{}, 1),
		quit:          make(chan struct{}),
	}

	ledgerCfg := ledger.Config{
		Params:   cfg.Params,
		Store:    cfg.Store,
		Verifier: cfg.Verifier,
		Islocks:  cfg.Islocks,
		Clock:    cfg.Clock,
	}
	if cfg.Chain != nil {
		ledgerCfg.Chain = cfg.Chain
	}
	if cfg.Keys != nil {
		ledgerCfg.Owns = w.owns
	}
	l, err := ledger.New(ledgerCfg)
	if err != nil {
		return nil, err
	}
	w.ledger = l

	if cfg.Keys != nil {
		for _, addr := range cfg.Keys.Addresses() {
			if err := l.AddAddress(addr.EncodeAddress()); err != nil {
				return nil, err
			}
		}
	}
	if cfg.Chain != nil {
		cfg.Chain.SetNotifier(w)
	}
	return w, nil
}

// owns reports whether the key ring holds the key of addr.
func (w *Wallet) owns(addr string) bool {
	decoded, err := btcutil.DecodeAddress(addr, w.params.Params)
	if err != nil {
		return false
	}
	_, ok := w.keys.PubKey(decoded)
	return ok
}

// Ledger returns the ledger of the wallet.
func (w *Wallet) Ledger() *ledger.Ledger {
	return w.ledger
}

// Params returns the network parameters of the wallet.
func (w *Wallet) Params() *netparams.Params {
	return w.params
}

// WatchingOnly reports whether the wallet lacks keys.
func (w *Wallet) WatchingOnly() bool {
	return w.keys == nil
}

// WatchAddress adds addr to the watched addresses.  A wallet with keys only
// watches the addresses of its key ring.
func (w *Wallet) WatchAddress(addr btcutil.Address) error {
	if !addr.IsForNet(w.params.Params) {
		return ErrWrongNetwork
	}
	if w.keys != nil {
		if _, ok := w.keys.PubKey(addr); !ok {
			return ErrNotMine
		}
	}
	return w.ledger.AddAddress(addr.EncodeAddress())
}

// SetFrozenState freezes or thaws addrs.  Coins of frozen addresses are not
// spent.
func (w *Wallet) SetFrozenState(addrs []string, frozen bool) error {
	for _, addr := range addrs {
		mine, err := w.ledger.IsMine(addr)
		if err != nil {
			return err
		}
		if !mine {
			return fmt.Errorf("%s: %w", addr, ErrNotMine)
		}
	}

	w.frozenMu.Lock()
	defer w.frozenMu.Unlock()
	for _, addr := range addrs {
		if frozen {
			w.frozen[addr] = struct{}{}
		} else {
			delete(w.frozen, addr)
		}
	}
	return nil
}

// IsFrozen reports whether addr is frozen.
func (w *Wallet) IsFrozen(addr string) bool {
	w.frozenMu.RLock()
	defer w.frozenMu.RUnlock()
	_, ok := w.frozen[addr]
	return ok
}

func (w *Wallet) frozenAddresses() map[string]struct{} {
	w.frozenMu.RLock()
	defer w.frozenMu.RUnlock()

	frozen := make(map[string]struct{}, len(w.frozen))
	for addr := range w.frozen {
		frozen[addr] = struct{}{}
	}
	return frozen
}

// Balance returns the balance of domain, or of the whole wallet when domain
// is nil.
func (w *Wallet) Balance(domain []string) (ledger.Balance, error) {
	return w.ledger.GetBalance(nil, domain, nil)
}

// FrozenBalance returns the balance held by frozen addresses.
func (w *Wallet) FrozenBalance() (ledger.Balance, error) {
	frozen := w.frozenAddresses()
	if len(frozen) == 0 {
		return ledger.Balance{}, nil
	}
	domain := make([]string, 0, len(frozen))
	for addr := range frozen {
		domain = append(domain, addr)
	}
	return w.ledger.GetBalance(nil, domain, nil)
}

// History returns the wallet history, oldest first.
func (w *Wallet) History(domain []string) ([]ledger.HistoryItem, error) {
	return w.ledger.GetHistory(nil, domain, false)
}

// HeadersReorganized withdraws the verification of transactions whose block
// left the local chain.
func (w *Wallet) HeadersReorganized(forkHeight int32) {
	if w.chain == nil {
		return
	}
	undone, err := w.ledger.UndoVerifications(w.chain, forkHeight)
	if err != nil {
		log.Errorf("Unable to undo verifications above height %d: %v",
			forkHeight, err)
		return
	}
	for _, txid := range undone {
		log.Infof("Transaction %v is no longer verified", txid)
	}
	if len(undone) > 0 {
		select {
		case w.reorged <- struct{}{}:
		default:
		}
	}
}

// A compile-time assertion to ensure Wallet meets the ReorgNotifier
// interface.
var _ headerchain.ReorgNotifier = (*Wallet)(nil)

// BlockchainUpdated must be called after headers were connected.  It lets
// the ledger clear instant send locks that are buried deep enough.
func (w *Wallet) BlockchainUpdated() error {
	return w.ledger.OnBlockchainUpdated()
}

// Start starts the goroutine that turns ledger events into wallet
// notifications.
func (w *Wallet) Start() {
	w.quitMu.Lock()
	select {
	case <-w.quit:
		// Restart the wallet goroutines after shutdown finishes.
		w.WaitForShutdown()
		w.quit = make(chan struct{})
	default:
		// Ignore when the wallet is still running.
		if w.started {
			w.quitMu.Unlock()
			return
		}
		w.started = true
	}
	w.quitMu.Unlock()

	sub := w.ledger.Subscribe()
	w.wg.Add(1)
	go w.ledgerEventHandler(sub)
}

// quitChan atomically reads the quit channel.
func (w *Wallet) quitChan() <-chan struct{} {
	w.quitMu.Lock()
	c := w.quit
	w.quitMu.Unlock()
	return c
}

// Stop signals all wallet goroutines to shutdown.
func (w *Wallet) Stop() {
	w.quitMu.Lock()
	quit := w.quit
	w.quitMu.Unlock()

	select {
	case <-quit:
	default:
		close(quit)
	}
}

// ShuttingDown returns whether the wallet is currently in the process of
// shutting down or not.
func (w *Wallet) ShuttingDown() bool {
	select {
	case <-w.quitChan():
		return true
	default:
		return false
	}
}

// WaitForShutdown blocks until all wallet goroutines have finished executing.
func (w *Wallet) WaitForShutdown() {
	w.wg.Wait()
}

func (w *Wallet) ledgerEventHandler(sub *ledger.Subscription) {
	defer w.wg.Done()
	defer sub.Cancel()

	quit := w.quitChan()
	for {
		select {
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			w.handleLedgerEvent(e, quit)

		case <-w.reorged:
			w.notifyBalance(quit)

		case <-quit:
			return
		}
	}
}

func (w *Wallet) handleLedgerEvent(e ledger.Event, quit <-chan struct{}) {
	switch e := e.(type) {
	case ledger.TransactionAdded:
		log.Debugf("Transaction %v added", e.TxID)
		w.notifyRelevantTx(e, quit)
		w.notifyBalance(quit)

	case ledger.TransactionVerified:
		log.Debugf("Transaction %v verified at height %d", e.TxID,
			e.Mined.Height)
		w.notifyBalance(quit)

	case ledger.IslockVerified:
		log.Debugf("Transaction %v instantly locked", e.TxID)
		w.notifyBalance(quit)

	case ledger.HistoryChanged:
		log.Tracef("History of %s changed", e.Address)
	}
}

// ListenBalance returns a channel that passes the wallet balance whenever
// it may have changed.  This channel must be read, or the wallet stops
// processing ledger events.
//
// If this is called twice, ErrDuplicateListen is returned.
func (w *Wallet) ListenBalance() (<-chan ledger.Balance, error) {
	defer w.notificationMu.Unlock()
	w.notificationMu.Lock()

	if w.balanceChanges != nil {
		return nil, ErrDuplicateListen
	}
	w.balanceChanges = make(chan ledger.Balance)
	return w.balanceChanges, nil
}

// ListenRelevantTxs returns a channel that passes every transaction newly
// stored by the ledger.  This channel must be read, or the wallet stops
// processing ledger events.
//
// If this is called twice, ErrDuplicateListen is returned.
func (w *Wallet) ListenRelevantTxs() (<-chan ledger.TransactionAdded, error) {
	defer w.notificationMu.Unlock()
	w.notificationMu.Lock()

	if w.relevantTxs != nil {
		return nil, ErrDuplicateListen
	}
	w.relevantTxs = make(chan ledger.TransactionAdded)
	return w.relevantTxs, nil
}

func (w *Wallet) notifyBalance(quit <-chan struct{}) {
	w.notificationMu.Lock()
	c := w.balanceChanges
	w.notificationMu.Unlock()
	if c == nil {
		return
	}

	bal, err := w.ledger.GetBalance(nil, nil, nil)
	if err != nil {
		log.Errorf("Unable to compute balance: %v", err)
		return
	}
	select {
	case c <- bal:
	case <-quit:
	}
}

func (w *Wallet) notifyRelevantTx(e ledger.TransactionAdded,
	quit <-chan struct{}) {

	w.notificationMu.Lock()
	c := w.relevantTxs
	w.notificationMu.Unlock()
	if c == nil {
		return
	}

	select {
	case c <- e:
	case <-quit:
	}
}

// TxHeight returns how firmly txid is mined.
func (w *Wallet) TxHeight(txid chainhash.Hash) (ledger.TxMinedInfo, error) {
	return w.ledger.GetTxHeight(nil, txid)
}
