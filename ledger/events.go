// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"context"
	"sync"

	"github.com/axerunners/axewallet/txcodec"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Event is a notification about a change of the ledger.  It is one of
// TransactionAdded, TransactionVerified, IslockVerified or HistoryChanged.
type Event interface {
	event()
}

// TransactionAdded is sent when a transaction the network knows about is
// stored for the first time, or when a local transaction shows up in the
// history of an address.
type TransactionAdded struct {
	TxID chainhash.Hash
	Tx   *txcodec.Tx
}

// TransactionVerified is sent when the merkle proof of a transaction was
// checked.
type TransactionVerified struct {
	TxID  chainhash.Hash
	Mined TxMinedInfo
}

// IslockVerified is sent when an instant send lock for a wallet transaction
// was accepted.
type IslockVerified struct {
	TxID chainhash.Hash
}

// HistoryChanged is sent when the local history of a watched address
// changed.
type HistoryChanged struct {
	Address string
}

func (TransactionAdded) event()    {}
func (TransactionVerified) event() {}
func (IslockVerified) event()      {}
func (HistoryChanged) event()      {}

// Subscription delivers ledger events in the order the ledger made the
// changes.  Events queue without bound until they are read, so the ledger
// never waits for a subscriber.
type Subscription struct {
	id      uint64
	enqueue chan Event
	dequeue chan Event

	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup

	unsubscribe func(id uint64)
}

func newSubscription(id uint64, unsubscribe func(uint64)) *Subscription {
	s := &Subscription{
		id:          id,
		enqueue:     make(chan Event),
		dequeue:     make(chan Event),
		quit:        make(chan struct{}),
		unsubscribe: unsubscribe,
	}
	s.wg.Add(1)
	go s.queueHandler()
	return s
}

// Events returns the channel events are delivered on.  It is closed once the
// subscription is canceled.
func (s *Subscription) Events() <-chan Event {
	return s.dequeue
}

// Cancel stops the subscription.  Undelivered events are dropped.
func (s *Subscription) Cancel() {
	s.quitOnce.Do(func() {
		s.unsubscribe(s.id)
		close(s.quit)
	})
	s.wg.Wait()
}

func (s *Subscription) send(e Event) {
	select {
	case s.enqueue <- e:
	case <-s.quit:
	}
}

// queueHandler moves events from enqueue to dequeue, buffering as many as
// the reader falls behind.
func (s *Subscription) queueHandler() {
	defer s.wg.Done()
	defer close(s.dequeue)

	var (
		queue   []Event
		next    Event
		dequeue chan Event
	)
	for {
		select {
		case e := <-s.enqueue:
			if len(queue) == 0 {
				next = e
				dequeue = s.dequeue
			}
			queue = append(queue, e)

		case dequeue <- next:
			queue[0] = nil
			queue = queue[1:]
			if len(queue) != 0 {
				next = queue[0]
			} else {
				next = nil
				dequeue = nil
			}

		case <-s.quit:
			return
		}
	}
}

// notifier fans events out to subscriptions and wakes waiters on address
// history changes.
type notifier struct {
	mu      sync.Mutex
	nextID  uint64
	subs    map[uint64]*Subscription
	changed map[string]chan struct{}
}

func newNotifier() *notifier {
	return &notifier{
		subs:    make(map[uint64]*Subscription),
		changed: make(map[string]chan struct{}),
	}
}

func (n *notifier) subscribe() *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	s := newSubscription(n.nextID, n.remove)
	n.subs[s.id] = s
	return s
}

func (n *notifier) remove(id uint64) {
	n.mu.Lock()
	delete(n.subs, id)
	n.mu.Unlock()
}

func (n *notifier) publish(e Event) {
	n.mu.Lock()
	subs := make([]*Subscription, 0, len(n.subs))
	for _, s := range n.subs {
		subs = append(subs, s)
	}
	n.mu.Unlock()

	for _, s := range subs {
		s.send(e)
	}
}

// markChanged wakes everyone waiting on addr.  The signal is edge
// triggered: later waiters wait for the next change.
func (n *notifier) markChanged(addr string) {
	n.mu.Lock()
	if ch, ok := n.changed[addr]; ok {
		close(ch)
		delete(n.changed, addr)
	}
	n.mu.Unlock()

	n.publish(HistoryChanged{Address: addr})
}

func (n *notifier) wait(ctx context.Context, addr string) error {
	n.mu.Lock()
	ch, ok := n.changed[addr]
	if !ok {
		ch = make(chan struct{})
		n.changed[addr] = ch
	}
	n.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
