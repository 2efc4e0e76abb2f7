package feed

import (
	"sync"
	"sync/atomic"
)

// Subscription receives snapshots of one scope. Only the latest undelivered
// snapshot is kept; an older pending one is replaced.
type Subscription struct {
	hub     *Hub
	scope   Scope
	ch      chan Snapshot
	loading atomic.Bool
	once    sync.Once
}

func newSubscription(h *Hub, scope Scope) *Subscription {
	s := &Subscription{hub: h, scope: scope, ch: make(chan Snapshot, 1)}
	s.loading.Store(true)
	return s
}

// C is closed once the subscription is closed or the hub stops.
func (s *Subscription) C() <-chan Snapshot { return s.ch }

func (s *Subscription) Scope() Scope { return s.scope }

// Loading is true until the first snapshot has been delivered.
func (s *Subscription) Loading() bool { return s.loading.Load() }

// Close unregisters the subscription. No snapshot is delivered after Close
// returns.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

// deliver runs with the hub lock held, so it never races closeChannel.
func (s *Subscription) deliver(snap Snapshot) {
	s.loading.Store(false)
	select {
	case s.ch <- snap:
	default:
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- snap:
		default:
		}
	}
}

// closeChannel runs with the hub lock held.
func (s *Subscription) closeChannel() {
	s.once.Do(func() { close(s.ch) })
}
