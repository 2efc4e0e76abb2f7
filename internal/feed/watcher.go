package feed

import (
	"sync"
	"sync/atomic"

	"coinc/internal/core"
)

// Watcher follows one viewer across scope changes. Switching scope closes
// the previous subscription before the next one opens, and snapshots of an
// abandoned scope are never forwarded afterwards.
type Watcher struct {
	hub *Hub
	out chan Snapshot

	mu      sync.Mutex
	sub     *Subscription
	scope   Scope
	closed  bool
	gen     atomic.Uint64
	loading atomic.Bool
	wg      sync.WaitGroup
}

// Watch returns a Watcher with no scope. Call SetScope to start it.
func (h *Hub) Watch() *Watcher {
	return &Watcher{hub: h, out: make(chan Snapshot, 1)}
}

// Snapshots is closed by Close.
func (w *Watcher) Snapshots() <-chan Snapshot { return w.out }

// Loading is true between SetScope and the first snapshot of that scope.
func (w *Watcher) Loading() bool { return w.loading.Load() }

// Scope returns the active scope.
func (w *Watcher) Scope() Scope {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.scope
}

// SetScope switches the watcher to scope. Setting the current scope again is
// a no-op. An absent owner yields a single empty snapshot and no subscription.
func (w *Watcher) SetScope(scope Scope) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.sub != nil && w.scope == scope {
		return nil
	}

	w.teardown()
	w.scope = scope

	if scope.Owner == "" {
		w.loading.Store(false)
		w.push(Snapshot{Scope: scope, Transactions: []core.Transaction{}, Summary: core.Aggregate(nil), At: w.hub.now()})
		return nil
	}

	sub, err := w.hub.Subscribe(scope)
	if err != nil {
		return err
	}
	w.sub = sub
	w.loading.Store(true)
	gen := w.gen.Load()
	w.wg.Add(1)
	go w.forward(sub, gen)
	return nil
}

// Close stops the watcher and closes Snapshots.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.teardown()
	close(w.out)
}

func (w *Watcher) forward(sub *Subscription, gen uint64) {
	defer w.wg.Done()
	for snap := range sub.C() {
		if w.gen.Load() != gen {
			return
		}
		w.loading.Store(false)
		w.push(snap)
	}
}

// teardown runs with w.mu held.
func (w *Watcher) teardown() {
	w.gen.Add(1)
	if w.sub != nil {
		w.sub.Close()
		w.sub = nil
	}
	w.wg.Wait()
	// Drop anything the old forwarder left behind.
	select {
	case <-w.out:
	default:
	}
}

func (w *Watcher) push(snap Snapshot) {
	select {
	case w.out <- snap:
	default:
		select {
		case <-w.out:
		default:
		}
		select {
		case w.out <- snap:
		default:
		}
	}
}
