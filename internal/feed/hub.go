// Package feed delivers live snapshots of one owner's records for one month.
//
// A Hub is a long-lived task that owns the change feed. Mutations and relay
// messages mark scopes as dirty; the hub reloads each dirty scope once and
// publishes the full, newest-first record set to every subscription of that
// scope. Subscriptions never see diffs.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"coinc/internal/core"
	applog "coinc/internal/log"
	"coinc/internal/store"
)

var (
	ErrNoOwner = errors.New("feed: no owner identity")
	ErrClosed  = errors.New("feed: hub closed")
)

// Scope identifies one live query. An empty Month in a notification means
// every month of Owner.
type Scope struct {
	Owner string `json:"owner"`
	Month string `json:"month"`
}

// Snapshot is the complete record set of a scope at one point in time.
type Snapshot struct {
	Scope        Scope
	Transactions []core.Transaction
	Summary      core.Summary
	Seq          uint64
	At           time.Time
}

// Relay carries change notifications between server instances.
type Relay interface {
	Publish(ctx context.Context, s Scope) error
	Listen(ctx context.Context, fn func(Scope)) error
}

type Option func(*Hub)

// WithRelay fans notifications out to other instances.
func WithRelay(r Relay) Option {
	return func(h *Hub) { h.relay = r }
}

// WithLoadTimeout bounds each snapshot load.
func WithLoadTimeout(d time.Duration) Option {
	return func(h *Hub) { h.loadTimeout = d }
}

// WithLogger sets the hub logger.
func WithLogger(l *applog.Logger) Option {
	return func(h *Hub) { h.logger = l.WithComponent(applog.ComponentFeed) }
}

// WithChangeHook registers fn to run on every notification, local or relayed.
func WithChangeHook(fn func(Scope)) Option {
	return func(h *Hub) { h.hooks = append(h.hooks, fn) }
}

type Hub struct {
	lister      store.Lister
	relay       Relay
	logger      *applog.Logger
	loadTimeout time.Duration
	hooks       []func(Scope)
	now         func() time.Time

	mu      sync.Mutex
	subs    map[Scope]map[*Subscription]struct{}
	pending map[Scope]struct{}
	closed  bool

	wake chan struct{}
	seq  atomic.Uint64
}

func NewHub(lister store.Lister, opts ...Option) *Hub {
	h := &Hub{
		lister:      lister,
		logger:      applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentFeed),
		loadTimeout: 5 * time.Second,
		now:         time.Now,
		subs:        make(map[Scope]map[*Subscription]struct{}),
		pending:     make(map[Scope]struct{}),
		wake:        make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Run processes notifications until ctx is cancelled, then closes every
// subscription. It also runs the relay listener when one is configured.
func (h *Hub) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if h.relay != nil {
		g.Go(func() error {
			if err := h.relay.Listen(ctx, h.markDirty); err != nil && ctx.Err() == nil {
				return fmt.Errorf("relay listen: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-h.wake:
				h.flush(ctx)
			}
		}
	})
	err := g.Wait()
	h.shutdown()
	return err
}

// Subscribe opens a live feed for scope. The first snapshot is loaded
// asynchronously; until it arrives Loading reports true.
func (h *Hub) Subscribe(scope Scope) (*Subscription, error) {
	if scope.Owner == "" {
		return nil, ErrNoOwner
	}
	sub := newSubscription(h, scope)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	set, ok := h.subs[scope]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[scope] = set
	}
	set[sub] = struct{}{}
	h.pending[scope] = struct{}{}
	h.mu.Unlock()

	h.signal()
	h.logger.Debug("Subscription opened", applog.FieldUserID, scope.Owner, applog.FieldMonth, scope.Month)
	return sub, nil
}

// Load reads the current snapshot of scope without subscribing.
func (h *Hub) Load(ctx context.Context, scope Scope) (Snapshot, error) {
	if scope.Owner == "" {
		return Snapshot{Scope: scope, Summary: core.Aggregate(nil), At: h.now()}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, h.loadTimeout)
	defer cancel()
	txs, err := h.lister.ListTransactions(ctx, scope.Owner, scope.Month)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot (owner=%s, month=%s): %w", scope.Owner, scope.Month, err)
	}
	return Snapshot{
		Scope:        scope,
		Transactions: txs,
		Summary:      core.Aggregate(txs),
		Seq:          h.seq.Add(1),
		At:           h.now(),
	}, nil
}

// Notify reports that the records of scope changed. A blank month covers
// every month of the owner.
func (h *Hub) Notify(ctx context.Context, scope Scope) {
	h.markDirty(scope)
	if h.relay == nil {
		return
	}
	if err := h.relay.Publish(ctx, scope); err != nil {
		h.logger.WarnContext(ctx, "Relay publish failed, other instances will miss this change",
			applog.FieldError, err, applog.FieldUserID, scope.Owner, applog.FieldMonth, scope.Month)
	}
}

// NotifyOwner reports a change in an unknown month of owner.
func (h *Hub) NotifyOwner(ctx context.Context, owner string) {
	h.Notify(ctx, Scope{Owner: owner})
}

// Subscribers reports the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

func (h *Hub) markDirty(scope Scope) {
	for _, fn := range h.hooks {
		fn(scope)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	marked := false
	if scope.Month == "" {
		for s := range h.subs {
			if s.Owner == scope.Owner {
				h.pending[s] = struct{}{}
				marked = true
			}
		}
	} else if _, ok := h.subs[scope]; ok {
		h.pending[scope] = struct{}{}
		marked = true
	}
	h.mu.Unlock()

	if marked {
		h.signal()
	}
}

func (h *Hub) signal() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *Hub) flush(ctx context.Context) {
	h.mu.Lock()
	dirty := make([]Scope, 0, len(h.pending))
	for s := range h.pending {
		dirty = append(dirty, s)
	}
	h.pending = make(map[Scope]struct{})
	h.mu.Unlock()

	for _, s := range dirty {
		if ctx.Err() != nil {
			return
		}
		h.refresh(ctx, s)
	}
}

func (h *Hub) refresh(ctx context.Context, scope Scope) {
	h.mu.Lock()
	n := len(h.subs[scope])
	h.mu.Unlock()
	if n == 0 {
		return
	}

	snap, err := h.Load(ctx, scope)
	if err != nil {
		h.logger.ErrorContext(ctx, "Snapshot load failed, keeping previous state",
			applog.FieldError, err, applog.FieldUserID, scope.Owner, applog.FieldMonth, scope.Month)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[scope] {
		sub.deliver(snap)
	}
	h.logger.DebugContext(ctx, "Snapshot published",
		applog.FieldUserID, scope.Owner, applog.FieldMonth, scope.Month,
		applog.FieldSubscribers, len(h.subs[scope]), "records", len(snap.Transactions))
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sub.scope]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.scope)
	}
	sub.closeChannel()
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for scope, set := range h.subs {
		for sub := range set {
			sub.closeChannel()
		}
		delete(h.subs, scope)
	}
	h.pending = make(map[Scope]struct{})
}
