package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinc/internal/core"
	"coinc/internal/store/memory"
)

const waitFor = 2 * time.Second

func newStore() *memory.Store {
	cur := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	return memory.New(memory.WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	}))
}

func insert(t *testing.T, s *memory.Store, owner, month, desc, amount string, typ core.TransactionType) core.Transaction {
	t.Helper()
	rec, err := s.InsertTransaction(context.Background(), core.Transaction{
		Description: desc,
		Amount:      decimal.RequireFromString(amount),
		Type:        typ,
		Month:       month,
		UserID:      owner,
	})
	require.NoError(t, err)
	return rec
}

func startHub(t *testing.T, h *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func recv(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "channel closed")
		return snap
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func assertQuiet(t *testing.T, ch <-chan Snapshot) {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if ok {
			t.Fatalf("unexpected snapshot for %+v", snap.Scope)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

// gatedLister blocks loads until released and can be switched to fail.
type gatedLister struct {
	inner *memory.Store
	gate  chan struct{}
	fail  atomic.Bool
}

func (g *gatedLister) ListTransactions(ctx context.Context, owner, month string) ([]core.Transaction, error) {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if g.fail.Load() {
		return nil, errors.New("store unavailable")
	}
	return g.inner.ListTransactions(ctx, owner, month)
}

func TestSubscribeRequiresOwner(t *testing.T) {
	h := NewHub(newStore())
	_, err := h.Subscribe(Scope{Month: "March"})
	assert.ErrorIs(t, err, ErrNoOwner)
	assert.Equal(t, 0, h.Subscribers())
}

func TestInitialSnapshotAndLoading(t *testing.T) {
	s := newStore()
	first := insert(t, s, "u1", "March", "Salary", "100", core.Income)
	second := insert(t, s, "u1", "March", "Coffee", "4.50", core.Expense)
	insert(t, s, "u1", "April", "Other month", "1", core.Income)

	gl := &gatedLister{inner: s, gate: make(chan struct{})}
	h := NewHub(gl)
	startHub(t, h)

	sub, err := h.Subscribe(Scope{Owner: "u1", Month: "March"})
	require.NoError(t, err)
	defer sub.Close()

	assert.True(t, sub.Loading(), "loading until first snapshot")
	close(gl.gate)

	snap := recv(t, sub.C())
	assert.False(t, sub.Loading())
	require.Len(t, snap.Transactions, 2)
	assert.Equal(t, second.ID, snap.Transactions[0].ID, "newest first")
	assert.Equal(t, first.ID, snap.Transactions[1].ID)
	assert.True(t, snap.Summary.Balance.Equal(decimal.RequireFromString("95.5")))
}

func TestNotifyDeliversFullSnapshot(t *testing.T) {
	s := newStore()
	h := NewHub(s)
	startHub(t, h)

	scope := Scope{Owner: "u1", Month: "March"}
	sub, err := h.Subscribe(scope)
	require.NoError(t, err)
	defer sub.Close()

	empty := recv(t, sub.C())
	assert.Empty(t, empty.Transactions)
	assert.True(t, empty.Summary.Balance.IsZero())

	insert(t, s, "u1", "March", "Coffee", "4.50", core.Expense)
	h.Notify(context.Background(), scope)

	snap := recv(t, sub.C())
	require.Len(t, snap.Transactions, 1)
	assert.True(t, snap.Summary.TotalExpenses.Equal(decimal.RequireFromString("4.50")))
	assert.True(t, snap.Summary.Balance.Equal(decimal.RequireFromString("-4.50")))
	assert.Greater(t, snap.Seq, empty.Seq)
}

func TestNotifyOtherScopeIsIgnored(t *testing.T) {
	s := newStore()
	h := NewHub(s)
	startHub(t, h)

	sub, err := h.Subscribe(Scope{Owner: "u1", Month: "March"})
	require.NoError(t, err)
	defer sub.Close()
	recv(t, sub.C())

	h.Notify(context.Background(), Scope{Owner: "u2", Month: "March"})
	h.Notify(context.Background(), Scope{Owner: "u1", Month: "April"})
	assertQuiet(t, sub.C())
}

func TestNotifyOwnerRefreshesEveryMonth(t *testing.T) {
	s := newStore()
	h := NewHub(s)
	startHub(t, h)

	march, err := h.Subscribe(Scope{Owner: "u1", Month: "March"})
	require.NoError(t, err)
	defer march.Close()
	april, err := h.Subscribe(Scope{Owner: "u1", Month: "April"})
	require.NoError(t, err)
	defer april.Close()
	recv(t, march.C())
	recv(t, april.C())

	h.NotifyOwner(context.Background(), "u1")
	recv(t, march.C())
	recv(t, april.C())
}

func TestCloseStopsDelivery(t *testing.T) {
	s := newStore()
	h := NewHub(s)
	startHub(t, h)

	scope := Scope{Owner: "u1", Month: "March"}
	sub, err := h.Subscribe(scope)
	require.NoError(t, err)
	recv(t, sub.C())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, h.Subscribers())

	h.Notify(context.Background(), scope)
	_, ok := <-sub.C()
	assert.False(t, ok, "closed subscription channel")
}

func TestLoadFailureKeepsPreviousState(t *testing.T) {
	s := newStore()
	gl := &gatedLister{inner: s, gate: make(chan struct{})}
	close(gl.gate)
	h := NewHub(gl)
	startHub(t, h)

	scope := Scope{Owner: "u1", Month: "March"}
	sub, err := h.Subscribe(scope)
	require.NoError(t, err)
	defer sub.Close()
	recv(t, sub.C())

	gl.fail.Store(true)
	h.Notify(context.Background(), scope)
	assertQuiet(t, sub.C())

	gl.fail.Store(false)
	h.Notify(context.Background(), scope)
	recv(t, sub.C())
}

func TestRunCancelClosesSubscriptions(t *testing.T) {
	h := NewHub(newStore())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	sub, err := h.Subscribe(Scope{Owner: "u1", Month: "March"})
	require.NoError(t, err)
	recv(t, sub.C())

	cancel()
	require.NoError(t, <-done)

	_, ok := <-sub.C()
	assert.False(t, ok)
	_, err = h.Subscribe(Scope{Owner: "u1", Month: "March"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestChangeHookSeesEveryNotification(t *testing.T) {
	var mu sync.Mutex
	var seen []Scope
	h := NewHub(newStore(), WithChangeHook(func(s Scope) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	}))

	h.Notify(context.Background(), Scope{Owner: "u1", Month: "March"})
	h.NotifyOwner(context.Background(), "u2")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Scope{{Owner: "u1", Month: "March"}, {Owner: "u2"}}, seen)
}

func TestHubLoadWithoutOwnerIsEmpty(t *testing.T) {
	h := NewHub(newStore())
	snap, err := h.Load(context.Background(), Scope{Month: "March"})
	require.NoError(t, err)
	assert.Empty(t, snap.Transactions)
	assert.True(t, snap.Summary.TotalIncome.IsZero())
}

// loopRelay connects hubs in one process the way Redis connects instances.
type loopRelay struct {
	mu        sync.Mutex
	listeners []func(Scope)
	joined    chan struct{}
}

func newLoopRelay() *loopRelay {
	return &loopRelay{joined: make(chan struct{}, 8)}
}

func (r *loopRelay) Publish(_ context.Context, s Scope) error {
	r.mu.Lock()
	ls := append([]func(Scope){}, r.listeners...)
	r.mu.Unlock()
	for _, fn := range ls {
		fn(s)
	}
	return nil
}

func (r *loopRelay) Listen(ctx context.Context, fn func(Scope)) error {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
	r.joined <- struct{}{}
	<-ctx.Done()
	return nil
}

func TestRelayReachesOtherHub(t *testing.T) {
	s := newStore()
	relay := newLoopRelay()
	a := NewHub(s, WithRelay(relay))
	b := NewHub(s, WithRelay(relay))
	startHub(t, a)
	startHub(t, b)
	for i := 0; i < 2; i++ {
		select {
		case <-relay.joined:
		case <-time.After(waitFor):
			t.Fatal("relay listener did not start")
		}
	}

	scope := Scope{Owner: "u1", Month: "March"}
	sub, err := b.Subscribe(scope)
	require.NoError(t, err)
	defer sub.Close()
	recv(t, sub.C())

	insert(t, s, "u1", "March", "Salary", "100", core.Income)
	a.Notify(context.Background(), scope)

	snap := recv(t, sub.C())
	assert.Len(t, snap.Transactions, 1)
}
