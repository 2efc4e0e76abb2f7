package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinc/internal/core"
)

func TestWatcherSwitchesScopeWithoutStaleDelivery(t *testing.T) {
	s := newStore()
	insert(t, s, "u1", "March", "Salary", "100", core.Income)
	insert(t, s, "u1", "April", "Rent", "900", core.Expense)
	h := NewHub(s)
	startHub(t, h)

	w := h.Watch()
	defer w.Close()

	march := Scope{Owner: "u1", Month: "March"}
	april := Scope{Owner: "u1", Month: "April"}

	require.NoError(t, w.SetScope(march))
	snap := recv(t, w.Snapshots())
	assert.Equal(t, march, snap.Scope)
	assert.False(t, w.Loading())

	require.NoError(t, w.SetScope(april))
	assert.Equal(t, 1, h.Subscribers(), "old feed torn down before the new one")

	// A change in the abandoned scope must not reach the viewer.
	insert(t, s, "u1", "March", "Bonus", "50", core.Income)
	h.Notify(context.Background(), march)

	snap = recv(t, w.Snapshots())
	assert.Equal(t, april, snap.Scope)
	require.Len(t, snap.Transactions, 1)
	assert.Equal(t, "Rent", snap.Transactions[0].Description)
	assertQuiet(t, w.Snapshots())
}

func TestWatcherSameScopeIsNoop(t *testing.T) {
	h := NewHub(newStore())
	startHub(t, h)

	w := h.Watch()
	defer w.Close()

	scope := Scope{Owner: "u1", Month: "March"}
	require.NoError(t, w.SetScope(scope))
	recv(t, w.Snapshots())

	require.NoError(t, w.SetScope(scope))
	assert.Equal(t, 1, h.Subscribers())
	assertQuiet(t, w.Snapshots())
}

func TestWatcherWithoutOwnerIsEmpty(t *testing.T) {
	s := newStore()
	insert(t, s, "u1", "March", "Salary", "100", core.Income)
	h := NewHub(s)
	startHub(t, h)

	w := h.Watch()
	defer w.Close()

	require.NoError(t, w.SetScope(Scope{Owner: "u1", Month: "March"}))
	recv(t, w.Snapshots())

	// Signing out drops the subscription and clears the view.
	require.NoError(t, w.SetScope(Scope{Month: "March"}))
	snap := recv(t, w.Snapshots())
	assert.Empty(t, snap.Transactions)
	assert.True(t, snap.Summary.Balance.IsZero())
	assert.False(t, w.Loading())
	assert.Equal(t, 0, h.Subscribers())
}

func TestWatcherClose(t *testing.T) {
	h := NewHub(newStore())
	startHub(t, h)

	w := h.Watch()
	require.NoError(t, w.SetScope(Scope{Owner: "u1", Month: "March"}))
	recv(t, w.Snapshots())

	w.Close()
	w.Close()
	_, ok := <-w.Snapshots()
	assert.False(t, ok)
	assert.Equal(t, 0, h.Subscribers())
	assert.ErrorIs(t, w.SetScope(Scope{Owner: "u1", Month: "April"}), ErrClosed)
}
