package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinc/internal/core"
	"coinc/internal/feed"
	applog "coinc/internal/log"
	"coinc/internal/store/memory"
)

var fixedNow = time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC)

type fakeWriter struct {
	mu        sync.Mutex
	inserts   int
	deletes   int
	failWith  error
	lastOwner string
}

func (f *fakeWriter) InsertTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.failWith != nil {
		return core.Transaction{}, f.failWith
	}
	t.ID = "tx-1"
	t.CreatedAt = fixedNow
	return t, nil
}

func (f *fakeWriter) DeleteTransaction(_ context.Context, owner, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	f.lastOwner = owner
	return f.failWith
}

type recordingNotifier struct {
	scopes []feed.Scope
	owners []string
}

func (n *recordingNotifier) Notify(_ context.Context, s feed.Scope) { n.scopes = append(n.scopes, s) }
func (n *recordingNotifier) NotifyOwner(_ context.Context, o string) { n.owners = append(n.owners, o) }

type recordingEvents struct {
	created []core.Transaction
	deleted []string
	err     error
}

func (e *recordingEvents) PublishCreated(_ context.Context, t core.Transaction) error {
	e.created = append(e.created, t)
	return e.err
}

func (e *recordingEvents) PublishDeleted(_ context.Context, _, id string) error {
	e.deleted = append(e.deleted, id)
	return e.err
}

func validInput() core.TransactionInput {
	return core.TransactionInput{
		Description: "Coffee",
		Amount:      "4,50",
		Type:        "expense",
		IsPaid:      "on",
		UserID:      "u1",
	}
}

func newService(w Writer) (*TransactionService, *recordingNotifier, *recordingEvents) {
	n := &recordingNotifier{}
	e := &recordingEvents{}
	svc := NewTransactionService(w, WithNotifier(n), WithEvents(e), WithClock(func() time.Time { return fixedNow }))
	return svc, n, e
}

func TestCreateCommits(t *testing.T) {
	w := &fakeWriter{}
	svc, n, e := newService(w)

	res := svc.Create(context.Background(), validInput())

	require.True(t, res.OK())
	assert.Equal(t, MsgAdded, res.Message)
	assert.Equal(t, []ActionState{StateIdle, StateValidating, StateWriting, StateCommitted}, res.Trace)
	require.NotNil(t, res.Transaction)
	assert.True(t, res.Transaction.Amount.Equal(decimal.RequireFromString("4.5")))
	assert.True(t, res.Transaction.IsPaid)
	assert.Equal(t, "March", res.Transaction.Month, "blank month defaults to the current one")
	assert.Equal(t, &feed.Scope{Owner: "u1", Month: "March"}, res.Changed)
	assert.Equal(t, []feed.Scope{{Owner: "u1", Month: "March"}}, n.scopes)
	assert.Len(t, e.created, 1)
}

func TestCreateRejectsWithoutWriting(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*core.TransactionInput)
		field  string
	}{
		{"short description", func(in *core.TransactionInput) { in.Description = "A" }, core.FieldDescription},
		{"zero amount", func(in *core.TransactionInput) { in.Amount = "0" }, core.FieldAmount},
		{"negative amount", func(in *core.TransactionInput) { in.Amount = "-3" }, core.FieldAmount},
		{"empty amount", func(in *core.TransactionInput) { in.Amount = "" }, core.FieldAmount},
		{"bad type", func(in *core.TransactionInput) { in.Type = "transfer" }, core.FieldType},
		{"no owner", func(in *core.TransactionInput) { in.UserID = "" }, "user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWriter{}
			svc, n, e := newService(w)
			in := validInput()
			tt.mutate(&in)

			res := svc.Create(context.Background(), in)

			assert.Equal(t, StateRejected, res.State)
			assert.Equal(t, MsgInvalidForm, res.Message)
			assert.Contains(t, res.FieldErrors, tt.field)
			assert.Nil(t, res.Changed)
			assert.Zero(t, w.inserts)
			assert.Empty(t, n.scopes)
			assert.Empty(t, e.created)
		})
	}
}

func TestCreateStoreFailure(t *testing.T) {
	w := &fakeWriter{failWith: errors.New("disk full")}
	svc, n, e := newService(w)

	res := svc.Create(context.Background(), validInput())

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, MsgAddFailed, res.Message)
	assert.Equal(t, []ActionState{StateIdle, StateValidating, StateWriting, StateFailed}, res.Trace)
	assert.Equal(t, 1, w.inserts, "no retry")
	assert.Empty(t, n.scopes)
	assert.Empty(t, e.created)
}

func TestCreatePublishFailureStillCommits(t *testing.T) {
	svc, _, e := newService(&fakeWriter{})
	e.err = errors.New("broker down")

	res := svc.Create(context.Background(), validInput())
	assert.True(t, res.OK())
}

func TestDeleteMissingID(t *testing.T) {
	w := &fakeWriter{}
	svc, n, _ := newService(w)

	for _, id := range []string{"", "   "} {
		res := svc.Delete(context.Background(), "u1", id)
		assert.Equal(t, StateRejected, res.State)
		assert.Equal(t, MsgMissingID, res.Message)
	}
	assert.Zero(t, w.deletes)
	assert.Empty(t, n.owners)
}

func TestDeleteRejectionsAreLogged(t *testing.T) {
	tests := []struct {
		name    string
		owner   string
		id      string
		message string
		logged  string
	}{
		{"missing id", "u1", "", MsgMissingID, "Delete rejected: missing transaction id"},
		{"missing owner", "", "tx-1", MsgDeleteFailed, "Delete rejected: no owner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := applog.New(applog.Config{Level: slog.LevelDebug, Format: "json", Output: &buf})
			w := &fakeWriter{}
			svc := NewTransactionService(w, WithLogger(logger))

			res := svc.Delete(context.Background(), tt.owner, tt.id)
			assert.Equal(t, StateRejected, res.State)
			assert.Equal(t, tt.message, res.Message)
			assert.Zero(t, w.deletes)
			assert.Contains(t, buf.String(), tt.logged)
			assert.Contains(t, buf.String(), `"level":"WARN"`)
		})
	}
}

func TestDeleteCommits(t *testing.T) {
	w := &fakeWriter{}
	svc, n, e := newService(w)

	res := svc.Delete(context.Background(), "u1", "tx-1")

	require.True(t, res.OK())
	assert.Equal(t, MsgDeleted, res.Message)
	assert.Equal(t, &feed.Scope{Owner: "u1"}, res.Changed)
	assert.Equal(t, "u1", w.lastOwner)
	assert.Equal(t, []string{"u1"}, n.owners)
	assert.Equal(t, []string{"tx-1"}, e.deleted)
}

func TestDeleteStoreFailure(t *testing.T) {
	w := &fakeWriter{failWith: errors.New("locked")}
	svc, n, _ := newService(w)

	res := svc.Delete(context.Background(), "u1", "tx-1")

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, MsgDeleteFailed, res.Message)
	assert.Empty(t, n.owners)
}

func TestActionsAgainstMemoryStore(t *testing.T) {
	st := memory.New()
	svc := NewTransactionService(st, WithClock(func() time.Time { return fixedNow }))

	in := validInput()
	in.Month = "April"
	created := svc.Create(context.Background(), in)
	require.True(t, created.OK())

	txs, err := st.ListTransactions(context.Background(), "u1", "April")
	require.NoError(t, err)
	require.Len(t, txs, 1)

	// Another owner cannot delete the record.
	other := svc.Delete(context.Background(), "u2", created.Transaction.ID)
	assert.True(t, other.OK())
	assert.Equal(t, 1, st.Len())

	deleted := svc.Delete(context.Background(), "u1", created.Transaction.ID)
	assert.True(t, deleted.OK())
	assert.Equal(t, 0, st.Len())

	again := svc.Delete(context.Background(), "u1", created.Transaction.ID)
	assert.True(t, again.OK(), "deleting a missing id is a no-op")
}
