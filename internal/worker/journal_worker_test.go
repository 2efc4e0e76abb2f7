package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinc/internal/amqp"
	"coinc/internal/core"
	"coinc/internal/sheets"
)

type fakeJournal struct {
	entries []sheets.Entry
	err     error
}

func (f *fakeJournal) AppendEntry(_ context.Context, e sheets.Entry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

func roundTrip(t *testing.T, evt *amqp.TransactionEvent) *amqp.TransactionEvent {
	t.Helper()
	body, err := evt.ToJSON()
	require.NoError(t, err)
	decoded, err := amqp.TransactionEventFromJSON(body)
	require.NoError(t, err)
	return decoded
}

func TestJournalWorkerCreatedEvent(t *testing.T) {
	journal := &fakeJournal{}
	w := NewJournalWorker(journal)
	at := time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return at }

	created := time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC)
	evt := roundTrip(t, amqp.NewCreatedEvent(core.Transaction{
		ID:          "tx-1",
		Description: "Salary",
		Amount:      decimal.RequireFromString("100"),
		Type:        core.Income,
		IsPaid:      true,
		Account:     "Main",
		Month:       "March",
		UserID:      "u1",
		CreatedAt:   created,
	}))

	require.NoError(t, w.HandleEvent(context.Background(), evt))
	require.Len(t, journal.entries, 1)

	e := journal.entries[0]
	assert.Equal(t, amqp.KeyTransactionCreated, e.Kind)
	assert.Equal(t, "tx-1", e.ID)
	assert.Equal(t, "u1", e.Owner)
	assert.Equal(t, "100.00", e.Amount)
	assert.Equal(t, "income", e.Type)
	assert.True(t, e.IsPaid)
	assert.True(t, e.CreatedAt.Equal(created))
	assert.Equal(t, at, e.RecordedAt)
}

func TestJournalWorkerDeletedEvent(t *testing.T) {
	journal := &fakeJournal{}
	w := NewJournalWorker(journal)

	evt := roundTrip(t, amqp.NewDeletedEvent("u1", "tx-1"))
	require.NoError(t, w.HandleEvent(context.Background(), evt))

	require.Len(t, journal.entries, 1)
	assert.Equal(t, amqp.KeyTransactionDeleted, journal.entries[0].Kind)
	assert.Empty(t, journal.entries[0].Description)
}

func TestJournalWorkerAppendFailure(t *testing.T) {
	w := NewJournalWorker(&fakeJournal{err: errors.New("quota exceeded")})

	err := w.HandleEvent(context.Background(), amqp.NewDeletedEvent("u1", "tx-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}
