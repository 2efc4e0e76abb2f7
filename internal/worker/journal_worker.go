// Package worker consumes transaction events and mirrors them elsewhere.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"coinc/internal/amqp"
	"coinc/internal/sheets"
)

// JournalWorker appends one journal row per transaction event.
type JournalWorker struct {
	journal sheets.JournalWriter
	now     func() time.Time
}

func NewJournalWorker(journal sheets.JournalWriter) *JournalWorker {
	return &JournalWorker{journal: journal, now: time.Now}
}

// HandleEvent is an amqp.Handler. An error requeues the message.
func (w *JournalWorker) HandleEvent(ctx context.Context, evt *amqp.TransactionEvent) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"kind", evt.Kind,
		"transaction_id", evt.ID)

	entry := EntryFromEvent(evt, w.now())
	if err := w.journal.AppendEntry(ctx, entry); err != nil {
		return fmt.Errorf("journal %s %s: %w", evt.Kind, evt.ID, err)
	}
	return nil
}

// EntryFromEvent maps an event onto a journal row stamped with at.
func EntryFromEvent(evt *amqp.TransactionEvent, at time.Time) sheets.Entry {
	return sheets.Entry{
		Kind:         evt.Kind,
		ID:           evt.ID,
		Owner:        evt.Owner,
		Month:        evt.Month,
		Description:  evt.Description,
		Amount:       evt.Amount,
		Type:         evt.Type,
		IsPaid:       evt.IsPaid,
		Account:      evt.Account,
		Card:         evt.Card,
		Installments: evt.Installments,
		CreatedAt:    evt.CreatedAt,
		RecordedAt:   at,
	}
}
