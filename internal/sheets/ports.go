// Package sheets defines the spreadsheet journal that mirrors transaction
// events for bookkeeping outside the app.
package sheets

import (
	"context"
	"time"
)

// Entry is one journal row.
type Entry struct {
	Kind         string
	ID           string
	Owner        string
	Month        string
	Description  string
	Amount       string
	Type         string
	IsPaid       bool
	Account      string
	Card         string
	Installments string
	CreatedAt    time.Time
	RecordedAt   time.Time
}

// Header is the column order of Row.
var Header = []string{
	"Recorded At", "Event", "Transaction ID", "Owner", "Month", "Description",
	"Amount", "Type", "Paid", "Account", "Card", "Installments", "Created At",
}

// Row renders e in Header order. Timestamps are RFC 3339 UTC; a zero
// CreatedAt is left blank.
func (e Entry) Row() []any {
	created := ""
	if !e.CreatedAt.IsZero() {
		created = e.CreatedAt.UTC().Format(time.RFC3339)
	}
	return []any{
		e.RecordedAt.UTC().Format(time.RFC3339),
		e.Kind,
		e.ID,
		e.Owner,
		e.Month,
		e.Description,
		e.Amount,
		e.Type,
		e.IsPaid,
		e.Account,
		e.Card,
		e.Installments,
		created,
	}
}

// JournalWriter appends entries to the journal.
type JournalWriter interface {
	AppendEntry(ctx context.Context, e Entry) error
}
