package http

import (
	"strings"

	"coinc/internal/auth"
	"coinc/internal/core"
	"coinc/internal/feed"
	"coinc/internal/format"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// row is one rendered table line.
type row struct {
	ID           string
	Description  string
	Amount       string
	Income       bool
	IsPaid       bool
	Account      string
	Card         string
	Installments string
}

// monthView is the data of the summary cards and the table.
type monthView struct {
	Month    string
	Income   string
	Expenses string
	Balance  string
	Negative bool
	Rows     []row
}

type pageView struct {
	User   auth.User
	Month  string
	Months []string
	Types  []core.TransactionType
	View   monthView
	Error  string
}

func newMonthView(snap feed.Snapshot, money *format.Money) monthView {
	v := monthView{
		Month:    snap.Scope.Month,
		Income:   money.Format(snap.Summary.TotalIncome),
		Expenses: money.Format(snap.Summary.TotalExpenses),
		Balance:  money.Format(snap.Summary.Balance),
		Negative: snap.Summary.Balance.IsNegative(),
		Rows:     make([]row, 0, len(snap.Transactions)),
	}
	for _, t := range snap.Transactions {
		v.Rows = append(v.Rows, row{
			ID:           t.ID,
			Description:  t.Description,
			Amount:       money.Signed(t),
			Income:       t.Type == core.Income,
			IsPaid:       t.IsPaid,
			Account:      t.Account,
			Card:         t.Card,
			Installments: t.Installments,
		})
	}
	return v
}

// snapshotJSON is the wire form of a snapshot on /api/transactions and /ws.
type snapshotJSON struct {
	Month        string            `json:"month"`
	Seq          uint64            `json:"seq"`
	Loading      bool              `json:"loading"`
	Summary      summaryJSON       `json:"summary"`
	Transactions []transactionJSON `json:"transactions"`
}

type summaryJSON struct {
	TotalIncome   string `json:"totalIncome"`
	TotalExpenses string `json:"totalExpenses"`
	Balance       string `json:"balance"`
	Display       struct {
		TotalIncome   string `json:"totalIncome"`
		TotalExpenses string `json:"totalExpenses"`
		Balance       string `json:"balance"`
	} `json:"display"`
}

type transactionJSON struct {
	ID           string `json:"id"`
	Description  string `json:"description"`
	Amount       string `json:"amount"`
	Display      string `json:"display"`
	Type         string `json:"type"`
	IsPaid       bool   `json:"isPaid"`
	Account      string `json:"account,omitempty"`
	Card         string `json:"card,omitempty"`
	Installments string `json:"installments,omitempty"`
	Month        string `json:"month"`
	CreatedAt    string `json:"createdAt"`
}

func newSnapshotJSON(snap feed.Snapshot, money *format.Money, loading bool) snapshotJSON {
	out := snapshotJSON{
		Month:        snap.Scope.Month,
		Seq:          snap.Seq,
		Loading:      loading,
		Transactions: make([]transactionJSON, 0, len(snap.Transactions)),
	}
	out.Summary.TotalIncome = snap.Summary.TotalIncome.StringFixed(2)
	out.Summary.TotalExpenses = snap.Summary.TotalExpenses.StringFixed(2)
	out.Summary.Balance = snap.Summary.Balance.StringFixed(2)
	out.Summary.Display.TotalIncome = money.Format(snap.Summary.TotalIncome)
	out.Summary.Display.TotalExpenses = money.Format(snap.Summary.TotalExpenses)
	out.Summary.Display.Balance = money.Format(snap.Summary.Balance)

	for _, t := range snap.Transactions {
		out.Transactions = append(out.Transactions, transactionJSON{
			ID:           t.ID,
			Description:  t.Description,
			Amount:       t.Amount.StringFixed(2),
			Display:      money.Signed(t),
			Type:         string(t.Type),
			IsPaid:       t.IsPaid,
			Account:      t.Account,
			Card:         t.Card,
			Installments: t.Installments,
			Month:        t.Month,
			CreatedAt:    t.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	return out
}
