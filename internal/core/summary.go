package core

import "github.com/shopspring/decimal"

// Summary holds the totals for one month of records.
type Summary struct {
	TotalIncome   decimal.Decimal
	TotalExpenses decimal.Decimal
	Balance       decimal.Decimal
}

// Aggregate sums income and expenses with a single pass over txs.
// Records with an unknown type contribute to neither total.
func Aggregate(txs []Transaction) Summary {
	income := decimal.Zero
	expenses := decimal.Zero
	for _, t := range txs {
		switch t.Type {
		case Income:
			income = income.Add(t.Amount)
		case Expense:
			expenses = expenses.Add(t.Amount)
		}
	}
	return Summary{
		TotalIncome:   income,
		TotalExpenses: expenses,
		Balance:       income.Sub(expenses),
	}
}
