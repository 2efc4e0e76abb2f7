package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Description: "Coffee",
		Amount:      decimal.RequireFromString("4.50"),
		Type:        Expense,
		Month:       "March",
		UserID:      "u1",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		mutate func(*Transaction)
		want   error
	}{
		{func(t *Transaction) { t.Description = "a" }, ErrDescriptionTooShort},
		{func(t *Transaction) { t.Description = "  a  " }, ErrDescriptionTooShort},
		{func(t *Transaction) { t.Amount = decimal.Zero }, ErrInvalidAmount},
		{func(t *Transaction) { t.Amount = decimal.NewFromInt(-3) }, ErrInvalidAmount},
		{func(t *Transaction) { t.Type = "receita" }, ErrInvalidType},
		{func(t *Transaction) { t.UserID = "" }, ErrMissingOwner},
		{func(t *Transaction) { t.Month = " " }, ErrMissingMonth},
	}
	for i, tc := range cases {
		tr := good
		tc.mutate(&tr)
		if err := tr.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestSigned(t *testing.T) {
	in := Transaction{Amount: decimal.NewFromInt(10), Type: Income}
	out := Transaction{Amount: decimal.NewFromInt(10), Type: Expense}
	if !in.Signed().Equal(decimal.NewFromInt(10)) {
		t.Fatalf("income signed = %s", in.Signed())
	}
	if !out.Signed().Equal(decimal.NewFromInt(-10)) {
		t.Fatalf("expense signed = %s", out.Signed())
	}
}

func TestParseTransactionType(t *testing.T) {
	for _, s := range []string{"income", "expense"} {
		if _, err := ParseTransactionType(s); err != nil {
			t.Fatalf("%q expected ok, got %v", s, err)
		}
	}
	for _, s := range []string{"", "Income", "despesa", "expenses"} {
		if _, err := ParseTransactionType(s); err == nil {
			t.Fatalf("%q expected error", s)
		}
	}
}

func TestResolveMonth(t *testing.T) {
	now := time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC)
	if got := ResolveMonth("", now); got != "March" {
		t.Fatalf("default month = %q, want March", got)
	}
	if got := ResolveMonth("  July ", now); got != "July" {
		t.Fatalf("explicit month = %q, want July", got)
	}
	labels := MonthLabels()
	if len(labels) != 12 || labels[0] != "January" || labels[11] != "December" {
		t.Fatalf("unexpected labels %v", labels)
	}
}
