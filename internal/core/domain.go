package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// MinDescriptionLength is the minimum number of characters in a description.
const MinDescriptionLength = 2

type (
	TransactionType string

	Transaction struct {
		ID           string
		Description  string
		Amount       decimal.Decimal
		Type         TransactionType
		IsPaid       bool
		Account      string
		Card         string
		Installments string
		Month        string // partition label, not a calendar date
		UserID       string
		CreatedAt    time.Time
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrDescriptionTooShort = errors.New("description too short")
	ErrInvalidType         = errors.New("invalid transaction type")
	ErrMissingOwner        = errors.New("missing owner")
	ErrMissingMonth        = errors.New("missing month")
)

// ParseTransactionType accepts only the exact tag spellings.
func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(s); t {
	case Income, Expense:
		return t, nil
	default:
		return "", ErrInvalidType
	}
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (t TransactionType) String() string {
	return string(t)
}

// Signed returns the amount with the sign implied by the transaction type.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

func (t Transaction) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(t.Description)) < MinDescriptionLength {
		return ErrDescriptionTooShort
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(t.UserID) == "" {
		return ErrMissingOwner
	}
	if strings.TrimSpace(t.Month) == "" {
		return ErrMissingMonth
	}
	return nil
}
