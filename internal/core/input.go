package core

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Form field names, shared by validation errors and the HTTP layer.
const (
	FieldDescription  = "description"
	FieldAmount       = "amount"
	FieldType         = "type"
	FieldIsPaid       = "isPaid"
	FieldAccount      = "account"
	FieldCard         = "card"
	FieldInstallments = "installments"
	FieldMonth        = "month"
)

// TransactionInput carries raw, unvalidated values from a submitted form.
type TransactionInput struct {
	Description  string
	Amount       string
	Type         string
	IsPaid       string
	Account      string
	Card         string
	Installments string
	Month        string
	UserID       string
}

// FieldErrors maps a field name to its validation messages.
type FieldErrors map[string][]string

func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

func (fe FieldErrors) Empty() bool {
	return len(fe) == 0
}

// ParsePaidFlag reports whether a checkbox style value means "paid".
func ParsePaidFlag(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	return v == "true" || v == "on"
}

// ValidateTransactionInput checks description, then amount, then type, and
// builds a Transaction on success. Every failing field is reported. The ID
// and CreatedAt are left for the store to assign. A blank month resolves to
// the month of now.
func ValidateTransactionInput(in TransactionInput, now time.Time) (Transaction, FieldErrors) {
	errs := FieldErrors{}

	desc := strings.TrimSpace(in.Description)
	if utf8.RuneCountInString(desc) < MinDescriptionLength {
		errs.Add(FieldDescription, "Description must be at least 2 characters.")
	}

	amount, err := ParseAmount(in.Amount)
	if err != nil {
		errs.Add(FieldAmount, "Amount must be a positive number.")
	}

	typ, err := ParseTransactionType(strings.TrimSpace(in.Type))
	if err != nil {
		errs.Add(FieldType, "Type must be income or expense.")
	}

	if !errs.Empty() {
		return Transaction{}, errs
	}

	return Transaction{
		Description:  desc,
		Amount:       amount,
		Type:         typ,
		IsPaid:       ParsePaidFlag(in.IsPaid),
		Account:      strings.TrimSpace(in.Account),
		Card:         strings.TrimSpace(in.Card),
		Installments: strings.TrimSpace(in.Installments),
		Month:        ResolveMonth(in.Month, now),
		UserID:       in.UserID,
	}, nil
}
