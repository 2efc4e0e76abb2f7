package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"coinc/internal/core"
)

// Routing keys, one per event kind.
const (
	KeyTransactionCreated = "transaction.created"
	KeyTransactionDeleted = "transaction.deleted"
)

// TransactionEvent describes a committed mutation. Deleted events carry only
// the identity fields.
type TransactionEvent struct {
	Kind         string    `json:"kind"`
	ID           string    `json:"id"`
	Owner        string    `json:"owner"`
	Month        string    `json:"month,omitempty"`
	Description  string    `json:"description,omitempty"`
	Amount       string    `json:"amount,omitempty"`
	Type         string    `json:"type,omitempty"`
	IsPaid       bool      `json:"isPaid,omitempty"`
	Account      string    `json:"account,omitempty"`
	Card         string    `json:"card,omitempty"`
	Installments string    `json:"installments,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewCreatedEvent builds the event for a stored transaction.
func NewCreatedEvent(t core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		Kind:         KeyTransactionCreated,
		ID:           t.ID,
		Owner:        t.UserID,
		Month:        t.Month,
		Description:  t.Description,
		Amount:       t.Amount.StringFixed(2),
		Type:         t.Type.String(),
		IsPaid:       t.IsPaid,
		Account:      t.Account,
		Card:         t.Card,
		Installments: t.Installments,
		CreatedAt:    t.CreatedAt,
		Timestamp:    time.Now(),
	}
}

func NewDeletedEvent(owner, id string) *TransactionEvent {
	return &TransactionEvent{
		Kind:      KeyTransactionDeleted,
		ID:        id,
		Owner:     owner,
		Timestamp: time.Now(),
	}
}

func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes and checks an event body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Kind {
	case KeyTransactionCreated, KeyTransactionDeleted:
	default:
		return nil, fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if e.ID == "" || e.Owner == "" {
		return nil, fmt.Errorf("event %s missing id or owner", e.Kind)
	}
	return &e, nil
}
