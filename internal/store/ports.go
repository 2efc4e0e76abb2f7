// Package store defines the ports every transaction backend implements.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/gofrs/uuid/v5"

	"coinc/internal/core"
)

// Ports for outbound adapters.
type (
	// Inserter persists a validated transaction. The store assigns ID and
	// CreatedAt and returns the stored record.
	Inserter interface {
		InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	}

	// Deleter removes a record owned by owner. Deleting an id that does not
	// exist is a no-op.
	Deleter interface {
		DeleteTransaction(ctx context.Context, owner, id string) error
	}

	// Lister returns the records of one owner and month, newest first.
	Lister interface {
		ListTransactions(ctx context.Context, owner, month string) ([]core.Transaction, error)
	}

	// Store is the full set of operations a backend provides.
	Store interface {
		Inserter
		Deleter
		Lister
	}

	// Pinger is implemented by backends that can report readiness.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Clock returns the server time used for CreatedAt.
type Clock func() time.Time

// UTCNow is the default Clock.
func UTCNow() time.Time {
	return time.Now().UTC()
}

// NewID returns a fresh record identifier.
func NewID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// SortNewestFirst orders txs by CreatedAt descending, then ID descending.
func SortNewestFirst(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].CreatedAt.After(txs[j].CreatedAt)
		}
		return txs[i].ID > txs[j].ID
	})
}
