package memory

import (
	"context"
	"fmt"
	"sync"

	"coinc/internal/core"
	"coinc/internal/store"
)

// Store keeps transactions in process memory. It is the default backend for
// local runs and the fixture for tests.
type Store struct {
	mu    sync.Mutex
	now   store.Clock
	items map[string]core.Transaction
}

type Option func(*Store)

// WithClock overrides the time source used for CreatedAt.
func WithClock(c store.Clock) Option {
	return func(s *Store) { s.now = c }
}

func New(opts ...Option) *Store {
	s := &Store{now: store.UTCNow, items: make(map[string]core.Transaction)}
	for _, o := range opts {
		o(s)
	}
	return s
}

// InsertTransaction stores t under a new ID with a server timestamp.
func (s *Store) InsertTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	id, err := store.NewID()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("generate id: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = id
	t.CreatedAt = s.now()
	s.items[id] = t
	return t, nil
}

// DeleteTransaction removes id if owner holds it.
func (s *Store) DeleteTransaction(_ context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.items[id]; ok && t.UserID == owner {
		delete(s.items, id)
	}
	return nil
}

// ListTransactions returns a copy of the matching records, newest first.
func (s *Store) ListTransactions(_ context.Context, owner, month string) ([]core.Transaction, error) {
	s.mu.Lock()
	out := make([]core.Transaction, 0)
	for _, t := range s.items {
		if t.UserID == owner && t.Month == month {
			out = append(out, t)
		}
	}
	s.mu.Unlock()
	store.SortNewestFirst(out)
	return out, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
