package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"coinc/internal/core"
	"coinc/internal/store"

	_ "modernc.org/sqlite"
)

const (
	insertTransactionSQL = `INSERT INTO transactions
    (id, description, amount, type, is_paid, account, card, installments, month, user_id, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	deleteTransactionSQL = `DELETE FROM transactions WHERE id = ? AND user_id = ?`

	listTransactionsSQL = `SELECT id, description, amount, type, is_paid, account, card, installments, month, user_id, created_at
    FROM transactions
    WHERE user_id = ? AND month = ?
    ORDER BY created_at DESC, id DESC`
)

type SQLiteRepository struct {
	db  *sql.DB
	now store.Clock
}

var _ store.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: store.UTCNow}, nil
}

// SetClock overrides the CreatedAt time source.
func (r *SQLiteRepository) SetClock(c store.Clock) {
	r.now = c
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InsertTransaction implements store.Inserter
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	id, err := store.NewID()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("generate id: %w", err)
	}
	t.ID = id
	t.CreatedAt = r.now()

	_, err = r.db.ExecContext(ctx, insertTransactionSQL,
		t.ID, t.Description, t.Amount.String(), string(t.Type), boolToInt(t.IsPaid),
		t.Account, t.Card, t.Installments, t.Month, t.UserID, t.CreatedAt.UnixNano())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"type", t.Type,
		"amount", t.Amount.String(),
		"month", t.Month)

	return t, nil
}

// DeleteTransaction implements store.Deleter
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx, deleteTransactionSQL, id, owner)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	slog.InfoContext(ctx, "Transaction delete executed", "id", id, "rows_affected", n)
	return nil
}

// ListTransactions implements store.Lister
func (r *SQLiteRepository) ListTransactions(ctx context.Context, owner, month string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, listTransactionsSQL, owner, month)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		var (
			t         core.Transaction
			amount    string
			typ       string
			isPaid    int64
			createdAt int64
		)
		if err := rows.Scan(&t.ID, &t.Description, &amount, &typ, &isPaid,
			&t.Account, &t.Card, &t.Installments, &t.Month, &t.UserID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount of %s: %w", t.ID, err)
		}
		t.Type = core.TransactionType(typ)
		t.IsPaid = isPaid != 0
		t.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
