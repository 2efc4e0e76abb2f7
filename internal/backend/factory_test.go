package backend

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinc/internal/amqp"
	"coinc/internal/config"
	"coinc/internal/core"
	applog "coinc/internal/log"
)

func quietLogger() *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Output = io.Discard
	return applog.New(cfg)
}

func TestFromAppConfig(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := FromAppConfig(nil)
		assert.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := FromAppConfig(&config.Config{DataBackend: "sheets"})
		assert.Error(t, err)
	})

	t.Run("copies sqlite and amqp settings", func(t *testing.T) {
		cfg, err := FromAppConfig(&config.Config{
			DataBackend:  "sqlite",
			SQLiteDBPath: "./data/x.db",
			AMQPURL:      "amqp://localhost",
			AMQPExchange: "coinc",
			AMQPQueue:    "journal",
		})
		require.NoError(t, err)
		assert.Equal(t, SQLiteBackend, cfg.Type)
		assert.Equal(t, "./data/x.db", cfg.SQLiteDBPath)
		assert.Equal(t, "journal", cfg.AMQPQueue)
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite with path", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"empty type", Config{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()

	for _, typ := range GetBackendTypes() {
		t.Run(typ.String(), func(t *testing.T) {
			f := NewFactory(quietLogger())
			res, err := f.CreateBackend(ctx, Config{
				Type:         typ,
				SQLiteDBPath: filepath.Join(t.TempDir(), "coinc.db"),
			})
			require.NoError(t, err)
			require.NotNil(t, res.Backend)
			assert.Nil(t, res.Events)
			if res.Cleanup != nil {
				t.Cleanup(func() { _ = res.Cleanup() })
			}

			require.NoError(t, res.Backend.Ping(ctx))
			saved, err := res.Backend.InsertTransaction(ctx, core.Transaction{
				UserID:      "u1",
				Description: "Rent",
				Amount:      decimal.RequireFromString("900"),
				Type:        core.Expense,
				Month:       "March",
			})
			require.NoError(t, err)

			txs, err := res.Backend.ListTransactions(ctx, "u1", "March")
			require.NoError(t, err)
			require.Len(t, txs, 1)
			assert.Equal(t, saved.ID, txs[0].ID)
		})
	}

	t.Run("invalid config", func(t *testing.T) {
		_, err := NewFactory(quietLogger()).CreateBackend(ctx, Config{Type: "csv"})
		assert.Error(t, err)
	})
}

func TestCreateBackendEvents(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Type: MemoryBackend, AMQPURL: "amqp://broker", AMQPExchange: "coinc", AMQPQueue: "journal"}

	t.Run("broker unavailable keeps backend", func(t *testing.T) {
		f := NewFactory(quietLogger())
		f.dialAMQP = func(string, string, string) (*amqp.Client, error) {
			return nil, errors.New("connection refused")
		}
		res, err := f.CreateBackend(ctx, cfg)
		require.NoError(t, err)
		assert.NotNil(t, res.Backend)
		assert.Nil(t, res.Events)
	})

	t.Run("broker connected", func(t *testing.T) {
		var gotURL, gotQueue string
		f := NewFactory(quietLogger())
		f.dialAMQP = func(url, _, queue string) (*amqp.Client, error) {
			gotURL, gotQueue = url, queue
			return &amqp.Client{}, nil
		}
		res, err := f.CreateBackend(ctx, cfg)
		require.NoError(t, err)
		assert.NotNil(t, res.Events)
		assert.Equal(t, "amqp://broker", gotURL)
		assert.Equal(t, "journal", gotQueue)
		require.NotNil(t, res.Cleanup)
		assert.NoError(t, res.Cleanup())
	})
}

func TestSQLiteCleanupClosesDatabase(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := NewFactory(quietLogger()).CreateBackend(ctx, Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "nested", "coinc.db"),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Cleanup)
	require.NoError(t, res.Cleanup())
	assert.Error(t, res.Backend.Ping(ctx))
}
