package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restobill/internal/domain"
	"restobill/internal/store"
)

func record(ts time.Time, id string, qty int, total string) domain.BillRecord {
	return domain.BillRecord{
		ItemID:        id,
		Name:          id,
		Quantity:      qty,
		TotalPriceGST: decimal.RequireFromString(total),
		ServiceMode:   domain.ServiceDineIn,
		Timestamp:     ts,
	}
}

func TestRecordTransactionAndLookup(t *testing.T) {
	s := New()
	ctx := context.Background()
	ts := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

	id, err := s.RecordTransaction(ctx, domain.Transaction{Timestamp: ts, PaymentMode: domain.PaymentCash}, []domain.BillRecord{record(ts, "F001", 2, "210")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	tx, err := s.FindTransactionByTimestamp(ctx, ts)
	require.NoError(t, err)
	assert.Equal(t, id, tx.OrderID)

	rows, err := s.FindBillRecords(ctx, ts)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows[0].OrderID)

	_, err = s.RecordTransaction(ctx, domain.Transaction{Timestamp: ts}, []domain.BillRecord{record(ts, "F001", 1, "105")})
	require.ErrorIs(t, err, store.ErrDuplicateTimestamp)
}

func TestFailNextRecordWritesNothing(t *testing.T) {
	s := New()
	s.FailNextRecord = errors.New("disk full")
	ts := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

	_, err := s.RecordTransaction(context.Background(), domain.Transaction{Timestamp: ts}, []domain.BillRecord{record(ts, "F001", 1, "105")})
	require.EqualError(t, err, "disk full")

	txs, rows := s.Counts()
	assert.Zero(t, txs)
	assert.Zero(t, rows)
}

func TestNewSeededHasUsers(t *testing.T) {
	t.Setenv("SEED_ADMIN_PASSWORD", "admin-pass")
	t.Setenv("SEED_CASHIER_PASSWORD", "cashier-pass")

	s, err := NewSeeded()
	require.NoError(t, err)

	users, err := s.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "admin", users[0].Username)
	assert.NotEqual(t, "admin-pass", users[0].Password)
}
