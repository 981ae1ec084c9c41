package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restobill/internal/domain"
	"restobill/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "billing.db"), time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleBill(ts time.Time) domain.Bill {
	return domain.Bill{
		Timestamp:       ts,
		ServiceMode:     domain.ServiceTakeaway,
		PaymentMode:     domain.PaymentCard,
		DiscountPercent: decimal.NewFromInt(10),
		TotalAmount:     decimal.RequireFromString("269.64"),
		Lines: []domain.BillLine{
			{ItemID: "F001", Name: "Paneer Tikka", Quantity: 2, UnitPriceWithGST: decimal.RequireFromString("105"), LineTotal: decimal.RequireFromString("189")},
			{ItemID: "F002", Name: "Masala Dosa", Quantity: 1, UnitPriceWithGST: decimal.RequireFromString("89.6"), LineTotal: decimal.RequireFromString("80.64")},
		},
	}
}

func TestRecordTransactionWritesBothTables(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	bill := sampleBill(ts)

	orderID, err := s.RecordTransaction(ctx, bill.Transaction(), bill.Records())
	require.NoError(t, err)
	assert.Equal(t, int64(1), orderID)

	tx, err := s.FindTransactionByTimestamp(ctx, ts)
	require.NoError(t, err)
	assert.Equal(t, orderID, tx.OrderID)
	assert.Equal(t, domain.PaymentCard, tx.PaymentMode)
	assert.Equal(t, domain.ServiceTakeaway, tx.ServiceMode)
	assert.True(t, tx.TotalAmount.Equal(decimal.RequireFromString("269.64")))
	assert.True(t, tx.DiscountPercent.Equal(decimal.NewFromInt(10)))
	assert.True(t, ts.Equal(tx.Timestamp))

	records, err := s.FindBillRecords(ctx, ts)
	require.NoError(t, err)
	require.Len(t, records, 2)
	sum := decimal.Zero
	for _, rec := range records {
		assert.Equal(t, orderID, rec.OrderID)
		sum = sum.Add(rec.TotalPriceGST)
	}
	assert.True(t, sum.Equal(tx.TotalAmount))
	assert.Equal(t, "F001", records[0].ItemID)
	assert.True(t, records[1].UnitPriceGST.Equal(decimal.RequireFromString("89.6")))
}

func TestRecordTransactionAssignsIncreasingOrderIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	first := sampleBill(base)
	second := sampleBill(base.Add(time.Second))

	id1, err := s.RecordTransaction(ctx, first.Transaction(), first.Records())
	require.NoError(t, err)
	id2, err := s.RecordTransaction(ctx, second.Transaction(), second.Records())
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	latest, ok, err := s.LatestTimestamp(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, latest.Equal(base.Add(time.Second)))
}

func TestRecordTransactionRejectsDuplicateTimestampWithoutPartialWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	bill := sampleBill(ts)

	_, err := s.RecordTransaction(ctx, bill.Transaction(), bill.Records())
	require.NoError(t, err)

	_, err = s.RecordTransaction(ctx, bill.Transaction(), bill.Records())
	require.ErrorIs(t, err, store.ErrDuplicateTimestamp)

	records, err := s.FindBillRecords(ctx, ts)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestEmptyStoreLookups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	_, err := s.FindTransactionByTimestamp(ctx, ts)
	require.ErrorIs(t, err, store.ErrNotFound)

	records, err := s.FindBillRecords(ctx, ts)
	require.NoError(t, err)
	assert.Empty(t, records)

	_, ok, err := s.LatestTimestamp(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.RecordTransaction(ctx, domain.Transaction{Timestamp: ts}, nil)
	require.ErrorIs(t, err, store.ErrInvalidTransaction)
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, domain.UserAccount{Username: "Admin", Password: "hash", Role: "admin", Active: true}))
	require.Error(t, s.CreateUser(ctx, domain.UserAccount{Username: "admin", Password: "other", Role: "admin", Active: true}))

	require.NoError(t, s.UpdateUserPassword(ctx, "admin", "new-hash"))
	require.ErrorIs(t, s.UpdateUserPassword(ctx, "ghost", "x"), store.ErrNotFound)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0].Username)
	assert.Equal(t, "new-hash", users[0].Password)
	assert.True(t, users[0].Active)
}
