package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restobill/internal/domain"
	"restobill/internal/store"
)

func TestRecordTransactionRoundTrip(t *testing.T) {
	databaseURL := os.Getenv("RESTOBILL_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set RESTOBILL_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL, time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})

	// Far-future timestamps keep test rows apart from real data.
	ts := time.Date(2999, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(time.Now().UnixNano()%86400) * time.Second)
	key := store.FormatTimestamp(ts)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM bill WHERE timestamp = $1`, key)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM transactions WHERE timestamp = $1`, key)
	})

	tx := domain.Transaction{
		ServiceMode:     domain.ServiceDineIn,
		DiscountPercent: decimal.NewFromInt(10),
		TotalAmount:     decimal.RequireFromString("189.00"),
		Timestamp:       ts,
		PaymentMode:     domain.PaymentUPI,
	}
	records := []domain.BillRecord{{
		ItemID:          "F001",
		Name:            "Paneer Tikka",
		Quantity:        2,
		UnitPriceGST:    decimal.RequireFromString("105.00"),
		TotalPriceGST:   decimal.RequireFromString("189.00"),
		DiscountPercent: decimal.NewFromInt(10),
		ServiceMode:     domain.ServiceDineIn,
		Timestamp:       ts,
	}}

	orderID, err := s.RecordTransaction(ctx, tx, records)
	require.NoError(t, err)

	_, err = s.RecordTransaction(ctx, tx, records)
	require.ErrorIs(t, err, store.ErrDuplicateTimestamp)

	found, err := s.FindTransactionByTimestamp(ctx, ts)
	require.NoError(t, err)
	assert.Equal(t, orderID, found.OrderID)
	assert.True(t, found.TotalAmount.Equal(tx.TotalAmount))

	rows, err := s.FindBillRecords(ctx, ts)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, orderID, rows[0].OrderID)
}
