package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restobill/internal/domain"
)

func sampleBill() domain.Bill {
	return domain.Bill{
		OrderID:         7,
		Timestamp:       time.Date(2026, 10, 17, 13, 5, 9, 0, time.UTC),
		ServiceMode:     domain.ServiceDineIn,
		PaymentMode:     domain.PaymentUPI,
		DiscountPercent: decimal.NewFromInt(10),
		TotalAmount:     decimal.RequireFromString("269.64"),
		Lines: []domain.BillLine{
			{ItemID: "F001", Name: "Paneer Tikka", Quantity: 2, UnitPriceWithGST: decimal.RequireFromString("105"), LineTotal: decimal.RequireFromString("189")},
			{ItemID: "F002", Name: "Masala Dosa, Large", Quantity: 1, UnitPriceWithGST: decimal.RequireFromString("89.6"), LineTotal: decimal.RequireFromString("80.64")},
		},
	}
}

func TestFileNameRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	name := FileName(ts)
	assert.Equal(t, "bill_2026-01-02_03-04-05.csv", name)

	parsed, ok := ParseFileName(filepath.Join("bills", name), time.UTC)
	require.True(t, ok)
	assert.True(t, ts.Equal(parsed))

	_, ok = ParseFileName("bill_today.csv", time.UTC)
	assert.False(t, ok)
	_, ok = ParseFileName("receipt_2026-01-02_03-04-05.csv", time.UTC)
	assert.False(t, ok)
}

func TestRenderLayout(t *testing.T) {
	content, err := Render(sampleBill())
	require.NoError(t, err)

	expected := strings.Join([]string{
		"Field,Value",
		"Timestamp,2026-10-17 13:05:09",
		"Service Mode,Dine-in",
		"Payment Mode,UPI",
		"Discount (%),10",
		"Total Amount,269.64",
		"",
		"Food ID,Food Name,Qty,Unit Price (with GST),Total Price",
		"F001,Paneer Tikka,2,105.00,189.00",
		`F002,"Masala Dosa, Large",1,89.60,80.64`,
		"",
	}, "\n")
	assert.Equal(t, expected, string(content))
}

func TestExportOverwritesDeterministically(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	first, err := w.Export(sampleBill())
	require.NoError(t, err)
	firstBytes, err := os.ReadFile(first)
	require.NoError(t, err)

	second, err := w.Export(sampleBill())
	require.NoError(t, err)
	secondBytes, err := os.ReadFile(second)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstBytes, secondBytes)
	assert.Equal(t, "bill_2026-10-17_13-05-09.csv", filepath.Base(first))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestStageDiscardLeavesNoArchiveFile(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	staged, err := w.Stage(sampleBill())
	require.NoError(t, err)
	staged.Discard()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExportedFileRoundTrips(t *testing.T) {
	dir := t.TempDir()
	bill := sampleBill()
	_, err := NewWriter(dir).Export(bill)
	require.NoError(t, err)

	var rows []domain.ArchiveRow
	for row, err := range Load(dir, time.UTC) {
		require.NoError(t, err)
		rows = append(rows, row)
	}

	require.Len(t, rows, len(bill.Lines))
	for i, line := range bill.Lines {
		assert.Equal(t, line.ItemID, rows[i].ItemID)
		assert.Equal(t, line.Name, rows[i].Name)
		assert.Equal(t, line.Quantity, rows[i].Quantity)
		assert.True(t, line.LineTotal.Equal(rows[i].LineTotal))
		require.NotNil(t, rows[i].Date)
		assert.True(t, bill.Timestamp.Equal(*rows[i].Date))
	}
}

func TestLoadReadsLegacyFlatLayoutAndUndatedFiles(t *testing.T) {
	dir := t.TempDir()
	legacy := "Timestamp,Service Mode,Payment Mode,Food ID,Food Name,Qty,Unit Price (with GST),Total Price,Total Bill Amount\n" +
		"2026-10-16 09:00:00,Takeaway,Cash,f003,Lassi,3,42.0,126.0,126.0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bill_2026-10-16_09-00-00.csv"), []byte(legacy), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bill_manual.csv"), []byte("Food ID,Food Name,Qty,Total Price\nF001,Tea,2.0,20\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.csv"), []byte("a,b\n1,2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("ignored"), 0o644))

	var rows []domain.ArchiveRow
	for row, err := range Load(dir, time.UTC) {
		require.NoError(t, err)
		rows = append(rows, row)
	}

	require.Len(t, rows, 2)
	assert.Equal(t, "F003", rows[0].ItemID)
	assert.Equal(t, 3, rows[0].Quantity)
	assert.Equal(t, "126", rows[0].LineTotal.String())
	require.NotNil(t, rows[0].Date)

	assert.Equal(t, "F001", rows[1].ItemID)
	assert.Equal(t, 2, rows[1].Quantity)
	assert.Nil(t, rows[1].Date)
}

func TestLoadReportsBadFilesAndContinues(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bill_a.csv"), []byte("Food ID,Food Name,Qty,Total Price\nF001,Tea,lots,20\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bill_b.csv"), []byte("Food ID,Food Name,Qty,Total Price\nF002,Coffee,1,30\n"), 0o644))

	var rows []domain.ArchiveRow
	var errs []error
	for row, err := range Load(dir, time.UTC) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rows = append(rows, row)
	}

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "bill_a.csv")
	require.Len(t, rows, 1)
	assert.Equal(t, "F002", rows[0].ItemID)
}

func TestLoadMissingFolderYieldsNothing(t *testing.T) {
	count := 0
	for range Load(filepath.Join(t.TempDir(), "missing"), time.UTC) {
		count++
	}
	assert.Zero(t, count)
}
