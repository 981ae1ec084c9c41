package report

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restobill/internal/domain"
)

func TestExportWritesBothFilesPerWindow(t *testing.T) {
	dir := t.TempDir()
	reports := Aggregate(slices.Values(sampleRows()), costedCatalog(), domain.DefaultWindows(), now)

	files, err := Export(dir, reports)
	require.NoError(t, err)
	require.Len(t, files, 3)

	daily := files["daily"]
	assert.Equal(t, filepath.Join(dir, "daily_most_sold.csv"), daily.MostSold)
	assert.Equal(t, filepath.Join(dir, "daily_most_profitable.csv"), daily.MostProfitable)

	content, err := os.ReadFile(daily.MostSold)
	require.NoError(t, err)
	assert.Equal(t, "Food ID,Food Name,Qty\nF001,Paneer Tikka,2\nF002,Masala Dosa,1\n", string(content))

	content, err = os.ReadFile(daily.MostProfitable)
	require.NoError(t, err)
	assert.Equal(t, "Food ID,Food Name,Profit\nF001,Paneer Tikka,80.00\nF002,Masala Dosa,30.00\n", string(content))
}

func TestExportEmptyWindowWritesHeadersAndOverwrites(t *testing.T) {
	dir := t.TempDir()
	_, err := Export(dir, Aggregate(slices.Values(sampleRows()), costedCatalog(), []domain.Window{domain.WindowDaily}, now))
	require.NoError(t, err)

	files, err := Export(dir, Aggregate(slices.Values([]domain.ArchiveRow(nil)), costedCatalog(), []domain.Window{domain.WindowDaily}, now))
	require.NoError(t, err)

	content, err := os.ReadFile(files["daily"].MostSold)
	require.NoError(t, err)
	assert.Equal(t, "Food ID,Food Name,Qty\n", string(content))

	content, err = os.ReadFile(files["daily"].MostProfitable)
	require.NoError(t, err)
	assert.Equal(t, "Food ID,Food Name,Profit\n", string(content))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
