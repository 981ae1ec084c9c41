package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"restobill/internal/domain"
)

// Files names the pair of report files written for one window.
type Files struct {
	MostSold       string `json:"most_sold"`
	MostProfitable string `json:"most_profitable"`
}

// Export writes <window>_most_sold.csv and <window>_most_profitable.csv into dir
// for each report, replacing earlier runs. Empty reports produce header-only files.
func Export(dir string, reports []domain.Report) (map[string]Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	out := make(map[string]Files, len(reports))
	for _, r := range reports {
		sold := make([][]string, 0, len(r.MostSold)+1)
		sold = append(sold, []string{"Food ID", "Food Name", "Qty"})
		for _, e := range r.MostSold {
			sold = append(sold, []string{e.ItemID, e.Name, strconv.Itoa(e.Quantity)})
		}

		profitable := make([][]string, 0, len(r.MostProfitable)+1)
		profitable = append(profitable, []string{"Food ID", "Food Name", "Profit"})
		for _, e := range r.MostProfitable {
			profitable = append(profitable, []string{e.ItemID, e.Name, e.Profit.StringFixed(2)})
		}

		files := Files{
			MostSold:       filepath.Join(dir, r.Window+"_most_sold.csv"),
			MostProfitable: filepath.Join(dir, r.Window+"_most_profitable.csv"),
		}
		if err := writeCSV(files.MostSold, sold); err != nil {
			return nil, err
		}
		if err := writeCSV(files.MostProfitable, profitable); err != nil {
			return nil, err
		}
		out[r.Window] = files
	}
	return out, nil
}

func writeCSV(path string, records [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*.tmp")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(tmp)
	if err := w.WriteAll(records); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("publish %s: %w", path, err)
	}
	return nil
}
