package archive

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"restobill/internal/domain"
)

const (
	filePrefix     = "bill_"
	fileExt        = ".csv"
	fileTimeLayout = "2006-01-02_15-04-05"
)

var tableColumns = []string{"Food ID", "Food Name", "Qty", "Unit Price (with GST)", "Total Price"}

// FileName encodes the bill timestamp as bill_<YYYY-MM-DD>_<HH-MM-SS>.csv.
func FileName(ts time.Time) string {
	return filePrefix + ts.Format(fileTimeLayout) + fileExt
}

// ParseFileName recovers the timestamp encoded by FileName, interpreting it in loc.
func ParseFileName(name string, loc *time.Location) (time.Time, bool) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, filePrefix) || !strings.HasSuffix(strings.ToLower(base), fileExt) {
		return time.Time{}, false
	}
	raw := base[len(filePrefix) : len(base)-len(fileExt)]
	if loc == nil {
		loc = time.Local
	}
	ts, err := time.ParseInLocation(fileTimeLayout, raw, loc)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// Render produces the archive layout: a Field,Value header block, a blank line,
// then one row per bill line. Output depends only on the bill.
func Render(bill domain.Bill) ([]byte, error) {
	var buf bytes.Buffer

	w := csv.NewWriter(&buf)
	header := [][]string{
		{"Field", "Value"},
		{"Timestamp", bill.Timestamp.Format(domain.TimestampLayout)},
		{"Service Mode", string(bill.ServiceMode)},
		{"Payment Mode", string(bill.PaymentMode)},
		{"Discount (%)", bill.DiscountPercent.String()},
		{"Total Amount", bill.TotalAmount.StringFixed(2)},
	}
	if err := w.WriteAll(header); err != nil {
		return nil, err
	}
	buf.WriteString("\n")

	rows := make([][]string, 0, len(bill.Lines)+1)
	rows = append(rows, tableColumns)
	for _, line := range bill.Lines {
		rows = append(rows, []string{
			line.ItemID,
			line.Name,
			strconv.Itoa(line.Quantity),
			line.UnitPriceWithGST.StringFixed(2),
			line.LineTotal.StringFixed(2),
		})
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type Writer struct {
	Dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir}
}

func (w *Writer) Path(ts time.Time) string {
	return filepath.Join(w.Dir, FileName(ts))
}

// Export writes (or overwrites) the archive file for bill and returns its path.
func (w *Writer) Export(bill domain.Bill) (string, error) {
	staged, err := w.Stage(bill)
	if err != nil {
		return "", err
	}
	return staged.Commit()
}

// Staged is an archive file written to a temporary name and not yet visible to
// readers of the archive.
type Staged struct {
	tmp   string
	final string
}

func (w *Writer) Stage(bill domain.Bill) (*Staged, error) {
	content, err := Render(bill)
	if err != nil {
		return nil, fmt.Errorf("%w: render bill csv: %v", domain.ErrPersistence, err)
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create archive dir: %v", domain.ErrPersistence, err)
	}

	f, err := os.CreateTemp(w.Dir, ".bill-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp archive file: %v", domain.ErrPersistence, err)
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("%w: write archive file: %v", domain.ErrPersistence, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("%w: close archive file: %v", domain.ErrPersistence, err)
	}

	return &Staged{tmp: f.Name(), final: w.Path(bill.Timestamp)}, nil
}

func (s *Staged) Commit() (string, error) {
	if err := os.Rename(s.tmp, s.final); err != nil {
		_ = os.Remove(s.tmp)
		return "", fmt.Errorf("%w: publish archive file: %v", domain.ErrPersistence, err)
	}
	return s.final, nil
}

func (s *Staged) Discard() {
	_ = os.Remove(s.tmp)
}

// Load lazily yields every line item in the archive folder, file by file in name
// order. Each call rescans the folder. A missing folder yields nothing; a file
// that cannot be parsed yields one error and the scan continues.
func Load(dir string, loc *time.Location) iter.Seq2[domain.ArchiveRow, error] {
	return func(yield func(domain.ArchiveRow, error) bool) {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		if err != nil {
			yield(domain.ArchiveRow{}, fmt.Errorf("read archive dir %s: %w", dir, err))
			return
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), fileExt) {
				continue
			}
			rows, err := ReadFile(filepath.Join(dir, entry.Name()), loc)
			if err != nil {
				if !yield(domain.ArchiveRow{}, err) {
					return
				}
				continue
			}
			for _, row := range rows {
				if !yield(row, nil) {
					return
				}
			}
		}
	}
}

// Files lists the archive files with their size and modification time, in name order.
func Files(dir string) ([]fs.FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	infos := make([]fs.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), fileExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// ReadFile parses one archive file. Files without a "Food ID" table yield no rows.
func ReadFile(path string, loc *time.Location) ([]domain.ArchiveRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var date *time.Time
	if ts, ok := ParseFileName(path, loc); ok {
		date = &ts
	}

	rows, err := parse(f, filepath.Base(path), date)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rows, nil
}

func parse(r io.Reader, source string, date *time.Time) ([]domain.ArchiveRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var cols map[string]int
	rows := make([]domain.ArchiveRow, 0, 8)
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, err
		}

		if cols == nil {
			cols = tableHeader(record)
			continue
		}
		if blank(record) {
			continue
		}

		row, err := parseRow(record, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row.Source = source
		row.Date = date
		rows = append(rows, row)
	}
	return rows, nil
}

func tableHeader(record []string) map[string]int {
	cols := make(map[string]int, len(record))
	for i, cell := range record {
		cols[strings.TrimSpace(cell)] = i
	}
	for _, required := range []string{"Food ID", "Qty", "Total Price"} {
		if _, ok := cols[required]; !ok {
			return nil
		}
	}
	return cols
}

func parseRow(record []string, cols map[string]int) (domain.ArchiveRow, error) {
	cell := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	id := strings.ToUpper(cell("Food ID"))
	if id == "" {
		return domain.ArchiveRow{}, errors.New("empty Food ID")
	}
	qty, err := parseQuantity(cell("Qty"))
	if err != nil {
		return domain.ArchiveRow{}, err
	}
	total, err := decimal.NewFromString(cell("Total Price"))
	if err != nil {
		return domain.ArchiveRow{}, fmt.Errorf("Total Price %q is not numeric", cell("Total Price"))
	}

	return domain.ArchiveRow{
		ItemID:    id,
		Name:      cell("Food Name"),
		Quantity:  qty,
		LineTotal: total,
	}, nil
}

// parseQuantity accepts integers, including the "2.0" form some spreadsheet
// exports produce.
func parseQuantity(raw string) (int, error) {
	if qty, err := strconv.Atoi(raw); err == nil {
		return qty, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("Qty %q is not an integer", raw)
	}
	return int(d.IntPart()), nil
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
