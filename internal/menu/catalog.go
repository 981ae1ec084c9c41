package menu

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"restobill/internal/domain"
)

const (
	colID    = "food_id"
	colName  = "food_name"
	colPrice = "price"
	colGST   = "gst"
	colCost  = "cost"
)

// Catalog is an immutable menu keyed by canonical (upper-case) item id.
type Catalog struct {
	items map[string]domain.MenuItem
	order []string
}

// NormalizeID maps an item id to its canonical form.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrCatalog, path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a menu table with columns Food_ID, Food_Name, Price, GST and an
// optional Cost. An empty Cost cell leaves the item's cost unknown.
func Load(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: menu source is empty", domain.ErrCatalog)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", domain.ErrCatalog, err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	for _, required := range []string{colID, colName, colPrice, colGST} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("%w: missing required column %q", domain.ErrCatalog, required)
		}
	}
	costIdx, hasCost := index[colCost]

	catalog := &Catalog{items: make(map[string]domain.MenuItem)}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", domain.ErrCatalog, line, err)
		}
		if isBlank(record) {
			continue
		}

		cell := func(col string) string {
			i := index[col]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		id := NormalizeID(cell(colID))
		if id == "" {
			return nil, fmt.Errorf("%w: row %d: empty Food_ID", domain.ErrCatalog, line)
		}
		if _, dup := catalog.items[id]; dup {
			return nil, fmt.Errorf("%w: row %d: duplicate Food_ID %s", domain.ErrCatalog, line, id)
		}

		price, err := parseAmount(cell(colPrice))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: Price: %v", domain.ErrCatalog, line, err)
		}
		gst, err := parseAmount(cell(colGST))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: GST: %v", domain.ErrCatalog, line, err)
		}

		item := domain.MenuItem{
			ID:         id,
			Name:       cell(colName),
			UnitPrice:  price,
			GSTPercent: gst,
		}
		if hasCost && costIdx < len(record) && strings.TrimSpace(record[costIdx]) != "" {
			cost, err := parseAmount(record[costIdx])
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: Cost: %v", domain.ErrCatalog, line, err)
			}
			item.Cost = &cost
		}

		catalog.items[id] = item
		catalog.order = append(catalog.order, id)
	}

	return catalog, nil
}

// New builds a catalog from already-validated items, mostly for tests and seeding.
func New(items ...domain.MenuItem) *Catalog {
	catalog := &Catalog{items: make(map[string]domain.MenuItem, len(items))}
	for _, item := range items {
		item.ID = NormalizeID(item.ID)
		if _, dup := catalog.items[item.ID]; !dup {
			catalog.order = append(catalog.order, item.ID)
		}
		catalog.items[item.ID] = item
	}
	return catalog
}

func (c *Catalog) Lookup(id string) (domain.MenuItem, error) {
	item, ok := c.items[NormalizeID(id)]
	if !ok {
		return domain.MenuItem{}, fmt.Errorf("%w: item %q", domain.ErrNotFound, id)
	}
	return item, nil
}

func (c *Catalog) Contains(id string) bool {
	_, ok := c.items[NormalizeID(id)]
	return ok
}

// Items returns a copy of the menu in source order.
func (c *Catalog) Items() []domain.MenuItem {
	items := make([]domain.MenuItem, 0, len(c.order))
	for _, id := range c.order {
		items = append(items, c.items[id])
	}
	return items
}

func (c *Catalog) Len() int {
	return len(c.order)
}

// AllCostsKnown reports whether every item carries a cost. An empty catalog has
// no costs to rely on.
func (c *Catalog) AllCostsKnown() bool {
	if len(c.items) == 0 {
		return false
	}
	for _, item := range c.items {
		if item.Cost == nil {
			return false
		}
	}
	return true
}

func parseAmount(raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not numeric", raw)
	}
	if value.IsNegative() {
		return decimal.Zero, fmt.Errorf("%q must not be negative", raw)
	}
	return value, nil
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
