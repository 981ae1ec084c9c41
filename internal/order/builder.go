package order

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"restobill/internal/domain"
	"restobill/internal/menu"
)

// Builder accumulates item quantities for a single order. Repeated ids add to
// the existing line instead of creating a new one.
type Builder struct {
	catalog *menu.Catalog
	lines   []domain.OrderLine
	index   map[string]int
}

func NewBuilder(catalog *menu.Catalog) *Builder {
	return &Builder{
		catalog: catalog,
		index:   make(map[string]int),
	}
}

func (b *Builder) AddItem(itemID string, quantity int) error {
	id := menu.NormalizeID(itemID)
	if !b.catalog.Contains(id) {
		return fmt.Errorf("%w: food id %q is not on the menu", domain.ErrUnknownItem, itemID)
	}
	if quantity < 1 {
		return fmt.Errorf("%w: quantity for %s must be a positive integer, got %d", domain.ErrInvalidQuantity, id, quantity)
	}

	if i, ok := b.index[id]; ok {
		if b.lines[i].Quantity > math.MaxInt-quantity {
			return fmt.Errorf("%w: quantity for %s exceeds %d", domain.ErrInvalidQuantity, id, math.MaxInt)
		}
		b.lines[i].Quantity += quantity
		return nil
	}
	b.index[id] = len(b.lines)
	b.lines = append(b.lines, domain.OrderLine{ItemID: id, Quantity: quantity})
	return nil
}

func (b *Builder) Len() int {
	return len(b.lines)
}

func (b *Builder) Finalize() (domain.Order, error) {
	if len(b.lines) == 0 {
		return domain.Order{}, fmt.Errorf("%w: no items were added", domain.ErrEmptyOrder)
	}
	lines := make([]domain.OrderLine, len(b.lines))
	copy(lines, b.lines)
	return domain.Order{Lines: lines}, nil
}

// Build validates a batch of lines in one pass; the first invalid line aborts.
func Build(catalog *menu.Catalog, lines []domain.OrderLine) (domain.Order, error) {
	builder := NewBuilder(catalog)
	for _, line := range lines {
		if err := builder.AddItem(line.ItemID, line.Quantity); err != nil {
			return domain.Order{}, err
		}
	}
	return builder.Finalize()
}

// ParseItemSpec parses "ID=QTY" (or "ID:QTY"); a bare id means quantity 1.
func ParseItemSpec(spec string) (domain.OrderLine, error) {
	spec = strings.TrimSpace(spec)
	id, rawQty, found := strings.Cut(spec, "=")
	if !found {
		id, rawQty, found = strings.Cut(spec, ":")
	}
	if strings.TrimSpace(id) == "" {
		return domain.OrderLine{}, fmt.Errorf("%w: item spec %q has no food id", domain.ErrUnknownItem, spec)
	}
	if !found {
		return domain.OrderLine{ItemID: menu.NormalizeID(id), Quantity: 1}, nil
	}
	qty, err := strconv.Atoi(strings.TrimSpace(rawQty))
	if err != nil {
		return domain.OrderLine{}, fmt.Errorf("%w: quantity %q for %s is not a number", domain.ErrInvalidQuantity, rawQty, strings.TrimSpace(id))
	}
	return domain.OrderLine{ItemID: menu.NormalizeID(id), Quantity: qty}, nil
}
