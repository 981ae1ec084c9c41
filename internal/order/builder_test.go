package order

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restobill/internal/domain"
	"restobill/internal/menu"
)

func testCatalog() *menu.Catalog {
	return menu.New(
		domain.MenuItem{ID: "F001", Name: "Paneer Tikka", UnitPrice: decimal.NewFromInt(100), GSTPercent: decimal.NewFromInt(5)},
		domain.MenuItem{ID: "F002", Name: "Masala Dosa", UnitPrice: decimal.NewFromInt(80), GSTPercent: decimal.NewFromInt(12)},
	)
}

func TestAddItemAccumulatesRepeatedIDs(t *testing.T) {
	b := NewBuilder(testCatalog())

	require.NoError(t, b.AddItem("F001", 2))
	require.NoError(t, b.AddItem("f002", 1))
	require.NoError(t, b.AddItem(" f001 ", 3))

	o, err := b.Finalize()
	require.NoError(t, err)
	require.Len(t, o.Lines, 2)
	assert.Equal(t, domain.OrderLine{ItemID: "F001", Quantity: 5}, o.Lines[0])
	assert.Equal(t, domain.OrderLine{ItemID: "F002", Quantity: 1}, o.Lines[1])
	assert.Equal(t, 5, o.Quantity("F001"))
}

func TestAddItemRejectsUnknownItem(t *testing.T) {
	b := NewBuilder(testCatalog())

	err := b.AddItem("F404", 1)
	require.ErrorIs(t, err, domain.ErrUnknownItem)
	assert.Equal(t, 0, b.Len())
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	b := NewBuilder(testCatalog())

	require.ErrorIs(t, b.AddItem("F001", 0), domain.ErrInvalidQuantity)
	require.ErrorIs(t, b.AddItem("F001", -3), domain.ErrInvalidQuantity)
	require.NoError(t, b.AddItem("F002", 1))

	o, err := b.Finalize()
	require.NoError(t, err)
	assert.Equal(t, 0, o.Quantity("F001"))
}

func TestFinalizeEmptyOrder(t *testing.T) {
	_, err := NewBuilder(testCatalog()).Finalize()
	require.ErrorIs(t, err, domain.ErrEmptyOrder)
}

func TestFinalizeReturnsCopy(t *testing.T) {
	b := NewBuilder(testCatalog())
	require.NoError(t, b.AddItem("F001", 1))

	first, err := b.Finalize()
	require.NoError(t, err)
	require.NoError(t, b.AddItem("F001", 1))

	assert.Equal(t, 1, first.Quantity("F001"))
}

func TestBuildStopsAtFirstInvalidLine(t *testing.T) {
	_, err := Build(testCatalog(), []domain.OrderLine{{ItemID: "F001", Quantity: 1}, {ItemID: "F002", Quantity: 0}})
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = Build(testCatalog(), nil)
	require.ErrorIs(t, err, domain.ErrEmptyOrder)
}

func TestParseItemSpec(t *testing.T) {
	line, err := ParseItemSpec("f001=3")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderLine{ItemID: "F001", Quantity: 3}, line)

	line, err = ParseItemSpec("F002:2")
	require.NoError(t, err)
	assert.Equal(t, 2, line.Quantity)

	line, err = ParseItemSpec("F002")
	require.NoError(t, err)
	assert.Equal(t, 1, line.Quantity)

	_, err = ParseItemSpec("F001=two")
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = ParseItemSpec("=2")
	require.ErrorIs(t, err, domain.ErrUnknownItem)
}

func TestAddItemRejectsQuantityOverflow(t *testing.T) {
	b := NewBuilder(testCatalog())

	require.NoError(t, b.AddItem("F001", math.MaxInt-1))
	require.ErrorIs(t, b.AddItem("F001", 2), domain.ErrInvalidQuantity)

	o, err := b.Finalize()
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt-1, o.Quantity("F001"))
}
