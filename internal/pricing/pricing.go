package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"restobill/internal/domain"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// PriceLine returns the GST-inclusive unit price and the discounted line total,
// both rounded half-up to two places. The total is computed from the unrounded
// unit price.
func PriceLine(unitPrice decimal.Decimal, gstPercent decimal.Decimal, quantity int, discountPercent decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if unitPrice.IsNegative() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: unit_price %s must not be negative", domain.ErrInvalidInput, unitPrice)
	}
	if gstPercent.IsNegative() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: gst_percent %s must not be negative", domain.ErrInvalidInput, gstPercent)
	}
	if quantity < 1 {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: quantity %d must be positive", domain.ErrInvalidInput, quantity)
	}
	if err := ValidateDiscount(discountPercent); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	unitWithGST := unitPrice.Mul(one.Add(gstPercent.Div(hundred)))
	total := unitWithGST.Mul(decimal.NewFromInt(int64(quantity)))
	if discountPercent.IsPositive() {
		total = total.Sub(total.Mul(discountPercent).Div(hundred))
	}

	return unitWithGST.Round(2), total.Round(2), nil
}

// ValidateDiscount rejects discounts outside [0,100] or with more than two
// decimal places. Out-of-range values are never clamped.
func ValidateDiscount(discountPercent decimal.Decimal) error {
	if discountPercent.IsNegative() || discountPercent.GreaterThan(hundred) {
		return fmt.Errorf("%w: discount_percent %s must be between 0 and 100", domain.ErrInvalidInput, discountPercent)
	}
	if !discountPercent.Equal(discountPercent.Round(2)) {
		return fmt.Errorf("%w: discount_percent %s allows at most two decimal places", domain.ErrInvalidInput, discountPercent)
	}
	return nil
}

func Total(lines []domain.BillLine) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.LineTotal)
	}
	return sum.Round(2)
}
