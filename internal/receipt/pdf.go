package receipt

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"restobill/internal/domain"
)

// PDF renders the bill as a single-document receipt.
func PDF(bill domain.Bill) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(12, "Bill Receipt", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Center,
		}),
	)

	orderLabel := "-"
	if bill.OrderID > 0 {
		orderLabel = fmt.Sprintf("%d", bill.OrderID)
	}
	m.AddRow(26,
		col.New(6).Add(
			text.New("Order ID: "+orderLabel, props.Text{Top: 0}),
			text.New("Timestamp: "+bill.Timestamp.Format(domain.TimestampLayout), props.Text{Top: 5}),
			text.New("Service mode: "+string(bill.ServiceMode), props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Payment mode: "+string(bill.PaymentMode), props.Text{Top: 0}),
			text.New("Discount applied: "+bill.DiscountPercent.String()+"%", props.Text{Top: 5}),
		),
	)

	m.AddRow(10,
		text.NewCol(2, "Food ID", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Item", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, line := range bill.Lines {
		m.AddRow(8,
			text.NewCol(2, line.ItemID, props.Text{Size: 9}),
			text.NewCol(4, line.Name, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", line.Quantity), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, "Rs. "+line.UnitPriceWithGST.StringFixed(2), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, "Rs. "+line.LineTotal.StringFixed(2), props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(12,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Size: 10, Style: fontstyle.Bold, Top: 3}),
		text.NewCol(2, "Rs. "+bill.TotalAmount.StringFixed(2), props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right, Top: 3}),
	)
	m.AddRow(15,
		text.NewCol(12, "Thank you, visit again!", props.Text{Size: 10, Align: align.Center, Top: 5}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate receipt pdf: %w", err)
	}
	return doc.GetBytes(), nil
}
