package receipt

import (
	"fmt"
	"io"
	"strings"

	"restobill/internal/domain"
	"restobill/internal/menu"
)

const width = 50

// Text writes the fixed-width console receipt. Unit price and GST come from the
// catalog; lines whose item has left the catalog show the GST-inclusive price.
func Text(w io.Writer, bill domain.Bill, catalog *menu.Catalog) error {
	rule := strings.Repeat("-", width)
	var b strings.Builder

	fmt.Fprintf(&b, "\n%s\n%s\n%s\n", rule, center("BILL RECEIPT"), rule)
	if bill.OrderID > 0 {
		fmt.Fprintf(&b, "Order ID         : %d\n", bill.OrderID)
	}
	fmt.Fprintf(&b, "Service Mode     : %s\n", bill.ServiceMode)
	fmt.Fprintf(&b, "Payment Mode     : %s\n", bill.PaymentMode)
	fmt.Fprintf(&b, "Timestamp        : %s\n", bill.Timestamp.Format(domain.TimestampLayout))
	fmt.Fprintf(&b, "Discount Applied : %s%%\n", bill.DiscountPercent.String())
	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "%-8s %-18s %-4s %-13s %-5s %s\n", "Food ID", "Item", "Qty", "Unit Price", "GST%", "Total")
	fmt.Fprintf(&b, "%s\n", rule)

	for _, line := range bill.Lines {
		unit := line.UnitPriceWithGST.StringFixed(2)
		gst := "-"
		if catalog != nil {
			if item, err := catalog.Lookup(line.ItemID); err == nil {
				unit = item.UnitPrice.StringFixed(2)
				gst = item.GSTPercent.StringFixed(1)
			}
		}
		fmt.Fprintf(&b, "%-8s %-18s %-4d Rs.%-10s %-5s Rs.%s\n",
			line.ItemID, truncate(line.Name, 18), line.Quantity, unit, gst, line.LineTotal.StringFixed(2))
	}

	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "Total Amount     : Rs. %s\n", bill.TotalAmount.StringFixed(2))
	fmt.Fprintf(&b, "%s\n%s\n%s\n", rule, center("Thank you, visit again!"), rule)

	_, err := io.WriteString(w, b.String())
	return err
}

func center(s string) string {
	pad := (width - len(s)) / 2
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad) + s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
