package report

import (
	"cmp"
	"iter"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"restobill/internal/domain"
	"restobill/internal/menu"
)

type tally struct {
	id       string
	name     string
	quantity int
	profit   decimal.Decimal
}

// Aggregate builds one report per window from rows, measuring each window back
// from now. Rows without a date count toward every window.
//
// Profit is cost based only when every catalog item has a cost; otherwise every
// row contributes its revenue. Rows for items no longer in the catalog always
// contribute revenue.
func Aggregate(rows iter.Seq[domain.ArchiveRow], catalog *menu.Catalog, windows []domain.Window, now time.Time) []domain.Report {
	costBased := catalog != nil && catalog.AllCostsKnown()

	perWindow := make([]map[string]*tally, len(windows))
	since := make([]time.Time, len(windows))
	for i, w := range windows {
		perWindow[i] = make(map[string]*tally)
		since[i] = now.Add(-w.Duration)
	}

	for row := range rows {
		profit := rowProfit(row, catalog, costBased)
		for i := range windows {
			if row.Date != nil && row.Date.Before(since[i]) {
				continue
			}
			t, ok := perWindow[i][row.ItemID]
			if !ok {
				t = &tally{id: row.ItemID, name: displayName(row, catalog)}
				perWindow[i][row.ItemID] = t
			}
			t.quantity += row.Quantity
			t.profit = t.profit.Add(profit)
		}
	}

	reports := make([]domain.Report, 0, len(windows))
	for i, w := range windows {
		reports = append(reports, buildReport(w, since[i], costBased, perWindow[i]))
	}
	return reports
}

func rowProfit(row domain.ArchiveRow, catalog *menu.Catalog, costBased bool) decimal.Decimal {
	if !costBased {
		return row.LineTotal
	}
	item, err := catalog.Lookup(row.ItemID)
	if err != nil || item.Cost == nil {
		return row.LineTotal
	}
	return item.UnitPrice.Sub(*item.Cost).Mul(decimal.NewFromInt(int64(row.Quantity)))
}

func displayName(row domain.ArchiveRow, catalog *menu.Catalog) string {
	if catalog != nil {
		if item, err := catalog.Lookup(row.ItemID); err == nil {
			return item.Name
		}
	}
	return row.Name
}

func buildReport(w domain.Window, since time.Time, costBased bool, tallies map[string]*tally) domain.Report {
	all := make([]*tally, 0, len(tallies))
	for _, t := range tallies {
		all = append(all, t)
	}

	slices.SortFunc(all, func(a, b *tally) int {
		if c := cmp.Compare(b.quantity, a.quantity); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	sold := make([]domain.SoldEntry, 0, len(all))
	for _, t := range all {
		sold = append(sold, domain.SoldEntry{ItemID: t.id, Name: t.name, Quantity: t.quantity})
	}

	slices.SortFunc(all, func(a, b *tally) int {
		if c := b.profit.Cmp(a.profit); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	profitable := make([]domain.ProfitEntry, 0, len(all))
	for _, t := range all {
		profitable = append(profitable, domain.ProfitEntry{ItemID: t.id, Name: t.name, Profit: t.profit.Round(2)})
	}

	return domain.Report{
		Window:         w.Name,
		Since:          since,
		CostBased:      costBased,
		MostSold:       sold,
		MostProfitable: profitable,
	}
}
