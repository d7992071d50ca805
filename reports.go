package folio

import (
	"context"
	"sort"
)

// Quoter supplies market prices and currency conversions when a report needs
// to value positions. The market data service implements it; values served
// out of an expired cache come back with stale set so reports can mark them.
type Quoter interface {
	// Quote returns the latest known price of one share of ticker.
	Quote(ctx context.Context, ticker string) (price Money, stale bool, err error)
	// Convert values amount in the given currency at the latest known rate.
	Convert(ctx context.Context, amount Money, to string) (converted Money, stale bool, err error)
}

// addTotal folds an amount into per-currency totals, ignoring zero amounts.
func addTotal(totals map[string]Money, m Money) {
	if m.IsZero() {
		return
	}
	totals[m.Currency()] = totals[m.Currency()].Add(m)
}

// sortedTotals flattens per-currency totals into a slice sorted by currency.
func sortedTotals(totals map[string]Money) []Money {
	currencies := make([]string, 0, len(totals))
	for cur := range totals {
		currencies = append(currencies, cur)
	}
	sort.Strings(currencies)
	out := make([]Money, 0, len(currencies))
	for _, cur := range currencies {
		out = append(out, totals[cur])
	}
	return out
}
