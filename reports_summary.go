package folio

import (
	"context"
	"fmt"
	"sort"
)

// SummaryPosition is one valued position in a summary.
type SummaryPosition struct {
	Ticker      string
	Quantity    Quantity
	AverageCost Money
	Price       Money
	MarketValue Money // in the trade currency
	Unrealized  Money // market value minus cost basis
	Stale       bool  // valued from an expired quote
	Priced      bool  // false when no quote could be obtained at all
}

// AccountSummary is the valued state of one account.
type AccountSummary struct {
	Account   string
	Positions []SummaryPosition
	Cash      []CashBalance
	Value     Money // positions plus cash, in the reporting currency
}

// Summary is the valued state of the whole portfolio on a date: every
// position priced through the market data layer, everything converted to one
// reporting currency.
type Summary struct {
	Date       Date
	Currency   string // reporting currency
	Accounts   []AccountSummary
	TotalValue Money
	Stale      bool     // at least one value rests on an expired quote
	Unpriced   []string // tickers excluded from totals for lack of any quote
}

// NewSummary values the portfolio recorded in the ledger on a given date.
// Positions whose quote is unavailable even from the durable cache are listed
// unpriced and excluded from the totals; positions valued from expired quotes
// are included but flagged stale.
func NewSummary(ctx context.Context, ledger *Ledger, on Date, currency string, quotes Quoter) (*Summary, error) {
	if !ValidCurrency(currency) {
		return nil, fmt.Errorf("%w: unsupported reporting currency %q", ErrValidation, currency)
	}
	journal, err := NewJournal(ledger)
	if err != nil {
		return nil, err
	}
	snapshot := NewSnapshot(journal, on)

	summary := &Summary{
		Date:       on,
		Currency:   currency,
		TotalValue: M(0, currency),
	}
	unpriced := make(map[string]bool)

	for account := range snapshot.Accounts() {
		as := AccountSummary{Account: account, Value: M(0, currency)}

		for ticker := range snapshot.Securities(account) {
			h := snapshot.Holding(account, ticker)
			if h.Quantity.IsZero() {
				continue
			}
			pos := SummaryPosition{
				Ticker:      ticker,
				Quantity:    h.Quantity,
				AverageCost: h.AverageCost,
			}
			price, stale, err := quotes.Quote(ctx, ticker)
			if err != nil {
				unpriced[ticker] = true
				as.Positions = append(as.Positions, pos)
				continue
			}
			pos.Priced = true
			pos.Stale = stale
			pos.Price = price
			pos.MarketValue = price.Mul(h.Quantity)
			pos.Unrealized = pos.MarketValue.Sub(h.CostBasis())

			value, convStale, err := quotes.Convert(ctx, pos.MarketValue, currency)
			if err != nil {
				unpriced[ticker] = true
				pos.Priced = false
				as.Positions = append(as.Positions, pos)
				continue
			}
			summary.Stale = summary.Stale || stale || convStale
			as.Value = as.Value.Add(value)
			as.Positions = append(as.Positions, pos)
		}

		for cur := range snapshot.Currencies(account) {
			balance := snapshot.Cash(account, cur)
			if balance.IsZero() {
				continue
			}
			as.Cash = append(as.Cash, CashBalance{Account: account, Currency: cur, Balance: balance})
			value, stale, err := quotes.Convert(ctx, balance, currency)
			if err != nil {
				return nil, fmt.Errorf("cannot value %s %s cash in %s: %w", account, cur, currency, err)
			}
			summary.Stale = summary.Stale || stale
			as.Value = as.Value.Add(value)
		}

		if len(as.Positions) == 0 && len(as.Cash) == 0 {
			continue
		}
		summary.TotalValue = summary.TotalValue.Add(as.Value)
		summary.Accounts = append(summary.Accounts, as)
	}

	for ticker := range unpriced {
		summary.Unpriced = append(summary.Unpriced, ticker)
	}
	sort.Strings(summary.Unpriced)
	return summary, nil
}
