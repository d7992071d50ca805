package folio

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// stubQuoter serves canned prices and rates for report tests.
type stubQuoter struct {
	prices map[string]Money
	rates  map[string]float64 // "USDTWD" -> 30
	stale  map[string]bool
}

func (q stubQuoter) Quote(_ context.Context, ticker string) (Money, bool, error) {
	price, ok := q.prices[ticker]
	if !ok {
		return Money{}, false, ErrQuoteUnavailable
	}
	return price, q.stale[ticker], nil
}

func (q stubQuoter) Convert(_ context.Context, amount Money, to string) (Money, bool, error) {
	if amount.Currency() == to {
		return amount, false, nil
	}
	rate, ok := q.rates[amount.Currency()+to]
	if !ok {
		return Money{}, false, ErrQuoteUnavailable
	}
	value := amount.Decimal().Mul(decimal.NewFromFloat(rate))
	return M(value, to), q.stale[amount.Currency()+to], nil
}

func newReportLedger(t *testing.T, txs ...Transaction) *Ledger {
	t.Helper()
	ledger := NewLedger()
	for i, tx := range txs {
		validated, err := tx.Validate()
		if err != nil {
			t.Fatalf("transaction %d failed validation: %v", i, err)
		}
		ledger.Append(validated)
	}
	return ledger
}

func TestSummaryValuesPositionsAndCash(t *testing.T) {
	ledger := newReportLedger(t,
		NewDeposit(NewDate(2026, time.January, 5), "ft", "", USD(10000)),
		NewBuy(NewDate(2026, time.January, 10), "ft", "", "VT", Q(10), USD(100), Money{}, Money{}),
	)
	quotes := stubQuoter{prices: map[string]Money{"VT": USD(120)}}

	summary, err := NewSummary(context.Background(), ledger, NewDate(2026, time.February, 1), "USD", quotes)
	if err != nil {
		t.Fatalf("NewSummary() returned an unexpected error: %v", err)
	}
	if len(summary.Accounts) != 1 {
		t.Fatalf("Accounts = %d, want 1", len(summary.Accounts))
	}
	account := summary.Accounts[0]
	if len(account.Positions) != 1 {
		t.Fatalf("Positions = %d, want 1", len(account.Positions))
	}
	pos := account.Positions[0]
	if !pos.Priced || pos.Stale {
		t.Errorf("position should be priced and fresh, got priced=%v stale=%v", pos.Priced, pos.Stale)
	}
	if !pos.MarketValue.Equal(USD(1200)) {
		t.Errorf("MarketValue = %s, want $1,200.00", pos.MarketValue)
	}
	if !pos.Unrealized.Equal(USD(200)) {
		t.Errorf("Unrealized = %s, want $200.00", pos.Unrealized)
	}
	// 9000 cash + 1200 position.
	if !summary.TotalValue.Equal(USD(10200)) {
		t.Errorf("TotalValue = %s, want $10,200.00", summary.TotalValue)
	}
	if summary.Stale {
		t.Error("summary should not be stale")
	}
}

func TestSummaryConvertsToReportingCurrency(t *testing.T) {
	ledger := newReportLedger(t,
		NewDeposit(NewDate(2026, time.January, 5), "sino", "", TWD(30000)),
	)
	quotes := stubQuoter{rates: map[string]float64{"TWDUSD": 0.033}}

	summary, err := NewSummary(context.Background(), ledger, NewDate(2026, time.February, 1), "USD", quotes)
	if err != nil {
		t.Fatalf("NewSummary() returned an unexpected error: %v", err)
	}
	if !summary.TotalValue.Equal(USD(990)) {
		t.Errorf("TotalValue = %s, want $990.00", summary.TotalValue)
	}
}

func TestSummaryFlagsStaleValues(t *testing.T) {
	ledger := newReportLedger(t,
		NewDeposit(NewDate(2026, time.January, 5), "ft", "", USD(1000)),
		NewBuy(NewDate(2026, time.January, 10), "ft", "", "VT", Q(5), USD(100), Money{}, Money{}),
	)
	quotes := stubQuoter{
		prices: map[string]Money{"VT": USD(100)},
		stale:  map[string]bool{"VT": true},
	}

	summary, err := NewSummary(context.Background(), ledger, NewDate(2026, time.February, 1), "USD", quotes)
	if err != nil {
		t.Fatalf("NewSummary() returned an unexpected error: %v", err)
	}
	if !summary.Stale {
		t.Error("summary with a stale quote must be flagged stale")
	}
	if !summary.Accounts[0].Positions[0].Stale {
		t.Error("the stale position must be flagged")
	}
}

func TestSummaryListsUnpricedTickers(t *testing.T) {
	ledger := newReportLedger(t,
		NewDeposit(NewDate(2026, time.January, 5), "ft", "", USD(1000)),
		NewBuy(NewDate(2026, time.January, 10), "ft", "", "VT", Q(5), USD(100), Money{}, Money{}),
	)
	quotes := stubQuoter{} // no prices at all

	summary, err := NewSummary(context.Background(), ledger, NewDate(2026, time.February, 1), "USD", quotes)
	if err != nil {
		t.Fatalf("NewSummary() returned an unexpected error: %v", err)
	}
	if len(summary.Unpriced) != 1 || summary.Unpriced[0] != "VT" {
		t.Fatalf("Unpriced = %v, want [VT]", summary.Unpriced)
	}
	// The unpriced position is excluded from the total: cash only.
	if !summary.TotalValue.Equal(USD(500)) {
		t.Errorf("TotalValue = %s, want $500.00", summary.TotalValue)
	}
}

func TestGainsOverPeriod(t *testing.T) {
	ledger := newReportLedger(t,
		NewDeposit(NewDate(2026, time.January, 5), "ft", "", USD(10000)),
		NewBuy(NewDate(2026, time.January, 10), "ft", "", "VT", Q(20), USD(100), Money{}, Money{}),
		// Realized in January: 10 * (110-100) = 100.
		NewSell(NewDate(2026, time.January, 20), "ft", "", "VT", Q(10), USD(110), Money{}, Money{}),
		// Realized in February: 5 * (120-100) = 100.
		NewSell(NewDate(2026, time.February, 10), "ft", "", "VT", Q(5), USD(120), Money{}, Money{}),
		NewDividend(NewDate(2026, time.February, 14), "ft", "", "VT", USD(7)),
	)

	report, err := NewGains(ledger, NewDate(2026, time.February, 1), NewDate(2026, time.February, 28), "ft")
	if err != nil {
		t.Fatalf("NewGains() returned an unexpected error: %v", err)
	}
	if len(report.Securities) != 1 {
		t.Fatalf("Securities = %d, want 1", len(report.Securities))
	}
	got := report.Securities[0]
	if !got.Realized.Equal(USD(100)) {
		t.Errorf("Realized = %s, want $100.00 (January's gain must not leak in)", got.Realized)
	}
	if !got.Dividends.Equal(USD(7)) {
		t.Errorf("Dividends = %s, want $7.00", got.Dividends)
	}
	if !got.Quantity.Equal(Q(5)) {
		t.Errorf("Quantity = %s, want 5", got.Quantity)
	}
	if len(report.Realized) != 1 || !report.Realized[0].Equal(USD(100)) {
		t.Errorf("Realized totals = %v, want [$100.00]", report.Realized)
	}
}

func TestGainsFiltersByAccount(t *testing.T) {
	ledger := newReportLedger(t,
		NewDeposit(NewDate(2026, time.January, 5), "ft", "", USD(10000)),
		NewDeposit(NewDate(2026, time.January, 5), "sino", "", TWD(1000000)),
		NewBuy(NewDate(2026, time.January, 10), "ft", "", "VT", Q(10), USD(100), Money{}, Money{}),
		NewSell(NewDate(2026, time.January, 20), "ft", "", "VT", Q(10), USD(110), Money{}, Money{}),
		NewBuy(NewDate(2026, time.January, 10), "sino", "", "2330.TW", Q(100), TWD(580), Money{}, Money{}),
		NewSell(NewDate(2026, time.January, 20), "sino", "", "2330.TW", Q(100), TWD(600), Money{}, Money{}),
	)

	report, err := NewGains(ledger, NewDate(2026, time.January, 1), NewDate(2026, time.January, 31), "sino")
	if err != nil {
		t.Fatalf("NewGains() returned an unexpected error: %v", err)
	}
	if len(report.Securities) != 1 || report.Securities[0].Ticker != "2330.TW" {
		t.Fatalf("Securities = %v, want only 2330.TW", report.Securities)
	}
	if !report.Securities[0].Realized.Equal(TWD(2000)) {
		t.Errorf("Realized = %s, want NT$2,000.00", report.Securities[0].Realized)
	}
}

func TestHistoryListsChronologically(t *testing.T) {
	ledger := newReportLedger(t,
		NewDeposit(NewDate(2026, time.January, 5), "ft", "funding", USD(10000)),
		NewBuy(NewDate(2026, time.January, 10), "ft", "", "VT", Q(10), USD(100), Money{}, Money{}),
		NewWithdraw(NewDate(2026, time.January, 20), "ft", "", USD(500)),
		NewDeposit(NewDate(2026, time.January, 8), "other", "", USD(1)),
	)

	report := NewHistory(ledger, "ft", "")
	if len(report.Entries) != 3 {
		t.Fatalf("Entries = %d, want 3 (other accounts excluded)", len(report.Entries))
	}
	if report.Entries[0].Kind != CmdDeposit || report.Entries[0].Memo != "funding" {
		t.Errorf("first entry = %+v, want the funding deposit", report.Entries[0])
	}
	if !report.Entries[1].CashEffect.Equal(USD(-1000)) {
		t.Errorf("buy cash effect = %s, want -$1,000.00", report.Entries[1].CashEffect)
	}
	if !report.Entries[2].CashEffect.Equal(USD(-500)) {
		t.Errorf("withdraw cash effect = %s, want -$500.00", report.Entries[2].CashEffect)
	}
}

func TestHistoryTracksRunningPosition(t *testing.T) {
	ledger := newReportLedger(t,
		NewDeposit(NewDate(2026, time.January, 5), "ft", "", USD(10000)),
		NewBuy(NewDate(2026, time.January, 10), "ft", "", "VT", Q(10), USD(100), Money{}, Money{}),
		NewSell(NewDate(2026, time.January, 20), "ft", "", "VT", Q(4), USD(110), Money{}, Money{}),
	)

	report := NewHistory(ledger, "ft", "VT")
	if len(report.Entries) != 2 {
		t.Fatalf("Entries = %d, want 2 (cash movements excluded)", len(report.Entries))
	}
	if !report.Entries[0].Position.Equal(Q(10)) {
		t.Errorf("position after buy = %s, want 10", report.Entries[0].Position)
	}
	if !report.Entries[1].Position.Equal(Q(6)) {
		t.Errorf("position after sell = %s, want 6", report.Entries[1].Position)
	}
	if !report.Entries[1].Quantity.Equal(Q(4).Neg()) {
		t.Errorf("sell quantity = %s, want -4", report.Entries[1].Quantity)
	}
}

func TestHoldingsSkipsClosedPositions(t *testing.T) {
	ledger := newReportLedger(t,
		NewDeposit(NewDate(2026, time.January, 5), "ft", "", USD(10000)),
		NewBuy(NewDate(2026, time.January, 10), "ft", "", "VT", Q(10), USD(100), Money{}, Money{}),
		NewBuy(NewDate(2026, time.January, 10), "ft", "", "AAPL", Q(5), USD(200), Money{}, Money{}),
		NewSell(NewDate(2026, time.January, 20), "ft", "", "AAPL", Q(5), USD(210), Money{}, Money{}),
	)

	report, err := NewHoldings(ledger, NewDate(2026, time.February, 1), "")
	if err != nil {
		t.Fatalf("NewHoldings() returned an unexpected error: %v", err)
	}
	if len(report.Accounts) != 1 {
		t.Fatalf("Accounts = %d, want 1", len(report.Accounts))
	}
	ah := report.Accounts[0]
	if len(ah.Holdings) != 1 || ah.Holdings[0].Ticker != "VT" {
		t.Fatalf("Holdings = %v, want only the open VT position", ah.Holdings)
	}
	if len(ah.Cash) != 1 || !ah.Cash[0].Balance.Equal(USD(9050)) {
		t.Fatalf("Cash = %v, want $9,050.00", ah.Cash)
	}
}
