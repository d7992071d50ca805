package renderer

import (
	"strings"
	"testing"
	"time"

	"github.com/mwtsai/folio"
	"github.com/mwtsai/folio/broker"
)

func usd(v float64) folio.Money { return folio.M(v, "USD") }

func TestRenderSummary(t *testing.T) {
	s := &folio.Summary{
		Date:     folio.NewDate(2026, time.February, 1),
		Currency: "USD",
		Accounts: []folio.AccountSummary{{
			Account: "ft",
			Positions: []folio.SummaryPosition{{
				Ticker:      "VT",
				Quantity:    folio.Q(10),
				AverageCost: usd(100),
				Price:       usd(120),
				MarketValue: usd(1200),
				Unrealized:  usd(200),
				Priced:      true,
			}},
			Cash:  []folio.CashBalance{{Account: "ft", Currency: "USD", Balance: usd(9000)}},
			Value: usd(10200),
		}},
		TotalValue: usd(10200),
	}

	got := RenderSummary(s)
	for _, want := range []string{
		"# Portfolio Summary - 2026-02-01",
		"## ft",
		"| VT | 10 |",
		"$10,200.00",
		"| USD | $9,000.00 |",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("summary misses %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "stale") {
		t.Errorf("fresh summary should not mention staleness:\n%s", got)
	}
}

func TestRenderSummaryMarksStaleAndUnpriced(t *testing.T) {
	s := &folio.Summary{
		Date:     folio.NewDate(2026, time.February, 1),
		Currency: "USD",
		Accounts: []folio.AccountSummary{{
			Account: "ft",
			Positions: []folio.SummaryPosition{
				{Ticker: "VT", Quantity: folio.Q(10), AverageCost: usd(100), Price: usd(120), MarketValue: usd(1200), Unrealized: usd(200), Priced: true, Stale: true},
				{Ticker: "OBSCURE", Quantity: folio.Q(1), AverageCost: usd(5)},
			},
			Value: usd(1200),
		}},
		TotalValue: usd(1200),
		Stale:      true,
		Unpriced:   []string{"OBSCURE"},
	}

	got := RenderSummary(s)
	if !strings.Contains(got, "stale") {
		t.Errorf("stale summary must say so:\n%s", got)
	}
	if !strings.Contains(got, "VT †") {
		t.Errorf("stale position must be marked:\n%s", got)
	}
	if !strings.Contains(got, "No quote available for OBSCURE") {
		t.Errorf("unpriced tickers must be listed:\n%s", got)
	}
}

func TestRenderGains(t *testing.T) {
	g := &folio.GainsReport{
		From:    folio.NewDate(2026, time.January, 1),
		To:      folio.NewDate(2026, time.January, 31),
		Account: "ft",
		Securities: []folio.SecurityGains{{
			Account: "ft", Ticker: "VT", Quantity: folio.Q(5),
			Realized: usd(100), Dividends: usd(7),
		}},
		Realized:  []folio.Money{usd(100)},
		Dividends: []folio.Money{usd(7)},
	}

	got := RenderGains(g)
	for _, want := range []string{"# Capital Gains - 2026-01-01 to 2026-01-31", "| ft | VT | 5 | +$100.00 | +$7.00 |"} {
		if !strings.Contains(got, want) {
			t.Errorf("gains report misses %q:\n%s", want, got)
		}
	}
}

func TestRenderHistoryWithAndWithoutTicker(t *testing.T) {
	h := &folio.HistoryReport{
		Account: "ft",
		Entries: []folio.HistoryEntry{
			{Date: folio.NewDate(2026, time.January, 5), Kind: folio.CmdDeposit, CashEffect: usd(1000), Memo: "funding"},
		},
	}
	got := RenderHistory(h)
	if !strings.Contains(got, "| Memo |") || !strings.Contains(got, "funding") {
		t.Errorf("account history misses the memo column:\n%s", got)
	}

	h = &folio.HistoryReport{
		Account: "ft",
		Ticker:  "VT",
		Entries: []folio.HistoryEntry{
			{Date: folio.NewDate(2026, time.January, 10), Kind: folio.CmdBuy, Quantity: folio.Q(10), CashEffect: usd(-1000), Position: folio.Q(10)},
		},
	}
	got = RenderHistory(h)
	if !strings.Contains(got, "| Position |") {
		t.Errorf("ticker history misses the position column:\n%s", got)
	}
}

func TestRenderOrdersEmpty(t *testing.T) {
	if got := RenderOrders(nil); !strings.Contains(got, "No planned orders.") {
		t.Errorf("empty order list = %q", got)
	}
}

func TestRenderSyncReport(t *testing.T) {
	clean := broker.Report{Broker: "sinopac", Account: "sino", Positions: 2}
	if got := RenderSyncReport(clean); !strings.Contains(got, "agree") {
		t.Errorf("clean sync report = %q", got)
	}

	drifted := broker.Report{
		Broker: "sinopac", Account: "sino", Positions: 2,
		Drifts: []broker.Drift{{Key: "2330.TW", Field: "shares", Local: "1000", Broker: "900"}},
	}
	got := RenderSyncReport(drifted)
	if !strings.Contains(got, "| 2330.TW | shares | 1000 | 900 |") {
		t.Errorf("drift row missing:\n%s", got)
	}
}

func TestRenderImportReport(t *testing.T) {
	r := &folio.Report{
		BatchID: "b-1", Source: "firstrade",
		Imported: 10, Duplicates: 2, Failed: 1,
		Errors:  []string{"2025-01-03 ft: insufficient position"},
		Rebuilt: []string{"ft"},
	}
	got := RenderImportReport(r)
	for _, want := range []string{"Imported: 10", "Duplicates skipped: 2", "Projections rebuilt: ft", "insufficient position"} {
		if !strings.Contains(got, want) {
			t.Errorf("import report misses %q:\n%s", want, got)
		}
	}
}
