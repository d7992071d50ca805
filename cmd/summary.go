package cmd

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"github.com/mwtsai/folio"
	"github.com/mwtsai/folio/renderer"
)

type summaryCmd struct {
	date     string
	account  string
	currency string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "portfolio value, unrealized P&L and cash on a date" }
func (*summaryCmd) Usage() string {
	return `flo summary [-d <date>] [-a <account>] [-c <currency>]

  Values every position at the latest cached quote and totals the portfolio
  in the reporting currency. Values resting on stale quotes are marked;
  positions without any quote are listed and left out of the totals.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", folio.Today().String(), "Date of the summary (YYYY-MM-DD)")
	f.StringVar(&c.account, "a", "", "Only this account. All accounts by default.")
	f.StringVar(&c.currency, "c", "", "Reporting currency. Defaults to the configured base currency.")
}

func (c *summaryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	on, err := folio.ParseDate(c.date)
	if err != nil {
		return fail(err)
	}

	st, svc, cfg, err := openStore()
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	cur := c.currency
	if cur == "" {
		cur = cfg.BaseCurrency
	}

	ledger, err := st.LoadLedger(ctx, c.account)
	if err != nil {
		return fail(err)
	}
	summary, err := folio.NewSummary(ctx, ledger, on, cur, svc)
	if err != nil {
		return fail(err)
	}
	printMarkdown(renderer.RenderSummary(summary))
	return subcommands.ExitSuccess
}
