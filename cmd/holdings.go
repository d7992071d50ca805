package cmd

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"github.com/mwtsai/folio"
	"github.com/mwtsai/folio/renderer"
)

type holdingsCmd struct {
	date    string
	account string
}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "positions and cash balances on a date, no quotes needed" }
func (*holdingsCmd) Usage() string {
	return `flo holdings [-d <date>] [-a <account>]

  Lists every open position with its average cost and every cash balance,
  reconstructed from the ledger as of the given date. Works offline.
`
}

func (c *holdingsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", folio.Today().String(), "Date of the snapshot (YYYY-MM-DD)")
	f.StringVar(&c.account, "a", "", "Only this account. All accounts by default.")
}

func (c *holdingsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	on, err := folio.ParseDate(c.date)
	if err != nil {
		return fail(err)
	}

	st, _, _, err := openStore()
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	ledger, err := st.LoadLedger(ctx, c.account)
	if err != nil {
		return fail(err)
	}
	report, err := folio.NewHoldings(ledger, on, c.account)
	if err != nil {
		return fail(err)
	}
	printMarkdown(renderer.RenderHoldings(report))
	return subcommands.ExitSuccess
}
