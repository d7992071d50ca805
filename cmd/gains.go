package cmd

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"github.com/mwtsai/folio"
	"github.com/mwtsai/folio/renderer"
)

type gainsCmd struct {
	from    string
	to      string
	period  string
	account string
}

func (*gainsCmd) Name() string     { return "gains" }
func (*gainsCmd) Synopsis() string { return "realized gains and dividends over a period" }
func (*gainsCmd) Usage() string {
	return `flo gains (-from <date> | -period <name>) [-to <date>] [-a <account>]

  Reports the realized gains and dividends received between two dates,
  per security and in total. With -period, the bounds are the calendar
  period containing -to: day, week, month, quarter or year.
`
}

func (c *gainsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "", "Start of the period (YYYY-MM-DD)")
	f.StringVar(&c.to, "to", folio.Today().String(), "End of the period, inclusive")
	f.StringVar(&c.period, "period", "", "Calendar period containing -to: day, week, month, quarter or year")
	f.StringVar(&c.account, "a", "", "Only this account. All accounts by default.")
}

func (c *gainsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	to, err := folio.ParseDate(c.to)
	if err != nil {
		return fail(err)
	}
	var from folio.Date
	switch {
	case c.period != "" && c.from == "":
		p, err := folio.ParsePeriod(c.period)
		if err != nil {
			return fail(err)
		}
		from, to = to.StartOf(p), to.EndOf(p)
	case c.from != "" && c.period == "":
		from, err = folio.ParseDate(c.from)
		if err != nil {
			return fail(err)
		}
	default:
		f.Usage()
		return subcommands.ExitUsageError
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
	report, err := folio.NewGains(ledger, from, to, c.account)
	if err != nil {
		return fail(err)
	}
	printMarkdown(renderer.RenderGains(report))
	return subcommands.ExitSuccess
}
