package cmd

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"github.com/mwtsai/folio"
	"github.com/mwtsai/folio/renderer"
)

type historyCmd struct {
	account string
	ticker  string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "chronological transaction listing for an account" }
func (*historyCmd) Usage() string {
	return `flo history -a <account> [-t <ticker>]

  Lists every transaction of an account in date order. With -t, only the
  ticker's trades, dividends and fees are listed, with the running position
  after each one.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "Account name")
	f.StringVar(&c.ticker, "t", "", "Only transactions touching this ticker")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" {
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
	printMarkdown(renderer.RenderHistory(folio.NewHistory(ledger, c.account, c.ticker)))
	return subcommands.ExitSuccess
}
