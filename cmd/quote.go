package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
)

// --- Quote Command ---

type quoteCmd struct{}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "show the current price of a ticker" }
func (*quoteCmd) Usage() string {
	return `flo quote <ticker>...

  Shows the cached price of each ticker, fetching when the cache is cold or
  expired. A price served past its lifetime because the provider is down is
  marked stale.
`
}

func (c *quoteCmd) SetFlags(f *flag.FlagSet) {}

func (c *quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	st, svc, _, err := openStore()
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	for _, ticker := range f.Args() {
		quote, err := svc.Price(ctx, ticker)
		if err != nil {
			return fail(err)
		}
		mark := ""
		if quote.Stale {
			mark = fmt.Sprintf(" (stale, fetched %s)", quote.FetchedAt.Format("2006-01-02 15:04"))
		}
		fmt.Printf("%s: %s%s\n", quote.Ticker, quote.Price, mark)
	}
	return subcommands.ExitSuccess
}

// --- Rate Command ---

type rateCmd struct{}

func (*rateCmd) Name() string     { return "rate" }
func (*rateCmd) Synopsis() string { return "show the exchange rate between two currencies" }
func (*rateCmd) Usage() string {
	return `flo rate <from> <to>

  Shows how many units of <to> one unit of <from> buys, from the cache or
  fetched fresh.
`
}

func (c *rateCmd) SetFlags(f *flag.FlagSet) {}

func (c *rateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	st, svc, _, err := openStore()
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	rate, err := svc.Rate(ctx, f.Arg(0), f.Arg(1))
	if err != nil {
		return fail(err)
	}
	mark := ""
	if rate.Stale {
		mark = fmt.Sprintf(" (stale, fetched %s)", rate.FetchedAt.Format("2006-01-02 15:04"))
	}
	fmt.Printf("1 %s = %s %s%s\n", rate.From, rate.Value, rate.To, mark)
	return subcommands.ExitSuccess
}
