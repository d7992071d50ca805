package cmd

import (
	"context"
	"flag"

	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"

	"github.com/mwtsai/folio/broker"
	"github.com/mwtsai/folio/renderer"
)

type syncCmd struct {
	broker  string
	account string
}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "compare the ledger's projections against a broker" }
func (*syncCmd) Usage() string {
	return `flo sync -broker sinopac|fubon -a <account>

  Fetches the account's positions and cash balance from the broker and
  reports every difference from the ledger's projections. Nothing is
  written: the ledger is the source of truth, and drift means a missing
  transaction to record.
`
}

func (c *syncCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.broker, "broker", "", "Broker to query (sinopac or fubon)")
	f.StringVar(&c.account, "a", "", "Account to compare")
}

func (c *syncCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" || c.broker == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}

	st, _, cfg, err := openStore()
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	client, err := broker.New(c.broker, cfg)
	if err != nil {
		return fail(err)
	}
	if err := client.Login(ctx); err != nil {
		return fail(err)
	}
	defer func() {
		if err := client.Logout(ctx); err != nil {
			log.Warn().Err(err).Str("broker", c.broker).Msg("logout failed")
		}
	}()

	positions, err := client.Positions(ctx)
	if err != nil {
		return fail(err)
	}
	balance, err := client.Balance(ctx)
	if err != nil {
		return fail(err)
	}

	holdings, err := st.Holdings(ctx, c.account)
	if err != nil {
		return fail(err)
	}
	cash, err := st.CashBalances(ctx, c.account)
	if err != nil {
		return fail(err)
	}

	report := broker.Verify(c.account, c.broker, positions, balance, holdings, cash)
	printMarkdown(renderer.RenderSyncReport(report))
	if !report.Clean() {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
