package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/mwtsai/folio"
	"github.com/mwtsai/folio/store"
)

// targetAccounts resolves -a: one named account, or every account.
func targetAccounts(ctx context.Context, st *store.Store, account string) ([]folio.Account, error) {
	if account != "" {
		a, err := st.GetAccount(ctx, account)
		if err != nil {
			return nil, err
		}
		return []folio.Account{a}, nil
	}
	return st.ListAccounts(ctx)
}

// --- Rebuild Command ---

type rebuildCmd struct {
	account string
}

func (*rebuildCmd) Name() string     { return "rebuild" }
func (*rebuildCmd) Synopsis() string { return "recompute projections from the full transaction log" }
func (*rebuildCmd) Usage() string {
	return `flo rebuild [-a <account>]

  Replays the account's complete history and replaces its holdings and cash
  balances with the result. The transaction log itself is never touched.
`
}

func (c *rebuildCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "Only this account. All accounts by default.")
}

func (c *rebuildCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	st, _, _, err := openStore()
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	accounts, err := targetAccounts(ctx, st, c.account)
	if err != nil {
		return fail(err)
	}
	for _, a := range accounts {
		if err := st.RebuildProjections(ctx, a.Name); err != nil {
			return fail(err)
		}
		fmt.Printf("Rebuilt projections of %s\n", a.Name)
	}
	return subcommands.ExitSuccess
}

// --- Verify Command ---

type verifyCmd struct {
	account string
}

func (*verifyCmd) Name() string     { return "verify" }
func (*verifyCmd) Synopsis() string { return "check that projections match a full replay of the log" }
func (*verifyCmd) Usage() string {
	return `flo verify [-a <account>]

  Replays the account's complete history and compares the result against the
  stored holdings and cash balances, reporting every difference. A clean
  ledger reports nothing.
`
}

func (c *verifyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "Only this account. All accounts by default.")
}

func (c *verifyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	st, _, _, err := openStore()
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	accounts, err := targetAccounts(ctx, st, c.account)
	if err != nil {
		return fail(err)
	}

	dirty := false
	for _, a := range accounts {
		drifts, err := st.VerifyProjections(ctx, a.Name)
		if err != nil {
			return fail(err)
		}
		if len(drifts) == 0 {
			fmt.Printf("%s: projections match the log\n", a.Name)
			continue
		}
		dirty = true
		fmt.Printf("%s: %d difference(s)\n", a.Name, len(drifts))
		for _, d := range drifts {
			fmt.Printf("  %s\n", d)
		}
	}
	if dirty {
		fmt.Println("Run 'flo rebuild' to recompute the projections.")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
