package cmd

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"github.com/mwtsai/folio"
)

// accountCmd groups the account subcommands behind "flo account".
type accountCmd struct{}

func (*accountCmd) Name() string     { return "account" }
func (*accountCmd) Synopsis() string { return "manage accounts (add, list)" }
func (*accountCmd) Usage() string {
	return `flo account <subcommand>

  Manage the ledger's accounts. Subcommands: add, list.
`
}

func (c *accountCmd) SetFlags(f *flag.FlagSet) {}

func (c *accountCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	cdr := subcommands.NewCommander(f, "flo account")
	cdr.Register(&accountAddCmd{}, "")
	cdr.Register(&accountListCmd{}, "")
	cdr.Register(cdr.HelpCommand(), "")
	return cdr.Execute(ctx, args...)
}

// --- account add ---

type accountAddCmd struct {
	owner  string
	name   string
	broker string
	typ    string
	market string
	margin bool
}

func (*accountAddCmd) Name() string     { return "add" }
func (*accountAddCmd) Synopsis() string { return "create an account" }
func (*accountAddCmd) Usage() string {
	return `flo account add -n <name> -o <owner> -b <broker> -market <TW|US|SG> [-type brokerage|bank] [-margin]

  Creates an account on the given market. The settlement currency follows
  the market (TW=TWD, US=USD, SG=SGD) and cannot be chosen independently.
`
}

func (c *accountAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "n", "", "Account name, unique across the ledger")
	f.StringVar(&c.owner, "o", "", "Owner of the account")
	f.StringVar(&c.broker, "b", "", "Broker or bank, e.g. sinopac, fubon, firstrade, scb")
	f.StringVar(&c.typ, "type", string(folio.Brokerage), "Account type (brokerage or bank)")
	f.StringVar(&c.market, "market", "", "Market the account trades on (TW, US or SG)")
	f.BoolVar(&c.margin, "margin", false, "Allow a negative cash balance")
}

func (c *accountAddCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	typ, err := folio.ParseAccountType(c.typ)
	if err != nil {
		return fail(err)
	}
	market, err := folio.ParseMarket(c.market)
	if err != nil {
		return fail(err)
	}
	account, err := folio.NewAccount(c.owner, c.name, c.broker, typ, market)
	if err != nil {
		return fail(err)
	}
	account.Margin = c.margin

	st, _, _, err := openStore()
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	created, err := st.CreateAccount(ctx, account)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Created account %s\n", created)
	return subcommands.ExitSuccess
}

// --- account list ---

type accountListCmd struct{}

func (*accountListCmd) Name() string     { return "list" }
func (*accountListCmd) Synopsis() string { return "list all accounts" }
func (*accountListCmd) Usage() string {
	return `flo account list

  Lists every account with its broker, market and settlement currency.
`
}

func (c *accountListCmd) SetFlags(f *flag.FlagSet) {}

func (c *accountListCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	st, _, _, err := openStore()
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	accounts, err := st.ListAccounts(ctx)
	if err != nil {
		return fail(err)
	}
	if len(accounts) == 0 {
		fmt.Println("No accounts. Create one with 'flo account add'.")
		return subcommands.ExitSuccess
	}

	var b strings.Builder
	b.WriteString("# Accounts\n\n")
	b.WriteString("| Name | Owner | Broker | Type | Market | Currency | Margin |\n")
	b.WriteString("|:---|:---|:---|:---|:---|:---|:---|\n")
	for _, a := range accounts {
		margin := ""
		if a.Margin {
			margin = "yes"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			a.Name, a.Owner, a.Broker, a.Type, a.Market, a.Currency, margin)
	}
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}
