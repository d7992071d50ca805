package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/mwtsai/folio"
)

type exportCmd struct {
	account string
	output  string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write the ledger as JSONL" }
func (*exportCmd) Usage() string {
	return `flo export [-a <account>] [-o <file>]

  Writes the transaction log in chronological order, one JSON object per
  line, to stdout or to a file. The export is a faithful rendition of the
  books: conversions recorded to settle cross-currency trades appear as
  conversions.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "Only this account. All accounts by default.")
	f.StringVar(&c.output, "o", "", "Output file. Defaults to stdout.")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	st, _, _, err := openStore()
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	ledger, err := st.LoadLedger(ctx, c.account)
	if err != nil {
		return fail(err)
	}

	out := os.Stdout
	if c.output != "" {
		out, err = os.Create(c.output)
		if err != nil {
			return fail(err)
		}
		defer out.Close()
	}

	if err := folio.EncodeLedger(out, ledger); err != nil {
		return fail(err)
	}
	if c.output != "" {
		fmt.Fprintf(os.Stderr, "Exported %d transactions to %s\n", ledger.Len(), c.output)
	}
	return subcommands.ExitSuccess
}
