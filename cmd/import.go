package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/mwtsai/folio"
	"github.com/mwtsai/folio/firstrade"
	"github.com/mwtsai/folio/renderer"
	"github.com/mwtsai/folio/scb"
)

type importCmd struct {
	source  string
	account string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import a broker or bank statement CSV" }
func (*importCmd) Usage() string {
	return `flo import -source firstrade|scb -a <account> <file.csv>

  Parses a statement export and reconciles its rows into the ledger. Rows
  already imported are skipped, so re-importing an overlapping statement is
  safe. Rows older than the account's newest recorded event trigger a full
  projection rebuild after the batch.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.source, "source", "", "Statement format (firstrade or scb)")
	f.StringVar(&c.account, "a", "", "Account the statement belongs to")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" || f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	file, err := os.Open(f.Arg(0))
	if err != nil {
		return fail(err)
	}
	defer file.Close()

	var events []folio.Event
	switch c.source {
	case firstrade.Source:
		events, err = firstrade.Parse(file, c.account)
	case scb.Source:
		var statement *scb.Statement
		statement, err = scb.Parse(file, c.account)
		if statement != nil {
			events = statement.Events
		}
	default:
		err = fmt.Errorf("%w: unknown import source %q, want firstrade or scb", folio.ErrValidation, c.source)
	}
	if err != nil {
		return fail(err)
	}

	st, _, _, err := openStore()
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	report, err := folio.Reconcile(ctx, st, c.source, events)
	if err != nil {
		return fail(err)
	}
	printMarkdown(renderer.RenderImportReport(report))
	if report.Failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
