// Package cmd implements the flo command line interface.
package cmd

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"github.com/mwtsai/folio"
	"github.com/mwtsai/folio/marketdata"
	"github.com/mwtsai/folio/store"
)

// Register registers every subcommand on the commander. A main package calls
// Register() and then Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&accountCmd{}, "accounts")

	c.Register(&buyCmd{}, "transactions")
	c.Register(&sellCmd{}, "transactions")
	c.Register(&depositCmd{}, "transactions")
	c.Register(&withdrawCmd{}, "transactions")
	c.Register(&dividendCmd{}, "transactions")
	c.Register(&interestCmd{}, "transactions")
	c.Register(&feeCmd{}, "transactions")
	c.Register(&convertCmd{}, "transactions")

	c.Register(&orderCmd{}, "orders")

	c.Register(&importCmd{}, "sync")
	c.Register(&syncCmd{}, "sync")

	c.Register(&summaryCmd{}, "reports")
	c.Register(&gainsCmd{}, "reports")
	c.Register(&historyCmd{}, "reports")
	c.Register(&holdingsCmd{}, "reports")

	c.Register(&rebuildCmd{}, "maintenance")
	c.Register(&verifyCmd{}, "maintenance")
	c.Register(&quoteCmd{}, "maintenance")
	c.Register(&rateCmd{}, "maintenance")
	c.Register(&exportCmd{}, "maintenance")
	c.Register(&topicCmd{}, "maintenance")
}

// As a CLI application the process is short lived, so global flags are fine.

var configPath = flag.String("config", "", "Path to the config file. Defaults to the user configuration directory.")
var dbDSN = flag.String("db", "", "Database location, overriding the config file (file path for sqlite, connection string for postgres).")

// openStore opens the configured database wired to a market data service:
// the service persists its caches through the store, and the store settles
// cross-currency trades through the service.
func openStore() (*store.Store, *marketdata.Service, *folio.Config, error) {
	cfg, err := folio.LoadConfig(*configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if *dbDSN != "" {
		cfg.Store.DSN = *dbDSN
	}
	st, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, nil, nil, err
	}
	svc := marketdata.NewService(
		marketdata.NewYahooClient(cfg.Provider.Endpoint),
		marketdata.WithPersister(st),
		marketdata.WithTTLs(cfg.Provider.PriceTTL(), cfg.Provider.RateTTL()),
	)
	st.SetRateSource(svc)
	return st, svc, cfg, nil
}

// fail reports an error on stderr and maps validation errors to a usage exit.
func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, "Error:", err)
	if errors.Is(err, folio.ErrValidation) {
		return subcommands.ExitUsageError
	}
	return subcommands.ExitFailure
}

// printMarkdown renders markdown for the terminal, falling back to the raw
// text when no terminal style applies.
func printMarkdown(md string) {
	out, err := glamour.Render(md, "auto")
	if err != nil {
		fmt.Println(md)
		return
	}
	fmt.Print(out)
}
