// Command flo keeps personal investment books: accounts, an immutable
// transaction ledger, planned orders, statement imports and reports.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"

	"github.com/mwtsai/folio/cmd"
)

func main() {
	completion()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cmd.Register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// completion answers shell completion requests and returns immediately when
// the process was started by the user rather than the shell.
func completion() {
	account := map[string]complete.Predictor{"a": predict.Something}
	trade := map[string]complete.Predictor{
		"a": predict.Something, "t": predict.Something,
		"q": predict.Something, "p": predict.Something,
	}
	order := map[string]complete.Predictor{"id": predict.Something}

	root := &complete.Command{
		Flags: map[string]complete.Predictor{
			"config": predict.Files("*.yaml"),
			"db":     predict.Files("*.db"),
		},
		Sub: map[string]*complete.Command{
			"account": {Sub: map[string]*complete.Command{
				"add": {Flags: map[string]complete.Predictor{
					"n": predict.Something, "o": predict.Something, "b": predict.Something,
					"type":   predict.Set{"brokerage", "bank"},
					"market": predict.Set{"TW", "US", "SG"},
				}},
				"list": {},
			}},
			"buy":      {Flags: trade},
			"sell":     {Flags: trade},
			"deposit":  {Flags: account},
			"withdraw": {Flags: account},
			"dividend": {Flags: account},
			"interest": {Flags: account},
			"fee":      {Flags: account},
			"convert":  {Flags: account},
			"order": {Sub: map[string]*complete.Command{
				"plan": {Flags: map[string]complete.Predictor{
					"a": predict.Something, "t": predict.Something,
					"side":     predict.Set{"BUY", "SELL"},
					"priority": predict.Set{"HIGH", "NORMAL", "LOW"},
				}},
				"list": {Flags: map[string]complete.Predictor{
					"a":      predict.Something,
					"status": predict.Set{"PENDING", "EXECUTED", "CANCELLED"},
				}},
				"update": {Flags: order},
				"exec":   {Flags: order},
				"cancel": {Flags: order},
			}},
			"import": {
				Args: predict.Files("*.csv"),
				Flags: map[string]complete.Predictor{
					"source": predict.Set{"firstrade", "scb"},
					"a":      predict.Something,
				},
			},
			"sync": {Flags: map[string]complete.Predictor{
				"broker": predict.Set{"sinopac", "fubon"},
				"a":      predict.Something,
			}},
			"summary":  {Flags: account},
			"gains": {Flags: map[string]complete.Predictor{
				"a":      predict.Something,
				"period": predict.Set{"day", "week", "month", "quarter", "year"},
			}},
			"history":  {Flags: account},
			"holdings": {Flags: account},
			"rebuild":  {Flags: account},
			"verify":   {Flags: account},
			"quote":    {},
			"rate":     {},
			"export":   {Flags: account},
			"topic":    {},
		},
	}
	root.Complete("flo")
}
