// Package broker talks to brokerage gateways to fetch live positions and
// cash balances, and verifies them against the locally maintained
// projections. It never writes back: the transaction log is the single
// source of truth, so a disagreement with the broker is reported as drift
// for the owner to resolve, not silently overwritten.
package broker

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mwtsai/folio"
)

// Position is one position as the broker reports it. Shares is negative for
// a short position.
type Position struct {
	Ticker    string
	Shares    decimal.Decimal
	AvgCost   decimal.Decimal
	LastPrice decimal.Decimal
}

// Balance is the settled cash the broker reports.
type Balance struct {
	Amount   decimal.Decimal
	Currency string
}

// Client is the capability every brokerage integration exposes. Positions
// and Balance require a prior successful Login.
type Client interface {
	Login(ctx context.Context) error
	Positions(ctx context.Context) ([]Position, error)
	Balance(ctx context.Context) (Balance, error)
	Logout(ctx context.Context) error
}

// New returns the client for the named brokerage.
func New(name string, cfg *folio.Config) (Client, error) {
	switch name {
	case "sinopac":
		return NewSinopac(cfg.Sinopac), nil
	case "fubon":
		return NewFubon(cfg.Fubon), nil
	default:
		return nil, fmt.Errorf("unknown broker %q: %w", name, folio.ErrValidation)
	}
}

// Drift is one disagreement between the broker snapshot and the local
// projections. Key is a ticker for position drift, a currency for cash
// drift.
type Drift struct {
	Key    string
	Field  string
	Local  string
	Broker string
}

func (d Drift) String() string {
	return fmt.Sprintf("%s %s: local %s, broker %s", d.Key, d.Field, d.Local, d.Broker)
}

// Report is the outcome of one sync run against a brokerage.
type Report struct {
	Broker    string
	Account   string
	Positions int
	Drifts    []Drift
}

// Clean reports whether the broker snapshot and the local projections agree.
func (r Report) Clean() bool { return len(r.Drifts) == 0 }

// Verify compares a broker snapshot against the local holdings and cash
// projections of one account. Average costs and cash amounts are compared to
// the cent; share counts must match exactly.
func Verify(account, name string, positions []Position, balance Balance, holdings []folio.Holding, cash []folio.CashBalance) Report {
	report := Report{Broker: name, Account: account, Positions: len(positions)}

	local := make(map[string]folio.Holding, len(holdings))
	for _, h := range holdings {
		local[h.Ticker] = h
	}

	remote := make(map[string]Position, len(positions))
	for _, p := range positions {
		remote[p.Ticker] = p
		h, ok := local[p.Ticker]
		if !ok {
			report.Drifts = append(report.Drifts, Drift{
				Key: p.Ticker, Field: "position",
				Local: "none", Broker: p.Shares.String(),
			})
			continue
		}
		if !h.Quantity.Decimal().Equal(p.Shares) {
			report.Drifts = append(report.Drifts, Drift{
				Key: p.Ticker, Field: "shares",
				Local: h.Quantity.String(), Broker: p.Shares.String(),
			})
		}
		if !h.AverageCost.Decimal().Round(2).Equal(p.AvgCost.Round(2)) {
			report.Drifts = append(report.Drifts, Drift{
				Key: p.Ticker, Field: "avg cost",
				Local: h.AverageCost.Decimal().Round(2).String(), Broker: p.AvgCost.Round(2).String(),
			})
		}
	}
	for _, h := range holdings {
		if _, ok := remote[h.Ticker]; !ok {
			report.Drifts = append(report.Drifts, Drift{
				Key: h.Ticker, Field: "position",
				Local: h.Quantity.String(), Broker: "none",
			})
		}
	}

	stored := decimal.Zero
	for _, c := range cash {
		if c.Currency == balance.Currency {
			stored = c.Balance.Decimal()
		}
	}
	if !stored.Round(2).Equal(balance.Amount.Round(2)) {
		report.Drifts = append(report.Drifts, Drift{
			Key: balance.Currency, Field: "cash",
			Local: stored.Round(2).String(), Broker: balance.Amount.Round(2).String(),
		})
	}

	sort.Slice(report.Drifts, func(i, j int) bool {
		if report.Drifts[i].Key != report.Drifts[j].Key {
			return report.Drifts[i].Key < report.Drifts[j].Key
		}
		return report.Drifts[i].Field < report.Drifts[j].Field
	})
	return report
}
