package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mwtsai/folio"
)

// fixedRates is a deterministic RateSource for tests.
type fixedRates map[string]decimal.Decimal

func (r fixedRates) ConversionRate(_ context.Context, from, to string) (decimal.Decimal, error) {
	rate, ok := r[from+to]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("no rate for %s/%s: %w", from, to, folio.ErrQuoteUnavailable)
	}
	return rate, nil
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open("sqlite", ":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestAccount(t *testing.T, s *Store, name string, market folio.Market, margin bool) folio.Account {
	t.Helper()
	a, err := folio.NewAccount("mu", name, "firstrade", folio.Brokerage, market)
	require.NoError(t, err)
	a.Margin = margin
	created, err := s.CreateAccount(context.Background(), a)
	require.NoError(t, err)
	return created
}

func day(t *testing.T, s string) folio.Date {
	t.Helper()
	on, err := folio.ParseDate(s)
	require.NoError(t, err)
	return on
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
