package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// The price_cache and exchange_rates tables back the in-memory TTL caches of
// the market data service, so quote freshness survives restarts. The service
// decides staleness; the store only records what was fetched and when.

// SavePrice upserts the last fetched price of a ticker.
func (s *Store) SavePrice(ctx context.Context, ticker string, price decimal.Decimal, currency string, fetchedAt time.Time) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	upsert := `INSERT INTO price_cache (ticker, price, currency, fetched_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (ticker) DO UPDATE SET price = excluded.price, currency = excluded.currency, fetched_at = excluded.fetched_at`
	_, err := s.db.ExecContext(ctx, s.rebind(upsert), ticker, price, currency, fetchedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to cache price of %s: %w", ticker, err)
	}
	return nil
}

// LoadPrice reads the last fetched price of a ticker, reporting false when
// none was ever cached.
func (s *Store) LoadPrice(ctx context.Context, ticker string) (price decimal.Decimal, currency string, fetchedAt time.Time, ok bool, err error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var row struct {
		Price     decimal.Decimal `db:"price"`
		Currency  string          `db:"currency"`
		FetchedAt string          `db:"fetched_at"`
	}
	err = s.db.GetContext(ctx, &row,
		s.rebind(`SELECT price, currency, fetched_at FROM price_cache WHERE ticker = ?`), ticker)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Decimal{}, "", time.Time{}, false, nil
	}
	if err != nil {
		return decimal.Decimal{}, "", time.Time{}, false, fmt.Errorf("failed to read cached price of %s: %w", ticker, err)
	}
	at, err := time.Parse(time.RFC3339, row.FetchedAt)
	if err != nil {
		return decimal.Decimal{}, "", time.Time{}, false, fmt.Errorf("cached price of %s has unreadable timestamp %q: %w", ticker, row.FetchedAt, err)
	}
	return row.Price, row.Currency, at, true, nil
}

// SaveRate upserts the last fetched exchange rate of a currency pair.
func (s *Store) SaveRate(ctx context.Context, from, to string, rate decimal.Decimal, fetchedAt time.Time) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	upsert := `INSERT INTO exchange_rates (from_currency, to_currency, rate, fetched_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (from_currency, to_currency) DO UPDATE SET rate = excluded.rate, fetched_at = excluded.fetched_at`
	_, err := s.db.ExecContext(ctx, s.rebind(upsert), from, to, rate, fetchedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to cache rate %s/%s: %w", from, to, err)
	}
	return nil
}

// LoadRate reads the last fetched exchange rate of a currency pair, reporting
// false when none was ever cached.
func (s *Store) LoadRate(ctx context.Context, from, to string) (rate decimal.Decimal, fetchedAt time.Time, ok bool, err error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var row struct {
		Rate      decimal.Decimal `db:"rate"`
		FetchedAt string          `db:"fetched_at"`
	}
	err = s.db.GetContext(ctx, &row,
		s.rebind(`SELECT rate, fetched_at FROM exchange_rates WHERE from_currency = ? AND to_currency = ?`), from, to)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Decimal{}, time.Time{}, false, nil
	}
	if err != nil {
		return decimal.Decimal{}, time.Time{}, false, fmt.Errorf("failed to read cached rate %s/%s: %w", from, to, err)
	}
	at, err := time.Parse(time.RFC3339, row.FetchedAt)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, false, fmt.Errorf("cached rate %s/%s has unreadable timestamp %q: %w", from, to, row.FetchedAt, err)
	}
	return row.Rate, at, true, nil
}
