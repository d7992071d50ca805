// Package marketdata serves security prices and exchange rates through two
// independent TTL caches, falling back to a stale value when the provider is
// down and a previous answer is still around.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mwtsai/folio"
)

// Default cache lifetimes: prices move fast, FX rates slowly.
const (
	DefaultPriceTTL = 15 * time.Minute
	DefaultRateTTL  = 60 * time.Minute
)

// Provider fetches quotes from an external source. YahooClient implements it.
type Provider interface {
	FetchPrice(ctx context.Context, ticker string) (price decimal.Decimal, currency string, err error)
	FetchRate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// Persister keeps fetched values across restarts. The store implements it;
// a nil Persister keeps the caches memory-only.
type Persister interface {
	LoadPrice(ctx context.Context, ticker string) (price decimal.Decimal, currency string, fetchedAt time.Time, ok bool, err error)
	SavePrice(ctx context.Context, ticker string, price decimal.Decimal, currency string, fetchedAt time.Time) error
	LoadRate(ctx context.Context, from, to string) (rate decimal.Decimal, fetchedAt time.Time, ok bool, err error)
	SaveRate(ctx context.Context, from, to string, rate decimal.Decimal, fetchedAt time.Time) error
}

// Quote is a cached security price. Stale marks a value served past its TTL
// because a refresh failed; callers that cannot tolerate staleness must check
// it.
type Quote struct {
	Ticker    string
	Price     folio.Money
	FetchedAt time.Time
	Stale     bool
}

// Rate is a cached exchange rate quoting one unit of From in To.
type Rate struct {
	From, To  string
	Value     decimal.Decimal
	FetchedAt time.Time
	Stale     bool
}

type priceValue struct {
	price    decimal.Decimal
	currency string
}

// Service answers price and rate lookups from its caches, fetching through
// the provider only when the cached value is missing or expired.
type Service struct {
	provider  Provider
	persister Persister
	prices    *ttlCache[priceValue]
	rates     *ttlCache[decimal.Decimal]
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPersister installs the durable backing of the caches.
func WithPersister(p Persister) Option {
	return func(s *Service) { s.persister = p }
}

// WithTTLs overrides the cache lifetimes. Non-positive values keep the
// defaults.
func WithTTLs(price, rate time.Duration) Option {
	return func(s *Service) {
		if price > 0 {
			s.prices.ttl = price
		}
		if rate > 0 {
			s.rates.ttl = rate
		}
	}
}

// withClock fixes the service's notion of now, for tests.
func withClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a market data service over the given provider.
func NewService(provider Provider, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		prices:   newTTLCache[priceValue](DefaultPriceTTL),
		rates:    newTTLCache[decimal.Decimal](DefaultRateTTL),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Price returns the current price of a ticker: fresh from the cache when the
// last fetch is within the TTL, refetched otherwise. When the refetch fails
// and an expired value exists, that value is returned with Stale set.
func (s *Service) Price(ctx context.Context, ticker string) (Quote, error) {
	ticker = folio.NormalizeTicker(ticker)
	now := s.now()

	if e, _, fresh := s.prices.lookup(ticker, now); fresh {
		s.prices.hit()
		return quoteOf(ticker, e, false), nil
	}

	// The durable row may be fresher than this process's memory.
	if s.persister != nil {
		price, currency, fetchedAt, ok, err := s.persister.LoadPrice(ctx, ticker)
		if err != nil {
			return Quote{}, err
		}
		if ok {
			s.prices.store(ticker, priceValue{price: price, currency: currency}, fetchedAt)
			if e, _, fresh := s.prices.lookup(ticker, now); fresh {
				s.prices.hit()
				return quoteOf(ticker, e, false), nil
			}
		}
	}

	price, currency, err := s.provider.FetchPrice(ctx, ticker)
	if err != nil {
		if e, exists, _ := s.prices.lookup(ticker, now); exists {
			s.prices.servedStale()
			log.Warn().Err(err).Str("ticker", ticker).Time("fetched_at", e.fetchedAt).
				Msg("price fetch failed, serving stale value")
			return quoteOf(ticker, e, true), nil
		}
		return Quote{}, fmt.Errorf("%w: %s: %v", folio.ErrQuoteUnavailable, ticker, err)
	}

	s.prices.miss()
	s.prices.store(ticker, priceValue{price: price, currency: currency}, now)
	if s.persister != nil {
		if err := s.persister.SavePrice(ctx, ticker, price, currency, now); err != nil {
			log.Warn().Err(err).Str("ticker", ticker).Msg("cannot persist price")
		}
	}
	return Quote{Ticker: ticker, Price: folio.M(price, currency), FetchedAt: now}, nil
}

// Rate returns the exchange rate quoting one unit of from in to, with the
// same freshness rules as Price. The identity pair costs nothing.
func (s *Service) Rate(ctx context.Context, from, to string) (Rate, error) {
	now := s.now()
	if from == to {
		return Rate{From: from, To: to, Value: decimal.NewFromInt(1), FetchedAt: now}, nil
	}
	key := from + "/" + to

	if e, _, fresh := s.rates.lookup(key, now); fresh {
		s.rates.hit()
		return Rate{From: from, To: to, Value: e.value, FetchedAt: e.fetchedAt}, nil
	}

	if s.persister != nil {
		rate, fetchedAt, ok, err := s.persister.LoadRate(ctx, from, to)
		if err != nil {
			return Rate{}, err
		}
		if ok {
			s.rates.store(key, rate, fetchedAt)
			if e, _, fresh := s.rates.lookup(key, now); fresh {
				s.rates.hit()
				return Rate{From: from, To: to, Value: e.value, FetchedAt: e.fetchedAt}, nil
			}
		}
	}

	rate, err := s.provider.FetchRate(ctx, from, to)
	if err != nil {
		if e, exists, _ := s.rates.lookup(key, now); exists {
			s.rates.servedStale()
			log.Warn().Err(err).Str("pair", key).Time("fetched_at", e.fetchedAt).
				Msg("rate fetch failed, serving stale value")
			return Rate{From: from, To: to, Value: e.value, FetchedAt: e.fetchedAt, Stale: true}, nil
		}
		return Rate{}, fmt.Errorf("%w: %s: %v", folio.ErrQuoteUnavailable, key, err)
	}

	s.rates.miss()
	s.rates.store(key, rate, now)
	if s.persister != nil {
		if err := s.persister.SaveRate(ctx, from, to, rate, now); err != nil {
			log.Warn().Err(err).Str("pair", key).Msg("cannot persist rate")
		}
	}
	return Rate{From: from, To: to, Value: rate, FetchedAt: now}, nil
}

// ConversionRate returns the rate the ledger freezes into a cross-currency
// settlement. It satisfies the store's rate source and never silently serves
// a stale rate: money movements deserve a live quote.
func (s *Service) ConversionRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	rate, err := s.Rate(ctx, from, to)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if rate.Stale {
		return decimal.Decimal{}, fmt.Errorf("%w: only a stale %s/%s rate is available", folio.ErrQuoteUnavailable, from, to)
	}
	return rate.Value, nil
}

// Convert values an amount in another currency at the current exchange rate.
func (s *Service) Convert(ctx context.Context, amount folio.Money, to string) (folio.Money, bool, error) {
	if amount.Currency() == to {
		return amount, false, nil
	}
	rate, err := s.Rate(ctx, amount.Currency(), to)
	if err != nil {
		return folio.Money{}, false, err
	}
	return folio.M(amount.Decimal().Mul(rate.Value), to), rate.Stale, nil
}

// Quote returns the latest known price of one share, implementing the port
// the report builders value positions through.
func (s *Service) Quote(ctx context.Context, ticker string) (folio.Money, bool, error) {
	q, err := s.Price(ctx, ticker)
	if err != nil {
		return folio.Money{}, false, err
	}
	return q.Price, q.Stale, nil
}

var _ folio.Quoter = (*Service)(nil)

// PriceStats and RateStats expose the cache counters.
func (s *Service) PriceStats() CacheStats { return s.prices.Stats() }
func (s *Service) RateStats() CacheStats  { return s.rates.Stats() }

func quoteOf(ticker string, e entry[priceValue], stale bool) Quote {
	return Quote{
		Ticker:    ticker,
		Price:     folio.M(e.value.price, e.value.currency),
		FetchedAt: e.fetchedAt,
		Stale:     stale,
	}
}
