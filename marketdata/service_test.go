package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwtsai/folio"
)

// fakeProvider returns scripted prices and rates, counting fetches.
type fakeProvider struct {
	price    decimal.Decimal
	currency string
	rate     decimal.Decimal
	err      error

	priceFetches int
	rateFetches  int
}

func (f *fakeProvider) FetchPrice(_ context.Context, _ string) (decimal.Decimal, string, error) {
	f.priceFetches++
	if f.err != nil {
		return decimal.Decimal{}, "", f.err
	}
	return f.price, f.currency, nil
}

func (f *fakeProvider) FetchRate(_ context.Context, _, _ string) (decimal.Decimal, error) {
	f.rateFetches++
	if f.err != nil {
		return decimal.Decimal{}, f.err
	}
	return f.rate, nil
}

// testClock is a manually advanced clock.
type testClock struct{ t time.Time }

func (c *testClock) now() time.Time            { return c.t }
func (c *testClock) advance(d time.Duration)   { c.t = c.t.Add(d) }
func newTestClock() *testClock                 { return &testClock{t: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)} }
func dec(s string) decimal.Decimal             { d, _ := decimal.NewFromString(s); return d }
func newTestService(p Provider, c *testClock) *Service {
	return NewService(p, withClock(c.now))
}

func TestPriceServedFreshWithinTTL(t *testing.T) {
	provider := &fakeProvider{price: dec("231.5"), currency: "USD"}
	clock := newTestClock()
	svc := newTestService(provider, clock)

	first, err := svc.Price(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.False(t, first.Stale)
	assert.Equal(t, 1, provider.priceFetches)

	// Just inside the TTL the cached value is served unmodified,
	// even though the provider moved.
	provider.price = dec("999")
	clock.advance(DefaultPriceTTL - time.Second)

	second, err := svc.Price(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, provider.priceFetches, "no fetch within the TTL")
	assert.True(t, second.Price.Equal(first.Price))
	assert.Equal(t, int64(1), svc.PriceStats().Hits)
}

func TestPriceRefetchedPastTTL(t *testing.T) {
	provider := &fakeProvider{price: dec("231.5"), currency: "USD"}
	clock := newTestClock()
	svc := newTestService(provider, clock)

	_, err := svc.Price(context.Background(), "AAPL")
	require.NoError(t, err)

	provider.price = dec("240")
	clock.advance(DefaultPriceTTL + time.Second)

	quote, err := svc.Price(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.priceFetches, "expired entry triggers a fetch")
	assert.False(t, quote.Stale)
	assert.True(t, quote.Price.Equal(folio.M(dec("240"), "USD")))
}

func TestPriceStaleFallback(t *testing.T) {
	provider := &fakeProvider{price: dec("231.5"), currency: "USD"}
	clock := newTestClock()
	svc := newTestService(provider, clock)

	fetched, err := svc.Price(context.Background(), "AAPL")
	require.NoError(t, err)

	provider.err = errors.New("connection refused")
	clock.advance(DefaultPriceTTL + time.Minute)

	quote, err := svc.Price(context.Background(), "AAPL")
	require.NoError(t, err, "an expired value is still served when the refresh fails")
	assert.True(t, quote.Stale, "the fallback must be detectable")
	assert.True(t, quote.Price.Equal(fetched.Price))
	assert.Equal(t, int64(1), svc.PriceStats().Stale)
}

func TestPriceUnavailableWithoutCache(t *testing.T) {
	provider := &fakeProvider{err: errors.New("connection refused")}
	svc := newTestService(provider, newTestClock())

	_, err := svc.Price(context.Background(), "AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, folio.ErrQuoteUnavailable)
}

func TestRateIdentityPair(t *testing.T) {
	provider := &fakeProvider{}
	svc := newTestService(provider, newTestClock())

	rate, err := svc.Rate(context.Background(), "USD", "USD")
	require.NoError(t, err)
	assert.True(t, rate.Value.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 0, provider.rateFetches)
}

func TestRateTTLIsIndependentOfPriceTTL(t *testing.T) {
	provider := &fakeProvider{price: dec("100"), currency: "USD", rate: dec("32.1")}
	clock := newTestClock()
	svc := newTestService(provider, clock)

	_, err := svc.Rate(context.Background(), "USD", "TWD")
	require.NoError(t, err)
	_, err = svc.Price(context.Background(), "AAPL")
	require.NoError(t, err)

	// Past the price TTL but within the rate TTL: only the price refetches.
	clock.advance(DefaultPriceTTL + time.Minute)
	_, err = svc.Rate(context.Background(), "USD", "TWD")
	require.NoError(t, err)
	_, err = svc.Price(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, 1, provider.rateFetches)
	assert.Equal(t, 2, provider.priceFetches)
}

func TestConversionRateRefusesStale(t *testing.T) {
	provider := &fakeProvider{rate: dec("32.1")}
	clock := newTestClock()
	svc := newTestService(provider, clock)

	_, err := svc.ConversionRate(context.Background(), "USD", "TWD")
	require.NoError(t, err)

	provider.err = errors.New("connection refused")
	clock.advance(DefaultRateTTL + time.Minute)

	// Rate still answers, flagged stale.
	rate, err := svc.Rate(context.Background(), "USD", "TWD")
	require.NoError(t, err)
	assert.True(t, rate.Stale)

	// But money is never settled on a stale rate.
	_, err = svc.ConversionRate(context.Background(), "USD", "TWD")
	assert.ErrorIs(t, err, folio.ErrQuoteUnavailable)
}

func TestConvertValuesAmount(t *testing.T) {
	provider := &fakeProvider{rate: dec("32")}
	svc := newTestService(provider, newTestClock())

	converted, stale, err := svc.Convert(context.Background(), folio.M(100, "USD"), "TWD")
	require.NoError(t, err)
	assert.False(t, stale)
	assert.True(t, converted.Equal(folio.M(3200, "TWD")))
}
