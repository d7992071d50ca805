package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwtsai/folio"
)

func TestSinopacRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/login":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "key-1", body["api_key"])
			assert.Equal(t, "A123456789", body["person_id"])
			json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
		case "/v1/positions":
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			w.Write([]byte(`{"positions": [
				{"code": "2330", "quantity": 1000, "direction": "Buy", "price": 580.5, "last_price": 1915.0},
				{"code": "2317", "quantity": 200, "direction": "Sell", "price": 101.0, "last_price": 99.5}
			]}`))
		case "/v1/balance":
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			w.Write([]byte(`{"acc_balance": 500000.0}`))
		case "/v1/logout":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewSinopac(folio.SinopacConfig{
		Endpoint: srv.URL,
		APIKey:   "key-1",
		PersonID: "A123456789",
	})
	ctx := context.Background()
	require.NoError(t, client.Login(ctx))

	positions, err := client.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "2330.TW", positions[0].Ticker)
	assert.True(t, positions[0].Shares.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, "2317.TW", positions[1].Ticker)
	assert.True(t, positions[1].Shares.Equal(decimal.NewFromInt(-200)), "short positions are negative")

	balance, err := client.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "TWD", balance.Currency)
	assert.True(t, balance.Amount.Equal(decimal.NewFromInt(500000)))

	require.NoError(t, client.Logout(ctx))
}

func TestSinopacRequiresLogin(t *testing.T) {
	client := NewSinopac(folio.SinopacConfig{Endpoint: "http://127.0.0.1:0"})
	_, err := client.Positions(context.Background())
	assert.ErrorIs(t, err, errNotLoggedIn)
	_, err = client.Balance(context.Background())
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestFubonRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "user-1", body["user_id"])
			w.Write([]byte(`{"token": "tok-2", "accounts": [{"account": "9801234"}]}`))
		case "/accounts/9801234/unrealized":
			assert.Equal(t, "Bearer tok-2", r.Header.Get("Authorization"))
			w.Write([]byte(`{"data": [
				{"stock_no": "0050", "quantity": 300, "cost_price": 140.25, "market_price": 151.0}
			]}`))
		case "/accounts/9801234/balance":
			w.Write([]byte(`{"data": {"balance": 82000.5, "currency": "TWD"}}`))
		case "/logout":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewFubon(folio.FubonConfig{Endpoint: srv.URL, UserID: "user-1"})
	ctx := context.Background()
	require.NoError(t, client.Login(ctx))

	positions, err := client.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "0050.TW", positions[0].Ticker)
	assert.True(t, positions[0].AvgCost.Equal(decimal.RequireFromString("140.25")))

	balance, err := client.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "TWD", balance.Currency)
	assert.True(t, balance.Amount.Equal(decimal.RequireFromString("82000.5")))

	require.NoError(t, client.Logout(ctx))
}

func TestFubonRejectsLoginWithoutAccounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token": "tok-3", "accounts": []}`))
	}))
	defer srv.Close()

	client := NewFubon(folio.FubonConfig{Endpoint: srv.URL})
	err := client.Login(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no trading accounts")
}

func TestNewSelectsByName(t *testing.T) {
	cfg := &folio.Config{}
	for _, name := range []string{"sinopac", "fubon"} {
		client, err := New(name, cfg)
		require.NoError(t, err)
		require.NotNil(t, client)
	}
	_, err := New("etrade", cfg)
	assert.ErrorIs(t, err, folio.ErrValidation)
}

func TestVerifyCleanWhenBrokerAgrees(t *testing.T) {
	holdings := []folio.Holding{
		{Account: "sino", Ticker: "2330.TW", Quantity: folio.Q(1000), AverageCost: folio.M(580.5, "TWD")},
	}
	cash := []folio.CashBalance{
		{Account: "sino", Currency: "TWD", Balance: folio.M(500000, "TWD")},
	}
	positions := []Position{
		{Ticker: "2330.TW", Shares: decimal.NewFromInt(1000), AvgCost: decimal.RequireFromString("580.50")},
	}
	balance := Balance{Amount: decimal.NewFromInt(500000), Currency: "TWD"}

	report := Verify("sino", "sinopac", positions, balance, holdings, cash)
	assert.True(t, report.Clean(), "drifts: %v", report.Drifts)
	assert.Equal(t, 1, report.Positions)
}

func TestVerifyReportsDrift(t *testing.T) {
	holdings := []folio.Holding{
		{Account: "sino", Ticker: "2330.TW", Quantity: folio.Q(1000), AverageCost: folio.M(580.5, "TWD")},
		{Account: "sino", Ticker: "2603.TW", Quantity: folio.Q(50), AverageCost: folio.M(180, "TWD")},
	}
	cash := []folio.CashBalance{
		{Account: "sino", Currency: "TWD", Balance: folio.M(500000, "TWD")},
	}
	positions := []Position{
		// share count disagrees
		{Ticker: "2330.TW", Shares: decimal.NewFromInt(900), AvgCost: decimal.RequireFromString("580.5")},
		// not held locally at all
		{Ticker: "2317.TW", Shares: decimal.NewFromInt(100), AvgCost: decimal.NewFromInt(100)},
	}
	balance := Balance{Amount: decimal.NewFromInt(499000), Currency: "TWD"}

	report := Verify("sino", "sinopac", positions, balance, holdings, cash)
	require.Len(t, report.Drifts, 4)

	fields := make(map[string]string)
	for _, d := range report.Drifts {
		fields[d.Key+"/"+d.Field] = d.Broker
	}
	assert.Equal(t, "900", fields["2330.TW/shares"])
	assert.Equal(t, "100", fields["2317.TW/position"])
	assert.Equal(t, "none", func() string {
		for _, d := range report.Drifts {
			if d.Key == "2603.TW" {
				return d.Broker
			}
		}
		return ""
	}(), "locally held ticker missing at broker")
	assert.Equal(t, "499000", fields["TWD/cash"])
}

func TestVerifyFlagsCashWhenCurrencyUnknownLocally(t *testing.T) {
	report := Verify("sino", "sinopac", nil,
		Balance{Amount: decimal.NewFromInt(100), Currency: "USD"}, nil, nil)
	require.Len(t, report.Drifts, 1)
	assert.Equal(t, "USD", report.Drifts[0].Key)
	assert.Equal(t, "0", report.Drifts[0].Local)
}
