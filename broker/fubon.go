package broker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mwtsai/folio"
)

// Fubon talks to the Fubon Securities Neo gateway. Login returns the list of
// trading accounts; queries run against the first one.
type Fubon struct {
	cfg     folio.FubonConfig
	client  *http.Client
	token   string
	account string
}

// NewFubon creates a client for the gateway named in cfg.Endpoint.
func NewFubon(cfg folio.FubonConfig) *Fubon {
	return &Fubon{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Login opens a session with the user credentials and the PFX certificate
// and remembers the first trading account.
func (b *Fubon) Login(ctx context.Context) error {
	body := map[string]string{
		"user_id":      b.cfg.UserID,
		"password":     b.cfg.Password,
		"pfx_path":     b.cfg.PFXPath,
		"pfx_password": b.cfg.PFXPassword,
	}
	var reply struct {
		Token    string `json:"token"`
		Accounts []struct {
			Account string `json:"account"`
		} `json:"accounts"`
	}
	if err := call(ctx, b.client, http.MethodPost, b.cfg.Endpoint+"/login", "", body, &reply); err != nil {
		return fmt.Errorf("fubon login: %w", err)
	}
	if reply.Token == "" {
		return fmt.Errorf("fubon login: empty session token")
	}
	if len(reply.Accounts) == 0 {
		return fmt.Errorf("fubon login: no trading accounts")
	}
	b.token = reply.Token
	b.account = reply.Accounts[0].Account
	log.Debug().Str("broker", "fubon").Str("account", b.account).Msg("session opened")
	return nil
}

// Logout closes the session. Safe to call when no session is open.
func (b *Fubon) Logout(ctx context.Context) error {
	if b.token == "" {
		return nil
	}
	err := call(ctx, b.client, http.MethodPost, b.cfg.Endpoint+"/logout", b.token, nil, nil)
	b.token = ""
	b.account = ""
	return err
}

// Positions fetches the unrealized positions of the trading account.
func (b *Fubon) Positions(ctx context.Context) ([]Position, error) {
	if b.token == "" {
		return nil, fmt.Errorf("fubon positions: %w", errNotLoggedIn)
	}
	var reply struct {
		Data []struct {
			StockNo     string          `json:"stock_no"`
			Quantity    decimal.Decimal `json:"quantity"`
			CostPrice   decimal.Decimal `json:"cost_price"`
			MarketPrice decimal.Decimal `json:"market_price"`
		} `json:"data"`
	}
	url := fmt.Sprintf("%s/accounts/%s/unrealized", b.cfg.Endpoint, b.account)
	if err := call(ctx, b.client, http.MethodGet, url, b.token, nil, &reply); err != nil {
		return nil, fmt.Errorf("fubon positions: %w", err)
	}

	positions := make([]Position, 0, len(reply.Data))
	for _, p := range reply.Data {
		positions = append(positions, Position{
			Ticker:    p.StockNo + ".TW",
			Shares:    p.Quantity,
			AvgCost:   p.CostPrice,
			LastPrice: p.MarketPrice,
		})
	}
	log.Debug().Str("broker", "fubon").Int("positions", len(positions)).Msg("positions fetched")
	return positions, nil
}

// Balance fetches the settled cash balance of the trading account.
func (b *Fubon) Balance(ctx context.Context) (Balance, error) {
	if b.token == "" {
		return Balance{}, fmt.Errorf("fubon balance: %w", errNotLoggedIn)
	}
	var reply struct {
		Data struct {
			Balance  decimal.Decimal `json:"balance"`
			Currency string          `json:"currency"`
		} `json:"data"`
	}
	url := fmt.Sprintf("%s/accounts/%s/balance", b.cfg.Endpoint, b.account)
	if err := call(ctx, b.client, http.MethodGet, url, b.token, nil, &reply); err != nil {
		return Balance{}, fmt.Errorf("fubon balance: %w", err)
	}
	currency := reply.Data.Currency
	if currency == "" {
		currency = "TWD"
	}
	return Balance{Amount: reply.Data.Balance, Currency: currency}, nil
}
