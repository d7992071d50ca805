package broker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mwtsai/folio"
)

// errNotLoggedIn guards calls that require a session token.
var errNotLoggedIn = errors.New("not logged in")

// Sinopac talks to the SinoPac Securities trading gateway. Position codes
// come back bare ("2330") and are suffixed with ".TW"; balances are always
// quoted in TWD.
type Sinopac struct {
	cfg    folio.SinopacConfig
	client *http.Client
	token  string
}

// NewSinopac creates a client for the gateway named in cfg.Endpoint.
func NewSinopac(cfg folio.SinopacConfig) *Sinopac {
	return &Sinopac{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Login opens a session and activates the signing certificate so that
// account queries are permitted.
func (b *Sinopac) Login(ctx context.Context) error {
	body := map[string]string{
		"api_key":     b.cfg.APIKey,
		"secret_key":  b.cfg.SecretKey,
		"ca_path":     b.cfg.CAPath,
		"ca_password": b.cfg.CAPassword,
		"person_id":   b.cfg.PersonID,
	}
	var reply struct {
		Token string `json:"token"`
	}
	if err := call(ctx, b.client, http.MethodPost, b.cfg.Endpoint+"/v1/login", "", body, &reply); err != nil {
		return fmt.Errorf("sinopac login: %w", err)
	}
	if reply.Token == "" {
		return fmt.Errorf("sinopac login: empty session token")
	}
	b.token = reply.Token
	log.Debug().Str("broker", "sinopac").Msg("session opened")
	return nil
}

// Logout closes the session. Safe to call when no session is open.
func (b *Sinopac) Logout(ctx context.Context) error {
	if b.token == "" {
		return nil
	}
	err := call(ctx, b.client, http.MethodPost, b.cfg.Endpoint+"/v1/logout", b.token, nil, nil)
	b.token = ""
	return err
}

// Positions fetches current stock positions. Short positions come back with
// a negative share count.
func (b *Sinopac) Positions(ctx context.Context) ([]Position, error) {
	if b.token == "" {
		return nil, fmt.Errorf("sinopac positions: %w", errNotLoggedIn)
	}
	var reply struct {
		Positions []struct {
			Code      string          `json:"code"`
			Quantity  decimal.Decimal `json:"quantity"`
			Direction string          `json:"direction"`
			Price     decimal.Decimal `json:"price"`
			LastPrice decimal.Decimal `json:"last_price"`
		} `json:"positions"`
	}
	if err := call(ctx, b.client, http.MethodGet, b.cfg.Endpoint+"/v1/positions", b.token, nil, &reply); err != nil {
		return nil, fmt.Errorf("sinopac positions: %w", err)
	}

	positions := make([]Position, 0, len(reply.Positions))
	for _, p := range reply.Positions {
		shares := p.Quantity
		if p.Direction == "Sell" {
			shares = shares.Neg()
		}
		positions = append(positions, Position{
			Ticker:    p.Code + ".TW",
			Shares:    shares,
			AvgCost:   p.Price,
			LastPrice: p.LastPrice,
		})
	}
	log.Debug().Str("broker", "sinopac").Int("positions", len(positions)).Msg("positions fetched")
	return positions, nil
}

// Balance fetches the settled TWD cash balance.
func (b *Sinopac) Balance(ctx context.Context) (Balance, error) {
	if b.token == "" {
		return Balance{}, fmt.Errorf("sinopac balance: %w", errNotLoggedIn)
	}
	var reply struct {
		AccBalance decimal.Decimal `json:"acc_balance"`
	}
	if err := call(ctx, b.client, http.MethodGet, b.cfg.Endpoint+"/v1/balance", b.token, nil, &reply); err != nil {
		return Balance{}, fmt.Errorf("sinopac balance: %w", err)
	}
	return Balance{Amount: reply.AccBalance, Currency: "TWD"}, nil
}
