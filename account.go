package folio

import (
	"fmt"
	"strings"
)

// AccountType distinguishes brokerage accounts from bank accounts.
type AccountType string

const (
	Brokerage AccountType = "brokerage"
	Bank      AccountType = "bank"
)

// ParseAccountType parses an account type, case-insensitively.
func ParseAccountType(s string) (AccountType, error) {
	switch t := AccountType(strings.ToLower(strings.TrimSpace(s))); t {
	case Brokerage, Bank:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown account type %q, want brokerage or bank", ErrValidation, s)
	}
}

// Account is a container for security positions and cash balances at a single
// broker or bank. Its market and settlement currency are fixed at creation
// and never change afterwards.
//
// Accounts are addressed by Name everywhere in the ledger; the numeric ID is
// a storage detail.
type Account struct {
	ID       int64
	Owner    string // the person the account belongs to
	Name     string // display name, unique across the ledger
	Broker   string // e.g. "sinopac", "fubon", "firstrade", "scb"
	Type     AccountType
	Market   Market
	Currency string
	Margin   bool // a margin account may carry a negative cash balance
}

// NewAccount creates an account on the given market. The settlement currency
// is derived from the market and cannot be chosen independently.
func NewAccount(owner, name, broker string, typ AccountType, market Market) (Account, error) {
	a := Account{
		Owner:    strings.TrimSpace(owner),
		Name:     strings.TrimSpace(name),
		Broker:   strings.ToLower(strings.TrimSpace(broker)),
		Type:     typ,
		Market:   market,
		Currency: market.Currency(),
	}
	if err := a.Validate(); err != nil {
		return Account{}, err
	}
	return a, nil
}

// Validate checks the account's shape, in particular that its currency is the
// settlement currency of its market.
func (a Account) Validate() error {
	if a.Owner == "" {
		return fmt.Errorf("%w: account owner is required", ErrValidation)
	}
	if a.Name == "" {
		return fmt.Errorf("%w: account name is required", ErrValidation)
	}
	if _, err := ParseMarket(string(a.Market)); err != nil {
		return err
	}
	if _, err := ParseAccountType(string(a.Type)); err != nil {
		return err
	}
	if a.Currency != a.Market.Currency() {
		return fmt.Errorf("%w: account %q pairs market %s with currency %s, want %s",
			ErrValidation, a.Name, a.Market, a.Currency, a.Market.Currency())
	}
	return nil
}

func (a Account) String() string {
	return fmt.Sprintf("%s (%s, %s/%s)", a.Name, a.Broker, a.Market, a.Currency)
}
