package folio

import (
	"fmt"
	"sort"
)

// CashCategory classifies a single cash movement.
type CashCategory string

const (
	CashDeposit    CashCategory = "DEPOSIT"
	CashWithdrawal CashCategory = "WITHDRAWAL"
	CashDividend   CashCategory = "DIVIDEND"
	CashInterest   CashCategory = "INTEREST"
	CashFee        CashCategory = "FEE"
	CashTrade      CashCategory = "TRADE"
	CashConvert    CashCategory = "FX_CONVERSION"
)

// CashCategories returns all cash movement categories.
func CashCategories() []CashCategory {
	return []CashCategory{CashDeposit, CashWithdrawal, CashDividend, CashInterest, CashFee, CashTrade, CashConvert}
}

// ParseCashCategory parses a string into a CashCategory.
func ParseCashCategory(s string) (CashCategory, error) {
	for _, c := range CashCategories() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown cash category %q", ErrValidation, s)
}

// event represents a single, atomic operation in the portfolio's history.
// It is the lowest-level, immutable fact from which all states are derived.
type event interface {
	date() Date
}

// Journal holds a chronologically sorted list of all atomic events.
type Journal struct {
	events []event // sorted by date
}

// --- Security Events ---

// acquireLot adds a quantity of a security to an account.
type acquireLot struct {
	on       Date
	account  string
	ticker   string
	quantity Quantity
	cost     Money // quantity*price, excluding fee and tax
}

func (e acquireLot) date() Date { return e.on }

// disposeLot removes a quantity of a security from an account.
type disposeLot struct {
	on       Date
	account  string
	ticker   string
	quantity Quantity
	proceeds Money // quantity*price, excluding fee and tax
}

func (e disposeLot) date() Date { return e.on }

// --- Cash Events ---

// postCash moves signed cash in an account. It maps one to one onto a cash
// statement row. A conversion carries its credited leg in counter, freezing
// the rate inside the event.
type postCash struct {
	on       Date
	account  string
	category CashCategory
	ticker   string // security attribution, "" for pure cash movements
	amount   Money  // signed, in the debited currency
	counter  Money  // credited leg of a conversion, zero otherwise
	external bool   // true when cash crosses the portfolio boundary
}

func (e postCash) date() Date       { return e.on }
func (e postCash) currency() string { return e.amount.Currency() }

// NewJournal converts a Ledger of high-level transactions into a Journal of
// low-level, atomic events.
func NewJournal(ledger *Ledger) (*Journal, error) {
	journal := &Journal{
		events: make([]event, 0, len(ledger.transactions)*2), // Pre-allocate with a guess
	}

	for _, tx := range ledger.transactions {
		switch v := tx.(type) {
		case Buy:
			journal.events = append(journal.events,
				acquireLot{on: v.When(), account: v.Account, ticker: v.Ticker, quantity: v.Quantity, cost: v.Cost()},
				postCash{on: v.When(), account: v.Account, category: CashTrade, ticker: v.Ticker, amount: v.CashEffect()},
			)
		case Sell:
			journal.events = append(journal.events,
				disposeLot{on: v.When(), account: v.Account, ticker: v.Ticker, quantity: v.Quantity, proceeds: v.Proceeds()},
				postCash{on: v.When(), account: v.Account, category: CashTrade, ticker: v.Ticker, amount: v.CashEffect()},
			)
		case Deposit:
			journal.events = append(journal.events,
				postCash{on: v.When(), account: v.Account, category: CashDeposit, amount: v.Amount, external: true},
			)
		case Withdraw:
			journal.events = append(journal.events,
				postCash{on: v.When(), account: v.Account, category: CashWithdrawal, amount: v.Amount.Neg(), external: true},
			)
		case Dividend:
			journal.events = append(journal.events,
				postCash{on: v.When(), account: v.Account, category: CashDividend, ticker: v.Ticker, amount: v.Amount},
			)
		case Interest:
			journal.events = append(journal.events,
				postCash{on: v.When(), account: v.Account, category: CashInterest, amount: v.Amount},
			)
		case Fee:
			journal.events = append(journal.events,
				postCash{on: v.When(), account: v.Account, category: CashFee, ticker: v.Ticker, amount: v.Amount.Neg()},
			)
		case Convert:
			// One dual-leg event: the debited leg in amount, the credited leg
			// in counter. The conversion rate stays frozen in the amounts.
			journal.events = append(journal.events,
				postCash{on: v.When(), account: v.Account, category: CashConvert, amount: v.FromAmount.Neg(), counter: v.ToAmount},
			)
		default:
			return nil, fmt.Errorf("unhandled transaction type: %T", tx)
		}
	}

	// Sort all events chronologically.
	sort.SliceStable(journal.events, func(i, j int) bool {
		return journal.events[i].date().Before(journal.events[j].date())
	})

	return journal, nil
}
