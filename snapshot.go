package folio

import (
	"iter"
)

// Snapshot represents a view of the portfolio at a single point in time.
// It is a stateless calculator that computes all values on-the-fly by
// processing journal events up to its 'on' date.
type Snapshot struct {
	journal *Journal
	on      Date
}

// NewSnapshot creates a snapshot of the journal on a given date.
func NewSnapshot(journal *Journal, on Date) *Snapshot {
	return &Snapshot{journal: journal, on: on}
}

// On returns the date of the snapshot.
func (s *Snapshot) On() Date {
	return s.on
}

// --- private calculation helpers ---

// events returns an iterator over journal events up to the snapshot's date.
func (s *Snapshot) events() iter.Seq[event] {
	return func(yield func(event) bool) {
		for _, e := range s.journal.events {
			if e.date().After(s.on) {
				break
			}
			if !yield(e) {
				return
			}
		}
	}
}

// --- public calculation helpers ---

// Holding folds the acquisitions and disposals of a security in an account
// into its position and weighted average cost on the snapshot's date.
func (s *Snapshot) Holding(account, ticker string) Holding {
	h := Holding{Account: account, Ticker: ticker}
	for e := range s.events() {
		switch v := e.(type) {
		case acquireLot:
			if v.account == account && v.ticker == ticker {
				h = h.Buy(v.quantity, v.cost.Div(v.quantity))
			}
		case disposeLot:
			if v.account == account && v.ticker == ticker {
				sold, _, err := v.apply(h)
				if err != nil {
					// An overdrawn log line still reduces the position.
					h.Quantity = h.Quantity.Sub(v.quantity)
					continue
				}
				h = sold
			}
		}
	}
	return h
}

// apply folds a disposal into a holding through the shared average cost math.
func (e disposeLot) apply(h Holding) (Holding, Money, error) {
	return h.Sell(e.quantity, e.proceeds.Div(e.quantity))
}

// Position calculates the quantity held of a single security on the snapshot's date.
func (s *Snapshot) Position(account, ticker string) Quantity {
	var position Quantity
	for e := range s.events() {
		switch v := e.(type) {
		case acquireLot:
			if v.account == account && v.ticker == ticker {
				position = position.Add(v.quantity)
			}
		case disposeLot:
			if v.account == account && v.ticker == ticker {
				position = position.Sub(v.quantity)
			}
		}
	}
	return position
}

// AverageCost returns the weighted average cost per share of a security held
// in an account on the snapshot's date.
func (s *Snapshot) AverageCost(account, ticker string) Money {
	return s.Holding(account, ticker).AverageCost
}

// CostBasis returns the total cost of a position, quantity times average cost.
func (s *Snapshot) CostBasis(account, ticker string) Money {
	return s.Holding(account, ticker).CostBasis()
}

// Cash returns the balance of an account in a specific currency on the
// snapshot's date. Both legs of a conversion count toward their respective
// currencies.
func (s *Snapshot) Cash(account, currency string) Money {
	balance := M(0, currency)
	for e := range s.events() {
		v, ok := e.(postCash)
		if !ok || v.account != account {
			continue
		}
		if v.amount.Currency() == currency {
			balance = balance.Add(v.amount)
		}
		if !v.counter.IsZero() && v.counter.Currency() == currency {
			balance = balance.Add(v.counter)
		}
	}
	return balance
}

// RealizedGains calculates the sum of all profits and losses locked in
// through sales of a specific security in an account since inception.
func (s *Snapshot) RealizedGains(account, ticker string) Money {
	var realized Money
	h := Holding{Account: account, Ticker: ticker}
	for e := range s.events() {
		switch v := e.(type) {
		case acquireLot:
			if v.account == account && v.ticker == ticker {
				h = h.Buy(v.quantity, v.cost.Div(v.quantity))
			}
		case disposeLot:
			if v.account == account && v.ticker == ticker {
				sold, gain, err := v.apply(h)
				if err != nil {
					h.Quantity = h.Quantity.Sub(v.quantity)
					continue
				}
				h = sold
				realized = realized.Add(gain)
			}
		}
	}
	return realized
}

// Dividends calculates the total dividend income received from a specific
// security in an account since inception.
func (s *Snapshot) Dividends(account, ticker string) Money {
	var total Money
	for e := range s.events() {
		if v, ok := e.(postCash); ok &&
			v.account == account && v.category == CashDividend && v.ticker == ticker {
			total = total.Add(v.amount)
		}
	}
	return total
}

// Interest calculates the total interest income credited to an account in a
// specific currency since inception.
func (s *Snapshot) Interest(account, currency string) Money {
	total := M(0, currency)
	for e := range s.events() {
		if v, ok := e.(postCash); ok &&
			v.account == account && v.category == CashInterest && v.currency() == currency {
			total = total.Add(v.amount)
		}
	}
	return total
}

// CashFlow calculates the net cash that has crossed the portfolio boundary
// for an account in a specific currency since inception: deposits minus
// withdrawals.
func (s *Snapshot) CashFlow(account, currency string) Money {
	flow := M(0, currency)
	for e := range s.events() {
		if v, ok := e.(postCash); ok &&
			v.account == account && v.external && v.currency() == currency {
			flow = flow.Add(v.amount)
		}
	}
	return flow
}

// Accounts returns an iterator over all account names up to the snapshot's
// date. The order is based on their first appearance.
func (s *Snapshot) Accounts() iter.Seq[string] {
	return func(yield func(string) bool) {
		seen := make(map[string]struct{})
		process := func(account string) bool {
			if _, exists := seen[account]; exists {
				return true
			}
			seen[account] = struct{}{}
			return yield(account)
		}
		for e := range s.events() {
			var account string
			switch v := e.(type) {
			case acquireLot:
				account = v.account
			case disposeLot:
				account = v.account
			case postCash:
				account = v.account
			}
			if account != "" && !process(account) {
				return
			}
		}
	}
}

// Securities returns an iterator over all tickers traded in an account up to
// the snapshot's date, or in every account when account is empty. The order
// is based on their first appearance.
func (s *Snapshot) Securities(account string) iter.Seq[string] {
	return func(yield func(string) bool) {
		seen := make(map[string]struct{})
		process := func(ticker string) bool {
			if ticker == "" {
				return true
			}
			if _, exists := seen[ticker]; exists {
				return true
			}
			seen[ticker] = struct{}{}
			return yield(ticker)
		}
		for e := range s.events() {
			switch v := e.(type) {
			case acquireLot:
				if account == "" || v.account == account {
					if !process(v.ticker) {
						return
					}
				}
			case disposeLot:
				if account == "" || v.account == account {
					if !process(v.ticker) {
						return
					}
				}
			}
		}
	}
}

// Currencies returns an iterator over all currencies seen in an account's
// cash movements up to the snapshot's date, or in every account when account
// is empty. The order is based on their first appearance.
func (s *Snapshot) Currencies(account string) iter.Seq[string] {
	return func(yield func(string) bool) {
		seen := make(map[string]struct{})
		process := func(cur string) bool {
			if cur == "" {
				return true
			}
			if _, exists := seen[cur]; exists {
				return true
			}
			seen[cur] = struct{}{}
			return yield(cur)
		}
		for e := range s.events() {
			v, ok := e.(postCash)
			if !ok || (account != "" && v.account != account) {
				continue
			}
			if !process(v.currency()) {
				return
			}
			if !v.counter.IsZero() && !process(v.counter.Currency()) {
				return
			}
		}
	}
}
