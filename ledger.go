package folio

import (
	"iter"
	"maps"
	"slices"
	"sort"
)

// Ledger represents a list of transactions.
//
// In a Ledger transactions are always in chronological order.
type Ledger struct {
	transactions []Transaction
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{transactions: make([]Transaction, 0)}
}

// Append appends transactions to this ledger and maintains the chronological
// order of transactions.
func (l *Ledger) Append(txs ...Transaction) {
	l.transactions = append(l.transactions, txs...)
	l.stableSort() // Ensure the ledger remains sorted after appending
}

// Len returns the number of transactions in the ledger.
func (l *Ledger) Len() int { return len(l.transactions) }

// Transactions returns an iterator that yields each transaction in
// chronological order. Without filters every transaction is yielded; with
// filters, a transaction is yielded when any filter accepts it.
func (l *Ledger) Transactions(filters ...func(Transaction) bool) iter.Seq2[int, Transaction] {
	return func(yield func(int, Transaction) bool) {
		for i, tx := range l.transactions {
			accept := len(filters) == 0
			for _, filter := range filters {
				if filter(tx) {
					accept = true
					break
				}
			}
			if !accept {
				continue
			}
			if !yield(i, tx) {
				return
			}
		}
	}
}

// stableSort sorts the ledger by transaction date. The sort is stable, meaning
// transactions on the same day maintain their original relative order.
func (l *Ledger) stableSort() {
	sort.SliceStable(l.transactions, func(i, j int) bool {
		return l.transactions[i].When().Before(l.transactions[j].When())
	})
}

// OldestTransactionDate returns the date of the earliest transaction in the
// ledger, or the zero date if the ledger is empty.
func (l *Ledger) OldestTransactionDate() Date {
	if len(l.transactions) == 0 {
		return Date{}
	}
	return l.transactions[0].When()
}

// NewestTransactionDate returns the date of the latest transaction in the
// ledger, or the zero date if the ledger is empty.
func (l *Ledger) NewestTransactionDate() Date {
	if len(l.transactions) == 0 {
		return Date{}
	}
	return l.transactions[len(l.transactions)-1].When()
}

// CashBalance computes an account's cash in a specific currency on a specific
// date, folding the raw transactions.
func (l *Ledger) CashBalance(account, currency string, on Date) Money {
	balance := M(0, currency)
	for _, tx := range l.transactions {
		if tx.When().After(on) {
			// The ledger is sorted by date, so it's safe to break.
			break
		}
		if tx.Where() != account {
			continue
		}
		switch v := tx.(type) {
		case Buy:
			if v.Currency() == currency {
				balance = balance.Add(v.CashEffect())
			}
		case Sell:
			if v.Currency() == currency {
				balance = balance.Add(v.CashEffect())
			}
		case Deposit:
			if v.Amount.Currency() == currency {
				balance = balance.Add(v.Amount)
			}
		case Withdraw:
			if v.Amount.Currency() == currency {
				balance = balance.Sub(v.Amount)
			}
		case Dividend:
			if v.Amount.Currency() == currency {
				balance = balance.Add(v.Amount)
			}
		case Interest:
			if v.Amount.Currency() == currency {
				balance = balance.Add(v.Amount)
			}
		case Fee:
			if v.Amount.Currency() == currency {
				balance = balance.Sub(v.Amount)
			}
		case Convert:
			if v.FromAmount.Currency() == currency {
				balance = balance.Sub(v.FromAmount)
			}
			if v.ToAmount.Currency() == currency {
				balance = balance.Add(v.ToAmount)
			}
		}
	}
	return balance
}

// Position computes the quantity of a security held in an account on a
// specific date, folding the raw transactions.
func (l *Ledger) Position(account, ticker string, on Date) Quantity {
	var position Quantity
	for _, tx := range l.transactions {
		if tx.When().After(on) {
			break
		}
		if tx.Where() != account {
			continue
		}
		switch v := tx.(type) {
		case Buy:
			if v.Ticker == ticker {
				position = position.Add(v.Quantity)
			}
		case Sell:
			if v.Ticker == ticker {
				position = position.Sub(v.Quantity)
			}
		}
	}
	return position
}

// AllAccounts iterates over all account names that appear in the ledger, in
// alphabetical order.
func (l *Ledger) AllAccounts() iter.Seq[string] {
	return func(yield func(string) bool) {
		visited := make(map[string]struct{})
		for _, tx := range l.transactions {
			visited[tx.Where()] = struct{}{}
		}
		accounts := slices.Collect(maps.Keys(visited))
		slices.Sort(accounts)
		for _, account := range accounts {
			if !yield(account) {
				return
			}
		}
	}
}

// AllSecurities iterates over all tickers that appear in the ledger, in
// alphabetical order.
func (l *Ledger) AllSecurities() iter.Seq[string] {
	return func(yield func(string) bool) {
		visited := make(map[string]struct{})
		for _, tx := range l.transactions {
			if ticker := tickerOf(tx); ticker != "" {
				visited[ticker] = struct{}{}
			}
		}
		tickers := slices.Collect(maps.Keys(visited))
		slices.Sort(tickers)
		for _, ticker := range tickers {
			if !yield(ticker) {
				return
			}
		}
	}
}

// AllCurrencies iterates over all currencies that appear in the ledger's
// transactions, in alphabetical order.
func (l *Ledger) AllCurrencies() iter.Seq[string] {
	return func(yield func(string) bool) {
		visited := make(map[string]struct{})
		for _, tx := range l.transactions {
			switch v := tx.(type) {
			case Buy:
				visited[v.Currency()] = struct{}{}
			case Sell:
				visited[v.Currency()] = struct{}{}
			case Deposit:
				visited[v.Amount.Currency()] = struct{}{}
			case Withdraw:
				visited[v.Amount.Currency()] = struct{}{}
			case Dividend:
				visited[v.Amount.Currency()] = struct{}{}
			case Interest:
				visited[v.Amount.Currency()] = struct{}{}
			case Fee:
				visited[v.Amount.Currency()] = struct{}{}
			case Convert:
				visited[v.FromAmount.Currency()] = struct{}{}
				visited[v.ToAmount.Currency()] = struct{}{}
			}
		}
		currencies := slices.Collect(maps.Keys(visited))
		slices.Sort(currencies)
		for _, currency := range currencies {
			if !yield(currency) {
				return
			}
		}
	}
}

// tickerOf returns the security a transaction relates to, or "" for pure cash
// movements.
func tickerOf(tx Transaction) string {
	switch v := tx.(type) {
	case Buy:
		return v.Ticker
	case Sell:
		return v.Ticker
	case Dividend:
		return v.Ticker
	case Fee:
		return v.Ticker
	default:
		return ""
	}
}

// ByAccount returns a predicate that filters transactions by account name.
func ByAccount(account string) func(Transaction) bool {
	return func(tx Transaction) bool { return tx.Where() == account }
}

// BySecurity returns a predicate that filters transactions by security ticker.
func BySecurity(ticker string) func(Transaction) bool {
	return func(tx Transaction) bool { return tickerOf(tx) == ticker }
}

// ByCurrency returns a predicate that filters transactions by currency.
func ByCurrency(currency string) func(Transaction) bool {
	return func(tx Transaction) bool {
		switch v := tx.(type) {
		case Buy:
			return v.Currency() == currency
		case Sell:
			return v.Currency() == currency
		case Deposit:
			return v.Amount.Currency() == currency
		case Withdraw:
			return v.Amount.Currency() == currency
		case Dividend:
			return v.Amount.Currency() == currency
		case Interest:
			return v.Amount.Currency() == currency
		case Fee:
			return v.Amount.Currency() == currency
		case Convert:
			return v.FromAmount.Currency() == currency || v.ToAmount.Currency() == currency
		default:
			return false
		}
	}
}
