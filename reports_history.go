package folio

// HistoryEntry is one line of an account's chronological listing.
type HistoryEntry struct {
	Date       Date
	Kind       CommandType
	Ticker     string
	Quantity   Quantity // signed: sales negative, zero for cash movements
	CashEffect Money    // signed settlement amount
	Counter    Money    // credited leg of a conversion
	Memo       string
	Position   Quantity // running position, tracked when the report is ticker-filtered
}

// HistoryReport is the chronological listing of an account's transactions,
// optionally narrowed to one security.
type HistoryReport struct {
	Account string
	Ticker  string
	Entries []HistoryEntry
}

// NewHistory lists the transactions of an account in chronological order.
// With a non-empty ticker only that security's trades and income are listed,
// with a running position.
func NewHistory(ledger *Ledger, account, ticker string) *HistoryReport {
	report := &HistoryReport{Account: account, Ticker: ticker}

	var position Quantity
	for _, tx := range ledger.Transactions(ByAccount(account)) {
		if ticker != "" && tickerOf(tx) != ticker {
			continue
		}
		entry := HistoryEntry{Date: tx.When(), Kind: tx.What()}
		switch v := tx.(type) {
		case Buy:
			entry.Ticker = v.Ticker
			entry.Quantity = v.Quantity
			entry.CashEffect = v.CashEffect()
			entry.Memo = v.Memo
			position = position.Add(v.Quantity)
		case Sell:
			entry.Ticker = v.Ticker
			entry.Quantity = v.Quantity.Neg()
			entry.CashEffect = v.CashEffect()
			entry.Memo = v.Memo
			position = position.Sub(v.Quantity)
		case Deposit:
			entry.CashEffect = v.Amount
			entry.Memo = v.Memo
		case Withdraw:
			entry.CashEffect = v.Amount.Neg()
			entry.Memo = v.Memo
		case Dividend:
			entry.Ticker = v.Ticker
			entry.CashEffect = v.Amount
			entry.Memo = v.Memo
		case Interest:
			entry.CashEffect = v.Amount
			entry.Memo = v.Memo
		case Fee:
			entry.Ticker = v.Ticker
			entry.CashEffect = v.Amount.Neg()
			entry.Memo = v.Memo
		case Convert:
			entry.CashEffect = v.FromAmount.Neg()
			entry.Counter = v.ToAmount
			entry.Memo = v.Memo
		}
		if ticker != "" {
			entry.Position = position
		}
		report.Entries = append(report.Entries, entry)
	}
	return report
}
