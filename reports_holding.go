package folio

// AccountHoldings is the unvalued state of one account on a date: positions
// at their average cost plus cash balances, straight from replay.
type AccountHoldings struct {
	Account  string
	Holdings []Holding
	Cash     []CashBalance
}

// HoldingsReport lists what the portfolio holds on a date without touching
// market data, so it works offline and is exact.
type HoldingsReport struct {
	Date     Date
	Accounts []AccountHoldings
}

// NewHoldings replays the ledger up to a date and lists every open position
// and non-zero cash balance, for one account or for all accounts when account
// is empty.
func NewHoldings(ledger *Ledger, on Date, account string) (*HoldingsReport, error) {
	journal, err := NewJournal(ledger)
	if err != nil {
		return nil, err
	}
	snapshot := NewSnapshot(journal, on)

	report := &HoldingsReport{Date: on}
	for acc := range snapshot.Accounts() {
		if account != "" && acc != account {
			continue
		}
		ah := AccountHoldings{Account: acc}
		for ticker := range snapshot.Securities(acc) {
			h := snapshot.Holding(acc, ticker)
			if h.Quantity.IsZero() {
				continue
			}
			ah.Holdings = append(ah.Holdings, h)
		}
		for cur := range snapshot.Currencies(acc) {
			balance := snapshot.Cash(acc, cur)
			if balance.IsZero() {
				continue
			}
			ah.Cash = append(ah.Cash, CashBalance{Account: acc, Currency: cur, Balance: balance})
		}
		if len(ah.Holdings) == 0 && len(ah.Cash) == 0 {
			continue
		}
		report.Accounts = append(report.Accounts, ah)
	}
	return report, nil
}
