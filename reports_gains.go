package folio

// SecurityGains holds the gains locked in on one security over the reported
// period, plus the income it paid out.
type SecurityGains struct {
	Account   string
	Ticker    string
	Quantity  Quantity // position at the end of the period
	Realized  Money    // realized over the period, in the trade currency
	Dividends Money    // dividends received over the period
}

// GainsReport lists the realized gains of a period, computed by replaying the
// command log through the shared average cost arithmetic.
type GainsReport struct {
	From       Date
	To         Date
	Account    string // empty for the whole portfolio
	Securities []SecurityGains
	Realized   []Money // per-currency totals, sorted by currency
	Dividends  []Money
}

// NewGains computes realized gains and dividend income between from and to,
// inclusive, for one account or for all accounts when account is empty.
func NewGains(ledger *Ledger, from, to Date, account string) (*GainsReport, error) {
	journal, err := NewJournal(ledger)
	if err != nil {
		return nil, err
	}
	// Gains realized strictly before the period are subtracted out.
	start := NewSnapshot(journal, from.Add(-1))
	end := NewSnapshot(journal, to)

	report := &GainsReport{From: from, To: to, Account: account}
	realized := make(map[string]Money)
	dividends := make(map[string]Money)

	for acc := range end.Accounts() {
		if account != "" && acc != account {
			continue
		}
		for ticker := range end.Securities(acc) {
			gain := end.RealizedGains(acc, ticker).Sub(start.RealizedGains(acc, ticker))
			income := end.Dividends(acc, ticker).Sub(start.Dividends(acc, ticker))
			if gain.IsZero() && income.IsZero() {
				continue
			}
			report.Securities = append(report.Securities, SecurityGains{
				Account:   acc,
				Ticker:    ticker,
				Quantity:  end.Position(acc, ticker),
				Realized:  gain,
				Dividends: income,
			})
			addTotal(realized, gain)
			addTotal(dividends, income)
		}
	}

	report.Realized = sortedTotals(realized)
	report.Dividends = sortedTotals(dividends)
	return report, nil
}
