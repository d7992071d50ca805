package store

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mwtsai/folio"
)

// transactionRow mirrors one row of the transactions table.
type transactionRow struct {
	ID         int64           `db:"id"`
	AccountID  int64           `db:"account_id"`
	Ticker     string          `db:"ticker"`
	Side       string          `db:"side"`
	Quantity   decimal.Decimal `db:"quantity"`
	Price      decimal.Decimal `db:"price"`
	Fee        decimal.Decimal `db:"fee"`
	Tax        decimal.Decimal `db:"tax"`
	Currency   string          `db:"currency"`
	Memo       *string         `db:"memo"`
	ExecutedOn string          `db:"executed_on"`
	SourceRef  *string         `db:"source_ref"`
	CreatedAt  string          `db:"created_at"`
}

// cashTransactionRow mirrors one row of the cash_transactions table.
type cashTransactionRow struct {
	ID              int64            `db:"id"`
	AccountID       int64            `db:"account_id"`
	Category        string           `db:"category"`
	Ticker          *string          `db:"ticker"`
	Currency        string           `db:"currency"`
	Amount          decimal.Decimal  `db:"amount"`
	CounterCurrency *string          `db:"counter_currency"`
	CounterAmount   *decimal.Decimal `db:"counter_amount"`
	LinkedID        *int64           `db:"linked_transaction_id"`
	Memo            *string          `db:"memo"`
	ExecutedOn      string           `db:"executed_on"`
	SourceRef       *string          `db:"source_ref"`
	CreatedAt       string           `db:"created_at"`
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// command reconstructs the Buy or Sell this row was written from.
func (r transactionRow) command(account string) (folio.Transaction, error) {
	on, err := folio.ParseDate(r.ExecutedOn)
	if err != nil {
		return nil, fmt.Errorf("transaction #%d has unreadable date %q: %w", r.ID, r.ExecutedOn, err)
	}
	quantity := folio.Q(r.Quantity)
	price := folio.M(r.Price, r.Currency)
	fee := folio.M(r.Fee, r.Currency)
	tax := folio.M(r.Tax, r.Currency)
	switch folio.OrderSide(r.Side) {
	case folio.SideBuy:
		return folio.NewBuy(on, account, str(r.Memo), r.Ticker, quantity, price, fee, tax), nil
	case folio.SideSell:
		return folio.NewSell(on, account, str(r.Memo), r.Ticker, quantity, price, fee, tax), nil
	default:
		return nil, fmt.Errorf("transaction #%d has unknown side %q", r.ID, r.Side)
	}
}

// command reconstructs the cash command this row was written from, or nil for
// the TRADE settlement legs that are already covered by their Buy/Sell row.
func (r cashTransactionRow) command(account string) (folio.Transaction, error) {
	category, err := folio.ParseCashCategory(r.Category)
	if err != nil {
		return nil, fmt.Errorf("cash transaction #%d: %w", r.ID, err)
	}
	if category == folio.CashTrade {
		return nil, nil
	}
	on, err := folio.ParseDate(r.ExecutedOn)
	if err != nil {
		return nil, fmt.Errorf("cash transaction #%d has unreadable date %q: %w", r.ID, r.ExecutedOn, err)
	}
	amount := folio.M(r.Amount, r.Currency)
	switch category {
	case folio.CashDeposit:
		return folio.NewDeposit(on, account, str(r.Memo), amount), nil
	case folio.CashWithdrawal:
		return folio.NewWithdraw(on, account, str(r.Memo), amount.Neg()), nil
	case folio.CashDividend:
		return folio.NewDividend(on, account, str(r.Memo), str(r.Ticker), amount), nil
	case folio.CashInterest:
		return folio.NewInterest(on, account, str(r.Memo), amount), nil
	case folio.CashFee:
		return folio.NewFee(on, account, str(r.Memo), str(r.Ticker), amount.Neg()), nil
	case folio.CashConvert:
		if r.CounterCurrency == nil || r.CounterAmount == nil {
			return nil, fmt.Errorf("cash transaction #%d is a conversion without a counter leg", r.ID)
		}
		counter := folio.M(*r.CounterAmount, *r.CounterCurrency)
		return folio.NewConvert(on, account, str(r.Memo), amount.Neg(), counter), nil
	default:
		return nil, fmt.Errorf("cash transaction #%d has unhandled category %q", r.ID, r.Category)
	}
}

// LoadLedger reconstructs the command log of one account (or of every account
// when account is empty) from the persisted transaction and cash transaction
// rows. Replaying the result through a Snapshot reproduces the materialized
// projections; that equivalence is what RebuildProjections and
// VerifyProjections rely on.
func (s *Store) LoadLedger(ctx context.Context, account string) (*folio.Ledger, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	names, err := s.accountNames(ctx, account)
	if err != nil {
		return nil, err
	}

	ledger := folio.NewLedger()
	for id, name := range names {
		var trades []transactionRow
		err := s.db.SelectContext(ctx, &trades,
			s.rebind(`SELECT * FROM transactions WHERE account_id = ? ORDER BY executed_on, id`), id)
		if err != nil {
			return nil, fmt.Errorf("failed to load transactions of %q: %w", name, err)
		}
		for _, row := range trades {
			tx, err := row.command(name)
			if err != nil {
				return nil, err
			}
			ledger.Append(tx)
		}

		var movements []cashTransactionRow
		err = s.db.SelectContext(ctx, &movements,
			s.rebind(`SELECT * FROM cash_transactions WHERE account_id = ? ORDER BY executed_on, id`), id)
		if err != nil {
			return nil, fmt.Errorf("failed to load cash transactions of %q: %w", name, err)
		}
		for _, row := range movements {
			tx, err := row.command(name)
			if err != nil {
				return nil, err
			}
			if tx != nil {
				ledger.Append(tx)
			}
		}
	}
	return ledger, nil
}

// accountNames resolves the accounts to load: one by name, or all of them.
func (s *Store) accountNames(ctx context.Context, account string) (map[int64]string, error) {
	names := make(map[int64]string)
	if account != "" {
		a, err := s.GetAccount(ctx, account)
		if err != nil {
			return nil, err
		}
		names[a.ID] = a.Name
		return names, nil
	}
	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		names[a.ID] = a.Name
	}
	return names, nil
}

// Holdings returns the materialized positions of one account, sorted by
// ticker.
func (s *Store) Holdings(ctx context.Context, account string) ([]folio.Holding, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	a, err := s.GetAccount(ctx, account)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Ticker   string          `db:"ticker"`
		Quantity decimal.Decimal `db:"quantity"`
		AvgCost  decimal.Decimal `db:"avg_cost"`
	}
	err = s.db.SelectContext(ctx, &rows,
		s.rebind(`SELECT ticker, quantity, avg_cost FROM holdings WHERE account_id = ? ORDER BY ticker`), a.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings of %q: %w", account, err)
	}
	holdings := make([]folio.Holding, 0, len(rows))
	for _, row := range rows {
		holdings = append(holdings, folio.Holding{
			Account:     account,
			Ticker:      row.Ticker,
			Quantity:    folio.Q(row.Quantity),
			AverageCost: folio.M(row.AvgCost, folio.MarketOf(row.Ticker).Currency()),
		})
	}
	return holdings, nil
}

// CashBalances returns the materialized cash positions of one account, sorted
// by currency.
func (s *Store) CashBalances(ctx context.Context, account string) ([]folio.CashBalance, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	a, err := s.GetAccount(ctx, account)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Currency string          `db:"currency"`
		Balance  decimal.Decimal `db:"balance"`
	}
	err = s.db.SelectContext(ctx, &rows,
		s.rebind(`SELECT currency, balance FROM cash_positions WHERE account_id = ? ORDER BY currency`), a.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cash positions of %q: %w", account, err)
	}
	balances := make([]folio.CashBalance, 0, len(rows))
	for _, row := range rows {
		balances = append(balances, folio.CashBalance{
			Account:  account,
			Currency: row.Currency,
			Balance:  folio.M(row.Balance, row.Currency),
		})
	}
	return balances, nil
}
