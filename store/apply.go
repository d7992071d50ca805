package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mwtsai/folio"
)

// Apply records a single transaction: the immutable log rows and the
// projection updates commit together or not at all. It returns the id of the
// transaction's primary row.
func (s *Store) Apply(ctx context.Context, command folio.Transaction) (int64, error) {
	return s.applyLocked(ctx, command, "")
}

// applyLocked validates the command, serializes on its account and runs the
// mutation in one database transaction.
func (s *Store) applyLocked(ctx context.Context, command folio.Transaction, sourceRef string) (int64, error) {
	command, err := command.Validate()
	if err != nil {
		return 0, err
	}

	mu := s.accountLock(command.Where())
	mu.Lock()
	defer mu.Unlock()

	return s.applyHeld(ctx, command, sourceRef)
}

// applyHeld runs a validated command in one database transaction. The caller
// holds the account lock.
func (s *Store) applyHeld(ctx context.Context, command folio.Transaction, sourceRef string) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	dbtx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbtx.Rollback()

	id, err := s.applyTx(ctx, dbtx, command, sourceRef)
	if err != nil {
		return 0, err
	}
	if err := dbtx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit %s: %w", command.What(), err)
	}
	log.Debug().
		Stringer("date", command.When()).
		Str("account", command.Where()).
		Str("command", string(command.What())).
		Int64("id", id).
		Msg("applied")
	return id, nil
}

// applyTx writes one validated command inside a running database transaction.
// The caller holds the account lock.
func (s *Store) applyTx(ctx context.Context, dbtx *sqlx.Tx, command folio.Transaction, sourceRef string) (int64, error) {
	if sourceRef != "" {
		exists, err := s.sourceRefExistsTx(ctx, dbtx, sourceRef)
		if err != nil {
			return 0, err
		}
		if exists {
			return 0, fmt.Errorf("source ref %q: %w", sourceRef, folio.ErrDuplicateImport)
		}
	}
	account, err := s.loadAccountTx(ctx, dbtx, command.Where())
	if err != nil {
		return 0, err
	}
	switch v := command.(type) {
	case folio.Buy:
		return s.applyTrade(ctx, dbtx, account, trade{
			on: v.When(), ticker: v.Ticker, side: folio.SideBuy,
			quantity: v.Quantity, price: v.Price, fee: v.Fee, tax: v.Tax,
			cashEffect: v.CashEffect(), memo: v.Memo, sourceRef: sourceRef,
		})
	case folio.Sell:
		return s.applyTrade(ctx, dbtx, account, trade{
			on: v.When(), ticker: v.Ticker, side: folio.SideSell,
			quantity: v.Quantity, price: v.Price, fee: v.Fee, tax: v.Tax,
			cashEffect: v.CashEffect(), memo: v.Memo, sourceRef: sourceRef,
		})
	case folio.Deposit:
		return s.applyCash(ctx, dbtx, account, cashMovement{
			on: v.When(), category: folio.CashDeposit, amount: v.Amount,
			memo: v.Memo, sourceRef: sourceRef,
		})
	case folio.Withdraw:
		return s.applyCash(ctx, dbtx, account, cashMovement{
			on: v.When(), category: folio.CashWithdrawal, amount: v.Amount.Neg(),
			memo: v.Memo, sourceRef: sourceRef,
		})
	case folio.Dividend:
		return s.applyCash(ctx, dbtx, account, cashMovement{
			on: v.When(), category: folio.CashDividend, ticker: v.Ticker, amount: v.Amount,
			memo: v.Memo, sourceRef: sourceRef,
		})
	case folio.Interest:
		return s.applyCash(ctx, dbtx, account, cashMovement{
			on: v.When(), category: folio.CashInterest, amount: v.Amount,
			memo: v.Memo, sourceRef: sourceRef,
		})
	case folio.Fee:
		return s.applyCash(ctx, dbtx, account, cashMovement{
			on: v.When(), category: folio.CashFee, ticker: v.Ticker, amount: v.Amount.Neg(),
			memo: v.Memo, sourceRef: sourceRef,
		})
	case folio.Convert:
		return s.applyCash(ctx, dbtx, account, cashMovement{
			on: v.When(), category: folio.CashConvert, amount: v.FromAmount.Neg(), counter: v.ToAmount,
			memo: v.Memo, sourceRef: sourceRef,
		})
	default:
		return 0, fmt.Errorf("%w: unhandled transaction type %T", folio.ErrValidation, command)
	}
}

// trade carries a Buy or Sell through settlement.
type trade struct {
	on         folio.Date
	ticker     string
	side       folio.OrderSide
	quantity   folio.Quantity
	price      folio.Money
	fee        folio.Money
	tax        folio.Money
	cashEffect folio.Money // signed settlement amount in the trade currency
	memo       string
	sourceRef  string
}

// cashMovement is one row of the cash statement, signed. A conversion carries
// its credited leg in counter.
type cashMovement struct {
	on        folio.Date
	category  folio.CashCategory
	ticker    string
	amount    folio.Money
	counter   folio.Money
	linked    int64
	memo      string
	sourceRef string
}

// applyTrade settles a trade: the transaction row, its cash rows and the
// projection updates. A trade priced in a currency other than the account's
// settlement currency is settled through a conversion at the current exchange
// rate, recorded as its own row so the rate stays frozen in the books.
func (s *Store) applyTrade(ctx context.Context, dbtx *sqlx.Tx, account accountRow, t trade) (int64, error) {
	// Fold the trade into the holding first so an oversell fails before
	// anything is written.
	holding, err := s.holdingTx(ctx, dbtx, account, t.ticker)
	if err != nil {
		return 0, err
	}
	switch t.side {
	case folio.SideBuy:
		holding = holding.Buy(t.quantity, t.price)
	default:
		holding, _, err = holding.Sell(t.quantity, t.price)
		if err != nil {
			return 0, err
		}
	}

	tradeCur := t.cashEffect.Currency()
	rows := []cashMovement{
		{on: t.on, category: folio.CashTrade, ticker: t.ticker, amount: t.cashEffect, memo: t.memo},
	}
	if tradeCur != account.Currency {
		rate, err := s.conversionRate(ctx, tradeCur, account.Currency)
		if err != nil {
			return 0, err
		}
		converted := folio.M(t.cashEffect.Decimal().Abs().Mul(rate), account.Currency)
		memo := fmt.Sprintf("%s %s settlement", t.side, t.ticker)
		if t.side == folio.SideBuy {
			rows = append(rows, cashMovement{
				on: t.on, category: folio.CashConvert,
				amount: converted.Neg(), counter: t.cashEffect.Neg(), memo: memo,
			})
		} else {
			rows = append(rows, cashMovement{
				on: t.on, category: folio.CashConvert,
				amount: t.cashEffect.Neg(), counter: converted, memo: memo,
			})
		}
	}

	id, err := s.insertReturningID(ctx, dbtx, `
		INSERT INTO transactions (account_id, ticker, side, quantity, price, fee, tax, currency, memo, executed_on, source_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID, t.ticker, string(t.side), t.quantity.Decimal(), t.price.Decimal(),
		t.fee.Decimal(), t.tax.Decimal(), tradeCur,
		nullString(t.memo), t.on.String(), nullString(t.sourceRef), tsNow())
	if err != nil {
		if t.sourceRef != "" && isUniqueViolation(err) {
			return 0, fmt.Errorf("source ref %q: %w", t.sourceRef, folio.ErrDuplicateImport)
		}
		return 0, fmt.Errorf("failed to record %s %s: %w", t.side, t.ticker, err)
	}

	deltas := make(map[string]folio.Money)
	for _, row := range rows {
		row.linked = id
		if _, err := s.insertCashTx(ctx, dbtx, account.ID, row); err != nil {
			return 0, err
		}
		addDelta(deltas, row.amount)
		if !row.counter.IsZero() {
			addDelta(deltas, row.counter)
		}
	}
	if err := s.settleCash(ctx, dbtx, account, deltas); err != nil {
		return 0, err
	}
	if err := s.saveHoldingTx(ctx, dbtx, account.ID, holding); err != nil {
		return 0, err
	}
	return id, nil
}

// applyCash records one cash movement and updates the balances it touches.
func (s *Store) applyCash(ctx context.Context, dbtx *sqlx.Tx, account accountRow, m cashMovement) (int64, error) {
	id, err := s.insertCashTx(ctx, dbtx, account.ID, m)
	if err != nil {
		return 0, err
	}
	deltas := make(map[string]folio.Money)
	addDelta(deltas, m.amount)
	if !m.counter.IsZero() {
		addDelta(deltas, m.counter)
	}
	if err := s.settleCash(ctx, dbtx, account, deltas); err != nil {
		return 0, err
	}
	return id, nil
}

// settleCash folds per-currency deltas into the account's cash positions. A
// balance may only go negative on a margin account.
func (s *Store) settleCash(ctx context.Context, dbtx *sqlx.Tx, account accountRow, deltas map[string]folio.Money) error {
	for _, currency := range slices.Sorted(maps.Keys(deltas)) {
		delta := deltas[currency]
		if delta.IsZero() {
			continue
		}
		balance, err := s.cashBalanceTx(ctx, dbtx, account.ID, currency)
		if err != nil {
			return err
		}
		next := balance.Add(delta)
		if next.IsNegative() && !account.Margin {
			return fmt.Errorf("%w: %s needs %s, holds %s",
				folio.ErrInsufficientCash, account.Name, delta.Neg(), balance)
		}
		upsert := `INSERT INTO cash_positions (account_id, currency, balance, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (account_id, currency) DO UPDATE SET balance = excluded.balance, updated_at = excluded.updated_at`
		if _, err := dbtx.ExecContext(ctx, s.rebind(upsert), account.ID, currency, next.Decimal(), tsNow()); err != nil {
			return fmt.Errorf("failed to update %s %s balance: %w", account.Name, currency, err)
		}
	}
	return nil
}

// holdingTx loads the current position of a security, zero when none exists.
func (s *Store) holdingTx(ctx context.Context, dbtx *sqlx.Tx, account accountRow, ticker string) (folio.Holding, error) {
	h := folio.Holding{Account: account.Name, Ticker: ticker}
	var row struct {
		Quantity decimal.Decimal `db:"quantity"`
		AvgCost  decimal.Decimal `db:"avg_cost"`
	}
	err := dbtx.GetContext(ctx, &row,
		s.rebind(`SELECT quantity, avg_cost FROM holdings WHERE account_id = ? AND ticker = ?`),
		account.ID, ticker)
	if errors.Is(err, sql.ErrNoRows) {
		return h, nil
	}
	if err != nil {
		return h, fmt.Errorf("failed to load holding %s %s: %w", account.Name, ticker, err)
	}
	h.Quantity = folio.Q(row.Quantity)
	h.AverageCost = folio.M(row.AvgCost, folio.MarketOf(ticker).Currency())
	return h, nil
}

// cashBalanceTx loads the current balance of a currency, zero when none exists.
func (s *Store) cashBalanceTx(ctx context.Context, dbtx *sqlx.Tx, accountID int64, currency string) (folio.Money, error) {
	var balance decimal.Decimal
	err := dbtx.GetContext(ctx, &balance,
		s.rebind(`SELECT balance FROM cash_positions WHERE account_id = ? AND currency = ?`),
		accountID, currency)
	if errors.Is(err, sql.ErrNoRows) {
		return folio.M(0, currency), nil
	}
	if err != nil {
		return folio.Money{}, fmt.Errorf("failed to load %s balance: %w", currency, err)
	}
	return folio.M(balance, currency), nil
}

// insertCashTx appends one row to the cash statement.
func (s *Store) insertCashTx(ctx context.Context, dbtx *sqlx.Tx, accountID int64, m cashMovement) (int64, error) {
	var counterCur, counterAmount any
	if !m.counter.IsZero() {
		counterCur = m.counter.Currency()
		counterAmount = m.counter.Decimal()
	}
	id, err := s.insertReturningID(ctx, dbtx, `
		INSERT INTO cash_transactions (account_id, category, ticker, currency, amount, counter_currency, counter_amount, linked_transaction_id, memo, executed_on, source_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		accountID, string(m.category), nullString(m.ticker), m.amount.Currency(), m.amount.Decimal(),
		counterCur, counterAmount, nullInt64(m.linked),
		nullString(m.memo), m.on.String(), nullString(m.sourceRef), tsNow())
	if err != nil {
		if m.sourceRef != "" && isUniqueViolation(err) {
			return 0, fmt.Errorf("source ref %q: %w", m.sourceRef, folio.ErrDuplicateImport)
		}
		return 0, fmt.Errorf("failed to record %s: %w", m.category, err)
	}
	return id, nil
}

// saveHoldingTx upserts a position, removing the row once it is sold down to
// zero.
func (s *Store) saveHoldingTx(ctx context.Context, dbtx *sqlx.Tx, accountID int64, h folio.Holding) error {
	if h.Quantity.IsZero() {
		_, err := dbtx.ExecContext(ctx,
			s.rebind(`DELETE FROM holdings WHERE account_id = ? AND ticker = ?`), accountID, h.Ticker)
		if err != nil {
			return fmt.Errorf("failed to close holding %s: %w", h.Ticker, err)
		}
		return nil
	}
	upsert := `INSERT INTO holdings (account_id, ticker, quantity, avg_cost, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (account_id, ticker) DO UPDATE SET quantity = excluded.quantity, avg_cost = excluded.avg_cost, updated_at = excluded.updated_at`
	_, err := dbtx.ExecContext(ctx, s.rebind(upsert),
		accountID, h.Ticker, h.Quantity.Decimal(), h.AverageCost.Decimal(), tsNow())
	if err != nil {
		return fmt.Errorf("failed to update holding %s: %w", h.Ticker, err)
	}
	return nil
}

// conversionRate fetches the rate used to settle a cross-currency trade.
func (s *Store) conversionRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if s.rates == nil {
		return decimal.Decimal{}, fmt.Errorf("%w: no rate source to settle %s in %s", folio.ErrQuoteUnavailable, from, to)
	}
	rate, err := s.rates.ConversionRate(ctx, from, to)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("cannot settle %s in %s: %w", from, to, err)
	}
	if !rate.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: rate %s/%s is %s", folio.ErrQuoteUnavailable, from, to, rate)
	}
	return rate, nil
}

// addDelta accumulates a signed amount into the per-currency deltas.
func addDelta(deltas map[string]folio.Money, m folio.Money) {
	if existing, ok := deltas[m.Currency()]; ok {
		deltas[m.Currency()] = existing.Add(m)
		return
	}
	deltas[m.Currency()] = m
}

// nullString maps "" to NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullInt64 maps 0 to NULL.
func nullInt64(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}
