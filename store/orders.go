package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mwtsai/folio"
)

// orderRow mirrors one row of the planned_orders table.
type orderRow struct {
	ID             int64            `db:"id"`
	AccountID      int64            `db:"account_id"`
	Ticker         string           `db:"ticker"`
	Side           string           `db:"side"`
	Quantity       decimal.Decimal  `db:"quantity"`
	TargetPrice    *decimal.Decimal `db:"target_price"`
	TargetCurrency *string          `db:"target_currency"`
	Note           *string          `db:"note"`
	Priority       string           `db:"priority"`
	Status         string           `db:"status"`
	LinkedID       *int64           `db:"linked_transaction_id"`
	CreatedAt      string           `db:"created_at"`
	ExecutedAt     *string          `db:"executed_at"`
}

func (r orderRow) order(account string) folio.PlannedOrder {
	o := folio.PlannedOrder{
		ID:       r.ID,
		Account:  account,
		Ticker:   r.Ticker,
		Side:     folio.OrderSide(r.Side),
		Quantity: folio.Q(r.Quantity),
		Note:     str(r.Note),
		Priority: folio.OrderPriority(r.Priority),
		Status:   folio.OrderStatus(r.Status),
	}
	if r.TargetPrice != nil && r.TargetCurrency != nil {
		o.TargetPrice = folio.M(*r.TargetPrice, *r.TargetCurrency)
	}
	if r.LinkedID != nil {
		o.LinkedTransactionID = *r.LinkedID
	}
	if at, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
		o.CreatedAt = at
	}
	if r.ExecutedAt != nil {
		if at, err := time.Parse(time.RFC3339, *r.ExecutedAt); err == nil {
			o.ExecutedAt = at
		}
	}
	return o
}

// PlanOrder records a new pending order and returns it with its assigned id.
func (s *Store) PlanOrder(ctx context.Context, o folio.PlannedOrder) (folio.PlannedOrder, error) {
	if err := o.Validate(); err != nil {
		return folio.PlannedOrder{}, err
	}
	if o.Status != folio.OrderPending {
		return folio.PlannedOrder{}, fmt.Errorf("%w: a new order must be PENDING, got %s", folio.ErrValidation, o.Status)
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	dbtx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return folio.PlannedOrder{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbtx.Rollback()

	account, err := s.loadAccountTx(ctx, dbtx, o.Account)
	if err != nil {
		return folio.PlannedOrder{}, err
	}
	var price, currency any
	if !o.AtMarket() {
		price = o.TargetPrice.Decimal()
		currency = o.TargetPrice.Currency()
	}
	id, err := s.insertReturningID(ctx, dbtx, `
		INSERT INTO planned_orders (account_id, ticker, side, quantity, target_price, target_currency, note, priority, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID, o.Ticker, string(o.Side), o.Quantity.Decimal(), price, currency,
		nullString(o.Note), string(o.Priority), string(folio.OrderPending), tsNow())
	if err != nil {
		return folio.PlannedOrder{}, fmt.Errorf("failed to plan order %s %s: %w", o.Side, o.Ticker, err)
	}
	if err := dbtx.Commit(); err != nil {
		return folio.PlannedOrder{}, fmt.Errorf("failed to commit order: %w", err)
	}
	o.ID = id
	return o, nil
}

// GetOrder loads one planned order by id.
func (s *Store) GetOrder(ctx context.Context, id int64) (folio.PlannedOrder, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	dbtx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return folio.PlannedOrder{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbtx.Rollback()

	_, order, err := s.getOrderTx(ctx, dbtx, id)
	return order, err
}

// getOrderTx loads one order inside a running transaction, with its account
// name resolved.
func (s *Store) getOrderTx(ctx context.Context, dbtx *sqlx.Tx, id int64) (orderRow, folio.PlannedOrder, error) {
	var row orderRow
	err := dbtx.GetContext(ctx, &row, s.rebind(`SELECT * FROM planned_orders WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return orderRow{}, folio.PlannedOrder{}, fmt.Errorf("order #%d: %w", id, folio.ErrNotFound)
	}
	if err != nil {
		return orderRow{}, folio.PlannedOrder{}, fmt.Errorf("failed to load order #%d: %w", id, err)
	}
	var account string
	if err := dbtx.GetContext(ctx, &account, s.rebind(`SELECT name FROM accounts WHERE id = ?`), row.AccountID); err != nil {
		return orderRow{}, folio.PlannedOrder{}, fmt.Errorf("failed to resolve account of order #%d: %w", id, err)
	}
	return row, row.order(account), nil
}

// ListOrders returns planned orders, optionally restricted to one account and
// one status, sorted by priority (highest first) then by id.
func (s *Store) ListOrders(ctx context.Context, account string, status folio.OrderStatus) ([]folio.PlannedOrder, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `SELECT po.*, a.name AS account_name FROM planned_orders po JOIN accounts a ON a.id = po.account_id`
	var args []any
	var where []string
	if account != "" {
		where = append(where, "a.name = ?")
		args = append(args, account)
	}
	if status != "" {
		where = append(where, "po.status = ?")
		args = append(args, string(status))
	}
	for i, cond := range where {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY po.id"

	var rows []struct {
		orderRow
		AccountName string `db:"account_name"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	orders := make([]folio.PlannedOrder, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, row.orderRow.order(row.AccountName))
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].Priority.Weight() > orders[j].Priority.Weight()
	})
	return orders, nil
}

// UpdateOrder changes the mutable fields of a pending order. Terminal orders
// fail with ErrInvalidStateTransition.
func (s *Store) UpdateOrder(ctx context.Context, o folio.PlannedOrder) error {
	if err := o.Validate(); err != nil {
		return err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	dbtx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbtx.Rollback()

	_, current, err := s.getOrderTx(ctx, dbtx, o.ID)
	if err != nil {
		return err
	}
	if err := current.CanUpdate(); err != nil {
		return err
	}
	var price, currency any
	if !o.AtMarket() {
		price = o.TargetPrice.Decimal()
		currency = o.TargetPrice.Currency()
	}
	_, err = dbtx.ExecContext(ctx, s.rebind(`
		UPDATE planned_orders SET quantity = ?, target_price = ?, target_currency = ?, note = ?, priority = ?
		WHERE id = ? AND status = ?`),
		o.Quantity.Decimal(), price, currency, nullString(o.Note), string(o.Priority),
		o.ID, string(folio.OrderPending))
	if err != nil {
		return fmt.Errorf("failed to update order #%d: %w", o.ID, err)
	}
	return dbtx.Commit()
}

// CancelOrder transitions a pending order to CANCELLED.
func (s *Store) CancelOrder(ctx context.Context, id int64) (folio.PlannedOrder, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	dbtx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return folio.PlannedOrder{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbtx.Rollback()

	_, order, err := s.getOrderTx(ctx, dbtx, id)
	if err != nil {
		return folio.PlannedOrder{}, err
	}
	cancelled, err := order.Cancel()
	if err != nil {
		return folio.PlannedOrder{}, err
	}
	_, err = dbtx.ExecContext(ctx, s.rebind(`UPDATE planned_orders SET status = ? WHERE id = ? AND status = ?`),
		string(folio.OrderCancelled), id, string(folio.OrderPending))
	if err != nil {
		return folio.PlannedOrder{}, fmt.Errorf("failed to cancel order #%d: %w", id, err)
	}
	if err := dbtx.Commit(); err != nil {
		return folio.PlannedOrder{}, fmt.Errorf("failed to commit cancellation of order #%d: %w", id, err)
	}
	return cancelled, nil
}

// ExecuteOrder realizes a pending order as a trade at the given fill price.
// The trade settlement and the order transition commit in one database
// transaction: when the ledger rejects the trade (oversell, insufficient
// cash), the order stays PENDING and nothing is written.
func (s *Store) ExecuteOrder(ctx context.Context, id int64, day folio.Date, fillPrice, fee, tax folio.Money) (folio.PlannedOrder, error) {
	// Resolve the account first to serialize on the right lock.
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return folio.PlannedOrder{}, err
	}

	mu := s.accountLock(order.Account)
	mu.Lock()
	defer mu.Unlock()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	dbtx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return folio.PlannedOrder{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbtx.Rollback()

	// Reload under the lock: the order may have been executed or cancelled
	// since the first read.
	_, order, err = s.getOrderTx(ctx, dbtx, id)
	if err != nil {
		return folio.PlannedOrder{}, err
	}
	if order.Status != folio.OrderPending {
		return folio.PlannedOrder{}, fmt.Errorf("%w: order #%d is already %s",
			folio.ErrInvalidStateTransition, id, order.Status)
	}
	command, err := order.Command(day, fillPrice, fee, tax)
	if err != nil {
		return folio.PlannedOrder{}, err
	}
	txID, err := s.applyTx(ctx, dbtx, command, "")
	if err != nil {
		return folio.PlannedOrder{}, err
	}
	now := time.Now().UTC()
	executed, err := order.Execute(txID, now)
	if err != nil {
		return folio.PlannedOrder{}, err
	}
	res, err := dbtx.ExecContext(ctx, s.rebind(`
		UPDATE planned_orders SET status = ?, linked_transaction_id = ?, executed_at = ?
		WHERE id = ? AND status = ?`),
		string(folio.OrderExecuted), txID, now.Format(time.RFC3339), id, string(folio.OrderPending))
	if err != nil {
		return folio.PlannedOrder{}, fmt.Errorf("failed to mark order #%d executed: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return folio.PlannedOrder{}, fmt.Errorf("%w: order #%d left PENDING concurrently", folio.ErrInvalidStateTransition, id)
	}
	if err := dbtx.Commit(); err != nil {
		return folio.PlannedOrder{}, fmt.Errorf("failed to commit execution of order #%d: %w", id, err)
	}
	log.Info().
		Int64("order", id).
		Int64("transaction", txID).
		Str("account", order.Account).
		Str("ticker", order.Ticker).
		Msg("planned order executed")
	return executed, nil
}
