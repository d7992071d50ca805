package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwtsai/folio"
)

func planTestOrder(t *testing.T, s *Store, account, ticker string, side folio.OrderSide, qty int, priority folio.OrderPriority) folio.PlannedOrder {
	t.Helper()
	o := folio.NewPlannedOrder(account, ticker, side, folio.Q(qty), folio.Money{}, "", priority)
	planned, err := s.PlanOrder(context.Background(), o)
	require.NoError(t, err)
	return planned
}

func TestPlanAndGetOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestAccount(t, s, "ft", folio.US, false)

	o := folio.NewPlannedOrder("ft", "VT", folio.SideBuy, folio.Q(10), folio.M(100, "USD"), "rebalance", folio.PriorityHigh)
	planned, err := s.PlanOrder(ctx, o)
	require.NoError(t, err)
	require.NotZero(t, planned.ID)
	assert.Equal(t, folio.OrderPending, planned.Status)

	got, err := s.GetOrder(ctx, planned.ID)
	require.NoError(t, err)
	assert.Equal(t, "ft", got.Account)
	assert.Equal(t, "VT", got.Ticker)
	assert.Equal(t, folio.SideBuy, got.Side)
	assert.True(t, got.Quantity.Equal(folio.Q(10)))
	assert.True(t, got.TargetPrice.Equal(folio.M(100, "USD")))
	assert.Equal(t, "rebalance", got.Note)
	assert.Equal(t, folio.PriorityHigh, got.Priority)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetOrderNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetOrder(context.Background(), 404)
	assert.ErrorIs(t, err, folio.ErrNotFound)
}

func TestListOrdersFiltersAndRanks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestAccount(t, s, "ft", folio.US, false)
	newTestAccount(t, s, "sino", folio.TW, false)

	planTestOrder(t, s, "ft", "VT", folio.SideBuy, 1, folio.PriorityLow)
	high := planTestOrder(t, s, "ft", "AAPL", folio.SideBuy, 2, folio.PriorityHigh)
	planTestOrder(t, s, "sino", "2330.TW", folio.SideBuy, 3, folio.PriorityNormal)
	cancelled := planTestOrder(t, s, "ft", "MSFT", folio.SideSell, 4, folio.PriorityNormal)
	_, err := s.CancelOrder(ctx, cancelled.ID)
	require.NoError(t, err)

	// Pending orders of one account, highest priority first.
	orders, err := s.ListOrders(ctx, "ft", folio.OrderPending)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, high.ID, orders[0].ID)

	// All accounts, all states.
	orders, err = s.ListOrders(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, orders, 4)

	orders, err = s.ListOrders(ctx, "ft", folio.OrderCancelled)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, cancelled.ID, orders[0].ID)
}

func TestUpdateOrderOnlyWhilePending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestAccount(t, s, "ft", folio.US, false)

	order := planTestOrder(t, s, "ft", "VT", folio.SideBuy, 10, folio.PriorityNormal)
	order.Quantity = folio.Q(20)
	order.Priority = folio.PriorityHigh
	require.NoError(t, s.UpdateOrder(ctx, order))

	got, err := s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(folio.Q(20)))
	assert.Equal(t, folio.PriorityHigh, got.Priority)

	_, err = s.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	err = s.UpdateOrder(ctx, got)
	assert.ErrorIs(t, err, folio.ErrInvalidStateTransition)
}

func TestCancelOrderIsTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestAccount(t, s, "ft", folio.US, false)

	order := planTestOrder(t, s, "ft", "VT", folio.SideBuy, 10, folio.PriorityNormal)
	cancelled, err := s.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, folio.OrderCancelled, cancelled.Status)

	_, err = s.CancelOrder(ctx, order.ID)
	assert.ErrorIs(t, err, folio.ErrInvalidStateTransition)
	_, err = s.ExecuteOrder(ctx, order.ID, day(t, "2025-01-05"), folio.M(100, "USD"), folio.M(0, "USD"), folio.M(0, "USD"))
	assert.ErrorIs(t, err, folio.ErrInvalidStateTransition)
}

func TestExecuteOrderLinksTransaction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestAccount(t, s, "ft", folio.US, false)
	zero := folio.M(0, "USD")

	_, err := s.Apply(ctx, folio.NewDeposit(day(t, "2025-01-02"), "ft", "", folio.M(2000, "USD")))
	require.NoError(t, err)
	order := planTestOrder(t, s, "ft", "VT", folio.SideBuy, 10, folio.PriorityNormal)

	executed, err := s.ExecuteOrder(ctx, order.ID, day(t, "2025-01-05"), folio.M(100, "USD"), zero, zero)
	require.NoError(t, err)
	assert.Equal(t, folio.OrderExecuted, executed.Status)
	assert.NotZero(t, executed.LinkedTransactionID)
	assert.False(t, executed.ExecutedAt.IsZero())

	// The fill settled like any other trade.
	holdings, err := s.Holdings(ctx, "ft")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.True(t, holdings[0].Quantity.Equal(folio.Q(10)))
	balances, err := s.CashBalances(ctx, "ft")
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.True(t, balances[0].Balance.Equal(folio.M(1000, "USD")))

	// Terminal: a second execution is rejected.
	_, err = s.ExecuteOrder(ctx, order.ID, day(t, "2025-01-06"), folio.M(100, "USD"), zero, zero)
	assert.ErrorIs(t, err, folio.ErrInvalidStateTransition)
}

func TestExecuteOrderRejectedByLedgerStaysPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestAccount(t, s, "ft", folio.US, false)
	zero := folio.M(0, "USD")

	// No cash: the buy must fail and the order must survive untouched.
	order := planTestOrder(t, s, "ft", "VT", folio.SideBuy, 10, folio.PriorityNormal)
	_, err := s.ExecuteOrder(ctx, order.ID, day(t, "2025-01-05"), folio.M(100, "USD"), zero, zero)
	require.ErrorIs(t, err, folio.ErrInsufficientCash)

	got, err := s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, folio.OrderPending, got.Status)
	assert.Zero(t, got.LinkedTransactionID)

	ledger, err := s.LoadLedger(ctx, "ft")
	require.NoError(t, err)
	assert.Equal(t, 0, ledger.Len())
}
