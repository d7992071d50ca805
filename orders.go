package folio

import (
	"fmt"
	"time"
)

// OrderSide is the direction of a planned order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// ParseOrderSide parses a string into an OrderSide.
func ParseOrderSide(s string) (OrderSide, error) {
	switch OrderSide(s) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	default:
		return "", fmt.Errorf("%w: side must be BUY or SELL, got %q", ErrValidation, s)
	}
}

// OrderStatus is the lifecycle state of a planned order. Pending is the only
// non-terminal state.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderExecuted  OrderStatus = "EXECUTED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// ParseOrderStatus parses a string into an OrderStatus.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case OrderPending:
		return OrderPending, nil
	case OrderExecuted:
		return OrderExecuted, nil
	case OrderCancelled:
		return OrderCancelled, nil
	default:
		return "", fmt.Errorf("%w: unknown order status %q", ErrValidation, s)
	}
}

// OrderPriority ranks planned orders for review.
type OrderPriority string

const (
	PriorityHigh   OrderPriority = "HIGH"
	PriorityNormal OrderPriority = "NORMAL"
	PriorityLow    OrderPriority = "LOW"
)

// ParseOrderPriority parses a string into an OrderPriority.
func ParseOrderPriority(s string) (OrderPriority, error) {
	switch OrderPriority(s) {
	case PriorityHigh:
		return PriorityHigh, nil
	case PriorityNormal:
		return PriorityNormal, nil
	case PriorityLow:
		return PriorityLow, nil
	default:
		return "", fmt.Errorf("%w: priority must be HIGH, NORMAL or LOW, got %q", ErrValidation, s)
	}
}

// Weight ranks priorities for sorting, highest first.
func (p OrderPriority) Weight() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// PlannedOrder is a trade the owner intends to make. It never moves cash or
// shares until executed, at which point it becomes a regular transaction and
// keeps a link to it.
type PlannedOrder struct {
	ID                  int64
	Account             string
	Ticker              string
	Side                OrderSide
	Quantity            Quantity
	TargetPrice         Money // zero for an at-market order
	Note                string
	Priority            OrderPriority
	Status              OrderStatus
	CreatedAt           time.Time
	ExecutedAt          time.Time // zero until executed
	LinkedTransactionID int64     // zero until executed
}

// NewPlannedOrder creates a pending order. An empty priority defaults to
// NORMAL, a zero target price means at-market.
func NewPlannedOrder(account, ticker string, side OrderSide, quantity Quantity, targetPrice Money, note string, priority OrderPriority) PlannedOrder {
	if priority == "" {
		priority = PriorityNormal
	}
	return PlannedOrder{
		Account:     account,
		Ticker:      NormalizeTicker(ticker),
		Side:        side,
		Quantity:    quantity,
		TargetPrice: targetPrice,
		Note:        note,
		Priority:    priority,
		Status:      OrderPending,
	}
}

// Validate checks the order's fields.
func (o PlannedOrder) Validate() error {
	if o.Account == "" {
		return fmt.Errorf("%w: order is missing an account", ErrValidation)
	}
	if !ValidTicker(o.Ticker) {
		return fmt.Errorf("%w: order has an invalid ticker %q", ErrValidation, o.Ticker)
	}
	if _, err := ParseOrderSide(string(o.Side)); err != nil {
		return err
	}
	if !o.Quantity.IsPositive() {
		return fmt.Errorf("%w: order quantity must be positive, got %s", ErrValidation, o.Quantity)
	}
	if o.TargetPrice.IsNegative() {
		return fmt.Errorf("%w: order target price cannot be negative, got %s", ErrValidation, o.TargetPrice)
	}
	if _, err := ParseOrderPriority(string(o.Priority)); err != nil {
		return err
	}
	if _, err := ParseOrderStatus(string(o.Status)); err != nil {
		return err
	}
	return nil
}

// AtMarket reports whether the order has no target price.
func (o PlannedOrder) AtMarket() bool { return o.TargetPrice.IsZero() }

// Execute transitions a pending order to EXECUTED, linking the transaction
// that realized it.
func (o PlannedOrder) Execute(transactionID int64, at time.Time) (PlannedOrder, error) {
	if o.Status != OrderPending {
		return o, fmt.Errorf("%w: order #%d is already %s", ErrInvalidStateTransition, o.ID, o.Status)
	}
	o.Status = OrderExecuted
	o.ExecutedAt = at
	o.LinkedTransactionID = transactionID
	return o, nil
}

// Cancel transitions a pending order to CANCELLED.
func (o PlannedOrder) Cancel() (PlannedOrder, error) {
	if o.Status != OrderPending {
		return o, fmt.Errorf("%w: order #%d is already %s", ErrInvalidStateTransition, o.ID, o.Status)
	}
	o.Status = OrderCancelled
	return o, nil
}

// CanUpdate reports whether the order's fields may still change.
func (o PlannedOrder) CanUpdate() error {
	if o.Status != OrderPending {
		return fmt.Errorf("%w: cannot update order #%d with status %s", ErrInvalidStateTransition, o.ID, o.Status)
	}
	return nil
}

// Command builds the transaction that realizes this order at the given
// execution price.
func (o PlannedOrder) Command(day Date, price, fee, tax Money) (Transaction, error) {
	memo := fmt.Sprintf("Executed from planned order #%d", o.ID)
	switch o.Side {
	case SideBuy:
		return NewBuy(day, o.Account, memo, o.Ticker, o.Quantity, price, fee, tax).Validate()
	case SideSell:
		return NewSell(day, o.Account, memo, o.Ticker, o.Quantity, price, fee, tax).Validate()
	default:
		return nil, fmt.Errorf("%w: side must be BUY or SELL, got %q", ErrValidation, o.Side)
	}
}

// String renders the order for logs and error messages.
func (o PlannedOrder) String() string {
	price := "market"
	if !o.AtMarket() {
		price = o.TargetPrice.String()
	}
	return fmt.Sprintf("#%d %s %s %s @ %s (%s, %s)", o.ID, o.Side, o.Quantity, o.Ticker, price, o.Priority, o.Status)
}
