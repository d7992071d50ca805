package folio

import "fmt"

// Holding is the position of one security in one account: the quantity held
// and its weighted average cost. Holdings are projections of the transaction
// log; only the ledger core mutates them, and a full replay of the log
// produces the same values.
type Holding struct {
	Account     string
	Ticker      string
	Quantity    Quantity
	AverageCost Money
}

// Buy folds a purchase of q shares at a unit price into the position,
// recomputing the weighted average cost:
//
//	new_avg = (Q*avg + q*price) / (Q + q)
//
// The first purchase sets the average cost to the purchase price. Fees and
// taxes are settlement costs and never enter the average.
func (h Holding) Buy(q Quantity, price Money) Holding {
	if h.Quantity.IsZero() {
		h.Quantity = q
		h.AverageCost = price
		return h
	}
	total := h.AverageCost.Mul(h.Quantity).Add(price.Mul(q))
	h.Quantity = h.Quantity.Add(q)
	h.AverageCost = total.Div(h.Quantity)
	return h
}

// Sell folds a sale of q shares at a unit price into the position. The
// average cost is unchanged by a sale; the realized gain q*(price - avg) is
// returned alongside the updated position. Selling more than is held fails
// with ErrInsufficientPosition. A position sold down to zero has no average
// cost anymore.
func (h Holding) Sell(q Quantity, price Money) (Holding, Money, error) {
	if q.GreaterThan(h.Quantity) {
		return h, Money{}, fmt.Errorf("%w: cannot sell %s %s, only %s held",
			ErrInsufficientPosition, q, h.Ticker, h.Quantity)
	}
	gain := price.Sub(h.AverageCost).Mul(q)
	h.Quantity = h.Quantity.Sub(q)
	if h.Quantity.IsZero() {
		h.AverageCost = Money{}
	}
	return h, gain, nil
}

// CostBasis returns the total cost of the position, quantity * average cost.
func (h Holding) CostBasis() Money { return h.AverageCost.Mul(h.Quantity) }

// CashBalance is the cash position of one currency in one account. Like
// Holding it is a projection of the cash transaction log.
type CashBalance struct {
	Account  string
	Currency string
	Balance  Money
}
