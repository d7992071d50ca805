package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/mwtsai/folio"
	"github.com/mwtsai/folio/renderer"
)

// orderCmd groups the planned order subcommands behind "flo order".
type orderCmd struct{}

func (*orderCmd) Name() string     { return "order" }
func (*orderCmd) Synopsis() string { return "manage planned orders (plan, list, update, exec, cancel)" }
func (*orderCmd) Usage() string {
	return `flo order <subcommand>

  Manage planned orders: trades you intend to make. A planned order never
  moves cash or shares until executed. Subcommands: plan, list, update,
  exec, cancel.
`
}

func (c *orderCmd) SetFlags(f *flag.FlagSet) {}

func (c *orderCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	cdr := subcommands.NewCommander(f, "flo order")
	cdr.Register(&orderPlanCmd{}, "")
	cdr.Register(&orderListCmd{}, "")
	cdr.Register(&orderUpdateCmd{}, "")
	cdr.Register(&orderExecCmd{}, "")
	cdr.Register(&orderCancelCmd{}, "")
	cdr.Register(cdr.HelpCommand(), "")
	return cdr.Execute(ctx, args...)
}

// --- order plan ---

type orderPlanCmd struct {
	account  string
	ticker   string
	side     string
	quantity float64
	price    float64
	currency string
	priority string
	note     string
}

func (*orderPlanCmd) Name() string     { return "plan" }
func (*orderPlanCmd) Synopsis() string { return "record a trade you intend to make" }
func (*orderPlanCmd) Usage() string {
	return `flo order plan -a <account> -t <ticker> -side BUY|SELL -q <quantity> [-p <target_price>] [-priority HIGH|NORMAL|LOW] [-note <note>]

  Plans a trade. A zero target price means at-market.
`
}

func (c *orderPlanCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "Account name")
	f.StringVar(&c.ticker, "t", "", "Security ticker")
	f.StringVar(&c.side, "side", "", "Order side (BUY or SELL)")
	f.Float64Var(&c.quantity, "q", 0, "Number of shares")
	f.Float64Var(&c.price, "p", 0, "Target price per share, 0 for at-market")
	f.StringVar(&c.currency, "c", "", "Target price currency. Defaults to the ticker's market currency.")
	f.StringVar(&c.priority, "priority", string(folio.PriorityNormal), "Review priority (HIGH, NORMAL or LOW)")
	f.StringVar(&c.note, "note", "", "Rationale for the trade")
}

func (c *orderPlanCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	side, err := folio.ParseOrderSide(c.side)
	if err != nil {
		return fail(err)
	}
	priority, err := folio.ParseOrderPriority(c.priority)
	if err != nil {
		return fail(err)
	}
	cur := c.currency
	if cur == "" {
		cur = folio.MarketOf(c.ticker).Currency()
	}

	order := folio.NewPlannedOrder(c.account, c.ticker, side,
		folio.Q(c.quantity), folio.M(c.price, cur), c.note, priority)

	st, _, _, err := openStore()
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	planned, err := st.PlanOrder(ctx, order)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Planned order #%d: %s\n", planned.ID, planned)
	return subcommands.ExitSuccess
}

// --- order list ---

type orderListCmd struct {
	account string
	status  string
}

func (*orderListCmd) Name() string     { return "list" }
func (*orderListCmd) Synopsis() string { return "list planned orders, highest priority first" }
func (*orderListCmd) Usage() string {
	return `flo order list [-a <account>] [-status PENDING|EXECUTED|CANCELLED]

  Lists planned orders ranked by priority. Without -status, pending orders
  are listed.
`
}

func (c *orderListCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "Only orders of this account. All accounts by default.")
	f.StringVar(&c.status, "status", string(folio.OrderPending), "Only orders in this state. Empty for all.")
}

func (c *orderListCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var status folio.OrderStatus
	if c.status != "" {
		var err error
		status, err = folio.ParseOrderStatus(c.status)
		if err != nil {
			return fail(err)
		}
	}

	st, _, _, err := openStore()
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	orders, err := st.ListOrders(ctx, c.account, status)
	if err != nil {
		return fail(err)
	}
	printMarkdown(renderer.RenderOrders(orders))
	return subcommands.ExitSuccess
}

// --- order update ---

type orderUpdateCmd struct {
	id       int64
	quantity float64
	price    float64
	priority string
	note     string
}

func (*orderUpdateCmd) Name() string     { return "update" }
func (*orderUpdateCmd) Synopsis() string { return "amend a pending order" }
func (*orderUpdateCmd) Usage() string {
	return `flo order update -id <id> [-q <quantity>] [-p <target_price>] [-priority <priority>] [-note <note>]

  Amends a pending order. Only the flags given change; executed and
  cancelled orders cannot be amended.
`
}

func (c *orderUpdateCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "Order id")
	f.Float64Var(&c.quantity, "q", 0, "New number of shares")
	f.Float64Var(&c.price, "p", 0, "New target price, 0 for at-market")
	f.StringVar(&c.priority, "priority", "", "New review priority")
	f.StringVar(&c.note, "note", "", "New rationale")
}

func (c *orderUpdateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id <= 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	changed := map[string]bool{}
	f.Visit(func(fl *flag.Flag) { changed[fl.Name] = true })

	st, _, _, err := openStore()
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	order, err := st.GetOrder(ctx, c.id)
	if err != nil {
		return fail(err)
	}
	if changed["q"] {
		order.Quantity = folio.Q(c.quantity)
	}
	if changed["p"] {
		cur := order.TargetPrice.Currency()
		if cur == "" {
			cur = folio.MarketOf(order.Ticker).Currency()
		}
		order.TargetPrice = folio.M(c.price, cur)
	}
	if changed["priority"] {
		order.Priority, err = folio.ParseOrderPriority(c.priority)
		if err != nil {
			return fail(err)
		}
	}
	if changed["note"] {
		order.Note = c.note
	}

	if err := st.UpdateOrder(ctx, order); err != nil {
		return fail(err)
	}
	fmt.Printf("Updated order #%d: %s\n", order.ID, order)
	return subcommands.ExitSuccess
}

// --- order exec ---

type orderExecCmd struct {
	id    int64
	date  string
	price float64
	fee   float64
	tax   float64
}

func (*orderExecCmd) Name() string     { return "exec" }
func (*orderExecCmd) Synopsis() string { return "mark a pending order as executed at a fill price" }
func (*orderExecCmd) Usage() string {
	return `flo order exec -id <id> -p <fill_price> [-fee <fee>] [-tax <tax>] [-d <date>]

  Executes a pending order: records the trade in the ledger and links it to
  the order, atomically. A trade the ledger rejects (oversell, insufficient
  cash) leaves the order pending. For Taiwan-market sells the 0.3% sale tax
  applies when no explicit -tax is given.
`
}

func (c *orderExecCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "Order id")
	f.StringVar(&c.date, "d", folio.Today().String(), "Execution date (YYYY-MM-DD)")
	f.Float64Var(&c.price, "p", 0, "Fill price per share")
	f.Float64Var(&c.fee, "fee", 0, "Brokerage fee")
	f.Float64Var(&c.tax, "tax", -1, "Transaction tax. Defaults to the market's sale tax.")
}

func (c *orderExecCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id <= 0 || c.price <= 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	day, err := folio.ParseDate(c.date)
	if err != nil {
		return fail(err)
	}

	st, _, _, err := openStore()
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	order, err := st.GetOrder(ctx, c.id)
	if err != nil {
		return fail(err)
	}
	cur := folio.MarketOf(order.Ticker).Currency()
	price := folio.M(c.price, cur)

	tax := folio.M(c.tax, cur)
	if c.tax < 0 {
		tax = folio.M(0, cur)
		if order.Side == folio.SideSell && folio.MarketOf(order.Ticker) == folio.TW {
			tax = folio.TWSellTax(price.Mul(order.Quantity))
		}
	}

	executed, err := st.ExecuteOrder(ctx, c.id, day, price, folio.M(c.fee, cur), tax)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Executed order #%d as transaction #%d\n", executed.ID, executed.LinkedTransactionID)
	return subcommands.ExitSuccess
}

// --- order cancel ---

type orderCancelCmd struct {
	id int64
}

func (*orderCancelCmd) Name() string     { return "cancel" }
func (*orderCancelCmd) Synopsis() string { return "cancel a pending order" }
func (*orderCancelCmd) Usage() string {
	return `flo order cancel -id <id>

  Cancels a pending order. Cancellation is terminal.
`
}

func (c *orderCancelCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "Order id")
}

func (c *orderCancelCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id <= 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	st, _, _, err := openStore()
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	cancelled, err := st.CancelOrder(ctx, c.id)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Cancelled order #%d: %s\n", cancelled.ID, cancelled)
	return subcommands.ExitSuccess
}
