package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/mwtsai/folio"
	"github.com/mwtsai/folio/store"
)

// record applies a transaction through the store and reports the outcome.
func record(st *store.Store, tx folio.Transaction) subcommands.ExitStatus {
	id, err := st.Apply(context.Background(), tx)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Recorded %s #%d in %s on %s\n", tx.What(), id, tx.Where(), tx.When())
	return subcommands.ExitSuccess
}

// resolveCurrency returns cur, or the account's settlement currency when cur
// is empty.
func resolveCurrency(ctx context.Context, st *store.Store, account, cur string) (string, error) {
	if cur != "" {
		return cur, nil
	}
	a, err := st.GetAccount(ctx, account)
	if err != nil {
		return "", err
	}
	return a.Currency, nil
}

// --- Buy Command ---

type buyCmd struct {
	date     string
	account  string
	ticker   string
	quantity float64
	price    float64
	currency string
	fee      float64
	tax      float64
	memo     string
}

func (*buyCmd) Name() string     { return "buy" }
func (*buyCmd) Synopsis() string { return "purchase shares to open or add to a position" }
func (*buyCmd) Usage() string {
	return `flo buy -a <account> -t <ticker> -q <quantity> -p <price> [-c <currency>] [-fee <fee>] [-tax <tax>] [-d <date>] [-m <memo>]

  Purchases shares. The total cost plus fee and tax is debited from the
  account's cash. The price currency defaults to the ticker's market currency;
  a trade priced in another currency settles through a conversion at the
  current exchange rate.
`
}

func (c *buyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", folio.Today().String(), "Transaction date (YYYY-MM-DD)")
	f.StringVar(&c.account, "a", "", "Account name")
	f.StringVar(&c.ticker, "t", "", "Security ticker, e.g. 2330.TW or VT")
	f.Float64Var(&c.quantity, "q", 0, "Number of shares")
	f.Float64Var(&c.price, "p", 0, "Price per share")
	f.StringVar(&c.currency, "c", "", "Price currency. Defaults to the ticker's market currency.")
	f.Float64Var(&c.fee, "fee", 0, "Brokerage fee, in the price currency")
	f.Float64Var(&c.tax, "tax", 0, "Transaction tax, in the price currency")
	f.StringVar(&c.memo, "m", "", "An optional rationale or note")
}

func (c *buyCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" || c.ticker == "" || c.quantity <= 0 || c.price <= 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	day, err := folio.ParseDate(c.date)
	if err != nil {
		return fail(err)
	}
	cur := c.currency
	if cur == "" {
		cur = folio.MarketOf(c.ticker).Currency()
	}

	st, _, _, err := openStore()
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	return record(st, folio.NewBuy(day, c.account, c.memo, c.ticker,
		folio.Q(c.quantity), folio.M(c.price, cur), folio.M(c.fee, cur), folio.M(c.tax, cur)))
}

// --- Sell Command ---

type sellCmd struct {
	date     string
	account  string
	ticker   string
	quantity float64
	price    float64
	currency string
	fee      float64
	tax      float64
	memo     string
}

func (*sellCmd) Name() string     { return "sell" }
func (*sellCmd) Synopsis() string { return "sell shares to trim or close a position" }
func (*sellCmd) Usage() string {
	return `flo sell -a <account> -t <ticker> -q <quantity> -p <price> [-c <currency>] [-fee <fee>] [-tax <tax>] [-d <date>] [-m <memo>]

  Sells shares. The proceeds minus fee and tax are credited to the account's
  cash. For Taiwan-market tickers the 0.3% securities transaction tax on the
  gross proceeds is applied when no explicit -tax is given.
`
}

func (c *sellCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", folio.Today().String(), "Transaction date (YYYY-MM-DD)")
	f.StringVar(&c.account, "a", "", "Account name")
	f.StringVar(&c.ticker, "t", "", "Security ticker")
	f.Float64Var(&c.quantity, "q", 0, "Number of shares")
	f.Float64Var(&c.price, "p", 0, "Price per share")
	f.StringVar(&c.currency, "c", "", "Price currency. Defaults to the ticker's market currency.")
	f.Float64Var(&c.fee, "fee", 0, "Brokerage fee, in the price currency")
	f.Float64Var(&c.tax, "tax", -1, "Transaction tax. Defaults to the market's sale tax.")
	f.StringVar(&c.memo, "m", "", "An optional rationale or note")
}

func (c *sellCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" || c.ticker == "" || c.quantity <= 0 || c.price <= 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	day, err := folio.ParseDate(c.date)
	if err != nil {
		return fail(err)
	}
	cur := c.currency
	if cur == "" {
		cur = folio.MarketOf(c.ticker).Currency()
	}
	price := folio.M(c.price, cur)
	quantity := folio.Q(c.quantity)

	tax := folio.M(c.tax, cur)
	if c.tax < 0 {
		tax = folio.M(0, cur)
		if folio.MarketOf(c.ticker) == folio.TW {
			tax = folio.TWSellTax(price.Mul(quantity))
		}
	}

	st, _, _, err := openStore()
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	return record(st, folio.NewSell(day, c.account, c.memo, c.ticker,
		quantity, price, folio.M(c.fee, cur), tax))
}

// --- Deposit Command ---

type depositCmd struct {
	date     string
	account  string
	amount   float64
	currency string
	memo     string
}

func (*depositCmd) Name() string     { return "deposit" }
func (*depositCmd) Synopsis() string { return "record external cash flowing into an account" }
func (*depositCmd) Usage() string {
	return `flo deposit -a <account> -amt <amount> [-c <currency>] [-d <date>] [-m <memo>]

  Credits cash to the account. The currency defaults to the account's
  settlement currency.
`
}

func (c *depositCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", folio.Today().String(), "Transaction date (YYYY-MM-DD)")
	f.StringVar(&c.account, "a", "", "Account name")
	f.Float64Var(&c.amount, "amt", 0, "Amount to deposit")
	f.StringVar(&c.currency, "c", "", "Currency. Defaults to the account's settlement currency.")
	f.StringVar(&c.memo, "m", "", "An optional rationale or note")
}

func (c *depositCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" || c.amount <= 0 {
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

	cur, err := resolveCurrency(ctx, st, c.account, c.currency)
	if err != nil {
		return fail(err)
	}
	return record(st, folio.NewDeposit(day, c.account, c.memo, folio.M(c.amount, cur)))
}

// --- Withdraw Command ---

type withdrawCmd struct {
	date     string
	account  string
	amount   float64
	currency string
	memo     string
}

func (*withdrawCmd) Name() string     { return "withdraw" }
func (*withdrawCmd) Synopsis() string { return "record cash leaving an account" }
func (*withdrawCmd) Usage() string {
	return `flo withdraw -a <account> -amt <amount> [-c <currency>] [-d <date>] [-m <memo>]

  Debits cash from the account. Fails when the balance is insufficient,
  unless the account is a margin account.
`
}

func (c *withdrawCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", folio.Today().String(), "Transaction date (YYYY-MM-DD)")
	f.StringVar(&c.account, "a", "", "Account name")
	f.Float64Var(&c.amount, "amt", 0, "Amount to withdraw")
	f.StringVar(&c.currency, "c", "", "Currency. Defaults to the account's settlement currency.")
	f.StringVar(&c.memo, "m", "", "An optional rationale or note")
}

func (c *withdrawCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" || c.amount <= 0 {
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

	cur, err := resolveCurrency(ctx, st, c.account, c.currency)
	if err != nil {
		return fail(err)
	}
	return record(st, folio.NewWithdraw(day, c.account, c.memo, folio.M(c.amount, cur)))
}

// --- Dividend Command ---

type dividendCmd struct {
	date     string
	account  string
	ticker   string
	amount   float64
	currency string
	memo     string
}

func (*dividendCmd) Name() string     { return "dividend" }
func (*dividendCmd) Synopsis() string { return "record a dividend payment for a security" }
func (*dividendCmd) Usage() string {
	return `flo dividend -a <account> -t <ticker> -amt <amount> [-c <currency>] [-d <date>] [-m <memo>]

  Credits a dividend to the account's cash, attributed to the paying security.
  The currency defaults to the ticker's market currency.
`
}

func (c *dividendCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", folio.Today().String(), "Transaction date (YYYY-MM-DD)")
	f.StringVar(&c.account, "a", "", "Account name")
	f.StringVar(&c.ticker, "t", "", "Security paying the dividend")
	f.Float64Var(&c.amount, "amt", 0, "Total dividend amount received")
	f.StringVar(&c.currency, "c", "", "Currency. Defaults to the ticker's market currency.")
	f.StringVar(&c.memo, "m", "", "An optional rationale or note")
}

func (c *dividendCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" || c.ticker == "" || c.amount <= 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	day, err := folio.ParseDate(c.date)
	if err != nil {
		return fail(err)
	}
	cur := c.currency
	if cur == "" {
		cur = folio.MarketOf(c.ticker).Currency()
	}

	st, _, _, err := openStore()
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	return record(st, folio.NewDividend(day, c.account, c.memo, c.ticker, folio.M(c.amount, cur)))
}

// --- Interest Command ---

type interestCmd struct {
	date     string
	account  string
	amount   float64
	currency string
	memo     string
}

func (*interestCmd) Name() string     { return "interest" }
func (*interestCmd) Synopsis() string { return "record interest earned on cash" }
func (*interestCmd) Usage() string {
	return `flo interest -a <account> -amt <amount> [-c <currency>] [-d <date>] [-m <memo>]

  Credits interest to the account's cash.
`
}

func (c *interestCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", folio.Today().String(), "Transaction date (YYYY-MM-DD)")
	f.StringVar(&c.account, "a", "", "Account name")
	f.Float64Var(&c.amount, "amt", 0, "Interest amount received")
	f.StringVar(&c.currency, "c", "", "Currency. Defaults to the account's settlement currency.")
	f.StringVar(&c.memo, "m", "", "An optional rationale or note")
}

func (c *interestCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" || c.amount <= 0 {
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

	cur, err := resolveCurrency(ctx, st, c.account, c.currency)
	if err != nil {
		return fail(err)
	}
	return record(st, folio.NewInterest(day, c.account, c.memo, folio.M(c.amount, cur)))
}

// --- Fee Command ---

type feeCmd struct {
	date     string
	account  string
	ticker   string
	amount   float64
	currency string
	memo     string
}

func (*feeCmd) Name() string     { return "fee" }
func (*feeCmd) Synopsis() string { return "record a standalone fee or charge" }
func (*feeCmd) Usage() string {
	return `flo fee -a <account> -amt <amount> [-t <ticker>] [-c <currency>] [-d <date>] [-m <memo>]

  Debits a fee from the account's cash. Custody and ADR fees can be
  attributed to a security with -t.
`
}

func (c *feeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", folio.Today().String(), "Transaction date (YYYY-MM-DD)")
	f.StringVar(&c.account, "a", "", "Account name")
	f.StringVar(&c.ticker, "t", "", "Security the fee relates to (optional)")
	f.Float64Var(&c.amount, "amt", 0, "Fee amount")
	f.StringVar(&c.currency, "c", "", "Currency. Defaults to the account's settlement currency.")
	f.StringVar(&c.memo, "m", "", "An optional rationale or note")
}

func (c *feeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" || c.amount <= 0 {
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

	cur, err := resolveCurrency(ctx, st, c.account, c.currency)
	if err != nil {
		return fail(err)
	}
	return record(st, folio.NewFee(day, c.account, c.memo, c.ticker, folio.M(c.amount, cur)))
}

// --- Convert Command ---

type convertCmd struct {
	date         string
	account      string
	fromAmount   float64
	fromCurrency string
	toAmount     float64
	toCurrency   string
	memo         string
}

func (*convertCmd) Name() string     { return "convert" }
func (*convertCmd) Synopsis() string { return "exchange cash between two currencies in one account" }
func (*convertCmd) Usage() string {
	return `flo convert -a <account> -fa <amount> -fc <currency> -ta <amount> -tc <currency> [-d <date>] [-m <memo>]

  Moves cash between two currency balances of the same account, recording
  both legs as the broker settled them. The implied exchange rate is frozen
  in the books.
`
}

func (c *convertCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", folio.Today().String(), "Transaction date (YYYY-MM-DD)")
	f.StringVar(&c.account, "a", "", "Account name")
	f.Float64Var(&c.fromAmount, "fa", 0, "Amount debited")
	f.StringVar(&c.fromCurrency, "fc", "", "Currency debited")
	f.Float64Var(&c.toAmount, "ta", 0, "Amount credited")
	f.StringVar(&c.toCurrency, "tc", "", "Currency credited")
	f.StringVar(&c.memo, "m", "", "An optional rationale or note")
}

func (c *convertCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" || c.fromAmount <= 0 || c.toAmount <= 0 || c.fromCurrency == "" || c.toCurrency == "" {
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

	return record(st, folio.NewConvert(day, c.account, c.memo,
		folio.M(c.fromAmount, c.fromCurrency), folio.M(c.toAmount, c.toCurrency)))
}
