package folio

import (
	"encoding/json"
	"fmt"
)

// CommandType identifies the kind of a ledger transaction.
type CommandType string

const (
	CmdBuy      CommandType = "buy"
	CmdSell     CommandType = "sell"
	CmdDeposit  CommandType = "deposit"
	CmdWithdraw CommandType = "withdraw"
	CmdDividend CommandType = "dividend"
	CmdInterest CommandType = "interest"
	CmdFee      CommandType = "fee"
	CmdConvert  CommandType = "convert"
)

// Transaction is the interface implemented by every command in the ledger.
// A transaction is immutable once appended: corrections are new transactions.
type Transaction interface {
	// What returns the command type of the transaction.
	What() CommandType
	// When returns the date the transaction settled.
	When() Date
	// Where returns the name of the account the transaction belongs to.
	Where() string
	// Equal compares two transactions field by field.
	Equal(other Transaction) bool
	// Validate checks the transaction and returns a copy with its quick
	// fixes applied (today's date for a zero date, normalized ticker,
	// currency derived from the ticker's market).
	Validate() (Transaction, error)
}

// baseCmd provides the fields common to all transactions.
type baseCmd struct {
	Command CommandType `json:"command"`
	Date    Date        `json:"date"`
	Account string      `json:"account"`
	Memo    string      `json:"memo,omitempty"`
}

func newBaseCmd(cmd CommandType, day Date, account, memo string) baseCmd {
	return baseCmd{Command: cmd, Date: day, Account: account, Memo: memo}
}

func (c baseCmd) What() CommandType { return c.Command }
func (c baseCmd) When() Date        { return c.Date }
func (c baseCmd) Where() string     { return c.Account }

// validate applies the quick fixes shared by all commands.
func (c *baseCmd) validate() error {
	if c.Date.IsZero() {
		c.Date = Today()
	}
	if c.Account == "" {
		return fmt.Errorf("%w: %s is missing an account", ErrValidation, c.Command)
	}
	return nil
}

// secCmd extends baseCmd for transactions that target a single security.
type secCmd struct {
	baseCmd
	Ticker string `json:"ticker"`
}

func newSecCmd(cmd CommandType, day Date, account, memo, ticker string) secCmd {
	return secCmd{baseCmd: newBaseCmd(cmd, day, account, memo), Ticker: NormalizeTicker(ticker)}
}

func (c *secCmd) validate() error {
	if err := c.baseCmd.validate(); err != nil {
		return err
	}
	c.Ticker = NormalizeTicker(c.Ticker)
	if !ValidTicker(c.Ticker) {
		return fmt.Errorf("%w: %s has an invalid ticker %q", ErrValidation, c.Command, c.Ticker)
	}
	return nil
}

// Buy records the purchase of a quantity of a security at a unit price.
// Fee and tax are settled in cash but do not enter the average cost.
// Price, fee and tax share one currency, the trade currency of the ticker's
// market.
type Buy struct {
	secCmd
	Quantity Quantity
	Price    Money
	Fee      Money
	Tax      Money
}

// NewBuy creates a new Buy transaction.
func NewBuy(day Date, account, memo, ticker string, quantity Quantity, price, fee, tax Money) Buy {
	return Buy{
		secCmd:   newSecCmd(CmdBuy, day, account, memo, ticker),
		Quantity: quantity,
		Price:    price,
		Fee:      fee,
		Tax:      tax,
	}
}

// Cost returns quantity*price, the part of the settlement that enters the
// average cost.
func (t Buy) Cost() Money { return t.Price.Mul(t.Quantity) }

// CashEffect returns the signed settlement amount, -(quantity*price+fee+tax).
func (t Buy) CashEffect() Money { return t.Cost().Add(t.Fee).Add(t.Tax).Neg() }

// Currency returns the trade currency.
func (t Buy) Currency() string { return t.Price.Currency() }

// MarshalJSON implements the json.Marshaler interface with a stable field
// order.
func (t Buy) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.EmbedFrom(t.secCmd)
	w.Append("quantity", t.Quantity)
	w.Append("price", t.Price.value)
	if !t.Fee.IsZero() {
		w.Append("fee", t.Fee.value)
	}
	if !t.Tax.IsZero() {
		w.Append("tax", t.Tax.value)
	}
	w.Append("currency", t.Price.Currency())
	return w.MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *Buy) UnmarshalJSON(data []byte) error {
	var c tradeCmd
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	*t = Buy{
		secCmd:   c.secCmd,
		Quantity: c.Quantity,
		Price:    M(c.Price, c.Currency),
		Fee:      M(c.Fee, c.Currency),
		Tax:      M(c.Tax, c.Currency),
	}
	return nil
}

// Equal compares two transactions field by field.
func (t Buy) Equal(other Transaction) bool {
	o, ok := other.(Buy)
	return ok && t.secCmd == o.secCmd &&
		t.Quantity.Equal(o.Quantity) &&
		t.Price.Equal(o.Price) &&
		t.Fee.Equal(o.Fee) &&
		t.Tax.Equal(o.Tax)
}

// Validate checks the transaction and applies its quick fixes.
func (t Buy) Validate() (Transaction, error) {
	if err := t.secCmd.validate(); err != nil {
		return t, err
	}
	if err := validateTrade(t.Command, t.Ticker, t.Quantity, &t.Price, &t.Fee, &t.Tax); err != nil {
		return t, err
	}
	return t, nil
}

// Sell records the sale of a quantity of a security at a unit price. The
// position's average cost is unchanged by a sale; the realized gain is
// quantity*(price-average cost).
type Sell struct {
	secCmd
	Quantity Quantity
	Price    Money
	Fee      Money
	Tax      Money
}

// NewSell creates a new Sell transaction.
func NewSell(day Date, account, memo, ticker string, quantity Quantity, price, fee, tax Money) Sell {
	return Sell{
		secCmd:   newSecCmd(CmdSell, day, account, memo, ticker),
		Quantity: quantity,
		Price:    price,
		Fee:      fee,
		Tax:      tax,
	}
}

// Proceeds returns quantity*price, the gross proceeds of the sale.
func (t Sell) Proceeds() Money { return t.Price.Mul(t.Quantity) }

// CashEffect returns the signed settlement amount, +(quantity*price-fee-tax).
func (t Sell) CashEffect() Money { return t.Proceeds().Sub(t.Fee).Sub(t.Tax) }

// Currency returns the trade currency.
func (t Sell) Currency() string { return t.Price.Currency() }

// MarshalJSON implements the json.Marshaler interface with a stable field
// order.
func (t Sell) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.EmbedFrom(t.secCmd)
	w.Append("quantity", t.Quantity)
	w.Append("price", t.Price.value)
	if !t.Fee.IsZero() {
		w.Append("fee", t.Fee.value)
	}
	if !t.Tax.IsZero() {
		w.Append("tax", t.Tax.value)
	}
	w.Append("currency", t.Price.Currency())
	return w.MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *Sell) UnmarshalJSON(data []byte) error {
	var c tradeCmd
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	*t = Sell{
		secCmd:   c.secCmd,
		Quantity: c.Quantity,
		Price:    M(c.Price, c.Currency),
		Fee:      M(c.Fee, c.Currency),
		Tax:      M(c.Tax, c.Currency),
	}
	return nil
}

// Equal compares two transactions field by field.
func (t Sell) Equal(other Transaction) bool {
	o, ok := other.(Sell)
	return ok && t.secCmd == o.secCmd &&
		t.Quantity.Equal(o.Quantity) &&
		t.Price.Equal(o.Price) &&
		t.Fee.Equal(o.Fee) &&
		t.Tax.Equal(o.Tax)
}

// Validate checks the transaction and applies its quick fixes.
func (t Sell) Validate() (Transaction, error) {
	if err := t.secCmd.validate(); err != nil {
		return t, err
	}
	if err := validateTrade(t.Command, t.Ticker, t.Quantity, &t.Price, &t.Fee, &t.Tax); err != nil {
		return t, err
	}
	return t, nil
}

// validateTrade holds the checks and quick fixes shared by Buy and Sell:
// quantity strictly positive, price zero or positive, fee and tax not
// negative, and all three amounts in the trade currency of the ticker's
// market (filled in when left empty).
func validateTrade(cmd CommandType, ticker string, quantity Quantity, price, fee, tax *Money) error {
	if !quantity.IsPositive() {
		return fmt.Errorf("%w: %s quantity must be positive, got %s", ErrValidation, cmd, quantity)
	}
	if price.IsNegative() {
		return fmt.Errorf("%w: %s price cannot be negative, got %s", ErrValidation, cmd, price)
	}
	if fee.IsNegative() || tax.IsNegative() {
		return fmt.Errorf("%w: %s fee and tax cannot be negative", ErrValidation, cmd)
	}
	cur := MarketOf(ticker).Currency()
	for _, m := range []*Money{price, fee, tax} {
		switch m.Currency() {
		case "":
			m.cur = cur
		case cur:
		default:
			return fmt.Errorf("%w: %s on %s settles in %s, got %s",
				ErrValidation, cmd, ticker, cur, m.Currency())
		}
	}
	return nil
}

// Deposit records an inflow of external cash into an account.
type Deposit struct {
	baseCmd
	Amount Money
}

// NewDeposit creates a new Deposit transaction.
func NewDeposit(day Date, account, memo string, amount Money) Deposit {
	return Deposit{baseCmd: newBaseCmd(CmdDeposit, day, account, memo), Amount: amount}
}

// MarshalJSON implements the json.Marshaler interface with a stable field
// order.
func (t Deposit) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.EmbedFrom(t.baseCmd)
	w.EmbedFrom(t.Amount)
	return w.MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *Deposit) UnmarshalJSON(data []byte) error {
	var c amountCmd
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	*t = Deposit{baseCmd: c.baseCmd, Amount: c.Money()}
	return nil
}

// Equal compares two transactions field by field.
func (t Deposit) Equal(other Transaction) bool {
	o, ok := other.(Deposit)
	return ok && t.baseCmd == o.baseCmd && t.Amount.Equal(o.Amount)
}

// Validate checks the transaction and applies its quick fixes.
func (t Deposit) Validate() (Transaction, error) {
	if err := t.baseCmd.validate(); err != nil {
		return t, err
	}
	if err := validateCashAmount(t.Command, &t.Amount); err != nil {
		return t, err
	}
	return t, nil
}

// Withdraw records an outflow of external cash from an account. The amount is
// the positive magnitude withdrawn.
type Withdraw struct {
	baseCmd
	Amount Money
}

// NewWithdraw creates a new Withdraw transaction.
func NewWithdraw(day Date, account, memo string, amount Money) Withdraw {
	return Withdraw{baseCmd: newBaseCmd(CmdWithdraw, day, account, memo), Amount: amount}
}

// MarshalJSON implements the json.Marshaler interface with a stable field
// order.
func (t Withdraw) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.EmbedFrom(t.baseCmd)
	w.EmbedFrom(t.Amount)
	return w.MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *Withdraw) UnmarshalJSON(data []byte) error {
	var c amountCmd
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	*t = Withdraw{baseCmd: c.baseCmd, Amount: c.Money()}
	return nil
}

// Equal compares two transactions field by field.
func (t Withdraw) Equal(other Transaction) bool {
	o, ok := other.(Withdraw)
	return ok && t.baseCmd == o.baseCmd && t.Amount.Equal(o.Amount)
}

// Validate checks the transaction and applies its quick fixes.
func (t Withdraw) Validate() (Transaction, error) {
	if err := t.baseCmd.validate(); err != nil {
		return t, err
	}
	if err := validateCashAmount(t.Command, &t.Amount); err != nil {
		return t, err
	}
	return t, nil
}

// Dividend records cash income received from holding a security.
type Dividend struct {
	secCmd
	Amount Money
}

// NewDividend creates a new Dividend transaction.
func NewDividend(day Date, account, memo, ticker string, amount Money) Dividend {
	return Dividend{secCmd: newSecCmd(CmdDividend, day, account, memo, ticker), Amount: amount}
}

// MarshalJSON implements the json.Marshaler interface with a stable field
// order.
func (t Dividend) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.EmbedFrom(t.secCmd)
	w.EmbedFrom(t.Amount)
	return w.MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *Dividend) UnmarshalJSON(data []byte) error {
	var c secAmountCmd
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	*t = Dividend{secCmd: c.secCmd, Amount: c.Money()}
	return nil
}

// Equal compares two transactions field by field.
func (t Dividend) Equal(other Transaction) bool {
	o, ok := other.(Dividend)
	return ok && t.secCmd == o.secCmd && t.Amount.Equal(o.Amount)
}

// Validate checks the transaction and applies its quick fixes. A dividend
// settles in the currency of the paying security's market when no currency is
// given.
func (t Dividend) Validate() (Transaction, error) {
	if err := t.secCmd.validate(); err != nil {
		return t, err
	}
	if t.Amount.Currency() == "" {
		t.Amount.cur = MarketOf(t.Ticker).Currency()
	}
	if err := validateCashAmount(t.Command, &t.Amount); err != nil {
		return t, err
	}
	return t, nil
}

// Interest records interest credited to an account's cash balance.
type Interest struct {
	baseCmd
	Amount Money
}

// NewInterest creates a new Interest transaction.
func NewInterest(day Date, account, memo string, amount Money) Interest {
	return Interest{baseCmd: newBaseCmd(CmdInterest, day, account, memo), Amount: amount}
}

// MarshalJSON implements the json.Marshaler interface with a stable field
// order.
func (t Interest) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.EmbedFrom(t.baseCmd)
	w.EmbedFrom(t.Amount)
	return w.MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *Interest) UnmarshalJSON(data []byte) error {
	var c amountCmd
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	*t = Interest{baseCmd: c.baseCmd, Amount: c.Money()}
	return nil
}

// Equal compares two transactions field by field.
func (t Interest) Equal(other Transaction) bool {
	o, ok := other.(Interest)
	return ok && t.baseCmd == o.baseCmd && t.Amount.Equal(o.Amount)
}

// Validate checks the transaction and applies its quick fixes.
func (t Interest) Validate() (Transaction, error) {
	if err := t.baseCmd.validate(); err != nil {
		return t, err
	}
	if err := validateCashAmount(t.Command, &t.Amount); err != nil {
		return t, err
	}
	return t, nil
}

// Fee records a standalone charge debited from an account's cash balance,
// optionally attributed to a security. The amount is the positive magnitude
// charged.
type Fee struct {
	baseCmd
	Ticker string
	Amount Money
}

// NewFee creates a new Fee transaction.
func NewFee(day Date, account, memo, ticker string, amount Money) Fee {
	return Fee{baseCmd: newBaseCmd(CmdFee, day, account, memo), Ticker: NormalizeTicker(ticker), Amount: amount}
}

// MarshalJSON implements the json.Marshaler interface with a stable field
// order.
func (t Fee) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.EmbedFrom(t.baseCmd)
	w.Optional("ticker", t.Ticker)
	w.EmbedFrom(t.Amount)
	return w.MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *Fee) UnmarshalJSON(data []byte) error {
	var c secAmountCmd
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	*t = Fee{baseCmd: c.baseCmd, Ticker: c.Ticker, Amount: c.Money()}
	return nil
}

// Equal compares two transactions field by field.
func (t Fee) Equal(other Transaction) bool {
	o, ok := other.(Fee)
	return ok && t.baseCmd == o.baseCmd && t.Ticker == o.Ticker && t.Amount.Equal(o.Amount)
}

// Validate checks the transaction and applies its quick fixes.
func (t Fee) Validate() (Transaction, error) {
	if err := t.baseCmd.validate(); err != nil {
		return t, err
	}
	if err := validateCashAmount(t.Command, &t.Amount); err != nil {
		return t, err
	}
	return t, nil
}

// Convert records a currency conversion inside one account: FromAmount is
// debited and ToAmount is credited. Both legs live in the same record, so the
// conversion rate is frozen at recording time and never re-derived.
type Convert struct {
	baseCmd
	FromAmount Money
	ToAmount   Money
}

// NewConvert creates a new Convert transaction.
func NewConvert(day Date, account, memo string, fromAmount, toAmount Money) Convert {
	return Convert{baseCmd: newBaseCmd(CmdConvert, day, account, memo), FromAmount: fromAmount, ToAmount: toAmount}
}

// MarshalJSON implements the json.Marshaler interface with a stable field
// order.
func (t Convert) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.EmbedFrom(t.baseCmd)
	w.PrefixFrom("from", t.FromAmount)
	w.PrefixFrom("to", t.ToAmount)
	return w.MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *Convert) UnmarshalJSON(data []byte) error {
	var c convertCmd
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	*t = Convert{baseCmd: c.baseCmd, FromAmount: c.FromMoney(), ToAmount: c.ToMoney()}
	return nil
}

// Equal compares two transactions field by field.
func (t Convert) Equal(other Transaction) bool {
	o, ok := other.(Convert)
	return ok && t.baseCmd == o.baseCmd &&
		t.FromAmount.Equal(o.FromAmount) &&
		t.ToAmount.Equal(o.ToAmount)
}

// Validate checks the transaction and applies its quick fixes. Both legs must
// be positive amounts in two distinct supported currencies.
func (t Convert) Validate() (Transaction, error) {
	if err := t.baseCmd.validate(); err != nil {
		return t, err
	}
	if err := validateCashAmount(t.Command, &t.FromAmount); err != nil {
		return t, err
	}
	if err := validateCashAmount(t.Command, &t.ToAmount); err != nil {
		return t, err
	}
	if t.FromAmount.Currency() == t.ToAmount.Currency() {
		return t, fmt.Errorf("%w: convert needs two distinct currencies, got %s twice",
			ErrValidation, t.FromAmount.Currency())
	}
	return t, nil
}

// validateCashAmount checks that a cash amount is strictly positive and in a
// supported currency.
func validateCashAmount(cmd CommandType, amount *Money) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s amount must be positive, got %s", ErrValidation, cmd, amount)
	}
	if !ValidCurrency(amount.Currency()) {
		return fmt.Errorf("%w: %s currency %q is not supported", ErrValidation, cmd, amount.Currency())
	}
	return nil
}
