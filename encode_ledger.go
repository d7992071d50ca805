package folio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// amountCmd is a specialized struct to read a ledger amount split in two keys.
// We could have used json "inline" but it would work for some transactions not
// all.
type amountCmd struct {
	baseCmd
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (c amountCmd) Money() Money { return M(c.Amount, c.Currency) }

// secAmountCmd is a specialized struct for amounts attached to a security.
type secAmountCmd struct {
	secCmd
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (c secAmountCmd) Money() Money { return M(c.Amount, c.Currency) }

// tradeCmd is a specialized struct for decoding buys and sells. Price, fee and
// tax share the single currency key.
type tradeCmd struct {
	secCmd
	Quantity Quantity        `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Fee      decimal.Decimal `json:"fee"`
	Tax      decimal.Decimal `json:"tax"`
	Currency string          `json:"currency"`
}

// convertCmd is a specialized struct for decoding conversions.
type convertCmd struct {
	baseCmd
	FromAmount   decimal.Decimal `json:"fromAmount"`
	FromCurrency string          `json:"fromCurrency"`
	ToAmount     decimal.Decimal `json:"toAmount"`
	ToCurrency   string          `json:"toCurrency"`
}

func (c convertCmd) FromMoney() Money { return M(c.FromAmount, c.FromCurrency) }
func (c convertCmd) ToMoney() Money   { return M(c.ToAmount, c.ToCurrency) }

// DecodeLedger decodes transactions from a stream of JSONL data from an io.Reader,
// decodes each line into the appropriate transaction struct, and returns a sorted Ledger.
func DecodeLedger(r io.Reader) (*Ledger, error) {
	ledger := NewLedger()
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		lineBytes := scanner.Bytes()
		if len(lineBytes) == 0 {
			continue // Skip empty lines
		}

		var identifier struct {
			Command CommandType `json:"command"`
		}
		if err := json.Unmarshal(lineBytes, &identifier); err != nil {
			return nil, fmt.Errorf("could not identify command in line %q: %w", string(lineBytes), err)
		}

		var decodedTx Transaction
		var err error

		switch identifier.Command {
		case CmdBuy:
			var tx Buy
			err = json.Unmarshal(lineBytes, &tx)
			decodedTx = tx
		case CmdSell:
			var tx Sell
			err = json.Unmarshal(lineBytes, &tx)
			decodedTx = tx
		case CmdDeposit:
			var tx Deposit
			err = json.Unmarshal(lineBytes, &tx)
			decodedTx = tx
		case CmdWithdraw:
			var tx Withdraw
			err = json.Unmarshal(lineBytes, &tx)
			decodedTx = tx
		case CmdDividend:
			var tx Dividend
			err = json.Unmarshal(lineBytes, &tx)
			decodedTx = tx
		case CmdInterest:
			var tx Interest
			err = json.Unmarshal(lineBytes, &tx)
			decodedTx = tx
		case CmdFee:
			var tx Fee
			err = json.Unmarshal(lineBytes, &tx)
			decodedTx = tx
		case CmdConvert:
			var tx Convert
			err = json.Unmarshal(lineBytes, &tx)
			decodedTx = tx
		default:
			err = fmt.Errorf("unknown transaction command: %q", identifier.Command)
		}

		if err != nil {
			return nil, err
		}
		ledger.transactions = append(ledger.transactions, decodedTx)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading from input: %w", err)
	}

	// Perform a stable sort on the ledger based on the transaction date.
	ledger.stableSort()

	return ledger, nil
}

// EncodeTransaction marshals a single transaction to JSON and writes it to the
// writer, followed by a newline, in JSONL format.
func EncodeTransaction(w io.Writer, tx Transaction) error {
	jsonData, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	// Write the JSON data followed by a newline to create the JSONL format.
	if _, err := w.Write(append(jsonData, '\n')); err != nil {
		return fmt.Errorf("failed to write transaction: %w", err)
	}
	return nil
}

// EncodeLedger reorders transactions by date and persists them to an io.Writer in JSONL format.
// The sort is stable, meaning transactions on the same day maintain their original relative order.
func EncodeLedger(w io.Writer, ledger *Ledger) error {
	// Perform a stable sort on the ledger based on the transaction date to ensure order.
	ledger.stableSort()

	for _, tx := range ledger.transactions {
		if err := EncodeTransaction(w, tx); err != nil {
			return err
		}
	}

	return nil
}
