// Package firstrade parses Firstrade transaction history CSV exports
// (Accounts > Tax Center > Excel CSV Files) into normalized import events
// for the reconciler.
//
// The format is:
//
//	Date,Symbol,Type,Quantity,Price,Amount
//	02/20/2026,AAPL,BUY,10,178.50,"1,785.00"
//	02/10/2026,,DIVIDEND,0,0.00,25.50
//
// Dates are MM/DD/YYYY, amounts over a thousand carry quoted commas, and
// cash rows (DIVIDEND, DEPOSIT, WITHDRAWAL, FEE, INTEREST) leave the symbol
// empty. Everything settles in USD.
package firstrade

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mwtsai/folio"
)

// Source is the name the reconciler records for batches parsed here.
const Source = "firstrade"

// Parse reads a Firstrade CSV export and returns the normalized events it
// contains, attributed to the given account. Rows that are neither trades nor
// recognized cash movements are skipped with a warning.
func Parse(r io.Reader, account string) ([]folio.Event, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("cannot read firstrade header: %w", err)
	}
	col, err := columns(header)
	if err != nil {
		return nil, err
	}

	var events []folio.Event
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firstrade line %d: %w", line, err)
		}
		event, ok, err := parseRow(record, col, account)
		if err != nil {
			return nil, fmt.Errorf("firstrade line %d: %w", line, err)
		}
		if !ok {
			log.Warn().Int("line", line).Str("type", record[col.typ]).Msg("skipping unrecognized firstrade row")
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// colIndex maps the header names to their positions, so column reordering in
// a future export does not silently misparse.
type colIndex struct {
	date, symbol, typ, quantity, price, amount int
}

func columns(header []string) (colIndex, error) {
	col := colIndex{date: -1, symbol: -1, typ: -1, quantity: -1, price: -1, amount: -1}
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF")) {
		case "Date":
			col.date = i
		case "Symbol":
			col.symbol = i
		case "Type":
			col.typ = i
		case "Quantity":
			col.quantity = i
		case "Price":
			col.price = i
		case "Amount":
			col.amount = i
		}
	}
	if col.date < 0 || col.typ < 0 || col.amount < 0 {
		return col, fmt.Errorf("%w: not a firstrade export, header %v", folio.ErrValidation, header)
	}
	return col, nil
}

func parseRow(record []string, col colIndex, account string) (folio.Event, bool, error) {
	date, err := parseDate(record[col.date])
	if err != nil {
		return folio.Event{}, false, err
	}
	typ := strings.ToUpper(strings.TrimSpace(record[col.typ]))
	symbol := ""
	if col.symbol >= 0 {
		symbol = folio.NormalizeTicker(record[col.symbol])
	}
	amount, err := parseAmount(record[col.amount])
	if err != nil {
		return folio.Event{}, false, err
	}

	switch typ {
	case "BUY", "SELL":
		if symbol == "" {
			return folio.Event{}, false, fmt.Errorf("%w: %s row without a symbol", folio.ErrValidation, typ)
		}
		quantity, err := parseAmount(record[col.quantity])
		if err != nil {
			return folio.Event{}, false, err
		}
		price, err := parseAmount(record[col.price])
		if err != nil {
			return folio.Event{}, false, err
		}
		side := folio.SideBuy
		if typ == "SELL" {
			side = folio.SideSell
		}
		return folio.Event{
			Account:  account,
			Kind:     folio.EventTrade,
			Date:     date,
			Ticker:   symbol,
			Side:     side,
			Quantity: folio.Q(quantity.Abs()),
			Price:    folio.M(price.Abs(), "USD"),
			Note:     Source,
		}, true, nil
	case "DIVIDEND":
		return cashEvent(account, date, folio.CashDividend, symbol, amount.Abs(), typ), true, nil
	case "INTEREST":
		return cashEvent(account, date, folio.CashInterest, "", amount.Abs(), typ), true, nil
	case "DEPOSIT", "ACH DEPOSIT", "WIRE DEPOSIT":
		return cashEvent(account, date, folio.CashDeposit, "", amount.Abs(), typ), true, nil
	case "WITHDRAWAL", "ACH WITHDRAWAL", "WIRE WITHDRAWAL":
		return cashEvent(account, date, folio.CashWithdrawal, "", amount.Abs().Neg(), typ), true, nil
	case "FEE":
		return cashEvent(account, date, folio.CashFee, symbol, amount.Abs().Neg(), typ), true, nil
	default:
		return folio.Event{}, false, nil
	}
}

func cashEvent(account string, date folio.Date, category folio.CashCategory, ticker string, amount decimal.Decimal, note string) folio.Event {
	return folio.Event{
		Account:  account,
		Kind:     folio.EventCash,
		Date:     date,
		Category: category,
		Ticker:   ticker,
		Amount:   folio.M(amount, "USD"),
		Note:     note,
	}
}

// parseDate accepts the native MM/DD/YYYY form and the ISO form some exports
// use.
func parseDate(s string) (folio.Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("01/02/2006", s); err == nil {
		return folio.NewDate(t.Date()), nil
	}
	if d, err := folio.ParseDate(s); err == nil {
		return d, nil
	}
	return folio.Date{}, fmt.Errorf("%w: unreadable date %q", folio.ErrValidation, s)
}

// parseAmount strips the thousands commas Firstrade quotes into amounts.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: unreadable amount %q", folio.ErrValidation, s)
	}
	return d, nil
}
