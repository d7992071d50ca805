// Package scb parses Standard Chartered Bank Singapore account statement CSV
// exports into normalized import events for the reconciler.
//
// The file carries five metadata lines (title, account name, account number,
// currency, balances) before the column header:
//
//	Date,Transaction,Currency,Deposit,Withdrawal,Running Balance
//	20/02/2026,ATM WITHDRAWAL,SGD,,"500.00","3,129.92 CR"
//
// Dates are DD/MM/YYYY and amounts may carry quoted commas and a CR/DR
// suffix. Rows are categorized by keywords in the transaction description.
package scb

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mwtsai/folio"
)

// Source is the name the reconciler records for batches parsed here.
const Source = "scb"

// metadataLines is the number of lines preceding the column header.
const metadataLines = 5

// Statement is a parsed SCB export: the account metadata from the header
// lines plus the normalized events of the data rows.
type Statement struct {
	AccountName   string
	AccountNumber string
	Currency      string
	Events        []folio.Event
}

// Parse reads an SCB statement and returns its events attributed to the given
// account.
func Parse(r io.Reader, account string) (*Statement, error) {
	scanner := bufio.NewScanner(r)

	var meta []string
	for len(meta) < metadataLines && scanner.Scan() {
		meta = append(meta, strings.TrimSpace(scanner.Text()))
	}
	if len(meta) < metadataLines {
		return nil, fmt.Errorf("%w: not an SCB statement, expected %d metadata lines", folio.ErrValidation, metadataLines)
	}
	statement := &Statement{
		AccountName:   strings.Trim(meta[1], `"`),
		AccountNumber: strings.Trim(meta[2], `"`),
		Currency:      strings.ToUpper(strings.Trim(meta[3], `"`)),
	}
	if statement.Currency == "" {
		statement.Currency = "SGD"
	}

	var data strings.Builder
	for scanner.Scan() {
		data.WriteString(scanner.Text())
		data.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read SCB statement: %w", err)
	}

	reader := csv.NewReader(strings.NewReader(data.String()))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("cannot read SCB column header: %w", err)
	}
	col, err := columns(header)
	if err != nil {
		return nil, err
	}

	for line := metadataLines + 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("SCB line %d: %w", line, err)
		}
		event, ok, err := parseRow(record, col, account, statement.Currency)
		if err != nil {
			return nil, fmt.Errorf("SCB line %d: %w", line, err)
		}
		if ok {
			statement.Events = append(statement.Events, event)
		}
	}
	return statement, nil
}

type colIndex struct {
	date, description, currency, deposit, withdrawal int
}

func columns(header []string) (colIndex, error) {
	col := colIndex{date: -1, description: -1, currency: -1, deposit: -1, withdrawal: -1}
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF")) {
		case "Date":
			col.date = i
		case "Transaction":
			col.description = i
		case "Currency":
			col.currency = i
		case "Deposit":
			col.deposit = i
		case "Withdrawal":
			col.withdrawal = i
		}
	}
	if col.date < 0 || col.description < 0 || col.deposit < 0 || col.withdrawal < 0 {
		return col, fmt.Errorf("%w: not an SCB statement, header %v", folio.ErrValidation, header)
	}
	return col, nil
}

func parseRow(record []string, col colIndex, account, statementCurrency string) (folio.Event, bool, error) {
	if col.date >= len(record) || strings.TrimSpace(record[col.date]) == "" {
		return folio.Event{}, false, nil
	}
	date, err := parseDate(record[col.date])
	if err != nil {
		return folio.Event{}, false, err
	}
	description := strings.TrimSpace(record[col.description])
	currency := statementCurrency
	if col.currency >= 0 && col.currency < len(record) {
		if c := strings.ToUpper(strings.TrimSpace(record[col.currency])); c != "" {
			currency = c
		}
	}

	deposit := field(record, col.deposit)
	withdrawal := field(record, col.withdrawal)
	var amount decimal.Decimal
	switch {
	case !deposit.IsZero():
		amount = deposit
	case !withdrawal.IsZero():
		amount = withdrawal.Neg()
	default:
		// A zero-value row carries no economic fact.
		return folio.Event{}, false, nil
	}

	return folio.Event{
		Account:  account,
		Kind:     folio.EventCash,
		Date:     date,
		Category: categorize(description, amount),
		Amount:   folio.M(amount, currency),
		Note:     description,
	}, true, nil
}

// categorize maps an SCB transaction description onto a cash category by the
// keywords the bank uses.
func categorize(description string, amount decimal.Decimal) folio.CashCategory {
	desc := strings.ToUpper(description)
	switch {
	case strings.Contains(desc, "INTEREST"):
		return folio.CashInterest
	case strings.Contains(desc, "DIVIDEND"):
		return folio.CashDividend
	case strings.Contains(desc, "WITHDRAWAL") || strings.Contains(desc, "ATM"):
		return folio.CashWithdrawal
	case strings.Contains(desc, "DEPOSIT") || strings.Contains(desc, "SALARY") || strings.Contains(desc, "TRANSFER IN"):
		return folio.CashDeposit
	case strings.Contains(desc, "FEE") || strings.Contains(desc, "CHARGE"):
		return folio.CashFee
	case strings.Contains(desc, "FX") || strings.Contains(desc, "EXCHANGE"):
		return folio.CashConvert
	case amount.IsNegative():
		return folio.CashWithdrawal
	default:
		return folio.CashDeposit
	}
}

func field(record []string, i int) decimal.Decimal {
	if i < 0 || i >= len(record) {
		return decimal.Zero
	}
	return parseAmount(record[i])
}

// parseAmount reads an SCB amount like `3,129.92 CR`; unreadable text counts
// as zero, matching the bank's habit of leaving columns blank.
func parseAmount(s string) decimal.Decimal {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, " CR")
	s = strings.TrimSuffix(s, " DR")
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseDate(s string) (folio.Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("02/01/2006", s); err == nil {
		return folio.NewDate(t.Date()), nil
	}
	if d, err := folio.ParseDate(s); err == nil {
		return d, nil
	}
	return folio.Date{}, fmt.Errorf("%w: unreadable date %q", folio.ErrValidation, s)
}
