package folio

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDecodeLedger(t *testing.T) {
	// A multi-line string representing a JSONL stream with all command types.
	jsonlStream := `
{"command":"buy","date":"2026-03-02","account":"sinopac","ticker":"2330.TW","quantity":1000,"price":580,"currency":"TWD"}
{"command":"deposit","date":"2026-03-01","account":"sinopac","currency":"TWD","amount":600000}
{"command":"sell","date":"2026-03-10","account":"firstrade","ticker":"AAPL","quantity":5,"price":195.5,"fee":0.35,"currency":"USD"}
{"command":"dividend","date":"2026-03-12","account":"firstrade","ticker":"AAPL","currency":"USD","amount":12.25}
{"command":"withdraw","date":"2026-03-15","account":"scb","currency":"SGD","amount":200}
{"command":"interest","date":"2026-03-31","account":"scb","currency":"SGD","amount":4.1}
{"command":"fee","date":"2026-04-01","account":"firstrade","currency":"USD","amount":1}
{"command":"convert","date":"2026-04-02","account":"scb","fromCurrency":"SGD","fromAmount":1000,"toCurrency":"USD","toAmount":744.5}
`
	ledger, err := DecodeLedger(strings.NewReader(jsonlStream))
	if err != nil {
		t.Fatalf("DecodeLedger() returned an unexpected error: %v", err)
	}

	if got, want := ledger.Len(), 8; got != want {
		t.Fatalf("DecodeLedger() decoded wrong number of transactions. Got: %d, want: %d", got, want)
	}

	// Decoding sorts by date, so the deposit comes first.
	expectedTypes := []reflect.Type{
		reflect.TypeOf(Deposit{}),
		reflect.TypeOf(Buy{}),
		reflect.TypeOf(Sell{}),
		reflect.TypeOf(Dividend{}),
		reflect.TypeOf(Withdraw{}),
		reflect.TypeOf(Interest{}),
		reflect.TypeOf(Fee{}),
		reflect.TypeOf(Convert{}),
	}
	for i, tx := range ledger.Transactions() {
		if reflect.TypeOf(tx) != expectedTypes[i] {
			t.Errorf("Transaction %d has wrong type. Got: %T, want: %v", i+1, tx, expectedTypes[i])
		}
	}
}

func TestDecodeLedgerErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"unknown command", `{"command":"short","date":"2026-03-02","account":"a","ticker":"AAPL"}`},
		{"missing command", `{"date":"2026-03-02","account":"a"}`},
		{"malformed json", `{"command":"buy",`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeLedger(strings.NewReader(tc.line)); err == nil {
				t.Errorf("DecodeLedger(%q) expected an error, got nil", tc.line)
			}
		})
	}
}

// TestEncodeDecodeRoundTrip verifies that every command type survives an
// encode/decode cycle unchanged.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	day := NewDate(2026, time.March, 10)

	buy, err := NewBuy(day, "sinopac", "memo", "2330.TW", Q(1000), TWD(580), TWD(27), Money{}).Validate()
	if err != nil {
		t.Fatalf("NewBuy().Validate() returned an unexpected error: %v", err)
	}
	sell, err := NewSell(day, "sinopac", "", "2330.TW", Q(500), TWD(600), TWD(85), TWD(900)).Validate()
	if err != nil {
		t.Fatalf("NewSell().Validate() returned an unexpected error: %v", err)
	}
	deposit, err := NewDeposit(day, "scb", "opening", SGD(10000)).Validate()
	if err != nil {
		t.Fatalf("NewDeposit().Validate() returned an unexpected error: %v", err)
	}
	withdraw, err := NewWithdraw(day, "scb", "", SGD(250)).Validate()
	if err != nil {
		t.Fatalf("NewWithdraw().Validate() returned an unexpected error: %v", err)
	}
	dividend, err := NewDividend(day, "firstrade", "", "AAPL", USD(12.25)).Validate()
	if err != nil {
		t.Fatalf("NewDividend().Validate() returned an unexpected error: %v", err)
	}
	interest, err := NewInterest(day, "scb", "", SGD(4.1)).Validate()
	if err != nil {
		t.Fatalf("NewInterest().Validate() returned an unexpected error: %v", err)
	}
	fee, err := NewFee(day, "firstrade", "wire", "", USD(25)).Validate()
	if err != nil {
		t.Fatalf("NewFee().Validate() returned an unexpected error: %v", err)
	}
	convert, err := NewConvert(day, "scb", "", SGD(1000), USD(744.5)).Validate()
	if err != nil {
		t.Fatalf("NewConvert().Validate() returned an unexpected error: %v", err)
	}

	txs := []Transaction{buy, sell, deposit, withdraw, dividend, interest, fee, convert}
	for _, tx := range txs {
		t.Run(string(tx.What()), func(t *testing.T) {
			var buf bytes.Buffer
			if err := EncodeTransaction(&buf, tx); err != nil {
				t.Fatalf("EncodeTransaction() returned an unexpected error: %v", err)
			}
			decoded, err := DecodeLedger(&buf)
			if err != nil {
				t.Fatalf("DecodeLedger() returned an unexpected error: %v", err)
			}
			if decoded.Len() != 1 {
				t.Fatalf("DecodeLedger() decoded %d transactions, want 1", decoded.Len())
			}
			for _, got := range decoded.Transactions() {
				if !got.Equal(tx) {
					t.Errorf("round trip mismatch.\nGot:  %#v\nWant: %#v", got, tx)
				}
			}
		})
	}
}

// TestEncodeTransactionFormat pins the canonical JSONL shape of each command.
func TestEncodeTransactionFormat(t *testing.T) {
	day := NewDate(2026, time.March, 10)

	tests := []struct {
		name string
		tx   Transaction
		want string
	}{
		{
			"buy without fee",
			NewBuy(day, "sinopac", "", "2330.TW", Q(1000), TWD(580), Money{}, Money{}),
			`{"command":"buy","date":"2026-03-10","account":"sinopac","ticker":"2330.TW","quantity":1000,"price":580,"currency":"TWD"}`,
		},
		{
			"sell with fee and tax",
			NewSell(day, "sinopac", "", "2330.TW", Q(1000), TWD(600), TWD(855), TWD(1800)),
			`{"command":"sell","date":"2026-03-10","account":"sinopac","ticker":"2330.TW","quantity":1000,"price":600,"fee":855,"tax":1800,"currency":"TWD"}`,
		},
		{
			"buy with memo",
			NewBuy(day, "firstrade", "monthly DCA", "VOO", Q(2), USD(512.4), USD(0.1), Money{}),
			`{"command":"buy","date":"2026-03-10","account":"firstrade","memo":"monthly DCA","ticker":"VOO","quantity":2,"price":512.4,"fee":0.1,"currency":"USD"}`,
		},
		{
			"deposit",
			NewDeposit(day, "scb", "", SGD(1000)),
			`{"command":"deposit","date":"2026-03-10","account":"scb","currency":"SGD","amount":1000}`,
		},
		{
			"withdraw",
			NewWithdraw(day, "scb", "", SGD(200)),
			`{"command":"withdraw","date":"2026-03-10","account":"scb","currency":"SGD","amount":200}`,
		},
		{
			"dividend",
			NewDividend(day, "firstrade", "", "AAPL", USD(12.25)),
			`{"command":"dividend","date":"2026-03-10","account":"firstrade","ticker":"AAPL","currency":"USD","amount":12.25}`,
		},
		{
			"interest",
			NewInterest(day, "scb", "", SGD(4.1)),
			`{"command":"interest","date":"2026-03-10","account":"scb","currency":"SGD","amount":4.1}`,
		},
		{
			"fee with ticker",
			NewFee(day, "firstrade", "", "AAPL", USD(1)),
			`{"command":"fee","date":"2026-03-10","account":"firstrade","ticker":"AAPL","currency":"USD","amount":1}`,
		},
		{
			"fee without ticker",
			NewFee(day, "firstrade", "", "", USD(25)),
			`{"command":"fee","date":"2026-03-10","account":"firstrade","currency":"USD","amount":25}`,
		},
		{
			"convert",
			NewConvert(day, "scb", "", SGD(1000), USD(744.5)),
			`{"command":"convert","date":"2026-03-10","account":"scb","fromCurrency":"SGD","fromAmount":1000,"toCurrency":"USD","toAmount":744.5}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := EncodeTransaction(&buf, tc.tx); err != nil {
				t.Fatalf("EncodeTransaction() returned an unexpected error: %v", err)
			}
			if got := strings.TrimSpace(buf.String()); got != tc.want {
				t.Errorf("EncodeTransaction() produced wrong line.\nGot:  %s\nWant: %s", got, tc.want)
			}
		})
	}
}

func TestEncodeLedger(t *testing.T) {
	// Create transactions in a deliberately unsorted order. tx2 and tx3 share a
	// date, so their relative order must be preserved by the stable sort.
	tx1 := NewBuy(NewDate(2026, time.March, 3), "sinopac", "", "2330.TW", Q(100), TWD(580), Money{}, Money{})
	tx2 := NewDeposit(NewDate(2026, time.March, 1), "sinopac", "", TWD(60000))
	tx3 := NewFee(NewDate(2026, time.March, 1), "sinopac", "", "", TWD(100))

	ledger := NewLedger()
	ledger.Append(tx1, tx2, tx3)

	expectedOrder := []Transaction{tx2, tx3, tx1}
	var want bytes.Buffer
	for _, tx := range expectedOrder {
		if err := EncodeTransaction(&want, tx); err != nil {
			t.Fatalf("Failed to encode expected transaction: %v", err)
		}
	}

	var got bytes.Buffer
	if err := EncodeLedger(&got, ledger); err != nil {
		t.Fatalf("EncodeLedger() returned an unexpected error: %v", err)
	}
	if got.String() != want.String() {
		t.Errorf("EncodeLedger() produced incorrect output.\nGot:\n%s\nWant:\n%s", got.String(), want.String())
	}
}
