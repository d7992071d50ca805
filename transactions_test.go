package folio

import (
	"errors"
	"testing"
)

func TestBuyValidate(t *testing.T) {
	day := NewDate(2026, 3, 10)

	t.Run("fills trade currency from the ticker's market", func(t *testing.T) {
		tx, err := NewBuy(day, "sinopac", "", " 2330.tw ", Q(1000), NO(580), NO(0), NO(0)).Validate()
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		buy := tx.(Buy)
		if got, want := buy.Ticker, "2330.TW"; got != want {
			t.Errorf("Ticker = %q, want %q", got, want)
		}
		if got, want := buy.Currency(), "TWD"; got != want {
			t.Errorf("Currency() = %q, want %q", got, want)
		}
		if got, want := buy.CashEffect(), TWD(-580000); !got.Equal(want) {
			t.Errorf("CashEffect() = %v, want %v", got, want)
		}
	})

	t.Run("zero date becomes today", func(t *testing.T) {
		tx, err := NewBuy(Date{}, "firstrade", "", "AAPL", Q(10), USD(100), NO(0), NO(0)).Validate()
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if !tx.When().IsToday() {
			t.Errorf("When() = %v, want today", tx.When())
		}
	})

	t.Run("rejects a price in the wrong currency", func(t *testing.T) {
		_, err := NewBuy(day, "sinopac", "", "2330.TW", Q(1000), USD(580), NO(0), NO(0)).Validate()
		if !errors.Is(err, ErrValidation) {
			t.Errorf("Validate() error = %v, want ErrValidation", err)
		}
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		_, err := NewBuy(day, "firstrade", "", "AAPL", Q(0), USD(100), NO(0), NO(0)).Validate()
		if !errors.Is(err, ErrValidation) {
			t.Errorf("Validate() error = %v, want ErrValidation", err)
		}
	})

	t.Run("rejects negative fee", func(t *testing.T) {
		_, err := NewBuy(day, "firstrade", "", "AAPL", Q(10), USD(100), USD(-1), NO(0)).Validate()
		if !errors.Is(err, ErrValidation) {
			t.Errorf("Validate() error = %v, want ErrValidation", err)
		}
	})

	t.Run("rejects missing account", func(t *testing.T) {
		_, err := NewBuy(day, "", "", "AAPL", Q(10), USD(100), NO(0), NO(0)).Validate()
		if !errors.Is(err, ErrValidation) {
			t.Errorf("Validate() error = %v, want ErrValidation", err)
		}
	})
}

func TestBuyCashEffect(t *testing.T) {
	day := NewDate(2026, 3, 10)
	tx, err := NewBuy(day, "firstrade", "", "AAPL", Q(10), USD(100), USD(1), USD(0.5)).Validate()
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	buy := tx.(Buy)
	// -(10*100 + 1 + 0.50)
	if got, want := buy.CashEffect(), USD(-1001.50); !got.Equal(want) {
		t.Errorf("CashEffect() = %v, want %v", got, want)
	}
	if got, want := buy.Cost(), USD(1000); !got.Equal(want) {
		t.Errorf("Cost() = %v, want %v", got, want)
	}
}

func TestSellCashEffect(t *testing.T) {
	day := NewDate(2026, 3, 10)
	tx, err := NewSell(day, "sinopac", "", "2330.TW", Q(1000), TWD(600), TWD(855), TWD(1800)).Validate()
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	sell := tx.(Sell)
	// +(1000*600 - 855 - 1800)
	if got, want := sell.CashEffect(), TWD(597345); !got.Equal(want) {
		t.Errorf("CashEffect() = %v, want %v", got, want)
	}
	if got, want := sell.Proceeds(), TWD(600000); !got.Equal(want) {
		t.Errorf("Proceeds() = %v, want %v", got, want)
	}
}

func TestCashCommandValidate(t *testing.T) {
	day := NewDate(2026, 3, 10)

	t.Run("deposit needs a positive amount", func(t *testing.T) {
		if _, err := NewDeposit(day, "scb", "", SGD(1000)).Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
		if _, err := NewDeposit(day, "scb", "", SGD(0)).Validate(); !errors.Is(err, ErrValidation) {
			t.Errorf("Validate() error = %v, want ErrValidation", err)
		}
		if _, err := NewDeposit(day, "scb", "", SGD(-5)).Validate(); !errors.Is(err, ErrValidation) {
			t.Errorf("Validate() error = %v, want ErrValidation", err)
		}
	})

	t.Run("deposit needs a supported currency", func(t *testing.T) {
		if _, err := NewDeposit(day, "scb", "", M(100, "EUR")).Validate(); !errors.Is(err, ErrValidation) {
			t.Errorf("Validate() error = %v, want ErrValidation", err)
		}
		if _, err := NewDeposit(day, "scb", "", NO(100)).Validate(); !errors.Is(err, ErrValidation) {
			t.Errorf("Validate() error = %v, want ErrValidation", err)
		}
	})

	t.Run("dividend currency follows the paying security", func(t *testing.T) {
		tx, err := NewDividend(day, "firstrade", "", "AAPL", NO(25.50)).Validate()
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if got, want := tx.(Dividend).Amount, USD(25.50); !got.Equal(want) {
			t.Errorf("Amount = %v, want %v", got, want)
		}
	})

	t.Run("withdraw keeps the positive magnitude", func(t *testing.T) {
		tx, err := NewWithdraw(day, "scb", "", SGD(200)).Validate()
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if got, want := tx.(Withdraw).Amount, SGD(200); !got.Equal(want) {
			t.Errorf("Amount = %v, want %v", got, want)
		}
	})
}

func TestConvertValidate(t *testing.T) {
	day := NewDate(2026, 3, 10)

	t.Run("two distinct currencies", func(t *testing.T) {
		if _, err := NewConvert(day, "firstrade", "", USD(1000), TWD(31500)).Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
		if _, err := NewConvert(day, "firstrade", "", USD(1000), USD(1000)).Validate(); !errors.Is(err, ErrValidation) {
			t.Errorf("Validate() error = %v, want ErrValidation", err)
		}
	})

	t.Run("both legs positive", func(t *testing.T) {
		if _, err := NewConvert(day, "firstrade", "", USD(-1000), TWD(31500)).Validate(); !errors.Is(err, ErrValidation) {
			t.Errorf("Validate() error = %v, want ErrValidation", err)
		}
	})
}

func TestTransactionEqual(t *testing.T) {
	day := NewDate(2026, 3, 10)
	a := NewBuy(day, "firstrade", "note", "AAPL", Q(10), USD(100), USD(1), NO(0))
	b := NewBuy(day, "firstrade", "note", "AAPL", Q(10), USD(100), USD(1), NO(0))
	c := NewBuy(day, "firstrade", "other", "AAPL", Q(10), USD(100), USD(1), NO(0))

	if !a.Equal(b) {
		t.Error("identical buys should be equal")
	}
	if a.Equal(c) {
		t.Error("buys with different memos should not be equal")
	}
	if a.Equal(NewSell(day, "firstrade", "note", "AAPL", Q(10), USD(100), USD(1), NO(0))) {
		t.Error("a buy should not equal a sell")
	}

	d := NewDeposit(day, "scb", "", SGD(1000))
	if !d.Equal(NewDeposit(day, "scb", "", SGD(1000))) {
		t.Error("identical deposits should be equal")
	}
	if d.Equal(NewDeposit(day, "scb", "", SGD(1001))) {
		t.Error("deposits with different amounts should not be equal")
	}
}

func TestTransactionWhatWhere(t *testing.T) {
	day := NewDate(2026, 3, 10)
	tests := []struct {
		tx   Transaction
		what CommandType
	}{
		{NewBuy(day, "a", "", "AAPL", Q(1), USD(1), NO(0), NO(0)), CmdBuy},
		{NewSell(day, "a", "", "AAPL", Q(1), USD(1), NO(0), NO(0)), CmdSell},
		{NewDeposit(day, "a", "", USD(1)), CmdDeposit},
		{NewWithdraw(day, "a", "", USD(1)), CmdWithdraw},
		{NewDividend(day, "a", "", "AAPL", USD(1)), CmdDividend},
		{NewInterest(day, "a", "", USD(1)), CmdInterest},
		{NewFee(day, "a", "", "", USD(1)), CmdFee},
		{NewConvert(day, "a", "", USD(1), TWD(31)), CmdConvert},
	}
	for _, tt := range tests {
		if got := tt.tx.What(); got != tt.what {
			t.Errorf("What() = %v, want %v", got, tt.what)
		}
		if got := tt.tx.Where(); got != "a" {
			t.Errorf("Where() = %q, want %q", got, "a")
		}
		if got := tt.tx.When(); got != day {
			t.Errorf("When() = %v, want %v", got, day)
		}
	}
}
