package folio

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Market identifies one of the supported equity markets. Every account is
// pinned to a single market, and the market fixes the account's settlement
// currency.
type Market string

const (
	TW Market = "TW" // Taiwan Stock Exchange, settles in TWD
	US Market = "US" // US exchanges (NYSE, NASDAQ), settle in USD
	SG Market = "SG" // Singapore Exchange, settles in SGD
)

// Markets returns the supported markets in display order.
func Markets() []Market { return []Market{TW, US, SG} }

// ParseMarket parses a market code, case-insensitively.
func ParseMarket(s string) (Market, error) {
	switch m := Market(strings.ToUpper(strings.TrimSpace(s))); m {
	case TW, US, SG:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown market %q, want TW, US or SG", ErrValidation, s)
	}
}

// Name returns the long name of the market.
func (m Market) Name() string {
	switch m {
	case TW:
		return "Taiwan Stock Exchange"
	case US:
		return "US Markets (NYSE, NASDAQ)"
	case SG:
		return "Singapore Exchange"
	default:
		return string(m)
	}
}

// Currency returns the settlement currency of the market.
func (m Market) Currency() string {
	switch m {
	case TW:
		return "TWD"
	case US:
		return "USD"
	case SG:
		return "SGD"
	default:
		return ""
	}
}

// Suffix returns the ticker suffix used by the market's listings ("" for US).
func (m Market) Suffix() string {
	switch m {
	case TW:
		return ".TW"
	case SG:
		return ".SI"
	default:
		return ""
	}
}

// MarketOf infers the market of a ticker from its suffix:
//
//	"2330.TW" -> TW
//	"D05.SI"  -> SG
//	"AAPL"    -> US
//
// A ticker without a known suffix is treated as a US listing.
func MarketOf(ticker string) Market {
	ticker = strings.ToUpper(ticker)
	switch {
	case strings.HasSuffix(ticker, ".TW"):
		return TW
	case strings.HasSuffix(ticker, ".SI"):
		return SG
	default:
		return US
	}
}

// NormalizeTicker uppercases and trims a ticker symbol.
func NormalizeTicker(ticker string) string { return strings.ToUpper(strings.TrimSpace(ticker)) }

// ValidTicker reports whether a ticker is non-empty and has no spaces.
func ValidTicker(ticker string) bool {
	ticker = strings.TrimSpace(ticker)
	return ticker != "" && !strings.Contains(ticker, " ")
}

// Currencies returns the supported cash currencies in display order.
func Currencies() []string { return []string{"TWD", "USD", "SGD"} }

// ValidCurrency reports whether cur is one of the supported cash currencies.
func ValidCurrency(cur string) bool {
	switch cur {
	case "TWD", "USD", "SGD":
		return true
	default:
		return false
	}
}

// twSellTaxRate is the Taiwan securities transaction tax levied on the gross
// proceeds of a sale.
var twSellTaxRate = decimal.RequireFromString("0.003")

// TWSellTax returns the Taiwan securities transaction tax (0.3%) on the gross
// proceeds of a sale. The sell command applies it when no explicit tax is
// given for a TW-market ticker.
func TWSellTax(proceeds Money) Money {
	return proceeds.Mul(Q(twSellTaxRate))
}

// FXTicker returns the Yahoo Finance symbol quoting 1 unit of from in to,
// e.g. FXTicker("USD", "TWD") == "USDTWD=X".
func FXTicker(from, to string) string {
	return strings.ToUpper(from) + strings.ToUpper(to) + "=X"
}
