package folio

import (
	"fmt"
	"strings"
)

// Period is a calendar reporting period.
type Period int

const (
	Daily Period = iota
	Weekly
	Monthly
	Quarterly
	Yearly
)

func (p Period) String() string {
	switch p {
	case Daily:
		return "day"
	case Weekly:
		return "week"
	case Monthly:
		return "month"
	case Quarterly:
		return "quarter"
	case Yearly:
		return "year"
	default:
		return "period"
	}
}

// ParsePeriod reads a period name, accepting both the noun and the adverb
// form ("month", "monthly").
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "daily":
		return Daily, nil
	case "week", "weekly":
		return Weekly, nil
	case "month", "monthly":
		return Monthly, nil
	case "quarter", "quarterly":
		return Quarterly, nil
	case "year", "yearly":
		return Yearly, nil
	default:
		return Daily, fmt.Errorf("%w: unknown period %q", ErrValidation, s)
	}
}
