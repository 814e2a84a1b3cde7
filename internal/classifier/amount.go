package classifier

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrBadAmount indicates an amount string that could not be parsed to a
// positive value.
var ErrBadAmount = errors.New("invalid amount")

// ParseAmount parses a captured amount string into a positive decimal.
// Thousands separators (Indian and western grouping) and both decimal
// conventions are tolerated: "1,23,456.78", "1.234.567,89", "450", "2,500".
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.Trim(s, ".,")
	if s == "" {
		return decimal.Zero, ErrBadAmount
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		// Both present: the rightmost separator is the decimal point.
		if lastDot > lastComma {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastComma >= 0:
		// Comma only: a single comma followed by one or two digits is a
		// decimal comma; anything else is grouping.
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ".") > 1:
		// Multiple dots can only be grouping.
		s = strings.ReplaceAll(s, ".", "")
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrBadAmount
	}
	if !amount.IsPositive() {
		return decimal.Zero, ErrBadAmount
	}
	return amount, nil
}
