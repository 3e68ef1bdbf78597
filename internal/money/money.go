package money

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var nonNumeric = regexp.MustCompile(`[^0-9.\-]`)

// Parse converts bank-export amount text into a float, stripping currency
// symbols and thousands separators ("RM 2,000.00" -> 2000). Parenthesized
// amounts are treated as negative. An empty string is 0; a non-empty string
// with no digits is an error.
func Parse(text string) (float64, error) {
	s := strings.TrimSpace(text)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	clean := nonNumeric.ReplaceAllString(s, "")
	clean = strings.TrimLeft(clean, "-") // symbols can leave stray dashes

	// A minus anywhere before the first digit negates: "-RM 100", "RM -100".
	for _, r := range s {
		if r >= '0' && r <= '9' {
			break
		}
		if r == '-' {
			negative = true
			break
		}
	}
	if clean == "" || clean == "." {
		if strings.TrimSpace(text) == "" {
			return 0, nil
		}
		return 0, fmt.Errorf("no numeric content in %q", text)
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", text, err)
	}
	if negative {
		d = d.Neg()
	}
	return d.InexactFloat64(), nil
}

// Round2 rounds to 2 decimal places, half away from zero.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
