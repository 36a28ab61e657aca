package shared

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for quantities and costs.
const Scale = 2

// ParseDecimal reads a user supplied number. Both "12.5" and "12,5" are
// accepted. The value is returned as typed; callers reject more than Scale
// fractional digits with HasScale.
func ParseDecimal(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, ",") && !strings.Contains(raw, ".") {
		raw = strings.ReplaceAll(raw, ",", ".")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// HasScale reports whether d has at most Scale fractional digits.
func HasScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(Scale))
}
