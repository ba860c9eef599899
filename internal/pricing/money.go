package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a dollar amount to cents, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// ParsePrice parses a decimal price string such as "19.99". Negative prices
// and fractions of a cent are rejected.
func ParsePrice(value string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q: %w", value, err)
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("price must be zero or positive: %s", value)
	}
	if !price.Equal(price.Round(2)) {
		return decimal.Zero, fmt.Errorf("price has more than two decimal places: %s", value)
	}
	return price, nil
}

// Format renders an amount as a dollar string, e.g. "$19.99" or "-$5.00".
func Format(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return "-$" + amount.Neg().StringFixed(2)
	}
	return "$" + amount.StringFixed(2)
}
