package numeric

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxDecimals is the largest token precision the converters accept.
const MaxDecimals = 18

// ParseUnits converts a human-readable amount into integer base units
// scaled by 10^decimals. Digits beyond the token's precision are truncated.
func ParseUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Truncate(0).BigInt()
}

// FormatUnits converts integer base units back into a decimal amount.
// A nil value formats as zero.
func FormatUnits(units *big.Int, decimals int32) decimal.Decimal {
	if units == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(units, -decimals)
}

// ParseAmount parses user-entered amount text. A comma is accepted as the
// decimal separator when no dot is present; group commas are stripped
// otherwise.
func ParseAmount(input string) (decimal.Decimal, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") || strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", input, err)
	}
	return d, nil
}
