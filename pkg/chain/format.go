package chain

import (
	"math/big"
	"strings"
)

// FormatUnits renders an amount of atomic units in standard units.
// The fraction is truncated to places digits and trailing zeros are dropped,
// so 123450000 with unitDecimals 4 and places 4 renders as "12345".
func FormatUnits(amount *big.Int, unitDecimals, places int) string {
	if amount == nil {
		return "0"
	}
	if unitDecimals < 0 {
		unitDecimals = 0
	}
	if places < 0 {
		places = 0
	}

	neg := amount.Sign() < 0
	digits := new(big.Int).Abs(amount).String()
	if len(digits) <= unitDecimals {
		digits = strings.Repeat("0", unitDecimals-len(digits)+1) + digits
	}

	whole := digits[:len(digits)-unitDecimals]
	frac := digits[len(digits)-unitDecimals:]
	if len(frac) > places {
		frac = frac[:places]
	}
	frac = strings.TrimRight(frac, "0")

	out := whole
	if frac != "" {
		out += "." + frac
	}
	if neg && out != "0" {
		out = "-" + out
	}
	return out
}
