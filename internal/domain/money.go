package domain

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/XxvipoxX/ChaosAWS/pkg/errors"
)

// DefaultCurrency is the ISO code every amount is expressed in.
const DefaultCurrency = "USD"

// ParseAmount converts a decimal string with at most two fraction digits
// ("19.99", "19,99", "20") into cents.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || (hasFrac && (frac == "" || len(frac) > 2)) {
		return 0, apperrors.InvalidInput(fmt.Sprintf("invalid amount %q", s))
	}
	for len(frac) < 2 {
		frac += "0"
	}
	units, err := strconv.ParseUint(whole, 10, 32)
	if err != nil {
		return 0, apperrors.InvalidInput(fmt.Sprintf("invalid amount %q", s))
	}
	cents, err := strconv.ParseUint(frac, 10, 8)
	if err != nil {
		return 0, apperrors.InvalidInput(fmt.Sprintf("invalid amount %q", s))
	}
	return int64(units)*100 + int64(cents), nil
}

// FormatAmount renders cents as a two-decimal string.
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// TaxAmount returns base times basisPoints/10000, rounded half up.
func TaxAmount(base, basisPoints int64) int64 {
	return (base*basisPoints + 5000) / 10000
}
