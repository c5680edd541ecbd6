package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// DefaultDecimals is the number of decimals a token gets unless configured otherwise.
const DefaultDecimals uint8 = 18

// ErrInvalidAmount is returned when an amount string is not an unsigned decimal integer.
var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount parses a base-10 amount expressed in smallest units.
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	return v, nil
}

// FormatAmount renders an amount as a base-10 string. Nil renders as "0".
func FormatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

// Scale returns whole × 10^decimals. The boolean reports overflow past 256 bits.
func Scale(whole *uint256.Int, decimals uint8) (*uint256.Int, bool) {
	result := new(uint256.Int).Set(AmountOrZero(whole))
	ten := uint256.NewInt(10)
	for i := uint8(0); i < decimals; i++ {
		if _, overflow := result.MulOverflow(result, ten); overflow {
			return nil, true
		}
	}
	return result, false
}

// AmountOrZero returns v, or a fresh zero when v is nil.
func AmountOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

// CloneAmount returns a copy of v that the caller may mutate. Nil clones to zero.
func CloneAmount(v *uint256.Int) *uint256.Int {
	return new(uint256.Int).Set(AmountOrZero(v))
}
