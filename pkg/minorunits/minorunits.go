// Package minorunits converts decimal string amounts to integer minor units
// at a fixed scale and back. All monetary values cross internal boundaries
// in this representation so no float arithmetic leaks into amounts.
package minorunits

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidAmount is returned for malformed decimal inputs. It is checked
// with errors.Is by callers that map it onto their own error taxonomy.
var ErrInvalidAmount = errors.New("invalid amount")

// ToMinorUnits parses a non-negative decimal string like "12.34" into minor
// units at the given scale, e.g. 12340000 at 6 decimals.
//
// Fractional digits beyond the scale are truncated, not rounded. That is a
// definitional policy of the ramp: the venue fill already fixed the amount
// and rounding up would mint value that was never bought.
func ToMinorUnits(s string, decimals uint32) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidAmount)
	}
	if strings.Count(s, ".") > 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	wholePart, fracPart, _ := strings.Cut(s, ".")
	if wholePart == "" {
		wholePart = "0"
	}

	whole, err := strconv.ParseUint(wholePart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	// Right-pad to the scale, then truncate to the scale.
	frac := fracPart
	for uint32(len(frac)) < decimals {
		frac += "0"
	}
	frac = frac[:decimals]

	var fracUnits uint64
	if frac != "" {
		fracUnits, err = strconv.ParseUint(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
	}

	scale := pow10(decimals)
	if whole > (^uint64(0)-fracUnits)/scale {
		return 0, fmt.Errorf("%w: %q overflows minor units", ErrInvalidAmount, s)
	}
	return whole*scale + fracUnits, nil
}

// Format renders minor units back into a fixed-scale decimal string,
// e.g. 9870000 at 6 decimals -> "9.870000".
func Format(m uint64, decimals uint32) string {
	if decimals == 0 {
		return strconv.FormatUint(m, 10)
	}
	scale := pow10(decimals)
	whole := m / scale
	frac := m % scale
	return fmt.Sprintf("%d.%0*d", whole, decimals, frac)
}

func pow10(n uint32) uint64 {
	p := uint64(1)
	for i := uint32(0); i < n; i++ {
		p *= 10
	}
	return p
}
