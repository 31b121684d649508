package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SnapDecimals is the coin precision: 1 SNAP = 10^9 nano.
const SnapDecimals = 9

// NanoToSnap converts nano units to a SNAP string without float precision loss
func NanoToSnap(nano uint64) string {
	return formatWithDecimals(nano, SnapDecimals)
}

// SnapToNano converts a SNAP string to nano units without float precision loss
func SnapToNano(snap string) (uint64, error) {
	return parseWithDecimals(snap, SnapDecimals)
}

// formatWithDecimals converts integer to decimal string by inserting decimal point
// Example: formatWithDecimals(24981836, 9) = "0.024981836"
func formatWithDecimals(value uint64, decimals int) string {
	s := fmt.Sprintf("%d", value)

	// Pad with leading zeros if needed
	for len(s) <= decimals {
		s = "0" + s
	}

	// Insert decimal point
	pos := len(s) - decimals
	return s[:pos] + "." + s[pos:]
}

// parseWithDecimals converts decimal string to integer by removing decimal point
// Example: parseWithDecimals("0.024981836", 9) = 24981836
func parseWithDecimals(s string, decimals int) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("negative amount")
	}

	parts := strings.Split(s, ".")

	if len(parts) == 1 {
		n, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return 0, err
		}
		// Multiply by 10^decimals with overflow guard
		for i := 0; i < decimals; i++ {
			if n > math.MaxUint64/10 {
				return 0, fmt.Errorf("amount overflows nano units")
			}
			n *= 10
		}
		return n, nil
	}

	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid decimal format")
	}

	whole := parts[0]
	frac := parts[1]
	if whole == "" {
		whole = "0"
	}

	if len(frac) > decimals {
		return 0, fmt.Errorf("more than %d decimal places", decimals)
	}
	frac += strings.Repeat("0", decimals-len(frac))

	combined := strings.TrimLeft(whole+frac, "0")
	if combined == "" {
		return 0, nil
	}
	return strconv.ParseUint(combined, 10, 64)
}
