package ticutils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrNotNumeric = errors.New("value is not numeric")

// ParseIntValue converts a zero padded meter value such as "000123456".
func ParseIntValue(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty value", ErrNotNumeric)
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, value)
	}
	return n, nil
}

// Meter counters are in Wh
func WhToKwh(wh int64) float64 {
	return float64(wh) / 1000
}
