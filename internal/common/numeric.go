package common

import (
	"math"
	"strconv"
	"strings"
)

// ParseNonNegative interprets loosely-typed numeric input (as it arrives from
// query strings and JSON payloads) as a non-negative integer amount. Absent,
// malformed, NaN, or negative values fall back rather than failing.
func ParseNonNegative(input string, fallback int64) int64 {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return fallback
	}
	if v, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		if v < 0 {
			return fallback
		}
		return v
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return fallback
	}
	return int64(math.Round(f))
}

// AtoiDefault converts the provided string to an integer falling back to the
// default when parsing fails.
func AtoiDefault(value string, def int) int {
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
