package domain

import (
	"math"
	"strconv"
	"strings"
)

// ParseMoney coerces an arbitrary monetary input to a finite float64,
// defaulting to 0 for nil, non-finite, or unparseable values. It never
// mixes string and numeric handling implicitly — the caller states which
// one it has.
func ParseMoney(v interface{}) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return finiteOrZero(t)
	case float32:
		return finiteOrZero(float64(t))
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return finiteOrZero(f)
	default:
		return 0
	}
}

// ParseCount coerces an arbitrary count-like input to a non-negative int,
// defaulting to 0.
func ParseCount(v interface{}) int {
	switch t := v.(type) {
	case nil:
		return 0
	case int:
		if t < 0 {
			return 0
		}
		return t
	case int64:
		if t < 0 {
			return 0
		}
		return int(t)
	case float64:
		if !isFinite(t) || t < 0 {
			return 0
		}
		return int(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0
		}
		return n
	default:
		return 0
	}
}

func finiteOrZero(f float64) float64 {
	if !isFinite(f) {
		return 0
	}
	return f
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// normalizeType lowercases and trims an opportunity type string so
// comparisons against the literal "renewals" are robust to casing and
// incidental whitespace, without treating "renewal" (singular) as a match.
func normalizeType(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ParseTier normalizes a free-text tier label to the closed Tier enum.
// Unknown input normalizes to TierNone rather than propagating the string.
func ParseTier(raw string) Tier {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "T1":
		return TierT1
	case "T2":
		return TierT2
	case "T3":
		return TierT3
	case "T4":
		return TierT4
	default:
		return TierNone
	}
}
