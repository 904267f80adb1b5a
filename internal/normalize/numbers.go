package normalize

import (
	"strconv"
	"strings"
)

// CleanInt strips everything but digits and a leading sign from an export
// cell (thousands separators, stray quotes, percent signs) and parses the
// remainder. Unparseable or empty cells become 0.
func CleanInt(s string) int64 {
	cleaned := cleanNumeric(s, false)
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// CleanFloat is CleanInt for fractional cells (CTR, watch-time hours).
func CleanFloat(s string) float64 {
	cleaned := cleanNumeric(s, true)
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

func cleanNumeric(s string, allowDot bool) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case allowDot && r == '.':
			b.WriteRune(r)
		case (r == '-' || r == '+') && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
