package normalize

import (
	"fmt"
	"strconv"
	"strings"
)

// DurationSeconds parses an average-view-duration cell. Exports are
// inconsistent about the format: colon-separated (H:MM:SS or M:SS), plain
// seconds, or an ISO-8601 duration (PT4M13S). Returns 0 for anything else.
func DurationSeconds(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		var total int64
		for _, p := range parts {
			n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
			if err != nil {
				return 0
			}
			total = total*60 + n
		}
		return total
	}

	upper := strings.ToUpper(s)
	if strings.HasPrefix(upper, "PT") || strings.HasPrefix(upper, "P") {
		return iso8601Seconds(upper)
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// FormatDuration renders seconds as H:MM:SS (or M:SS under an hour),
// matching the analytics export style.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	sec := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}

func iso8601Seconds(s string) int64 {
	s = strings.TrimPrefix(s, "P")
	s = strings.TrimPrefix(s, "T")

	var total, cur int64
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			cur = cur*10 + int64(r-'0')
		case r == 'H':
			total += cur * 3600
			cur = 0
		case r == 'M':
			total += cur * 60
			cur = 0
		case r == 'S':
			total += cur
			cur = 0
		case r == 'T':
			cur = 0
		default:
			return 0
		}
	}
	return total
}
