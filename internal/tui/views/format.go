package views

import (
	"strings"
	"time"
)

// formatTimestamp renders ms as a clock time for today and as a date otherwise.
func formatTimestamp(ms int64) string {
	return formatTimestampAt(ms, time.Now())
}

func formatTimestampAt(ms int64, now time.Time) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms).In(now.Location())
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	if t.Year() == now.Year() {
		return t.Format("Jan 02")
	}
	return t.Format("2006-01-02")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
