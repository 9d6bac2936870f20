package report

import (
	"fmt"
	"time"
)

// formatPassRate returns a percentage string for report output.
func formatPassRate(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}

func formatLatency(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2fs", seconds)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

func formatDelta(current, previous float64) string {
	delta := (current - previous) * 100
	switch {
	case delta > 0:
		return fmt.Sprintf("+%.1f pts", delta)
	case delta < 0:
		return fmt.Sprintf("%.1f pts", delta)
	default:
		return "±0"
	}
}
