package format

import (
	"fmt"
	"strings"
	"time"
)

// FmtScore formats a 1-5 score as "3/5".
func FmtScore(score int) string {
	return fmt.Sprintf("%d/5", score)
}

// FmtPercent formats a ratio in [0,1] as a whole percentage.
func FmtPercent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

// FmtDuration formats a duration as "Xm Ys", "Ys" or "Nms".
func FmtDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	s := int(d.Seconds())
	if s >= 60 {
		return fmt.Sprintf("%dm %ds", s/60, s%60)
	}
	return fmt.Sprintf("%ds", s)
}

// Truncate shortens s to maxLen runes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// BoolMark returns "✓" for true and "✗" for false.
func BoolMark(v bool) string {
	if v {
		return "✓"
	}
	return "✗"
}

// Bar renders a score as a fixed-width bar, e.g. "███░░" for 3 of 5.
func Bar(score, width int) string {
	score = max(0, min(width, score))
	return strings.Repeat("█", score) + strings.Repeat("░", width-score)
}
