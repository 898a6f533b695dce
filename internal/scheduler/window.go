package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// LeadTime is how long before a session its meeting link may be created.
const LeadTime = 3 * time.Hour

// Decision is the outcome of evaluating the generation window.
type Decision struct {
	Allowed       bool
	OpensAt       time.Time
	WaitRemaining time.Duration
}

// Evaluate reports whether a link for a session starting at target may be
// created at now. Allowed is true iff now >= target-LeadTime, so once a window
// opens it never closes again.
func Evaluate(target, now time.Time) Decision {
	opensAt := target.Add(-LeadTime)
	if !now.Before(opensAt) {
		return Decision{Allowed: true, OpensAt: opensAt}
	}
	return Decision{OpensAt: opensAt, WaitRemaining: opensAt.Sub(now)}
}

// FormatWait renders a wait duration as "N minutes", or "H hours M minutes"
// beyond an hour. Partial minutes round up so a positive wait never shows as zero.
func FormatWait(d time.Duration) string {
	if d <= 0 {
		return "0 minutes"
	}
	minutes := int((d + time.Minute - 1) / time.Minute)
	if minutes <= 60 {
		return plural(minutes, "minute")
	}

	hours, rest := minutes/60, minutes%60
	parts := []string{plural(hours, "hour")}
	if rest > 0 {
		parts = append(parts, plural(rest, "minute"))
	}
	return strings.Join(parts, " ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
