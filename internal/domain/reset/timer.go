package reset

import (
	"time"

	"github.com/shopspring/decimal"
)

// Extension returns the deadline extension a deposit earns: the extension of
// the highest tier whose threshold the amount reaches, zero below every tier.
// Tiers must be sorted by ascending threshold.
func Extension(amount decimal.Decimal, thresholds []decimal.Decimal, extensions []time.Duration) time.Duration {
	var ext time.Duration
	for i, th := range thresholds {
		if amount.GreaterThanOrEqual(th) {
			ext = extensions[i]
		}
	}
	return ext
}

// ExtendDeadline pushes the deadline out by ext, capped at now+max. An
// already-expired deadline is never resurrected: once the countdown hits
// zero only a triggered reset restarts it.
func ExtendDeadline(deadline time.Time, now time.Time, ext time.Duration, max time.Duration) time.Time {
	if !deadline.After(now) || ext == 0 {
		return deadline
	}

	extended := deadline.Add(ext)
	limit := now.Add(max)
	if extended.After(limit) {
		return limit
	}
	return extended
}
