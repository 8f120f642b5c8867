// Package progress computes the 0-100 progress value reported to polling
// clients. Values must be monotonically non-decreasing across successive
// invocations of one job, since the UI assumes forward-only progress bars.
package progress

import "math"

const maxPercent = 100

// Percent maps collected/target to a whole-number percentage, clamped to
// [0, 100]. A non-positive target is treated as 1 so the function stays
// total.
func Percent(collected, target int) int {
	if target < 1 {
		target = 1
	}
	if collected <= 0 {
		return 0
	}
	pct := int(math.Round(float64(collected) / float64(target) * maxPercent))
	if pct > maxPercent {
		return maxPercent
	}
	return pct
}

// Weighted blends call-budget consumption with result progress for adapters
// whose per-call yield is highly variable. Both inputs are monotone per job,
// so the blend is monotone too.
func Weighted(callsMade, safetyLimit, collected, target int) int {
	callPct := Percent(callsMade, safetyLimit)
	resultPct := Percent(collected, target)
	if resultPct >= callPct {
		return resultPct
	}
	// Results lag the call budget: average the two so the bar still moves
	// on result-free calls without ever outrunning completion.
	return (callPct + resultPct) / 2
}
