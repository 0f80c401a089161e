package scoring

// Warming-up thresholds. One strong dimension is enough to leave a
// WATCHLIST_WARM breadcrumb even when the weighted score stays low.
const (
	warmSpread = 0.60
	warmAccel  = 0.85
	warmIntent = 0.45
)

// isWatchlistWarm reports whether a candidate is warming up, with the
// dimension that triggered it.
func isWatchlistWarm(f Factors) (bool, string) {
	if f.Spread >= warmSpread {
		return true, "WARM_SPREAD_GE_0.60"
	}
	if f.Acceleration >= warmAccel {
		return true, "WARM_ACCEL_GE_0.85"
	}
	if f.Intent >= warmIntent {
		return true, "WARM_INTENT_GE_0.45"
	}
	return false, ""
}
