package intelligence

import "time"

// IsFresh reports whether a profile analyzed at lastAnalyzedAt may still be
// served at now without recomputation.
func IsFresh(lastAnalyzedAt, now time.Time, window time.Duration) bool {
	if lastAnalyzedAt.IsZero() {
		return false
	}
	return now.Sub(lastAnalyzedAt) < window
}
