// Package syncstate implements the sticky sync-flag semantics shared by the
// patient and appointment reconcilers. A flag set true by any upsert stays
// true until a confirmed successful push clears it.
package syncstate

import "time"

// Merge combines a previously stored flag with a freshly computed one.
// Once a row is flagged for sync, later upserts must not silently clear the
// flag; only a successful push does. Applied at every upsert call site so
// the sticky rule lives in exactly one place.
func Merge(previous, computed bool) bool {
	return previous || computed
}

// Stale reports whether a flag raised at flaggedAt has been pending longer
// than maxAge as of now. Stale flags are surfaced in logs, never cleared.
func Stale(flaggedAt time.Time, now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return now.Sub(flaggedAt) > maxAge
}
