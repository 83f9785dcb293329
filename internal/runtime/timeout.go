package runtime

import "time"

// DefaultDispatchTimeout is assumed by workers when a request carries no
// timeout header.
const DefaultDispatchTimeout = 30 * time.Second

// TimeoutPolicy is the shared elapsed-time-versus-declared-timeout
// evaluation. Callers use it to bound their local wait and workers use it,
// with the same arithmetic, to decide whether a delivery is already stale.
// Staleness relies on the publish timestamp, which assumes reasonably
// synchronized clocks between caller and worker.
type TimeoutPolicy struct {
	// Default applies when a request declares no timeout. Zero falls back to
	// DefaultDispatchTimeout.
	Default time.Duration
}

// Limit resolves the effective timeout for a declared value.
func (p TimeoutPolicy) Limit(declared time.Duration) time.Duration {
	if declared > 0 {
		return declared
	}
	if p.Default > 0 {
		return p.Default
	}
	return DefaultDispatchTimeout
}

// Expired reports whether more than the effective timeout has elapsed since
// publishedAt. A zero publish timestamp never counts as expired; a message
// without one cannot be judged stale.
func (p TimeoutPolicy) Expired(publishedAt time.Time, declared time.Duration, now time.Time) bool {
	if publishedAt.IsZero() {
		return false
	}
	return now.Sub(publishedAt) > p.Limit(declared)
}
