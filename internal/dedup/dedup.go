// Package dedup suppresses rapid duplicate announcements.
//
// Hook scripts tend to fire the same notification several times within a few
// hundred milliseconds (retried hooks, parallel sessions). Replaying the
// identical sentence back to back is pure noise, so the ingress endpoint
// consults a [Deduplicator] before enqueueing any work.
package dedup

import "time"

// Defaults applied by [New] when the corresponding argument is not positive.
const (
	DefaultWindow      = time.Second
	DefaultLockTimeout = 500 * time.Millisecond
)

// Verdict is the outcome of a duplicate check.
type Verdict int

const (
	// Accepted means the text was recorded as the new baseline and should be
	// processed.
	Accepted Verdict = iota

	// Duplicate means the text matched the last accepted one within the
	// window and should be skipped.
	Duplicate

	// Busy means the state lock could not be acquired within the lock
	// timeout. The caller should report overload instead of blocking.
	Busy
)

// String returns the human-readable name of the verdict.
func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Duplicate:
		return "duplicate"
	case Busy:
		return "busy"
	default:
		return "unknown"
	}
}

// Deduplicator remembers the last accepted text and rejects an exact repeat
// that arrives within the configured window. It is safe for concurrent use.
//
// The state is guarded by a single-slot channel rather than a sync.Mutex so
// acquisition can be raced against a timer: Check never blocks longer than
// the lock timeout.
type Deduplicator struct {
	window      time.Duration
	lockTimeout time.Duration

	sem      chan struct{}
	lastText string
	lastAt   time.Time
}

// New creates a [Deduplicator]. Non-positive arguments are replaced with
// [DefaultWindow] and [DefaultLockTimeout].
func New(window, lockTimeout time.Duration) *Deduplicator {
	if window <= 0 {
		window = DefaultWindow
	}
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Deduplicator{
		window:      window,
		lockTimeout: lockTimeout,
		sem:         make(chan struct{}, 1),
	}
}

// Check classifies text and, when it is accepted, records it as the new
// comparison baseline. A Duplicate verdict leaves the baseline untouched:
// the window is measured from the last acceptance, not the last attempt, so
// a steady stream of repeats does not suppress itself forever.
func (d *Deduplicator) Check(text string) Verdict {
	timer := time.NewTimer(d.lockTimeout)
	defer timer.Stop()

	select {
	case d.sem <- struct{}{}:
	case <-timer.C:
		return Busy
	}
	defer func() { <-d.sem }()

	now := time.Now()
	if text == d.lastText && now.Sub(d.lastAt) <= d.window {
		return Duplicate
	}
	d.lastText = text
	d.lastAt = now
	return Accepted
}
