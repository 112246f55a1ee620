/**
 * @description
 * In-memory sliding-window rate limiter. One limiter serves every scope:
 * keys are "<scope>:<identifier>" strings and each key keeps the
 * timestamps of its recent hits. A hit is allowed while fewer than the
 * caller's limit fall inside the window. A janitor goroutine prunes idle
 * keys so the map does not grow without bound.
 *
 * @notes
 * - State is per process. A multi-instance deployment would need a shared
 *   backend instead.
 */
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a sliding-window counter keyed by caller identity.
type Limiter struct {
	window time.Duration

	mu   sync.Mutex
	hits map[string][]time.Time

	now  func() time.Time
	stop chan struct{}
}

// NewLimiter creates a limiter with the given window and starts its
// janitor goroutine.
func NewLimiter(window time.Duration) *Limiter {
	l := &Limiter{
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	go l.janitor()
	return l
}

// Enforce records a hit for key and reports whether it stays within
// limit hits per window. Rejected hits are not recorded, so a blocked
// caller does not extend its own penalty.
func (l *Limiter) Enforce(key string, limit int) bool {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= limit {
		l.hits[key] = recent
		return false
	}

	l.hits[key] = append(recent, now)
	return true
}

// Remaining reports how many hits key has left in the current window
// under the given limit.
func (l *Limiter) Remaining(key string, limit int) int {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			count++
		}
	}
	if count >= limit {
		return 0
	}
	return limit - count
}

// Stop terminates the janitor goroutine.
func (l *Limiter) Stop() {
	close(l.stop)
}

// janitor drops keys whose hits have all aged out of the window.
func (l *Limiter) janitor() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := l.now().Add(-l.window)
			l.mu.Lock()
			for key, times := range l.hits {
				stale := true
				for _, t := range times {
					if t.After(cutoff) {
						stale = false
						break
					}
				}
				if stale {
					delete(l.hits, key)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}
