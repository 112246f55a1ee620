package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func newTestLimiter(window time.Duration) (*Limiter, func(d time.Duration)) {
	l := &Limiter{
		window: window,
		hits:   make(map[string][]time.Time),
		stop:   make(chan struct{}),
	}
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	l.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	advance := func(d time.Duration) {
		mu.Lock()
		current = current.Add(d)
		mu.Unlock()
	}
	return l, advance
}

func TestEnforceAllowsUpToLimit(t *testing.T) {
	l, _ := newTestLimiter(time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Enforce("ip:1.2.3.4", 3) {
			t.Fatalf("hit %d: expected allow", i+1)
		}
	}
	if l.Enforce("ip:1.2.3.4", 3) {
		t.Fatal("expected fourth hit to be rejected")
	}
}

func TestEnforceKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(time.Minute)

	if !l.Enforce("events:1.2.3.4", 1) {
		t.Fatal("expected first key to be allowed")
	}
	if !l.Enforce("events:5.6.7.8", 1) {
		t.Fatal("expected second key to be allowed")
	}
	if !l.Enforce("donate:1.2.3.4", 1) {
		t.Fatal("expected same identifier under another scope to be allowed")
	}
	if l.Enforce("events:1.2.3.4", 1) {
		t.Fatal("expected first key to be limited")
	}
}

func TestEnforceWindowSlides(t *testing.T) {
	l, advance := newTestLimiter(time.Minute)

	if !l.Enforce("k", 2) || !l.Enforce("k", 2) {
		t.Fatal("expected first two hits to be allowed")
	}
	if l.Enforce("k", 2) {
		t.Fatal("expected third hit inside window to be rejected")
	}

	advance(30 * time.Second)
	if l.Enforce("k", 2) {
		t.Fatal("expected hit at 30s to still be rejected")
	}

	advance(31 * time.Second)
	if !l.Enforce("k", 2) {
		t.Fatal("expected hit after window to be allowed")
	}
}

func TestEnforceRejectedHitsDoNotExtendPenalty(t *testing.T) {
	l, advance := newTestLimiter(time.Minute)

	if !l.Enforce("k", 1) {
		t.Fatal("expected first hit to be allowed")
	}
	for i := 0; i < 5; i++ {
		advance(10 * time.Second)
		l.Enforce("k", 1)
	}
	// 61s after the only recorded hit the window is clear again.
	advance(11 * time.Second)
	if !l.Enforce("k", 1) {
		t.Fatal("expected hit after original window to be allowed")
	}
}

func TestRemaining(t *testing.T) {
	l, _ := newTestLimiter(time.Minute)

	if got := l.Remaining("k", 3); got != 3 {
		t.Fatalf("expected 3 remaining, got %d", got)
	}
	l.Enforce("k", 3)
	l.Enforce("k", 3)
	if got := l.Remaining("k", 3); got != 1 {
		t.Fatalf("expected 1 remaining, got %d", got)
	}
	l.Enforce("k", 3)
	l.Enforce("k", 3)
	if got := l.Remaining("k", 3); got != 0 {
		t.Fatalf("expected 0 remaining, got %d", got)
	}
}

func TestEnforceConcurrentAccess(t *testing.T) {
	l := NewLimiter(time.Minute)
	defer l.Stop()

	var wg sync.WaitGroup
	allowed := make([]int, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if l.Enforce("shared", 1000) {
					allowed[g]++
				}
			}
		}(g)
	}
	wg.Wait()

	total := 0
	for _, n := range allowed {
		total += n
	}
	if total != 1000 {
		t.Fatalf("expected exactly 1000 allowed hits, got %d", total)
	}
}
