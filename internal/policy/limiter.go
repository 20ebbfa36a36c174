package policy

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxKeys caps the number of tracked rate keys.
const DefaultMaxKeys = 10000

// Decision is the outcome of a rate check.
type Decision struct {
	Allowed    bool
	Count      int // accepted calls inside the window, including this one when allowed
	Limit      int
	Remaining  int
	RetryAfter time.Duration // zero when allowed
}

// RateKey builds the partition key for an action and session.
func RateKey(action, sessionID string) string {
	return action + ":" + sessionID
}

type window struct {
	hits []time.Time
	span time.Duration
}

// Limiter is a sliding-log rate limiter. Only accepted calls are recorded,
// so rejected retries do not extend the lockout.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	maxKeys int
	now     func() time.Time
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) { l.now = now }
}

// WithMaxKeys overrides the tracked key cap.
func WithMaxKeys(n int) LimiterOption {
	return func(l *Limiter) {
		if n > 0 {
			l.maxKeys = n
		}
	}
}

// NewLimiter creates an empty limiter.
func NewLimiter(opts ...LimiterOption) *Limiter {
	l := &Limiter{
		windows: make(map[string]*window),
		maxKeys: DefaultMaxKeys,
		now:     time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Allow checks key against rate and records the call when accepted.
// A nil rate always allows and records nothing.
func (l *Limiter) Allow(key string, rate *Rate) Decision {
	if rate == nil {
		return Decision{Allowed: true}
	}

	now := l.now()
	cutoff := now.Add(-rate.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[key]
	if !exists {
		if len(l.windows) >= l.maxKeys {
			l.evictOldestLocked()
		}
		w = &window{}
		l.windows[key] = w
	}
	w.span = rate.Window
	w.hits = prune(w.hits, cutoff)

	if len(w.hits) >= rate.MaxCalls {
		retry := w.hits[0].Add(rate.Window).Sub(now)
		if retry <= 0 {
			retry = time.Millisecond
		}
		return Decision{
			Allowed:    false,
			Count:      len(w.hits),
			Limit:      rate.MaxCalls,
			Remaining:  0,
			RetryAfter: retry,
		}
	}

	w.hits = append(w.hits, now)
	return Decision{
		Allowed:   true,
		Count:     len(w.hits),
		Limit:     rate.MaxCalls,
		Remaining: rate.MaxCalls - len(w.hits),
	}
}

// Peek reports what Allow would decide for key without recording a call.
func (l *Limiter) Peek(key string, rate *Rate) Decision {
	if rate == nil {
		return Decision{Allowed: true}
	}

	now := l.now()
	cutoff := now.Add(-rate.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	var first time.Time
	if w, ok := l.windows[key]; ok {
		for _, h := range w.hits {
			if h.After(cutoff) {
				if count == 0 {
					first = h
				}
				count++
			}
		}
	}

	if count >= rate.MaxCalls {
		retry := first.Add(rate.Window).Sub(now)
		if retry <= 0 {
			retry = time.Millisecond
		}
		return Decision{Count: count, Limit: rate.MaxCalls, RetryAfter: retry}
	}
	return Decision{Allowed: true, Count: count, Limit: rate.MaxCalls, Remaining: rate.MaxCalls - count}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Cleanup drops keys whose windows hold no recent calls.
func (l *Limiter) Cleanup() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		w.hits = prune(w.hits, now.Add(-w.span))
		if len(w.hits) == 0 {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Run calls Cleanup every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}

// evictOldestLocked removes the key whose newest call is the oldest.
func (l *Limiter) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, w := range l.windows {
		var last time.Time
		if n := len(w.hits); n > 0 {
			last = w.hits[n-1]
		}
		if oldestKey == "" || last.Before(oldest) {
			oldestKey = key
			oldest = last
		}
	}
	if oldestKey != "" {
		delete(l.windows, oldestKey)
	}
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0], hits[i:]...)
}
