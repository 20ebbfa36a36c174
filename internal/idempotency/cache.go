// Package idempotency remembers gateway responses by idempotency key so that
// retried submissions replay the first outcome instead of re-executing.
package idempotency

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/actiongw/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Default sizing.
const (
	DefaultWindow     = 5 * time.Minute
	DefaultMaxEntries = 10000
)

// keySep cannot appear in a validated session id.
const keySep = "\x00"

// Key scopes a client idempotency key to its session.
func Key(sessionID, idempotencyKey string) string {
	return sessionID + keySep + idempotencyKey
}

type record struct {
	key       string
	expiresAt time.Time
	response  domain.Response
	element   *list.Element
	timer     *time.Timer
}

// Stats reports cache activity.
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Cache is a time-windowed, size-bounded response cache. Each record is
// removed by its own timer when the window elapses.
type Cache struct {
	mu      sync.Mutex
	records map[string]*record
	order   *list.List // keys in insertion order, oldest at front
	window  time.Duration
	max     int
	now     func() time.Time
	group   singleflight.Group
	hits    int64
	misses  int64
	closed  bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source used for expiry checks on read.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache. Non-positive arguments fall back to the defaults.
func New(window time.Duration, maxEntries int, opts ...Option) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	c := &Cache{
		records: make(map[string]*record),
		order:   list.New(),
		window:  window,
		max:     maxEntries,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Window returns the replay window.
func (c *Cache) Window() time.Duration { return c.window }

// Check returns the cached response for key if it is inside the window.
func (c *Cache) Check(key string) (domain.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.records[key]
	if !ok || !c.now().Before(r.expiresAt) {
		c.misses++
		return domain.Response{}, false
	}
	c.hits++
	return r.response, true
}

// Remember stores resp under key for one window, replacing any previous
// record, and schedules its removal.
func (c *Cache) Remember(key string, resp domain.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if old, ok := c.records[key]; ok {
		c.removeLocked(old)
	}
	for len(c.records) >= c.max {
		front := c.order.Front()
		if front == nil {
			break
		}
		c.removeLocked(c.records[front.Value.(string)])
	}

	r := &record{
		key:       key,
		expiresAt: c.now().Add(c.window),
		response:  resp,
	}
	r.element = c.order.PushBack(key)
	r.timer = time.AfterFunc(c.window, func() { c.expire(r) })
	c.records[key] = r
}

// Do returns the cached response for key, or runs fn once across all
// concurrent callers sharing key. fn reports whether its response may be
// remembered. replayed is true when the response came from the cache.
func (c *Cache) Do(key string, fn func() (domain.Response, bool)) (resp domain.Response, replayed bool) {
	if cached, ok := c.Check(key); ok {
		return cached, true
	}

	type outcome struct {
		resp     domain.Response
		replayed bool
	}
	v, _, _ := c.group.Do(key, func() (any, error) {
		// A previous flight may have remembered a result since our check.
		if cached, ok := c.Check(key); ok {
			return outcome{resp: cached, replayed: true}, nil
		}
		resp, cacheable := fn()
		if cacheable {
			c.Remember(key, resp)
		}
		return outcome{resp: resp}, nil
	})
	out := v.(outcome)
	return out.resp, out.replayed
}

// ForgetSession drops every record keyed to sessionID and returns how many
// were removed.
func (c *Cache) ForgetSession(sessionID string) int {
	prefix := sessionID + keySep
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, r := range c.records {
		if strings.HasPrefix(key, prefix) {
			c.removeLocked(r)
			n++
		}
	}
	return n
}

// Len returns the number of stored records.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Stats returns entry and hit counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Entries: len(c.records), Hits: c.hits, Misses: c.misses}
}

// Close stops all pending timers and drops every record. It is safe to call
// multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	for _, r := range c.records {
		r.timer.Stop()
	}
	c.records = make(map[string]*record)
	c.order.Init()
}

// expire is the timer callback. It only removes r if it is still the live
// record for its key.
func (c *Cache) expire(r *record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.records[r.key]; ok && cur == r {
		c.removeLocked(r)
	}
}

func (c *Cache) removeLocked(r *record) {
	if r.timer != nil {
		r.timer.Stop()
	}
	c.order.Remove(r.element)
	delete(c.records, r.key)
}
