// Package session keeps the in-memory table of live client sessions.
package session

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/actiongw/internal/domain"
)

// Default sizing.
const (
	DefaultMaxSessions   = 10000
	DefaultSweepInterval = 60 * time.Second
)

// EvictReason says why a session left the store.
type EvictReason string

const (
	ReasonExpired  EvictReason = "expired"
	ReasonCapacity EvictReason = "capacity"
	ReasonDeleted  EvictReason = "deleted"
)

// TTLs maps a channel to its session lifetime. Channels without an entry
// use the webapp lifetime.
type TTLs map[domain.Channel]time.Duration

// DefaultTTLs returns the built-in per-channel lifetimes.
func DefaultTTLs() TTLs {
	return TTLs{
		domain.ChannelWebapp:    24 * time.Hour,
		domain.ChannelWhatsApp:  30 * time.Minute,
		domain.ChannelInstagram: 15 * time.Minute,
		domain.ChannelTelegram:  time.Hour,
		domain.ChannelX:         24 * time.Hour,
	}
}

// For returns the lifetime for ch.
func (t TTLs) For(ch domain.Channel) time.Duration {
	if d, ok := t[ch]; ok && d > 0 {
		return d
	}
	if d, ok := t[domain.ChannelWebapp]; ok && d > 0 {
		return d
	}
	return 24 * time.Hour
}

// Attrs are the caller-supplied fields of a new session.
type Attrs struct {
	Channel   domain.Channel
	User      string
	Origin    string
	CSRFToken string
}

// Store is a mutex-guarded session table with oldest-first eviction.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*list.Element // id -> element holding domain.Session
	order    *list.List               // creation order, oldest at front
	ttls     TTLs
	max      int
	now      func() time.Time
	onEvict  func(domain.Session, EvictReason)
}

// Option configures a Store.
type Option func(*Store)

// WithTTLs overrides the per-channel lifetimes.
func WithTTLs(t TTLs) Option {
	return func(s *Store) {
		merged := DefaultTTLs()
		for ch, d := range t {
			if d > 0 {
				merged[ch] = d
			}
		}
		s.ttls = merged
	}
}

// WithMaxSessions overrides the size bound.
func WithMaxSessions(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.max = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// OnEvict registers a callback invoked after a session is removed.
func OnEvict(fn func(domain.Session, EvictReason)) Option {
	return func(s *Store) { s.onEvict = fn }
}

// NewStore creates an empty session store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*list.Element),
		order:    list.New(),
		ttls:     DefaultTTLs(),
		max:      DefaultMaxSessions,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.New().String()
}

// Create inserts a session under id, replacing any existing one. An empty
// id gets a generated one. The TTL is fixed from the channel at creation.
func (s *Store) Create(id string, a Attrs) domain.Session {
	if id == "" {
		id = NewID()
	}
	ch := a.Channel
	if ch == "" {
		ch = domain.ChannelWebapp
	}

	sess := domain.Session{
		ID:        id,
		Channel:   ch,
		User:      a.User,
		Origin:    a.Origin,
		CSRFToken: a.CSRFToken,
		CreatedAt: s.now(),
		TTL:       s.ttls.For(ch),
	}

	var evicted []domain.Session
	s.mu.Lock()
	if el, ok := s.sessions[id]; ok {
		s.order.Remove(el)
		delete(s.sessions, id)
	}
	for s.order.Len() >= s.max {
		front := s.order.Front()
		old := front.Value.(domain.Session)
		s.order.Remove(front)
		delete(s.sessions, old.ID)
		evicted = append(evicted, old)
	}
	s.sessions[id] = s.order.PushBack(sess)
	s.mu.Unlock()

	s.notify(evicted, ReasonCapacity)
	return sess
}

// Get returns a live session. Expired sessions are reported as absent but
// stay in the table until the next sweep.
func (s *Store) Get(id string) (domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	sess := el.Value.(domain.Session)
	if sess.Expired(s.now()) {
		return domain.Session{}, false
	}
	return sess, true
}

// Delete removes a session. It reports whether one was present.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	el, ok := s.sessions[id]
	if ok {
		s.order.Remove(el)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if ok {
		s.notify([]domain.Session{el.Value.(domain.Session)}, ReasonDeleted)
	}
	return ok
}

// Len returns the number of stored sessions, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// List returns the live sessions, oldest first.
func (s *Store) List() []domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]domain.Session, 0, len(s.sessions))
	for el := s.order.Front(); el != nil; el = el.Next() {
		sess := el.Value.(domain.Session)
		if !sess.Expired(now) {
			out = append(out, sess)
		}
	}
	return out
}

// Sweep removes every expired session and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	now := s.now()
	var expired []domain.Session
	for el := s.order.Front(); el != nil; {
		next := el.Next()
		sess := el.Value.(domain.Session)
		if sess.Expired(now) {
			s.order.Remove(el)
			delete(s.sessions, sess.ID)
			expired = append(expired, sess)
		}
		el = next
	}
	s.mu.Unlock()

	s.notify(expired, ReasonExpired)
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// TTL returns the lifetime a new session on ch would get.
func (s *Store) TTL(ch domain.Channel) time.Duration {
	return s.ttls.For(ch)
}

func (s *Store) notify(sessions []domain.Session, reason EvictReason) {
	if s.onEvict == nil {
		return
	}
	for _, sess := range sessions {
		s.onEvict(sess, reason)
	}
}
