package domain

import "time"

// Session is one client conversation as seen by the gateway. Sessions are
// replaced wholesale, never patched in place.
type Session struct {
	ID        string        `json:"id"`
	Channel   Channel       `json:"channel"`
	User      string        `json:"user,omitempty"`
	Origin    string        `json:"origin,omitempty"`
	CSRFToken string        `json:"csrfToken,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	TTL       time.Duration `json:"ttl"`
}

// ExpiresAt returns the instant after which the session is no longer live.
func (s Session) ExpiresAt() time.Time {
	return s.CreatedAt.Add(s.TTL)
}

// Expired reports whether the session has outlived its TTL at now.
func (s Session) Expired(now time.Time) bool {
	return now.Sub(s.CreatedAt) > s.TTL
}
