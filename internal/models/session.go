package models

import "time"

// Session is an ephemeral, in-memory projection of one LinkedAccount carrying
// live credentials plus the long-lived API key. Owned exclusively by the
// session cache; never persisted. Always replaced as a whole record so readers
// can never observe a mismatched access/ID token pair.
type Session struct {
	APIKey           string
	Tokens           TokenSet
	PhoneNumber      string
	SubscriberID     string
	SubscriptionType SubscriptionType
	CachedAt         time.Time
}

// FreshAt reports whether the session is still within the freshness window at
// the given instant.
func (s *Session) FreshAt(now time.Time, window time.Duration) bool {
	return now.Sub(s.CachedAt) < window
}
