package core

import "time"

// ExpiringSet is a key -> expiry map used for advisory locks.
//
// It is not safe for concurrent use. Every owner in this module mutates it
// from a single event-loop goroutine, which is what makes a plain map with
// lazy expiry sufficient.
type ExpiringSet struct {
	now     func() time.Time
	entries map[string]time.Time
}

// NewExpiringSet returns an empty set reading time from now.
// A nil now uses time.Now.
func NewExpiringSet(now func() time.Time) *ExpiringSet {
	if now == nil {
		now = time.Now
	}
	return &ExpiringSet{now: now, entries: make(map[string]time.Time)}
}

// TryAcquire holds key for ttl. It returns false if key is already held.
func (s *ExpiringSet) TryAcquire(key string, ttl time.Duration) bool {
	if s.Held(key) {
		return false
	}
	s.entries[key] = s.now().Add(ttl)
	return true
}

// Set holds key for ttl, extending any existing hold.
func (s *ExpiringSet) Set(key string, ttl time.Duration) {
	s.entries[key] = s.now().Add(ttl)
}

// Held reports whether key is held and not yet expired.
func (s *ExpiringSet) Held(key string) bool {
	expiry, ok := s.entries[key]
	if !ok {
		return false
	}
	if !s.now().Before(expiry) {
		delete(s.entries, key)
		return false
	}
	return true
}

// Release drops key immediately.
func (s *ExpiringSet) Release(key string) {
	delete(s.entries, key)
}

// Sweep removes expired keys and returns how many were dropped.
func (s *ExpiringSet) Sweep() int {
	now := s.now()
	dropped := 0
	for key, expiry := range s.entries {
		if !now.Before(expiry) {
			delete(s.entries, key)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of entries, including ones not yet swept.
func (s *ExpiringSet) Len() int {
	return len(s.entries)
}

// Reset drops every key.
func (s *ExpiringSet) Reset() {
	s.entries = make(map[string]time.Time)
}
