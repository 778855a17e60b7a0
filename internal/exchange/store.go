// Package exchange holds access tokens behind short-lived, single-use codes
// so the token itself never travels through a redirect URL.
package exchange

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type entry struct {
	accessToken string
	expiresAt   time.Time
}

// Store is an in-memory TTL cache mapping one-time codes to pending access
// tokens. It owns its own synchronization; eviction of expired entries is
// lazy, piggybacked on Issue and Redeem, with no background timer.
type Store struct {
	ttl   time.Duration
	clock clockwork.Clock

	mu      sync.Mutex
	entries map[string]entry
}

func NewStore(ttl time.Duration) *Store {
	return NewStoreWithClock(ttl, clockwork.NewRealClock())
}

func NewStoreWithClock(ttl time.Duration, clock clockwork.Clock) *Store {
	return &Store{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]entry),
	}
}

// Issue stores the access token under a fresh one-time code and returns the
// code. UUIDv4 carries 122 random bits, enough that collisions and guessing
// are both negligible.
func (s *Store) Issue(accessToken string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.evictLocked(now)

	code := uuid.NewString()
	s.entries[code] = entry{accessToken: accessToken, expiresAt: now.Add(s.ttl)}
	return code
}

// Redeem removes the entry for code and returns its token. A missing code,
// an expired code and an already-redeemed code are indistinguishable: all
// return ok=false, so a code cannot leak whether it ever existed. Remove and
// expiry check happen under one lock, so concurrent redeems of the same code
// yield the token to exactly one caller.
func (s *Store) Redeem(code string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.evictLocked(now)

	e, ok := s.entries[code]
	if !ok {
		return "", false
	}
	delete(s.entries, code)
	if now.After(e.expiresAt) {
		return "", false
	}
	return e.accessToken, true
}

// evictLocked drops every expired entry. An entry is dead strictly after its
// expiry instant. Caller must hold s.mu.
func (s *Store) evictLocked(now time.Time) {
	for code, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, code)
		}
	}
}
