package exchange

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestIssueRedeemRoundTrip(t *testing.T) {
	s := NewStore(30 * time.Second)

	code := s.Issue("the-token")
	if code == "" {
		t.Fatal("Issue returned empty code")
	}

	got, ok := s.Redeem(code)
	if !ok {
		t.Fatal("Redeem returned not-found for a fresh code")
	}
	if got != "the-token" {
		t.Errorf("Redeem = %q, want the-token", got)
	}
}

func TestRedeemIsSingleUse(t *testing.T) {
	s := NewStore(30 * time.Second)

	code := s.Issue("tok")
	if _, ok := s.Redeem(code); !ok {
		t.Fatal("first redeem failed")
	}
	if _, ok := s.Redeem(code); ok {
		t.Fatal("second redeem of the same code must return not-found")
	}
}

func TestRedeemUnknownCode(t *testing.T) {
	s := NewStore(30 * time.Second)

	if _, ok := s.Redeem("no-such-code"); ok {
		t.Fatal("unknown code must return not-found")
	}
}

func TestRedeemExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewStoreWithClock(30*time.Second, clock)

	code := s.Issue("tok")

	clock.Advance(29 * time.Second)
	got, ok := s.Redeem(code)
	if !ok || got != "tok" {
		t.Fatalf("Redeem at T=29s = (%q, %v), want (tok, true)", got, ok)
	}

	code2 := s.Issue("tok2")
	clock.Advance(31 * time.Second)
	if _, ok := s.Redeem(code2); ok {
		t.Fatal("Redeem at T=31s must return not-found")
	}
}

// Expired and unknown codes must be observably identical.
func TestExpiredLooksLikeUnknown(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewStoreWithClock(30*time.Second, clock)

	code := s.Issue("tok")
	clock.Advance(31 * time.Second)

	expTok, expOK := s.Redeem(code)
	unkTok, unkOK := s.Redeem("never-issued")
	if expTok != unkTok || expOK != unkOK {
		t.Fatalf("expired (%q, %v) and unknown (%q, %v) must match", expTok, expOK, unkTok, unkOK)
	}
}

func TestIssueEvictsExpiredEntries(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewStoreWithClock(30*time.Second, clock)

	for i := 0; i < 10; i++ {
		s.Issue("stale")
	}
	clock.Advance(31 * time.Second)
	s.Issue("fresh")

	s.mu.Lock()
	n := len(s.entries)
	s.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected 1 live entry after eviction, got %d", n)
	}
}

func TestConcurrentRedeemExactlyOnce(t *testing.T) {
	s := NewStore(30 * time.Second)

	for round := 0; round < 20; round++ {
		code := s.Issue("tok")

		const workers = 32
		var wg sync.WaitGroup
		start := make(chan struct{})
		wins := make(chan string, workers)

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if got, ok := s.Redeem(code); ok {
					wins <- got
				}
			}()
		}
		close(start)
		wg.Wait()
		close(wins)

		var n int
		for got := range wins {
			n++
			if got != "tok" {
				t.Errorf("winner observed %q, want tok", got)
			}
		}
		if n != 1 {
			t.Fatalf("round %d: %d redeems succeeded, want exactly 1", round, n)
		}
	}
}
