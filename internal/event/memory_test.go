package event

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestBus(t *testing.T) *MemoryBus {
	t.Helper()
	b := NewMemoryBus(4, zap.NewNop().Sugar())
	t.Cleanup(b.Close)
	return b
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestPublishDelivers(t *testing.T) {
	b := newTestBus(t)

	var mu sync.Mutex
	var got []UserAuthenticated
	err := b.Subscribe(TopicUserAuthenticated, "g1", func(ctx context.Context, msg Message) error {
		var ev UserAuthenticated
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return err
		}
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	ev := UserAuthenticated{Subject: "g-1", Email: "a@x.com", Name: "A"}
	if err := b.Publish(context.Background(), TopicUserAuthenticated, ev.Subject, ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, "message was not delivered")

	mu.Lock()
	defer mu.Unlock()
	if got[0] != ev {
		t.Errorf("delivered %+v, want %+v", got[0], ev)
	}
}

func TestPerKeyOrdering(t *testing.T) {
	b := newTestBus(t)

	const n = 200
	var mu sync.Mutex
	var seen []int
	err := b.Subscribe(TopicUserLoggedIn, "g1", func(ctx context.Context, msg Message) error {
		var i int
		if err := json.Unmarshal(msg.Payload, &i); err != nil {
			return err
		}
		mu.Lock()
		seen = append(seen, i)
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	for i := 0; i < n; i++ {
		if err := b.Publish(context.Background(), TopicUserLoggedIn, "same-subject", i); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == n
	}, "not all messages delivered")

	mu.Lock()
	defer mu.Unlock()
	for i, v := range seen {
		if v != i {
			t.Fatalf("message %d delivered out of order (got %d)", i, v)
		}
	}
}

func TestRedeliveryOnHandlerError(t *testing.T) {
	b := newTestBus(t)

	var mu sync.Mutex
	attempts := 0
	err := b.Subscribe(TopicUserRegistered, "g1", func(ctx context.Context, msg Message) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return errors.New("registry unavailable")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := b.Publish(context.Background(), TopicUserRegistered, "g-1", UserRegistered{Subject: "g-1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts == 3
	}, "message was not redelivered until acked")
}

func TestFanOutToGroups(t *testing.T) {
	b := newTestBus(t)

	var mu sync.Mutex
	counts := map[string]int{}
	for _, group := range []string{"g1", "g2"} {
		group := group
		err := b.Subscribe(TopicUserAuthenticated, group, func(ctx context.Context, msg Message) error {
			mu.Lock()
			counts[group]++
			mu.Unlock()
			return nil
		})
		if err != nil {
			t.Fatalf("Subscribe(%s): %v", group, err)
		}
	}

	if err := b.Publish(context.Background(), TopicUserAuthenticated, "g-1", UserAuthenticated{Subject: "g-1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return counts["g1"] == 1 && counts["g2"] == 1
	}, "both groups should receive the message")
}

func TestDuplicateGroupRejected(t *testing.T) {
	b := newTestBus(t)

	h := func(ctx context.Context, msg Message) error { return nil }
	if err := b.Subscribe(TopicUserAuthenticated, "g1", h); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := b.Subscribe(TopicUserAuthenticated, "g1", h); err == nil {
		t.Fatal("second subscribe of the same group must fail")
	}
}

func TestPublishAfterClose(t *testing.T) {
	b := NewMemoryBus(4, zap.NewNop().Sugar())
	b.Close()
	err := b.Publish(context.Background(), TopicUserAuthenticated, "k", UserAuthenticated{})
	if !errors.Is(err, ErrBusClosed) {
		t.Fatalf("Publish after Close = %v, want ErrBusClosed", err)
	}
}
