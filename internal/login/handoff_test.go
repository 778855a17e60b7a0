package login

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/authhub/internal/event"
	"github.com/ovaphlow/authhub/internal/exchange"
	"github.com/ovaphlow/authhub/internal/token"
)

type recordedPublish struct {
	topic   string
	key     string
	payload []byte
}

type fakeBus struct {
	published []recordedPublish
	failWith  error
}

func (f *fakeBus) Publish(ctx context.Context, topic, key string, payload any) error {
	if f.failWith != nil {
		return f.failWith
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f.published = append(f.published, recordedPublish{topic: topic, key: key, payload: data})
	return nil
}

func (f *fakeBus) Subscribe(topic, group string, h event.Handler) error { return nil }

func newTestHandoff(bus event.Bus) (*Handoff, *token.Service, *exchange.Store) {
	tokens := token.NewService("0123456789abcdef0123456789abcdef", 15*time.Minute, 7*24*time.Hour)
	codes := exchange.NewStore(30 * time.Second)
	h := NewHandoff(bus, tokens, codes, "http://localhost:3000", zap.NewNop().Sugar())
	return h, tokens, codes
}

func TestHandleSequence(t *testing.T) {
	bus := &fakeBus{}
	h, tokens, codes := newTestHandoff(bus)

	res, err := h.Handle(context.Background(), Principal{Subject: "g-1", Email: "a@x.com", Name: "A"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	// event published with subject as key
	if len(bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.published))
	}
	pub := bus.published[0]
	if pub.topic != event.TopicUserAuthenticated || pub.key != "g-1" {
		t.Errorf("published (%s, %s)", pub.topic, pub.key)
	}
	var ev event.UserAuthenticated
	if err := json.Unmarshal(pub.payload, &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if ev != (event.UserAuthenticated{Subject: "g-1", Email: "a@x.com", Name: "A"}) {
		t.Errorf("event = %+v", ev)
	}

	// redirect target carries only the code, never a token
	u, err := url.Parse(res.RedirectURL)
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	if u.Path != "/home" {
		t.Errorf("redirect path = %q", u.Path)
	}
	if got := u.Query().Get("code"); got != res.Code {
		t.Errorf("redirect code = %q, want %q", got, res.Code)
	}
	if len(u.Query()) != 1 {
		t.Errorf("redirect query carries extra parameters: %v", u.Query())
	}

	// the code redeems to a verifiable access token with full claims
	accessToken, ok := codes.Redeem(res.Code)
	if !ok {
		t.Fatal("issued code did not redeem")
	}
	claims, err := tokens.Verify(accessToken)
	if err != nil {
		t.Fatalf("verify access token: %v", err)
	}
	if claims.Subject != "g-1" || claims.Email != "a@x.com" || claims.Name != "A" {
		t.Errorf("access claims = %+v", claims)
	}

	// refresh token verifies and carries subject only
	rc, err := tokens.Verify(res.RefreshToken)
	if err != nil {
		t.Fatalf("verify refresh token: %v", err)
	}
	if rc.Subject != "g-1" || rc.Email != "" || rc.Name != "" {
		t.Errorf("refresh claims = %+v", rc)
	}
}

func TestHandlePublishFailureIsTerminal(t *testing.T) {
	bus := &fakeBus{failWith: errors.New("broker down")}
	h, _, codes := newTestHandoff(bus)

	if _, err := h.Handle(context.Background(), Principal{Subject: "g-1"}); err == nil {
		t.Fatal("expected terminal failure when publish fails")
	}

	// nothing should have been parked in the code store
	if _, ok := codes.Redeem(""); ok {
		t.Fatal("no code should exist")
	}
}

func TestHandleRejectsEmptySubject(t *testing.T) {
	h, _, _ := newTestHandoff(&fakeBus{})
	if _, err := h.Handle(context.Background(), Principal{Email: "a@x.com"}); err == nil {
		t.Fatal("expected error for principal without subject")
	}
}
