// Package login sequences what happens after the identity provider confirms
// a user: event publication, token minting and the code-for-token handoff
// that keeps bearer tokens out of redirect URLs.
package login

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ovaphlow/authhub/internal/event"
	"github.com/ovaphlow/authhub/internal/exchange"
	"github.com/ovaphlow/authhub/internal/token"
)

// Principal is the verified external identity assertion handed over by the
// OAuth layer. Subject is required; email and name are optional.
type Principal struct {
	Subject string
	Email   string
	Name    string
}

// Result is the outcome of a completed handoff. RedirectURL carries only the
// one-time code; the access token is reachable solely by redeeming it.
// RefreshToken goes into the scoped cookie, never into the URL.
type Result struct {
	RedirectURL  string
	RefreshToken string
	Code         string
}

// Handoff runs the login-success sequence: publish the authenticated event,
// mint both tokens, park the access token behind a one-time code, produce
// the redirect target. The steps are strictly linear; the first failure is
// terminal for the whole handoff and nothing is compensated (a published
// event is not retracted).
type Handoff struct {
	bus         event.Bus
	tokens      *token.Service
	codes       *exchange.Store
	frontendURL string
	logger      *zap.SugaredLogger
}

func NewHandoff(bus event.Bus, tokens *token.Service, codes *exchange.Store, frontendURL string, logger *zap.SugaredLogger) *Handoff {
	return &Handoff{
		bus:         bus,
		tokens:      tokens,
		codes:       codes,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

func (h *Handoff) Handle(ctx context.Context, p Principal) (*Result, error) {
	if p.Subject == "" {
		return nil, errors.New("principal has no subject")
	}

	ev := event.UserAuthenticated{Subject: p.Subject, Email: p.Email, Name: p.Name}
	if err := h.bus.Publish(ctx, event.TopicUserAuthenticated, p.Subject, ev); err != nil {
		return nil, fmt.Errorf("publish authenticated event: %w", err)
	}

	accessToken, err := h.tokens.MintAccess(p.Subject, p.Email, p.Name)
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}
	refreshToken, err := h.tokens.MintRefresh(p.Subject)
	if err != nil {
		return nil, fmt.Errorf("mint refresh token: %w", err)
	}

	code := h.codes.Issue(accessToken)

	h.logger.Infow("login handoff complete", "subject", p.Subject)

	return &Result{
		RedirectURL:  h.frontendURL + "/home?code=" + code,
		RefreshToken: refreshToken,
		Code:         code,
	}, nil
}
