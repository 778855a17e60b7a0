// Package auth exposes the HTTP surface of the authentication handoff:
// the provider login redirect, the code-for-token exchange, token refresh
// and logout.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/authhub/internal/exchange"
	"github.com/ovaphlow/authhub/internal/login"
	"github.com/ovaphlow/authhub/internal/metrics"
	"github.com/ovaphlow/authhub/internal/oauth"
	"github.com/ovaphlow/authhub/internal/token"
)

const (
	refreshCookieName = "refresh_token"
	// The refresh cookie is scoped to the refresh endpoint only, so the
	// browser never attaches the long-lived token anywhere else.
	refreshCookiePath = "/auth/refresh"
	stateCookieName   = "oauth_state"
)

type Config struct {
	CookieSecure      bool
	RefreshTTLSeconds int
}

// Handler serves the /auth endpoints.
type Handler struct {
	provider oauth.Provider
	handoff  *login.Handoff
	tokens   *token.Service
	codes    *exchange.Store
	cfg      Config
	metrics  *metrics.Collector
	logger   *zap.SugaredLogger
}

func NewHandler(provider oauth.Provider, handoff *login.Handoff, tokens *token.Service, codes *exchange.Store, cfg Config, m *metrics.Collector, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		provider: provider,
		handoff:  handoff,
		tokens:   tokens,
		codes:    codes,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
	}
}

// GoogleLogin starts the provider flow.
// GET /auth/google/login
func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		h.logger.Errorw("generate oauth state", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.provider.LoginURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback finishes the provider flow and runs the login handoff.
// GET /auth/google/callback?code=xxx&state=yyy
func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		h.logger.Warnw("oauth state mismatch", "remote", r.RemoteAddr)
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	info, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Errorw("provider exchange failed", "err", err)
		h.metrics.RecordLogin("error")
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	res, err := h.handoff.Handle(r.Context(), login.Principal{
		Subject: info.Subject,
		Email:   info.Email,
		Name:    info.Name,
	})
	if err != nil {
		h.logger.Errorw("login handoff failed", "err", err)
		h.metrics.RecordLogin("error")
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	h.setRefreshCookie(w, res.RefreshToken, h.cfg.RefreshTTLSeconds)
	h.metrics.RecordLogin("ok")
	http.Redirect(w, r, res.RedirectURL, http.StatusFound)
}

// ExchangeToken redeems a one-time code for the pending access token.
// POST /auth/token?code=xxx
func (h *Handler) ExchangeToken(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		_ = r.ParseForm()
		code = r.Form.Get("code")
	}

	accessToken, ok := h.codes.Redeem(code)
	if !ok {
		// Absent, expired and already-used all look the same out here.
		h.metrics.RecordRedemption("denied")
		h.unauthorized(w)
		return
	}

	h.metrics.RecordRedemption("ok")
	h.writeJSON(w, http.StatusOK, map[string]string{"accessToken": accessToken})
}

// Refresh rotates a new access token from the refresh cookie. The new token
// carries the subject with blank email/name: the refresh token holds no
// identity attributes and they are deliberately not re-fetched.
// POST /auth/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(refreshCookieName)
	if err != nil || c.Value == "" {
		h.metrics.RecordRefresh("denied")
		h.unauthorized(w)
		return
	}

	claims, err := h.tokens.Verify(c.Value)
	if err != nil {
		// Expired, malformed and forged all collapse to the same 401.
		h.metrics.RecordRefresh("denied")
		h.unauthorized(w)
		return
	}

	accessToken, err := h.tokens.MintAccess(claims.Subject, "", "")
	if err != nil {
		h.logger.Errorw("mint access token on refresh", "err", err)
		h.metrics.RecordRefresh("error")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordRefresh("ok")
	h.writeJSON(w, http.StatusOK, map[string]string{"accessToken": accessToken})
}

// Logout clears the refresh cookie. The refresh token itself stays
// cryptographically valid until natural expiry; there is no server-side
// revocation list.
// POST /auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.setRefreshCookie(w, "", -1)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Path:     refreshCookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) unauthorized(w http.ResponseWriter) {
	h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warnw("write response", "err", err)
	}
}

func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
