// Package oauth talks to the external identity provider. The rest of the
// system sees only the Provider interface and the verified UserInfo it
// yields; the protocol exchange itself stays behind this boundary.
package oauth

import "context"

// UserInfo is the identity assertion obtained from the provider after a
// successful code exchange. Subject is the provider-issued stable unique ID.
type UserInfo struct {
	Subject string
	Email   string
	Name    string
}

// Provider abstracts the identity provider's login flow.
type Provider interface {
	// LoginURL builds the provider authorization URL for the given
	// anti-CSRF state.
	LoginURL(state string) string
	// Exchange trades the provider's authorization code for the user's
	// verified identity attributes.
	Exchange(ctx context.Context, code string) (*UserInfo, error)
}
