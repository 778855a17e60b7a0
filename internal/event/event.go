// Package event defines the identity event channel: topic names, payload
// schemas and the bus capability the core publishes to and consumes from.
package event

// Topic names. Messages on every topic are keyed by subject; the bus must
// preserve delivery order among messages sharing a key.
const (
	// TopicUserAuthenticated carries the fact of a successful external
	// login, published by the login handoff.
	TopicUserAuthenticated = "user-authenticated"

	// TopicUserRegistered is derived by the identity-sync consumer on a
	// subject's first login.
	TopicUserRegistered = "user-registered"

	// TopicUserLoggedIn is derived by the identity-sync consumer on a
	// repeat login.
	TopicUserLoggedIn = "user-logged-in"
)

// UserAuthenticated is published once per successful external login. The bus
// may redeliver it; deduplication is the consumer's job.
type UserAuthenticated struct {
	Subject string `json:"subject"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// UserRegistered marks a subject's first appearance in the user registry.
type UserRegistered struct {
	Subject string `json:"subject"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// UserLoggedIn marks a repeat login of a known subject.
type UserLoggedIn struct {
	Subject string `json:"subject"`
}
