package entity

import "time"

// User is a row in the `users` registry, keyed by the provider-issued
// subject. The identity-sync consumer is the only writer.
type User struct {
	ID        string    `db:"id"`
	Subject   string    `db:"subject"`
	Email     string    `db:"email"`
	Name      string    `db:"name"`
	LastLogin time.Time `db:"last_login"`
	CreatedAt time.Time `db:"created_at"`
}
