package repo

import (
	"testing"

	"github.com/ovaphlow/authhub/internal/user"
)

// UserRepo must satisfy the registry contract the sync consumer depends on.
func TestUserRepoImplementsRegistry(t *testing.T) {
	var _ user.Registry = (*UserRepo)(nil)
}

func TestNewUserRepoInitializes(t *testing.T) {
	if NewUserRepo(nil) == nil {
		t.Fatal("expected non-nil repo")
	}
}
