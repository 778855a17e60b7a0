package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/authhub/internal/user/entity"
	"github.com/ovaphlow/authhub/pkg/utilities"
)

// UserRepo provides data access for the users registry using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) ExistsBySubject(ctx context.Context, subject string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE subject = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, q, subject); err != nil {
		return false, err
	}
	return exists, nil
}

// Insert creates the registry row for a first-seen subject. The unique index
// on subject absorbs races between concurrent first logins: a conflicting
// insert is a no-op and Insert reports created=false so the caller can take
// the repeat-login branch instead.
func (r *UserRepo) Insert(ctx context.Context, subject, email, name string) (bool, error) {
	const q = `INSERT INTO users (id, subject, email, name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subject) DO NOTHING`
	res, err := r.db.ExecContext(ctx, q, utilities.NewSnowflakeID(), subject, email, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *UserRepo) UpdateLastLogin(ctx context.Context, subject string) error {
	const q = `UPDATE users SET last_login = NOW() WHERE subject = $1`
	_, err := r.db.ExecContext(ctx, q, subject)
	return err
}

// GetBySubject fetches a full registry row.
func (r *UserRepo) GetBySubject(ctx context.Context, subject string) (*entity.User, error) {
	const q = `SELECT id, subject, email, name, last_login, created_at
		FROM users WHERE subject = $1`
	var row entity.User
	if err := r.db.GetContext(ctx, &row, q, subject); err != nil {
		return nil, err
	}
	return &row, nil
}
