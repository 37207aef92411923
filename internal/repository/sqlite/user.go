package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/refr-io/refr/internal/apperror"
	"github.com/refr-io/refr/internal/model"
	"github.com/refr-io/refr/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// CreateUser inserts a local mirror row for an identity-provider account.
//
// The sub is assigned by the provider, never generated here. Mirror rows are
// write-once: this system never updates or deletes them, so a plain INSERT
// is correct and a duplicate sub or email is a real error, not an upsert
// opportunity.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (user_sub, user_name, user_email, created_at)
		 VALUES (?, ?, ?, ?)`,
		user.Sub,
		user.Name,
		user.Email,
		user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting user (sub=%s): %w", user.Sub, err)
	}

	return nil
}

// GetUserBySub retrieves a mirror row by the provider subject id.
// Returns apperror.ErrNotFound if no row exists.
func (db *DB) GetUserBySub(ctx context.Context, sub string) (*model.User, error) {
	var u model.User

	err := db.conn.QueryRowContext(ctx,
		`SELECT user_sub, user_name, user_email, created_at
		   FROM users WHERE user_sub = ?`,
		sub,
	).Scan(
		&u.Sub,
		&u.Name,
		&u.Email,
		&u.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("User")
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", sub, err)
	}

	return &u, nil
}
