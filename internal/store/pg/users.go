package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bookshelf.org/internal/auth"
)

const userColumns = `id, username, email, hashed_password, created_at`

func (s *Store) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	return s.findUser(ctx, `select `+userColumns+` from users where username = $1`, username)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.findUser(ctx, `select `+userColumns+` from users where email = $1`, email)
}

func (s *Store) findUser(ctx context.Context, query, arg string) (*auth.User, error) {
	var u auth.User
	err := s.q.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// Create inserts u. The unique constraints on username and email are the
// final arbiter for concurrent registrations.
func (s *Store) Create(ctx context.Context, u *auth.User) error {
	err := s.q.QueryRowContext(ctx,
		`insert into users (username, email, hashed_password) values ($1, $2, $3) returning id, created_at`,
		u.Username, u.Email, u.PasswordHash,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			switch pgErr.ConstraintName {
			case constraintUsersUsername:
				return auth.ErrUsernameTaken
			case constraintUsersEmail:
				return auth.ErrEmailTaken
			}
		}
		return fmt.Errorf("insert user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return nil
}
