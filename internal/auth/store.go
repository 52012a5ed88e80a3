package auth

import "context"

// UserStore describes the persistence operations the auth core depends on.
//
// Create must enforce username and email uniqueness atomically and report a
// collision as ErrUsernameTaken or ErrEmailTaken. Lookups return ErrNotFound
// when no user matches.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, u *User) error
}
