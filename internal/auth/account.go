package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Accounts implements registration and password login.
type Accounts struct {
	users  UserStore
	hasher *Hasher
	tokens *TokenIssuer

	dummyOnce sync.Once
	dummyHash string
}

func NewAccounts(users UserStore, hasher *Hasher, tokens *TokenIssuer) *Accounts {
	return &Accounts{users: users, hasher: hasher, tokens: tokens}
}

// Register creates a user and returns a token for it. Duplicate usernames
// and emails are reported as ErrUsernameTaken and ErrEmailTaken, both before
// hashing and when the store's unique constraints reject the insert.
func (a *Accounts) Register(ctx context.Context, username, email, password string) (Token, *User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return Token{}, nil, fmt.Errorf("%w: username, email and password are required", ErrInvalidInput)
	}

	if err := a.ensureAbsent(ctx, a.users.FindByUsername, username, ErrUsernameTaken); err != nil {
		return Token{}, nil, err
	}
	if err := a.ensureAbsent(ctx, a.users.FindByEmail, email, ErrEmailTaken); err != nil {
		return Token{}, nil, err
	}

	hash, err := a.hasher.Hash(password)
	if err != nil {
		return Token{}, nil, err
	}
	user := &User{Username: username, Email: email, PasswordHash: hash}
	if err := a.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUsernameTaken) || errors.Is(err, ErrEmailTaken) {
			return Token{}, nil, err
		}
		return Token{}, nil, fmt.Errorf("create user: %w", err)
	}

	tok, err := a.tokens.Issue(user.Username)
	if err != nil {
		return Token{}, nil, err
	}
	return tok, user, nil
}

func (a *Accounts) ensureAbsent(ctx context.Context, find func(context.Context, string) (*User, error), key string, taken error) error {
	_, err := find(ctx, key)
	switch {
	case err == nil:
		return taken
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		return fmt.Errorf("lookup user: %w", err)
	}
}

// Login checks the password and returns a fresh token. Unknown users and
// wrong passwords both yield ErrInvalidCredentials.
func (a *Accounts) Login(ctx context.Context, username, password string) (Token, *User, error) {
	user, err := a.users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return Token{}, nil, fmt.Errorf("lookup user: %w", err)
		}
		// Spend the same bcrypt work as a real comparison.
		a.hasher.Verify(password, a.placeholderHash())
		return Token{}, nil, ErrInvalidCredentials
	}
	if !a.hasher.Verify(password, user.PasswordHash) {
		return Token{}, nil, ErrInvalidCredentials
	}

	tok, err := a.tokens.Issue(user.Username)
	if err != nil {
		return Token{}, nil, err
	}
	return tok, user, nil
}

func (a *Accounts) placeholderHash() string {
	a.dummyOnce.Do(func() {
		hash, err := a.hasher.Hash("placeholder-password")
		if err == nil {
			a.dummyHash = hash
		}
	})
	return a.dummyHash
}
