package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Verifier turns a bearer token into its subject.
type Verifier interface {
	Verify(token string) (string, error)
}

// Gate resolves a bearer token to the user it was issued for.
type Gate struct {
	verifier Verifier
	users    UserStore
}

func NewGate(verifier Verifier, users UserStore) *Gate {
	return &Gate{verifier: verifier, users: users}
}

// CurrentUser runs the full authorization check for one request: the token
// must be present, verify, carry a subject, and the subject must name an
// existing user. Any failed step yields ErrInvalidCredentials. Storage
// failures other than a missing user are returned wrapped.
func (g *Gate) CurrentUser(ctx context.Context, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidCredentials
	}
	subject, err := g.verifier.Verify(token)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if subject == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := g.users.FindByUsername(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("resolve token subject: %w", err)
	}
	if user == nil || user.Username != subject {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
