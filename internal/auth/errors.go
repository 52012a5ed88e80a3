package auth

import "errors"

var (
	// ErrInvalidCredentials is the single outcome of every failed credential
	// check: bad or missing token, unknown subject, wrong password.
	ErrInvalidCredentials = errors.New("could not validate credentials")

	ErrUsernameTaken = errors.New("username already registered")
	ErrEmailTaken    = errors.New("email already registered")
	ErrNotFound      = errors.New("auth: not found")
	ErrInvalidInput  = errors.New("auth: invalid input")
)
