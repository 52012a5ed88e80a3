package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultAlgorithm is used when TokenConfig.Algorithm is empty.
const DefaultAlgorithm = "HS256"

// TokenConfig is the immutable signing configuration loaded once at startup.
type TokenConfig struct {
	Secret    []byte
	Algorithm string
	TTL       time.Duration
}

// failure enumerates the internal reasons a token is rejected. Callers only
// ever see ErrInvalidCredentials.
type failure int

const (
	failNone failure = iota
	failEmpty
	failMalformed
	failAlgorithm
	failSignature
	failExpired
	failSubject
)

func (f failure) String() string {
	switch f {
	case failNone:
		return "none"
	case failEmpty:
		return "empty"
	case failMalformed:
		return "malformed"
	case failAlgorithm:
		return "algorithm"
	case failSignature:
		return "signature"
	case failExpired:
		return "expired"
	case failSubject:
		return "subject"
	default:
		return "unknown"
	}
}

var errUnexpectedAlgorithm = errors.New("unexpected signing algorithm")

// TokenIssuer issues and verifies HMAC-signed JWT access tokens carrying the
// username as subject.
type TokenIssuer struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures TokenIssuer.
type TokenOption func(*TokenIssuer)

// WithTokenClock overrides the time source (useful for tests).
func WithTokenClock(fn func() time.Time) TokenOption {
	return func(t *TokenIssuer) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewTokenIssuer validates cfg and constructs a TokenIssuer.
func NewTokenIssuer(cfg TokenConfig, opts ...TokenOption) (*TokenIssuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: token secret is required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("auth: token ttl must be greater than zero")
	}
	method, err := hmacMethod(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	t := &TokenIssuer{
		secret: secret,
		method: method,
		ttl:    cfg.TTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func hmacMethod(alg string) (*jwt.SigningMethodHMAC, error) {
	alg = strings.ToUpper(strings.TrimSpace(alg))
	if alg == "" {
		alg = DefaultAlgorithm
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("auth: unsupported signing algorithm %q", alg)
	}
	return method, nil
}

// TTL returns the default token lifetime.
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

// Issue signs a token for subject using the default TTL.
func (t *TokenIssuer) Issue(subject string) (Token, error) {
	return t.IssueWithTTL(subject, t.ttl)
}

// IssueWithTTL signs a token for subject that expires ttl from now (UTC).
func (t *TokenIssuer) IssueWithTTL(subject string, ttl time.Duration) (Token, error) {
	if strings.TrimSpace(subject) == "" {
		return Token{}, fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	if ttl <= 0 {
		return Token{}, fmt.Errorf("%w: ttl must be greater than zero", ErrInvalidInput)
	}

	now := t.now().UTC()
	expiresAt := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(t.method, claims).SignedString(t.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{
		AccessToken: signed,
		TokenType:   tokenTypeBearer,
		ExpiresAt:   expiresAt,
	}, nil
}

// Verify checks signature, algorithm, payload, subject and expiry and returns
// the subject. Every rejection is ErrInvalidCredentials.
func (t *TokenIssuer) Verify(token string) (string, error) {
	subject, f := t.verify(token)
	if f != failNone {
		return "", ErrInvalidCredentials
	}
	return subject, nil
}

func (t *TokenIssuer) verify(token string) (string, failure) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", failEmpty
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (any, error) {
		if tok.Method == nil || tok.Method.Alg() != t.method.Alg() {
			return nil, errUnexpectedAlgorithm
		}
		return t.secret, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return t.now().UTC() }),
	)
	if err != nil {
		return "", classify(err)
	}
	if !parsed.Valid {
		return "", failSignature
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", failSubject
	}
	// No leeway: a token is already invalid at its exp instant.
	if !t.now().UTC().Before(claims.ExpiresAt.Time) {
		return "", failExpired
	}
	return claims.Subject, failNone
}

func classify(err error) failure {
	switch {
	case errors.Is(err, errUnexpectedAlgorithm):
		return failAlgorithm
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return failSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return failExpired
	default:
		return failMalformed
	}
}
