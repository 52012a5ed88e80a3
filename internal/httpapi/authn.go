package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"bookshelf.org/internal/auth"
	"bookshelf.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "bearer "
)

var protectedPrefixes = []string{
	"/account/",
}

// withAuth runs the authorization gate in front of protected routes. Every
// rejection gets the same 401 regardless of which check failed.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || !isProtectedPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		user, err := a.gate.CurrentUser(r.Context(), bearerToken(r.Header.Get(authHeader)))
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				obs.ObserveAuthDecision(false)
				unauthorized(w, r)
				return
			}
			internalError(w, r, "authorization lookup failed", err)
			return
		}
		obs.ObserveAuthDecision(true)
		next.ServeHTTP(w, r.WithContext(auth.ContextWithUser(r.Context(), user)))
	})
}

// bearerToken extracts the credential from an Authorization header. Any
// other shape yields "", which the gate rejects like a bad token.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return ""
	}
	return strings.TrimSpace(header[len(bearer):])
}

func isProtectedPath(path string) bool {
	if path == "/account" {
		return true
	}
	for _, prefix := range protectedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, r, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
}

// currentUser returns the user attached by withAuth.
func currentUser(r *http.Request) (*auth.User, bool) {
	return auth.UserFromContext(r.Context())
}
