package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/autoresttest/console/internal/api/response"
	"github.com/autoresttest/console/internal/identity"
	"github.com/autoresttest/console/internal/store"
	"github.com/autoresttest/console/pkg/models"
)

// SessionCookieName carries the identity provider's session token for
// browser callers. Non-browser callers send it in X-Session-Token instead.
const SessionCookieName = "__session"

// Auth resolves the caller to a Subject. Interactive sessions are verified
// against the identity provider; machine callers present their API key as a
// Bearer token. When both are present the session wins.
type Auth struct {
	verifier identity.Verifier
	store    store.Store
}

// NewAuth creates a new Auth middleware.
func NewAuth(v identity.Verifier, s store.Store) *Auth {
	return &Auth{verifier: v, store: s}
}

// Authenticate rejects the request with 401 unless exactly one of the two
// credential forms resolves to a non-null owner.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := sessionToken(r); token != "" {
			id, err := a.verifier.Verify(r.Context(), token)
			switch {
			case err == nil:
				r = r.WithContext(SetSubject(r.Context(), Subject{
					UserID: id.UserID,
					Email:  id.Email,
				}))
				next.ServeHTTP(w, r)
				return
			case errors.Is(err, identity.ErrUnauthenticated):
				// Fall through to the machine credential, if any.
			default:
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "Failed to verify session", nil)
				return
			}
		}

		rawKey := extractBearerToken(r)
		if !strings.HasPrefix(rawKey, models.APIKeyPrefix) {
			response.Error(w, http.StatusUnauthorized,
				"UNAUTHORIZED", "Missing or invalid credentials", nil)
			return
		}

		user, err := a.store.GetUserByAPIKey(r.Context(), rawKey)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusUnauthorized,
				"UNAUTHORIZED", "Invalid API key", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to validate API key", nil)
			return
		}

		r = r.WithContext(SetSubject(r.Context(), Subject{
			UserID:  user.ID,
			Email:   user.Email,
			Machine: true,
		}))
		next.ServeHTTP(w, r)
	})
}

func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.Header.Get("X-Session-Token")
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
