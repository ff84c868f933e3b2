package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/autoresttest/console/internal/api/response"
)

// Internal guards callback routes (progress updates, task-runner hooks) with
// a pre-shared secret. A missing server-side key is a deployment fault and
// reported as 500, not 401: the caller did nothing wrong.
type Internal struct {
	key string
}

// NewInternal creates the internal-auth middleware.
func NewInternal(key string) *Internal {
	return &Internal{key: key}
}

func (i *Internal) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if i.key == "" {
			slog.Error("internal API key not configured")
			response.Error(w, http.StatusInternalServerError,
				"CONFIG_ERROR", "Internal API key is not configured", nil)
			return
		}

		presented := extractBearerToken(r)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(i.key)) != 1 {
			response.Error(w, http.StatusUnauthorized,
				"UNAUTHORIZED", "Invalid internal credentials", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
