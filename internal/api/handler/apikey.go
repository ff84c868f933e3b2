package handler

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	mw "github.com/autoresttest/console/internal/api/middleware"
	"github.com/autoresttest/console/internal/api/response"
	"github.com/autoresttest/console/internal/store"
	"github.com/autoresttest/console/pkg/models"
)

// apiKeyMintAttempts bounds the regenerate-and-retry loop for the
// vanishingly rare case of a candidate colliding with another user's key.
const apiKeyMintAttempts = 3

// NewAPIKeyHandler returns the handler for GET /api/v1/user/api-key. A fresh
// candidate key is generated on every call, but the store upsert only keeps
// it when the user has none yet; the response always carries the surviving
// key, so retrieval is idempotent per user.
func NewAPIKeyHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, ok := mw.GetSubject(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing identity", nil)
			return
		}
		if subject.Email == "" {
			response.Error(w, http.StatusBadRequest, "NO_EMAIL", "User has no email address.", nil)
			return
		}

		for attempt := 0; attempt < apiKeyMintAttempts; attempt++ {
			candidate, err := generateAPIKey()
			if err != nil {
				slog.Error("failed to generate api key", "user_id", subject.UserID, "error", err)
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue API key.", nil)
				return
			}

			key, err := s.EnsureAPIKey(r.Context(), subject.UserID, subject.Email, candidate)
			if errors.Is(err, store.ErrDuplicateKey) {
				// Another user holds this exact key; roll again.
				continue
			}
			if err != nil {
				slog.Error("failed to ensure api key", "user_id", subject.UserID, "error", err)
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue API key.", nil)
				return
			}

			response.JSON(w, map[string]string{"api_key": key})
			return
		}

		slog.Error("api key candidates exhausted", "user_id", subject.UserID)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue API key.", nil)
	}
}

func generateAPIKey() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return models.APIKeyPrefix + hex.EncodeToString(buf[:]), nil
}
