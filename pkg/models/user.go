package models

import "time"

// APIKeyPrefix is prepended to every minted machine credential.
const APIKeyPrefix = "art_"

// User represents an account. The ID matches the identity provider's subject
// identifier, so it is an opaque string rather than a UUID.
type User struct {
	ID        string    `db:"id"         json:"id"`
	Email     string    `db:"email"      json:"email"`
	APIKey    *APIKey   `db:"-"          json:"api_key,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// APIKey is a user's machine credential for non-interactive job submission
// (CI pipelines). Exactly one per user, minted lazily on first request and
// returned verbatim on every subsequent request.
type APIKey struct {
	UserID    string    `db:"user_id"    json:"user_id"`
	Key       string    `db:"key"        json:"key"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
