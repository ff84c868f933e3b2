package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const subjectKey contextKey = "subject"

// Subject is the resolved caller identity: either an interactive session or
// the owner of a machine credential.
type Subject struct {
	UserID  string
	Email   string
	Machine bool
}

func SetSubject(ctx context.Context, s Subject) context.Context {
	return context.WithValue(ctx, subjectKey, s)
}

func GetSubject(r *http.Request) (Subject, bool) {
	s, ok := r.Context().Value(subjectKey).(Subject)
	return s, ok
}
