// Package api implements the document tree REST API using chi.
package api

import (
	"context"
	"net/http"

	"github.com/starford/facdocs/internal/apperr"
	"github.com/starford/facdocs/internal/auth"
)

type ctxKey int

const subjectKey ctxKey = iota

// AuthMiddleware rejects requests without a valid bearer credential. When
// the authenticator is disabled every request passes through.
func AuthMiddleware(a *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub, err := a.Authorize(r.Header.Get("Authorization"))
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="facdocs"`)
				writeJSON(w, http.StatusUnauthorized, errorBody(apperr.Message(err, "unauthorized")))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey, sub)))
		})
	}
}

// Subject returns the authenticated subject stored by AuthMiddleware.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey).(string)
	return s
}
