package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

const callerKey ctxKey = iota

// CallerID returns the authenticated caller id set by Auth, or "".
func CallerID(ctx context.Context) string {
	id, _ := ctx.Value(callerKey).(string)
	return id
}

// WithCallerID is for tests and internal calls.
func WithCallerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callerKey, id)
}

// Auth validates a bearer JWT (HS256, shared secret with the identity
// provider) and puts the subject claim into the request context as the
// caller id. Everything behind it can assume an authenticated caller.
// Paths listed in skip (health, metrics) pass through untouched.
func Auth(secret string, skip ...string) func(http.Handler) http.Handler {
	exempt := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		exempt[p] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exempt[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if raw == "" || raw == r.Header.Get("Authorization") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			sub, err := tok.Claims.GetSubject()
			if err != nil || sub == "" {
				http.Error(w, "token has no subject", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCallerID(r.Context(), sub)))
		})
	}
}
