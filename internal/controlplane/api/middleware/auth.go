// Package middleware provides chi-compatible HTTP middleware for the
// Name Node's admin API.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/docspp/cluster/internal/controlplane/api/auth"
)

type contextKey struct{ name string }

var claimsContextKey = &contextKey{"claims"}

// GetClaimsFromContext returns the JWT claims stashed by JWTAuth or
// OptionalJWTAuth, or nil if none are present.
func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims
}

// extractBearerToken pulls the token out of an "Authorization: Bearer <token>"
// header. The scheme match is case-insensitive.
func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}

	return header[len(prefix):], true
}

// unauthorized writes a 401 problem+json response. It is defined here
// rather than reusing handlers.Unauthorized because package handlers
// imports this package.
func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  "Unauthorized",
		"status": http.StatusUnauthorized,
		"detail": detail,
	})
}

// JWTAuth requires a valid access token and injects its claims into the
// request context. Requests without one, or with an invalid or expired
// one, are rejected with 401 before reaching the wrapped handler.
func JWTAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r)
			if !ok {
				unauthorized(w, "Missing or malformed Authorization header")
				return
			}

			claims, err := jwtService.ValidateAccessToken(token)
			if err != nil {
				unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalJWTAuth injects claims into the context when a valid token is
// present, but never rejects the request. Used for endpoints whose
// response shape depends on whether the caller is authenticated.
func OptionalJWTAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := jwtService.ValidateAccessToken(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
