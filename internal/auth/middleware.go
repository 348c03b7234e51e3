// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tomtom215/fleetwatch/internal/logging"
)

// ErrMissingToken is returned when no credential is present.
var ErrMissingToken = errors.New("missing token")

// ErrorResponder writes an authentication failure.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, status int, message string)

// Middleware authenticates requests with JWTs.
type Middleware struct {
	jwtManager *JWTManager
	respond    ErrorResponder
}

// NewMiddleware creates the middleware. A nil respond falls back to
// http.Error.
func NewMiddleware(jwtManager *JWTManager, respond ErrorResponder) *Middleware {
	if respond == nil {
		respond = func(w http.ResponseWriter, _ *http.Request, status int, message string) {
			http.Error(w, message, status)
		}
	}
	return &Middleware{jwtManager: jwtManager, respond: respond}
}

// Authenticate resolves the caller and stores the Principal in the context.
// Requests without a valid token get 401.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := ExtractToken(r)
		if err != nil {
			m.respond(w, r, http.StatusUnauthorized, "Unauthorized: "+err.Error())
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("Token validation failed")
			m.respond(w, r, http.StatusUnauthorized, "Unauthorized: invalid token")
			return
		}

		ctx := ContextWithPrincipal(r.Context(), Principal{UserID: claims.UserID, Role: claims.Role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects authenticated callers whose role is not listed. It
// must run after Authenticate.
func (m *Middleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				m.respond(w, r, http.StatusUnauthorized, "Unauthorized: missing principal")
				return
			}
			if _, ok := allowed[p.Role]; !ok {
				m.respond(w, r, http.StatusForbidden, "Forbidden: insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ExtractToken reads a bearer token from the Authorization header, the
// token query parameter (browsers cannot set headers on WebSocket
// upgrades) or the token cookie, in that order.
func ExtractToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", errors.New("invalid authorization header")
		}
		return token, nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	if cookie, err := r.Cookie("token"); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	return "", ErrMissingToken
}
