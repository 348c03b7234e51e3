// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/fleetwatch/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestManager(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(&config.SecurityConfig{JWTSecret: testSecret, TokenTTL: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestNewJWTManager_EmptySecret(t *testing.T) {
	if _, err := NewJWTManager(&config.SecurityConfig{}); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestGenerateAndValidate(t *testing.T) {
	m := newTestManager(t)
	token, err := m.GenerateToken("user-d1", RoleDriver)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.UserID != "user-d1" || claims.Role != RoleDriver {
		t.Errorf("claims = %+v", claims)
	}
}

func TestValidateToken_Rejects(t *testing.T) {
	m := newTestManager(t)

	expired := newTestManager(t)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, _ := expired.GenerateToken("u", RoleAdmin)

	other, _ := NewJWTManager(&config.SecurityConfig{JWTSecret: strings.Repeat("x", 32)})
	foreignToken, _ := other.GenerateToken("u", RoleAdmin)

	noneToken, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u", Role: RoleAdmin}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	noRole, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: "u"}).SignedString([]byte(testSecret))

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expiredToken},
		{"wrong secret", foreignToken},
		{"alg none", noneToken},
		{"missing role", noRole},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.ValidateToken(tt.token); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(r *http.Request)
		want    string
		wantErr bool
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, "abc", false},
		{"lowercase scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer abc") }, "abc", false},
		{"basic scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, "", true},
		{"query param", func(r *http.Request) { r.URL.RawQuery = "token=q1" }, "q1", false},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "token", Value: "c1"}) }, "c1", false},
		{"missing", func(r *http.Request) {}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(r)
			got, err := ExtractToken(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("token = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	m := newTestManager(t)
	mw := NewMiddleware(m, nil)

	var seen Principal
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := mw.Authenticate(mw.RequireRole(RoleFleetOwner, RoleAdmin)(final))

	ownerToken, _ := m.GenerateToken("owner-1", RoleFleetOwner)
	driverToken, _ := m.GenerateToken("user-d1", RoleDriver)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"owner allowed", ownerToken, http.StatusNoContent},
		{"driver forbidden", driverToken, http.StatusForbidden},
		{"no token", "", http.StatusUnauthorized},
		{"bad token", "junk", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/location/live/V1", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}

	if seen.UserID != "owner-1" || seen.Role != RoleFleetOwner {
		t.Errorf("principal = %+v", seen)
	}
}
