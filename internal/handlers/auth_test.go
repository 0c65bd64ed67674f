package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/paycartapp/paycart/internal/config"
)

const testJWTSecret = "test-secret-key-at-least-32-bytes!"

func newAuthHandlers() *Handlers {
	return &Handlers{
		config: &config.Config{JWTSecret: testJWTSecret},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func signTestToken(t *testing.T, secret string, userID uuid.UUID, admin bool) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Email: "user@example.com",
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()

	h := newAuthHandlers()
	userID := uuid.New()

	var gotClaims *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = claimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/payments/1/status", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, testJWTSecret, userID, false))
	rec := httptest.NewRecorder()
	h.RequireAuth(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotClaims == nil || gotClaims.UserID != userID {
		t.Fatalf("expected claims for %s, got %+v", userID, gotClaims)
	}
	if gotClaims.Admin {
		t.Error("expected non-admin claims")
	}
}

func TestRequireAuth_Rejections(t *testing.T) {
	t.Parallel()

	h := newAuthHandlers()

	expiredToken := func() string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   uuid.NewString(),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		})
		signed, err := token.SignedString([]byte(testJWTSecret))
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		return signed
	}

	nonUUIDSubject := func() string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-42",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		signed, err := token.SignedString([]byte(testJWTSecret))
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		return signed
	}

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not a bearer token", header: "Basic dXNlcjpwYXNz"},
		{name: "garbage token", header: "Bearer not.a.jwt"},
		{name: "wrong secret", header: "Bearer " + signTestToken(t, "some-other-secret-that-is-32-bytes", uuid.New(), false)},
		{name: "expired token", header: "Bearer " + expiredToken()},
		{name: "non-uuid subject", header: "Bearer " + nonUUIDSubject()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("next handler should not be called")
			})

			req := httptest.NewRequest("GET", "/payments/1/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.RequireAuth(next).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	t.Parallel()

	h := newAuthHandlers()

	tests := []struct {
		name     string
		admin    bool
		wantCode int
	}{
		{name: "admin allowed", admin: true, wantCode: http.StatusOK},
		{name: "non-admin forbidden", admin: false, wantCode: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest("GET", "/admin/orders", nil)
			req.Header.Set("Authorization", "Bearer "+signTestToken(t, testJWTSecret, uuid.New(), tt.admin))
			rec := httptest.NewRecorder()
			h.RequireAdmin(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
		})
	}
}

func TestWithOptionalAuth(t *testing.T) {
	t.Parallel()

	h := newAuthHandlers()

	t.Run("anonymous passes through", func(t *testing.T) {
		t.Parallel()

		var gotClaims *Claims
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotClaims = claimsFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest("POST", "/orders", nil)
		rec := httptest.NewRecorder()
		h.WithOptionalAuth(next).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotClaims != nil {
			t.Errorf("expected no claims, got %+v", gotClaims)
		}
	})

	t.Run("invalid token passes through anonymously", func(t *testing.T) {
		t.Parallel()

		var gotClaims *Claims
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotClaims = claimsFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest("POST", "/orders", nil)
		req.Header.Set("Authorization", "Bearer junk")
		rec := httptest.NewRecorder()
		h.WithOptionalAuth(next).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotClaims != nil {
			t.Errorf("expected no claims, got %+v", gotClaims)
		}
	})

	t.Run("valid token attaches claims", func(t *testing.T) {
		t.Parallel()

		userID := uuid.New()
		var gotClaims *Claims
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotClaims = claimsFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest("POST", "/orders", nil)
		req.Header.Set("Authorization", "Bearer "+signTestToken(t, testJWTSecret, userID, false))
		rec := httptest.NewRecorder()
		h.WithOptionalAuth(next).ServeHTTP(rec, req)

		if gotClaims == nil || gotClaims.UserID != userID {
			t.Fatalf("expected claims for %s, got %+v", userID, gotClaims)
		}
	})
}
