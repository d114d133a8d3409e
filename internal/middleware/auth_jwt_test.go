package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSignAndVerifyToken(t *testing.T) {
	token, err := SignToken("test-secret", "user-123", time.Now())
	if err != nil {
		t.Fatalf("SignToken() unexpected error: %v", err)
	}
	userID, err := VerifyToken("test-secret", token)
	if err != nil {
		t.Fatalf("VerifyToken() unexpected error: %v", err)
	}
	if userID != "user-123" {
		t.Fatalf("VerifyToken() = %q, want %q", userID, "user-123")
	}
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	token, err := SignToken("secret-a", "user-123", time.Now())
	if err != nil {
		t.Fatalf("SignToken() error: %v", err)
	}
	if _, err := VerifyToken("secret-b", token); err == nil {
		t.Fatalf("VerifyToken() expected invalid signature error")
	}
}

func TestVerifyTokenExpired(t *testing.T) {
	token, err := SignToken("secret", "user-123", time.Now().Add(-8*24*time.Hour))
	if err != nil {
		t.Fatalf("SignToken() error: %v", err)
	}
	if _, err := VerifyToken("secret", token); err == nil {
		t.Fatalf("VerifyToken() expected expiration error")
	}
}

func TestAuthJWTMiddleware(t *testing.T) {
	var gotUserID string
	handler := AuthJWT("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserIDFromContext(r.Context())
	}))

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := SignToken("secret", "user-9", time.Now())
		if err != nil {
			t.Fatalf("SignToken() error: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if gotUserID != "user-9" {
			t.Fatalf("user id = %q, want user-9", gotUserID)
		}
	})
}
