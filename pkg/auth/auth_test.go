package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
)

const testSecret = "test-secret-0123456789"

func TestJWT_SignVerify(t *testing.T) {
	j := NewJWT(testSecret, time.Hour)
	token, err := j.Sign(Identity{UserID: "u1", Role: RoleGuide})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	id, err := j.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if id.UserID != "u1" || id.Role != RoleGuide {
		t.Errorf("Verify() = %+v", id)
	}
}

func TestJWT_Verify_Rejects(t *testing.T) {
	j := NewJWT(testSecret, time.Hour)
	other := NewJWT("another-secret-0123456789", time.Hour)
	expired := NewJWT(testSecret, -time.Minute)

	foreign, _ := other.Sign(Identity{UserID: "u1", Role: RoleUser})
	stale, _ := expired.Sign(Identity{UserID: "u1", Role: RoleUser})
	badRole, _ := j.Sign(Identity{UserID: "u1", Role: "superuser"})

	tests := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": foreign,
		"expired":      stale,
		"unknown role": badRole,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := j.Verify(token); err != ErrInvalidToken {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestGuard_Require(t *testing.T) {
	j := NewJWT(testSecret, time.Hour)
	guard := NewGuard(j)

	userToken, _ := j.Sign(Identity{UserID: "traveler-1", Role: RoleUser})
	guideToken, _ := j.Sign(Identity{UserID: "guide-1", Role: RoleGuide})

	var seen Identity
	handle := guard.Require(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}, RoleUser, RoleAdmin)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"role not allowed", "Bearer " + guideToken, http.StatusForbidden},
		{"allowed", "Bearer " + userToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handle(rec, req, nil)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}

	if seen.UserID != "traveler-1" {
		t.Errorf("identity not propagated, got %+v", seen)
	}
}
