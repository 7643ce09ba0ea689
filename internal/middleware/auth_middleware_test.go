package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dm-go/internal/auth"
	"dm-go/internal/config"
	"dm-go/internal/models"
)

func TestAuthMiddleware(t *testing.T) {
	cfg := config.AuthConfig{JWTSecretKey: "mw-secret", JWTExpiry: time.Hour}
	token, err := auth.GenerateToken("u-7", models.RolePlain, cfg)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	var seen string
	protected := AuthMiddleware(cfg.JWTSecretKey, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if !ok {
			t.Errorf("caller missing from context")
		}
		seen = caller.UserID
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		url    string
		header string
		want   int
	}{
		{name: "bearer header", url: "/api/v1/all-message", header: "Bearer " + token, want: http.StatusNoContent},
		{name: "query token", url: "/ws?token=" + token, want: http.StatusNoContent},
		{name: "missing", url: "/api/v1/all-message", want: http.StatusUnauthorized},
		{name: "wrong scheme", url: "/api/v1/all-message", header: "Basic " + token, want: http.StatusUnauthorized},
		{name: "garbage", url: "/api/v1/all-message", header: "Bearer nope", want: http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, tc.url, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d (%s)", tc.want, rec.Code, rec.Body.String())
			}
			if tc.want == http.StatusNoContent && seen != "u-7" {
				t.Fatalf("expected caller u-7, got %q", seen)
			}
		})
	}
}
