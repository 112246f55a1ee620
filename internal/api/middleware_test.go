package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/ratelimit"
)

var testJWTSecret = []byte("test-secret")

func signTestToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// withIdentity injects an authenticated identity the way Authenticator would.
func withIdentity(ident Identity, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), identityKey, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body["error"]
}

func TestRateLimit_ThirdRequestInWindowRejected(t *testing.T) {
	limiter := ratelimit.NewLimiter(time.Minute)
	defer limiter.Stop()
	handler := RateLimit(limiter, "public", 2)(okHandler())

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
		req.RemoteAddr = "10.0.0.1:52311"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)

		if i == 2 {
			if got := decodeErrorBody(t, rec); got != "rate limit exceeded" {
				t.Fatalf("expected the uniform limit body, got %q", got)
			}
		}
	}
	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK || statuses[2] != http.StatusTooManyRequests {
		t.Fatalf("expected 200, 200, 429, got %v", statuses)
	}
}

func TestRateLimit_AuthenticatedCallersKeyedByUser(t *testing.T) {
	limiter := ratelimit.NewLimiter(time.Minute)
	defer limiter.Stop()
	limit := RateLimit(limiter, "auth", 2)

	send := func(userID string) int {
		handler := withIdentity(Identity{UserID: userID, Status: domain.UserActive}, limit(okHandler()))
		req := httptest.NewRequest(http.MethodGet, "/api/registrations/me", nil)
		req.RemoteAddr = "10.0.0.1:52311"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// Same IP throughout: the budget must follow the user, not the address.
	if send("alice") != http.StatusOK || send("alice") != http.StatusOK {
		t.Fatal("expected alice's first two requests to pass")
	}
	if send("alice") != http.StatusTooManyRequests {
		t.Fatal("expected alice's third request rejected")
	}
	if send("bob") != http.StatusOK {
		t.Fatal("expected bob to have his own budget on the shared address")
	}
}

func TestRateLimit_ScopesCountIndependently(t *testing.T) {
	limiter := ratelimit.NewLimiter(time.Minute)
	defer limiter.Stop()
	public := RateLimit(limiter, "public", 1)(okHandler())
	webhook := RateLimit(limiter, "webhook", 1)(okHandler())

	send := func(h http.Handler) int {
		req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", nil)
		req.RemoteAddr = "10.0.0.1:52311"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if send(public) != http.StatusOK {
		t.Fatal("expected the public budget to allow one request")
	}
	if send(public) != http.StatusTooManyRequests {
		t.Fatal("expected the public budget exhausted")
	}
	if send(webhook) != http.StatusOK {
		t.Fatal("expected the webhook scope unaffected by the public scope")
	}
}

func TestAuthenticator_ValidTokenAttachesIdentity(t *testing.T) {
	var got Identity
	var ok bool
	handler := Authenticator(testJWTSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = identityFrom(r)
		w.WriteHeader(http.StatusOK)
	}))

	token := signTestToken(t, testJWTSecret, jwt.MapClaims{
		"sub":    "user-1",
		"role":   "admin",
		"status": "active",
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !ok {
		t.Fatal("expected an identity in the request context")
	}
	if got.UserID != "user-1" || got.Role != domain.RoleAdmin || got.Status != domain.UserActive {
		t.Fatalf("expected the token claims carried over, got %+v", got)
	}
	if !got.IsAdmin() {
		t.Fatal("expected the admin role recognized")
	}
}

func TestAuthenticator_RejectsBadCredentials(t *testing.T) {
	handler := Authenticator(testJWTSecret)(okHandler())

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "missing_header", header: "", want: "Authorization header required"},
		{name: "wrong_scheme", header: "Token abc", want: "Invalid Authorization header format"},
		{name: "garbage_token", header: "Bearer not-a-jwt", want: "Invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			if got := decodeErrorBody(t, rec); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}

	t.Run("foreign_signature", func(t *testing.T) {
		token := signTestToken(t, []byte("other-secret"), jwt.MapClaims{"sub": "user-1"})
		req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for a foreign signature, got %d", rec.Code)
		}
	})
}

func TestOptionalAuthenticator_AnonymousPassesThrough(t *testing.T) {
	var sawIdentity bool
	handler := OptionalAuthenticator(testJWTSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawIdentity = identityFrom(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/donations/recent", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected anonymous request to pass, got %d", rec.Code)
	}
	if sawIdentity {
		t.Fatal("expected no identity for an anonymous request")
	}

	token := signTestToken(t, testJWTSecret, jwt.MapClaims{"sub": "user-1", "status": "active"})
	req = httptest.NewRequest(http.MethodGet, "/api/donations/recent", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected authenticated request to pass, got %d", rec.Code)
	}
	if !sawIdentity {
		t.Fatal("expected the identity attached when a valid token is sent")
	}
}

func TestRequireActive_BlocksDormantAccounts(t *testing.T) {
	handler := RequireActive(okHandler())

	// No identity at all.
	req := httptest.NewRequest(http.MethodPost, "/api/registrations", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rec.Code)
	}

	for _, status := range []domain.UserStatus{domain.UserPending, domain.UserBlocked} {
		req = httptest.NewRequest(http.MethodPost, "/api/registrations", nil)
		rec = httptest.NewRecorder()
		withIdentity(Identity{UserID: "user-1", Status: status}, handler).ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403 for %s account, got %d", status, rec.Code)
		}
		if got := decodeErrorBody(t, rec); got != "account is not active" {
			t.Fatalf("expected the inactive-account body, got %q", got)
		}
	}

	req = httptest.NewRequest(http.MethodPost, "/api/registrations", nil)
	rec = httptest.NewRecorder()
	withIdentity(Identity{UserID: "user-1", Status: domain.UserActive}, handler).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected active account to pass, got %d", rec.Code)
	}
}

func TestRequireAdmin_BlocksMembers(t *testing.T) {
	handler := RequireAdmin(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	rec := httptest.NewRecorder()
	withIdentity(Identity{UserID: "user-1", Role: domain.RoleUser, Status: domain.UserActive}, handler).ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a member, got %d", rec.Code)
	}
	if got := decodeErrorBody(t, rec); got != "admin role required" {
		t.Fatalf("expected the admin-role body, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	rec = httptest.NewRecorder()
	withIdentity(Identity{UserID: "admin-1", Role: domain.RoleAdmin, Status: domain.UserActive}, handler).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected admin to pass, got %d", rec.Code)
	}
}

func TestClientIP_TrustsProxyHeadersInOrder(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{name: "forwarded_chain", forwarded: "1.2.3.4, 5.6.7.8", remoteAddr: "9.9.9.9:100", want: "1.2.3.4"},
		{name: "forwarded_single", forwarded: "1.2.3.4", remoteAddr: "9.9.9.9:100", want: "1.2.3.4"},
		{name: "real_ip_fallback", realIP: "5.6.7.8", remoteAddr: "9.9.9.9:100", want: "5.6.7.8"},
		{name: "remote_addr", remoteAddr: "9.9.9.9:100", want: "9.9.9.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := clientIP(req); got != tt.want {
				t.Fatalf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
