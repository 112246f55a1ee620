/**
 * @description
 * This file contains custom middleware for the HTTP router: bearer-token
 * authentication, account-status and role gates, per-scope rate limiting and
 * request metrics. Middlewares process requests before they reach the final
 * handler and attach the caller's identity to the request context.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: HS256 token verification.
 * - github.com/go-chi/chi/v5: Route pattern lookup for metrics labels.
 * - internal/ratelimit, internal/metrics: Sliding-window limiter and
 *   Prometheus collectors.
 */

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/metrics"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/ratelimit"
)

// IdentityContextKey is a custom type for the context key to avoid collisions.
type IdentityContextKey string

const identityKey IdentityContextKey = "identity"

// Identity is the authenticated caller as carried by the bearer token. Role
// and status are snapshots from token issuance; operations that must see the
// live account state re-read the user row.
type Identity struct {
	UserID string
	Role   domain.Role
	Status domain.UserStatus
}

// IsAdmin reports whether the token carries the admin role.
func (id Identity) IsAdmin() bool {
	return id.Role == domain.RoleAdmin
}

// identityFrom extracts the authenticated identity from the request context.
func identityFrom(r *http.Request) (Identity, bool) {
	ident, ok := r.Context().Value(identityKey).(Identity)
	return ident, ok
}

// parseToken validates an HS256 bearer token and returns the identity its
// claims describe.
func parseToken(tokenString string, secret []byte) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return Identity{}, err
	}
	if !token.Valid {
		return Identity{}, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("invalid token claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Identity{}, fmt.Errorf("subject claim missing")
	}

	ident := Identity{UserID: sub}
	if role, ok := claims["role"].(string); ok {
		ident.Role = domain.Role(role)
	}
	if status, ok := claims["status"].(string); ok {
		ident.Status = domain.UserStatus(status)
	}
	return ident, nil
}

// Authenticator creates a middleware that requires a valid bearer token and
// attaches the caller's identity to the request context.
func Authenticator(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, "Authorization header required")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				writeAuthError(w, "Invalid Authorization header format")
				return
			}

			ident, err := parseToken(tokenString, secret)
			if err != nil {
				writeAuthError(w, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthenticator attaches the caller's identity when a valid bearer
// token is present and lets anonymous requests through untouched. Endpoints
// open to the public but personalized for members use this.
func OptionalAuthenticator(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				next.ServeHTTP(w, r)
				return
			}

			if ident, err := parseToken(tokenString, secret); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), identityKey, ident))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireActive gates mutating member endpoints: the caller must be
// authenticated and the account must not be pending or blocked.
func RequireActive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := identityFrom(r)
		if !ok {
			writeAuthError(w, "Authentication required")
			return
		}
		if ident.Status != domain.UserActive {
			writeJSONError(w, http.StatusForbidden, "account is not active")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin gates the admin surface.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := identityFrom(r)
		if !ok {
			writeAuthError(w, "Authentication required")
			return
		}
		if !ident.IsAdmin() {
			writeJSONError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit enforces perMinute hits per caller on the wrapped routes. Each
// scope counts independently; authenticated callers are keyed by user id,
// anonymous ones by client IP.
func RateLimit(limiter *ratelimit.Limiter, scope string, perMinute int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":ip:" + clientIP(r)
			if ident, ok := identityFrom(r); ok {
				key = scope + ":user:" + ident.UserID
			}
			if !limiter.Enforce(key, perMinute) {
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestMetrics records request counts and latency per chi route pattern.
func RequestMetrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.HTTPRequests.WithLabelValues(r.Method, route, fmt.Sprintf("%dxx", status/100)).Inc()
			m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		})
	}
}

// clientIP extracts the client IP from the request, trusting proxy headers
// when present.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For can contain multiple IPs, take the first one
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndexByte(ip, ':'); idx >= 0 {
		return ip[:idx]
	}
	return ip
}

func writeAuthError(w http.ResponseWriter, message string) {
	writeJSONError(w, http.StatusUnauthorized, message)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
