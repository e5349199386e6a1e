package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/quizhub/rewards-hub/pkg/apikey"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// DefaultAPIKeyHeader is the header carrying the admin API key.
const DefaultAPIKeyHeader = "X-API-Key"

// APIKeyQueryParam is the fallback query parameter for clients that
// cannot set headers (external cron services, mostly).
const APIKeyQueryParam = "api_key"

// KeyAuth authenticates admin requests against a bcrypt key hash.
// The key is accepted from the header, the api_key query parameter, or
// a Bearer token, checked in that order.
type KeyAuth struct {
	verifier   *apikey.Verifier
	headerName string
}

// NewKeyAuth creates a new key authenticator.
func NewKeyAuth(verifier *apikey.Verifier, headerName string) *KeyAuth {
	if headerName == "" {
		headerName = DefaultAPIKeyHeader
	}
	return &KeyAuth{verifier: verifier, headerName: headerName}
}

// ExtractKey pulls the presented key out of the request.
func (a *KeyAuth) ExtractKey(r *http.Request) string {
	if key := r.Header.Get(a.headerName); key != "" {
		return key
	}
	if key := r.URL.Query().Get(APIKeyQueryParam); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// Verify checks the key presented on the request.
func (a *KeyAuth) Verify(r *http.Request) error {
	return a.verifier.Verify(a.ExtractKey(r))
}

// Middleware rejects requests without a valid key before the wrapped
// handler runs, so unauthenticated requests never reach a side effect.
func (a *KeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.Verify(r); err != nil {
			status := http.StatusUnauthorized
			code := "invalid_api_key"
			if err == apikey.ErrMissingKey {
				code = "missing_api_key"
			}
			if err == apikey.ErrNotConfigured {
				status = http.StatusForbidden
				code = "admin_api_disabled"
			}
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":"` + code + `","message":"` + err.Error() + `"}}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// TIMEOUT MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// TimeoutMiddleware adds a timeout to request contexts.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SECURITY HEADERS MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// SecurityHeadersMiddleware adds security-related headers.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST SIZE LIMIT MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// RequestSizeLimitMiddleware limits the size of request bodies.
func RequestSizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, `{"error":"payload_too_large","message":"Request body too large"}`,
					http.StatusRequestEntityTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN BUILDER
// ══════════════════════════════════════════════════════════════════════════════

// MiddlewareFunc is a function that wraps an http.Handler.
type MiddlewareFunc func(http.Handler) http.Handler

// Chain chains multiple middleware functions.
func Chain(middlewares ...MiddlewareFunc) MiddlewareFunc {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// ChainHandler chains middleware and wraps a final handler.
func ChainHandler(handler http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	return Chain(middlewares...)(handler)
}
