package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/conductorhq/conductor/config"
)

type claimsCtxKey struct{}

// Authenticator validates bearer JWTs issued by an external identity
// provider against its published JWKS — conductor is a JWT consumer, never
// an issuer (grounded on hector's auth.MiddlewareWithExclusions, rebuilt on
// lestrrat-go/jwx/v2's JWKS cache since this module's AuthConfig is
// JWKS-URL-based rather than hector's static-key config).
type Authenticator struct {
	cfg   config.AuthConfig
	cache *jwk.Cache
}

// NewAuthenticator returns nil when auth is disabled, so callers can treat
// a nil *Authenticator as "no auth configured" without a separate check.
func NewAuthenticator(ctx context.Context, cfg config.AuthConfig) (*Authenticator, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	cache := jwk.NewCache(ctx)
	if err := cache.Register(cfg.JWKSURL); err != nil {
		return nil, fmt.Errorf("server: register jwks cache: %w", err)
	}
	if _, err := cache.Refresh(ctx, cfg.JWKSURL); err != nil {
		return nil, fmt.Errorf("server: fetch jwks from %s: %w", cfg.JWKSURL, err)
	}
	return &Authenticator{cfg: cfg, cache: cache}, nil
}

// Middleware validates the Authorization header against the JWKS, except
// for excludedPaths (health checks, the metrics endpoint, SSE preflight).
func (a *Authenticator) Middleware(excludedPaths map[string]bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil || excludedPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			tokenStr := strings.TrimPrefix(header, "Bearer ")
			if tokenStr == "" || tokenStr == header {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			set, err := a.cache.Get(r.Context(), a.cfg.JWKSURL)
			if err != nil {
				writeError(w, http.StatusServiceUnavailable, "jwks unavailable")
				return
			}

			token, err := jwt.Parse([]byte(tokenStr),
				jwt.WithKeySet(set),
				jwt.WithValidate(true),
				jwt.WithIssuer(a.cfg.Issuer),
				jwt.WithAudience(a.cfg.Audience),
			)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token: "+err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), claimsCtxKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the validated token claims an authenticated
// request carries, if any.
func ClaimsFromContext(ctx context.Context) (jwt.Token, bool) {
	tok, ok := ctx.Value(claimsCtxKey{}).(jwt.Token)
	return tok, ok
}
