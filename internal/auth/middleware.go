// Package auth provides the HTTP authorization filter: bearer-token
// extraction, verification, and request-context identity plumbing.
//
// The filter is split in two, matching the two policies routes need:
//
//   - Authenticate runs on the whole /api subtree. A request with no
//     Authorization header passes through untouched (the route decides what
//     anonymous means). A request WITH a bearer token gets it verified, and
//     a bad token is rejected with 401 right here — an invalid token never
//     falls through to anonymous handling.
//   - RequireIdentity guards the protected subtree and rejects any request
//     whose identity was not resolved above.
//
// The filter never touches the store; its only side effect is attaching the
// resolved identity (and the raw token, which the profile endpoint forwards
// to the identity provider) to the request context.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/refr-io/refr/internal/identity"
)

// contextKey is an unexported type for this package's context keys, so no
// other package can read or shadow the values.
type contextKey int

const (
	identityKey contextKey = iota
	rawTokenKey
)

// Authenticate returns the token-inspection middleware.
func Authenticate(verifier identity.TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				// No bearer token: continue with no identity attached.
				// RequireIdentity (or the handler) decides whether that
				// is acceptable for this route.
				next.ServeHTTP(w, r)
				return
			}

			token := strings.TrimPrefix(header, "Bearer ")

			ident, err := verifier.VerifyAccessToken(r.Context(), token)
			if err != nil {
				// Present but invalid is a hard failure, never treated
				// as anonymous.
				logger.Warn("token verification failed",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"Invalid token"}`))
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, ident)
			ctx = context.WithValue(ctx, rawTokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireIdentity rejects requests that reached this point without a
// resolved identity. Mount it on every referral route; signup/login stay
// outside it since no token exists yet.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Authentication required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFromContext returns the resolved identity, or (nil, false) on an
// anonymous request.
func IdentityFromContext(ctx context.Context) (*identity.Identity, bool) {
	ident, ok := ctx.Value(identityKey).(*identity.Identity)
	return ident, ok && ident != nil
}

// RawTokenFromContext returns the bearer token the identity was resolved
// from. The profile endpoint needs it to call the identity provider on the
// caller's behalf.
func RawTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(rawTokenKey).(string)
	return token, ok && token != ""
}
