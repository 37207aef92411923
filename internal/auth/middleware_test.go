package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/refr-io/refr/internal/apperror"
	"github.com/refr-io/refr/internal/identity"
)

// stubVerifier accepts exactly one token string and resolves it to a fixed
// identity; everything else is invalid.
type stubVerifier struct {
	validToken string
	ident      identity.Identity
}

func (s *stubVerifier) VerifyAccessToken(_ context.Context, token string) (*identity.Identity, error) {
	if token != s.validToken {
		return nil, apperror.Unauthenticated("Invalid token")
	}
	ident := s.ident
	return &ident, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// capture records what the downstream handler saw, so tests can assert on
// both the response and the request context.
type capture struct {
	called   bool
	ident    *identity.Identity
	hasIdent bool
	token    string
	hasToken bool
}

func captureHandler(c *capture) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.called = true
		c.ident, c.hasIdent = IdentityFromContext(r.Context())
		c.token, c.hasToken = RawTokenFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate_NoHeaderPassesThroughAnonymous(t *testing.T) {
	verifier := &stubVerifier{validToken: "good"}
	var c capture
	handler := Authenticate(verifier, testLogger())(captureHandler(&c))

	req := httptest.NewRequest(http.MethodGet, "/api/referrals", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !c.called {
		t.Fatal("downstream handler not called")
	}
	if c.hasIdent {
		t.Error("anonymous request got an identity attached")
	}
	if c.hasToken {
		t.Error("anonymous request got a raw token attached")
	}
}

func TestAuthenticate_NonBearerSchemePassesThrough(t *testing.T) {
	verifier := &stubVerifier{validToken: "good"}
	var c capture
	handler := Authenticate(verifier, testLogger())(captureHandler(&c))

	req := httptest.NewRequest(http.MethodGet, "/api/referrals", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !c.called {
		t.Fatal("downstream handler not called")
	}
	if c.hasIdent {
		t.Error("non-bearer request got an identity attached")
	}
}

func TestAuthenticate_InvalidTokenRejected(t *testing.T) {
	verifier := &stubVerifier{validToken: "good"}
	var c capture
	handler := Authenticate(verifier, testLogger())(captureHandler(&c))

	req := httptest.NewRequest(http.MethodGet, "/api/referrals", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if c.called {
		t.Error("invalid token fell through to the downstream handler")
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body["error"] != "Invalid token" {
		t.Errorf(`body error = %q, want "Invalid token"`, body["error"])
	}
}

func TestAuthenticate_ValidTokenAttachesIdentity(t *testing.T) {
	verifier := &stubVerifier{
		validToken: "good",
		ident:      identity.Identity{Sub: "sub-1", Username: "ann@example.com"},
	}
	var c capture
	handler := Authenticate(verifier, testLogger())(captureHandler(&c))

	req := httptest.NewRequest(http.MethodGet, "/api/referrals", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !c.hasIdent {
		t.Fatal("identity not attached")
	}
	if c.ident.Sub != "sub-1" {
		t.Errorf("ident.Sub = %q, want %q", c.ident.Sub, "sub-1")
	}
	if !c.hasToken || c.token != "good" {
		t.Errorf("raw token = %q (ok=%v), want %q", c.token, c.hasToken, "good")
	}
}

func TestRequireIdentity_RejectsAnonymous(t *testing.T) {
	var c capture
	handler := RequireIdentity(captureHandler(&c))

	req := httptest.NewRequest(http.MethodGet, "/api/referrals", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if c.called {
		t.Error("anonymous request fell through RequireIdentity")
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body["error"] != "Authentication required" {
		t.Errorf(`body error = %q, want "Authentication required"`, body["error"])
	}
}

func TestRequireIdentity_PassesAuthenticated(t *testing.T) {
	verifier := &stubVerifier{
		validToken: "good",
		ident:      identity.Identity{Sub: "sub-1"},
	}
	var c capture
	handler := Authenticate(verifier, testLogger())(RequireIdentity(captureHandler(&c)))

	req := httptest.NewRequest(http.MethodGet, "/api/referrals", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !c.called {
		t.Error("authenticated request did not reach the handler")
	}
}
