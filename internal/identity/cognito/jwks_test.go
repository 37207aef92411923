package cognito

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testIssuer   = "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_TESTPOOL"
	testClientID = "test-client-id"
)

// jwksServer serves a mutable key set the way the pool publishes it. Swapping
// the keys mid-test simulates a key rotation.
type jwksServer struct {
	server *httptest.Server
	keys   map[string]*rsa.PrivateKey
	hits   int
}

func newJWKSServer(t *testing.T) *jwksServer {
	t.Helper()
	s := &jwksServer{keys: map[string]*rsa.PrivateKey{}}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits++
		doc := struct {
			Keys []jwk `json:"keys"`
		}{}
		for kid, key := range s.keys {
			doc.Keys = append(doc.Keys, jwk{
				Kid: kid,
				Kty: "RSA",
				N:   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *jwksServer) addKey(t *testing.T, kid string) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating RSA key: %v", err)
	}
	s.keys[kid] = key
	return key
}

func newTestVerifier(t *testing.T, jwks *jwksServer) *Verifier {
	t.Helper()
	v, err := NewVerifier(Config{
		ClientID: testClientID,
		Issuer:   testIssuer,
		JWKSURL:  jwks.server.URL,
	})
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	return v
}

// mintToken signs an RS256 token in the pool's access-token shape. overrides
// lets a test corrupt individual claims.
func mintToken(t *testing.T, key *rsa.PrivateKey, kid string, overrides map[string]any) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":       "pool-sub-123",
		"iss":       testIssuer,
		"token_use": "access",
		"client_id": testClientID,
		"username":  "ann@example.com",
		"iat":       time.Now().Unix(),
		"exp":       time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range overrides {
		claims[k] = v
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func TestVerifyAccessToken(t *testing.T) {
	jwks := newJWKSServer(t)
	key := jwks.addKey(t, "kid-1")
	v := newTestVerifier(t, jwks)

	ident, err := v.VerifyAccessToken(context.Background(), mintToken(t, key, "kid-1", nil))
	if err != nil {
		t.Fatalf("VerifyAccessToken() error = %v", err)
	}
	if ident.Sub != "pool-sub-123" {
		t.Errorf("Sub = %q, want pool-sub-123", ident.Sub)
	}
	if ident.Username != "ann@example.com" {
		t.Errorf("Username = %q, want ann@example.com", ident.Username)
	}
}

func TestVerifyAccessToken_CachesKeys(t *testing.T) {
	jwks := newJWKSServer(t)
	key := jwks.addKey(t, "kid-1")
	v := newTestVerifier(t, jwks)

	for range 3 {
		if _, err := v.VerifyAccessToken(context.Background(), mintToken(t, key, "kid-1", nil)); err != nil {
			t.Fatalf("VerifyAccessToken() error = %v", err)
		}
	}
	if jwks.hits != 1 {
		t.Errorf("JWKS fetched %d times for a known kid, want 1", jwks.hits)
	}
}

func TestVerifyAccessToken_KeyRotation(t *testing.T) {
	jwks := newJWKSServer(t)
	oldKey := jwks.addKey(t, "kid-old")
	v := newTestVerifier(t, jwks)

	if _, err := v.VerifyAccessToken(context.Background(), mintToken(t, oldKey, "kid-old", nil)); err != nil {
		t.Fatalf("VerifyAccessToken() with original key error = %v", err)
	}

	// Rotate: a token signed by a key the verifier has never seen must
	// trigger one refetch, then verify.
	newKey := jwks.addKey(t, "kid-new")
	if _, err := v.VerifyAccessToken(context.Background(), mintToken(t, newKey, "kid-new", nil)); err != nil {
		t.Fatalf("VerifyAccessToken() after rotation error = %v", err)
	}
	if jwks.hits != 2 {
		t.Errorf("JWKS fetched %d times, want 2 (initial + rotation)", jwks.hits)
	}
}

func TestVerifyAccessToken_UnknownKid(t *testing.T) {
	jwks := newJWKSServer(t)
	jwks.addKey(t, "kid-1")
	v := newTestVerifier(t, jwks)

	// Signed with a key the pool never published.
	rogue, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating RSA key: %v", err)
	}
	if _, err := v.VerifyAccessToken(context.Background(), mintToken(t, rogue, "kid-rogue", nil)); err == nil {
		t.Error("VerifyAccessToken() accepted a token with an unpublished kid")
	}
}

func TestVerifyAccessToken_RejectsIDToken(t *testing.T) {
	jwks := newJWKSServer(t)
	key := jwks.addKey(t, "kid-1")
	v := newTestVerifier(t, jwks)

	token := mintToken(t, key, "kid-1", map[string]any{"token_use": "id"})
	if _, err := v.VerifyAccessToken(context.Background(), token); err == nil {
		t.Error("VerifyAccessToken() accepted an id token")
	}
}

func TestVerifyAccessToken_RejectsOtherClient(t *testing.T) {
	jwks := newJWKSServer(t)
	key := jwks.addKey(t, "kid-1")
	v := newTestVerifier(t, jwks)

	token := mintToken(t, key, "kid-1", map[string]any{"client_id": "some-other-app"})
	if _, err := v.VerifyAccessToken(context.Background(), token); err == nil {
		t.Error("VerifyAccessToken() accepted a token for a different app client")
	}
}

func TestVerifyAccessToken_RejectsExpired(t *testing.T) {
	jwks := newJWKSServer(t)
	key := jwks.addKey(t, "kid-1")
	v := newTestVerifier(t, jwks)

	token := mintToken(t, key, "kid-1", map[string]any{
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	if _, err := v.VerifyAccessToken(context.Background(), token); err == nil {
		t.Error("VerifyAccessToken() accepted an expired token")
	}
}

func TestVerifyAccessToken_RejectsWrongIssuer(t *testing.T) {
	jwks := newJWKSServer(t)
	key := jwks.addKey(t, "kid-1")
	v := newTestVerifier(t, jwks)

	token := mintToken(t, key, "kid-1", map[string]any{
		"iss": "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_OTHERPOOL",
	})
	if _, err := v.VerifyAccessToken(context.Background(), token); err == nil {
		t.Error("VerifyAccessToken() accepted a token from a different pool")
	}
}

func TestVerifyAccessToken_RejectsMissingKid(t *testing.T) {
	jwks := newJWKSServer(t)
	key := jwks.addKey(t, "kid-1")
	v := newTestVerifier(t, jwks)

	claims := jwt.MapClaims{
		"sub": "pool-sub-123", "iss": testIssuer, "token_use": "access",
		"client_id": testClientID, "exp": time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	if _, err := v.VerifyAccessToken(context.Background(), signed); err == nil {
		t.Error("VerifyAccessToken() accepted a token with no kid header")
	}
}
