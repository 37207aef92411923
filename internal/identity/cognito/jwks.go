package cognito

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/refr-io/refr/internal/identity"
)

// Verifier checks Cognito access tokens locally against the pool's published
// signing keys, with no per-request round trip to the provider.
//
// Cognito signs tokens with RS256 and publishes the public keys as a JWKS
// document at <issuer>/.well-known/jwks.json. Keys rotate rarely; we cache
// them by kid and refetch only when a token references a kid we have not
// seen, so a rotation costs one extra fetch rather than a failure window.
type Verifier struct {
	issuer   string
	jwksURL  string
	clientID string
	http     *http.Client

	mu   sync.RWMutex
	keys map[string]*rsa.PublicKey
}

var _ identity.TokenVerifier = (*Verifier)(nil)

// NewVerifier builds a Verifier for the pool in cfg.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("cognito: client id is required")
	}
	issuer := cfg.Issuer
	if issuer == "" {
		if cfg.Region == "" || cfg.UserPoolID == "" {
			return nil, errors.New("cognito: region and user pool id are required")
		}
		issuer = fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", cfg.Region, cfg.UserPoolID)
	}
	jwksURL := cfg.JWKSURL
	if jwksURL == "" {
		jwksURL = issuer + "/.well-known/jwks.json"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Verifier{
		issuer:   issuer,
		jwksURL:  jwksURL,
		clientID: cfg.ClientID,
		http:     httpClient,
		keys:     map[string]*rsa.PublicKey{},
	}, nil
}

// accessClaims is the payload of a Cognito access token. Access tokens carry
// the app-client id in "client_id" (ID tokens use "aud" instead).
type accessClaims struct {
	jwt.RegisteredClaims
	TokenUse string `json:"token_use"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
}

// VerifyAccessToken parses and verifies tokenStr.
//
// Checks: RS256 signature against a pool key, issuer, expiry, token_use ==
// "access" (an ID token must not authorize API calls), and that the token
// was issued to this app client.
func (v *Verifier) VerifyAccessToken(ctx context.Context, tokenStr string) (*identity.Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&accessClaims{},
		func(token *jwt.Token) (any, error) {
			kid, _ := token.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("token has no key id")
			}
			return v.key(ctx, kid)
		},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("cognito: token expired")
		}
		return nil, fmt.Errorf("cognito: invalid token: %w", err)
	}

	claims, ok := token.Claims.(*accessClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("cognito: invalid token claims")
	}
	if claims.TokenUse != "access" {
		return nil, fmt.Errorf("cognito: token_use is %q, want access", claims.TokenUse)
	}
	if claims.ClientID != v.clientID {
		return nil, fmt.Errorf("cognito: token issued for a different client")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("cognito: token has no subject")
	}

	return &identity.Identity{Sub: claims.Subject, Username: claims.Username}, nil
}

// key returns the public key for kid, fetching the JWKS when the kid is
// unknown (first use, or a key rotation).
func (v *Verifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	v.mu.RUnlock()
	if ok {
		return key, nil
	}

	if err := v.refresh(ctx); err != nil {
		return nil, err
	}

	v.mu.RLock()
	key, ok = v.keys[kid]
	v.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no signing key with kid %q", kid)
	}
	return key, nil
}

// jwk is one entry of the JWKS document. Cognito publishes RSA keys with
// base64url-encoded modulus and exponent.
type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (v *Verifier) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("building JWKS request: %w", err)
	}

	resp, err := v.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetching JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decoding JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := k.publicKey()
		if err != nil {
			return fmt.Errorf("parsing JWKS key %s: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}

	v.mu.Lock()
	v.keys = keys
	v.mu.Unlock()
	return nil
}

func (k jwk) publicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	if e == 0 {
		return nil, errors.New("zero exponent")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}
