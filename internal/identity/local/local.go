// Package local is an in-process identity provider for development and
// tests.
//
// It honours the same contract as the Cognito gateway — signup with emailed
// confirmation code, password login returning a token triple, profile lookup
// by access token — but keeps accounts in memory, hashes passwords with
// bcrypt, and signs tokens with HS256 instead of the pool's RS256 keys.
// Since there is no email to send, the confirmation code is written to the
// server log.
//
// Nothing outside main wiring should care which provider is in play: the
// package implements both identity.Gateway and identity.TokenVerifier.
package local

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
	"golang.org/x/crypto/bcrypt"

	"github.com/refr-io/refr/internal/apperror"
	"github.com/refr-io/refr/internal/identity"
)

const (
	issuer = "refr-local"

	// tokenTTL matches Cognito's default access-token lifetime.
	tokenTTL = time.Hour

	// bcryptCost is deliberately below the production recommendation:
	// this provider only ever guards development accounts, and the lower
	// cost keeps test suites fast.
	bcryptCost = bcrypt.MinCost
)

// account is one registered development account.
type account struct {
	sub          string
	name         string
	email        string
	passwordHash string
	confirmCode  string
	confirmed    bool
}

// Provider is the in-memory identity provider.
//
// The mutex makes it safe under concurrent requests; this is provider state,
// not application state, so it does not violate the request-per-call model
// any more than Cognito's own user pool does.
type Provider struct {
	secret      []byte
	autoConfirm bool
	logger      *slog.Logger

	mu       sync.Mutex
	accounts map[string]*account // keyed by email
}

var (
	_ identity.Gateway       = (*Provider)(nil)
	_ identity.TokenVerifier = (*Provider)(nil)
)

// Options tunes provider behaviour.
type Options struct {
	// AutoConfirm skips the confirmation-code step: accounts are usable
	// immediately after SignUp. Handy for tests and local hacking.
	AutoConfirm bool
}

// New creates a Provider signing tokens with the given HMAC secret.
func New(secret string, opts Options, logger *slog.Logger) (*Provider, error) {
	if len(secret) < 16 {
		return nil, errors.New("local: signing secret must be at least 16 characters")
	}
	return &Provider{
		secret:      []byte(secret),
		autoConfirm: opts.AutoConfirm,
		logger:      logger,
		accounts:    map[string]*account{},
	}, nil
}

// SignUp registers an account and returns its generated subject id.
//
// Error messages mimic Cognito's wording so the browser client behaves the
// same against either provider.
func (p *Provider) SignUp(_ context.Context, name, email, password string) (string, error) {
	if len(password) < 8 {
		return "", apperror.Upstream("Password did not conform with policy: Password not long enough")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("local: hashing password: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.accounts[email]; exists {
		return "", apperror.Upstream("An account with the given email already exists.")
	}

	acct := &account{
		sub:          xid.New().String(),
		name:         name,
		email:        email,
		passwordHash: string(hash),
		confirmCode:  confirmationCode(),
		confirmed:    p.autoConfirm,
	}
	p.accounts[email] = acct

	if !p.autoConfirm {
		// No email in dev mode; the operator reads the code off the log.
		p.logger.Info("local identity: confirmation code issued",
			slog.String("email", email),
			slog.String("code", acct.confirmCode),
		)
	}

	return acct.sub, nil
}

// ConfirmSignUp checks the confirmation code.
func (p *Provider) ConfirmSignUp(_ context.Context, email, code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.accounts[email]
	if !ok {
		return apperror.Upstream("User does not exist.")
	}
	if acct.confirmed {
		return apperror.Upstream("User cannot be confirmed. Current status is CONFIRMED")
	}
	if code != acct.confirmCode {
		return apperror.Upstream("Invalid verification code provided, please try again.")
	}

	acct.confirmed = true
	return nil
}

// Login verifies the password and issues the token triple.
func (p *Provider) Login(_ context.Context, email, password string) (*identity.TokenSet, error) {
	p.mu.Lock()
	acct, ok := p.accounts[email]
	p.mu.Unlock()

	if !ok {
		return nil, apperror.Upstream("Incorrect username or password.")
	}
	if !acct.confirmed {
		return nil, apperror.Upstream("User is not confirmed.")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.passwordHash), []byte(password)); err != nil {
		return nil, apperror.Upstream("Incorrect username or password.")
	}

	access, err := p.sign(acct, "access")
	if err != nil {
		return nil, err
	}
	id, err := p.sign(acct, "id")
	if err != nil {
		return nil, err
	}

	return &identity.TokenSet{
		AccessToken: access,
		IDToken:     id,
		// Refresh is opaque and never honoured by this provider; it only
		// exists so the browser client's storage logic works unchanged.
		RefreshToken: xid.New().String(),
		ExpiresIn:    int(tokenTTL.Seconds()),
		TokenType:    "Bearer",
	}, nil
}

// GetUser resolves an access token to the profile, in the provider wire
// shape (Username + UserAttributes list).
func (p *Provider) GetUser(ctx context.Context, accessToken string) (*identity.Profile, error) {
	ident, err := p.VerifyAccessToken(ctx, accessToken)
	if err != nil {
		return nil, apperror.Upstream("Invalid Access Token")
	}

	p.mu.Lock()
	acct, ok := p.accounts[ident.Username]
	p.mu.Unlock()
	if !ok {
		return nil, apperror.Upstream("User does not exist.")
	}

	return &identity.Profile{
		Username: acct.email,
		Attributes: []identity.Attribute{
			{Name: "sub", Value: acct.sub},
			{Name: "name", Value: acct.name},
			{Name: "email", Value: acct.email},
		},
	}, nil
}

// localClaims mirrors the Cognito access-token payload so the verifier-side
// checks stay identical across providers.
type localClaims struct {
	jwt.RegisteredClaims
	TokenUse string `json:"token_use"`
	Username string `json:"username"`
}

func (p *Provider) sign(acct *account, tokenUse string) (string, error) {
	now := time.Now()
	claims := localClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acct.sub,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
		TokenUse: tokenUse,
		Username: acct.email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("local: signing token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken validates an HS256 token issued by this provider.
func (p *Provider) VerifyAccessToken(_ context.Context, tokenStr string) (*identity.Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&localClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return p.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("local: invalid token: %w", err)
	}

	claims, ok := token.Claims.(*localClaims)
	if !ok || !token.Valid {
		return nil, errors.New("local: invalid token claims")
	}
	if claims.TokenUse != "access" {
		return nil, fmt.Errorf("local: token_use is %q, want access", claims.TokenUse)
	}
	if claims.Subject == "" {
		return nil, errors.New("local: token has no subject")
	}

	return &identity.Identity{Sub: claims.Subject, Username: claims.Username}, nil
}

// confirmationCode returns a 6-digit code, zero-padded like Cognito's.
func confirmationCode() string {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing means the platform is broken; fall back to
		// something still usable for dev.
		return "000000"
	}
	n := binary.BigEndian.Uint32(buf[:]) % 1000000
	return fmt.Sprintf("%06d", n)
}
