// Package cognito implements the identity contract against an AWS Cognito
// user pool.
//
// Cognito's control-plane API is plain JSON over HTTPS: every operation is a
// POST to the regional endpoint with an X-Amz-Target header naming the
// operation. The operations this application uses (SignUp, ConfirmSignUp,
// InitiateAuth, GetUser) authenticate with the pool's app-client id and
// secret hash, not with AWS request signing, so a regular http.Client is all
// we need.
package cognito

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/refr-io/refr/internal/apperror"
	"github.com/refr-io/refr/internal/identity"
)

// targetPrefix is the service name Cognito expects in X-Amz-Target.
const targetPrefix = "AWSCognitoIdentityProviderService."

// Config holds the user-pool coordinates. Endpoint, Issuer and JWKSURL are
// derived from Region/UserPoolID when left empty; tests point them at an
// httptest server.
type Config struct {
	Region       string
	UserPoolID   string
	ClientID     string
	ClientSecret string // empty when the app client has no secret

	Endpoint string
	Issuer   string
	JWKSURL  string

	HTTPClient *http.Client
}

// Client talks to the Cognito IdP API. It implements identity.Gateway.
type Client struct {
	cfg      Config
	endpoint string
	http     *http.Client
}

var _ identity.Gateway = (*Client)(nil)

// New validates the pool coordinates and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("cognito: client id is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.Region == "" {
			return nil, errors.New("cognito: region is required")
		}
		endpoint = fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/", cfg.Region)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{cfg: cfg, endpoint: endpoint, http: httpClient}, nil
}

// secretHash computes the SECRET_HASH parameter Cognito requires when the
// app client has a secret: base64(HMAC-SHA256(secret, username+clientID)).
func (c *Client) secretHash(username string) string {
	if c.cfg.ClientSecret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(c.cfg.ClientSecret))
	mac.Write([]byte(username + c.cfg.ClientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// apiError is Cognito's error body. The __type is either a bare exception
// name or a fully-qualified "com.amazon...#UsernameExistsException".
type apiError struct {
	Type     string `json:"__type"`
	Message  string `json:"message"`
	MessageA string `json:"Message"` // some operations capitalise the key
}

func (e *apiError) text() string {
	if e.Message != "" {
		return e.Message
	}
	if e.MessageA != "" {
		return e.MessageA
	}
	if i := strings.LastIndexByte(e.Type, '#'); i >= 0 {
		return e.Type[i+1:]
	}
	return e.Type
}

// call POSTs one Cognito operation and decodes the response into out.
//
// A non-200 response becomes an apperror.Upstream carrying Cognito's own
// message verbatim: "User already exists", "Invalid verification code
// provided" and so on are the contract the browser client displays.
func (c *Client) call(ctx context.Context, op string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("cognito: encoding %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("cognito: building %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-amz-json-1.1")
	req.Header.Set("X-Amz-Target", targetPrefix+op)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cognito: calling %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.text() == "" {
			return apperror.Upstream(fmt.Sprintf("identity provider returned status %d", resp.StatusCode))
		}
		return apperror.Upstream(apiErr.text())
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("cognito: decoding %s response: %w", op, err)
		}
	}
	return nil
}

// SignUp registers a new account in the user pool. The email doubles as the
// username; Cognito assigns the sub and emails the confirmation code itself.
func (c *Client) SignUp(ctx context.Context, name, email, password string) (string, error) {
	req := struct {
		ClientID       string               `json:"ClientId"`
		SecretHash     string               `json:"SecretHash,omitempty"`
		Username       string               `json:"Username"`
		Password       string               `json:"Password"`
		UserAttributes []identity.Attribute `json:"UserAttributes"`
	}{
		ClientID:   c.cfg.ClientID,
		SecretHash: c.secretHash(email),
		Username:   email,
		Password:   password,
		UserAttributes: []identity.Attribute{
			{Name: "name", Value: name},
			{Name: "email", Value: email},
		},
	}

	var resp struct {
		UserSub string `json:"UserSub"`
	}
	if err := c.call(ctx, "SignUp", req, &resp); err != nil {
		return "", err
	}
	if resp.UserSub == "" {
		return "", apperror.Upstream("identity provider did not return a subject id")
	}
	return resp.UserSub, nil
}

// ConfirmSignUp forwards the emailed confirmation code.
func (c *Client) ConfirmSignUp(ctx context.Context, email, code string) error {
	req := struct {
		ClientID         string `json:"ClientId"`
		SecretHash       string `json:"SecretHash,omitempty"`
		Username         string `json:"Username"`
		ConfirmationCode string `json:"ConfirmationCode"`
	}{
		ClientID:         c.cfg.ClientID,
		SecretHash:       c.secretHash(email),
		Username:         email,
		ConfirmationCode: code,
	}
	return c.call(ctx, "ConfirmSignUp", req, nil)
}

// Login runs the USER_PASSWORD_AUTH flow and returns the token triple.
//
// SRP would avoid sending the password to the pool at the cost of a
// challenge-response round trip; this deployment uses the simpler password
// flow as its canonical login contract.
func (c *Client) Login(ctx context.Context, email, password string) (*identity.TokenSet, error) {
	params := map[string]string{
		"USERNAME": email,
		"PASSWORD": password,
	}
	if hash := c.secretHash(email); hash != "" {
		params["SECRET_HASH"] = hash
	}

	req := struct {
		AuthFlow       string            `json:"AuthFlow"`
		ClientID       string            `json:"ClientId"`
		AuthParameters map[string]string `json:"AuthParameters"`
	}{
		AuthFlow:       "USER_PASSWORD_AUTH",
		ClientID:       c.cfg.ClientID,
		AuthParameters: params,
	}

	var resp struct {
		AuthenticationResult identity.TokenSet `json:"AuthenticationResult"`
		ChallengeName        string            `json:"ChallengeName"`
	}
	if err := c.call(ctx, "InitiateAuth", req, &resp); err != nil {
		return nil, err
	}
	if resp.AuthenticationResult.AccessToken == "" {
		// e.g. NEW_PASSWORD_REQUIRED; nothing in this application can
		// answer a challenge.
		return nil, apperror.Upstream(fmt.Sprintf("login requires unsupported challenge %q", resp.ChallengeName))
	}
	return &resp.AuthenticationResult, nil
}

// GetUser resolves an access token to the account's profile attributes.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*identity.Profile, error) {
	req := struct {
		AccessToken string `json:"AccessToken"`
	}{AccessToken: accessToken}

	var profile identity.Profile
	if err := c.call(ctx, "GetUser", req, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}
