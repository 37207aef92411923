// Package identity defines the contract with the hosted identity provider.
//
// The provider owns everything about accounts: credentials, confirmation
// codes, token issuance, token signing keys. This application only ever asks
// it two kinds of questions: "do this account operation for me" (Gateway)
// and "who is this access token for" (TokenVerifier).
//
// Two implementations exist: identity/cognito talks to a real AWS Cognito
// user pool, identity/local is an in-process provider for development and
// tests. The rest of the application cannot tell them apart.
package identity

import "context"

// Identity is the resolved caller of a request: the minimum this system
// needs to scope referral ownership.
type Identity struct {
	// Sub is the provider-assigned stable subject id.
	Sub string
	// Username is the provider-side username (the login email for this
	// pool configuration).
	Username string
}

// TokenSet is the token triple returned by a successful login. Field names
// match the provider's AuthenticationResult wire shape because the login
// endpoint returns them to the browser untranslated.
type TokenSet struct {
	AccessToken  string `json:"AccessToken"`
	IDToken      string `json:"IdToken"`
	RefreshToken string `json:"RefreshToken"`
	ExpiresIn    int    `json:"ExpiresIn"`
	TokenType    string `json:"TokenType"`
}

// Attribute is a single provider profile attribute, e.g. {Name:"email",
// Value:"a@x.com"}.
type Attribute struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

// Profile is the provider's view of an account, in the provider's own GetUser
// response shape. The profile endpoint passes it through to the client as-is.
type Profile struct {
	Username   string      `json:"Username"`
	Attributes []Attribute `json:"UserAttributes"`
}

// Get returns the value of the named attribute, or "" when absent.
func (p *Profile) Get(name string) string {
	for _, a := range p.Attributes {
		if a.Name == name {
			return a.Value
		}
	}
	return ""
}

// Gateway is the account-operations side of the provider contract.
//
// Every method that can fail on the provider side returns an
// apperror.ErrUpstream error carrying the provider's message verbatim —
// "user exists", "weak password" and friends are surfaced to the caller, not
// reinterpreted here.
type Gateway interface {
	// SignUp registers a new account and returns the provider-assigned
	// subject id. The provider independently emails a confirmation code.
	SignUp(ctx context.Context, name, email, password string) (sub string, err error)

	// ConfirmSignUp submits the emailed confirmation code. Pure
	// pass-through; no local state is involved.
	ConfirmSignUp(ctx context.Context, email, code string) error

	// Login exchanges credentials for the token triple.
	Login(ctx context.Context, email, password string) (*TokenSet, error)

	// GetUser resolves an access token to the account's profile
	// attributes.
	GetUser(ctx context.Context, accessToken string) (*Profile, error)
}

// TokenVerifier checks an access token's signature and claims without a
// round trip to the provider, using the provider's published signing keys.
type TokenVerifier interface {
	// VerifyAccessToken returns the token's identity, or an error when the
	// token is expired, malformed, or issued for a different audience.
	VerifyAccessToken(ctx context.Context, token string) (*Identity, error)
}
