// Package config loads and validates the process configuration.
//
// All configuration comes from environment variables, parsed into one
// explicit struct at startup. Nothing reads the environment ad hoc later:
// if a required value is missing the process fails fast here, before it has
// accepted a single request.
package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the full process configuration.
type Config struct {
	Port      int    `env:"PORT" envDefault:"8080"`
	DBPath    string `env:"DB_PATH" envDefault:"data/refr.db"`
	StaticDir string `env:"STATIC_DIR"` // empty disables static serving
	LogLevel  int    `env:"LOG_LEVEL" envDefault:"0"`

	Cognito Cognito `envPrefix:"COGNITO_"`
	Local   Local   `envPrefix:"LOCAL_AUTH_"`
}

// Cognito holds the user-pool coordinates. Leave unset to run without
// Cognito (requires the local provider instead).
type Cognito struct {
	Region       string `env:"REGION"`
	UserPoolID   string `env:"USER_POOL_ID"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

// Configured reports whether enough is set to talk to a real user pool.
func (c Cognito) Configured() bool {
	return c.Region != "" && c.UserPoolID != "" && c.ClientID != ""
}

// Local configures the in-process development identity provider.
type Local struct {
	Enabled     bool   `env:"ENABLED" envDefault:"false"`
	Secret      string `env:"SECRET"`
	AutoConfirm bool   `env:"AUTO_CONFIRM" envDefault:"false"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid PORT %d", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("config: DB_PATH must not be empty")
	}

	// Exactly one identity provider must be usable.
	switch {
	case c.Cognito.Configured():
		// ClientSecret is optional (public app clients have none).
	case c.Local.Enabled:
		if len(c.Local.Secret) < 16 {
			return errors.New("config: LOCAL_AUTH_SECRET must be at least 16 characters")
		}
	default:
		return errors.New("config: identity provider not configured: set COGNITO_REGION/COGNITO_USER_POOL_ID/COGNITO_CLIENT_ID or LOCAL_AUTH_ENABLED=true")
	}

	return nil
}
