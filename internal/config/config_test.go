package config

import (
	"strings"
	"testing"
)

// setCognitoEnv sets the minimum environment for a valid Cognito config.
// t.Setenv restores everything afterwards.
func setCognitoEnv(t *testing.T) {
	t.Helper()
	t.Setenv("COGNITO_REGION", "us-east-1")
	t.Setenv("COGNITO_USER_POOL_ID", "us-east-1_TESTPOOL")
	t.Setenv("COGNITO_CLIENT_ID", "test-client-id")
}

func TestLoad_Defaults(t *testing.T) {
	setCognitoEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.DBPath != "data/refr.db" {
		t.Errorf("DBPath = %q, want data/refr.db", cfg.DBPath)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setCognitoEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DB_PATH", "/tmp/test.db")
	t.Setenv("COGNITO_CLIENT_SECRET", "shhh")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want /tmp/test.db", cfg.DBPath)
	}
	if cfg.Cognito.ClientSecret != "shhh" {
		t.Errorf("ClientSecret = %q", cfg.Cognito.ClientSecret)
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	setCognitoEnv(t)
	t.Setenv("PORT", "70000")

	if _, err := Load(); err == nil {
		t.Error("Load() accepted an out-of-range port")
	}
}

// clearProviderEnv blanks every provider variable so ambient environment
// cannot leak into provider-selection tests.
func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"COGNITO_REGION", "COGNITO_USER_POOL_ID", "COGNITO_CLIENT_ID",
		"COGNITO_CLIENT_SECRET", "LOCAL_AUTH_ENABLED", "LOCAL_AUTH_SECRET",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_NoProviderConfigured(t *testing.T) {
	// Neither Cognito coordinates nor the local provider: refuse to start.
	clearProviderEnv(t)
	_, err := Load()
	if err == nil {
		t.Fatal("Load() accepted a config with no identity provider")
	}
	if !strings.Contains(err.Error(), "identity provider not configured") {
		t.Errorf("error = %q, want provider guidance", err)
	}
}

func TestLoad_PartialCognitoIsNotConfigured(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("COGNITO_REGION", "us-east-1")
	// Pool id and client id missing.

	if _, err := Load(); err == nil {
		t.Error("Load() accepted a partially configured Cognito pool")
	}
}

func TestLoad_LocalProvider(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("LOCAL_AUTH_ENABLED", "true")
	t.Setenv("LOCAL_AUTH_SECRET", "0123456789abcdef")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cognito.Configured() {
		t.Error("Cognito.Configured() = true with no pool set")
	}
	if !cfg.Local.Enabled {
		t.Error("Local.Enabled = false")
	}
}

func TestLoad_LocalProviderShortSecret(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("LOCAL_AUTH_ENABLED", "true")
	t.Setenv("LOCAL_AUTH_SECRET", "short")

	if _, err := Load(); err == nil {
		t.Error("Load() accepted a short local signing secret")
	}
}
