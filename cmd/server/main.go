// Package main is the entry point for the refr server.
//
// Its job is deliberately small: load configuration, build the logger, pick
// an identity provider, and hand everything to internal/server. All real
// logic lives in the internal packages.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/refr-io/refr/internal/config"
	"github.com/refr-io/refr/internal/identity"
	"github.com/refr-io/refr/internal/identity/cognito"
	"github.com/refr-io/refr/internal/identity/local"
	"github.com/refr-io/refr/internal/server"
)

func main() {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.Level(cfg.LogLevel),
	}))

	// Ensure the database directory exists before sqlite opens the file.
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	gateway, verifier, err := buildIdentity(cfg, logger)
	if err != nil {
		logger.Error("identity provider setup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger, gateway, verifier)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// buildIdentity selects the identity provider: a configured Cognito user
// pool wins; otherwise the in-process development provider. config.Load has
// already guaranteed at least one is usable.
func buildIdentity(cfg *config.Config, logger *slog.Logger) (identity.Gateway, identity.TokenVerifier, error) {
	if cfg.Cognito.Configured() {
		cc := cognito.Config{
			Region:       cfg.Cognito.Region,
			UserPoolID:   cfg.Cognito.UserPoolID,
			ClientID:     cfg.Cognito.ClientID,
			ClientSecret: cfg.Cognito.ClientSecret,
		}
		gateway, err := cognito.New(cc)
		if err != nil {
			return nil, nil, err
		}
		verifier, err := cognito.NewVerifier(cc)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using Cognito identity provider",
			slog.String("region", cfg.Cognito.Region),
			slog.String("userPool", cfg.Cognito.UserPoolID),
		)
		return gateway, verifier, nil
	}

	provider, err := local.New(cfg.Local.Secret, local.Options{AutoConfirm: cfg.Local.AutoConfirm}, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Warn("using local development identity provider; accounts are in-memory and lost on restart")
	return provider, provider, nil
}
