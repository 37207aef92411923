package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/refr-io/refr/internal/apperror"
	"github.com/refr-io/refr/internal/identity"
	"github.com/refr-io/refr/internal/model"
	"github.com/refr-io/refr/internal/repository"
)

// AccountService bridges signup/login to the identity gateway and keeps the
// local user mirror in sync.
//
// The gateway owns the account; we only mirror (sub, name, email) so list
// queries can join a display name. The mirror row is written at signup, or
// lazily on first login for accounts that predate this backend (the
// reconciliation path).
type AccountService struct {
	gateway identity.Gateway
	users   repository.UserRepository
	logger  *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(gateway identity.Gateway, users repository.UserRepository, logger *slog.Logger) *AccountService {
	return &AccountService{
		gateway: gateway,
		users:   users,
		logger:  logger,
	}
}

// Register forwards the signup to the gateway and mirrors the new account
// locally. Gateway failures ("user exists", "weak password", ...) abort
// before any local write and are surfaced verbatim.
func (s *AccountService) Register(ctx context.Context, name, email, password string) error {
	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return apperror.MissingFields(missing...)
	}

	sub, err := s.gateway.SignUp(ctx, name, email, password)
	if err != nil {
		return err
	}

	user := &model.User{Sub: sub, Name: name, Email: email}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// The provider account exists but the mirror write failed. The
		// login reconciliation path will retry the mirror, so log the
		// cause and report a storage failure.
		s.logger.Error("failed to mirror user at signup",
			slog.String("sub", sub),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("mirroring user %s: %w", sub, err)
	}

	s.logger.Info("user registered", slog.String("sub", sub))
	return nil
}

// Confirm forwards the emailed confirmation code to the gateway. No local
// state changes.
func (s *AccountService) Confirm(ctx context.Context, email, code string) error {
	var missing []string
	if email == "" {
		missing = append(missing, "email")
	}
	if code == "" {
		missing = append(missing, "confirmationCode")
	}
	if len(missing) > 0 {
		return apperror.MissingFields(missing...)
	}

	return s.gateway.ConfirmSignUp(ctx, email, code)
}

// Login exchanges credentials for the token triple and reconciles the local
// mirror: if this subject has no users row yet (account created before this
// backend existed, or the signup-time mirror write failed), fetch the
// profile from the gateway and insert it now.
func (s *AccountService) Login(ctx context.Context, email, password string) (*identity.TokenSet, error) {
	var missing []string
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, apperror.MissingFields(missing...)
	}

	tokens, err := s.gateway.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	// Reconciliation must not fail the login: the user has a valid token
	// triple either way. A missed mirror only degrades list display.
	if err := s.reconcile(ctx, tokens.AccessToken); err != nil {
		s.logger.Error("user mirror reconciliation failed",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
	}

	return tokens, nil
}

func (s *AccountService) reconcile(ctx context.Context, accessToken string) error {
	profile, err := s.gateway.GetUser(ctx, accessToken)
	if err != nil {
		return err
	}

	sub := profile.Get("sub")
	if sub == "" {
		return errors.New("gateway profile has no sub attribute")
	}

	_, err = s.users.GetUserBySub(ctx, sub)
	if err == nil {
		return nil // already mirrored
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return err
	}

	user := &model.User{
		Sub:   sub,
		Name:  profile.Get("name"),
		Email: profile.Get("email"),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return err
	}

	s.logger.Info("user mirrored on first login", slog.String("sub", sub))
	return nil
}

// ProfileByToken returns the gateway's view of the account behind an access
// token, untranslated.
func (s *AccountService) ProfileByToken(ctx context.Context, accessToken string) (*identity.Profile, error) {
	return s.gateway.GetUser(ctx, accessToken)
}
