// Package service contains the business logic layer: validation, ownership
// rules, and orchestration between the identity gateway and the store.
//
// Handlers parse HTTP and translate errors; services know nothing about
// HTTP; repositories know nothing but SQL. The services receive their
// dependencies as interfaces, so tests substitute in-memory fakes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/refr-io/refr/internal/apperror"
	"github.com/refr-io/refr/internal/identity"
	"github.com/refr-io/refr/internal/model"
	"github.com/refr-io/refr/internal/repository"
)

// ReferralService implements the referral lifecycle: list, create, delete,
// all scoped by the owning identity.
type ReferralService struct {
	repo   repository.ReferralRepository
	logger *slog.Logger
}

// NewReferralService creates a ReferralService.
func NewReferralService(repo repository.ReferralRepository, logger *slog.Logger) *ReferralService {
	return &ReferralService{
		repo:   repo,
		logger: logger,
	}
}

// List returns every referral, newest first, joined with the owner's display
// name. Any authenticated caller sees the full set; there is no per-viewer
// filtering.
func (s *ReferralService) List(ctx context.Context) ([]model.Referral, error) {
	referrals, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list referrals", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing referrals: %w", err)
	}
	return referrals, nil
}

// ListMine returns only the caller's referrals, same projection and order as
// List.
func (s *ReferralService) ListMine(ctx context.Context, ident identity.Identity) ([]model.Referral, error) {
	referrals, err := s.repo.ListByOwner(ctx, ident.Sub)
	if err != nil {
		s.logger.Error("failed to list own referrals",
			slog.String("sub", ident.Sub),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing referrals for %s: %w", ident.Sub, err)
	}
	return referrals, nil
}

// CreateInput is the caller-supplied portion of a referral. The owner comes
// from the authenticated identity, never from the body.
type CreateInput struct {
	Title       string
	Link        string
	Description string
	Category    string
}

// Create validates the input and inserts a referral owned by ident.
//
// title, link and category are required and must be non-empty after
// trimming; description is optional. Validation failures name every missing
// field in one error and are raised before the store is touched.
//
// Create is NOT idempotent: a double-submit produces two rows. That is
// accepted behaviour; clients wanting de-duplication do it on their side.
func (s *ReferralService) Create(ctx context.Context, ident identity.Identity, in CreateInput) (*model.Referral, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Link = strings.TrimSpace(in.Link)
	in.Category = strings.TrimSpace(in.Category)

	var missing []string
	if in.Title == "" {
		missing = append(missing, "title")
	}
	if in.Link == "" {
		missing = append(missing, "link")
	}
	if in.Category == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return nil, apperror.MissingFields(missing...)
	}

	ref := &model.Referral{
		OwnerSub:    ident.Sub,
		Title:       in.Title,
		Link:        in.Link,
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
	}

	if err := s.repo.Create(ctx, ref); err != nil {
		s.logger.Error("failed to create referral",
			slog.String("sub", ident.Sub),
			slog.String("title", in.Title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating referral: %w", err)
	}

	s.logger.Info("referral created",
		slog.Int64("id", ref.ID),
		slog.String("sub", ident.Sub),
		slog.String("category", ref.Category),
	)

	return ref, nil
}

// Delete removes the referral with the given id if and only if ident owns
// it. A nonexistent id and someone else's id both come back as the same
// not-found error; the distinction would leak which ids exist.
func (s *ReferralService) Delete(ctx context.Context, ident identity.Identity, id int64) error {
	if err := s.repo.DeleteOwned(ctx, id, ident.Sub); err != nil {
		return err
	}

	s.logger.Info("referral deleted",
		slog.Int64("id", id),
		slog.String("sub", ident.Sub),
	)
	return nil
}
