// Package repository defines the storage interfaces the service layer
// programs against. The sqlite subpackage provides the implementation;
// tests substitute in-memory mocks.
package repository

import (
	"context"

	"github.com/refr-io/refr/internal/model"
)

// ReferralRepository persists referral records.
//
// There is deliberately no Update: referrals are immutable after creation
// and only ever deleted by their owner.
type ReferralRepository interface {
	// Create inserts a referral and fills in the store-assigned ID and
	// CreatedAt on the passed struct.
	Create(ctx context.Context, ref *model.Referral) error

	// List returns every referral joined with its owner's display name,
	// newest first (ref_created_at DESC, ref_id DESC). Referrals whose
	// owner row is missing are not returned.
	List(ctx context.Context) ([]model.Referral, error)

	// ListByOwner is List filtered to a single owner sub.
	ListByOwner(ctx context.Context, ownerSub string) ([]model.Referral, error)

	// DeleteOwned deletes the referral only when both the id and the owner
	// match. A miss — whether the id does not exist or the row belongs to
	// someone else — returns apperror.ErrNotFound; the two cases are
	// intentionally indistinguishable.
	DeleteOwned(ctx context.Context, id int64, ownerSub string) error
}

// UserRepository persists the local mirror of identity-provider accounts.
type UserRepository interface {
	// CreateUser inserts a mirror row. user_email is UNIQUE; user_sub is
	// the primary key.
	CreateUser(ctx context.Context, user *model.User) error

	// GetUserBySub returns the mirror row for a subject id, or
	// apperror.ErrNotFound.
	GetUserBySub(ctx context.Context, sub string) (*model.User, error)
}
