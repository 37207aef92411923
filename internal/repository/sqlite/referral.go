package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/refr-io/refr/internal/apperror"
	"github.com/refr-io/refr/internal/model"
	"github.com/refr-io/refr/internal/repository"
)

// Compile-time check that *DB implements repository.ReferralRepository.
var _ repository.ReferralRepository = (*DB)(nil)

// listProjection is the row shape shared by List and ListByOwner: every
// referral column joined with the owner's display name. The INNER JOIN means
// a referral whose owner row is missing simply does not appear; orphans are
// invisible, not an error.
const listProjection = `
	SELECT r.ref_id, r.user_sub, r.ref_name, r.ref_link, r.ref_desc,
	       r.ref_category, r.ref_created_at, u.user_name
	  FROM referrals r
	  JOIN users u ON u.user_sub = r.user_sub`

// Create inserts a new referral.
//
// ID and CreatedAt are assigned here at insert time and written back onto the
// passed struct so the caller can return the complete record. The timestamp
// is set in Go rather than by a column default so the value handed back to
// the caller is byte-identical to what later list queries will scan out.
func (db *DB) Create(ctx context.Context, ref *model.Referral) error {
	ref.CreatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO referrals (user_sub, ref_name, ref_link, ref_desc, ref_category, ref_created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ref.OwnerSub,
		ref.Title,
		ref.Link,
		ref.Description,
		ref.Category,
		ref.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating referral: %w", err)
	}

	// AUTOINCREMENT assigned the surrogate key; read it back.
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new referral id: %w", err)
	}
	ref.ID = id

	return nil
}

// List returns all referrals, newest first. Rows inserted within the same
// timestamp resolution keep insertion order via the ref_id DESC tiebreak.
func (db *DB) List(ctx context.Context) ([]model.Referral, error) {
	rows, err := db.conn.QueryContext(ctx,
		listProjection+` ORDER BY r.ref_created_at DESC, r.ref_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing referrals: %w", err)
	}
	defer rows.Close()

	return scanReferrals(rows)
}

// ListByOwner returns one owner's referrals in the same order as List.
func (db *DB) ListByOwner(ctx context.Context, ownerSub string) ([]model.Referral, error) {
	rows, err := db.conn.QueryContext(ctx,
		listProjection+`
		 WHERE r.user_sub = ?
		 ORDER BY r.ref_created_at DESC, r.ref_id DESC`,
		ownerSub,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing referrals for %s: %w", ownerSub, err)
	}
	defer rows.Close()

	return scanReferrals(rows)
}

func scanReferrals(rows *sql.Rows) ([]model.Referral, error) {
	referrals := []model.Referral{}

	for rows.Next() {
		var r model.Referral
		if err := rows.Scan(
			&r.ID, &r.OwnerSub, &r.Title, &r.Link, &r.Description,
			&r.Category, &r.CreatedAt, &r.OwnerName,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning referral row: %w", err)
		}
		referrals = append(referrals, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating referrals: %w", err)
	}

	return referrals, nil
}

// DeleteOwned removes a referral, but only when it belongs to ownerSub.
//
// The WHERE clause carries both conditions so ownership enforcement happens
// inside the single atomic statement, and a non-owner gets exactly the same
// "Referral not found" as a nonexistent id. Callers cannot probe whether
// someone else's id exists.
func (db *DB) DeleteOwned(ctx context.Context, id int64, ownerSub string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM referrals WHERE ref_id = ? AND user_sub = ?`,
		id, ownerSub,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting referral %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("Referral")
	}

	return nil
}
