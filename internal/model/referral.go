package model

import "time"

// Referral is a shared referral record.
//
// The JSON field names mirror the database column names (ref_id, ref_name,
// ...) because the browser client renders rows exactly as the API returns
// them — the wire format IS the storage projection.
//
// OwnerSub is set once from the authenticated creator's identity and never
// changes; a referral is only ever deletable by that owner. ID is the
// store-assigned AUTOINCREMENT key — monotonically increasing, never reused —
// which also serves as the ordering tiebreak when two rows share a
// ref_created_at at the store's timestamp resolution.
type Referral struct {
	ID          int64     `json:"ref_id"         db:"ref_id"`
	OwnerSub    string    `json:"user_sub"       db:"user_sub"`
	Title       string    `json:"ref_name"       db:"ref_name"`
	Link        string    `json:"ref_link"       db:"ref_link"`
	Description string    `json:"ref_desc"       db:"ref_desc"`
	Category    string    `json:"ref_category"   db:"ref_category"`
	CreatedAt   time.Time `json:"ref_created_at" db:"ref_created_at"`

	// OwnerName is the joined users.user_name for display. Populated by
	// list queries; empty on a bare row.
	OwnerName string `json:"user_name,omitempty" db:"user_name"`
}
