// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — explicit types with named
// fields, not loosely-typed maps.
package model

import "time"

// User is the local mirror of an identity-provider account.
//
// Cognito owns the account itself (credentials, confirmation state, profile
// attributes). We only keep the minimum needed to join referrals with a
// display name: the provider-assigned subject id, the name, and the email.
//
// WHY Sub AS THE PRIMARY KEY?
// The subject id ("sub" claim) is the one identifier the provider guarantees
// to be stable and unique for the lifetime of an account. Emails can in
// principle change on the provider side; the sub never does. Rows are created
// lazily — at signup, or on first login if signup happened before this mirror
// existed — and are never updated or deleted by this system.
type User struct {
	Sub       string    `json:"user_sub"   db:"user_sub"`
	Name      string    `json:"user_name"  db:"user_name"`
	Email     string    `json:"user_email" db:"user_email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
