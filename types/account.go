package types

import "time"

// Account is the single identity record behind every admin, employee and
// visitor. Role-specific data lives in the corresponding profile row.
type Account struct {
	// ID is the unique identifier of the account.
	ID string `json:"id" db:"id"`

	// Email is the account's unique email address.
	Email string `json:"email" db:"email"`

	// FullName is the account holder's display or full name.
	FullName string `json:"fullName" db:"full_name"`

	// Roles lists the roles this account holds. An account may hold more
	// than one role.
	Roles []Role `json:"role" db:"roles"`

	// PasswordHash stores the bcrypt hash of the account password. It is
	// empty for kiosk- or social-provisioned accounts and never exposed
	// in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// IsEmailVerified reports whether the account's email passed OTP
	// verification.
	IsEmailVerified bool `json:"isEmailVerified" db:"is_email_verified"`

	// IsSocialAuth marks accounts created through a social provider.
	IsSocialAuth bool `json:"isSocialAuth" db:"is_social_auth"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent account update.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
