package types

import "time"

// User represents an account in the system.
// It contains identity, credential, verification, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// UserCode is the human-readable identifier assigned at creation
	// (prefix, year, and a monotonic counter, e.g. "MC-20251").
	UserCode string `json:"userId" db:"user_code"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's email address, stored lower-cased.
	Email string `json:"email" db:"email"`

	// Name is the user's display or full name.
	Name string `json:"fullName" db:"name"`

	// PasswordHash stores the argon2id PHC string of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Mobile is the user's 10-digit phone number.
	Mobile string `json:"mobile" db:"mobile"`

	// EmailVerified flips to true once the OTP sent at registration is
	// confirmed. Unverified users cannot log in.
	EmailVerified bool `json:"isEmailVerified" db:"is_email_verified"`

	// OTP is the outstanding verification code. It is set together with
	// OTPExpiresAt and both are cleared on verification.
	OTP *string `json:"-" db:"otp"`

	// OTPExpiresAt is the instant after which OTP is rejected.
	OTPExpiresAt *time.Time `json:"-" db:"otp_expires_at"`

	// Deleted marks a soft-deleted account.
	Deleted bool `json:"-" db:"is_deleted"`

	// Admin marks an administrative account.
	Admin bool `json:"-" db:"is_admin"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserSummary is the minimal projection returned alongside a token.
type UserSummary struct {
	ID       int    `json:"id"`
	FullName string `json:"fullName"`
	UserCode string `json:"userId"`
}

// UserDetails is the sanitized projection returned by user read and update
// endpoints.
type UserDetails struct {
	ID       int    `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Mobile   string `json:"mobile"`
}

// Summary returns the token-response projection of the user.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, FullName: u.Name, UserCode: u.UserCode}
}

// Details returns the sanitized projection of the user.
func (u User) Details() UserDetails {
	return UserDetails{ID: u.ID, FullName: u.Name, Email: u.Email, Mobile: u.Mobile}
}
