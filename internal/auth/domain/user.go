package domain

import "time"

// User is the identity record for a registered account. Email is the natural
// business key and is unique, case-sensitive as given. SessionID and
// ResetToken are independent nullable bearer tokens: nil means no active
// session / no outstanding reset. Neither carries an expiry; they stay valid
// until explicitly cleared or replaced.
type User struct {
	ID           string  // ULID, assigned at creation, never reused
	Email        string
	PasswordHash string  // argon2id encoded, never the plaintext
	SessionID    *string // at most one active session per user
	ResetToken   *string // outstanding password-reset token, if any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasSession reports whether the user currently holds an active session.
func (u *User) HasSession() bool { return u.SessionID != nil }

// ResetPending reports whether an unredeemed reset token is outstanding.
func (u *User) ResetPending() bool { return u.ResetToken != nil }
