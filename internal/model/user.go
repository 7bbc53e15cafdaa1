package model

import "time"

// User represents an account as stored in the `users` table.
//
// Fields:
//  PasswordHash – bcrypt hash; empty for accounts created through Google.
//  GoogleSub    – subject of the linked Google identity, empty if unlinked.
//  IsAdmin      – grants access to the /admin routes.
type User struct {
	ID           uint64    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	GoogleSub    string    `json:"-"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasPassword reports whether the account can log in with a password.
func (u User) HasPassword() bool { return u.PasswordHash != "" }

// Identity is the authenticated caller resolved once per request from the
// bearer token. It is passed explicitly to every operation that needs it.
type Identity struct {
	UserID  uint64 `json:"userId"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
}

// RefreshToken models an entry in the `refresh_tokens` table. Only the
// SHA-256 hash of the token handed to the client is stored.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
