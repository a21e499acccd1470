package model

import (
	"time"
)

// PasswordReset is valid iff used_at IS NULL AND expires_at > now.
// Consuming a token sets used_at and happens at most once.
type PasswordReset struct {
	ID        string     `db:"id" json:"id"`
	TokenHash string     `db:"token_hash" json:"-"`
	Email     string     `db:"email" json:"email"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	ExpiresAt time.Time  `db:"expires_at" json:"expiresAt"`
	UsedAt    *time.Time `db:"used_at" json:"usedAt,omitempty"`
}

type CreatePasswordResetParams struct {
	TokenHash string
	Email     string
	ExpiresAt time.Time
}
