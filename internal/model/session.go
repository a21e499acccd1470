package model

import (
	"time"
)

// Session maps an opaque token (stored hashed) to one user for 24 hours.
// The CSRF token is bound to the session and must accompany every
// state-mutating request.
type Session struct {
	ID        string    `db:"id" json:"id"`
	TokenHash string    `db:"token_hash" json:"-"`
	CSRFToken string    `db:"csrf_token" json:"-"`
	UserID    string    `db:"user_id" json:"userId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
}

type CreateSessionParams struct {
	TokenHash string
	CSRFToken string
	UserID    string
	ExpiresAt time.Time
}

func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
