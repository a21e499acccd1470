package model

import (
	"time"
)

type User struct {
	ID            string      `db:"id" json:"id"`
	Email         string      `db:"email" json:"email"`
	PasswordHash  string      `db:"password_hash" json:"-"`
	FirstName     string      `db:"first_name" json:"firstName"`
	LastName      string      `db:"last_name" json:"lastName"`
	IsAdmin       bool        `db:"is_admin" json:"isAdmin"`
	EmailVerified bool        `db:"email_verified" json:"emailVerified"`
	AccessLevel   AccessLevel `db:"access_level" json:"accessLevel"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
	LastLoginAt   *time.Time  `db:"last_login_at" json:"lastLoginAt,omitempty"`
}

type CreateUserParams struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	AccessLevel  AccessLevel
}

// UpdateUserParams carries optional admin-editable fields; nil means
// leave the column unchanged.
type UpdateUserParams struct {
	FirstName     *string
	LastName      *string
	IsAdmin       *bool
	EmailVerified *bool
	AccessLevel   *AccessLevel
}
