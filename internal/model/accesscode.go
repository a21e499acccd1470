package model

import (
	"time"
)

// AccessCode is a redeemable string granting a time-bounded access level
// to one registrant.
type AccessCode struct {
	ID           string       `db:"id" json:"id"`
	Code         string       `db:"code" json:"code"`
	Description  string       `db:"description" json:"description"`
	Duration     int          `db:"duration" json:"duration"`
	DurationType DurationType `db:"duration_type" json:"durationType"`
	CreatedBy    string       `db:"created_by" json:"createdBy"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
	ExpiresAt    time.Time    `db:"expires_at" json:"expiresAt"`
	UsedAt       *time.Time   `db:"used_at" json:"usedAt,omitempty"`
	UsedBy       *string      `db:"used_by" json:"usedBy,omitempty"`
}

type CreateAccessCodeParams struct {
	Code         string
	Description  string
	Duration     int
	DurationType DurationType
	CreatedBy    string
	ExpiresAt    time.Time
}

// IsExpired checks if the code has expired
func (c *AccessCode) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// IsConsumed checks if the code's single-use flag is already set
func (c *AccessCode) IsConsumed() bool {
	return c.UsedAt != nil
}
