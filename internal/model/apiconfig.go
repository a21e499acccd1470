package model

import (
	"time"
)

// APIConfig holds the upstream completion API key and running usage
// counters. At most one row is active at a time; the save path
// deactivates all others in the same transaction.
type APIConfig struct {
	ID             string    `db:"id" json:"id"`
	APIKey         string    `db:"api_key" json:"-"`
	IsActive       bool      `db:"is_active" json:"isActive"`
	TotalRequests  int       `db:"total_requests" json:"totalRequests"`
	OpenAIRequests int       `db:"openai_requests" json:"openaiRequests"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}
