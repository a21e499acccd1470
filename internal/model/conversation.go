package model

import (
	"time"
)

// Conversation is one recorded exchange with the leave assistant.
// Rows are append-only.
type Conversation struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"userId"`
	ToolName     ToolName  `db:"tool_name" json:"toolName"`
	InputText    string    `db:"input_text" json:"inputText"`
	ResponseText string    `db:"response_text" json:"responseText"`
	TokensUsed   int       `db:"tokens_used" json:"tokensUsed"`
	Cost         float64   `db:"cost" json:"cost"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

type CreateConversationParams struct {
	UserID       string
	ToolName     ToolName
	InputText    string
	ResponseText string
	TokensUsed   int
	Cost         float64
}
