package repository

import (
	"context"

	"github.com/leavewise/compliance-server-go/internal/database"
	"github.com/leavewise/compliance-server-go/internal/model"
)

// ConversationRepository handles recorded assistant exchanges.
// The table is append-only.
type ConversationRepository interface {
	Create(ctx context.Context, params model.CreateConversationParams) (*model.Conversation, error)
	FindByUserID(ctx context.Context, userID string, limit, offset int) ([]model.Conversation, error)
	FindAll(ctx context.Context, limit, offset int) ([]model.Conversation, error)
	Count(ctx context.Context) (int, error)
}

type conversationRepo struct {
	db *database.DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *database.DB) ConversationRepository {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) Create(ctx context.Context, params model.CreateConversationParams) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		INSERT INTO conversations (user_id, tool_name, input_text, response_text, tokens_used, cost)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, params.UserID, params.ToolName, params.InputText, params.ResponseText, params.TokensUsed, params.Cost)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.db.SelectContext(ctx, &convs, `
		SELECT * FROM conversations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return convs, nil
}

func (r *conversationRepo) FindAll(ctx context.Context, limit, offset int) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.db.SelectContext(ctx, &convs, `
		SELECT * FROM conversations
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return convs, nil
}

func (r *conversationRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM conversations`)
	return count, err
}
