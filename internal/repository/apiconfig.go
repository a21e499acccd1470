package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/leavewise/compliance-server-go/internal/database"
	"github.com/leavewise/compliance-server-go/internal/model"
)

// APIConfigRepository handles the upstream completion API configuration.
// At most one row is active; SaveActive enforces that in one transaction.
type APIConfigRepository interface {
	FindActive(ctx context.Context) (*model.APIConfig, error)
	SaveActive(ctx context.Context, apiKey string) (*model.APIConfig, error)
	// IncrementUsage bumps the active row's request counters. Best-effort
	// from the caller's perspective.
	IncrementUsage(ctx context.Context, id string) error
}

type apiConfigRepo struct {
	db *database.DB
}

// NewAPIConfigRepository creates a new API config repository
func NewAPIConfigRepository(db *database.DB) APIConfigRepository {
	return &apiConfigRepo{db: db}
}

func (r *apiConfigRepo) FindActive(ctx context.Context) (*model.APIConfig, error) {
	var cfg model.APIConfig
	err := r.db.GetContext(ctx, &cfg, `
		SELECT * FROM api_configs
		WHERE is_active = TRUE
		ORDER BY updated_at DESC
		LIMIT 1
	`)
	return HandleNotFound(&cfg, err)
}

func (r *apiConfigRepo) SaveActive(ctx context.Context, apiKey string) (*model.APIConfig, error) {
	var cfg model.APIConfig
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE api_configs SET is_active = FALSE, updated_at = NOW()
			WHERE is_active = TRUE
		`); err != nil {
			return err
		}

		return tx.GetContext(ctx, &cfg, `
			INSERT INTO api_configs (api_key, is_active)
			VALUES ($1, TRUE)
			RETURNING *
		`, apiKey)
	})
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *apiConfigRepo) IncrementUsage(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE api_configs
		SET total_requests = total_requests + 1,
		    openai_requests = openai_requests + 1,
		    updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}
