package repository

import (
	"context"

	"github.com/leavewise/compliance-server-go/internal/database"
	"github.com/leavewise/compliance-server-go/internal/model"
)

// SettingRepository handles site settings persisted by category.
// Last write wins; no history is retained.
type SettingRepository interface {
	Get(ctx context.Context, key string) (*model.Setting, error)
	FindByCategory(ctx context.Context, category string) ([]model.Setting, error)
	Upsert(ctx context.Context, setting model.Setting) (*model.Setting, error)
	Delete(ctx context.Context, key string) error
}

type settingRepo struct {
	db *database.DB
}

// NewSettingRepository creates a new setting repository
func NewSettingRepository(db *database.DB) SettingRepository {
	return &settingRepo{db: db}
}

func (r *settingRepo) Get(ctx context.Context, key string) (*model.Setting, error) {
	var setting model.Setting
	err := r.db.GetContext(ctx, &setting, `SELECT * FROM settings WHERE key = $1`, key)
	return HandleNotFound(&setting, err)
}

func (r *settingRepo) FindByCategory(ctx context.Context, category string) ([]model.Setting, error) {
	var settings []model.Setting
	err := r.db.SelectContext(ctx, &settings, `
		SELECT * FROM settings
		WHERE category = $1
		ORDER BY key
	`, category)
	if err != nil {
		return nil, err
	}
	return settings, nil
}

func (r *settingRepo) Upsert(ctx context.Context, setting model.Setting) (*model.Setting, error) {
	var saved model.Setting
	err := r.db.GetContext(ctx, &saved, `
		INSERT INTO settings (key, value, category, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    category = EXCLUDED.category,
		    updated_by = EXCLUDED.updated_by,
		    updated_at = NOW()
		RETURNING *
	`, setting.Key, setting.Value, setting.Category, setting.UpdatedBy)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *settingRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM settings WHERE key = $1`, key)
	return err
}
