package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/leavewise/compliance-server-go/internal/database"
	"github.com/leavewise/compliance-server-go/internal/model"
)

// AccessCodeRepository handles access code data operations
type AccessCodeRepository interface {
	Create(ctx context.Context, params model.CreateAccessCodeParams) (*model.AccessCode, error)
	FindByCode(ctx context.Context, code string) (*model.AccessCode, error)
	FindByID(ctx context.Context, id string) (*model.AccessCode, error)
	FindAll(ctx context.Context, limit, offset int) ([]model.AccessCode, error)
	Count(ctx context.Context) (int, error)
	// Consume marks the code used and upgrades the redeemer's access level
	// in one transaction. The used_at IS NULL guard makes the mark-used
	// update succeed for at most one of two racing redemptions; the loser
	// sees consumed=false.
	Consume(ctx context.Context, codeID, userID string, level model.AccessLevel) (consumed bool, err error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type accessCodeRepo struct {
	db *database.DB
}

// NewAccessCodeRepository creates a new access code repository
func NewAccessCodeRepository(db *database.DB) AccessCodeRepository {
	return &accessCodeRepo{db: db}
}

func (r *accessCodeRepo) Create(ctx context.Context, params model.CreateAccessCodeParams) (*model.AccessCode, error) {
	var code model.AccessCode
	err := r.db.GetContext(ctx, &code, `
		INSERT INTO access_codes (code, description, duration, duration_type, created_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, params.Code, params.Description, params.Duration, params.DurationType, params.CreatedBy, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &code, nil
}

func (r *accessCodeRepo) FindByCode(ctx context.Context, code string) (*model.AccessCode, error) {
	var ac model.AccessCode
	err := r.db.GetContext(ctx, &ac, `SELECT * FROM access_codes WHERE code = $1`, code)
	return HandleNotFound(&ac, err)
}

func (r *accessCodeRepo) FindByID(ctx context.Context, id string) (*model.AccessCode, error) {
	var ac model.AccessCode
	err := r.db.GetContext(ctx, &ac, `SELECT * FROM access_codes WHERE id = $1`, id)
	return HandleNotFound(&ac, err)
}

func (r *accessCodeRepo) FindAll(ctx context.Context, limit, offset int) ([]model.AccessCode, error) {
	var codes []model.AccessCode
	err := r.db.SelectContext(ctx, &codes, `
		SELECT * FROM access_codes
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *accessCodeRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM access_codes`)
	return count, err
}

func (r *accessCodeRepo) Consume(ctx context.Context, codeID, userID string, level model.AccessLevel) (bool, error) {
	var consumed bool
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE access_codes
			SET used_at = NOW(), used_by = $2
			WHERE id = $1 AND used_at IS NULL
		`, codeID, userID)
		if err != nil {
			return err
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}

		consumed = true
		_, err = tx.ExecContext(ctx, `
			UPDATE users SET access_level = $2 WHERE id = $1
		`, userID, level)
		return err
	})
	if err != nil {
		return false, err
	}
	return consumed, nil
}

func (r *accessCodeRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM access_codes WHERE id = $1`, id)
	return err
}

func (r *accessCodeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM access_codes
		WHERE expires_at < NOW()
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
