package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/leavewise/compliance-server-go/internal/database"
	"github.com/leavewise/compliance-server-go/internal/model"
)

// PasswordResetRepository handles password reset token operations
type PasswordResetRepository interface {
	Create(ctx context.Context, params model.CreatePasswordResetParams) (*model.PasswordReset, error)
	FindActiveByTokenHash(ctx context.Context, tokenHash string) (*model.PasswordReset, error)
	// ConsumeAndSetPassword marks the token used and writes the new password
	// hash in one transaction. The used_at IS NULL guard means a second
	// concurrent call with the same token sees consumed=false.
	ConsumeAndSetPassword(ctx context.Context, tokenHash, passwordHash string) (consumed bool, err error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type passwordResetRepo struct {
	db *database.DB
}

// NewPasswordResetRepository creates a new password reset repository
func NewPasswordResetRepository(db *database.DB) PasswordResetRepository {
	return &passwordResetRepo{db: db}
}

func (r *passwordResetRepo) Create(ctx context.Context, params model.CreatePasswordResetParams) (*model.PasswordReset, error) {
	var reset model.PasswordReset
	err := r.db.GetContext(ctx, &reset, `
		INSERT INTO password_resets (token_hash, email, expires_at)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.TokenHash, params.Email, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &reset, nil
}

func (r *passwordResetRepo) FindActiveByTokenHash(ctx context.Context, tokenHash string) (*model.PasswordReset, error) {
	var reset model.PasswordReset
	err := r.db.GetContext(ctx, &reset, `
		SELECT * FROM password_resets
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > NOW()
	`, tokenHash)
	return HandleNotFound(&reset, err)
}

func (r *passwordResetRepo) ConsumeAndSetPassword(ctx context.Context, tokenHash, passwordHash string) (bool, error) {
	var consumed bool
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var email string
		err := tx.GetContext(ctx, &email, `
			UPDATE password_resets
			SET used_at = NOW()
			WHERE token_hash = $1 AND used_at IS NULL AND expires_at > NOW()
			RETURNING email
		`, tokenHash)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		consumed = true
		_, err = tx.ExecContext(ctx, `
			UPDATE users SET password_hash = $2 WHERE email = $1
		`, email, passwordHash)
		return err
	})
	if err != nil {
		return false, err
	}
	return consumed, nil
}

func (r *passwordResetRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM password_resets WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
