package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"authbase/internal/models"
)

type VerificationCodeRepository interface {
	// Replace атомарно заменяет активный код пары (user, purpose) новым.
	Replace(code *models.VerificationCode) error
	GetActive(userID, purpose string) (*models.VerificationCode, error)
	MarkUsed(id string) error

	// фоновая уборка
	DeleteExpired(ctx context.Context) (int64, error)
}

type verificationCodeRepository struct {
	DB *sql.DB
}

func NewVerificationCodeRepository(db *sql.DB) VerificationCodeRepository {
	return &verificationCodeRepository{DB: db}
}

func (r *verificationCodeRepository) Replace(code *models.VerificationCode) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return fmt.Errorf("begin replace code: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM verification_codes
		WHERE user_id=$1 AND purpose=$2 AND used_at IS NULL
	`, code.UserID, code.Purpose); err != nil {
		return fmt.Errorf("drop active code: %w", err)
	}

	if err := tx.QueryRow(`
		INSERT INTO verification_codes (id, user_id, purpose, code_hash, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, code.ID, code.UserID, code.Purpose, code.CodeHash, code.ExpiresAt).Scan(&code.CreatedAt); err != nil {
		return fmt.Errorf("insert code: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace code: %w", err)
	}
	return nil
}

func (r *verificationCodeRepository) GetActive(userID, purpose string) (*models.VerificationCode, error) {
	const q = `
		SELECT id, user_id, purpose, code_hash, expires_at, used_at, created_at
		FROM verification_codes
		WHERE user_id=$1 AND purpose=$2 AND used_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`
	c := &models.VerificationCode{}
	var usedAt sql.NullTime
	err := r.DB.QueryRow(q, userID, purpose).Scan(
		&c.ID, &c.UserID, &c.Purpose, &c.CodeHash, &c.ExpiresAt, &usedAt, &c.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get active code: %w", err)
	}
	if usedAt.Valid {
		t := usedAt.Time
		c.UsedAt = &t
	}
	return c, nil
}

func (r *verificationCodeRepository) MarkUsed(id string) error {
	if _, err := r.DB.Exec(`
		UPDATE verification_codes
		SET used_at=NOW()
		WHERE id=$1
	`, id); err != nil {
		return fmt.Errorf("mark code used: %w", err)
	}
	return nil
}

func (r *verificationCodeRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM verification_codes
		WHERE expires_at <= NOW() OR used_at IS NOT NULL
	`)
	if err != nil {
		return 0, fmt.Errorf("delete expired codes: %w", err)
	}
	return res.RowsAffected()
}
