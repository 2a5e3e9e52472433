package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"authbase/internal/models"
)

type SessionRepository interface {
	Create(session *models.Session) error
	GetByToken(token string) (*models.Session, error)
	UpdateExpiresAt(id string, expiresAt time.Time) error
	DeleteByToken(token string) error
	DeleteByUserID(userID string) (int64, error)

	// фоновая уборка
	DeleteExpired(ctx context.Context) (int64, error)
}

type sessionRepository struct {
	DB *sql.DB
}

func NewSessionRepository(db *sql.DB) SessionRepository {
	return &sessionRepository{DB: db}
}

func (r *sessionRepository) Create(session *models.Session) error {
	const q = `
		INSERT INTO sessions (id, user_id, token, ip_address, user_agent, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	if err := r.DB.QueryRow(q,
		session.ID,
		session.UserID,
		session.Token,
		session.IPAddress,
		session.UserAgent,
		session.ExpiresAt,
	).Scan(&session.CreatedAt); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *sessionRepository) GetByToken(token string) (*models.Session, error) {
	const q = `
		SELECT id, user_id, token, ip_address, user_agent, expires_at, created_at
		FROM sessions
		WHERE token = $1
	`
	s := &models.Session{}
	var (
		ip sql.NullString
		ua sql.NullString
	)
	err := r.DB.QueryRow(q, token).Scan(
		&s.ID, &s.UserID, &s.Token, &ip, &ua, &s.ExpiresAt, &s.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get session by token: %w", err)
	}
	if ip.Valid {
		v := ip.String
		s.IPAddress = &v
	}
	if ua.Valid {
		v := ua.String
		s.UserAgent = &v
	}
	return s, nil
}

func (r *sessionRepository) UpdateExpiresAt(id string, expiresAt time.Time) error {
	if _, err := r.DB.Exec(`
		UPDATE sessions
		SET expires_at=$1
		WHERE id=$2
	`, expiresAt, id); err != nil {
		return fmt.Errorf("update session expiry: %w", err)
	}
	return nil
}

func (r *sessionRepository) DeleteByToken(token string) error {
	if _, err := r.DB.Exec(`DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete session by token: %w", err)
	}
	return nil
}

func (r *sessionRepository) DeleteByUserID(userID string) (int64, error) {
	res, err := r.DB.Exec(`DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete sessions by user: %w", err)
	}
	return res.RowsAffected()
}

func (r *sessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
