package repositories

import (
	"database/sql"
	"fmt"

	"authbase/internal/models"
)

type UserRepository interface {
	Create(user *models.User) error
	GetByID(id string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)

	// verification / password
	MarkEmailVerified(userID string) error
	UpdatePassword(userID, passwordHash string) error
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

func (r *userRepository) Create(user *models.User) error {
	const q = `
		INSERT INTO users (id, name, email, phone_number, password_hash, is_email_verified)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	return r.DB.QueryRow(q,
		user.ID,
		user.Name,
		user.Email,
		user.PhoneNumber,
		user.PasswordHash,
		user.IsEmailVerified,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) GetByID(id string) (*models.User, error) {
	const q = `
		SELECT id, name, email, phone_number, password_hash, is_email_verified, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	u := &models.User{}
	var phone sql.NullString
	err := r.DB.QueryRow(q, id).Scan(
		&u.ID, &u.Name, &u.Email, &phone, &u.PasswordHash, &u.IsEmailVerified,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	if phone.Valid {
		s := phone.String
		u.PhoneNumber = &s
	}
	return u, nil
}

func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	const q = `
		SELECT id, name, email, phone_number, password_hash, is_email_verified, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	u := &models.User{}
	var phone sql.NullString
	err := r.DB.QueryRow(q, email).Scan(
		&u.ID, &u.Name, &u.Email, &phone, &u.PasswordHash, &u.IsEmailVerified,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if phone.Valid {
		s := phone.String
		u.PhoneNumber = &s
	}
	return u, nil
}

// ===== verification / password =====

func (r *userRepository) MarkEmailVerified(userID string) error {
	if _, err := r.DB.Exec(`
		UPDATE users
		SET is_email_verified=TRUE, updated_at=NOW()
		WHERE id=$1
	`, userID); err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	return nil
}

func (r *userRepository) UpdatePassword(userID, passwordHash string) error {
	if _, err := r.DB.Exec(`
		UPDATE users
		SET password_hash=$1, updated_at=NOW()
		WHERE id=$2
	`, passwordHash, userID); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
