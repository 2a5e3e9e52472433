package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"authbase/internal/models"
	"authbase/internal/repositories"
	"authbase/internal/utils"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrUserNotVerified   = errors.New("email not verified")
	ErrSessionNotFound   = errors.New("session not found")
)

// Параметры сессий и хэширования (срок жизни сессии задаётся в конфиге)
const (
	passwordHashCost       = 12
	sessionTokenBytes      = 32 // 256 бит
	defaultSessionLifetime = 24 * time.Hour
)

type AuthService interface {
	Register(user *models.User, plainPassword string) error
	Login(email, password string) (*models.User, error)
	Logout(token string) (bool, error)

	IssueSession(userID, ipAddress, userAgent string) (*models.Session, error)
	GetSession(token string) (*models.Session, error)
	ValidateSession(token string) (*models.Session, *models.User, error)
	ResetSessionExpiration(session *models.Session) error

	HashPassword(password string) (string, error)
}

type authService struct {
	users           repositories.UserRepository
	sessions        repositories.SessionRepository
	sessionLifetime time.Duration
}

func NewAuthService(users repositories.UserRepository, sessions repositories.SessionRepository, sessionLifetime time.Duration) AuthService {
	if sessionLifetime <= 0 {
		sessionLifetime = defaultSessionLifetime
	}
	return &authService{
		users:           users,
		sessions:        sessions,
		sessionLifetime: sessionLifetime,
	}
}

// Register создаёт пользователя с bcrypt-хэшем пароля. Почта уникальна:
// гонку двух одновременных регистраций ловит unique-констрейнт в БД.
func (s *authService) Register(user *models.User, plainPassword string) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Email == "" || strings.TrimSpace(plainPassword) == "" {
		return fmt.Errorf("email and password are required")
	}

	existing, err := s.users.GetByEmail(user.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrUserAlreadyExists
	}

	hash, err := s.HashPassword(plainPassword)
	if err != nil {
		return err
	}

	user.ID = uuid.NewString()
	user.PasswordHash = hash
	user.IsEmailVerified = false

	if err := s.users.Create(user); err != nil {
		if repositories.IsUniqueViolation(err) {
			return ErrUserAlreadyExists
		}
		return err
	}

	log.Printf("[auth][register] created user_id=%s email=%q", user.ID, user.Email)
	return nil
}

// Login проверяет пару email/пароль. Вход разрешён только после подтверждения почты.
func (s *authService) Login(email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		log.Printf("[auth][login] user not found email=%q", email)
		return nil, ErrUserNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Printf("[auth][login] bcrypt mismatch user_id=%s", user.ID)
		return nil, ErrInvalidPassword
	}
	if !user.IsEmailVerified {
		log.Printf("[auth][login] email not verified user_id=%s", user.ID)
		return nil, ErrUserNotVerified
	}

	log.Printf("[auth][login] success user_id=%s", user.ID)
	return user, nil
}

// Logout отзывает ВСЕ сессии владельца токена, не только предъявленную.
// false — живой сессии по токену не нашлось.
func (s *authService) Logout(token string) (bool, error) {
	session, err := s.GetSession(token)
	if err != nil {
		return false, err
	}
	if session == nil {
		return false, nil
	}

	n, err := s.sessions.DeleteByUserID(session.UserID)
	if err != nil {
		return false, err
	}

	log.Printf("[auth][logout] revoked sessions user_id=%s count=%d", session.UserID, n)
	return true, nil
}

// IssueSession выпускает opaque-токен и сохраняет сессию.
func (s *authService) IssueSession(userID, ipAddress, userAgent string) (*models.Session, error) {
	token, err := utils.NewSessionToken(sessionTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("new session token: %w", err)
	}

	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: time.Now().Add(s.sessionLifetime),
	}
	if ipAddress != "" {
		session.IPAddress = &ipAddress
	}
	if userAgent != "" {
		session.UserAgent = &userAgent
	}

	if err := s.sessions.Create(session); err != nil {
		return nil, err
	}

	log.Printf("[auth][session] issued user_id=%s expires_at=%s", userID, session.ExpiresAt.Format(time.RFC3339))
	return session, nil
}

// GetSession возвращает живую сессию по точному совпадению токена.
// Протухшая сессия удаляется сразу и обратно не воскресает (lazy expiry).
// nil, nil — сессии нет.
func (s *authService) GetSession(token string) (*models.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}

	session, err := s.sessions.GetByToken(token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	if session.IsExpired() {
		if err := s.sessions.DeleteByToken(token); err != nil {
			log.Printf("[auth][session] delete expired failed id=%s err=%v", session.ID, err)
		}
		return nil, nil
	}

	return session, nil
}

// ValidateSession — GetSession плюс владелец. Основная проверка «текущего пользователя».
func (s *authService) ValidateSession(token string) (*models.Session, *models.User, error) {
	session, err := s.GetSession(token)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, ErrSessionNotFound
	}

	user, err := s.users.GetByID(session.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrSessionNotFound
	}

	return session, user, nil
}

// ResetSessionExpiration продлевает сессию на полный срок жизни (sliding expiry).
func (s *authService) ResetSessionExpiration(session *models.Session) error {
	expiresAt := time.Now().Add(s.sessionLifetime)
	if err := s.sessions.UpdateExpiresAt(session.ID, expiresAt); err != nil {
		return err
	}
	session.ExpiresAt = expiresAt
	return nil
}

func (s *authService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt generate: %w", err)
	}
	return string(hash), nil
}
