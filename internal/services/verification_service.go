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
	ErrCodeInvalid          = errors.New("code invalid")
	ErrCodeExpired          = errors.New("code expired")
	ErrEmailAlreadyVerified = errors.New("email already verified")
)

// Коды подтверждения: 6 символов [A-Za-z0-9], в БД хранится только bcrypt-хэш.
const (
	codeLength     = 6
	defaultCodeTTL = 60 * time.Minute
)

type VerificationService interface {
	SendEmailVerification(user *models.User) error
	ResendEmailVerification(email string) error
	ConfirmEmail(user *models.User, code string) error

	RequestPasswordReset(email string) error
	ResetPassword(email, code, newPassword string) error
}

type verificationService struct {
	users    repositories.UserRepository
	codes    repositories.VerificationCodeRepository
	sessions repositories.SessionRepository
	emails   EmailService
	auth     AuthService
	codeTTL  time.Duration
}

func NewVerificationService(
	users repositories.UserRepository,
	codes repositories.VerificationCodeRepository,
	sessions repositories.SessionRepository,
	emails EmailService,
	auth AuthService,
	codeTTL time.Duration,
) VerificationService {
	if codeTTL <= 0 {
		codeTTL = defaultCodeTTL
	}
	return &verificationService{
		users:    users,
		codes:    codes,
		sessions: sessions,
		emails:   emails,
		auth:     auth,
		codeTTL:  codeTTL,
	}
}

// SendEmailVerification выпускает новый код (старый затирается) и шлёт письмо.
// Ошибка отправки письма не валит операцию.
func (s *verificationService) SendEmailVerification(user *models.User) error {
	if user.IsEmailVerified {
		return ErrEmailAlreadyVerified
	}

	code, err := s.issueCode(user.ID, models.PurposeEmailVerification)
	if err != nil {
		return err
	}

	if s.emails != nil {
		if err := s.emails.SendVerificationEmail(user.Email, user.Name, code); err != nil {
			log.Printf("[verify][email] send failed user_id=%s err=%v", user.ID, err)
		}
	}

	log.Printf("[verify][email] code issued user_id=%s", user.ID)
	return nil
}

// ResendEmailVerification — то же, что SendEmailVerification, но по адресу почты.
func (s *verificationService) ResendEmailVerification(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	return s.SendEmailVerification(user)
}

// ConfirmEmail сверяет код с bcrypt-хэшем и помечает почту подтверждённой.
func (s *verificationService) ConfirmEmail(user *models.User, code string) error {
	if user.IsEmailVerified {
		return ErrEmailAlreadyVerified
	}

	rec, err := s.matchActiveCode(user.ID, models.PurposeEmailVerification, code)
	if err != nil {
		return err
	}

	if err := s.codes.MarkUsed(rec.ID); err != nil {
		return err
	}
	if err := s.users.MarkEmailVerified(user.ID); err != nil {
		return err
	}
	user.IsEmailVerified = true

	log.Printf("[verify][email] confirmed user_id=%s", user.ID)
	return nil
}

// RequestPasswordReset выпускает код сброса и шлёт письмо.
// Неизвестная почта — ErrUserNotFound.
func (s *verificationService) RequestPasswordReset(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(email)
	if err != nil {
		return err
	}
	if user == nil {
		log.Printf("[password-reset][request] unknown email=%q", email)
		return ErrUserNotFound
	}

	code, err := s.issueCode(user.ID, models.PurposePasswordReset)
	if err != nil {
		return err
	}

	if s.emails != nil {
		if err := s.emails.SendPasswordResetEmail(user.Email, user.Name, code); err != nil {
			log.Printf("[password-reset][request] send failed user_id=%s err=%v", user.ID, err)
		}
	}

	log.Printf("[password-reset][request] code issued user_id=%s", user.ID)
	return nil
}

// ResetPassword сверяет код, ставит новый пароль и отзывает все сессии пользователя.
func (s *verificationService) ResetPassword(email, code, newPassword string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	rec, err := s.matchActiveCode(user.ID, models.PurposePasswordReset, code)
	if err != nil {
		return err
	}

	hash, err := s.auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(user.ID, hash); err != nil {
		return err
	}
	if err := s.codes.MarkUsed(rec.ID); err != nil {
		return err
	}

	// после смены пароля разлогиниваем везде
	n, err := s.sessions.DeleteByUserID(user.ID)
	if err != nil {
		return err
	}

	log.Printf("[password-reset][done] user_id=%s sessions_revoked=%d", user.ID, n)
	return nil
}

// --- внутреннее ---

func (s *verificationService) issueCode(userID, purpose string) (string, error) {
	code, err := utils.NewVerificationCode(codeLength)
	if err != nil {
		return "", fmt.Errorf("new verification code: %w", err)
	}
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt generate: %w", err)
	}

	rec := &models.VerificationCode{
		ID:        uuid.NewString(),
		UserID:    userID,
		Purpose:   purpose,
		CodeHash:  string(hashBytes),
		ExpiresAt: time.Now().Add(s.codeTTL),
	}
	if err := s.codes.Replace(rec); err != nil {
		return "", err
	}
	return code, nil
}

func (s *verificationService) matchActiveCode(userID, purpose, code string) (*models.VerificationCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrCodeInvalid
	}

	rec, err := s.codes.GetActive(userID, purpose)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrCodeInvalid
	}
	if rec.IsExpired() {
		return nil, ErrCodeExpired
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.CodeHash), []byte(code)); err != nil {
		return nil, ErrCodeInvalid
	}
	return rec, nil
}
