package models

import "time"

// Назначение кода.
const (
	PurposeEmailVerification = "email_verification"
	PurposePasswordReset     = "password_reset"
)

// VerificationCode — одноразовый 6-символьный код, привязанный к пользователю.
// Храним только bcrypt-хэш кода (CodeHash), срок действия и отметку использования.
// На пару (user_id, purpose) активен максимум один код: новая отправка заменяет старый.
type VerificationCode struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Purpose   string     `json:"purpose"`
	CodeHash  string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (v *VerificationCode) IsExpired() bool {
	return time.Now().After(v.ExpiresAt)
}

func (v *VerificationCode) IsUsed() bool {
	return v.UsedAt != nil
}

type VerifyEmailRequest struct {
	Code string `json:"code" binding:"required,len=6,alphanum"`
}

type ResendVerificationEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Code        string `json:"code" binding:"required,len=6,alphanum"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=255"`
}
