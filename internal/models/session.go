package models

import "time"

// Session — подтверждение аутентификации. Токен — случайная opaque-строка,
// уникальная в БД; сессия действительна, пока now < ExpiresAt.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"-"` // уходит клиенту только через заголовок Authorization
	IPAddress *string   `json:"ip_address,omitempty"`
	UserAgent *string   `json:"user_agent,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
