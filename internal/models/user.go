package models

import "time"

type User struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	PhoneNumber  *string `json:"phone_number"`
	PasswordHash string  `json:"-"` // не отдаём наружу

	IsEmailVerified bool `json:"is_email_verified"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RegisterRequest struct {
	Name        string  `json:"name" binding:"required,max=255"`
	Email       string  `json:"email" binding:"required,email,max=255"`
	PhoneNumber *string `json:"phone_number" binding:"omitempty,max=255"`
	Password    string  `json:"password" binding:"required,min=8,max=255"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=255"`
}
