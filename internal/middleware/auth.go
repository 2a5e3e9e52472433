package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"authbase/internal/services"
)

// Ключи контекста запроса.
const (
	ContextUserKey    = "current_user"
	ContextSessionKey = "current_session"
)

// ParseBearerToken достаёт opaque-токен из заголовка Authorization.
// Пустая строка — заголовка нет или он не Bearer.
func ParseBearerToken(c *gin.Context) string {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AuthMiddleware проверяет сессионный токен и кладёт пользователя с сессией в контекст.
// Живая сессия продлевается на полный срок (sliding expiry); ошибка продления не фатальна.
func AuthMiddleware(auth services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		// пропускаем preflight
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		token := ParseBearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}

		session, user, err := auth.ValidateSession(token)
		if err != nil {
			if errors.Is(err, services.ErrSessionNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
				return
			}
			log.Printf("[middleware][auth] validate session failed: err=%v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		if err := auth.ResetSessionExpiration(session); err != nil {
			log.Printf("[middleware][auth] session renew failed id=%s err=%v", session.ID, err)
		}

		c.Set(ContextUserKey, user)
		c.Set(ContextSessionKey, session)

		c.Next()
	}
}
