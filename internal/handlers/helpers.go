package handlers

import (
	"github.com/gin-gonic/gin"

	"authbase/internal/middleware"
	"authbase/internal/models"
)

// currentUser достаёт пользователя, положенного auth-middleware.
func currentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	if !ok || u == nil {
		return nil, false
	}
	return u, true
}
