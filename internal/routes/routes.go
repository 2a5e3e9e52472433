package routes

import (
	"github.com/gin-gonic/gin"

	"authbase/internal/handlers"
	"authbase/internal/middleware"
	"authbase/internal/services"
)

func SetupRoutes(
	r *gin.Engine,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	authService services.AuthService,
) *gin.Engine {

	// ---- public
	r.GET("/health", healthHandler.Check)

	auth := r.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout) // токен опционален: ответ всегда 200
		auth.POST("/resend-verification-email", authHandler.ResendVerificationEmail)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)
	}

	// ---- protected (нужна живая сессия)
	authed := r.Group("/auth", middleware.AuthMiddleware(authService))
	{
		authed.GET("/me", authHandler.Me)
		authed.POST("/verify-email", authHandler.VerifyEmail)
	}

	return r
}
