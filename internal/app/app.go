package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authbase/internal/config"
	"authbase/internal/handlers"
	"authbase/internal/middleware"
	"authbase/internal/migrations"
	"authbase/internal/repositories"
	"authbase/internal/routes"
	"authbase/internal/services"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	swaggerFiles "github.com/swaggo/files"
	"github.com/swaggo/gin-swagger"

	_ "authbase/docs"
)

const (
	dbPingTimeout   = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

func Run() {
	cfg := config.LoadConfig()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// === DB ===
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("Ошибка подключения к БД: ", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Ошибка закрытия БД: %v", err)
		}
	}()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), dbPingTimeout)
	err = db.PingContext(pingCtx)
	pingCancel()
	if err != nil {
		log.Fatal("БД недоступна: ", err)
	}

	// === Миграции ===
	if err := migrations.Up(context.Background(), db); err != nil {
		log.Fatal("Ошибка применения миграций: ", err)
	}

	// === Repos ===
	userRepo := repositories.NewUserRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	codeRepo := repositories.NewVerificationCodeRepository(db)

	// === Services ===
	emailService := services.NewEmailService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromEmail,
	)

	authService := services.NewAuthService(
		userRepo,
		sessionRepo,
		time.Duration(cfg.Session.LifetimeHours)*time.Hour,
	)
	verificationService := services.NewVerificationService(
		userRepo,
		codeRepo,
		sessionRepo,
		emailService,
		authService,
		time.Duration(cfg.Verification.CodeLifetimeMinutes)*time.Minute,
	)

	// Фоновая уборка протухших сессий и кодов
	cleanupService := services.NewCleanupService(
		sessionRepo,
		codeRepo,
		time.Duration(cfg.Cleanup.IntervalHours)*time.Hour,
	)
	cleanupService.Start()
	defer cleanupService.Stop()

	// === Handlers ===
	authHandler := handlers.NewAuthHandler(authService, verificationService)
	healthHandler := handlers.NewHealthHandler(db)

	// === Gin ===
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(cfg))

	// Swagger (в production — за basic auth)
	mountSwagger(router, cfg)

	routes.SetupRoutes(router, authHandler, healthHandler, authService)

	// === Run ===
	listenAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	go func() {
		log.Printf("Сервер запущен на %s (env=%s)", listenAddr, cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Ошибка запуска сервера: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Останавливаем сервер...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Ошибка остановки сервера: %v", err)
	}
}

// corsMiddleware: в production отражаем только настроенные origin'ы,
// в остальных окружениях — любой origin.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowed := make(map[string]bool, len(cfg.CORS.AllowedOrigins))
	for _, origin := range cfg.CORS.AllowedOrigins {
		allowed[origin] = true
	}
	production := cfg.IsProduction()

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (!production || allowed[origin]) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		// Клиенту нужен заголовок Authorization из ответов register/login
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// mountSwagger публикует /swagger/*; в production — только за basic auth.
func mountSwagger(router *gin.Engine, cfg *config.Config) {
	h := ginSwagger.WrapHandler(swaggerFiles.Handler)
	if !cfg.IsProduction() {
		router.GET("/swagger/*any", h)
		return
	}
	if cfg.Docs.Username == "" || cfg.Docs.Password == "" {
		log.Printf("[docs] production без учётных данных docs: /swagger не публикуем")
		return
	}
	docs := router.Group("/swagger", gin.BasicAuth(gin.Accounts{
		cfg.Docs.Username: cfg.Docs.Password,
	}))
	docs.GET("/*any", h)
}
