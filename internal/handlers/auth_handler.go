package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"authbase/internal/middleware"
	"authbase/internal/models"
	"authbase/internal/services"
)

type AuthHandler struct {
	authService         services.AuthService
	verificationService services.VerificationService
}

func NewAuthHandler(authService services.AuthService, verificationService services.VerificationService) *AuthHandler {
	return &AuthHandler{authService: authService, verificationService: verificationService}
}

// @Summary      Регистрация
// @Description  Создаёт пользователя, шлёт код подтверждения почты и сразу выпускает сессию (токен — в заголовке Authorization ответа)
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        register  body      models.RegisterRequest  true  "Данные регистрации"
// @Success      201       {object}  models.User
// @Failure      400       {object}  map[string]string
// @Failure      409       {object}  map[string]string
// @Failure      500       {object}  map[string]string
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[auth][register] bad request: bind json failed: err=%v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := &models.User{
		Name:        strings.TrimSpace(req.Name),
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
	}
	if err := h.authService.Register(user, req.Password); err != nil {
		switch err {
		case services.ErrUserAlreadyExists:
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		default:
			log.Printf("[auth][register] failed email=%q err=%v", req.Email, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		}
		return
	}

	// первичный код подтверждения почты; неудача не валит регистрацию
	if err := h.verificationService.SendEmailVerification(user); err != nil {
		log.Printf("[auth][register] initial verification code failed user_id=%s err=%v", user.ID, err)
	}

	// сессия best-effort: пользователь уже создан, без заголовка клиент дойдёт через login
	session, err := h.authService.IssueSession(user.ID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		log.Printf("[auth][register] issue session failed user_id=%s err=%v", user.ID, err)
	} else {
		c.Header("Authorization", "Bearer "+session.Token)
	}

	c.JSON(http.StatusCreated, user)
}

// @Summary      Вход в систему
// @Description  Аутентифицирует пользователя и выпускает новую сессию (токен — в заголовке Authorization ответа)
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      models.LoginRequest  true  "Данные для входа"
// @Success      200    {object}  models.User
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Failure      403    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Failure      500    {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	start := time.Now()

	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[auth][login] bad request: bind json failed: err=%v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Printf("[auth][login] attempt email=%q", req.Email)

	user, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		switch err {
		case services.ErrUserNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		case services.ErrInvalidPassword:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		case services.ErrUserNotVerified:
			c.JSON(http.StatusForbidden, gin.H{"error": "Email not verified"})
		default:
			log.Printf("[auth][login] failed email=%q err=%v", req.Email, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		}
		return
	}

	// сессии аддитивны: параллельные входы не мешают друг другу
	session, err := h.authService.IssueSession(user.ID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		log.Printf("[auth][login] issue session failed user_id=%s err=%v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	c.Header("Authorization", "Bearer "+session.Token)
	log.Printf("[auth][login] success user_id=%s took=%s", user.ID, time.Since(start).Truncate(time.Millisecond))
	c.JSON(http.StatusOK, user)
}

// @Summary      Выход
// @Description  Отзывает все сессии владельца предъявленного токена. Без живого токена отвечает 200 "Already logged out"
// @Tags         Auth
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token := middleware.ParseBearerToken(c)

	revoked, err := h.authService.Logout(token)
	if err != nil {
		log.Printf("[auth][logout] failed: err=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Logout failed"})
		return
	}
	if !revoked {
		c.JSON(http.StatusOK, gin.H{"message": "Already logged out"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

// @Summary      Текущий пользователь
// @Tags         Auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.User
// @Failure      401  {object}  map[string]string
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary      Подтверждение почты
// @Description  Сверяет 6-символьный код из письма и помечает почту подтверждённой
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        verify  body      models.VerifyEmailRequest  true  "Код подтверждения"
// @Success      200     {object}  map[string]string
// @Failure      400     {object}  map[string]string
// @Failure      401     {object}  map[string]string
// @Failure      500     {object}  map[string]string
// @Router       /auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.verificationService.ConfirmEmail(user, req.Code); err != nil {
		switch err {
		case services.ErrEmailAlreadyVerified:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email already verified"})
		case services.ErrCodeExpired:
			c.JSON(http.StatusBadRequest, gin.H{"error": "code expired, please resend"})
		case services.ErrCodeInvalid:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code"})
		default:
			log.Printf("[auth][verify-email] failed user_id=%s err=%v", user.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Email verified"})
}

// @Summary      Повторная отправка кода подтверждения
// @Description  Выпускает новый код вместо старого и шлёт письмо ещё раз
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        resend  body      models.ResendVerificationEmailRequest  true  "Почта"
// @Success      200     {object}  map[string]string
// @Failure      400     {object}  map[string]string
// @Failure      404     {object}  map[string]string
// @Failure      500     {object}  map[string]string
// @Router       /auth/resend-verification-email [post]
func (h *AuthHandler) ResendVerificationEmail(c *gin.Context) {
	var req models.ResendVerificationEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.verificationService.ResendEmailVerification(req.Email); err != nil {
		switch err {
		case services.ErrUserNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		case services.ErrEmailAlreadyVerified:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email already verified"})
		default:
			log.Printf("[auth][resend-verification] failed email=%q err=%v", req.Email, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "resend failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Verification code sent"})
}

// @Summary      Забыли пароль
// @Description  Выпускает код сброса пароля и шлёт его на почту
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        forgot  body      models.ForgotPasswordRequest  true  "Почта"
// @Success      200     {object}  map[string]string
// @Failure      400     {object}  map[string]string
// @Failure      404     {object}  map[string]string
// @Failure      500     {object}  map[string]string
// @Router       /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.verificationService.RequestPasswordReset(req.Email); err != nil {
		switch err {
		case services.ErrUserNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		default:
			log.Printf("[auth][forgot-password] failed email=%q err=%v", req.Email, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "request failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset code sent"})
}

// @Summary      Сброс пароля
// @Description  Сверяет код сброса, ставит новый пароль и отзывает все сессии пользователя
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        reset  body      models.ResetPasswordRequest  true  "Почта, код и новый пароль"
// @Success      200    {object}  map[string]string
// @Failure      400    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Failure      500    {object}  map[string]string
// @Router       /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.verificationService.ResetPassword(req.Email, req.Code, req.NewPassword); err != nil {
		switch err {
		case services.ErrUserNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		case services.ErrCodeExpired:
			c.JSON(http.StatusBadRequest, gin.H{"error": "code expired, please request a new one"})
		case services.ErrCodeInvalid:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code"})
		default:
			log.Printf("[auth][reset-password] failed email=%q err=%v", req.Email, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "reset failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset"})
}
