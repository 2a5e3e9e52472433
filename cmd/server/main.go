package main

import "authbase/internal/app"

// @title           AuthBase API
// @version         1.0
// @description     Сервис аутентификации: сессии по opaque-токенам, подтверждение почты и сброс пароля по кодам.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Формат: "Bearer {token}"
func main() {
	app.Run()
}
