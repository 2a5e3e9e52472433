package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger пишет [http]-строку по каждому запросу.
// Значение заголовка Authorization в лог не попадает.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		if status >= 400 {
			log.Printf("[http][warn] request_id=%s method=%s path=%s ip=%s status=%d took=%s",
				c.GetString(ContextRequestIDKey), c.Request.Method, path, c.ClientIP(), status,
				time.Since(start).Truncate(time.Millisecond))
			return
		}
		log.Printf("[http] request_id=%s method=%s path=%s ip=%s status=%d took=%s",
			c.GetString(ContextRequestIDKey), c.Request.Method, path, c.ClientIP(), status,
			time.Since(start).Truncate(time.Millisecond))
	}
}
