// Package middleware содержит промежуточные обработчики HTTP: логирование,
// восстановление после паники, аутентификацию и rate-limiting.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/wellness-engine/internal/metrics"
)

// RequestLogger логирует запрос и обновляет HTTP-метрики.
// Путь берётся из шаблона маршрута, чтобы ID не раздували кардинальность.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		duration := time.Since(start)

		metrics.HTTPRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(c.Request.Method, path).Observe(duration.Seconds())

		entry := log.WithFields(log.Fields{
			"method":    c.Request.Method,
			"path":      path,
			"status":    status,
			"duration":  duration.Round(time.Microsecond).String(),
			"client_ip": c.ClientIP(),
		})
		if userID := c.GetString(UserIDKey); userID != "" {
			entry = entry.WithField("user_id", userID)
		}
		if status >= 500 {
			entry.Error("HTTP-запрос")
			return
		}
		entry.Debug("HTTP-запрос")
	}
}
