package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	userIDHeader         = "X-User-Id"
	idempotencyKeyHeader = "Idempotency-Key"

	callerKey = "slotbook.caller"
)

// requireCaller reads the caller id set by the auth proxy in front of this
// service.
func requireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(userIDHeader))
		if raw == "" {
			failure(c, http.StatusUnauthorized, userIDHeader+" header is required")
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			failure(c, http.StatusUnauthorized, userIDHeader+" must be a UUID")
			return
		}
		c.Set(callerKey, id)
		c.Next()
	}
}

func caller(c *gin.Context) uuid.UUID {
	id, _ := c.Get(callerKey)
	u, _ := id.(uuid.UUID)
	return u
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		args := []any{
			slog.String("method", c.Request.Method),
			slog.String("route", c.FullPath()),
			slog.Int("status", status),
			slog.Duration("took", time.Since(start)),
		}
		switch {
		case status >= 500:
			log.Error("request", args...)
		case status >= 400:
			log.Info("request", args...)
		default:
			log.Debug("request", args...)
		}
	}
}
