package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"datagage/internal/logger"
	"datagage/internal/metrics"
)

// AccessLog logs every request and feeds the HTTP request counter.
func AccessLog(log *zap.Logger) gin.HandlerFunc {
	log = logger.OrNop(log)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.ObserveHTTP(c.Request.Method, route, status)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", RequestIDFromContext(c.Request.Context())),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch levelFromStatus(status) {
		case "error":
			log.Error("http request", fields...)
		case "warn":
			log.Warn("http request", fields...)
		default:
			log.Debug("http request", fields...)
		}
	}
}

// WriteAudit records every mutating /api request at info level.
func WriteAudit(log *zap.Logger) gin.HandlerFunc {
	log = logger.OrNop(log).Named("audit")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		method := strings.ToUpper(c.Request.Method)
		if !strings.HasPrefix(path, "/api/") {
			return
		}
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return
		}
		log.Info("datagage_http_write",
			zap.String("level", levelFromStatus(c.Writer.Status())),
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.String("duration", time.Since(start).String()),
			zap.String("request_id", RequestIDFromContext(c.Request.Context())),
		)
	}
}

func levelFromStatus(status int) string {
	if status >= 500 {
		return "error"
	}
	if status >= 400 {
		return "warn"
	}
	return "info"
}
