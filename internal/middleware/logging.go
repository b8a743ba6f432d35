// Package middleware provides gin middleware for request tracing and logging.
package middleware

import (
	"context"
	"time"

	"emoji-to-do/internal/log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LoggingMiddleware adds trace IDs and structured request logging.
// Inbound X-Trace-ID headers are honored so traces can span services;
// otherwise a fresh ID is generated per request.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.New().String()
		}

		c.Set("trace_id", traceID)
		c.Header("X-Trace-ID", traceID)

		// Store trace_id in the request context for downstream handlers
		ctx := context.WithValue(c.Request.Context(), log.TraceIDKey, traceID)
		c.Request = c.Request.WithContext(ctx)

		startTime := time.Now()
		log.Debug(ctx, "Request started",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"user_agent", c.Request.UserAgent(),
			"remote_addr", c.ClientIP(),
		)

		c.Next()

		duration := time.Since(startTime)
		log.Info(ctx, "Request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_seconds", duration.Seconds(),
		)
	}
}
