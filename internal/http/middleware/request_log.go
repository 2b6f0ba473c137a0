package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mindtrace-backend/internal/http/response"
	"github.com/yungbote/mindtrace-backend/internal/platform/ctxutil"
	"github.com/yungbote/mindtrace-backend/internal/platform/logger"
)

// RequestLogger emits api.request on entry at the full tier and one
// api.response or api.error line per request, leveled by status.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if log == nil {
			c.Next()
			return
		}
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := strings.ToUpper(c.Request.Method)
		reqID := ctxutil.RequestID(c.Request.Context())
		log.Full("api.request", "request_id", reqID, "method", method, "path", path)

		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"request_id", reqID,
			"method", method,
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if r := ctxutil.From(c.Request.Context()); r != nil {
			if r.TraceID != "" {
				fields = append(fields, "trace_id", r.TraceID)
			}
			fields = append(fields, "client_ip", r.ClientIP)
		}
		if code := c.GetString(response.ErrorCodeKey); code != "" {
			fields = append(fields, "reason_code", code)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("api.error", fields...)
		case status >= 400:
			log.Warn("api.error", fields...)
		default:
			log.Info("api.response", fields...)
		}
	}
}
