package dashboard

import (
	"TripAnalysis/src/storage"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDKey = "request_id"

// RequestID 每个请求一个 ID, 优先使用 X-Request-ID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.Request.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Next()
	}
}

// Logger 请求日志写入应用日志
func Logger(logger *storage.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// 日志流本身不记录, 否则每次订阅都会产生新日志
		if c.FullPath() == "/logs" {
			return
		}
		logger.Info(fmt.Sprintf("[HTTP] request_id=%s method=%s path=%s status=%d latency_ms=%.3f ip=%s",
			c.GetString(requestIDKey),
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			float64(time.Since(start).Microseconds())/1000.0,
			c.ClientIP(),
		))
	}
}
