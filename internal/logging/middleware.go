package logging

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader はリクエストIDを受け渡すヘッダー名です。
	RequestIDHeader = "X-Request-ID"
	// ContextLoggerKey は gin.Context にリクエスト単位のロガーを格納するキーです。
	ContextLoggerKey = "logging.logger"
)

// Middleware はリクエストIDを払い出し、アクセスログを出力するミドルウェアを返します。
func Middleware(base Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		reqLogger := base.With("request_id", requestID)
		c.Set(ContextLoggerKey, reqLogger)

		start := time.Now()
		c.Next()

		reqLogger.Info(c.Request.Context(), "request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// FromContext はリクエスト単位のロガーを返します。未設定なら fallback を返します。
func FromContext(c *gin.Context, fallback Logger) Logger {
	if v, ok := c.Get(ContextLoggerKey); ok {
		if l, ok := v.(Logger); ok {
			return l
		}
	}
	return fallback
}
