package middlewares

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger 每个请求一行日志；out 不为 nil 时另外追加一行纯文本
func RequestLogger(log *slog.Logger, out io.Writer) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		user := "Anonymous"
		if u, ok := CurrentUser(c); ok {
			user = u.Username
		}
		latency := time.Since(start)
		log.Info("request",
			"user", user,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", latency,
			"client_ip", ClientIP(c),
		)
		if out != nil {
			fmt.Fprintf(out, "%s - User: %s - Path: %s %s - Status: %d - %s\n",
				start.Format(time.RFC3339), user, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), latency)
		}
	}
}
