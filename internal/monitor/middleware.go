package monitor

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// LoggerMiddleware logs every request's method, URI, status and latency
// through the shared logrus logger, the same fields a gin access log
// entry carries elsewhere in the fabric.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		log.WithFields(log.Fields{
			"status":     c.Writer.Status(),
			"latency":    time.Since(start),
			"client_ip":  requestClientIP(c),
			"req_method": c.Request.Method,
			"req_uri":    path,
		}).Infof("%s %s %d", c.Request.Method, path, c.Writer.Status())
	}
}

// requestClientIP prefers X-Forwarded-For, then X-Real-IP, falling back
// to the connection's remote address.
func requestClientIP(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := c.GetHeader("X-Real-IP"); realIP != "" {
		return realIP
	}
	return c.ClientIP()
}
