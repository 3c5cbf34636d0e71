package middleware

import (
	"strconv"
	"time"

	"github.com/ErlanBelekov/task-notifier/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics records request latency and counts labelled by route template, so
// /tasks/:id stays one series no matter how many ids are seen.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
