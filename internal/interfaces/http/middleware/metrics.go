package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"deckgen-api/pkg/metrics"
)

// Metrics Prometheus 指标采集中间件
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		method := c.Request.Method

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size > 0 {
			metrics.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
