package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"deckgen-api/pkg/logger"
)

// Trace OpenTelemetry 追踪中间件
func Trace(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// TraceContext 把 trace_id / span_id 注入 gin 与日志上下文
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		sc := trace.SpanFromContext(c.Request.Context()).SpanContext()
		if sc.IsValid() {
			traceID := sc.TraceID().String()
			spanID := sc.SpanID().String()

			c.Set("trace_id", traceID)
			c.Set("span_id", spanID)

			ctx := logger.WithContext(c.Request.Context(), logger.TraceIDKey, traceID)
			ctx = logger.WithContext(ctx, logger.SpanIDKey, spanID)
			c.Request = c.Request.WithContext(ctx)

			c.Header("X-Trace-ID", traceID)
		}

		c.Next()
	}
}
