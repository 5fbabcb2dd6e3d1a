package middleware

import (
	"time"

	"github.com/annel0/related-world/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// HeaderRequestID заголовок с идентификатором запроса
const HeaderRequestID = "X-Request-ID"

// RequestLogger снабжает каждый HTTP-запрос trace-ID и пишет по записи на запрос.
// Логгер берётся из logging.GetComponentLogger("http") в момент запроса.
type RequestLogger struct {
	logger func() *logging.Logger
}

func NewRequestLogger() *RequestLogger {
	return &RequestLogger{logger: func() *logging.Logger { return logging.GetComponentLogger("http") }}
}

func (rl *RequestLogger) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// trace-id из OpenTelemetry, если otelgin уже открыл спан
		span := trace.SpanFromContext(c.Request.Context())
		var traceID string
		switch {
		case span.SpanContext().IsValid():
			traceID = span.SpanContext().TraceID().String()
		case c.GetHeader(HeaderRequestID) != "":
			traceID = c.GetHeader(HeaderRequestID)
		default:
			traceID = uuid.NewString()
		}
		c.Set("trace_id", traceID)
		c.Header(HeaderRequestID, traceID)

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("trace", traceID),
		}
		log := rl.logger().Zap()
		if len(c.Errors) > 0 {
			log.Warn("[HTTP] "+c.Errors.String(), fields...)
			return
		}
		log.Info("[HTTP]", fields...)
	}
}
