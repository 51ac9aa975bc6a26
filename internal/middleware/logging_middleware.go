package middleware

import (
	"time"

	"github.com/annel0/layoutd/internal/eventbus"
	"github.com/annel0/layoutd/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// RequestIDHeader - заголовок с идентификатором запроса
const RequestIDHeader = "X-Request-ID"

// RequestLogger снабжает каждый HTTP-запрос trace-ID и пишет краткие логи.
// Идентификатор попадает в контекст запроса, откуда его берут события шины.
type RequestLogger struct {
	log *logging.Logger
}

func NewRequestLogger(log *logging.Logger) *RequestLogger {
	if log == nil {
		log = logging.GetServerLogger()
	}
	return &RequestLogger{log: log}
}

func (rl *RequestLogger) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Пытаемся извлечь trace-id из OpenTelemetry, если уже создан.
		span := trace.SpanFromContext(c.Request.Context())
		traceID := c.GetHeader(RequestIDHeader)
		if span.SpanContext().IsValid() {
			traceID = span.SpanContext().TraceID().String()
		} else if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Set("trace_id", traceID)
		c.Header(RequestIDHeader, traceID)
		c.Request = c.Request.WithContext(eventbus.WithCorrelationID(c.Request.Context(), traceID))

		start := time.Now()
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		clientIP := c.ClientIP()

		rl.log.Debug("[HTTP] ▶ %s %s ip=%s trace=%s", method, path, clientIP, traceID)

		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		rl.log.Info("[HTTP] ◀ %s %s %d %s trace=%s", method, path, status, latency, traceID)
	}
}
