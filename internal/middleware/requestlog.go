package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/vinylverse/storefront/internal/observability"
)

// RequestLogger tags each request with an id (reusing X-Request-ID when the
// client sends one), puts a request-scoped logger on the context and logs
// one line per request.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, rid)

			reqLog := log.With(zap.String("request_id", rid))
			c.SetRequest(req.WithContext(observability.WithLogger(req.Context(), reqLog)))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
				zap.String("user", userID(c)),
			}
			switch status := c.Response().Status; {
			case status >= 500:
				reqLog.Error("request", append(fields, zap.Error(err))...)
			case status >= 400:
				reqLog.Info("request", fields...)
			default:
				reqLog.Debug("request", fields...)
			}
			return nil
		}
	}
}
