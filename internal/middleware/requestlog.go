package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/superta-auth/internal/metrics"
	"github.com/iliyamo/superta-auth/internal/utils"
)

const (
	ctxRequestID = "request_id"
	ctxLogger    = "logger"
)

// RequestLogger tags each request with an X-Request-ID (reusing the
// caller's when present) and logs its completion.  Handlers fetch the
// request-scoped logger with Logger.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			reqLog := log.With(zap.String("request_id", id))
			c.Set(ctxRequestID, id)
			c.Set(ctxLogger, reqLog)

			start := time.Now()
			err := next(c)
			if err != nil {
				// commit the error response so the status below is final
				c.Error(err)
			}

			req := c.Request()
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.Int64("size", c.Response().Size),
				zap.String("client_ip", utils.ClientIP(c)),
			}
			switch {
			case err != nil:
				reqLog.Error("request failed", append(fields, zap.Error(err))...)
			case c.Response().Status >= http.StatusInternalServerError:
				reqLog.Warn("request completed", fields...)
			default:
				reqLog.Info("request completed", fields...)
			}
			return nil
		}
	}
}

// Logger returns the request-scoped logger, or fallback outside
// RequestLogger.
func Logger(c echo.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := c.Get(ctxLogger).(*zap.Logger); ok {
		return l
	}
	return fallback
}

// Metrics records request counts and latencies by route pattern.
func Metrics(m *metrics.Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = http.StatusInternalServerError
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.HTTPRequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
