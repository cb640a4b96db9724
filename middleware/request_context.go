package middleware

import (
	"identity-gateway/utils/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// RequestID assigns a UUID request id unless the caller supplied one.
func RequestID() echo.MiddlewareFunc {
	return echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	})
}

// RequestContext copies the request id and client IP into the request context
// so ContextLogger can attach them. Must run after RequestID.
func RequestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := req.Context()
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				ctx = logger.WithRequestID(ctx, id)
			}
			ctx = logger.WithClientIP(ctx, c.RealIP())
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
