package middleware

import "github.com/labstack/echo/v4"

type header struct {
	name  string
	value string
}

// responseHeaders are set on every response. Bodies carry bearer and refresh
// tokens, so nothing may be cached or embedded.
var responseHeaders = []header{
	{"Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload"},
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "no-referrer"},
	{"Cache-Control", "no-store, no-cache, must-revalidate, private"},
	{"Pragma", "no-cache"},
	{"Cross-Origin-Resource-Policy", "same-origin"},
}

// SecurityHeaders adds the response hardening headers and marks responses
// as varying by Authorization.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for _, rh := range responseHeaders {
				h.Set(rh.name, rh.value)
			}
			h.Add("Vary", "Authorization")
			return next(c)
		}
	}
}
