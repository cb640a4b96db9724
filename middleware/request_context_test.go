package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"identity-gateway/utils/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestContext_GeneratesUUIDRequestID(t *testing.T) {
	e := echo.New()
	e.Use(RequestID(), RequestContext())

	var gotID, gotIP any
	e.GET("/test", func(c echo.Context) error {
		gotID = c.Request().Context().Value(logger.RequestIDKey)
		gotIP = c.Request().Context().Value(logger.ClientIPKey)
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "10.1.2.3:4567"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	headerID := rec.Header().Get(echo.HeaderXRequestID)
	_, err := uuid.Parse(headerID)
	require.NoError(t, err)
	assert.Equal(t, headerID, gotID)
	assert.Equal(t, "10.1.2.3", gotIP)
}

func TestRequestContext_KeepsCallerRequestID(t *testing.T) {
	e := echo.New()
	e.Use(RequestID(), RequestContext())

	var gotID any
	e.GET("/test", func(c echo.Context) error {
		gotID = c.Request().Context().Value(logger.RequestIDKey)
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(echo.HeaderXRequestID, "upstream-id")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "upstream-id", rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, "upstream-id", gotID)
}
