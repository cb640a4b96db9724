package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"identity-gateway/internal/domain"

	"github.com/labstack/echo/v4"
)

// errorResponse is the uniform error body of every endpoint.
type errorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// mapDomainError converts a domain error into an appropriate echo.HTTPError.
// Errors without a DomainError become 500 with a generic message.
func mapDomainError(err error) *echo.HTTPError {
	de := domain.AsDomainError(err)
	he := echo.NewHTTPError(de.Status, de.Message)
	he.Internal = err
	return he
}

// NewHTTPErrorHandler renders every error, including echo's own routing,
// binding and middleware errors, as {"error", "status"}.
func NewHTTPErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if !errors.As(err, &he) {
			he = mapDomainError(err)
		}

		message := http.StatusText(he.Code)
		switch m := he.Message.(type) {
		case string:
			message = m
		case error:
			message = m.Error()
		case nil:
		default:
			message = fmt.Sprint(m)
		}

		if he.Code >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request().Context(), "request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"status", he.Code,
				"error", err)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(he.Code)
		} else {
			werr = c.JSON(he.Code, errorResponse{Error: message, Status: he.Code})
		}
		if werr != nil {
			logger.ErrorContext(c.Request().Context(), "failed to write error response", "error", werr)
		}
	}
}
