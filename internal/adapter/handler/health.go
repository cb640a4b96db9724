package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthHandler handles health check requests.
type HealthHandler struct{}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Handle processes the /health endpoint.
func (h *HealthHandler) Handle(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// ReadinessChecker reports whether a dependency is usable.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// ReadyHandler reports whether the gateway can obtain an admin credential.
type ReadyHandler struct {
	checker ReadinessChecker
	timeout time.Duration
}

// NewReadyHandler creates a readiness handler bounded by timeout.
func NewReadyHandler(checker ReadinessChecker, timeout time.Duration) *ReadyHandler {
	return &ReadyHandler{checker: checker, timeout: timeout}
}

// Handle processes the /ready endpoint.
func (h *ReadyHandler) Handle(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if err := h.checker.Ready(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{
			Error:  "identity provider not reachable",
			Status: http.StatusServiceUnavailable,
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
	})
}
