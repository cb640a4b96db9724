package handler

import (
	"errors"
	"net/http"

	"identity-gateway/internal/domain"
	"identity-gateway/internal/usecase"
	"identity-gateway/middleware"
	"identity-gateway/utils/logger"

	"github.com/labstack/echo/v4"
)

// AuthHandler serves the /v1/auth endpoints.
type AuthHandler struct {
	register *usecase.Register
	login    *usecase.Login
	refresh  *usecase.RefreshToken
	userInfo *usecase.GetUserInfo
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(r *usecase.Register, l *usecase.Login, rt *usecase.RefreshToken, ui *usecase.GetUserInfo) *AuthHandler {
	return &AuthHandler{register: r, login: l, refresh: rt, userInfo: ui}
}

type registrationRequest struct {
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required,min=8,max=256"`
	ConfirmPassword string `json:"confirm_password" validate:"required,max=256"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=256"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Register handles POST /v1/auth/registration.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registrationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := logger.WithWorkflow(c.Request().Context(), "register")
	tokens, err := h.register.Execute(ctx, req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusCreated, tokens)
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := logger.WithWorkflow(c.Request().Context(), "login")
	tokens, err := h.login.Execute(ctx, req.Email, req.Password)
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, tokens)
}

// RefreshToken handles POST /v1/auth/refresh-token.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req refreshTokenRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := logger.WithWorkflow(c.Request().Context(), "refresh_token")
	tokens, err := h.refresh.Execute(ctx, req.RefreshToken)
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, tokens)
}

// Me handles GET /v1/auth/me. Requires middleware.BearerAuth.
// A subject the provider no longer knows is answered with 401.
func (h *AuthHandler) Me(c echo.Context) error {
	subject := middleware.Subject(c)
	if subject == "" {
		return mapDomainError(domain.ErrInvalidAccessToken)
	}

	ctx := logger.WithWorkflow(c.Request().Context(), "get_user_info")
	identity, err := h.userInfo.Execute(ctx, subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			he := echo.NewHTTPError(http.StatusUnauthorized, domain.ErrUserNotFound.Message)
			he.Internal = err
			return he
		}
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, identity)
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Malformed request body").SetInternal(err)
	}
	if err := c.Validate(req); err != nil {
		return mapDomainError(err)
	}
	return nil
}

// RegisterRoutes mounts the auth endpoints on g. bearer guards /me and
// credential wraps the endpoints that forward user secrets to the provider.
func (h *AuthHandler) RegisterRoutes(g *echo.Group, bearer echo.MiddlewareFunc, credential ...echo.MiddlewareFunc) {
	g.POST("/registration", h.Register, credential...)
	g.POST("/login", h.Login, credential...)
	g.POST("/refresh-token", h.RefreshToken, credential...)
	g.GET("/me", h.Me, bearer)
}
