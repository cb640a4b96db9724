package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"identity-gateway/config"
	"identity-gateway/internal/adapter/gateway"
	adapterhandler "identity-gateway/internal/adapter/handler"
	"identity-gateway/internal/infrastructure/credential"
	"identity-gateway/internal/infrastructure/retry"
	infratoken "identity-gateway/internal/infrastructure/token"
	"identity-gateway/internal/usecase"
	appmiddleware "identity-gateway/middleware"
	"identity-gateway/utils/logger"
	"identity-gateway/utils/otel"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// skipLogging lists health endpoints kept out of the request log.
var skipLogging = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// newServer wires the gateway, cache, usecases and routes into an echo server.
// ctx bounds background work such as limiter cleanup and the JWKS refresher.
func newServer(ctx context.Context, cfg *config.Config, otelCfg otel.Config, log *slog.Logger) (*echo.Echo, error) {
	// Infrastructure
	keycloak := gateway.NewKeycloakGateway(gateway.KeycloakConfig{
		BaseURL:      cfg.KeycloakURL,
		Realm:        cfg.Realm,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Timeout:      cfg.ProviderTimeout,
		Retry: retry.Config{
			MaxAttempts:   cfg.RetryAttempts,
			BaseDelay:     cfg.RetryBaseDelay,
			MaxDelay:      8 * cfg.RetryBaseDelay,
			BackoffFactor: 2,
		},
	}, log)

	adminTokens := credential.NewAdminTokenCache(keycloak, cfg.AdminUsername, cfg.AdminPassword, log,
		credential.WithMargin(cfg.AdminTokenMargin))

	verifier, err := infratoken.NewJWKSVerifier(ctx, infratoken.VerifierConfig{
		Issuer:   cfg.TokenIssuer,
		JWKSURL:  cfg.TokenJWKSURL,
		Audience: cfg.TokenAudience,
		Leeway:   5 * time.Second,
	}, &http.Client{
		Timeout:   cfg.ProviderTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token verifier: %w", err)
	}

	// Usecases
	loginUC := usecase.NewLogin(keycloak, log)
	registerUC := usecase.NewRegister(adminTokens, keycloak, loginUC, log)
	refreshUC := usecase.NewRefreshToken(keycloak, log)
	userInfoUC := usecase.NewGetUserInfo(adminTokens, keycloak, log)

	// Handlers
	authHandler := adapterhandler.NewAuthHandler(registerUC, loginUC, refreshUC, userInfoUC)
	healthHandler := adapterhandler.NewHealthHandler()
	readyHandler := adapterhandler.NewReadyHandler(adminTokens, cfg.ProviderTimeout)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = adapterhandler.NewHTTPErrorHandler(log)
	e.Validator = adapterhandler.NewRequestValidator()

	e.Use(appmiddleware.SecurityHeaders())
	e.Use(appmiddleware.RequestID())
	e.Use(appmiddleware.RequestContext())

	if otelCfg.Enabled {
		e.Use(otelecho.Middleware(otelCfg.ServiceName))
		e.Use(appmiddleware.OTelStatusMiddleware())
	}

	requestLog := logger.NewContextLogger(log)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return skipLogging[c.Request().URL.Path]
		},
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			rctx := c.Request().Context()
			l := requestLog.WithContext(rctx)
			if v.Error == nil {
				l.InfoContext(rctx, "request completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds())
			} else {
				l.WarnContext(rctx, "request failed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds(),
					"error", v.Error.Error())
			}
			return nil
		},
	}))

	e.Use(middleware.Recover())

	// Rate limiters per endpoint group
	authRL := appmiddleware.NewRateLimiter(ctx, appmiddleware.RateLimitConfig{Name: "auth", Rate: 100.0 / 60.0, Burst: 20})                  // 100 req/min
	credentialRL := appmiddleware.NewRateLimiter(ctx, appmiddleware.RateLimitConfig{Name: "credential", Rate: rate.Limit(0.5), Burst: 5}) // 30 req/min

	authGroup := e.Group("/v1/auth", authRL.Middleware())
	authHandler.RegisterRoutes(authGroup, appmiddleware.BearerAuth(verifier), credentialRL.Middleware())

	e.GET("/health", healthHandler.Handle)
	e.GET("/ready", readyHandler.Handle)
	if cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	return e, nil
}
