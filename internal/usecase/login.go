package usecase

import (
	"context"
	"log/slog"

	"identity-gateway/internal/domain"
)

// Login exchanges user credentials for provider tokens.
type Login struct {
	granter domain.TokenGranter
	logger  *slog.Logger
}

// NewLogin creates a new Login usecase.
func NewLogin(g domain.TokenGranter, l *slog.Logger) *Login {
	return &Login{granter: g, logger: l}
}

// Execute performs the password grant. A rejected grant is domain.ErrInvalidCredentials.
func (uc *Login) Execute(ctx context.Context, email, password string) (*domain.AuthTokens, error) {
	tokens, err := uc.grant(ctx, email, password)
	if err != nil {
		return nil, fail(ctx, uc.logger, "login", err)
	}
	return tokens, nil
}

// grant is the password grant without workflow accounting, for callers that
// report failures under their own workflow.
func (uc *Login) grant(ctx context.Context, email, password string) (*domain.AuthTokens, error) {
	return uc.granter.RequestToken(ctx, domain.PasswordGrant(email, password))
}
