package usecase

import (
	"context"
	"errors"
	"log/slog"

	"identity-gateway/internal/domain"
)

// RefreshToken exchanges a refresh token for a new token set.
type RefreshToken struct {
	granter domain.TokenGranter
	logger  *slog.Logger
}

// NewRefreshToken creates a new RefreshToken usecase.
func NewRefreshToken(g domain.TokenGranter, l *slog.Logger) *RefreshToken {
	return &RefreshToken{granter: g, logger: l}
}

// Execute performs the refresh grant. Any credential rejection is reported as
// domain.ErrInvalidRefreshToken, never as invalid credentials.
func (uc *RefreshToken) Execute(ctx context.Context, refreshToken string) (*domain.AuthTokens, error) {
	tokens, err := uc.granter.RequestToken(ctx, domain.RefreshGrant(refreshToken))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			err = domain.ErrInvalidRefreshToken
		}
		return nil, fail(ctx, uc.logger, "refresh_token", err)
	}
	return tokens, nil
}
